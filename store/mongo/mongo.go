// MongoDB持久化实现
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/Code-trac/aito-dep/entity"
	"github.com/Code-trac/aito-dep/utils/config"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var log = logrus.WithField("module", "store.mongo")

const agentDocID = "latest"

// agentDoc 智能体存档文档，只保留最新的一份
type agentDoc struct {
	ID         string                 `bson:"_id"`
	SavedAt    time.Time              `bson:"saved_at"`
	Checkpoint entity.AgentCheckpoint `bson:"checkpoint"`
}

// Store MongoDB存储
type Store struct {
	client    *mongo.Client
	history   *mongo.Collection
	alerts    *mongo.Collection
	overrides *mongo.Collection
	agent     *mongo.Collection
}

// Open 连接MongoDB
// 参数：uri-连接字符串，db-数据库名
func Open(uri, db string) *Store {
	client := mongoutil.NewClient(uri)
	coll := func(name string) *mongo.Collection {
		return mongoutil.GetMongoColl(client, config.InputPath{DB: db, Col: name})
	}
	log.Infof("using mongo store %s", db)
	return &Store{
		client:    client,
		history:   coll("history"),
		alerts:    coll("alerts"),
		overrides: coll("overrides"),
		agent:     coll("agent"),
	}
}

func (s *Store) AppendHistory(ctx context.Context, rec entity.HistoryRecord) error {
	if _, err := s.history.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("failed to insert history: %w", err)
	}
	return nil
}

func (s *Store) LaneHistory(ctx context.Context, lane int) ([]float64, error) {
	if lane < 0 {
		return []float64{}, nil
	}
	filter := bson.M{fmt.Sprintf("counts.%d", lane): bson.M{"$exists": true}}
	cur, err := s.history.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "ts", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	var records []entity.HistoryRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(records))
	for _, rec := range records {
		if lane < len(rec.Counts) {
			out = append(out, float64(rec.Counts[lane]))
		}
	}
	return out, nil
}

// SaveAlerts 整体替换告警列表
func (s *Store) SaveAlerts(ctx context.Context, alerts []entity.Alert) error {
	if _, err := s.alerts.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to clear alerts: %w", err)
	}
	if len(alerts) == 0 {
		return nil
	}
	docs := make([]any, len(alerts))
	for i, a := range alerts {
		docs[i] = a
	}
	if _, err := s.alerts.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert alerts: %w", err)
	}
	return nil
}

func (s *Store) LoadAlerts(ctx context.Context) ([]entity.Alert, error) {
	cur, err := s.alerts.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "ts", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	out := make([]entity.Alert, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) LogOverride(ctx context.Context, rec entity.OverrideRecord) error {
	if _, err := s.overrides.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("failed to insert override: %w", err)
	}
	return nil
}

func (s *Store) ListOverrides(ctx context.Context) ([]entity.OverrideRecord, error) {
	cur, err := s.overrides.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "ts", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query overrides: %w", err)
	}
	out := make([]entity.OverrideRecord, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveAgent 覆盖保存智能体存档
func (s *Store) SaveAgent(ctx context.Context, cp entity.AgentCheckpoint, savedAt time.Time) error {
	_, err := s.agent.ReplaceOne(ctx,
		bson.M{"_id": agentDocID},
		agentDoc{ID: agentDocID, SavedAt: savedAt, Checkpoint: cp},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

func (s *Store) LoadAgent(ctx context.Context) (entity.AgentCheckpoint, bool, error) {
	var doc agentDoc
	err := s.agent.FindOne(ctx, bson.M{"_id": agentDocID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return entity.AgentCheckpoint{}, false, nil
	}
	if err != nil {
		return entity.AgentCheckpoint{}, false, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return doc.Checkpoint, true, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Drop 删除全部集合（测试用）
func (s *Store) Drop(ctx context.Context) error {
	for _, c := range []*mongo.Collection{s.history, s.alerts, s.overrides, s.agent} {
		if err := c.Drop(ctx); err != nil {
			return err
		}
	}
	return nil
}

// SQLite持久化实现（modernc.org/sqlite，无需cgo）
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Code-trac/aito-dep/entity"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

var log = logrus.WithField("module", "store.sqlite")

// schema.sql 历史记录、告警、接管记录与智能体存档的表结构
//
//go:embed schema.sql
var schemaSQL string

// Store SQLite存储
type Store struct {
	db *sql.DB
}

// Open 打开（必要时创建）数据库并初始化表结构
// 参数：path-数据库文件路径，":memory:"表示内存数据库
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// 内存数据库每个连接都是独立的库
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	log.Infof("opened sqlite store %s", path)
	return &Store{db: db}, nil
}

func (s *Store) AppendHistory(ctx context.Context, rec entity.HistoryRecord) error {
	counts, err := json.Marshal(rec.Counts)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO history (ts, counts) VALUES (?, ?)`,
		rec.Timestamp.UnixNano(), string(counts),
	)
	if err != nil {
		return fmt.Errorf("failed to insert history: %w", err)
	}
	return nil
}

func (s *Store) LaneHistory(ctx context.Context, lane int) ([]float64, error) {
	if lane < 0 {
		return []float64{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT json_extract(counts, ?) FROM history WHERE json_array_length(counts) > ? ORDER BY id`,
		fmt.Sprintf("$[%d]", lane), lane,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()
	out := make([]float64, 0)
	for rows.Next() {
		var v sql.NullFloat64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v.Valid {
			out = append(out, v.Float64)
		}
	}
	return out, rows.Err()
}

// SaveAlerts 整体替换告警列表
func (s *Store) SaveAlerts(ctx context.Context, alerts []entity.Alert) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM alerts`); err != nil {
		return fmt.Errorf("failed to clear alerts: %w", err)
	}
	for i, a := range alerts {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO alerts (seq, id, lane, msg, ts, ack) VALUES (?, ?, ?, ?, ?, ?)`,
			i, a.ID, a.Lane, a.Message, a.CreatedAt.UnixNano(), a.Acknowledged,
		)
		if err != nil {
			return fmt.Errorf("failed to insert alert %s: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) LoadAlerts(ctx context.Context) ([]entity.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, lane, msg, ts, ack FROM alerts ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()
	out := make([]entity.Alert, 0)
	for rows.Next() {
		var a entity.Alert
		var ts int64
		if err := rows.Scan(&a.ID, &a.Lane, &a.Message, &ts, &a.Acknowledged); err != nil {
			return nil, err
		}
		a.CreatedAt = time.Unix(0, ts)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) LogOverride(ctx context.Context, rec entity.OverrideRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO overrides (id, ts, user, lane, duration, reason) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UnixNano(), rec.User, rec.Lane, rec.Duration, rec.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to insert override: %w", err)
	}
	return nil
}

func (s *Store) ListOverrides(ctx context.Context) ([]entity.OverrideRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, user, lane, duration, reason FROM overrides ORDER BY ts, rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query overrides: %w", err)
	}
	defer rows.Close()
	out := make([]entity.OverrideRecord, 0)
	for rows.Next() {
		var rec entity.OverrideRecord
		var ts int64
		if err := rows.Scan(&rec.ID, &ts, &rec.User, &rec.Lane, &rec.Duration, &rec.Reason); err != nil {
			return nil, err
		}
		rec.Timestamp = time.Unix(0, ts)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveAgent 追加一个智能体存档（msgpack编码）
func (s *Store) SaveAgent(ctx context.Context, cp entity.AgentCheckpoint, savedAt time.Time) error {
	data, err := msgpack.Marshal(&cp)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agent_checkpoints (saved_at, num_lanes, data) VALUES (?, ?, ?)`,
		savedAt.UnixNano(), cp.NumLanes, data,
	)
	if err != nil {
		return fmt.Errorf("failed to insert checkpoint: %w", err)
	}
	return nil
}

// LoadAgent 读取最新的智能体存档
func (s *Store) LoadAgent(ctx context.Context) (entity.AgentCheckpoint, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM agent_checkpoints ORDER BY id DESC LIMIT 1`,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return entity.AgentCheckpoint{}, false, nil
	}
	if err != nil {
		return entity.AgentCheckpoint{}, false, fmt.Errorf("failed to query checkpoint: %w", err)
	}
	var cp entity.AgentCheckpoint
	if err := msgpack.Unmarshal(data, &cp); err != nil {
		return entity.AgentCheckpoint{}, false, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return cp, true, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

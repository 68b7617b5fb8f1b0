package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Code-trac/aito-dep/entity"
	"github.com/Code-trac/aito-dep/store"
	"github.com/Code-trac/aito-dep/utils/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	counts := []int{1, 2, 3}
	require.NoError(t, m.AppendHistory(ctx, entity.HistoryRecord{Counts: counts, Timestamp: time.Now()}))
	counts[0] = 100
	require.NoError(t, m.AppendHistory(ctx, entity.HistoryRecord{Counts: []int{5}, Timestamp: time.Now()}))
	h, err := m.LaneHistory(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 5}, h)
	h, err = m.LaneHistory(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, h)
	h, err = m.LaneHistory(ctx, -1)
	require.NoError(t, err)
	assert.Empty(t, h)

	require.NoError(t, m.SaveAlerts(ctx, []entity.Alert{{ID: "a"}, {ID: "b"}}))
	require.NoError(t, m.SaveAlerts(ctx, []entity.Alert{{ID: "c"}}))
	alerts, err := m.LoadAlerts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []entity.Alert{{ID: "c"}}, alerts)

	require.NoError(t, m.LogOverride(ctx, entity.OverrideRecord{ID: "o", User: "alice"}))
	recs, err := m.ListOverrides(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	_, ok, err := m.LoadAgent(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	q := map[string][]float64{"[0]": {1, 2}}
	require.NoError(t, m.SaveAgent(ctx, entity.AgentCheckpoint{NumLanes: 1, Q: q}, time.Now()))
	q["[0]"][0] = 9
	cp, ok, err := m.LoadAgent(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2}, cp.Q["[0]"])
	assert.NoError(t, m.Close(ctx))
}

func TestOpen(t *testing.T) {
	s, err := store.Open(config.Store{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &store.Memory{}, s)

	s, err = store.Open(config.Store{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.NoError(t, s.Close(context.Background()))

	_, err = store.Open(config.Store{Driver: "redis"})
	assert.Error(t, err)
}

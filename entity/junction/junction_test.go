package junction_test

import (
	"testing"
	"time"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/Code-trac/aito-dep/entity"
	"github.com/Code-trac/aito-dep/entity/junction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerTick(t *testing.T) {
	c := junction.Auto()
	assert.False(t, c.IsManual())
	remaining, released := c.Tick(1)
	assert.Equal(t, 0.0, remaining)
	assert.False(t, released)
	assert.Equal(t, entity.ControllerView{Type: "auto"}, c.View())

	c, err := junction.Manual(2, 3, "alice")
	require.NoError(t, err)
	assert.True(t, c.IsManual())
	assert.False(t, c.IsSystem())
	assert.Equal(t, entity.ControllerView{Type: "manual", Lane: 2, Remaining: 3, Owner: "alice"}, c.View())

	for _, want := range []float64{2, 1} {
		remaining, released = c.Tick(1)
		assert.Equal(t, want, remaining)
		assert.False(t, released)
		assert.True(t, c.IsManual())
	}
	remaining, released = c.Tick(1)
	assert.Equal(t, 0.0, remaining)
	assert.True(t, released)
	assert.False(t, c.IsManual())
}

func TestControllerTickFloor(t *testing.T) {
	c, err := junction.Manual(0, 0.5, junction.OwnerSystem)
	require.NoError(t, err)
	assert.True(t, c.IsSystem())
	remaining, released := c.Tick(1)
	assert.Equal(t, 0.0, remaining)
	assert.True(t, released)

	_, err = junction.Manual(0, 0, "bob")
	assert.ErrorIs(t, err, junction.ErrInvalidDuration)
}

func TestAlertBookCrossing(t *testing.T) {
	ts := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	b := junction.NewAlertBook(2, 50, 120)
	b.SetClock(func() time.Time { return ts })

	assert.Empty(t, b.Observe([]float64{50, 20}, 50))
	assert.Equal(t, []float64{50, 0}, b.Streaks())
	assert.Empty(t, b.Observe([]float64{50, 20}, 50))

	created := b.Observe([]float64{50, 20}, 50)
	require.Len(t, created, 1)
	assert.Equal(t, 0, created[0].Lane)
	assert.Equal(t, "Lane 1 at MAX_GREEN for prolonged period", created[0].Message)
	assert.Equal(t, ts, created[0].CreatedAt)
	assert.False(t, created[0].Acknowledged)
	assert.NotEmpty(t, created[0].ID)
	assert.Equal(t, []float64{150, 0}, b.Streaks())

	// 一次跨越只产生一个告警
	assert.Empty(t, b.Observe([]float64{50, 20}, 50))
	assert.Len(t, b.Alerts(), 1)

	// 确认后继续保持也不会重复告警，直到重置后再次跨越
	assert.Equal(t, 1, b.Acknowledge(0))
	assert.Empty(t, b.Observe([]float64{50, 20}, 50))
	assert.Empty(t, b.Observe([]float64{49.9, 20}, 50))
	assert.Equal(t, 0.0, b.Streaks()[0])
	for range 2 {
		assert.Empty(t, b.Observe([]float64{50, 20}, 50))
	}
	assert.Len(t, b.Observe([]float64{50, 20}, 50), 1)
	assert.Len(t, b.Alerts(), 2)
}

func TestAlertBookPendingSuppresses(t *testing.T) {
	b := junction.NewAlertBook(1, 50, 100)
	assert.Len(t, b.Observe([]float64{50}, 100), 1)
	// 重置后再次跨越，但旧告警未确认
	b.Observe([]float64{10}, 10)
	assert.Empty(t, b.Observe([]float64{50}, 100))
	assert.Len(t, b.Alerts(), 1)

	assert.Equal(t, 1, b.Acknowledge(0))
	assert.Equal(t, 0, b.Acknowledge(0))
	assert.True(t, b.Alerts()[0].Acknowledged)
}

func TestAlertBookAcknowledgeAllOfLane(t *testing.T) {
	b := junction.NewAlertBook(2, 50, 100)
	b.Load([]entity.Alert{
		{ID: "a", Lane: 1},
		{ID: "b", Lane: 1},
		{ID: "c", Lane: 0},
	})
	assert.Equal(t, 2, b.Acknowledge(1))
	alerts := b.Alerts()
	assert.True(t, alerts[0].Acknowledged)
	assert.True(t, alerts[1].Acknowledged)
	assert.False(t, alerts[2].Acknowledged)

	// 返回的是拷贝
	alerts[2].Acknowledged = true
	assert.False(t, b.Alerts()[2].Acknowledged)
}

func TestLights(t *testing.T) {
	assert.Equal(t, []mapv2.LightState{
		mapv2.LightState_LIGHT_STATE_RED,
		mapv2.LightState_LIGHT_STATE_GREEN,
		mapv2.LightState_LIGHT_STATE_RED,
	}, junction.Lights(3, 1))
	assert.NotContains(t, junction.Lights(3, 5), mapv2.LightState_LIGHT_STATE_GREEN)
}

package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loyalty-rewards-system/internal/config"
	"loyalty-rewards-system/internal/models"
)

func newTestCenter(t *testing.T, infoTTL, errorTTL time.Duration) *Center {
	t.Helper()
	c := NewCenter(&config.NotificationConfig{InfoTTL: infoTTL, ErrorTTL: errorTTL})
	t.Cleanup(c.Close)
	return c
}

func TestPushAssignsIDAndExpiry(t *testing.T) {
	c := newTestCenter(t, 10*time.Second, 15*time.Second)

	n := c.Success("purchase complete")
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, models.NotificationSuccess, n.Type)
	assert.Equal(t, 10*time.Second, n.ExpiresAt.Sub(n.CreatedAt))

	e := c.Error("purchase failed")
	assert.Equal(t, 15*time.Second, e.ExpiresAt.Sub(e.CreatedAt))
}

func TestListOldestFirst(t *testing.T) {
	c := newTestCenter(t, time.Minute, time.Minute)

	first := c.Info("one")
	second := c.Info("two")

	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
}

func TestDismissRemoves(t *testing.T) {
	c := newTestCenter(t, time.Minute, time.Minute)

	n := c.Info("temp")
	c.Dismiss(n.ID)
	assert.Empty(t, c.List())

	// Dismissing twice is a no-op.
	c.Dismiss(n.ID)
}

func TestNotificationsExpire(t *testing.T) {
	c := newTestCenter(t, 20*time.Millisecond, time.Minute)

	c.Info("short lived")
	keep := c.Error("long lived")

	require.Eventually(t, func() bool {
		list := c.List()
		return len(list) == 1 && list[0].ID == keep.ID
	}, time.Second, 5*time.Millisecond)
}

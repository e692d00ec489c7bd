package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"loyalty-rewards-system/internal/config"
	"loyalty-rewards-system/internal/models"
)

// Center holds the transient user-facing notifications. Entries expire
// on their own: success/info after the info TTL, errors after the longer
// error TTL.
type Center struct {
	infoTTL  time.Duration
	errorTTL time.Duration

	mu     sync.Mutex
	items  map[string]models.Notification
	timers map[string]*time.Timer
	now    func() time.Time
}

func NewCenter(cfg *config.NotificationConfig) *Center {
	return &Center{
		infoTTL:  cfg.InfoTTL,
		errorTTL: cfg.ErrorTTL,
		items:    make(map[string]models.Notification),
		timers:   make(map[string]*time.Timer),
		now:      time.Now,
	}
}

func (c *Center) ttlFor(t models.NotificationType) time.Duration {
	if t == models.NotificationError {
		return c.errorTTL
	}
	return c.infoTTL
}

// Push adds a notification and schedules its expiry.
func (c *Center) Push(t models.NotificationType, message string) models.Notification {
	now := c.now()
	n := models.Notification{
		ID:        uuid.NewString(),
		Type:      t,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttlFor(t)),
	}

	c.mu.Lock()
	c.items[n.ID] = n
	c.timers[n.ID] = time.AfterFunc(c.ttlFor(t), func() {
		c.Dismiss(n.ID)
	})
	c.mu.Unlock()

	return n
}

func (c *Center) Success(message string) models.Notification {
	return c.Push(models.NotificationSuccess, message)
}

func (c *Center) Error(message string) models.Notification {
	return c.Push(models.NotificationError, message)
}

func (c *Center) Info(message string) models.Notification {
	return c.Push(models.NotificationInfo, message)
}

// Dismiss removes a notification before its TTL runs out. Dismissing an
// already-expired ID is a no-op.
func (c *Center) Dismiss(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if timer, ok := c.timers[id]; ok {
		timer.Stop()
		delete(c.timers, id)
	}
	delete(c.items, id)
}

// List returns live notifications, oldest first.
func (c *Center) List() []models.Notification {
	now := c.now()
	c.mu.Lock()
	out := make([]models.Notification, 0, len(c.items))
	for _, n := range c.items {
		if n.ExpiresAt.After(now) {
			out = append(out, n)
		}
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Close stops all pending expiry timers.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, timer := range c.timers {
		timer.Stop()
		delete(c.timers, id)
	}
	c.items = make(map[string]models.Notification)
}

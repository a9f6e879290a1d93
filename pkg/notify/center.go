package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status is the lifecycle state of a notification.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusInfo    Status = "info"
)

// Notification is a single user-visible event. Pending notifications are
// always resolved to success or error; callers guarantee that with a
// deferred Resolve on every exit path.
type Notification struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Center keeps notifications and fans updates out to subscribers.
type Center struct {
	mu    sync.Mutex
	log   *zap.Logger
	items map[string]*Notification
	order []string
	subs  []chan Notification
}

// NewCenter creates a notification center.
func NewCenter(log *zap.Logger) *Center {
	if log == nil {
		log = zap.NewNop()
	}
	return &Center{
		log:   log,
		items: make(map[string]*Notification),
	}
}

// Subscribe returns a channel receiving every notification update. The
// channel is buffered; slow consumers drop updates rather than block the
// publisher.
func (c *Center) Subscribe() <-chan Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Notification, 64)
	c.subs = append(c.subs, ch)
	return ch
}

// Pending publishes a pending notification and returns its id for later
// resolution.
func (c *Center) Pending(title, message string) string {
	n := &Notification{
		ID:        uuid.New().String(),
		Status:    StatusPending,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	c.mu.Lock()
	c.items[n.ID] = n
	c.order = append(c.order, n.ID)
	c.mu.Unlock()

	c.log.Debug("notification pending", zap.String("id", n.ID), zap.String("title", title))
	c.publish(*n)
	return n.ID
}

// Resolve transitions a pending notification to success or error. Resolving
// twice, or resolving an unknown id, is an error so double-resolution bugs
// surface in tests.
func (c *Center) Resolve(id string, status Status, message string) error {
	if status != StatusSuccess && status != StatusError {
		return fmt.Errorf("notification can only resolve to success or error, got %q", status)
	}

	c.mu.Lock()
	n, exists := c.items[id]
	if !exists {
		c.mu.Unlock()
		return fmt.Errorf("notification '%s' not found", id)
	}
	if n.Status != StatusPending {
		c.mu.Unlock()
		return fmt.Errorf("notification '%s' already resolved to %s", id, n.Status)
	}
	n.Status = status
	n.Message = message
	n.UpdatedAt = time.Now()
	snapshot := *n
	c.mu.Unlock()

	c.log.Debug("notification resolved",
		zap.String("id", id), zap.String("status", string(status)))
	c.publish(snapshot)
	return nil
}

// Push publishes a one-shot notification that needs no resolution.
func (c *Center) Push(status Status, title, message string) string {
	n := &Notification{
		ID:        uuid.New().String(),
		Status:    status,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	c.mu.Lock()
	c.items[n.ID] = n
	c.order = append(c.order, n.ID)
	c.mu.Unlock()

	c.publish(*n)
	return n.ID
}

// Get returns a notification by id.
func (c *Center) Get(id string) (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, exists := c.items[id]
	if !exists {
		return Notification{}, false
	}
	return *n, true
}

// List returns all notifications in publication order.
func (c *Center) List() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Notification, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.items[id])
	}
	return out
}

// PendingCount returns the number of unresolved notifications.
func (c *Center) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, n := range c.items {
		if n.Status == StatusPending {
			count++
		}
	}
	return count
}

func (c *Center) publish(n Notification) {
	c.mu.Lock()
	subs := make([]chan Notification, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- n:
		default:
		}
	}
}

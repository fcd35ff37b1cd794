package memory

import (
	"sync"
	"time"

	"github.com/dcgate/dcgate/internal/domain"
)

// messageCache is the shared chat backing for hubs and private chats.
type messageCache struct {
	mu     sync.Mutex
	nextID uint64
	msgs   []domain.Message
	unread int
}

func (c *messageCache) append(from, text string, status bool) domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	msg := domain.Message{
		ID:     c.nextID,
		From:   from,
		Text:   text,
		Time:   time.Now(),
		Status: status,
	}
	c.msgs = append(c.msgs, msg)
	c.unread++
	return msg
}

func (c *messageCache) Messages(max int) []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := 0
	if max > 0 && len(c.msgs) > max {
		start = len(c.msgs) - max
	}
	out := make([]domain.Message, len(c.msgs)-start)
	copy(out, c.msgs[start:])
	return out
}

func (c *messageCache) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

func (c *messageCache) SetRead() {
	c.mu.Lock()
	c.unread = 0
	c.mu.Unlock()
}

func (c *messageCache) Clear() {
	c.mu.Lock()
	c.msgs = nil
	c.unread = 0
	c.mu.Unlock()
}

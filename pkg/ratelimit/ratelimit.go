package ratelimit

import (
	"sync"
	"time"
)

const DEFAULT_MOVE_COOLDOWN = 200 * time.Millisecond

type Entry struct {
	Topic    string
	Cooldown time.Duration
	LastSent time.Time
}

// Limiter gates outbound messages per topic. Topics without a configured
// cooldown are never limited.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

func (l *Limiter) Allow(topic string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exist := l.entries[topic]
	if !exist {
		return true
	}

	if !entry.LastSent.IsZero() && now.Sub(entry.LastSent) < entry.Cooldown {
		return false
	}

	entry.LastSent = now
	return true
}

func (l *Limiter) Cooldown(topic string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exist := l.entries[topic]
	if !exist {
		return 0, false
	}
	return entry.Cooldown, true
}

// Reset forgets every last-sent timestamp.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, entry := range l.entries {
		entry.LastSent = time.Time{}
	}
}

func New(cooldowns map[string]time.Duration) *Limiter {
	entries := make(map[string]*Entry, len(cooldowns))
	for topic, cooldown := range cooldowns {
		entries[topic] = &Entry{Topic: topic, Cooldown: cooldown}
	}
	return &Limiter{entries: entries}
}

func NewDefault() *Limiter {
	return New(map[string]time.Duration{
		"move": DEFAULT_MOVE_COOLDOWN,
	})
}

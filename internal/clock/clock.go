// Package clock provides strictly increasing timestamps for the local
// operation log and a timer abstraction for reconnect and periodic work.
package clock

import (
	"sync"
	"time"
)

// Monotonic выдает строго возрастающие timestamps (unix ms).
// Если системное время не сдвинулось или ушло назад, счетчик увеличивается на 1,
// поэтому две операции никогда не получают одинаковый timestamp.
type Monotonic struct {
	now  func() time.Time
	last int64
	mu   sync.Mutex
}

// NewMonotonic создает часы поверх системного времени.
func NewMonotonic() *Monotonic {
	return &Monotonic{now: time.Now}
}

// NewMonotonicWithSource создает часы с заданным источником времени.
// Используется в тестах.
func NewMonotonicWithSource(now func() time.Time) *Monotonic {
	return &Monotonic{now: now}
}

// Now возвращает следующий timestamp: max(wall, last+1).
func (m *Monotonic) Now() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	wall := m.now().UnixMilli()
	if wall <= m.last {
		wall = m.last + 1
	}
	m.last = wall
	return wall
}

// Observe поднимает счетчик до ts, если ts больше.
// Вызывается после перезапуска, чтобы новые операции шли после уже сохраненных.
func (m *Monotonic) Observe(ts int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ts > m.last {
		m.last = ts
	}
}

// Last возвращает последний выданный timestamp.
func (m *Monotonic) Last() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

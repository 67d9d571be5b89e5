package clocktest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_AdvanceFiresInOrder(t *testing.T) {
	s := NewScheduler()

	var fired []string
	s.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	s.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	s.AfterFunc(5*time.Second, func() { fired = append(fired, "c") })

	s.Advance(3 * time.Second)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, 1, s.Pending())

	s.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, 0, s.Pending())
}

func TestScheduler_Stop(t *testing.T) {
	s := NewScheduler()

	fired := false
	timer := s.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports false")

	s.Advance(time.Minute)
	assert.False(t, fired)
}

func TestScheduler_RearmInsideCallback(t *testing.T) {
	s := NewScheduler()

	count := 0
	var tick func()
	tick = func() {
		count++
		s.AfterFunc(10*time.Second, tick)
	}
	s.AfterFunc(10*time.Second, tick)

	s.Advance(35 * time.Second)
	assert.Equal(t, 3, count)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second, 10 * time.Second, 10 * time.Second}, s.Delays())
}

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMutable(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMutable(start)
	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestFixed(t *testing.T) {
	at := time.Unix(1699635246, 762000000).UTC()
	assert.Equal(t, at, Fixed(at).Now())
}

func TestSystem(t *testing.T) {
	now := System{}.Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now(), now, time.Second)
}

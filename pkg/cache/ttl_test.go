package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewTTL[float64](10 * time.Minute)
	c.now = func() time.Time { return now }

	_, ok := c.Get("usd_eur")
	assert.False(t, ok)

	c.Set("usd_eur", 0.92)
	v, ok := c.Get("usd_eur")
	assert.True(t, ok)
	assert.Equal(t, 0.92, v)

	now = now.Add(11 * time.Minute)
	_, ok = c.Get("usd_eur")
	assert.False(t, ok)
}

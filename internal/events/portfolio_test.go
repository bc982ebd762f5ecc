package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/chainguardian/internal/domain"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster(4)
	a := b.Subscribe()
	c := b.Subscribe()
	assert.Equal(t, 2, b.Subscribers())

	b.Publish(domain.PortfolioRecord{ID: "1"})

	assert.Equal(t, "1", (<-a).ID)
	assert.Equal(t, "1", (<-c).ID)
}

func TestBroadcaster_DropsForSlowReader(t *testing.T) {
	b := NewBroadcaster(1)
	ch := b.Subscribe()

	b.Publish(domain.PortfolioRecord{ID: "1"})
	b.Publish(domain.PortfolioRecord{ID: "2"})

	require.Len(t, ch, 1)
	assert.Equal(t, "1", (<-ch).ID)
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := NewBroadcaster(0)
	ch := b.Subscribe()
	b.Unsubscribe(ch)
	b.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, b.Subscribers())

	b.Publish(domain.PortfolioRecord{ID: "after"})
}

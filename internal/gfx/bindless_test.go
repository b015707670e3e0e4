package gfx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingWritesQueuedForEverySlot(t *testing.T) {
	p := newPendingWrites(3)
	p.queue(bindlessWrite{id: 4})
	p.queue(bindlessWrite{id: 5})

	for slot := 0; slot < 3; slot++ {
		assert.Equal(t, 2, p.len(slot))
	}

	writes := p.take(1)
	require.Len(t, writes, 2)
	assert.Equal(t, ImageID(4), writes[0].id)
	assert.Equal(t, ImageID(5), writes[1].id)

	assert.Equal(t, 0, p.len(1))
	assert.Equal(t, 2, p.len(0))
	assert.Equal(t, 2, p.len(2))
	assert.Nil(t, p.take(1))
}

func TestPendingWritesLatestWins(t *testing.T) {
	p := newPendingWrites(2)
	p.queue(bindlessWrite{id: 7, layout: 1})
	p.queue(bindlessWrite{id: 3})
	p.queue(bindlessWrite{id: 7, layout: 2})

	writes := p.take(0)
	require.Len(t, writes, 2)
	assert.Equal(t, ImageID(7), writes[0].id)
	assert.EqualValues(t, 2, writes[0].layout)
	assert.Equal(t, ImageID(3), writes[1].id)
}

func TestPendingWritesAfterTake(t *testing.T) {
	p := newPendingWrites(2)
	p.queue(bindlessWrite{id: 1})
	_ = p.take(0)
	p.queue(bindlessWrite{id: 2})

	assert.Len(t, p.take(0), 1)
	assert.Len(t, p.take(1), 2)
}

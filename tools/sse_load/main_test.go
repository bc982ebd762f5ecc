package main

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFrames(t *testing.T) {
	stream := ": ping\n\n" +
		"id: 3\nevent: portfolio\ndata: {\"id\":\"a\"}\n\n" +
		"id: 4\r\nevent: portfolio\r\ndata: {\"id\":\"b\"}\r\n\r\n"

	var got []frame
	err := readFrames(strings.NewReader(stream), func(f frame) { got = append(got, f) })
	require.ErrorIs(t, err, io.EOF)

	require.Len(t, got, 2)
	assert.Equal(t, frame{id: 3, event: "portfolio", data: `{"id":"a"}`}, got[0])
	assert.Equal(t, frame{id: 4, event: "portfolio", data: `{"id":"b"}`}, got[1])
}

func TestCheckFrame(t *testing.T) {
	var c counters

	last := checkFrame(frame{id: 1, event: "portfolio", data: `{"id":"r1","account":"main"}`}, 0, &c)
	assert.Equal(t, uint64(1), last)

	last = checkFrame(frame{id: 1, event: "portfolio", data: `{"id":"r1"}`}, last, &c)
	assert.Equal(t, uint64(1), last)

	last = checkFrame(frame{id: 2, event: "portfolio", data: `not json`}, last, &c)
	assert.Equal(t, uint64(2), last)

	last = checkFrame(frame{id: 9, event: "other"}, last, &c)
	assert.Equal(t, uint64(2), last)

	assert.Equal(t, int64(3), c.events.Load())
	assert.Equal(t, int64(1), c.outOfOrder.Load())
	assert.Equal(t, int64(1), c.badPayloads.Load())
}

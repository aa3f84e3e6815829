package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowenginer/meta-hub/event"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to event.Status
		want     bool
	}{
		{event.StatusPending, event.StatusProcessing, true},
		{event.StatusProcessing, event.StatusDelivered, true},
		{event.StatusProcessing, event.StatusFailed, true},
		{event.StatusProcessing, event.StatusDLQ, true},
		{event.StatusFailed, event.StatusPending, true},
		{event.StatusDLQ, event.StatusPending, true},
		{event.StatusPending, event.StatusCancelled, true},
		{event.StatusDelivered, event.StatusPending, false},
		{event.StatusCancelled, event.StatusPending, false},
		{event.StatusDLQ, event.StatusDelivered, false},
	}
	for _, c := range cases {
		got := event.CanTransition(c.from, c.to)
		assert.Equal(t, c.want, got, "transition %s -> %s", c.from, c.to)
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.True(t, event.StatusDelivered.IsTerminal())
	assert.True(t, event.StatusDLQ.IsTerminal())
	assert.True(t, event.StatusCancelled.IsTerminal())
	assert.False(t, event.StatusPending.IsTerminal())
	assert.False(t, event.StatusProcessing.IsTerminal())
	assert.False(t, event.StatusFailed.IsTerminal())
}

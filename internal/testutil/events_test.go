package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventGenerator_Deterministic(t *testing.T) {
	a := NewEventGenerator(42, 5).GenerateN(100)
	b := NewEventGenerator(42, 5).GenerateN(100)

	require.Len(t, a, 100)
	for i := range a {
		assert.Equal(t, a[i].Channel, b[i].Channel)
		assert.True(t, a[i].Event.Equal(b[i].Event), "event %d differs", i+1)
	}
}

func TestEventGenerator_Shape(t *testing.T) {
	gen := NewEventGenerator(7, 5)
	channels := map[string]bool{}
	for _, name := range gen.Channels() {
		channels[name] = true
	}

	for i, me := range gen.GenerateN(200) {
		n := i + 1
		assert.True(t, channels[me.Channel], "unexpected channel %q", me.Channel)
		assert.LessOrEqual(t, len(me.Event.Body), n)
		assert.Len(t, me.Event.Headers, n%(maxHeaders+1))
	}
}

func TestEventGenerator_Channels(t *testing.T) {
	assert.Equal(t, []string{"ch0", "ch1", "ch2"}, NewEventGenerator(1, 3).Channels())
	assert.Equal(t, []string{"ch0"}, NewEventGenerator(1, 0).Channels())
}

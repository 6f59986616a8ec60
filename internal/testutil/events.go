package testutil

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/roach88/chanq/internal/event"
)

// MockEvent is a generated event together with the channel it belongs to.
type MockEvent struct {
	Channel string
	Event   event.Event
}

// EventGenerator produces reproducible mock events spread over a fixed set
// of channels named ch0, ch1, ... The same seed always yields the same
// sequence of events.
//
// Event i has a body of up to i bytes, up to maxHeaders headers, and header
// values whose length varies with 61 mod i, so small indexes exercise empty
// bodies and empty header values.
//
// Thread-safety: Generate is safe for concurrent use, but the sequence is
// only reproducible when called from one goroutine.
type EventGenerator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	channels int
}

const maxHeaders = 8

// NewEventGenerator creates a generator over the given number of channels.
// channels below 1 is treated as 1.
func NewEventGenerator(seed int64, channels int) *EventGenerator {
	if channels < 1 {
		channels = 1
	}
	return &EventGenerator{rng: rand.New(rand.NewSource(seed)), channels: channels}
}

// Channels returns the channel names the generator spreads events over.
func (g *EventGenerator) Channels() []string {
	names := make([]string, g.channels)
	for i := range names {
		names[i] = fmt.Sprintf("ch%d", i)
	}
	return names
}

// Generate returns mock event number i (i >= 1).
func (g *EventGenerator) Generate(i int) MockEvent {
	g.mu.Lock()
	defer g.mu.Unlock()

	if i < 1 {
		i = 1
	}

	body := make([]byte, g.rng.Intn(i+1))
	g.rng.Read(body)

	headers := make(map[string]string)
	valueMargin := 61 % i
	for j := 0; j < i%(maxHeaders+1); j++ {
		key := fmt.Sprintf("h%d-%s", j, g.text(1+g.rng.Intn(8)))
		headers[key] = g.text(g.rng.Intn(valueMargin + 1))
	}

	return MockEvent{
		Channel: fmt.Sprintf("ch%d", g.rng.Intn(g.channels)),
		Event:   event.New(body, headers),
	}
}

// GenerateN returns events 1 through n.
func (g *EventGenerator) GenerateN(n int) []MockEvent {
	out := make([]MockEvent, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, g.Generate(i))
	}
	return out
}

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func (g *EventGenerator) text(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[g.rng.Intn(len(alphabet))]
	}
	return string(b)
}

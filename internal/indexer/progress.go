package indexer

import (
	"sync"
	"time"
)

type Stage string

const (
	StageStarted     Stage = "started"
	StageLoaded      Stage = "loaded"
	StageAnalyzed    Stage = "analyzed"
	StageSynthesized Stage = "synthesized"
	StageCommitted   Stage = "committed"
	StageCompleted   Stage = "completed"
	StageFailed      Stage = "failed"
)

// Event reports rebuild progress to live subscribers.
type Event struct {
	RunID         string    `json:"run_id"`
	Stage         Stage     `json:"stage"`
	Documents     int       `json:"documents,omitempty"`
	Sections      int       `json:"sections,omitempty"`
	Relationships int       `json:"relationships,omitempty"`
	Error         string    `json:"error,omitempty"`
	Time          time.Time `json:"time"`
}

// Broadcaster fans events out to subscribers. Slow subscribers lose events rather than
// blocking a rebuild.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

// Subscribe returns a buffered event channel and a func that unsubscribes and closes it.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Broadcaster) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

package events

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/StrataFoundation/strata-sub000/core/types"
)

const defaultHistoryLimit = 2048

// Record is a committed event as delivered to stream subscribers.
type Record struct {
	Sequence   uint64            `json:"sequence"`
	Cursor     string            `json:"cursor"`
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Timestamp  int64             `json:"timestamp"`
}

func (r Record) clone() Record {
	out := r
	if r.Attributes != nil {
		out.Attributes = make(map[string]string, len(r.Attributes))
		for k, v := range r.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

// Stream numbers emitted events, keeps a bounded history and fans them out
// to subscribers. Slow subscribers miss live records rather than block Emit.
type Stream struct {
	mu      sync.Mutex
	seq     uint64
	nextID  uint64
	limit   int
	history []Record
	subs    map[uint64]chan Record
	now     func() time.Time
}

// NewStream returns a stream retaining up to limit records; limit <= 0
// selects the default.
func NewStream(limit int) *Stream {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &Stream{
		limit: limit,
		subs:  make(map[uint64]chan Record),
		now:   time.Now,
	}
}

// Emit implements Emitter.
func (s *Stream) Emit(evt Event) {
	if s == nil || evt == nil {
		return
	}
	record := Record{
		ID:        uuid.NewString(),
		Type:      evt.EventType(),
		Timestamp: s.now().Unix(),
	}
	if wrapped, ok := evt.(interface{ Event() *types.Event }); ok {
		if raw := wrapped.Event(); raw != nil {
			record.Attributes = raw.Attributes
		}
	}
	record = record.clone()

	s.mu.Lock()
	s.seq++
	record.Sequence = s.seq
	record.Cursor = strconv.FormatUint(record.Sequence, 10)
	s.history = append(s.history, record)
	if len(s.history) > s.limit {
		trimmed := make([]Record, s.limit)
		copy(trimmed, s.history[len(s.history)-s.limit:])
		s.history = trimmed
	}
	for _, ch := range s.subs {
		select {
		case ch <- record.clone():
		default:
		}
	}
	s.mu.Unlock()
}

// Since returns retained records after cursor. An empty or malformed cursor
// returns the full history.
func (s *Stream) Since(cursor string) []Record {
	since := parseCursor(cursor)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.history))
	for _, record := range s.history {
		if record.Sequence > since {
			out = append(out, record.clone())
		}
	}
	return out
}

// Subscribe registers a subscriber for records after cursor. The returned
// backlog holds retained records the subscriber has not seen; cancel
// releases the channel and also runs when ctx ends.
func (s *Stream) Subscribe(ctx context.Context, cursor string) (<-chan Record, func(), []Record) {
	updates := make(chan Record, 32)
	since := parseCursor(cursor)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = updates
	backlog := make([]Record, 0, len(s.history))
	for _, record := range s.history {
		if record.Sequence > since {
			backlog = append(backlog, record.clone())
		}
	}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
			s.mu.Unlock()
		})
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return updates, cancel, backlog
}

func parseCursor(cursor string) uint64 {
	trimmed := strings.TrimSpace(cursor)
	if trimmed == "" {
		return 0
	}
	since, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0
	}
	return since
}

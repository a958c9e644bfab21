package history

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/StrataFoundation/strata-sub000/core/events"
	"github.com/StrataFoundation/strata-sub000/core/types"
	"github.com/StrataFoundation/strata-sub000/native/bonding"
)

// Recorder is an events.Emitter that writes trade events into a Store.
type Recorder struct {
	store  *Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder returns a recorder writing into store.
func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger, now: time.Now}
}

// Emit implements events.Emitter. Events other than trades are ignored.
func (r *Recorder) Emit(evt events.Event) {
	if r == nil || evt == nil {
		return
	}
	if typ := evt.EventType(); typ != bonding.EventTypeBuy && typ != bonding.EventTypeSell {
		return
	}
	wrapped, ok := evt.(interface{ Event() *types.Event })
	if !ok || wrapped.Event() == nil {
		return
	}
	trade, err := tradeFromEvent(wrapped.Event())
	if err != nil {
		r.logger.Warn("history: malformed trade event", "error", err)
		return
	}
	trade.CreatedAt = r.now().UTC()
	if err := r.store.Record(context.Background(), trade); err != nil {
		r.logger.Error("history: record trade", "bonding", trade.Bonding, "error", err)
	}
}

func tradeFromEvent(evt *types.Event) (*Trade, error) {
	attrs := evt.Attributes
	trade := &Trade{
		Bonding: attrs["bonding"],
		Trader:  attrs["trader"],
		Side:    "buy",
	}
	if evt.Type == bonding.EventTypeSell {
		trade.Side = "sell"
	}
	if trade.Bonding == "" {
		return nil, fmt.Errorf("missing bonding")
	}
	fields := []struct {
		key string
		dst *uint64
	}{
		{"price", &trade.Price},
		{"totalTarget", &trade.TotalTarget},
		{"baseRoyalty", &trade.BaseRoyalty},
		{"targetRoyalty", &trade.TargetRoyalty},
		{"reserves", &trade.Reserves},
		{"supply", &trade.Supply},
	}
	for _, f := range fields {
		value, err := strconv.ParseUint(attrs[f.key], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = value
	}
	return trade, nil
}

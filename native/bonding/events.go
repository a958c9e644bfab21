package bonding

import (
	"strconv"

	"github.com/gagliardetto/solana-go"

	"github.com/StrataFoundation/strata-sub000/core/events"
	"github.com/StrataFoundation/strata-sub000/core/types"
	"github.com/StrataFoundation/strata-sub000/native/bonding/curve"
)

const (
	// EventTypeProgramInitialized is emitted once the program-state record exists.
	EventTypeProgramInitialized = "bonding.program.initialized"
	// EventTypeCurveCreated is emitted when a curve record is stored.
	EventTypeCurveCreated = "bonding.curve.created"
	// EventTypeBondingCreated is emitted when a bonding is initialized.
	EventTypeBondingCreated = "bonding.created"
	// EventTypeBondingUpdated is emitted when general parameters change.
	EventTypeBondingUpdated = "bonding.updated"
	// EventTypeCurveUpdated is emitted when a bonding points at a new curve.
	EventTypeCurveUpdated = "bonding.curve.updated"
	// EventTypeReserveAuthorityUpdated is emitted on reserve authority rotation.
	EventTypeReserveAuthorityUpdated = "bonding.reserve_authority.updated"
	// EventTypeReservesTransferred is emitted when escrowed base leaves the bonding.
	EventTypeReservesTransferred = "bonding.reserves.transferred"
	// EventTypeBondingClosed is emitted when a bonding record is released.
	EventTypeBondingClosed = "bonding.closed"
	// EventTypeBuy is emitted after a successful buy.
	EventTypeBuy = "bonding.buy"
	// EventTypeSell is emitted after a successful sell.
	EventTypeSell = "bonding.sell"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// ProgramInitializedEvent reports the program-state address.
func ProgramInitializedEvent(state solana.PublicKey) *types.Event {
	return &types.Event{
		Type:       EventTypeProgramInitialized,
		Attributes: map[string]string{"state": state.String()},
	}
}

// CurveCreatedEvent reports a new curve record.
func CurveCreatedEvent(key solana.PublicKey, pieces int) *types.Event {
	return &types.Event{
		Type: EventTypeCurveCreated,
		Attributes: map[string]string{
			"curve":  key.String(),
			"pieces": strconv.Itoa(pieces),
		},
	}
}

// BondingCreatedEvent reports a new bonding.
func BondingCreatedEvent(key solana.PublicKey, b *TokenBonding) *types.Event {
	return &types.Event{
		Type: EventTypeBondingCreated,
		Attributes: map[string]string{
			"bonding":    key.String(),
			"baseMint":   b.BaseMint.String(),
			"targetMint": b.TargetMint.String(),
			"curve":      b.Curve.String(),
			"goLive":     strconv.FormatInt(b.GoLiveUnix, 10),
			"buyFrozen":  strconv.FormatBool(b.BuyFrozen),
		},
	}
}

// BondingUpdatedEvent reports a general-parameter update.
func BondingUpdatedEvent(key solana.PublicKey, b *TokenBonding) *types.Event {
	return &types.Event{
		Type: EventTypeBondingUpdated,
		Attributes: map[string]string{
			"bonding":          key.String(),
			"generalAuthority": optionalKey(b.GeneralAuthority),
			"buyFrozen":        strconv.FormatBool(b.BuyFrozen),
		},
	}
}

// CurveUpdatedEvent reports a curve rotation.
func CurveUpdatedEvent(key, curveKey solana.PublicKey) *types.Event {
	return &types.Event{
		Type: EventTypeCurveUpdated,
		Attributes: map[string]string{
			"bonding": key.String(),
			"curve":   curveKey.String(),
		},
	}
}

// ReserveAuthorityUpdatedEvent reports a reserve authority rotation.
func ReserveAuthorityUpdatedEvent(key solana.PublicKey, authority *solana.PublicKey) *types.Event {
	return &types.Event{
		Type: EventTypeReserveAuthorityUpdated,
		Attributes: map[string]string{
			"bonding":          key.String(),
			"reserveAuthority": optionalKey(authority),
		},
	}
}

// ReservesTransferredEvent reports base leaving the escrow outside a trade.
func ReservesTransferredEvent(key, destination solana.PublicKey, amount uint64) *types.Event {
	return &types.Event{
		Type: EventTypeReservesTransferred,
		Attributes: map[string]string{
			"bonding":     key.String(),
			"destination": destination.String(),
			"amount":      strconv.FormatUint(amount, 10),
		},
	}
}

// BondingClosedEvent reports a released bonding.
func BondingClosedEvent(key, refund solana.PublicKey) *types.Event {
	return &types.Event{
		Type: EventTypeBondingClosed,
		Attributes: map[string]string{
			"bonding": key.String(),
			"refund":  refund.String(),
		},
	}
}

// TradeEvent reports a completed buy or sell.
func TradeEvent(key, trader solana.PublicKey, result *TradeResult) *types.Event {
	typ := EventTypeBuy
	if result.Side == curve.Sell {
		typ = EventTypeSell
	}
	return &types.Event{
		Type: typ,
		Attributes: map[string]string{
			"bonding":       key.String(),
			"trader":        trader.String(),
			"price":         strconv.FormatUint(result.Price, 10),
			"totalTarget":   strconv.FormatUint(result.TotalTarget, 10),
			"baseRoyalty":   strconv.FormatUint(result.BaseRoyalty, 10),
			"targetRoyalty": strconv.FormatUint(result.TargetRoyalty, 10),
			"reserves":      strconv.FormatUint(result.ReserveBalanceFromBonding, 10),
			"supply":        strconv.FormatUint(result.SupplyFromBonding, 10),
		},
	}
}

func optionalKey(pk *solana.PublicKey) string {
	if pk == nil {
		return ""
	}
	return pk.String()
}

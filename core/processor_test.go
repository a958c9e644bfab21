package core

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/StrataFoundation/strata-sub000/core/events"
	"github.com/StrataFoundation/strata-sub000/core/state"
	"github.com/StrataFoundation/strata-sub000/native/bonding"
	"github.com/StrataFoundation/strata-sub000/native/bonding/curve"
	"github.com/StrataFoundation/strata-sub000/native/bonding/precise"
	"github.com/StrataFoundation/strata-sub000/storage"
)

type recorder struct{ types []string }

func (r *recorder) Emit(evt events.Event) { r.types = append(r.types, evt.EventType()) }

func pk(seed byte) solana.PublicKey {
	var out solana.PublicKey
	for i := range out {
		out[i] = seed
	}
	out[0] = 0x51
	return out
}

type setup struct {
	proc                            *Processor
	events                          *recorder
	bonding                         solana.PublicKey
	buyer, buyerBase, buyerTarget   solana.PublicKey
	baseMint, targetMint, authority solana.PublicKey
}

func newSetup(t *testing.T) *setup {
	t.Helper()
	rec := &recorder{}
	proc := NewProcessor(state.NewManager(storage.NewMemDB()),
		WithEmitter(rec),
		WithClock(func() int64 { return 1_700_000_000 }),
		WithMetrics(),
	)
	s := &setup{
		proc:        proc,
		events:      rec,
		buyer:       pk(1),
		buyerBase:   pk(2),
		buyerTarget: pk(3),
		baseMint:    pk(4),
		targetMint:  pk(5),
		authority:   pk(6),
	}
	targetAuthority, _, err := bonding.DeriveTargetAuthority(proc.ProgramID(), s.targetMint)
	require.NoError(t, err)
	require.NoError(t, proc.CreateMint(s.baseMint, 6, &s.authority, nil))
	require.NoError(t, proc.CreateMint(s.targetMint, 6, &targetAuthority, nil))
	require.NoError(t, proc.CreateAccount(s.buyerBase, s.baseMint, s.buyer))
	require.NoError(t, proc.CreateAccount(s.buyerTarget, s.targetMint, s.buyer))
	require.NoError(t, proc.MintTo(s.baseMint, s.buyerBase, s.authority, 50_000_000))

	curveKey := pk(7)
	require.NoError(t, proc.CreateCurve(curveKey, curve.Single(curve.ExponentialCurve{B: precise.New(5), Frac: 1})))
	general := s.authority
	s.bonding, _, err = proc.CreateTokenBonding(bonding.CreateBondingRequest{
		Curve:               curveKey,
		BaseMint:            s.baseMint,
		TargetMint:          s.targetMint,
		GeneralAuthority:    &general,
		ReserveAuthority:    &general,
		BuyBaseRoyalties:    s.buyerBase,
		BuyTargetRoyalties:  s.buyerTarget,
		SellBaseRoyalties:   s.buyerBase,
		SellTargetRoyalties: s.buyerTarget,
	})
	require.NoError(t, err)
	return s
}

func (s *setup) buy(amount, maxPrice uint64) (*bonding.TradeResult, error) {
	return s.proc.Buy(bonding.BuyRequest{
		Bonding:      s.bonding,
		Buyer:        s.buyer,
		Source:       s.buyerBase,
		Destination:  s.buyerTarget,
		TargetAmount: &amount,
		MaximumPrice: maxPrice,
	})
}

func TestProcessorCommitsTradesAndEvents(t *testing.T) {
	s := newSetup(t)
	require.Equal(t, []string{bonding.EventTypeCurveCreated, bonding.EventTypeBondingCreated}, s.events.types)

	result, err := s.buy(1_000_000, 5_000_000)
	require.NoError(t, err)
	require.Equal(t, uint64(5_000_000), result.Price)
	require.Equal(t, bonding.EventTypeBuy, s.events.types[len(s.events.types)-1])

	record, err := s.proc.Bonding(s.bonding)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000), record.SupplyFromBonding)

	acct, ok, err := s.proc.TokenAccount(s.buyerTarget)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1_000_000), acct.Amount)

	keys, err := s.proc.Bondings()
	require.NoError(t, err)
	require.Equal(t, []solana.PublicKey{s.bonding}, keys)
}

func TestProcessorRollsBackFailedTrades(t *testing.T) {
	s := newSetup(t)
	before := len(s.events.types)

	_, err := s.buy(1_000_000, 4_999_999)
	require.ErrorIs(t, err, bonding.ErrPriceTooHigh)
	require.Len(t, s.events.types, before)

	// the buyer's source cannot cover the price, so the transfer fails after
	// the record was staged
	_, err = s.buy(20_000_000, 100_000_000)
	require.ErrorIs(t, err, state.ErrInsufficientFunds)
	require.Len(t, s.events.types, before)

	record, err := s.proc.Bonding(s.bonding)
	require.NoError(t, err)
	require.Zero(t, record.SupplyFromBonding)
	require.Zero(t, record.ReserveBalanceFromBonding)
	info, _, err := s.proc.MintInfo(s.targetMint)
	require.NoError(t, err)
	require.Zero(t, info.Supply)
}

func TestProcessorQuoteIsReadOnly(t *testing.T) {
	s := newSetup(t)
	amount := uint64(2_000_000)
	quote, err := s.proc.QuoteBuy(bonding.BuyRequest{Bonding: s.bonding, TargetAmount: &amount, MaximumPrice: 10_000_000})
	require.NoError(t, err)
	require.Equal(t, uint64(10_000_000), quote.Price)

	record, err := s.proc.Bonding(s.bonding)
	require.NoError(t, err)
	require.Zero(t, record.SupplyFromBonding)

	_, err = s.buy(2_000_000, 10_000_000)
	require.NoError(t, err)
	sell, err := s.proc.QuoteSell(bonding.SellRequest{Bonding: s.bonding, TargetAmount: 1_000_000})
	require.NoError(t, err)
	require.Equal(t, uint64(5_000_000), sell.Price)

	phase, err := s.proc.Phase(s.bonding, 1_700_000_000)
	require.NoError(t, err)
	require.Equal(t, bonding.PhaseLive, phase)
}

func TestProcessorLifecycle(t *testing.T) {
	s := newSetup(t)
	_, err := s.buy(1_000_000, 5_000_000)
	require.NoError(t, err)
	_, err = s.proc.Sell(bonding.SellRequest{
		Bonding:      s.bonding,
		Seller:       s.buyer,
		Source:       s.buyerTarget,
		Destination:  s.buyerBase,
		TargetAmount: 1_000_000,
		MinimumPrice: 5_000_000,
	})
	require.NoError(t, err)

	err = s.proc.CloseTokenBonding(bonding.CloseBondingRequest{Bonding: s.bonding, Authority: s.authority, Refund: s.authority})
	require.NoError(t, err)
	require.Equal(t, bonding.EventTypeBondingClosed, s.events.types[len(s.events.types)-1])
	_, err = s.proc.Bonding(s.bonding)
	require.ErrorIs(t, err, bonding.ErrNotFound)

	info, _, err := s.proc.MintInfo(s.targetMint)
	require.NoError(t, err)
	require.NotNil(t, info.MintAuthority)
	require.True(t, info.MintAuthority.Equals(s.authority))
}

func TestProcessorRequiresManager(t *testing.T) {
	var p *Processor
	_, err := p.Bonding(pk(1))
	require.ErrorIs(t, err, errNilManager)
}

func TestProcessorTracesOperations(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	proc := NewProcessor(state.NewManager(storage.NewMemDB()), WithTracer(provider.Tracer("test")))

	mint, authority := pk(1), pk(2)
	require.NoError(t, proc.CreateMint(mint, 6, &authority, nil))
	require.Error(t, proc.CreateMint(mint, 6, &authority, nil))
	require.NoError(t, proc.CreateCurve(pk(3), curve.Single(curve.ExponentialCurve{B: precise.New(1), Frac: 1})))

	ended := spans.Ended()
	require.Len(t, ended, 3)
	require.Equal(t, "bonding.create_mint", ended[0].Name())
	require.Equal(t, otelcodes.Unset, ended[0].Status().Code)

	require.Equal(t, "bonding.create_mint", ended[1].Name())
	require.Equal(t, otelcodes.Error, ended[1].Status().Code)
	require.NotEmpty(t, ended[1].Events(), "error recorded on span")

	require.Equal(t, "bonding.create_curve", ended[2].Name())
	var eventCount int64 = -1
	for _, attr := range ended[2].Attributes() {
		if attr.Key == "bonding.events" {
			eventCount = attr.Value.AsInt64()
		}
	}
	require.Equal(t, int64(1), eventCount)
}

package core

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/StrataFoundation/strata-sub000/core/events"
	"github.com/StrataFoundation/strata-sub000/core/state"
	"github.com/StrataFoundation/strata-sub000/native/bonding"
	"github.com/StrataFoundation/strata-sub000/native/bonding/curve"
	"github.com/StrataFoundation/strata-sub000/observability"
)

var errNilManager = errors.New("core: state manager required")

// Processor runs every bonding operation as one ledger transaction. Events
// raised by the engine reach the downstream emitter only after the
// transaction commits.
type Processor struct {
	manager *state.Manager
	engine  *bonding.Engine
	emitter events.Emitter
	metrics *observability.BondingMetrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option customises a Processor.
type Option func(*Processor)

// WithEmitter forwards committed events to emitter.
func WithEmitter(emitter events.Emitter) Option {
	return func(p *Processor) {
		if emitter != nil {
			p.emitter = emitter
		}
	}
}

// WithLogger sets the structured logger for the processor and engine.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTracer replaces the global "strata/core" tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Processor) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}

// WithProgramID overrides the program that owns derived addresses.
func WithProgramID(id solana.PublicKey) Option {
	return func(p *Processor) { p.engine.SetProgramID(id) }
}

// WithClock overrides the clock used when requests carry no time.
func WithClock(now func() int64) Option {
	return func(p *Processor) { p.engine.SetNowFunc(now) }
}

// WithMetrics records operations on the shared prometheus registry.
func WithMetrics() Option {
	return func(p *Processor) { p.metrics = observability.Bonding() }
}

// NewProcessor wires an engine to manager.
func NewProcessor(manager *state.Manager, opts ...Option) *Processor {
	p := &Processor{
		manager: manager,
		engine:  bonding.NewEngine(),
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		tracer:  otel.Tracer("strata/core"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.engine.SetLogger(p.logger)
	return p
}

// ProgramID returns the program that owns derived addresses.
func (p *Processor) ProgramID() solana.PublicKey { return p.engine.ProgramID() }

func (p *Processor) observe(op string, start time.Time, span trace.Span, err error) {
	code := ""
	if err != nil {
		if c, ok := bonding.CodeOf(err); ok {
			code = c.String()
		} else {
			code = "Internal"
		}
		p.logger.Warn("bonding: operation failed", "operation", op, "code", code, "error", err)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, code)
		span.SetAttributes(attribute.String("bonding.error_code", code))
	}
	p.metrics.Observe(op, time.Since(start), code)
}

// execute runs fn inside a ledger transaction.
func (p *Processor) execute(op string, fn func(tx *state.Tx) error) error {
	if p == nil || p.manager == nil {
		return errNilManager
	}
	start := time.Now()
	_, span := p.tracer.Start(context.Background(), "bonding."+op,
		trace.WithAttributes(attribute.String("bonding.operation", op)))
	defer span.End()
	buf := new(events.Buffer)
	err := p.manager.Atomic(func(tx *state.Tx) error {
		p.engine.SetState(tx)
		p.engine.SetEmitter(buf)
		defer p.engine.SetState(nil)
		return fn(tx)
	})
	if err != nil {
		buf.Reset()
	} else {
		span.SetAttributes(attribute.Int("bonding.events", buf.Len()))
		buf.Flush(p.emitter)
	}
	p.observe(op, start, span, err)
	return err
}

// view runs fn against a discarded overlay.
func (p *Processor) view(fn func(tx *state.Tx) error) error {
	if p == nil || p.manager == nil {
		return errNilManager
	}
	return p.manager.View(func(tx *state.Tx) error {
		p.engine.SetState(tx)
		p.engine.SetEmitter(events.NoopEmitter{})
		defer p.engine.SetState(nil)
		return fn(tx)
	})
}

// InitializeProgramState creates the program-state singleton.
func (p *Processor) InitializeProgramState() (key solana.PublicKey, ps *bonding.ProgramState, err error) {
	err = p.execute("initialize_program_state", func(*state.Tx) error {
		key, ps, err = p.engine.InitializeProgramState()
		return err
	})
	return key, ps, err
}

// ProgramState returns the program-state singleton.
func (p *Processor) ProgramState() (ps *bonding.ProgramState, err error) {
	err = p.view(func(*state.Tx) error {
		ps, err = p.engine.ProgramState()
		return err
	})
	return ps, err
}

// CreateMint registers a mint on the local ledger.
func (p *Processor) CreateMint(mint solana.PublicKey, decimals uint8, authority, freeze *solana.PublicKey) error {
	return p.execute("create_mint", func(tx *state.Tx) error {
		return tx.CreateMint(mint, decimals, authority, freeze)
	})
}

// CreateAccount opens a token account on the local ledger.
func (p *Processor) CreateAccount(account, mint, owner solana.PublicKey) error {
	return p.execute("create_account", func(tx *state.Tx) error {
		return tx.InitializeAccount(account, mint, owner)
	})
}

// MintTo issues tokens on the local ledger.
func (p *Processor) MintTo(mint, destination, authority solana.PublicKey, amount uint64) error {
	return p.execute("mint_to", func(tx *state.Tx) error {
		return tx.MintTo(mint, destination, authority, amount)
	})
}

// CreateCurve stores a curve record.
func (p *Processor) CreateCurve(key solana.PublicKey, c curve.Curve) error {
	return p.execute("create_curve", func(*state.Tx) error {
		return p.engine.CreateCurve(bonding.CreateCurveRequest{Key: key, Curve: c})
	})
}

// CreateTokenBonding initializes a bonding.
func (p *Processor) CreateTokenBonding(req bonding.CreateBondingRequest) (key solana.PublicKey, record *bonding.TokenBonding, err error) {
	err = p.execute("create_token_bonding", func(*state.Tx) error {
		key, record, err = p.engine.CreateTokenBonding(req)
		return err
	})
	if err == nil {
		p.logger.Info("bonding: created", "bonding", key.String(), "curve", req.Curve.String())
	}
	return key, record, err
}

// UpdateTokenBonding replaces general parameters.
func (p *Processor) UpdateTokenBonding(req bonding.UpdateBondingRequest) (record *bonding.TokenBonding, err error) {
	err = p.execute("update_token_bonding", func(*state.Tx) error {
		record, err = p.engine.UpdateTokenBonding(req)
		return err
	})
	return record, err
}

// UpdateCurve points a bonding at another curve.
func (p *Processor) UpdateCurve(req bonding.UpdateCurveRequest) (record *bonding.TokenBonding, err error) {
	err = p.execute("update_curve", func(*state.Tx) error {
		record, err = p.engine.UpdateCurve(req)
		return err
	})
	return record, err
}

// UpdateReserveAuthority rotates or revokes the reserve authority.
func (p *Processor) UpdateReserveAuthority(req bonding.UpdateReserveAuthorityRequest) (record *bonding.TokenBonding, err error) {
	err = p.execute("update_reserve_authority", func(*state.Tx) error {
		record, err = p.engine.UpdateReserveAuthority(req)
		return err
	})
	return record, err
}

// TransferReserves moves escrowed base out of a bonding.
func (p *Processor) TransferReserves(req bonding.TransferReservesRequest) error {
	return p.execute("transfer_reserves", func(*state.Tx) error {
		return p.engine.TransferReserves(req)
	})
}

// CloseTokenBonding releases an empty bonding.
func (p *Processor) CloseTokenBonding(req bonding.CloseBondingRequest) error {
	return p.execute("close_token_bonding", func(*state.Tx) error {
		return p.engine.CloseTokenBonding(req)
	})
}

func (p *Processor) trade(op string, fn func() (*bonding.TradeResult, error)) (*bonding.TradeResult, error) {
	var result *bonding.TradeResult
	err := p.execute(op, func(*state.Tx) error {
		var err error
		result, err = fn()
		return err
	})
	if err != nil {
		return nil, err
	}
	p.metrics.RecordTrade(result.Side.String(), result.Price, result.BaseRoyalty, result.TargetRoyalty)
	return result, nil
}

// Buy executes a buy.
func (p *Processor) Buy(req bonding.BuyRequest) (*bonding.TradeResult, error) {
	return p.trade("buy", func() (*bonding.TradeResult, error) { return p.engine.Buy(req) })
}

// Sell executes a sell.
func (p *Processor) Sell(req bonding.SellRequest) (*bonding.TradeResult, error) {
	return p.trade("sell", func() (*bonding.TradeResult, error) { return p.engine.Sell(req) })
}

// BuyLegacy executes a buy through the v0 entry point.
func (p *Processor) BuyLegacy(req bonding.BuyRequest) (*bonding.TradeResult, error) {
	return p.trade("buy_v0", func() (*bonding.TradeResult, error) { return p.engine.BuyLegacy(req) })
}

// SellLegacy executes a sell through the v0 entry point.
func (p *Processor) SellLegacy(req bonding.SellRequest) (*bonding.TradeResult, error) {
	return p.trade("sell_v0", func() (*bonding.TradeResult, error) { return p.engine.SellLegacy(req) })
}

// QuoteBuy prices a buy without committing anything.
func (p *Processor) QuoteBuy(req bonding.BuyRequest) (result *bonding.TradeResult, err error) {
	err = p.view(func(*state.Tx) error {
		result, err = p.engine.QuoteBuy(req)
		return err
	})
	return result, err
}

// QuoteSell prices a sell without committing anything.
func (p *Processor) QuoteSell(req bonding.SellRequest) (result *bonding.TradeResult, err error) {
	err = p.view(func(*state.Tx) error {
		result, err = p.engine.QuoteSell(req)
		return err
	})
	return result, err
}

// Bonding returns a stored bonding record.
func (p *Processor) Bonding(key solana.PublicKey) (record *bonding.TokenBonding, err error) {
	err = p.view(func(*state.Tx) error {
		record, err = p.engine.Bonding(key)
		return err
	})
	return record, err
}

// Curve returns a stored curve record.
func (p *Processor) Curve(key solana.PublicKey) (c *curve.Curve, err error) {
	err = p.view(func(*state.Tx) error {
		c, err = p.engine.Curve(key)
		return err
	})
	return c, err
}

// Phase reports the lifecycle phase of a bonding at now.
func (p *Processor) Phase(key solana.PublicKey, now int64) (phase bonding.Phase, err error) {
	err = p.view(func(*state.Tx) error {
		phase, err = p.engine.Phase(key, now)
		return err
	})
	return phase, err
}

// Bondings lists stored bonding keys.
func (p *Processor) Bondings() (keys []solana.PublicKey, err error) {
	err = p.view(func(tx *state.Tx) error {
		keys, err = tx.Bondings()
		return err
	})
	return keys, err
}

// Curves lists stored curve keys.
func (p *Processor) Curves() (keys []solana.PublicKey, err error) {
	err = p.view(func(tx *state.Tx) error {
		keys, err = tx.Curves()
		return err
	})
	return keys, err
}

// TokenAccount returns a ledger token account.
func (p *Processor) TokenAccount(account solana.PublicKey) (info *bonding.TokenAccountInfo, ok bool, err error) {
	err = p.view(func(tx *state.Tx) error {
		info, ok, err = tx.TokenAccount(account)
		return err
	})
	return info, ok, err
}

// MintInfo returns a ledger mint.
func (p *Processor) MintInfo(mint solana.PublicKey) (info *bonding.MintInfo, ok bool, err error) {
	err = p.view(func(tx *state.Tx) error {
		info, ok, err = tx.MintInfo(mint)
		return err
	})
	return info, ok, err
}

package bonding

import (
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/StrataFoundation/strata-sub000/core/events"
	"github.com/StrataFoundation/strata-sub000/core/types"
	"github.com/StrataFoundation/strata-sub000/native/bonding/curve"
)

// TokenProgram is the fungible-token capability set the engine drives.
// Implementations must fail atomically with the enclosing transaction.
type TokenProgram interface {
	MintInfo(mint solana.PublicKey) (*MintInfo, bool, error)
	TokenAccount(account solana.PublicKey) (*TokenAccountInfo, bool, error)
	Transfer(from, to, authority solana.PublicKey, amount uint64) error
	MintTo(mint, destination, authority solana.PublicKey, amount uint64) error
	Burn(source, mint, authority solana.PublicKey, amount uint64) error
	SetMintAuthority(mint, current solana.PublicKey, next *solana.PublicKey) error
	InitializeAccount(account, mint, owner solana.PublicKey) error
	CloseAccount(account, refund, authority solana.PublicKey) error
}

type engineState interface {
	TokenProgram
	BondingGet(key solana.PublicKey) (*TokenBonding, bool, error)
	BondingPut(key solana.PublicKey, bonding *TokenBonding) error
	BondingClose(key, refund solana.PublicKey) error
	CurveGet(key solana.PublicKey) (*curve.Curve, bool, error)
	CurvePut(key solana.PublicKey, c *curve.Curve) error
	ProgramStateGet(key solana.PublicKey) (*ProgramState, bool, error)
	ProgramStatePut(key solana.PublicKey, state *ProgramState) error
}

// Engine prices trades against bonding curves and drives the lifecycle of
// bonding records.
type Engine struct {
	state     engineState
	emitter   events.Emitter
	nowFn     func() int64
	programID solana.PublicKey
	logger    *slog.Logger
}

// NewEngine constructs a bonding engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
		programID: ProgramID,
		logger:    slog.Default(),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the clock used to stamp requests that carry no time.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetProgramID overrides the program that owns derived addresses.
func (e *Engine) SetProgramID(id solana.PublicKey) {
	if id.IsZero() {
		e.programID = ProgramID
		return
	}
	e.programID = id
}

// ProgramID returns the program that owns derived addresses.
func (e *Engine) ProgramID() solana.PublicKey { return e.programID }

// SetLogger configures the structured logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now(requested int64) int64 {
	if requested != 0 {
		return requested
	}
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) log() *slog.Logger {
	if e == nil || e.logger == nil {
		return slog.Default()
	}
	return e.logger
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) loadBonding(key solana.PublicKey) (*TokenBonding, error) {
	bonding, ok, err := e.state.BondingGet(key)
	if err != nil {
		return nil, err
	}
	if !ok || bonding == nil {
		return nil, newError(CodeNotFound, "bonding %s", key)
	}
	return bonding, nil
}

func (e *Engine) loadCurve(key solana.PublicKey) (*curve.Curve, error) {
	c, ok, err := e.state.CurveGet(key)
	if err != nil {
		return nil, err
	}
	if !ok || c == nil {
		return nil, newError(CodeNotFound, "curve %s", key)
	}
	return c, nil
}

func (e *Engine) loadMint(key solana.PublicKey) (*MintInfo, error) {
	mint, ok, err := e.state.MintInfo(key)
	if err != nil {
		return nil, err
	}
	if !ok || mint == nil {
		return nil, newError(CodeNotFound, "mint %s", key)
	}
	return mint, nil
}

func (e *Engine) loadAccount(key solana.PublicKey) (*TokenAccountInfo, error) {
	account, ok, err := e.state.TokenAccount(key)
	if err != nil {
		return nil, err
	}
	if !ok || account == nil {
		return nil, newError(CodeNotFound, "token account %s", key)
	}
	return account, nil
}

// Bonding returns the stored bonding record.
func (e *Engine) Bonding(key solana.PublicKey) (*TokenBonding, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.loadBonding(key)
}

// Curve returns the stored curve record.
func (e *Engine) Curve(key solana.PublicKey) (*curve.Curve, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.loadCurve(key)
}

// Phase reports the lifecycle state of a bonding at now.
func (e *Engine) Phase(key solana.PublicKey, now int64) (Phase, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	bonding, err := e.loadBonding(key)
	if err != nil {
		return 0, err
	}
	return bonding.Phase(e.now(now)), nil
}

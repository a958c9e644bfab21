package bonding

import (
	"github.com/gagliardetto/solana-go"

	"github.com/StrataFoundation/strata-sub000/native/bonding/curve"
)

// LegacyBackfillCutoff is the go-live boundary (2022-03-01 UTC) below which
// bondings created before shadow accounting existed get their counters seeded
// from observed balances on the first trade.
const LegacyBackfillCutoff int64 = 1646092800

// TokenBonding is the persisted bonding record. Field order matches the
// serialized layout and must only ever be appended to.
type TokenBonding struct {
	BaseMint   solana.PublicKey
	TargetMint solana.PublicKey

	GeneralAuthority *solana.PublicKey
	ReserveAuthority *solana.PublicKey
	CurveAuthority   *solana.PublicKey

	BaseStorage solana.PublicKey

	BuyBaseRoyalties    solana.PublicKey
	BuyTargetRoyalties  solana.PublicKey
	SellBaseRoyalties   solana.PublicKey
	SellTargetRoyalties solana.PublicKey

	BuyBaseRoyaltyPercentage    uint32
	BuyTargetRoyaltyPercentage  uint32
	SellBaseRoyaltyPercentage   uint32
	SellTargetRoyaltyPercentage uint32

	Curve solana.PublicKey

	MintCap     *uint64
	PurchaseCap *uint64

	GoLiveUnix    int64
	FreezeBuyUnix *int64
	CreatedAtUnix int64

	BuyFrozen  bool
	SellFrozen bool

	Index                    uint16
	Bump                     uint8
	BaseStorageBump          uint8
	TargetMintAuthorityBump  uint8
	BaseStorageAuthorityBump *uint8

	ReserveBalanceFromBonding uint64
	SupplyFromBonding         uint64

	IgnoreExternalReserveChanges bool
	IgnoreExternalSupplyChanges  bool
}

// Clone returns a deep copy of the record.
func (b *TokenBonding) Clone() *TokenBonding {
	if b == nil {
		return nil
	}
	clone := *b
	clone.GeneralAuthority = clonePubkey(b.GeneralAuthority)
	clone.ReserveAuthority = clonePubkey(b.ReserveAuthority)
	clone.CurveAuthority = clonePubkey(b.CurveAuthority)
	clone.MintCap = cloneUint64(b.MintCap)
	clone.PurchaseCap = cloneUint64(b.PurchaseCap)
	if b.FreezeBuyUnix != nil {
		v := *b.FreezeBuyUnix
		clone.FreezeBuyUnix = &v
	}
	if b.BaseStorageAuthorityBump != nil {
		v := *b.BaseStorageAuthorityBump
		clone.BaseStorageAuthorityBump = &v
	}
	return &clone
}

// Phase is the lifecycle state of a bonding at a given instant.
type Phase uint8

const (
	PhasePreLive Phase = iota
	PhaseLive
	PhaseFrozenBuy
	PhaseSellOnly
)

func (p Phase) String() string {
	switch p {
	case PhasePreLive:
		return "pre-live"
	case PhaseLive:
		return "live"
	case PhaseFrozenBuy:
		return "frozen-buy"
	case PhaseSellOnly:
		return "sell-only"
	default:
		return "unknown"
	}
}

// Phase reports the lifecycle state at now.
func (b *TokenBonding) Phase(now int64) Phase {
	switch {
	case now < b.GoLiveUnix:
		return PhasePreLive
	case b.BuyFrozen:
		return PhaseSellOnly
	case b.FreezeBuyUnix != nil && *b.FreezeBuyUnix < now:
		return PhaseFrozenBuy
	default:
		return PhaseLive
	}
}

// ProgramState is the singleton record describing the native-currency escrow.
type ProgramState struct {
	WrappedSolMint    solana.PublicKey
	SolStorage        solana.PublicKey
	MintAuthorityBump uint8
	SolStorageBump    uint8
	Bump              uint8
	// LegacyReserves is the trailing reserves counter of records written in
	// the older layout. It is kept so those records re-encode unchanged; new
	// records leave it nil and track reserves per bonding only.
	LegacyReserves *uint64
}

// MintInfo is the engine's view of a fungible mint.
type MintInfo struct {
	Decimals        uint8
	Supply          uint64
	MintAuthority   *solana.PublicKey
	FreezeAuthority *solana.PublicKey
}

// TokenAccountInfo is the engine's view of a token account.
type TokenAccountInfo struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

// BuyRequest buys either an exact target amount or with an exact base
// amount. Exactly one of TargetAmount and BaseAmount must be set.
type BuyRequest struct {
	Bonding     solana.PublicKey
	Buyer       solana.PublicKey
	Source      solana.PublicKey
	Destination solana.PublicKey

	TargetAmount *uint64
	MaximumPrice uint64

	BaseAmount          *uint64
	MinimumTargetAmount uint64

	RootEstimates *curve.RootEstimates
	Now           int64
	// NativeEscrow marks a trade routed through the native-currency escrow.
	NativeEscrow bool
}

// SellRequest burns TargetAmount from Source and pays base to Destination.
type SellRequest struct {
	Bonding     solana.PublicKey
	Seller      solana.PublicKey
	Source      solana.PublicKey
	Destination solana.PublicKey

	TargetAmount uint64
	MinimumPrice uint64

	RootEstimates *curve.RootEstimates
	Now           int64
	NativeEscrow  bool
}

// TradeResult is the outcome of a buy or sell in smallest units.
type TradeResult struct {
	Side          curve.Side
	Price         uint64
	TotalTarget   uint64
	BaseRoyalty   uint64
	TargetRoyalty uint64

	ReserveBalanceFromBonding uint64
	SupplyFromBonding         uint64

	Directives []Directive
}

// CreateCurveRequest stores a new immutable curve record.
type CreateCurveRequest struct {
	Key   solana.PublicKey
	Curve curve.Curve
}

// CreateBondingRequest initializes a bonding between BaseMint and TargetMint.
type CreateBondingRequest struct {
	Curve      solana.PublicKey
	BaseMint   solana.PublicKey
	TargetMint solana.PublicKey
	Index      uint16

	GeneralAuthority *solana.PublicKey
	ReserveAuthority *solana.PublicKey
	CurveAuthority   *solana.PublicKey

	BuyBaseRoyalties    solana.PublicKey
	BuyTargetRoyalties  solana.PublicKey
	SellBaseRoyalties   solana.PublicKey
	SellTargetRoyalties solana.PublicKey

	BuyBaseRoyaltyPercentage    uint32
	BuyTargetRoyaltyPercentage  uint32
	SellBaseRoyaltyPercentage   uint32
	SellTargetRoyaltyPercentage uint32

	MintCap     *uint64
	PurchaseCap *uint64

	GoLiveUnix    int64
	FreezeBuyUnix *int64
	BuyFrozen     bool
	SellFrozen    bool

	IgnoreExternalReserveChanges bool
	IgnoreExternalSupplyChanges  bool
	InitialReservesPad           uint64
	InitialSupplyPad             uint64

	Now int64
}

// UpdateBondingRequest replaces the general-authority controlled parameters.
type UpdateBondingRequest struct {
	Bonding   solana.PublicKey
	Authority solana.PublicKey

	BuyBaseRoyalties    solana.PublicKey
	BuyTargetRoyalties  solana.PublicKey
	SellBaseRoyalties   solana.PublicKey
	SellTargetRoyalties solana.PublicKey

	BuyBaseRoyaltyPercentage    uint32
	BuyTargetRoyaltyPercentage  uint32
	SellBaseRoyaltyPercentage   uint32
	SellTargetRoyaltyPercentage uint32

	BuyFrozen bool
	// GeneralAuthority replaces the current authority; nil locks the bonding.
	GeneralAuthority *solana.PublicKey
}

// UpdateCurveRequest points a bonding at another curve record.
type UpdateCurveRequest struct {
	Bonding        solana.PublicKey
	Authority      solana.PublicKey
	Curve          solana.PublicKey
	CurveAuthority *solana.PublicKey
}

// UpdateReserveAuthorityRequest rotates or revokes the reserve authority.
type UpdateReserveAuthorityRequest struct {
	Bonding             solana.PublicKey
	Authority           solana.PublicKey
	NewReserveAuthority *solana.PublicKey
}

// TransferReservesRequest moves escrowed base out of the bonding.
type TransferReservesRequest struct {
	Bonding      solana.PublicKey
	Authority    solana.PublicKey
	Destination  solana.PublicKey
	Amount       uint64
	NativeEscrow bool
}

// CloseBondingRequest releases an empty bonding.
type CloseBondingRequest struct {
	Bonding   solana.PublicKey
	Authority solana.PublicKey
	Refund    solana.PublicKey
}

func clonePubkey(pk *solana.PublicKey) *solana.PublicKey {
	if pk == nil {
		return nil
	}
	v := *pk
	return &v
}

func cloneUint64(v *uint64) *uint64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

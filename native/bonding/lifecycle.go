package bonding

import (
	"github.com/gagliardetto/solana-go"
)

// InitializeProgramState creates the singleton record that anchors the
// native-currency escrow.
func (e *Engine) InitializeProgramState() (solana.PublicKey, *ProgramState, error) {
	if err := e.ready(); err != nil {
		return solana.PublicKey{}, nil, err
	}
	key, bump, err := DeriveProgramState(e.programID)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	if _, ok, err := e.state.ProgramStateGet(key); err != nil {
		return solana.PublicKey{}, nil, err
	} else if ok {
		return solana.PublicKey{}, nil, newError(CodeAlreadyExists, "program state %s", key)
	}
	solStorage, solStorageBump, err := solana.FindProgramAddress([][]byte{[]byte(seedSolStorage)}, e.programID)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	_, mintAuthorityBump, err := solana.FindProgramAddress([][]byte{[]byte(seedWrappedAuthority)}, e.programID)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	state := &ProgramState{
		WrappedSolMint:    NativeMint,
		SolStorage:        solStorage,
		MintAuthorityBump: mintAuthorityBump,
		SolStorageBump:    solStorageBump,
		Bump:              bump,
	}
	if err := e.state.ProgramStatePut(key, state); err != nil {
		return solana.PublicKey{}, nil, err
	}
	e.emit(ProgramInitializedEvent(key))
	return key, state, nil
}

// ProgramState returns the singleton record.
func (e *Engine) ProgramState() (*ProgramState, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	key, _, err := DeriveProgramState(e.programID)
	if err != nil {
		return nil, err
	}
	state, ok, err := e.state.ProgramStateGet(key)
	if err != nil {
		return nil, err
	}
	if !ok || state == nil {
		return nil, newError(CodeNotFound, "program state %s", key)
	}
	return state, nil
}

// CreateCurve validates and stores an immutable curve record.
func (e *Engine) CreateCurve(req CreateCurveRequest) error {
	if err := e.ready(); err != nil {
		return err
	}
	if req.Key.IsZero() {
		return newError(CodeInvalidArgs, "curve key required")
	}
	if err := req.Curve.Validate(); err != nil {
		return fromCurve(err)
	}
	if _, ok, err := e.state.CurveGet(req.Key); err != nil {
		return err
	} else if ok {
		return newError(CodeAlreadyExists, "curve %s", req.Key)
	}
	c := req.Curve
	if err := e.state.CurvePut(req.Key, &c); err != nil {
		return err
	}
	e.emit(CurveCreatedEvent(req.Key, len(c.Definition.Pieces)))
	return nil
}

// validateDestination accepts an uninitialized account or one holding mint.
func (e *Engine) validateDestination(account, mint solana.PublicKey, role string) error {
	info, ok, err := e.state.TokenAccount(account)
	if err != nil {
		return err
	}
	if !ok || info == nil {
		return nil
	}
	if !info.Mint.Equals(mint) {
		return newError(CodeInvalidMint, "%s %s holds %s, want %s", role, account, info.Mint, mint)
	}
	return nil
}

type royaltyDestinations struct {
	buyBase, buyTarget, sellBase, sellTarget solana.PublicKey
}

func (e *Engine) validateRoyalties(dest royaltyDestinations, baseMint, targetMint solana.PublicKey) error {
	if err := e.validateDestination(dest.buyBase, baseMint, "buy base royalties"); err != nil {
		return err
	}
	if err := e.validateDestination(dest.buyTarget, targetMint, "buy target royalties"); err != nil {
		return err
	}
	if err := e.validateDestination(dest.sellBase, baseMint, "sell base royalties"); err != nil {
		return err
	}
	return e.validateDestination(dest.sellTarget, targetMint, "sell target royalties")
}

func ownedBy(authority *solana.PublicKey, owner solana.PublicKey) bool {
	return authority != nil && authority.Equals(owner)
}

// CreateTokenBonding initializes a bonding for req.TargetMint at req.Index
// and returns its address.
func (e *Engine) CreateTokenBonding(req CreateBondingRequest) (solana.PublicKey, *TokenBonding, error) {
	var zero solana.PublicKey
	if err := e.ready(); err != nil {
		return zero, nil, err
	}
	if (req.InitialReservesPad != 0 || req.InitialSupplyPad != 0) &&
		!(req.IgnoreExternalReserveChanges && req.IgnoreExternalSupplyChanges) {
		return zero, nil, newError(CodeInvalidPad, "initial pads require both ignore flags")
	}
	c, err := e.loadCurve(req.Curve)
	if err != nil {
		return zero, nil, err
	}
	if err := c.Validate(); err != nil {
		return zero, nil, fromCurve(err)
	}
	if _, err := e.loadMint(req.BaseMint); err != nil {
		return zero, nil, err
	}
	targetMint, err := e.loadMint(req.TargetMint)
	if err != nil {
		return zero, nil, err
	}
	addrs, err := DeriveAddresses(e.programID, req.TargetMint, req.Index)
	if err != nil {
		return zero, nil, err
	}
	if _, ok, err := e.state.BondingGet(addrs.Bonding); err != nil {
		return zero, nil, err
	} else if ok {
		return zero, nil, newError(CodeAlreadyExists, "bonding %s", addrs.Bonding)
	}
	if err := e.validateRoyalties(royaltyDestinations{
		buyBase:    req.BuyBaseRoyalties,
		buyTarget:  req.BuyTargetRoyalties,
		sellBase:   req.SellBaseRoyalties,
		sellTarget: req.SellTargetRoyalties,
	}, req.BaseMint, req.TargetMint); err != nil {
		return zero, nil, err
	}

	now := e.now(req.Now)
	goLive := req.GoLiveUnix
	if goLive < now {
		goLive = now
	}
	buyFrozen := req.BuyFrozen ||
		!ownedBy(targetMint.MintAuthority, addrs.TargetAuthority) ||
		(targetMint.FreezeAuthority != nil && !targetMint.FreezeAuthority.Equals(addrs.TargetAuthority))

	storageAuthorityBump := addrs.StorageAuthorityBump
	bonding := &TokenBonding{
		BaseMint:                     req.BaseMint,
		TargetMint:                   req.TargetMint,
		GeneralAuthority:             clonePubkey(req.GeneralAuthority),
		ReserveAuthority:             clonePubkey(req.ReserveAuthority),
		CurveAuthority:               clonePubkey(req.CurveAuthority),
		BaseStorage:                  addrs.BaseStorage,
		BuyBaseRoyalties:             req.BuyBaseRoyalties,
		BuyTargetRoyalties:           req.BuyTargetRoyalties,
		SellBaseRoyalties:            req.SellBaseRoyalties,
		SellTargetRoyalties:          req.SellTargetRoyalties,
		BuyBaseRoyaltyPercentage:     req.BuyBaseRoyaltyPercentage,
		BuyTargetRoyaltyPercentage:   req.BuyTargetRoyaltyPercentage,
		SellBaseRoyaltyPercentage:    req.SellBaseRoyaltyPercentage,
		SellTargetRoyaltyPercentage:  req.SellTargetRoyaltyPercentage,
		Curve:                        req.Curve,
		MintCap:                      cloneUint64(req.MintCap),
		PurchaseCap:                  cloneUint64(req.PurchaseCap),
		GoLiveUnix:                   goLive,
		CreatedAtUnix:                now,
		BuyFrozen:                    buyFrozen,
		SellFrozen:                   req.SellFrozen,
		Index:                        req.Index,
		Bump:                         addrs.Bump,
		BaseStorageBump:              addrs.BaseStorageBump,
		TargetMintAuthorityBump:      addrs.TargetAuthorityBump,
		BaseStorageAuthorityBump:     &storageAuthorityBump,
		ReserveBalanceFromBonding:    req.InitialReservesPad,
		SupplyFromBonding:            req.InitialSupplyPad,
		IgnoreExternalReserveChanges: req.IgnoreExternalReserveChanges,
		IgnoreExternalSupplyChanges:  req.IgnoreExternalSupplyChanges,
	}
	if req.FreezeBuyUnix != nil {
		v := *req.FreezeBuyUnix
		bonding.FreezeBuyUnix = &v
	}

	if err := e.state.InitializeAccount(addrs.BaseStorage, req.BaseMint, addrs.StorageAuthority); err != nil {
		return zero, nil, err
	}
	if err := e.state.BondingPut(addrs.Bonding, bonding); err != nil {
		return zero, nil, err
	}
	e.emit(BondingCreatedEvent(addrs.Bonding, bonding))
	if buyFrozen && !req.BuyFrozen {
		e.log().Info("bonding: created sell-only, curve does not control target mint",
			"bonding", addrs.Bonding.String(),
			"targetMint", req.TargetMint.String())
	}
	return addrs.Bonding, bonding.Clone(), nil
}

func requireAuthority(authority *solana.PublicKey, signer solana.PublicKey, role string) error {
	if authority == nil {
		return newError(CodeNoAuthority, "%s authority not set", role)
	}
	if !authority.Equals(signer) {
		return newError(CodeInvalidAuthority, "%s authority is %s", role, *authority)
	}
	return nil
}

// UpdateTokenBonding replaces royalty parameters, the buy freeze and the
// general authority. Go-live and caps are immutable.
func (e *Engine) UpdateTokenBonding(req UpdateBondingRequest) (*TokenBonding, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	bonding, err := e.loadBonding(req.Bonding)
	if err != nil {
		return nil, err
	}
	if err := requireAuthority(bonding.GeneralAuthority, req.Authority, "general"); err != nil {
		return nil, err
	}
	if err := e.validateRoyalties(royaltyDestinations{
		buyBase:    req.BuyBaseRoyalties,
		buyTarget:  req.BuyTargetRoyalties,
		sellBase:   req.SellBaseRoyalties,
		sellTarget: req.SellTargetRoyalties,
	}, bonding.BaseMint, bonding.TargetMint); err != nil {
		return nil, err
	}
	bonding.BuyBaseRoyalties = req.BuyBaseRoyalties
	bonding.BuyTargetRoyalties = req.BuyTargetRoyalties
	bonding.SellBaseRoyalties = req.SellBaseRoyalties
	bonding.SellTargetRoyalties = req.SellTargetRoyalties
	bonding.BuyBaseRoyaltyPercentage = req.BuyBaseRoyaltyPercentage
	bonding.BuyTargetRoyaltyPercentage = req.BuyTargetRoyaltyPercentage
	bonding.SellBaseRoyaltyPercentage = req.SellBaseRoyaltyPercentage
	bonding.SellTargetRoyaltyPercentage = req.SellTargetRoyaltyPercentage
	bonding.BuyFrozen = req.BuyFrozen
	bonding.GeneralAuthority = clonePubkey(req.GeneralAuthority)
	if err := e.state.BondingPut(req.Bonding, bonding); err != nil {
		return nil, err
	}
	e.emit(BondingUpdatedEvent(req.Bonding, bonding))
	return bonding, nil
}

// UpdateCurve points the bonding at another stored curve and may rotate the
// curve authority.
func (e *Engine) UpdateCurve(req UpdateCurveRequest) (*TokenBonding, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	bonding, err := e.loadBonding(req.Bonding)
	if err != nil {
		return nil, err
	}
	if err := requireAuthority(bonding.CurveAuthority, req.Authority, "curve"); err != nil {
		return nil, err
	}
	c, err := e.loadCurve(req.Curve)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fromCurve(err)
	}
	bonding.Curve = req.Curve
	bonding.CurveAuthority = clonePubkey(req.CurveAuthority)
	if err := e.state.BondingPut(req.Bonding, bonding); err != nil {
		return nil, err
	}
	e.emit(CurveUpdatedEvent(req.Bonding, req.Curve))
	return bonding, nil
}

// UpdateReserveAuthority rotates or revokes the reserve authority.
func (e *Engine) UpdateReserveAuthority(req UpdateReserveAuthorityRequest) (*TokenBonding, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	bonding, err := e.loadBonding(req.Bonding)
	if err != nil {
		return nil, err
	}
	if err := requireAuthority(bonding.ReserveAuthority, req.Authority, "reserve"); err != nil {
		return nil, err
	}
	bonding.ReserveAuthority = clonePubkey(req.NewReserveAuthority)
	if err := e.state.BondingPut(req.Bonding, bonding); err != nil {
		return nil, err
	}
	e.emit(ReserveAuthorityUpdatedEvent(req.Bonding, bonding.ReserveAuthority))
	return bonding, nil
}

// TransferReserves moves escrowed base to an arbitrary destination. Shadow
// accounting is left untouched.
func (e *Engine) TransferReserves(req TransferReservesRequest) error {
	if err := e.ready(); err != nil {
		return err
	}
	bonding, err := e.loadBonding(req.Bonding)
	if err != nil {
		return err
	}
	if err := requireAuthority(bonding.ReserveAuthority, req.Authority, "reserve"); err != nil {
		return err
	}
	if bonding.BaseMint.Equals(NativeMint) && !req.NativeEscrow {
		return ErrNativeNotAllowed
	}
	if req.Amount == 0 {
		return newError(CodeInvalidArgs, "amount must be positive")
	}
	escrow, err := e.loadAccount(bonding.BaseStorage)
	if err != nil {
		return err
	}
	if req.Amount > escrow.Amount {
		return newError(CodeInvalidArgs, "amount %d exceeds escrow %d", req.Amount, escrow.Amount)
	}
	dest, err := e.loadAccount(req.Destination)
	if err != nil {
		return err
	}
	if !dest.Mint.Equals(bonding.BaseMint) {
		return newError(CodeInvalidMint, "destination %s holds %s", req.Destination, dest.Mint)
	}
	storageAuthority, _, err := DeriveStorageAuthority(e.programID, req.Bonding)
	if err != nil {
		return err
	}
	if err := e.state.Transfer(bonding.BaseStorage, req.Destination, storageAuthority, req.Amount); err != nil {
		return err
	}
	e.emit(ReservesTransferredEvent(req.Bonding, req.Destination, req.Amount))
	return nil
}

// CloseTokenBonding releases an empty bonding, returning target mint
// authority to the general authority when the bonding still holds it.
func (e *Engine) CloseTokenBonding(req CloseBondingRequest) error {
	if err := e.ready(); err != nil {
		return err
	}
	bonding, err := e.loadBonding(req.Bonding)
	if err != nil {
		return err
	}
	if err := requireAuthority(bonding.GeneralAuthority, req.Authority, "general"); err != nil {
		return err
	}
	escrow, err := e.loadAccount(bonding.BaseStorage)
	if err != nil {
		return err
	}
	if escrow.Amount != 0 {
		return newError(CodeReservesNotEmpty, "escrow holds %d", escrow.Amount)
	}
	targetMint, err := e.loadMint(bonding.TargetMint)
	if err != nil {
		return err
	}
	if targetMint.Supply != 0 && !bonding.SellFrozen {
		return newError(CodeSupplyNotEmpty, "target supply %d", targetMint.Supply)
	}
	targetAuthority, _, err := DeriveTargetAuthority(e.programID, bonding.TargetMint)
	if err != nil {
		return err
	}
	if ownedBy(targetMint.MintAuthority, targetAuthority) {
		if err := e.state.SetMintAuthority(bonding.TargetMint, targetAuthority, bonding.GeneralAuthority); err != nil {
			return err
		}
	}
	storageAuthority, _, err := DeriveStorageAuthority(e.programID, req.Bonding)
	if err != nil {
		return err
	}
	if err := e.state.CloseAccount(bonding.BaseStorage, req.Refund, storageAuthority); err != nil {
		return err
	}
	if err := e.state.BondingClose(req.Bonding, req.Refund); err != nil {
		return err
	}
	e.emit(BondingClosedEvent(req.Bonding, req.Refund))
	return nil
}

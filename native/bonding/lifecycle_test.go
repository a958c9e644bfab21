package bonding

import (
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/StrataFoundation/strata-sub000/native/bonding/curve"
	"github.com/StrataFoundation/strata-sub000/native/bonding/precise"
)

func (f *fixture) secondBonding(index uint16, configure func(*CreateBondingRequest)) (solana.PublicKey, error) {
	general := authorityKey
	req := CreateBondingRequest{
		Curve:               curveKey,
		BaseMint:            baseMintKey,
		TargetMint:          targetMintKey,
		Index:               index,
		GeneralAuthority:    &general,
		BuyBaseRoyalties:    royaltyBase,
		BuyTargetRoyalties:  royaltyTarget,
		SellBaseRoyalties:   royaltyBase,
		SellTargetRoyalties: royaltyTarget,
	}
	if configure != nil {
		configure(&req)
	}
	key, _, err := f.engine.CreateTokenBonding(req)
	return key, err
}

func TestInitializeProgramState(t *testing.T) {
	engine := NewEngine()
	engine.SetState(newMockState())
	key, state, err := engine.InitializeProgramState()
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	expected, _, err := DeriveProgramState(ProgramID)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !key.Equals(expected) || !state.WrappedSolMint.Equals(NativeMint) {
		t.Fatalf("unexpected program state %s %+v", key, state)
	}
	_, _, err = engine.InitializeProgramState()
	requireCode(t, err, ErrAlreadyExists)
	stored, err := engine.ProgramState()
	if err != nil || !stored.SolStorage.Equals(state.SolStorage) {
		t.Fatalf("stored program state %+v err %v", stored, err)
	}
}

func TestCreateCurveRejectsInvalidDefinitions(t *testing.T) {
	engine := NewEngine()
	engine.SetState(newMockState())
	bad := curve.Single(curve.ExponentialCurve{C: precise.One(), Pow: 11, Frac: 1})
	requireCode(t, engine.CreateCurve(CreateCurveRequest{Key: curveKey, Curve: bad}), ErrInvalidCurve)
	requireCode(t, engine.CreateCurve(CreateCurveRequest{Key: curveKey, Curve: curve.Curve{}}), ErrInvalidCurve)
	if err := engine.CreateCurve(CreateCurveRequest{Key: curveKey, Curve: linearCurve()}); err != nil {
		t.Fatalf("create: %v", err)
	}
	requireCode(t, engine.CreateCurve(CreateCurveRequest{Key: curveKey, Curve: linearCurve()}), ErrAlreadyExists)
}

func TestCreateBondingValidation(t *testing.T) {
	f := newFixture(t, fixtureOptions{curve: constantCurve(1)})

	_, err := f.secondBonding(0, nil)
	requireCode(t, err, ErrAlreadyExists)

	_, err = f.secondBonding(1, func(req *CreateBondingRequest) {
		req.InitialReservesPad = 10
		req.IgnoreExternalReserveChanges = true
	})
	requireCode(t, err, ErrInvalidPad)

	_, err = f.secondBonding(1, func(req *CreateBondingRequest) {
		req.BuyBaseRoyalties = royaltyTarget
	})
	requireCode(t, err, ErrInvalidMint)

	_, err = f.secondBonding(1, func(req *CreateBondingRequest) {
		req.Curve = testKey(40)
	})
	requireCode(t, err, ErrNotFound)

	// royalty destinations may not exist yet
	key, err := f.secondBonding(1, func(req *CreateBondingRequest) {
		req.SellTargetRoyalties = testKey(41)
		req.GoLiveUnix = fixtureClock - 500
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b := f.state.bondings[key]
	if b.GoLiveUnix != fixtureClock {
		t.Fatalf("go-live %d not clamped to creation time", b.GoLiveUnix)
	}
	if b.CreatedAtUnix != fixtureClock || b.Index != 1 {
		t.Fatalf("unexpected record %+v", b)
	}
	if _, ok := f.state.accounts[b.BaseStorage]; !ok {
		t.Fatalf("escrow account not initialized")
	}
}

func TestUpdateTokenBonding(t *testing.T) {
	f := newFixture(t, fixtureOptions{curve: constantCurve(1)})
	req := UpdateBondingRequest{
		Bonding:                  f.bonding,
		Authority:                outsiderKey,
		BuyBaseRoyalties:         royaltyBase,
		BuyTargetRoyalties:       royaltyTarget,
		SellBaseRoyalties:        royaltyBase,
		SellTargetRoyalties:      royaltyTarget,
		BuyBaseRoyaltyPercentage: tenPercent,
		BuyFrozen:                true,
	}
	_, err := f.engine.UpdateTokenBonding(req)
	requireCode(t, err, ErrInvalidAuthority)

	req.Authority = authorityKey
	req.SellBaseRoyalties = royaltyTarget
	_, err = f.engine.UpdateTokenBonding(req)
	requireCode(t, err, ErrInvalidMint)

	req.SellBaseRoyalties = royaltyBase
	updated, err := f.engine.UpdateTokenBonding(req)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.BuyBaseRoyaltyPercentage != tenPercent || !updated.BuyFrozen || updated.GeneralAuthority != nil {
		t.Fatalf("unexpected record %+v", updated)
	}
	_, err = f.buyTarget(1, 10, fixtureClock)
	requireCode(t, err, ErrBuyFrozen)

	// a nil general authority locks the bonding
	_, err = f.engine.UpdateTokenBonding(req)
	requireCode(t, err, ErrNoAuthority)
}

func TestUpdateCurve(t *testing.T) {
	f := newFixture(t, fixtureOptions{curve: constantCurve(1)})
	next := testKey(42)
	if err := f.engine.CreateCurve(CreateCurveRequest{Key: next, Curve: constantCurve(3)}); err != nil {
		t.Fatalf("create curve: %v", err)
	}
	_, err := f.engine.UpdateCurve(UpdateCurveRequest{Bonding: f.bonding, Authority: outsiderKey, Curve: next})
	requireCode(t, err, ErrInvalidAuthority)

	updated, err := f.engine.UpdateCurve(UpdateCurveRequest{Bonding: f.bonding, Authority: authorityKey, Curve: next})
	if err != nil {
		t.Fatalf("update curve: %v", err)
	}
	if !updated.Curve.Equals(next) || updated.CurveAuthority != nil {
		t.Fatalf("unexpected record %+v", updated)
	}
	result, err := f.buyTarget(1, 3, fixtureClock)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if result.Price != 3 {
		t.Fatalf("price %d on new curve", result.Price)
	}
	_, err = f.engine.UpdateCurve(UpdateCurveRequest{Bonding: f.bonding, Authority: authorityKey, Curve: curveKey})
	requireCode(t, err, ErrNoAuthority)
}

func TestUpdateReserveAuthority(t *testing.T) {
	f := newFixture(t, fixtureOptions{curve: constantCurve(1)})
	next := outsiderKey
	updated, err := f.engine.UpdateReserveAuthority(UpdateReserveAuthorityRequest{
		Bonding:             f.bonding,
		Authority:           authorityKey,
		NewReserveAuthority: &next,
	})
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if updated.ReserveAuthority == nil || !updated.ReserveAuthority.Equals(outsiderKey) {
		t.Fatalf("reserve authority not rotated")
	}
	_, err = f.engine.UpdateReserveAuthority(UpdateReserveAuthorityRequest{Bonding: f.bonding, Authority: authorityKey})
	requireCode(t, err, ErrInvalidAuthority)
}

func TestTransferReserves(t *testing.T) {
	f := newFixture(t, fixtureOptions{curve: constantCurve(1)})
	if _, err := f.buyTarget(5, 5, fixtureClock); err != nil {
		t.Fatalf("buy: %v", err)
	}
	req := TransferReservesRequest{Bonding: f.bonding, Authority: outsiderKey, Destination: royaltyBase, Amount: 3}
	requireCode(t, f.engine.TransferReserves(req), ErrInvalidAuthority)

	req.Authority = authorityKey
	req.Amount = 6
	requireCode(t, f.engine.TransferReserves(req), ErrInvalidArgs)

	req.Amount = 3
	req.Destination = royaltyTarget
	requireCode(t, f.engine.TransferReserves(req), ErrInvalidMint)

	req.Destination = royaltyBase
	if err := f.engine.TransferReserves(req); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	b := f.record()
	if f.balance(b.BaseStorage) != 2 || f.balance(royaltyBase) != 3 {
		t.Fatalf("escrow=%d destination=%d", f.balance(b.BaseStorage), f.balance(royaltyBase))
	}
	if b.ReserveBalanceFromBonding != 5 {
		t.Fatalf("shadow reserves moved to %d", b.ReserveBalanceFromBonding)
	}
}

func TestCloseTokenBonding(t *testing.T) {
	f := newFixture(t, fixtureOptions{curve: constantCurve(1)})
	if _, err := f.buyTarget(5, 5, fixtureClock); err != nil {
		t.Fatalf("buy: %v", err)
	}
	req := CloseBondingRequest{Bonding: f.bonding, Authority: authorityKey, Refund: outsiderKey}
	requireCode(t, f.engine.CloseTokenBonding(req), ErrReservesNotEmpty)

	if err := f.engine.TransferReserves(TransferReservesRequest{
		Bonding: f.bonding, Authority: authorityKey, Destination: royaltyBase, Amount: 5,
	}); err != nil {
		t.Fatalf("drain: %v", err)
	}
	requireCode(t, f.engine.CloseTokenBonding(req), ErrSupplyNotEmpty)

	fresh := newFixture(t, fixtureOptions{curve: constantCurve(1)})
	escrow := fresh.record().BaseStorage
	req.Bonding = fresh.bonding
	req.Authority = outsiderKey
	requireCode(t, fresh.engine.CloseTokenBonding(req), ErrInvalidAuthority)
	req.Authority = authorityKey
	if err := fresh.engine.CloseTokenBonding(req); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := fresh.state.bondings[fresh.bonding]; ok {
		t.Fatalf("bonding record still present")
	}
	if _, ok := fresh.state.accounts[escrow]; ok {
		t.Fatalf("escrow still open")
	}
	if refund := fresh.state.closed[fresh.bonding]; !refund.Equals(outsiderKey) {
		t.Fatalf("refund routed to %s", refund)
	}
	authority := fresh.state.mints[targetMintKey].MintAuthority
	if authority == nil || !authority.Equals(authorityKey) {
		t.Fatalf("mint authority not returned: %v", authority)
	}
	_, err := fresh.engine.Bonding(fresh.bonding)
	requireCode(t, err, ErrNotFound)
}

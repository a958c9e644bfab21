package state

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/StrataFoundation/strata-sub000/native/bonding"
	"github.com/StrataFoundation/strata-sub000/native/bonding/curve"
	"github.com/StrataFoundation/strata-sub000/native/bonding/precise"
	"github.com/StrataFoundation/strata-sub000/storage"
)

func key(seed byte) solana.PublicKey {
	var pk solana.PublicKey
	for i := range pk {
		pk[i] = seed
	}
	return pk
}

func TestAtomicCommitsAndDiscards(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)
	mint := key(1)
	owner := key(2)

	require.NoError(t, mgr.Atomic(func(tx *Tx) error {
		require.NoError(t, tx.CreateMint(mint, 6, &owner, nil))
		require.NoError(t, tx.InitializeAccount(key(3), mint, owner))
		return tx.MintTo(mint, key(3), owner, 500)
	}))

	boom := errors.New("boom")
	err := mgr.Atomic(func(tx *Tx) error {
		require.NoError(t, tx.MintTo(mint, key(3), owner, 1000))
		info, ok, err := tx.MintInfo(mint)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(1500), info.Supply)
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, mgr.View(func(tx *Tx) error {
		info, ok, err := tx.MintInfo(mint)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(500), info.Supply)
		require.NotNil(t, info.MintAuthority)
		require.True(t, info.MintAuthority.Equals(owner))
		require.Nil(t, info.FreezeAuthority)

		acct, ok, err := tx.TokenAccount(key(3))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(500), acct.Amount)
		return nil
	}))
}

func TestTokenLedgerRules(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	mintA, mintB := key(1), key(2)
	owner, other := key(3), key(4)
	require.NoError(t, mgr.Atomic(func(tx *Tx) error {
		require.NoError(t, tx.CreateMint(mintA, 0, &owner, nil))
		require.ErrorIs(t, tx.CreateMint(mintA, 0, &owner, nil), ErrMintExists)
		require.NoError(t, tx.CreateMint(mintB, 0, &owner, nil))
		require.NoError(t, tx.InitializeAccount(key(10), mintA, owner))
		require.NoError(t, tx.InitializeAccount(key(11), mintA, other))
		require.NoError(t, tx.InitializeAccount(key(12), mintB, owner))
		require.ErrorIs(t, tx.InitializeAccount(key(10), mintA, owner), ErrAccountExists)
		require.ErrorIs(t, tx.InitializeAccount(key(13), key(99), owner), ErrUnknownMint)

		require.ErrorIs(t, tx.MintTo(mintA, key(10), other, 1), ErrUnauthorized)
		require.ErrorIs(t, tx.MintTo(mintA, key(12), owner, 1), ErrMintMismatch)
		require.NoError(t, tx.MintTo(mintA, key(10), owner, 10))

		require.ErrorIs(t, tx.Transfer(key(10), key(11), other, 1), ErrUnauthorized)
		require.ErrorIs(t, tx.Transfer(key(10), key(12), owner, 1), ErrMintMismatch)
		require.ErrorIs(t, tx.Transfer(key(10), key(11), owner, 11), ErrInsufficientFunds)
		require.NoError(t, tx.Transfer(key(10), key(11), owner, 4))

		require.ErrorIs(t, tx.Burn(key(11), mintA, owner, 1), ErrUnauthorized)
		require.NoError(t, tx.Burn(key(11), mintA, other, 4))
		info, _, err := tx.MintInfo(mintA)
		require.NoError(t, err)
		require.Equal(t, uint64(6), info.Supply)

		require.ErrorIs(t, tx.CloseAccount(key(10), owner, owner), ErrAccountNotEmpty)
		require.NoError(t, tx.CloseAccount(key(11), other, other))
		_, ok, err := tx.TokenAccount(key(11))
		require.NoError(t, err)
		require.False(t, ok)

		require.ErrorIs(t, tx.SetMintAuthority(mintA, other, nil), ErrUnauthorized)
		require.NoError(t, tx.SetMintAuthority(mintA, owner, nil))
		require.ErrorIs(t, tx.MintTo(mintA, key(10), owner, 1), ErrUnauthorized)
		return nil
	}))
}

func TestEngineOverLedger(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)
	engine := bonding.NewEngine()
	const now = int64(1_700_000_000)
	engine.SetNowFunc(func() int64 { return now })

	baseMint, targetMint := key(1), key(2)
	authority, buyer := key(3), key(4)
	buyerBase, buyerTarget, royalties := key(5), key(6), key(7)
	curveKey := key(8)
	targetAuthority, _, err := bonding.DeriveTargetAuthority(bonding.ProgramID, targetMint)
	require.NoError(t, err)

	var bondingKey solana.PublicKey
	require.NoError(t, mgr.Atomic(func(tx *Tx) error {
		engine.SetState(tx)
		require.NoError(t, tx.CreateMint(baseMint, 6, &authority, nil))
		require.NoError(t, tx.CreateMint(targetMint, 6, &targetAuthority, nil))
		require.NoError(t, tx.InitializeAccount(buyerBase, baseMint, buyer))
		require.NoError(t, tx.InitializeAccount(buyerTarget, targetMint, buyer))
		require.NoError(t, tx.InitializeAccount(royalties, baseMint, authority))
		require.NoError(t, tx.MintTo(baseMint, buyerBase, authority, 100_000_000))
		require.NoError(t, engine.CreateCurve(bonding.CreateCurveRequest{
			Key:   curveKey,
			Curve: curve.Single(curve.ExponentialCurve{C: precise.One(), Pow: 1, Frac: 1}),
		}))
		general := authority
		var err error
		bondingKey, _, err = engine.CreateTokenBonding(bonding.CreateBondingRequest{
			Curve:               curveKey,
			BaseMint:            baseMint,
			TargetMint:          targetMint,
			GeneralAuthority:    &general,
			BuyBaseRoyalties:    royalties,
			BuyTargetRoyalties:  buyerTarget,
			SellBaseRoyalties:   royalties,
			SellTargetRoyalties: buyerTarget,
		})
		return err
	}))

	amount := uint64(2_000_000)
	require.NoError(t, mgr.Atomic(func(tx *Tx) error {
		engine.SetState(tx)
		result, err := engine.Buy(bonding.BuyRequest{
			Bonding:      bondingKey,
			Buyer:        buyer,
			Source:       buyerBase,
			Destination:  buyerTarget,
			TargetAmount: &amount,
			MaximumPrice: 2_000_000,
		})
		require.NoError(t, err)
		require.Equal(t, uint64(2_000_000), result.Price)
		return nil
	}))

	// a failing trade leaves nothing behind
	err = mgr.Atomic(func(tx *Tx) error {
		engine.SetState(tx)
		_, err := engine.Buy(bonding.BuyRequest{
			Bonding:      bondingKey,
			Buyer:        buyer,
			Source:       buyerBase,
			Destination:  buyerTarget,
			TargetAmount: &amount,
			MaximumPrice: 1,
		})
		return err
	})
	require.ErrorIs(t, err, bonding.ErrPriceTooHigh)

	require.NoError(t, mgr.View(func(tx *Tx) error {
		record, ok, err := tx.BondingGet(bondingKey)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(2_000_000), record.SupplyFromBonding)
		require.Equal(t, uint64(2_000_000), record.ReserveBalanceFromBonding)

		escrow, ok, err := tx.TokenAccount(record.BaseStorage)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(2_000_000), escrow.Amount)

		keys, err := tx.Bondings()
		require.NoError(t, err)
		require.Equal(t, []solana.PublicKey{bondingKey}, keys)
		curves, err := tx.Curves()
		require.NoError(t, err)
		require.Equal(t, []solana.PublicKey{curveKey}, curves)

		stored, ok, err := tx.CurveGet(curveKey)
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, stored.Definition.Pieces, 1)
		return nil
	}))

	require.NoError(t, mgr.Atomic(func(tx *Tx) error {
		return tx.BondingClose(bondingKey, authority)
	}))
	require.NoError(t, mgr.View(func(tx *Tx) error {
		_, ok, err := tx.BondingGet(bondingKey)
		require.NoError(t, err)
		require.False(t, ok)
		keys, err := tx.Bondings()
		require.NoError(t, err)
		require.Empty(t, keys)
		return nil
	}))
}

func TestProgramStateRecord(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	engine := bonding.NewEngine()
	var created *bonding.ProgramState
	require.NoError(t, mgr.Atomic(func(tx *Tx) error {
		engine.SetState(tx)
		_, state, err := engine.InitializeProgramState()
		created = state
		return err
	}))
	require.NoError(t, mgr.View(func(tx *Tx) error {
		engine.SetState(tx)
		stored, err := engine.ProgramState()
		require.NoError(t, err)
		require.Equal(t, *created, *stored)
		return nil
	}))
}

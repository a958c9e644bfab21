package history

import (
	"context"
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/StrataFoundation/strata-sub000/native/bonding"
	"github.com/StrataFoundation/strata-sub000/native/bonding/curve"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func key(seed byte) solana.PublicKey {
	var out solana.PublicKey
	for i := range out {
		out[i] = seed
	}
	return out
}

func TestStoreListsNewestFirst(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, store.Record(ctx, &Trade{Bonding: "a", Side: "buy", Price: i}))
	}
	require.NoError(t, store.Record(ctx, &Trade{Bonding: "b", Side: "sell", Price: 99}))

	trades, err := store.List(ctx, "a", 0, 2)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	require.Equal(t, uint64(5), trades[0].Price)
	require.Equal(t, uint64(4), trades[1].Price)
	require.NotEqual(t, uuid.Nil, trades[0].ID)

	older, err := store.List(ctx, "a", trades[1].Seq, 10)
	require.NoError(t, err)
	require.Len(t, older, 3)
	require.Equal(t, uint64(3), older[0].Price)

	other, err := store.List(ctx, "b", 0, 0)
	require.NoError(t, err)
	require.Len(t, other, 1)
	require.Equal(t, "sell", other[0].Side)
}

func TestRecorderIndexesTradeEvents(t *testing.T) {
	store := setupStore(t)
	rec := NewRecorder(store, nil)

	bondingKey, trader := key(1), key(2)
	rec.Emit(bonding.WrapEvent(bonding.TradeEvent(bondingKey, trader, &bonding.TradeResult{
		Side:                      curve.Sell,
		Price:                     1_800_002,
		TotalTarget:               1_000_000,
		BaseRoyalty:               180_000,
		TargetRoyalty:             99_999,
		ReserveBalanceFromBonding: 7,
		SupplyFromBonding:         8,
	})))
	rec.Emit(bonding.WrapEvent(bonding.BondingClosedEvent(bondingKey, trader)))

	trades, err := store.List(context.Background(), bondingKey.String(), 0, 0)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	trade := trades[0]
	require.Equal(t, "sell", trade.Side)
	require.Equal(t, trader.String(), trade.Trader)
	require.Equal(t, uint64(1_800_002), trade.Price)
	require.Equal(t, uint64(180_000), trade.BaseRoyalty)
	require.Equal(t, uint64(99_999), trade.TargetRoyalty)
	require.Equal(t, uint64(8), trade.Supply)
}

func TestNilStore(t *testing.T) {
	var store *Store
	_, err := store.List(context.Background(), "a", 0, 0)
	require.ErrorIs(t, err, ErrNilStore)
	require.ErrorIs(t, store.Record(context.Background(), &Trade{}), ErrNilStore)
	require.NoError(t, store.Close())
}

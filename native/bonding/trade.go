package bonding

import (
	"github.com/gagliardetto/solana-go"

	"github.com/StrataFoundation/strata-sub000/native/bonding/curve"
	"github.com/StrataFoundation/strata-sub000/native/bonding/precise"
)

// tradeContext is the consistent snapshot a single trade prices against.
type tradeContext struct {
	key              solana.PublicKey
	bonding          *TokenBonding
	curve            *curve.Curve
	baseMint         *MintInfo
	targetMint       *MintInfo
	escrow           *TokenAccountInfo
	storageAuthority solana.PublicKey
	targetAuthority  solana.PublicKey

	now      int64
	offset   int64
	reserves uint64
	supply   uint64
}

func (e *Engine) prepare(key solana.PublicKey, side curve.Side, now int64, native, legacy bool) (*tradeContext, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	bonding, err := e.loadBonding(key)
	if err != nil {
		return nil, err
	}
	if legacy && (bonding.IgnoreExternalReserveChanges || bonding.IgnoreExternalSupplyChanges) {
		return nil, ErrIgnoreFlagUnsupportedInLegacy
	}
	if bonding.BaseMint.Equals(NativeMint) && !native {
		return nil, ErrNativeNotAllowed
	}
	if now < bonding.GoLiveUnix {
		return nil, newError(CodeNotLive, "goes live at %d", bonding.GoLiveUnix)
	}
	if side == curve.Buy {
		if bonding.BuyFrozen {
			return nil, ErrBuyFrozen
		}
		if bonding.FreezeBuyUnix != nil && *bonding.FreezeBuyUnix < now {
			return nil, newError(CodeBuyFrozen, "buys frozen since %d", *bonding.FreezeBuyUnix)
		}
	} else if bonding.SellFrozen {
		return nil, ErrSellDisabled
	}

	ctx := &tradeContext{key: key, bonding: bonding, now: now, offset: now - bonding.GoLiveUnix}
	if ctx.curve, err = e.loadCurve(bonding.Curve); err != nil {
		return nil, err
	}
	if ctx.baseMint, err = e.loadMint(bonding.BaseMint); err != nil {
		return nil, err
	}
	if ctx.targetMint, err = e.loadMint(bonding.TargetMint); err != nil {
		return nil, err
	}
	if ctx.escrow, err = e.loadAccount(bonding.BaseStorage); err != nil {
		return nil, err
	}
	if ctx.storageAuthority, _, err = DeriveStorageAuthority(e.programID, key); err != nil {
		return nil, err
	}
	if ctx.targetAuthority, _, err = DeriveTargetAuthority(e.programID, bonding.TargetMint); err != nil {
		return nil, err
	}

	if !bonding.SellFrozen && ctx.targetMint.Supply > 0 && bonding.ReserveBalanceFromBonding == 0 &&
		bonding.GoLiveUnix < LegacyBackfillCutoff {
		e.log().Warn("bonding: seeding shadow accounting from observed balances",
			"bonding", key.String(),
			"reserves", ctx.escrow.Amount,
			"supply", ctx.targetMint.Supply)
		bonding.ReserveBalanceFromBonding = ctx.escrow.Amount
		bonding.SupplyFromBonding = ctx.targetMint.Supply
	}

	ctx.reserves = ctx.escrow.Amount
	if bonding.IgnoreExternalReserveChanges {
		ctx.reserves = bonding.ReserveBalanceFromBonding
	}
	ctx.supply = ctx.targetMint.Supply
	if bonding.IgnoreExternalSupplyChanges {
		ctx.supply = bonding.SupplyFromBonding
	}
	return ctx, nil
}

func (ctx *tradeContext) state() (precise.Number, precise.Number, error) {
	reserves, ok := precise.FromAmount(ctx.reserves, ctx.baseMint.Decimals)
	if !ok {
		return precise.Zero(), precise.Zero(), arithmetic("reserves conversion")
	}
	supply, ok := precise.FromAmount(ctx.supply, ctx.targetMint.Decimals)
	if !ok {
		return precise.Zero(), precise.Zero(), arithmetic("supply conversion")
	}
	return reserves, supply, nil
}

func (e *Engine) planBuy(ctx *tradeContext, req BuyRequest) (*TokenBonding, *TradeResult, error) {
	if (req.TargetAmount == nil) == (req.BaseAmount == nil) {
		return nil, nil, newError(CodeInvalidArgs, "exactly one of target amount and base amount is required")
	}
	b := ctx.bonding
	reserves, supply, err := ctx.state()
	if err != nil {
		return nil, nil, err
	}
	basePct, err := addPercentage(b.BuyBaseRoyaltyPercentage, ctx.curve.Definition.BuyTransitionFee(ctx.offset))
	if err != nil {
		return nil, nil, err
	}

	var price, total, baseRoyalty, targetRoyalty uint64
	if req.TargetAmount != nil {
		total = *req.TargetAmount
		if total == 0 {
			return nil, nil, newError(CodeInvalidArgs, "target amount must be positive")
		}
		amount, ok := precise.FromAmount(total, ctx.targetMint.Decimals)
		if !ok {
			return nil, nil, arithmetic("target amount conversion")
		}
		value, err := ctx.curve.Definition.Price(ctx.offset, reserves, supply, amount, curve.Buy, req.RootEstimates)
		if err != nil {
			return nil, nil, fromCurve(err)
		}
		if price, ok = value.ToAmountCeil(ctx.baseMint.Decimals); !ok {
			return nil, nil, arithmetic("price conversion")
		}
		if baseRoyalty, err = royalty(price, basePct); err != nil {
			return nil, nil, err
		}
		if targetRoyalty, err = royalty(total, b.BuyTargetRoyaltyPercentage); err != nil {
			return nil, nil, err
		}
		cost, err := checkedAdd(price, baseRoyalty, "buy cost")
		if err != nil {
			return nil, nil, err
		}
		if cost > req.MaximumPrice {
			return nil, nil, newError(CodePriceTooHigh, "cost %d exceeds maximum %d", cost, req.MaximumPrice)
		}
	} else {
		baseIn := *req.BaseAmount
		if baseIn == 0 {
			return nil, nil, newError(CodeInvalidArgs, "base amount must be positive")
		}
		if baseRoyalty, err = royalty(baseIn, basePct); err != nil {
			return nil, nil, err
		}
		price = baseIn - baseRoyalty
		change, ok := precise.FromAmount(price, ctx.baseMint.Decimals)
		if !ok {
			return nil, nil, arithmetic("base amount conversion")
		}
		out, err := ctx.curve.Definition.ExpectedTargetAmount(ctx.offset, reserves, supply, change, req.RootEstimates)
		if err != nil {
			return nil, nil, fromCurve(err)
		}
		if total, ok = out.ToAmountFloor(ctx.targetMint.Decimals); !ok {
			return nil, nil, arithmetic("target amount conversion")
		}
		if total == 0 {
			return nil, nil, newError(CodeInvalidArgs, "base amount %d buys no target", baseIn)
		}
		if targetRoyalty, err = royalty(total, b.BuyTargetRoyaltyPercentage); err != nil {
			return nil, nil, err
		}
		if received := total - targetRoyalty; received < req.MinimumTargetAmount {
			return nil, nil, newError(CodePriceTooHigh, "receives %d below minimum %d", received, req.MinimumTargetAmount)
		}
	}

	if b.MintCap != nil {
		after, err := checkedAdd(ctx.supply, total, "supply")
		if err != nil {
			return nil, nil, err
		}
		if after > *b.MintCap {
			return nil, nil, newError(CodePassedMintCap, "supply %d exceeds cap %d", after, *b.MintCap)
		}
	}
	if b.PurchaseCap != nil && total > *b.PurchaseCap {
		return nil, nil, newError(CodeOverPurchaseCap, "purchase %d exceeds cap %d", total, *b.PurchaseCap)
	}

	updated := b.Clone()
	if updated.SupplyFromBonding, err = checkedAdd(b.SupplyFromBonding, total, "supply from bonding"); err != nil {
		return nil, nil, err
	}
	if updated.ReserveBalanceFromBonding, err = checkedAdd(b.ReserveBalanceFromBonding, price, "reserves from bonding"); err != nil {
		return nil, nil, err
	}

	var list directives
	list.transfer(b.BaseMint, req.Source, b.BaseStorage, req.Buyer, price)
	list.transfer(b.BaseMint, req.Source, b.BuyBaseRoyalties, req.Buyer, baseRoyalty)
	list.mintTo(b.TargetMint, b.BuyTargetRoyalties, ctx.targetAuthority, targetRoyalty)
	list.mintTo(b.TargetMint, req.Destination, ctx.targetAuthority, total-targetRoyalty)

	return updated, &TradeResult{
		Side:                      curve.Buy,
		Price:                     price,
		TotalTarget:               total,
		BaseRoyalty:               baseRoyalty,
		TargetRoyalty:             targetRoyalty,
		ReserveBalanceFromBonding: updated.ReserveBalanceFromBonding,
		SupplyFromBonding:         updated.SupplyFromBonding,
		Directives:                list,
	}, nil
}

func (e *Engine) planSell(ctx *tradeContext, req SellRequest) (*TokenBonding, *TradeResult, error) {
	if req.TargetAmount == 0 {
		return nil, nil, newError(CodeInvalidArgs, "target amount must be positive")
	}
	b := ctx.bonding
	reserves, supply, err := ctx.state()
	if err != nil {
		return nil, nil, err
	}
	basePct, err := addPercentage(b.SellBaseRoyaltyPercentage, ctx.curve.Definition.SellTransitionFee(ctx.offset))
	if err != nil {
		return nil, nil, err
	}
	targetRoyalty, err := royalty(req.TargetAmount, b.SellTargetRoyaltyPercentage)
	if err != nil {
		return nil, nil, err
	}
	burned := req.TargetAmount - targetRoyalty
	amount, ok := precise.FromAmount(burned, ctx.targetMint.Decimals)
	if !ok {
		return nil, nil, arithmetic("target amount conversion")
	}
	value, err := ctx.curve.Definition.Price(ctx.offset, reserves, supply, amount, curve.Sell, req.RootEstimates)
	if err != nil {
		return nil, nil, fromCurve(err)
	}
	gross, ok := value.ToAmountFloor(ctx.baseMint.Decimals)
	if !ok {
		return nil, nil, arithmetic("reclaim conversion")
	}
	baseRoyalty, err := royalty(gross, basePct)
	if err != nil {
		return nil, nil, err
	}
	net := gross - baseRoyalty
	if net < req.MinimumPrice {
		return nil, nil, newError(CodePriceTooLow, "reclaim %d below minimum %d", net, req.MinimumPrice)
	}

	updated := b.Clone()
	if updated.SupplyFromBonding, err = shadowSub(b.SupplyFromBonding, req.TargetAmount, b.IgnoreExternalSupplyChanges, "supply from bonding"); err != nil {
		return nil, nil, err
	}
	if updated.ReserveBalanceFromBonding, err = shadowSub(b.ReserveBalanceFromBonding, gross, b.IgnoreExternalReserveChanges, "reserves from bonding"); err != nil {
		return nil, nil, err
	}

	var list directives
	list.transfer(b.TargetMint, req.Source, b.SellTargetRoyalties, req.Seller, targetRoyalty)
	list.burn(b.TargetMint, req.Source, req.Seller, burned)
	list.transfer(b.BaseMint, b.BaseStorage, req.Destination, ctx.storageAuthority, net)
	list.transfer(b.BaseMint, b.BaseStorage, b.SellBaseRoyalties, ctx.storageAuthority, baseRoyalty)

	return updated, &TradeResult{
		Side:                      curve.Sell,
		Price:                     gross,
		TotalTarget:               req.TargetAmount,
		BaseRoyalty:               baseRoyalty,
		TargetRoyalty:             targetRoyalty,
		ReserveBalanceFromBonding: updated.ReserveBalanceFromBonding,
		SupplyFromBonding:         updated.SupplyFromBonding,
		Directives:                list,
	}, nil
}

// shadowSub reduces a shadow counter. A counter that drives pricing must not
// underflow; one that merely mirrors observed balances floors at zero.
func shadowSub(current, amount uint64, pricing bool, what string) (uint64, error) {
	if pricing {
		return checkedSub(current, amount, what)
	}
	if amount > current {
		return 0, nil
	}
	return current - amount, nil
}

func (e *Engine) checkTradeAccounts(source, destination solana.PublicKey, sourceMint, destinationMint solana.PublicKey) error {
	src, err := e.loadAccount(source)
	if err != nil {
		return err
	}
	if !src.Mint.Equals(sourceMint) {
		return newError(CodeInvalidMint, "source %s holds %s", source, src.Mint)
	}
	dst, err := e.loadAccount(destination)
	if err != nil {
		return err
	}
	if !dst.Mint.Equals(destinationMint) {
		return newError(CodeInvalidMint, "destination %s holds %s", destination, dst.Mint)
	}
	return nil
}

func (e *Engine) commit(ctx *tradeContext, updated *TokenBonding, result *TradeResult, trader solana.PublicKey) error {
	if err := e.state.BondingPut(ctx.key, updated); err != nil {
		return err
	}
	if err := Execute(e.state, result.Directives); err != nil {
		return err
	}
	e.emit(TradeEvent(ctx.key, trader, result))
	e.log().Debug("bonding: trade executed",
		"bonding", ctx.key.String(),
		"side", result.Side.String(),
		"price", result.Price,
		"totalTarget", result.TotalTarget,
		"baseRoyalty", result.BaseRoyalty,
		"targetRoyalty", result.TargetRoyalty)
	return nil
}

func (e *Engine) buy(req BuyRequest, legacy, execute bool) (*TradeResult, error) {
	ctx, err := e.prepare(req.Bonding, curve.Buy, e.now(req.Now), req.NativeEscrow, legacy)
	if err != nil {
		return nil, err
	}
	updated, result, err := e.planBuy(ctx, req)
	if err != nil {
		return nil, err
	}
	if !execute {
		return result, nil
	}
	if err := e.checkTradeAccounts(req.Source, req.Destination, ctx.bonding.BaseMint, ctx.bonding.TargetMint); err != nil {
		return nil, err
	}
	if err := e.commit(ctx, updated, result, req.Buyer); err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) sell(req SellRequest, legacy, execute bool) (*TradeResult, error) {
	ctx, err := e.prepare(req.Bonding, curve.Sell, e.now(req.Now), req.NativeEscrow, legacy)
	if err != nil {
		return nil, err
	}
	updated, result, err := e.planSell(ctx, req)
	if err != nil {
		return nil, err
	}
	if !execute {
		return result, nil
	}
	if err := e.checkTradeAccounts(req.Source, req.Destination, ctx.bonding.TargetMint, ctx.bonding.BaseMint); err != nil {
		return nil, err
	}
	if err := e.commit(ctx, updated, result, req.Seller); err != nil {
		return nil, err
	}
	return result, nil
}

// Buy purchases target from the bonding. The record is stored before the
// fund directives run, so callers must discard state on error.
func (e *Engine) Buy(req BuyRequest) (*TradeResult, error) { return e.buy(req, false, true) }

// Sell returns target to the bonding for base.
func (e *Engine) Sell(req SellRequest) (*TradeResult, error) { return e.sell(req, false, true) }

// BuyLegacy is the v0 buy entry point. It refuses bondings that rely on
// shadow accounting for pricing.
func (e *Engine) BuyLegacy(req BuyRequest) (*TradeResult, error) { return e.buy(req, true, true) }

// SellLegacy is the v0 sell entry point.
func (e *Engine) SellLegacy(req SellRequest) (*TradeResult, error) { return e.sell(req, true, true) }

// QuoteBuy simulates Buy without touching state. Source and Destination
// are ignored.
func (e *Engine) QuoteBuy(req BuyRequest) (*TradeResult, error) { return e.buy(req, false, false) }

// QuoteSell simulates Sell without touching state.
func (e *Engine) QuoteSell(req SellRequest) (*TradeResult, error) { return e.sell(req, false, false) }

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/StrataFoundation/strata-sub000/core"
	"github.com/StrataFoundation/strata-sub000/native/bonding"
	"github.com/StrataFoundation/strata-sub000/native/bonding/curve"
	"github.com/StrataFoundation/strata-sub000/native/bonding/precise"
)

type curveFlags struct {
	key             string
	c, b            string
	pow, frac       uint8
	buyFee, sellFee string
	buyInterval     uint32
	sellInterval    uint32
	pieces          []string
}

func transitionFee(name, pct string, interval uint32) (*curve.TransitionFee, error) {
	if strings.TrimSpace(pct) == "" || interval == 0 {
		return nil, nil
	}
	value, err := parsePercent(name, pct)
	if err != nil {
		return nil, err
	}
	return &curve.TransitionFee{Percentage: value, Interval: interval}, nil
}

// parsePiece reads "offset:c:b:pow:frac".
func parsePiece(value string) (curve.TimeCurve, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 5 {
		return curve.TimeCurve{}, fmt.Errorf("--piece %q: want offset:c:b:pow:frac", value)
	}
	offset, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return curve.TimeCurve{}, fmt.Errorf("--piece offset: %w", err)
	}
	c, err := precise.Parse(parts[1])
	if err != nil {
		return curve.TimeCurve{}, err
	}
	b, err := precise.Parse(parts[2])
	if err != nil {
		return curve.TimeCurve{}, err
	}
	pow, err := strconv.ParseUint(parts[3], 10, 8)
	if err != nil {
		return curve.TimeCurve{}, fmt.Errorf("--piece pow: %w", err)
	}
	frac, err := strconv.ParseUint(parts[4], 10, 8)
	if err != nil {
		return curve.TimeCurve{}, fmt.Errorf("--piece frac: %w", err)
	}
	return curve.TimeCurve{
		Offset: offset,
		Curve:  curve.ExponentialCurve{C: c, B: b, Pow: uint8(pow), Frac: uint8(frac)},
	}, nil
}

func (f *curveFlags) build() (curve.Curve, error) {
	c, err := precise.Parse(f.c)
	if err != nil {
		return curve.Curve{}, fmt.Errorf("--c: %w", err)
	}
	b, err := precise.Parse(f.b)
	if err != nil {
		return curve.Curve{}, fmt.Errorf("--b: %w", err)
	}
	first := curve.TimeCurve{Curve: curve.ExponentialCurve{C: c, B: b, Pow: f.pow, Frac: f.frac}}
	if first.BuyTransitionFee, err = transitionFee("buy-fee", f.buyFee, f.buyInterval); err != nil {
		return curve.Curve{}, err
	}
	if first.SellTransitionFee, err = transitionFee("sell-fee", f.sellFee, f.sellInterval); err != nil {
		return curve.Curve{}, err
	}
	pieces := []curve.TimeCurve{first}
	for _, raw := range f.pieces {
		piece, err := parsePiece(raw)
		if err != nil {
			return curve.Curve{}, err
		}
		pieces = append(pieces, piece)
	}
	return curve.Curve{Definition: curve.Piecewise{Pieces: pieces}}, nil
}

func newCreateCurveCmd(flags *globalFlags) *cobra.Command {
	f := &curveFlags{}
	cmd := &cobra.Command{
		Use:   "create-curve",
		Short: "Store a curve definition",
		Long: "Store a curve pricing c*x^(pow/frac) + b. Additional time pieces are given\n" +
			"with --piece offset:c:b:pow:frac, offsets counted in seconds from go-live.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := parseKey("key", f.key)
			if err != nil {
				return err
			}
			c, err := f.build()
			if err != nil {
				return err
			}
			return withProcessor(flags, func(proc *core.Processor) error {
				if err := proc.CreateCurve(key, c); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"curve": key.String(), "pieces": len(c.Definition.Pieces)})
			})
		},
	}
	cmd.Flags().StringVar(&f.key, "key", "", "curve address")
	cmd.Flags().StringVar(&f.c, "c", "0", "coefficient")
	cmd.Flags().StringVar(&f.b, "b", "0", "constant price term")
	cmd.Flags().Uint8Var(&f.pow, "pow", 1, "exponent numerator")
	cmd.Flags().Uint8Var(&f.frac, "frac", 1, "exponent denominator")
	cmd.Flags().StringVar(&f.buyFee, "buy-fee", "", "buy transition fee percent")
	cmd.Flags().Uint32Var(&f.buyInterval, "buy-fee-interval", 0, "seconds over which the buy fee decays")
	cmd.Flags().StringVar(&f.sellFee, "sell-fee", "", "sell transition fee percent")
	cmd.Flags().Uint32Var(&f.sellInterval, "sell-fee-interval", 0, "seconds over which the sell fee decays")
	cmd.Flags().StringArrayVar(&f.pieces, "piece", nil, "additional piece offset:c:b:pow:frac")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

type royaltyFlags struct {
	buyBase, buyTarget, sellBase, sellTarget             string
	buyBasePct, buyTargetPct, sellBasePct, sellTargetPct string
}

func (r *royaltyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.buyBase, "buy-base-royalties", "", "base royalty account on buys")
	cmd.Flags().StringVar(&r.buyTarget, "buy-target-royalties", "", "target royalty account on buys")
	cmd.Flags().StringVar(&r.sellBase, "sell-base-royalties", "", "base royalty account on sells")
	cmd.Flags().StringVar(&r.sellTarget, "sell-target-royalties", "", "target royalty account on sells")
	cmd.Flags().StringVar(&r.buyBasePct, "buy-base-royalty", "", "buy base royalty percent")
	cmd.Flags().StringVar(&r.buyTargetPct, "buy-target-royalty", "", "buy target royalty percent")
	cmd.Flags().StringVar(&r.sellBasePct, "sell-base-royalty", "", "sell base royalty percent")
	cmd.Flags().StringVar(&r.sellTargetPct, "sell-target-royalty", "", "sell target royalty percent")
}

type royaltyValues struct {
	accounts [4]solana.PublicKey
	percents [4]uint32
}

// resolve parses the royalty flags, keeping current values for flags that
// were not given.
func (r *royaltyFlags) resolve(cmd *cobra.Command, current royaltyValues) (royaltyValues, error) {
	out := current
	keys := []struct{ flag, value string }{
		{"buy-base-royalties", r.buyBase},
		{"buy-target-royalties", r.buyTarget},
		{"sell-base-royalties", r.sellBase},
		{"sell-target-royalties", r.sellTarget},
	}
	for i, k := range keys {
		if !cmd.Flags().Changed(k.flag) {
			continue
		}
		key, err := parseOptionalKey(k.flag, k.value)
		if err != nil {
			return out, err
		}
		out.accounts[i] = solana.PublicKey{}
		if key != nil {
			out.accounts[i] = *key
		}
	}
	pcts := []struct{ flag, value string }{
		{"buy-base-royalty", r.buyBasePct},
		{"buy-target-royalty", r.buyTargetPct},
		{"sell-base-royalty", r.sellBasePct},
		{"sell-target-royalty", r.sellTargetPct},
	}
	for i, p := range pcts {
		if !cmd.Flags().Changed(p.flag) {
			continue
		}
		value, err := parsePercent(p.flag, p.value)
		if err != nil {
			return out, err
		}
		out.percents[i] = value
	}
	return out, nil
}

func newCreateBondingCmd(flags *globalFlags) *cobra.Command {
	var (
		curveKey, baseMint, targetMint            string
		general, reserve, curveAuthority          string
		mintCap, purchaseCap                      string
		reservesPad, supplyPad                    string
		index                                     uint16
		goLive, freezeBuy                         int64
		buyFrozen, sellFrozen                     bool
		ignoreReserveChanges, ignoreSupplyChanges bool
	)
	royalties := &royaltyFlags{}
	cmd := &cobra.Command{
		Use:   "create-bonding",
		Short: "Create a token bonding for a target mint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := bonding.CreateBondingRequest{
				Index:                        index,
				GoLiveUnix:                   goLive,
				BuyFrozen:                    buyFrozen,
				SellFrozen:                   sellFrozen,
				IgnoreExternalReserveChanges: ignoreReserveChanges,
				IgnoreExternalSupplyChanges:  ignoreSupplyChanges,
			}
			var err error
			if req.Curve, err = parseKey("curve", curveKey); err != nil {
				return err
			}
			if req.BaseMint, err = parseKey("base-mint", baseMint); err != nil {
				return err
			}
			if req.TargetMint, err = parseKey("target-mint", targetMint); err != nil {
				return err
			}
			if req.GeneralAuthority, err = parseOptionalKey("general-authority", general); err != nil {
				return err
			}
			if req.ReserveAuthority, err = parseOptionalKey("reserve-authority", reserve); err != nil {
				return err
			}
			if req.CurveAuthority, err = parseOptionalKey("curve-authority", curveAuthority); err != nil {
				return err
			}
			if cmd.Flags().Changed("freeze-buy") {
				req.FreezeBuyUnix = &freezeBuy
			}
			values, err := royalties.resolve(cmd, royaltyValues{})
			if err != nil {
				return err
			}
			req.BuyBaseRoyalties, req.BuyTargetRoyalties = values.accounts[0], values.accounts[1]
			req.SellBaseRoyalties, req.SellTargetRoyalties = values.accounts[2], values.accounts[3]
			req.BuyBaseRoyaltyPercentage, req.BuyTargetRoyaltyPercentage = values.percents[0], values.percents[1]
			req.SellBaseRoyaltyPercentage, req.SellTargetRoyaltyPercentage = values.percents[2], values.percents[3]

			return withProcessor(flags, func(proc *core.Processor) error {
				decimals, err := mintDecimalsFor(proc, req.BaseMint, req.TargetMint)
				if err != nil {
					return err
				}
				if req.MintCap, err = optionalAmount("mint-cap", mintCap, decimals.target); err != nil {
					return err
				}
				if req.PurchaseCap, err = optionalAmount("purchase-cap", purchaseCap, decimals.target); err != nil {
					return err
				}
				if pad, err := optionalAmount("reserves-pad", reservesPad, decimals.base); err != nil {
					return err
				} else if pad != nil {
					req.InitialReservesPad = *pad
				}
				if pad, err := optionalAmount("supply-pad", supplyPad, decimals.target); err != nil {
					return err
				} else if pad != nil {
					req.InitialSupplyPad = *pad
				}
				key, record, err := proc.CreateTokenBonding(req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"bonding":      key.String(),
					"base_storage": record.BaseStorage.String(),
					"buy_frozen":   record.BuyFrozen,
					"go_live_unix": record.GoLiveUnix,
				})
			})
		},
	}
	cmd.Flags().StringVar(&curveKey, "curve", "", "curve address")
	cmd.Flags().StringVar(&baseMint, "base-mint", "", "reserve mint")
	cmd.Flags().StringVar(&targetMint, "target-mint", "", "bonded mint")
	cmd.Flags().Uint16Var(&index, "index", 0, "bonding index for the target mint")
	cmd.Flags().StringVar(&general, "general-authority", "", "general authority")
	cmd.Flags().StringVar(&reserve, "reserve-authority", "", "reserve authority")
	cmd.Flags().StringVar(&curveAuthority, "curve-authority", "", "curve authority")
	cmd.Flags().StringVar(&mintCap, "mint-cap", "", "maximum target supply, whole units")
	cmd.Flags().StringVar(&purchaseCap, "purchase-cap", "", "maximum target per buy, whole units")
	cmd.Flags().Int64Var(&goLive, "go-live", 0, "unix time trading opens")
	cmd.Flags().Int64Var(&freezeBuy, "freeze-buy", 0, "unix time after which buys stop")
	cmd.Flags().BoolVar(&buyFrozen, "buy-frozen", false, "create with buys disabled")
	cmd.Flags().BoolVar(&sellFrozen, "sell-frozen", false, "disable sells permanently")
	cmd.Flags().BoolVar(&ignoreReserveChanges, "ignore-external-reserve-changes", false, "price from tracked reserves only")
	cmd.Flags().BoolVar(&ignoreSupplyChanges, "ignore-external-supply-changes", false, "price from tracked supply only")
	cmd.Flags().StringVar(&reservesPad, "reserves-pad", "", "initial tracked reserves, whole units")
	cmd.Flags().StringVar(&supplyPad, "supply-pad", "", "initial tracked supply, whole units")
	royalties.register(cmd)
	for _, name := range []string{"curve", "base-mint", "target-mint"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newUpdateBondingCmd(flags *globalFlags) *cobra.Command {
	var (
		key, authority, general string
		buyFrozen               bool
	)
	royalties := &royaltyFlags{}
	cmd := &cobra.Command{
		Use:   "update-bonding",
		Short: "Change royalties, the buy freeze or the general authority",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bondingKey, err := parseKey("bonding", key)
			if err != nil {
				return err
			}
			signer, err := parseKey("authority", authority)
			if err != nil {
				return err
			}
			return withProcessor(flags, func(proc *core.Processor) error {
				current, err := proc.Bonding(bondingKey)
				if err != nil {
					return err
				}
				values, err := royalties.resolve(cmd, royaltyValues{
					accounts: [4]solana.PublicKey{current.BuyBaseRoyalties, current.BuyTargetRoyalties, current.SellBaseRoyalties, current.SellTargetRoyalties},
					percents: [4]uint32{current.BuyBaseRoyaltyPercentage, current.BuyTargetRoyaltyPercentage, current.SellBaseRoyaltyPercentage, current.SellTargetRoyaltyPercentage},
				})
				if err != nil {
					return err
				}
				req := bonding.UpdateBondingRequest{
					Bonding:                     bondingKey,
					Authority:                   signer,
					BuyBaseRoyalties:            values.accounts[0],
					BuyTargetRoyalties:          values.accounts[1],
					SellBaseRoyalties:           values.accounts[2],
					SellTargetRoyalties:         values.accounts[3],
					BuyBaseRoyaltyPercentage:    values.percents[0],
					BuyTargetRoyaltyPercentage:  values.percents[1],
					SellBaseRoyaltyPercentage:   values.percents[2],
					SellTargetRoyaltyPercentage: values.percents[3],
					BuyFrozen:                   current.BuyFrozen,
					GeneralAuthority:            current.GeneralAuthority,
				}
				if cmd.Flags().Changed("buy-frozen") {
					req.BuyFrozen = buyFrozen
				}
				if cmd.Flags().Changed("general-authority") {
					if req.GeneralAuthority, err = parseOptionalKey("general-authority", general); err != nil {
						return err
					}
				}
				record, err := proc.UpdateTokenBonding(req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"bonding":           bondingKey.String(),
					"buy_frozen":        record.BuyFrozen,
					"general_authority": keyOrNil(record.GeneralAuthority),
				})
			})
		},
	}
	cmd.Flags().StringVar(&key, "bonding", "", "bonding address")
	cmd.Flags().StringVar(&authority, "authority", "", "current general authority")
	cmd.Flags().StringVar(&general, "general-authority", "", "new general authority, empty to lock")
	cmd.Flags().BoolVar(&buyFrozen, "buy-frozen", false, "disable buys")
	royalties.register(cmd)
	_ = cmd.MarkFlagRequired("bonding")
	_ = cmd.MarkFlagRequired("authority")
	return cmd
}

func newUpdateCurveCmd(flags *globalFlags) *cobra.Command {
	var key, authority, curveKey, newAuthority string
	cmd := &cobra.Command{
		Use:   "update-curve",
		Short: "Point a bonding at another curve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req bonding.UpdateCurveRequest
			var err error
			if req.Bonding, err = parseKey("bonding", key); err != nil {
				return err
			}
			if req.Authority, err = parseKey("authority", authority); err != nil {
				return err
			}
			if req.Curve, err = parseKey("curve", curveKey); err != nil {
				return err
			}
			return withProcessor(flags, func(proc *core.Processor) error {
				if cmd.Flags().Changed("curve-authority") {
					if req.CurveAuthority, err = parseOptionalKey("curve-authority", newAuthority); err != nil {
						return err
					}
				} else {
					current, err := proc.Bonding(req.Bonding)
					if err != nil {
						return err
					}
					req.CurveAuthority = current.CurveAuthority
				}
				record, err := proc.UpdateCurve(req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"bonding":         req.Bonding.String(),
					"curve":           record.Curve.String(),
					"curve_authority": keyOrNil(record.CurveAuthority),
				})
			})
		},
	}
	cmd.Flags().StringVar(&key, "bonding", "", "bonding address")
	cmd.Flags().StringVar(&authority, "authority", "", "current curve authority")
	cmd.Flags().StringVar(&curveKey, "curve", "", "new curve address")
	cmd.Flags().StringVar(&newAuthority, "curve-authority", "", "new curve authority, empty to lock")
	for _, name := range []string{"bonding", "authority", "curve"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newUpdateReserveAuthorityCmd(flags *globalFlags) *cobra.Command {
	var key, authority, newAuthority string
	cmd := &cobra.Command{
		Use:   "update-reserve-authority",
		Short: "Rotate or revoke the reserve authority",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req bonding.UpdateReserveAuthorityRequest
			var err error
			if req.Bonding, err = parseKey("bonding", key); err != nil {
				return err
			}
			if req.Authority, err = parseKey("authority", authority); err != nil {
				return err
			}
			if req.NewReserveAuthority, err = parseOptionalKey("new-authority", newAuthority); err != nil {
				return err
			}
			return withProcessor(flags, func(proc *core.Processor) error {
				record, err := proc.UpdateReserveAuthority(req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"bonding":           req.Bonding.String(),
					"reserve_authority": keyOrNil(record.ReserveAuthority),
				})
			})
		},
	}
	cmd.Flags().StringVar(&key, "bonding", "", "bonding address")
	cmd.Flags().StringVar(&authority, "authority", "", "current reserve authority")
	cmd.Flags().StringVar(&newAuthority, "new-authority", "", "new reserve authority, empty to revoke")
	_ = cmd.MarkFlagRequired("bonding")
	_ = cmd.MarkFlagRequired("authority")
	return cmd
}

func newTransferReservesCmd(flags *globalFlags) *cobra.Command {
	var key, authority, destination, amount string
	var native bool
	cmd := &cobra.Command{
		Use:   "transfer-reserves",
		Short: "Move escrowed base out of a bonding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := bonding.TransferReservesRequest{NativeEscrow: native}
			var err error
			if req.Bonding, err = parseKey("bonding", key); err != nil {
				return err
			}
			if req.Authority, err = parseKey("authority", authority); err != nil {
				return err
			}
			if req.Destination, err = parseKey("destination", destination); err != nil {
				return err
			}
			return withProcessor(flags, func(proc *core.Processor) error {
				record, err := proc.Bonding(req.Bonding)
				if err != nil {
					return err
				}
				decimals, err := mintDecimalsFor(proc, record.BaseMint, record.TargetMint)
				if err != nil {
					return err
				}
				if req.Amount, err = precise.ParseAmount(amount, decimals.base); err != nil {
					return err
				}
				return proc.TransferReserves(req)
			})
		},
	}
	cmd.Flags().StringVar(&key, "bonding", "", "bonding address")
	cmd.Flags().StringVar(&authority, "authority", "", "reserve authority")
	cmd.Flags().StringVar(&destination, "destination", "", "receiving base account")
	cmd.Flags().StringVar(&amount, "amount", "", "whole-unit base amount")
	cmd.Flags().BoolVar(&native, "native", false, "route through the native escrow")
	for _, name := range []string{"bonding", "authority", "destination", "amount"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newCloseCmd(flags *globalFlags) *cobra.Command {
	var key, authority, refund string
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close an emptied bonding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var req bonding.CloseBondingRequest
			var err error
			if req.Bonding, err = parseKey("bonding", key); err != nil {
				return err
			}
			if req.Authority, err = parseKey("authority", authority); err != nil {
				return err
			}
			req.Refund = req.Authority
			if strings.TrimSpace(refund) != "" {
				if req.Refund, err = parseKey("refund", refund); err != nil {
					return err
				}
			}
			return withProcessor(flags, func(proc *core.Processor) error {
				return proc.CloseTokenBonding(req)
			})
		},
	}
	cmd.Flags().StringVar(&key, "bonding", "", "bonding address")
	cmd.Flags().StringVar(&authority, "authority", "", "general authority")
	cmd.Flags().StringVar(&refund, "refund", "", "refund recipient, defaults to the authority")
	_ = cmd.MarkFlagRequired("bonding")
	_ = cmd.MarkFlagRequired("authority")
	return cmd
}

type mintDecimals struct{ base, target uint8 }

func mintDecimalsFor(proc *core.Processor, base, target solana.PublicKey) (mintDecimals, error) {
	var out mintDecimals
	baseInfo, ok, err := proc.MintInfo(base)
	if err != nil {
		return out, err
	}
	if !ok {
		return out, fmt.Errorf("unknown mint %s", base)
	}
	targetInfo, ok, err := proc.MintInfo(target)
	if err != nil {
		return out, err
	}
	if !ok {
		return out, fmt.Errorf("unknown mint %s", target)
	}
	out.base, out.target = baseInfo.Decimals, targetInfo.Decimals
	return out, nil
}

func optionalAmount(name, value string, decimals uint8) (*uint64, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	amount, err := precise.ParseAmount(value, decimals)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &amount, nil
}

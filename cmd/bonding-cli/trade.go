package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/StrataFoundation/strata-sub000/core"
	"github.com/StrataFoundation/strata-sub000/native/bonding"
	"github.com/StrataFoundation/strata-sub000/native/bonding/curve"
	"github.com/StrataFoundation/strata-sub000/native/bonding/precise"
)

type tradeFlags struct {
	bonding, trader, source, destination string
	targetAmount, baseAmount             string
	maximumPrice, minimumTarget          string
	minimumPrice                         string
	native, legacy                       bool
}

func (f *tradeFlags) register(cmd *cobra.Command, side string) {
	cmd.Flags().StringVar(&f.bonding, "bonding", "", "bonding address")
	cmd.Flags().StringVar(&f.targetAmount, "target-amount", "", "whole-unit target amount")
	cmd.Flags().BoolVar(&f.native, "native", false, "route base through the native escrow")
	if side != "quote" {
		cmd.Flags().StringVar(&f.trader, "trader", "", "signing owner of the source account")
		cmd.Flags().StringVar(&f.source, "source", "", "account paying into the trade")
		cmd.Flags().StringVar(&f.destination, "destination", "", "account receiving the proceeds")
		cmd.Flags().BoolVar(&f.legacy, "legacy", false, "use the v0 trade path")
		for _, name := range []string{"trader", "source", "destination"} {
			_ = cmd.MarkFlagRequired(name)
		}
	}
	if side != "sell" {
		cmd.Flags().StringVar(&f.baseAmount, "base-amount", "", "whole-unit base to spend instead of --target-amount")
		cmd.Flags().StringVar(&f.maximumPrice, "max-price", "", "largest base amount to pay")
		cmd.Flags().StringVar(&f.minimumTarget, "min-target", "", "smallest target amount to accept with --base-amount")
	}
	if side != "buy" {
		cmd.Flags().StringVar(&f.minimumPrice, "min-price", "", "smallest base amount to receive")
	}
	_ = cmd.MarkFlagRequired("bonding")
}

func (f *tradeFlags) buyRequest(decimals mintDecimals) (bonding.BuyRequest, error) {
	req := bonding.BuyRequest{NativeEscrow: f.native, MaximumPrice: math.MaxUint64}
	var err error
	if req.Bonding, err = parseKey("bonding", f.bonding); err != nil {
		return req, err
	}
	if req.TargetAmount, err = optionalAmount("target-amount", f.targetAmount, decimals.target); err != nil {
		return req, err
	}
	if req.BaseAmount, err = optionalAmount("base-amount", f.baseAmount, decimals.base); err != nil {
		return req, err
	}
	if bound, err := optionalAmount("max-price", f.maximumPrice, decimals.base); err != nil {
		return req, err
	} else if bound != nil {
		req.MaximumPrice = *bound
	}
	if bound, err := optionalAmount("min-target", f.minimumTarget, decimals.target); err != nil {
		return req, err
	} else if bound != nil {
		req.MinimumTargetAmount = *bound
	}
	return req, nil
}

func (f *tradeFlags) sellRequest(decimals mintDecimals) (bonding.SellRequest, error) {
	req := bonding.SellRequest{NativeEscrow: f.native}
	var err error
	if req.Bonding, err = parseKey("bonding", f.bonding); err != nil {
		return req, err
	}
	if amount, err := optionalAmount("target-amount", f.targetAmount, decimals.target); err != nil {
		return req, err
	} else if amount != nil {
		req.TargetAmount = *amount
	}
	if bound, err := optionalAmount("min-price", f.minimumPrice, decimals.base); err != nil {
		return req, err
	} else if bound != nil {
		req.MinimumPrice = *bound
	}
	return req, nil
}

// decimalsForBonding resolves the mint decimals of the bonding named by the
// flags.
func (f *tradeFlags) decimalsForBonding(proc *core.Processor) (mintDecimals, error) {
	key, err := parseKey("bonding", f.bonding)
	if err != nil {
		return mintDecimals{}, err
	}
	record, err := proc.Bonding(key)
	if err != nil {
		return mintDecimals{}, err
	}
	return mintDecimalsFor(proc, record.BaseMint, record.TargetMint)
}

func tradeOutput(result *bonding.TradeResult, decimals mintDecimals) map[string]any {
	return map[string]any{
		"side":           result.Side.String(),
		"price":          precise.FormatAmount(result.Price, decimals.base),
		"target":         precise.FormatAmount(result.TotalTarget, decimals.target),
		"base_royalty":   precise.FormatAmount(result.BaseRoyalty, decimals.base),
		"target_royalty": precise.FormatAmount(result.TargetRoyalty, decimals.target),
		"reserves":       precise.FormatAmount(result.ReserveBalanceFromBonding, decimals.base),
		"supply":         precise.FormatAmount(result.SupplyFromBonding, decimals.target),
	}
}

func newBuyCmd(flags *globalFlags) *cobra.Command {
	f := &tradeFlags{}
	cmd := &cobra.Command{
		Use:   "buy",
		Short: "Buy target tokens from a bonding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withProcessor(flags, func(proc *core.Processor) error {
				decimals, err := f.decimalsForBonding(proc)
				if err != nil {
					return err
				}
				req, err := f.buyRequest(decimals)
				if err != nil {
					return err
				}
				if req.Buyer, err = parseKey("trader", f.trader); err != nil {
					return err
				}
				if req.Source, err = parseKey("source", f.source); err != nil {
					return err
				}
				if req.Destination, err = parseKey("destination", f.destination); err != nil {
					return err
				}
				execute := proc.Buy
				if f.legacy {
					execute = proc.BuyLegacy
				}
				result, err := execute(req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), tradeOutput(result, decimals))
			})
		},
	}
	f.register(cmd, "buy")
	return cmd
}

func newSellCmd(flags *globalFlags) *cobra.Command {
	f := &tradeFlags{}
	cmd := &cobra.Command{
		Use:   "sell",
		Short: "Sell target tokens back to a bonding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withProcessor(flags, func(proc *core.Processor) error {
				decimals, err := f.decimalsForBonding(proc)
				if err != nil {
					return err
				}
				req, err := f.sellRequest(decimals)
				if err != nil {
					return err
				}
				if req.Seller, err = parseKey("trader", f.trader); err != nil {
					return err
				}
				if req.Source, err = parseKey("source", f.source); err != nil {
					return err
				}
				if req.Destination, err = parseKey("destination", f.destination); err != nil {
					return err
				}
				execute := proc.Sell
				if f.legacy {
					execute = proc.SellLegacy
				}
				result, err := execute(req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), tradeOutput(result, decimals))
			})
		},
	}
	f.register(cmd, "sell")
	return cmd
}

func newQuoteCmd(flags *globalFlags) *cobra.Command {
	f := &tradeFlags{}
	var side string
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a buy or sell without executing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withProcessor(flags, func(proc *core.Processor) error {
				decimals, err := f.decimalsForBonding(proc)
				if err != nil {
					return err
				}
				var result *bonding.TradeResult
				switch strings.ToLower(side) {
				case "buy":
					req, err := f.buyRequest(decimals)
					if err != nil {
						return err
					}
					result, err = proc.QuoteBuy(req)
					if err != nil {
						return err
					}
				case "sell":
					req, err := f.sellRequest(decimals)
					if err != nil {
						return err
					}
					result, err = proc.QuoteSell(req)
					if err != nil {
						return err
					}
				default:
					return fmt.Errorf("--side must be buy or sell, got %q", side)
				}
				return printJSON(cmd.OutOrStdout(), tradeOutput(result, decimals))
			})
		},
	}
	cmd.Flags().StringVar(&side, "side", "buy", "buy or sell")
	f.register(cmd, "quote")
	return cmd
}

func newShowCmd(flags *globalFlags) *cobra.Command {
	var isCurve bool
	cmd := &cobra.Command{
		Use:   "show <address>",
		Short: "Print a bonding, or a curve with --curve",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey("address", args[0])
			if err != nil {
				return err
			}
			return withProcessor(flags, func(proc *core.Processor) error {
				if isCurve {
					c, err := proc.Curve(key)
					if err != nil {
						return err
					}
					pieces := make([]map[string]any, 0, len(c.Definition.Pieces))
					for _, piece := range c.Definition.Pieces {
						entry := map[string]any{"offset": piece.Offset}
						if exp, ok := piece.Curve.(curve.ExponentialCurve); ok {
							entry["c"], entry["b"] = exp.C.String(), exp.B.String()
							entry["pow"], entry["frac"] = exp.Pow, exp.Frac
						}
						if fee := piece.BuyTransitionFee; fee != nil {
							entry["buy_fee"] = map[string]uint32{"percentage": fee.Percentage, "interval": fee.Interval}
						}
						if fee := piece.SellTransitionFee; fee != nil {
							entry["sell_fee"] = map[string]uint32{"percentage": fee.Percentage, "interval": fee.Interval}
						}
						pieces = append(pieces, entry)
					}
					return printJSON(cmd.OutOrStdout(), map[string]any{"curve": key.String(), "pieces": pieces})
				}
				record, err := proc.Bonding(key)
				if err != nil {
					return err
				}
				decimals, err := mintDecimalsFor(proc, record.BaseMint, record.TargetMint)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"bonding":           key.String(),
					"phase":             record.Phase(time.Now().Unix()).String(),
					"base_mint":         record.BaseMint.String(),
					"target_mint":       record.TargetMint.String(),
					"curve":             record.Curve.String(),
					"base_storage":      record.BaseStorage.String(),
					"general_authority": keyOrNil(record.GeneralAuthority),
					"reserve_authority": keyOrNil(record.ReserveAuthority),
					"curve_authority":   keyOrNil(record.CurveAuthority),
					"go_live_unix":      record.GoLiveUnix,
					"buy_frozen":        record.BuyFrozen,
					"sell_frozen":       record.SellFrozen,
					"reserves":          precise.FormatAmount(record.ReserveBalanceFromBonding, decimals.base),
					"supply":            precise.FormatAmount(record.SupplyFromBonding, decimals.target),
				})
			})
		},
	}
	cmd.Flags().BoolVar(&isCurve, "curve", false, "treat the address as a curve")
	return cmd
}

func newListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List bondings and curves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withProcessor(flags, func(proc *core.Processor) error {
				keys, err := proc.Bondings()
				if err != nil {
					return err
				}
				curves, err := proc.Curves()
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"bondings": keyStrings(keys), "curves": keyStrings(curves)})
			})
		},
	}
}

func keyStrings(keys []solana.PublicKey) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key.String())
	}
	return out
}

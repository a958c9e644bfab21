package main

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/StrataFoundation/strata-sub000/core"
	"github.com/StrataFoundation/strata-sub000/native/bonding"
	"github.com/StrataFoundation/strata-sub000/native/bonding/precise"
)

func newInitStateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init-state",
		Short: "Create the program-state record for native escrow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withProcessor(flags, func(proc *core.Processor) error {
				key, ps, err := proc.InitializeProgramState()
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"key":              key.String(),
					"wrapped_sol_mint": ps.WrappedSolMint.String(),
					"sol_storage":      ps.SolStorage.String(),
				})
			})
		},
	}
}

func newCreateMintCmd(flags *globalFlags) *cobra.Command {
	var (
		mint, authority, freeze string
		decimals                uint8
		bondingOwned            bool
	)
	cmd := &cobra.Command{
		Use:   "create-mint",
		Short: "Register a mint on the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mintKey, err := parseKey("mint", mint)
			if err != nil {
				return err
			}
			freezeKey, err := parseOptionalKey("freeze-authority", freeze)
			if err != nil {
				return err
			}
			return withProcessor(flags, func(proc *core.Processor) error {
				var authorityKey *solana.PublicKey
				if bondingOwned {
					derived, _, err := bonding.DeriveTargetAuthority(proc.ProgramID(), mintKey)
					if err != nil {
						return err
					}
					authorityKey = &derived
				} else if authorityKey, err = parseOptionalKey("authority", authority); err != nil {
					return err
				}
				if err := proc.CreateMint(mintKey, decimals, authorityKey, freezeKey); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"mint":           mintKey.String(),
					"decimals":       decimals,
					"mint_authority": keyOrNil(authorityKey),
				})
			})
		},
	}
	cmd.Flags().StringVar(&mint, "mint", "", "mint address")
	cmd.Flags().StringVar(&authority, "authority", "", "mint authority")
	cmd.Flags().StringVar(&freeze, "freeze-authority", "", "freeze authority")
	cmd.Flags().Uint8Var(&decimals, "decimals", 9, "mint decimals")
	cmd.Flags().BoolVar(&bondingOwned, "bonding-authority", false, "hand the mint authority to the bonding program")
	_ = cmd.MarkFlagRequired("mint")
	return cmd
}

func newCreateAccountCmd(flags *globalFlags) *cobra.Command {
	var account, mint, owner string
	cmd := &cobra.Command{
		Use:   "create-account",
		Short: "Open a token account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			accountKey, err := parseKey("account", account)
			if err != nil {
				return err
			}
			mintKey, err := parseKey("mint", mint)
			if err != nil {
				return err
			}
			ownerKey, err := parseKey("owner", owner)
			if err != nil {
				return err
			}
			return withProcessor(flags, func(proc *core.Processor) error {
				return proc.CreateAccount(accountKey, mintKey, ownerKey)
			})
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "token account address")
	cmd.Flags().StringVar(&mint, "mint", "", "mint held by the account")
	cmd.Flags().StringVar(&owner, "owner", "", "account owner")
	for _, name := range []string{"account", "mint", "owner"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newMintToCmd(flags *globalFlags) *cobra.Command {
	var mint, destination, authority, amount string
	cmd := &cobra.Command{
		Use:   "mint-to",
		Short: "Issue tokens into an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mintKey, err := parseKey("mint", mint)
			if err != nil {
				return err
			}
			destKey, err := parseKey("destination", destination)
			if err != nil {
				return err
			}
			authorityKey, err := parseKey("authority", authority)
			if err != nil {
				return err
			}
			return withProcessor(flags, func(proc *core.Processor) error {
				info, ok, err := proc.MintInfo(mintKey)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("unknown mint %s", mintKey)
				}
				raw, err := precise.ParseAmount(amount, info.Decimals)
				if err != nil {
					return err
				}
				return proc.MintTo(mintKey, destKey, authorityKey, raw)
			})
		},
	}
	cmd.Flags().StringVar(&mint, "mint", "", "mint to issue")
	cmd.Flags().StringVar(&destination, "destination", "", "receiving token account")
	cmd.Flags().StringVar(&authority, "authority", "", "mint authority")
	cmd.Flags().StringVar(&amount, "amount", "", "whole-unit amount, e.g. 12.5")
	for _, name := range []string{"mint", "destination", "authority", "amount"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newBalanceCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account>",
		Short: "Show a token account balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey("account", args[0])
			if err != nil {
				return err
			}
			return withProcessor(flags, func(proc *core.Processor) error {
				acct, ok, err := proc.TokenAccount(key)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("unknown account %s", key)
				}
				info, _, err := proc.MintInfo(acct.Mint)
				if err != nil {
					return err
				}
				var decimals uint8
				if info != nil {
					decimals = info.Decimals
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"account": key.String(),
					"mint":    acct.Mint.String(),
					"owner":   acct.Owner.String(),
					"amount":  precise.FormatAmount(acct.Amount, decimals),
				})
			})
		},
	}
}

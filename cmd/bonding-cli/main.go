package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/StrataFoundation/strata-sub000/config"
	"github.com/StrataFoundation/strata-sub000/core"
	"github.com/StrataFoundation/strata-sub000/core/state"
	"github.com/StrataFoundation/strata-sub000/observability/logging"
	"github.com/StrataFoundation/strata-sub000/storage"
)

type globalFlags struct {
	configPath string
	dataDir    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "bonding-cli",
		Short:         "Operate bonding curves against a local ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "./bonding.toml", "path to the bonding config")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "override the ledger directory from the config")

	root.AddCommand(
		newInitStateCmd(flags),
		newCreateMintCmd(flags),
		newCreateAccountCmd(flags),
		newMintToCmd(flags),
		newBalanceCmd(flags),
		newCreateCurveCmd(flags),
		newCreateBondingCmd(flags),
		newUpdateBondingCmd(flags),
		newUpdateCurveCmd(flags),
		newUpdateReserveAuthorityCmd(flags),
		newTransferReservesCmd(flags),
		newCloseCmd(flags),
		newBuyCmd(flags),
		newSellCmd(flags),
		newQuoteCmd(flags),
		newShowCmd(flags),
		newListCmd(flags),
	)
	return root
}

// withProcessor opens the configured ledger for the duration of fn.
func withProcessor(flags *globalFlags, fn func(*core.Processor) error) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dataDir := cfg.DataDir
	if strings.TrimSpace(flags.dataDir) != "" {
		dataDir = flags.dataDir
	}
	db, err := storage.NewLevelDB(dataDir)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer db.Close()

	logger := logging.Setup(os.Stderr, "bonding-cli", cfg.Environment, logging.ParseLevel(cfg.LogLevel))
	opts := []core.Option{core.WithLogger(logger)}
	if program := cfg.Program(); !program.IsZero() {
		opts = append(opts, core.WithProgramID(program))
	}
	return fn(core.NewProcessor(state.NewManager(db), opts...))
}

// printJSON indents output for interactive terminals and keeps it compact
// when piped.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if isTerminal(w) {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func parseKey(name, value string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(strings.TrimSpace(value))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("--%s: %w", name, err)
	}
	return key, nil
}

// parseOptionalKey returns nil for an empty value.
func parseOptionalKey(name, value string) (*solana.PublicKey, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	key, err := parseKey(name, value)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// parsePercent converts a percent such as "5" or "2.5" into a fraction of
// MaxUint32.
func parsePercent(name, value string) (uint32, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", name, err)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return 0, fmt.Errorf("--%s: %s is outside 0..100", name, value)
	}
	scaled := d.Mul(decimal.NewFromInt(math.MaxUint32)).Div(decimal.NewFromInt(100)).Floor()
	return uint32(scaled.IntPart()), nil
}

func keyOrNil(key *solana.PublicKey) string {
	if key == nil {
		return ""
	}
	return key.String()
}

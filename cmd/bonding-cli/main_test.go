package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func cliKey(seed byte) string {
	var out solana.PublicKey
	for i := range out {
		out[i] = seed
	}
	out[0] = 0x53
	return out.String()
}

type cli struct {
	t    *testing.T
	base []string
}

func newCLI(t *testing.T) *cli {
	dir := t.TempDir()
	return &cli{t: t, base: []string{
		"--config", filepath.Join(dir, "bonding.toml"),
		"--data-dir", filepath.Join(dir, "ledger"),
	}}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(append([]string{}, args...), c.base...))
	err := root.Execute()
	return out.String(), err
}

func (c *cli) mustRun(args ...string) map[string]any {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, out)
	if out == "" {
		return nil
	}
	var decoded map[string]any
	require.NoError(c.t, json.Unmarshal([]byte(out), &decoded), out)
	return decoded
}

func TestCLIBondingLifecycle(t *testing.T) {
	c := newCLI(t)
	baseMint, targetMint, authority := cliKey(1), cliKey(2), cliKey(3)
	buyer, buyerBase, buyerTarget := cliKey(4), cliKey(5), cliKey(6)
	curveKey := cliKey(7)

	c.mustRun("create-mint", "--mint", baseMint, "--decimals", "6", "--authority", authority)
	minted := c.mustRun("create-mint", "--mint", targetMint, "--decimals", "6", "--bonding-authority")
	require.NotEmpty(t, minted["mint_authority"])
	c.mustRun("create-account", "--account", buyerBase, "--mint", baseMint, "--owner", buyer)
	c.mustRun("create-account", "--account", buyerTarget, "--mint", targetMint, "--owner", buyer)
	c.mustRun("mint-to", "--mint", baseMint, "--destination", buyerBase, "--authority", authority, "--amount", "50")
	c.mustRun("create-curve", "--key", curveKey, "--b", "5", "--pow", "0", "--frac", "1")

	created := c.mustRun("create-bonding",
		"--curve", curveKey,
		"--base-mint", baseMint,
		"--target-mint", targetMint,
		"--general-authority", authority,
		"--reserve-authority", authority,
		"--buy-base-royalties", buyerBase,
		"--buy-target-royalties", buyerTarget,
		"--sell-base-royalties", buyerBase,
		"--sell-target-royalties", buyerTarget,
	)
	bondingKey, _ := created["bonding"].(string)
	require.NotEmpty(t, bondingKey)
	require.Equal(t, false, created["buy_frozen"])

	quote := c.mustRun("quote", "--bonding", bondingKey, "--target-amount", "2")
	require.Equal(t, "10", quote["price"])

	_, err := c.run("buy", "--bonding", bondingKey, "--trader", buyer, "--source", buyerBase,
		"--destination", buyerTarget, "--target-amount", "1", "--max-price", "4")
	require.ErrorContains(t, err, "PriceTooHigh")

	bought := c.mustRun("buy", "--bonding", bondingKey, "--trader", buyer, "--source", buyerBase,
		"--destination", buyerTarget, "--target-amount", "1", "--max-price", "5")
	require.Equal(t, "5", bought["price"])
	require.Equal(t, "1", bought["supply"])

	balance := c.mustRun("balance", buyerTarget)
	require.Equal(t, "1", balance["amount"])

	shown := c.mustRun("show", bondingKey)
	require.Equal(t, "1", shown["supply"])
	require.Equal(t, "5", shown["reserves"])

	listed := c.mustRun("list")
	require.Equal(t, []any{bondingKey}, listed["bondings"])
	require.Equal(t, []any{curveKey}, listed["curves"])

	sold := c.mustRun("sell", "--bonding", bondingKey, "--trader", buyer, "--source", buyerTarget,
		"--destination", buyerBase, "--target-amount", "1", "--min-price", "5")
	require.Equal(t, "5", sold["price"])

	_, err = c.run("close", "--bonding", bondingKey, "--authority", authority)
	require.NoError(t, err)
	_, err = c.run("show", bondingKey)
	require.ErrorContains(t, err, "NotFound")
}

func TestParsePercent(t *testing.T) {
	value, err := parsePercent("royalty", "10")
	require.NoError(t, err)
	require.Equal(t, uint32(429496729), value)

	value, err = parsePercent("royalty", "100")
	require.NoError(t, err)
	require.Equal(t, uint32(4294967295), value)

	_, err = parsePercent("royalty", "101")
	require.Error(t, err)
	_, err = parsePercent("royalty", "-1")
	require.Error(t, err)
}

func TestParsePiece(t *testing.T) {
	piece, err := parsePiece("3600:0.5:1:1:2")
	require.NoError(t, err)
	require.Equal(t, int64(3600), piece.Offset)

	_, err = parsePiece("3600:0.5:1")
	require.Error(t, err)
}

func TestPrintJSONCompactWhenPiped(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]any{"a": 1, "b": "x"}))
	require.Equal(t, "{\"a\":1,\"b\":\"x\"}\n", buf.String())
	require.False(t, isTerminal(&buf))
}

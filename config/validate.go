package config

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Validate rejects configurations the services cannot run with.
func (c *Config) Validate() error {
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate_limit: RequestsPerSecond < 0")
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit: Burst must be positive when limiting")
	}
	if id := strings.TrimSpace(c.ProgramID); id != "" {
		if _, err := solana.PublicKeyFromBase58(id); err != nil {
			return fmt.Errorf("ProgramID: %w", err)
		}
	}
	return nil
}

// Program returns the configured program id, or the zero key when unset.
func (c *Config) Program() solana.PublicKey {
	id := strings.TrimSpace(c.ProgramID)
	if id == "" {
		return solana.PublicKey{}
	}
	pk, err := solana.PublicKeyFromBase58(id)
	if err != nil {
		return solana.PublicKey{}
	}
	return pk
}

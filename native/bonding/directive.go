package bonding

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// DirectiveKind names a fund movement.
type DirectiveKind uint8

const (
	DirectiveTransfer DirectiveKind = iota
	DirectiveMintTo
	DirectiveBurn
)

func (k DirectiveKind) String() string {
	switch k {
	case DirectiveTransfer:
		return "transfer"
	case DirectiveMintTo:
		return "mint_to"
	case DirectiveBurn:
		return "burn"
	default:
		return fmt.Sprintf("directive(%d)", uint8(k))
	}
}

// Directive is one fund movement emitted by a trade. From is the source
// token account for transfers and burns; To is the destination for
// transfers and mints.
type Directive struct {
	Kind      DirectiveKind
	Mint      solana.PublicKey
	From      solana.PublicKey
	To        solana.PublicKey
	Authority solana.PublicKey
	Amount    uint64
}

type directives []Directive

func (d *directives) transfer(mint, from, to, authority solana.PublicKey, amount uint64) {
	if amount == 0 {
		return
	}
	*d = append(*d, Directive{Kind: DirectiveTransfer, Mint: mint, From: from, To: to, Authority: authority, Amount: amount})
}

func (d *directives) mintTo(mint, to, authority solana.PublicKey, amount uint64) {
	if amount == 0 {
		return
	}
	*d = append(*d, Directive{Kind: DirectiveMintTo, Mint: mint, To: to, Authority: authority, Amount: amount})
}

func (d *directives) burn(mint, from, authority solana.PublicKey, amount uint64) {
	if amount == 0 {
		return
	}
	*d = append(*d, Directive{Kind: DirectiveBurn, Mint: mint, From: from, Authority: authority, Amount: amount})
}

// Execute runs directives in order against program, stopping at the first
// failure.
func Execute(program TokenProgram, list []Directive) error {
	for i, d := range list {
		var err error
		switch d.Kind {
		case DirectiveTransfer:
			err = program.Transfer(d.From, d.To, d.Authority, d.Amount)
		case DirectiveMintTo:
			err = program.MintTo(d.Mint, d.To, d.Authority, d.Amount)
		case DirectiveBurn:
			err = program.Burn(d.From, d.Mint, d.Authority, d.Amount)
		default:
			err = fmt.Errorf("unknown directive kind %d", d.Kind)
		}
		if err != nil {
			return fmt.Errorf("bonding: directive %d (%s): %w", i, d.Kind, err)
		}
	}
	return nil
}

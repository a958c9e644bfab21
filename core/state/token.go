package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/gagliardetto/solana-go"

	"github.com/StrataFoundation/strata-sub000/native/bonding"
)

var (
	ErrUnknownMint       = errors.New("state: unknown mint")
	ErrUnknownAccount    = errors.New("state: unknown token account")
	ErrAccountExists     = errors.New("state: token account already exists")
	ErrMintExists        = errors.New("state: mint already exists")
	ErrMintMismatch      = errors.New("state: token account holds a different mint")
	ErrUnauthorized      = errors.New("state: signer does not control the account")
	ErrInsufficientFunds = errors.New("state: insufficient funds")
	ErrSupplyOverflow    = errors.New("state: supply overflow")
	ErrAccountNotEmpty   = errors.New("state: token account not empty")
)

var _ bonding.TokenProgram = (*Tx)(nil)

type mintRecord struct {
	Decimals        uint8
	Supply          uint64
	MintAuthority   []byte
	FreezeAuthority []byte
}

type accountRecord struct {
	Mint   []byte
	Owner  []byte
	Amount uint64
}

func optionalKeyBytes(pk *solana.PublicKey) []byte {
	if pk == nil {
		return nil
	}
	return append([]byte(nil), pk[:]...)
}

func optionalKeyFrom(b []byte) *solana.PublicKey {
	if len(b) != solana.PublicKeyLength {
		return nil
	}
	pk := solana.PublicKeyFromBytes(b)
	return &pk
}

func (tx *Tx) loadMint(mint solana.PublicKey) (*mintRecord, bool, error) {
	data, ok, err := tx.get(mintKey(mint))
	if err != nil || !ok {
		return nil, false, err
	}
	record := new(mintRecord)
	if err := rlp.DecodeBytes(data, record); err != nil {
		return nil, false, fmt.Errorf("state: decode mint %s: %w", mint, err)
	}
	return record, true, nil
}

func (tx *Tx) writeMint(mint solana.PublicKey, record *mintRecord) error {
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return err
	}
	tx.put(mintKey(mint), encoded)
	return nil
}

func (tx *Tx) loadAccount(account solana.PublicKey) (*accountRecord, bool, error) {
	data, ok, err := tx.get(accountKey(account))
	if err != nil || !ok {
		return nil, false, err
	}
	record := new(accountRecord)
	if err := rlp.DecodeBytes(data, record); err != nil {
		return nil, false, fmt.Errorf("state: decode token account %s: %w", account, err)
	}
	return record, true, nil
}

func (tx *Tx) writeAccount(account solana.PublicKey, record *accountRecord) error {
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return err
	}
	tx.put(accountKey(account), encoded)
	return nil
}

func (tx *Tx) mustMint(mint solana.PublicKey) (*mintRecord, error) {
	record, ok, err := tx.loadMint(mint)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMint, mint)
	}
	return record, nil
}

func (tx *Tx) mustAccount(account solana.PublicKey) (*accountRecord, error) {
	record, ok, err := tx.loadAccount(account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, account)
	}
	return record, nil
}

// CreateMint registers a fungible mint.
func (tx *Tx) CreateMint(mint solana.PublicKey, decimals uint8, authority, freeze *solana.PublicKey) error {
	if _, ok, err := tx.loadMint(mint); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %s", ErrMintExists, mint)
	}
	return tx.writeMint(mint, &mintRecord{
		Decimals:        decimals,
		MintAuthority:   optionalKeyBytes(authority),
		FreezeAuthority: optionalKeyBytes(freeze),
	})
}

// MintInfo implements bonding.TokenProgram.
func (tx *Tx) MintInfo(mint solana.PublicKey) (*bonding.MintInfo, bool, error) {
	record, ok, err := tx.loadMint(mint)
	if err != nil || !ok {
		return nil, false, err
	}
	return &bonding.MintInfo{
		Decimals:        record.Decimals,
		Supply:          record.Supply,
		MintAuthority:   optionalKeyFrom(record.MintAuthority),
		FreezeAuthority: optionalKeyFrom(record.FreezeAuthority),
	}, true, nil
}

// TokenAccount implements bonding.TokenProgram.
func (tx *Tx) TokenAccount(account solana.PublicKey) (*bonding.TokenAccountInfo, bool, error) {
	record, ok, err := tx.loadAccount(account)
	if err != nil || !ok {
		return nil, false, err
	}
	return &bonding.TokenAccountInfo{
		Mint:   solana.PublicKeyFromBytes(record.Mint),
		Owner:  solana.PublicKeyFromBytes(record.Owner),
		Amount: record.Amount,
	}, true, nil
}

// InitializeAccount opens an empty token account for mint owned by owner.
func (tx *Tx) InitializeAccount(account, mint, owner solana.PublicKey) error {
	if _, ok, err := tx.loadAccount(account); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %s", ErrAccountExists, account)
	}
	if _, err := tx.mustMint(mint); err != nil {
		return err
	}
	return tx.writeAccount(account, &accountRecord{
		Mint:  append([]byte(nil), mint[:]...),
		Owner: append([]byte(nil), owner[:]...),
	})
}

// Transfer moves amount between two accounts of the same mint.
func (tx *Tx) Transfer(from, to, authority solana.PublicKey, amount uint64) error {
	src, err := tx.mustAccount(from)
	if err != nil {
		return err
	}
	dst, err := tx.mustAccount(to)
	if err != nil {
		return err
	}
	if !solana.PublicKeyFromBytes(src.Owner).Equals(authority) {
		return fmt.Errorf("%w: %s", ErrUnauthorized, from)
	}
	if !solana.PublicKeyFromBytes(src.Mint).Equals(solana.PublicKeyFromBytes(dst.Mint)) {
		return fmt.Errorf("%w: %s", ErrMintMismatch, to)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, from, src.Amount, amount)
	}
	if from.Equals(to) {
		return nil
	}
	if dst.Amount+amount < dst.Amount {
		return ErrSupplyOverflow
	}
	src.Amount -= amount
	dst.Amount += amount
	if err := tx.writeAccount(from, src); err != nil {
		return err
	}
	return tx.writeAccount(to, dst)
}

// MintTo issues amount of mint into destination.
func (tx *Tx) MintTo(mint, destination, authority solana.PublicKey, amount uint64) error {
	info, err := tx.mustMint(mint)
	if err != nil {
		return err
	}
	if current := optionalKeyFrom(info.MintAuthority); current == nil || !current.Equals(authority) {
		return fmt.Errorf("%w: mint %s", ErrUnauthorized, mint)
	}
	dst, err := tx.mustAccount(destination)
	if err != nil {
		return err
	}
	if !solana.PublicKeyFromBytes(dst.Mint).Equals(mint) {
		return fmt.Errorf("%w: %s", ErrMintMismatch, destination)
	}
	if info.Supply+amount < info.Supply {
		return ErrSupplyOverflow
	}
	info.Supply += amount
	dst.Amount += amount
	if err := tx.writeMint(mint, info); err != nil {
		return err
	}
	return tx.writeAccount(destination, dst)
}

// Burn destroys amount from source.
func (tx *Tx) Burn(source, mint, authority solana.PublicKey, amount uint64) error {
	src, err := tx.mustAccount(source)
	if err != nil {
		return err
	}
	if !solana.PublicKeyFromBytes(src.Mint).Equals(mint) {
		return fmt.Errorf("%w: %s", ErrMintMismatch, source)
	}
	if !solana.PublicKeyFromBytes(src.Owner).Equals(authority) {
		return fmt.Errorf("%w: %s", ErrUnauthorized, source)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, source, src.Amount, amount)
	}
	info, err := tx.mustMint(mint)
	if err != nil {
		return err
	}
	src.Amount -= amount
	info.Supply -= amount
	if err := tx.writeMint(mint, info); err != nil {
		return err
	}
	return tx.writeAccount(source, src)
}

// SetMintAuthority hands mint authority from current to next; nil revokes it.
func (tx *Tx) SetMintAuthority(mint, current solana.PublicKey, next *solana.PublicKey) error {
	info, err := tx.mustMint(mint)
	if err != nil {
		return err
	}
	if holder := optionalKeyFrom(info.MintAuthority); holder == nil || !holder.Equals(current) {
		return fmt.Errorf("%w: mint %s", ErrUnauthorized, mint)
	}
	info.MintAuthority = optionalKeyBytes(next)
	return tx.writeMint(mint, info)
}

// CloseAccount removes an empty token account.
func (tx *Tx) CloseAccount(account, _, authority solana.PublicKey) error {
	record, err := tx.mustAccount(account)
	if err != nil {
		return err
	}
	if !solana.PublicKeyFromBytes(record.Owner).Equals(authority) {
		return fmt.Errorf("%w: %s", ErrUnauthorized, account)
	}
	if record.Amount != 0 {
		return fmt.Errorf("%w: %s holds %d", ErrAccountNotEmpty, account, record.Amount)
	}
	tx.del(accountKey(account))
	return nil
}

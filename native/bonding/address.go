package bonding

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	// ProgramID is the default program that owns every derived address.
	ProgramID = solana.MustPublicKeyFromBase58("TBondmkCYxaPCKG4CHYfVTcwQ8on31xnJrPzk8F8WsS")
	// NativeMint is the wrapped native-currency mint.
	NativeMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)

const (
	seedTokenBonding     = "token-bonding"
	seedStorageKey       = "storage-key"
	seedStorageAuthority = "storage-authority"
	seedTargetAuthority  = "target-authority"
	seedState            = "state"
	seedSolStorage       = "sol-storage"
	seedWrappedAuthority = "wrapped-sol-authority"
)

// Addresses groups the derived accounts of one bonding.
type Addresses struct {
	Bonding              solana.PublicKey
	Bump                 uint8
	BaseStorage          solana.PublicKey
	BaseStorageBump      uint8
	StorageAuthority     solana.PublicKey
	StorageAuthorityBump uint8
	TargetAuthority      solana.PublicKey
	TargetAuthorityBump  uint8
}

// DeriveBonding returns the bonding address for targetMint at index.
func DeriveBonding(programID, targetMint solana.PublicKey, index uint16) (solana.PublicKey, uint8, error) {
	var idx [2]byte
	binary.LittleEndian.PutUint16(idx[:], index)
	return solana.FindProgramAddress([][]byte{[]byte(seedTokenBonding), targetMint[:], idx[:]}, programID)
}

// DeriveAddresses returns every address owned by the bonding of targetMint
// at index.
func DeriveAddresses(programID, targetMint solana.PublicKey, index uint16) (Addresses, error) {
	var out Addresses
	var err error
	if out.Bonding, out.Bump, err = DeriveBonding(programID, targetMint, index); err != nil {
		return out, fmt.Errorf("derive bonding: %w", err)
	}
	if out.BaseStorage, out.BaseStorageBump, err = solana.FindProgramAddress(
		[][]byte{[]byte(seedStorageKey), out.Bonding[:]}, programID); err != nil {
		return out, fmt.Errorf("derive base storage: %w", err)
	}
	if out.StorageAuthority, out.StorageAuthorityBump, err = solana.FindProgramAddress(
		[][]byte{[]byte(seedStorageAuthority), out.Bonding[:]}, programID); err != nil {
		return out, fmt.Errorf("derive storage authority: %w", err)
	}
	if out.TargetAuthority, out.TargetAuthorityBump, err = DeriveTargetAuthority(programID, targetMint); err != nil {
		return out, err
	}
	return out, nil
}

// DeriveTargetAuthority returns the mint authority a bonding needs over
// targetMint to be able to sell it.
func DeriveTargetAuthority(programID, targetMint solana.PublicKey) (solana.PublicKey, uint8, error) {
	key, bump, err := solana.FindProgramAddress([][]byte{[]byte(seedTargetAuthority), targetMint[:]}, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("derive target authority: %w", err)
	}
	return key, bump, nil
}

// DeriveStorageAuthority returns the signer over a bonding's base storage.
func DeriveStorageAuthority(programID, bonding solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(seedStorageAuthority), bonding[:]}, programID)
}

// DeriveProgramState returns the program-state singleton address.
func DeriveProgramState(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(seedState)}, programID)
}

package state

import (
	"github.com/gagliardetto/solana-go"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	bondingPrefix      = []byte("bonding:")
	curvePrefix        = []byte("curve:")
	programStatePrefix = []byte("program-state:")
	mintPrefix         = []byte("mint:")
	accountPrefix      = []byte("token-account:")

	// indexes keep raw keys so listings can be recovered
	bondingIndexPrefix = []byte("index/bonding/")
	curveIndexPrefix   = []byte("index/curve/")
)

func recordKey(prefix []byte, key solana.PublicKey) []byte {
	buf := make([]byte, len(prefix)+solana.PublicKeyLength)
	copy(buf, prefix)
	copy(buf[len(prefix):], key[:])
	return ethcrypto.Keccak256(buf)
}

func indexKey(prefix []byte, key solana.PublicKey) []byte {
	buf := make([]byte, len(prefix)+solana.PublicKeyLength)
	copy(buf, prefix)
	copy(buf[len(prefix):], key[:])
	return buf
}

func bondingKey(key solana.PublicKey) []byte      { return recordKey(bondingPrefix, key) }
func curveKey(key solana.PublicKey) []byte        { return recordKey(curvePrefix, key) }
func programStateKey(key solana.PublicKey) []byte { return recordKey(programStatePrefix, key) }
func mintKey(key solana.PublicKey) []byte         { return recordKey(mintPrefix, key) }
func accountKey(key solana.PublicKey) []byte      { return recordKey(accountPrefix, key) }

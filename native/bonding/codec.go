package bonding

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

type recordEncoder struct {
	enc *bin.Encoder
	err error
}

func (w *recordEncoder) key(pk solana.PublicKey) {
	if w.err == nil {
		w.err = w.enc.WriteBytes(pk[:], false)
	}
}

func (w *recordEncoder) optionalKey(pk *solana.PublicKey) {
	w.option(pk != nil)
	if pk != nil {
		w.key(*pk)
	}
}

func (w *recordEncoder) option(present bool) {
	if w.err == nil {
		w.err = w.enc.WriteOption(present)
	}
}

func (w *recordEncoder) u8(v uint8) {
	if w.err == nil {
		w.err = w.enc.WriteUint8(v)
	}
}

func (w *recordEncoder) u16(v uint16) {
	if w.err == nil {
		w.err = w.enc.WriteUint16(v, binary.LittleEndian)
	}
}

func (w *recordEncoder) u32(v uint32) {
	if w.err == nil {
		w.err = w.enc.WriteUint32(v, binary.LittleEndian)
	}
}

func (w *recordEncoder) u64(v uint64) {
	if w.err == nil {
		w.err = w.enc.WriteUint64(v, binary.LittleEndian)
	}
}

func (w *recordEncoder) i64(v int64) {
	if w.err == nil {
		w.err = w.enc.WriteInt64(v, binary.LittleEndian)
	}
}

func (w *recordEncoder) boolean(v bool) {
	if w.err == nil {
		w.err = w.enc.WriteBool(v)
	}
}

// MarshalTokenBonding encodes a bonding record in its fixed field order.
func MarshalTokenBonding(b *TokenBonding) ([]byte, error) {
	if b == nil {
		return nil, fmt.Errorf("bonding: nil record")
	}
	buf := new(bytes.Buffer)
	w := &recordEncoder{enc: bin.NewBorshEncoder(buf)}
	w.key(b.BaseMint)
	w.key(b.TargetMint)
	w.optionalKey(b.GeneralAuthority)
	w.optionalKey(b.ReserveAuthority)
	w.optionalKey(b.CurveAuthority)
	w.key(b.BaseStorage)
	w.key(b.BuyBaseRoyalties)
	w.key(b.BuyTargetRoyalties)
	w.key(b.SellBaseRoyalties)
	w.key(b.SellTargetRoyalties)
	w.u32(b.BuyBaseRoyaltyPercentage)
	w.u32(b.BuyTargetRoyaltyPercentage)
	w.u32(b.SellBaseRoyaltyPercentage)
	w.u32(b.SellTargetRoyaltyPercentage)
	w.key(b.Curve)
	w.option(b.MintCap != nil)
	if b.MintCap != nil {
		w.u64(*b.MintCap)
	}
	w.option(b.PurchaseCap != nil)
	if b.PurchaseCap != nil {
		w.u64(*b.PurchaseCap)
	}
	w.i64(b.GoLiveUnix)
	w.option(b.FreezeBuyUnix != nil)
	if b.FreezeBuyUnix != nil {
		w.i64(*b.FreezeBuyUnix)
	}
	w.i64(b.CreatedAtUnix)
	w.boolean(b.BuyFrozen)
	w.boolean(b.SellFrozen)
	w.u16(b.Index)
	w.u8(b.Bump)
	w.u8(b.BaseStorageBump)
	w.u8(b.TargetMintAuthorityBump)
	w.option(b.BaseStorageAuthorityBump != nil)
	if b.BaseStorageAuthorityBump != nil {
		w.u8(*b.BaseStorageAuthorityBump)
	}
	w.u64(b.ReserveBalanceFromBonding)
	w.u64(b.SupplyFromBonding)
	w.boolean(b.IgnoreExternalReserveChanges)
	w.boolean(b.IgnoreExternalSupplyChanges)
	if w.err != nil {
		return nil, fmt.Errorf("bonding: encode record: %w", w.err)
	}
	return buf.Bytes(), nil
}

type recordDecoder struct {
	dec *bin.Decoder
	err error
}

func (r *recordDecoder) key() solana.PublicKey {
	if r.err != nil {
		return solana.PublicKey{}
	}
	raw, err := r.dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		r.err = err
		return solana.PublicKey{}
	}
	return solana.PublicKeyFromBytes(raw)
}

func (r *recordDecoder) option() bool {
	if r.err != nil {
		return false
	}
	present, err := r.dec.ReadOption()
	r.err = err
	return present
}

func (r *recordDecoder) optionalKey() *solana.PublicKey {
	if !r.option() {
		return nil
	}
	pk := r.key()
	return &pk
}

func (r *recordDecoder) u8() uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint8()
	r.err = err
	return v
}

func (r *recordDecoder) u16() uint16 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint16(binary.LittleEndian)
	r.err = err
	return v
}

func (r *recordDecoder) u32() uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint32(binary.LittleEndian)
	r.err = err
	return v
}

func (r *recordDecoder) u64() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint64(binary.LittleEndian)
	r.err = err
	return v
}

func (r *recordDecoder) i64() int64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadInt64(binary.LittleEndian)
	r.err = err
	return v
}

func (r *recordDecoder) boolean() bool {
	if r.err != nil {
		return false
	}
	v, err := r.dec.ReadBool()
	r.err = err
	return v
}

func (r *recordDecoder) more() bool {
	return r.err == nil && r.dec.Remaining() > 0
}

// UnmarshalTokenBonding decodes a bonding record. Records written before
// shadow accounting existed end after the escrow authority bump; their
// counters and ignore flags decode as zero.
func UnmarshalTokenBonding(data []byte) (*TokenBonding, error) {
	r := &recordDecoder{dec: bin.NewBorshDecoder(data)}
	b := &TokenBonding{}
	b.BaseMint = r.key()
	b.TargetMint = r.key()
	b.GeneralAuthority = r.optionalKey()
	b.ReserveAuthority = r.optionalKey()
	b.CurveAuthority = r.optionalKey()
	b.BaseStorage = r.key()
	b.BuyBaseRoyalties = r.key()
	b.BuyTargetRoyalties = r.key()
	b.SellBaseRoyalties = r.key()
	b.SellTargetRoyalties = r.key()
	b.BuyBaseRoyaltyPercentage = r.u32()
	b.BuyTargetRoyaltyPercentage = r.u32()
	b.SellBaseRoyaltyPercentage = r.u32()
	b.SellTargetRoyaltyPercentage = r.u32()
	b.Curve = r.key()
	if r.option() {
		v := r.u64()
		b.MintCap = &v
	}
	if r.option() {
		v := r.u64()
		b.PurchaseCap = &v
	}
	b.GoLiveUnix = r.i64()
	if r.option() {
		v := r.i64()
		b.FreezeBuyUnix = &v
	}
	b.CreatedAtUnix = r.i64()
	b.BuyFrozen = r.boolean()
	b.SellFrozen = r.boolean()
	b.Index = r.u16()
	b.Bump = r.u8()
	b.BaseStorageBump = r.u8()
	b.TargetMintAuthorityBump = r.u8()
	if r.option() {
		v := r.u8()
		b.BaseStorageAuthorityBump = &v
	}
	if r.more() {
		b.ReserveBalanceFromBonding = r.u64()
		b.SupplyFromBonding = r.u64()
	}
	if r.more() {
		b.IgnoreExternalReserveChanges = r.boolean()
		b.IgnoreExternalSupplyChanges = r.boolean()
	}
	if r.err != nil {
		return nil, fmt.Errorf("bonding: decode record: %w", r.err)
	}
	return b, nil
}

// MarshalProgramState encodes the program-state singleton.
func MarshalProgramState(s *ProgramState) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("bonding: nil program state")
	}
	buf := new(bytes.Buffer)
	w := &recordEncoder{enc: bin.NewBorshEncoder(buf)}
	w.key(s.WrappedSolMint)
	w.key(s.SolStorage)
	w.u8(s.MintAuthorityBump)
	w.u8(s.SolStorageBump)
	w.u8(s.Bump)
	if s.LegacyReserves != nil {
		w.u64(*s.LegacyReserves)
	}
	if w.err != nil {
		return nil, fmt.Errorf("bonding: encode program state: %w", w.err)
	}
	return buf.Bytes(), nil
}

// UnmarshalProgramState decodes the program-state singleton.
func UnmarshalProgramState(data []byte) (*ProgramState, error) {
	r := &recordDecoder{dec: bin.NewBorshDecoder(data)}
	s := &ProgramState{
		WrappedSolMint:    r.key(),
		SolStorage:        r.key(),
		MintAuthorityBump: r.u8(),
		SolStorageBump:    r.u8(),
		Bump:              r.u8(),
	}
	if r.err == nil && r.more() {
		reserves := r.u64()
		s.LegacyReserves = &reserves
	}
	if r.err != nil {
		return nil, fmt.Errorf("bonding: decode program state: %w", r.err)
	}
	return s, nil
}

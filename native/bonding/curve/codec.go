package curve

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/holiman/uint256"

	"github.com/StrataFoundation/strata-sub000/native/bonding/precise"
)

var errValueTooWide = errors.New("curve: fixed-point value exceeds u128")

// Marshal encodes the curve record in its borsh layout: definition tag,
// piece count, then per piece the offset, primitive tag and fields, and the
// two optional transition fees.
func (c Curve) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint8(uint8(KindTimeV0)); err != nil {
		return nil, err
	}
	if err := enc.WriteUint32(uint32(len(c.Definition.Pieces)), binary.LittleEndian); err != nil {
		return nil, err
	}
	for i, piece := range c.Definition.Pieces {
		if err := encodePiece(enc, piece); err != nil {
			return nil, fmt.Errorf("curve: encode piece %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

func encodePiece(enc *bin.Encoder, piece TimeCurve) error {
	if err := enc.WriteInt64(piece.Offset, binary.LittleEndian); err != nil {
		return err
	}
	exp, ok := piece.Curve.(ExponentialCurve)
	if !ok {
		return fmt.Errorf("unsupported primitive %T", piece.Curve)
	}
	if err := enc.WriteUint8(uint8(KindExponential)); err != nil {
		return err
	}
	if err := writeNumber(enc, exp.C); err != nil {
		return err
	}
	if err := writeNumber(enc, exp.B); err != nil {
		return err
	}
	if err := enc.WriteUint8(exp.Pow); err != nil {
		return err
	}
	if err := enc.WriteUint8(exp.Frac); err != nil {
		return err
	}
	if err := writeFee(enc, piece.BuyTransitionFee); err != nil {
		return err
	}
	return writeFee(enc, piece.SellTransitionFee)
}

func writeNumber(enc *bin.Encoder, n precise.Number) error {
	raw := n.Raw()
	if raw.BitLen() > 128 {
		return errValueTooWide
	}
	if err := enc.WriteUint64(raw[0], binary.LittleEndian); err != nil {
		return err
	}
	return enc.WriteUint64(raw[1], binary.LittleEndian)
}

func writeFee(enc *bin.Encoder, fee *TransitionFee) error {
	if err := enc.WriteOption(fee != nil); err != nil {
		return err
	}
	if fee == nil {
		return nil
	}
	if err := enc.WriteUint32(fee.Percentage, binary.LittleEndian); err != nil {
		return err
	}
	return enc.WriteUint32(fee.Interval, binary.LittleEndian)
}

// Unmarshal decodes a curve record produced by Marshal.
func Unmarshal(data []byte) (Curve, error) {
	dec := bin.NewBorshDecoder(data)
	kind, err := dec.ReadUint8()
	if err != nil {
		return Curve{}, fmt.Errorf("curve: read definition tag: %w", err)
	}
	if DefinitionKind(kind) != KindTimeV0 {
		return Curve{}, fmt.Errorf("curve: unknown definition tag %d", kind)
	}
	count, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return Curve{}, fmt.Errorf("curve: read piece count: %w", err)
	}
	if int(count) > dec.Remaining() {
		return Curve{}, fmt.Errorf("curve: piece count %d exceeds payload", count)
	}
	pieces := make([]TimeCurve, 0, count)
	for i := uint32(0); i < count; i++ {
		piece, err := decodePiece(dec)
		if err != nil {
			return Curve{}, fmt.Errorf("curve: decode piece %d: %w", i, err)
		}
		pieces = append(pieces, piece)
	}
	return Curve{Definition: Piecewise{Pieces: pieces}}, nil
}

func decodePiece(dec *bin.Decoder) (TimeCurve, error) {
	var piece TimeCurve
	offset, err := dec.ReadInt64(binary.LittleEndian)
	if err != nil {
		return piece, err
	}
	piece.Offset = offset
	tag, err := dec.ReadUint8()
	if err != nil {
		return piece, err
	}
	if PrimitiveKind(tag) != KindExponential {
		return piece, fmt.Errorf("unknown primitive tag %d", tag)
	}
	var exp ExponentialCurve
	if exp.C, err = readNumber(dec); err != nil {
		return piece, err
	}
	if exp.B, err = readNumber(dec); err != nil {
		return piece, err
	}
	if exp.Pow, err = dec.ReadUint8(); err != nil {
		return piece, err
	}
	if exp.Frac, err = dec.ReadUint8(); err != nil {
		return piece, err
	}
	piece.Curve = exp
	if piece.BuyTransitionFee, err = readFee(dec); err != nil {
		return piece, err
	}
	if piece.SellTransitionFee, err = readFee(dec); err != nil {
		return piece, err
	}
	return piece, nil
}

func readNumber(dec *bin.Decoder) (precise.Number, error) {
	lo, err := dec.ReadUint64(binary.LittleEndian)
	if err != nil {
		return precise.Zero(), err
	}
	hi, err := dec.ReadUint64(binary.LittleEndian)
	if err != nil {
		return precise.Zero(), err
	}
	raw := new(uint256.Int)
	raw[0], raw[1] = lo, hi
	return precise.FromRaw(raw), nil
}

func readFee(dec *bin.Decoder) (*TransitionFee, error) {
	present, err := dec.ReadOption()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	percentage, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	interval, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	return &TransitionFee{Percentage: percentage, Interval: interval}, nil
}

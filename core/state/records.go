package state

import (
	"github.com/gagliardetto/solana-go"

	"github.com/StrataFoundation/strata-sub000/native/bonding"
	"github.com/StrataFoundation/strata-sub000/native/bonding/curve"
)

// BondingGet loads a bonding record.
func (tx *Tx) BondingGet(key solana.PublicKey) (*bonding.TokenBonding, bool, error) {
	data, ok, err := tx.get(bondingKey(key))
	if err != nil || !ok {
		return nil, false, err
	}
	record, err := bonding.UnmarshalTokenBonding(data)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// BondingPut stores a bonding record.
func (tx *Tx) BondingPut(key solana.PublicKey, record *bonding.TokenBonding) error {
	data, err := bonding.MarshalTokenBonding(record)
	if err != nil {
		return err
	}
	tx.put(bondingKey(key), data)
	tx.put(indexKey(bondingIndexPrefix, key), nil)
	return nil
}

// BondingClose removes a bonding record. Account rent is not modelled, so
// refund only identifies the requester.
func (tx *Tx) BondingClose(key, _ solana.PublicKey) error {
	tx.del(bondingKey(key))
	tx.del(indexKey(bondingIndexPrefix, key))
	return nil
}

// Bondings lists stored bonding keys in key order.
func (tx *Tx) Bondings() ([]solana.PublicKey, error) {
	return tx.listIndex(bondingIndexPrefix)
}

// CurveGet loads a curve record.
func (tx *Tx) CurveGet(key solana.PublicKey) (*curve.Curve, bool, error) {
	data, ok, err := tx.get(curveKey(key))
	if err != nil || !ok {
		return nil, false, err
	}
	c, err := curve.Unmarshal(data)
	if err != nil {
		return nil, false, err
	}
	return &c, true, nil
}

// CurvePut stores a curve record.
func (tx *Tx) CurvePut(key solana.PublicKey, c *curve.Curve) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	tx.put(curveKey(key), data)
	tx.put(indexKey(curveIndexPrefix, key), nil)
	return nil
}

// Curves lists stored curve keys in key order.
func (tx *Tx) Curves() ([]solana.PublicKey, error) {
	return tx.listIndex(curveIndexPrefix)
}

// ProgramStateGet loads the program-state singleton.
func (tx *Tx) ProgramStateGet(key solana.PublicKey) (*bonding.ProgramState, bool, error) {
	data, ok, err := tx.get(programStateKey(key))
	if err != nil || !ok {
		return nil, false, err
	}
	record, err := bonding.UnmarshalProgramState(data)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// ProgramStatePut stores the program-state singleton.
func (tx *Tx) ProgramStatePut(key solana.PublicKey, record *bonding.ProgramState) error {
	data, err := bonding.MarshalProgramState(record)
	if err != nil {
		return err
	}
	tx.put(programStateKey(key), data)
	return nil
}

func (tx *Tx) listIndex(prefix []byte) ([]solana.PublicKey, error) {
	var out []solana.PublicKey
	err := tx.iterate(prefix, func(key, _ []byte) error {
		out = append(out, solana.PublicKeyFromBytes(key[len(prefix):]))
		return nil
	})
	return out, err
}

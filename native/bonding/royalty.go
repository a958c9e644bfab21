package bonding

import (
	"math"

	"github.com/holiman/uint256"
)

var maxPercentage = uint256.NewInt(math.MaxUint32)

// royalty returns floor(amount * percentage / MaxUint32).
func royalty(amount uint64, percentage uint32) (uint64, error) {
	if amount == 0 || percentage == 0 {
		return 0, nil
	}
	out := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(uint64(percentage)))
	out.Div(out, maxPercentage)
	if !out.IsUint64() {
		return 0, arithmetic("royalty overflow")
	}
	return out.Uint64(), nil
}

// addPercentage adds a transition fee to a base royalty percentage.
func addPercentage(base, fee uint32) (uint32, error) {
	sum := uint64(base) + uint64(fee)
	if sum > math.MaxUint32 {
		return 0, arithmetic("royalty percentage overflow")
	}
	return uint32(sum), nil
}

func checkedAdd(a, b uint64, what string) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, arithmetic(what + " overflow")
	}
	return a + b, nil
}

func checkedSub(a, b uint64, what string) (uint64, error) {
	if b > a {
		return 0, arithmetic(what + " underflow")
	}
	return a - b, nil
}

package chain

import (
	"math"
	"math/big"
	"strconv"

	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

const (
	// DefaultGasMultiplier pads node estimates for contract creation.
	DefaultGasMultiplier = 1.2

	// MinCreationGas is the intrinsic cost of a contract creation transaction.
	MinCreationGas uint64 = 53000
)

// ScaleGas multiplies a gas estimate, rounding up. The result never drops below
// the estimate and saturates at math.MaxUint64.
func ScaleGas(estimate uint64, multiplier float64) (uint64, error) {
	if multiplier < 1 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return 0, deployerr.WithDetails(deployerr.ErrInvalidInput, map[string]string{
			"gas_multiplier": strconv.FormatFloat(multiplier, 'f', -1, 64),
			"reason":         "multiplier must be a finite number of at least 1",
		})
	}

	scaled := multiplyBigInt(new(big.Int).SetUint64(estimate), multiplier)
	if !scaled.IsUint64() {
		return math.MaxUint64, nil
	}
	return scaled.Uint64(), nil
}

// ScaleGasPrice multiplies a gas price in wei, rounding up.
func ScaleGasPrice(price *big.Int, multiplier float64) *big.Int {
	if price == nil {
		return big.NewInt(0)
	}
	return multiplyBigInt(price, multiplier)
}

// FormatGasPrice renders a wei gas price in gwei, e.g. "20 gwei".
func FormatGasPrice(weiPrice *big.Int) string {
	return FormatUnits(weiPrice, Gwei) + " gwei"
}

// multiplyBigInt multiplies n by a float multiplier and rounds up.
func multiplyBigInt(n *big.Int, multiplier float64) *big.Int {
	f := new(big.Float).SetPrec(256).SetInt(n)
	f.Mul(f, new(big.Float).SetFloat64(multiplier))

	result, acc := f.Int(nil)
	if acc == big.Below {
		result.Add(result, big.NewInt(1))
	}
	return result
}

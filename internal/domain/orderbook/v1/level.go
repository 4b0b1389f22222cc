package orderbookv1

import (
	"errors"
	"fmt"
	"math"
)

// MaxPricePrecision bounds the number of decimal digits a book may carry.
// Beyond this the fixed-point key of a realistic price no longer fits an
// int64, so the limit is enforced once at construction instead of on every
// update.
const MaxPricePrecision = 12

var (
	ErrPrecisionTooLarge = errors.New("price precision exceeds maximum")
	ErrPriceOutOfRange   = errors.New("price does not fit fixed-point range")
)

// Level is the quantity resting at a single price point. A level only
// exists while its size is strictly positive; a zero-size update removes it.
type Level struct {
	Size float64 `json:"size"`
}

// PriceLevel pairs a level with its decoded decimal price.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Update is a single point change to one side of a book.
type Update struct {
	Price float64
	Size  float64
	Bid   bool
}

// PriceToFixed encodes a decimal price as a scaled integer key. Rounding is
// used rather than truncation so prices that do not divide evenly at the
// configured precision land on the nearest tick.
func PriceToFixed(price float64, precision uint32) int64 {
	return int64(math.Round(price * math.Pow10(int(precision))))
}

// FixedToPrice decodes a fixed-point key back to its decimal price.
func FixedToPrice(fixed int64, precision uint32) float64 {
	return float64(fixed) / math.Pow10(int(precision))
}

// ValidatePrecision checks a book precision at construction time.
func ValidatePrecision(precision uint32) error {
	if precision > MaxPricePrecision {
		return fmt.Errorf("%w: got %d, max %d", ErrPrecisionTooLarge, precision, MaxPricePrecision)
	}
	return nil
}

// ValidatePrice checks that a price survives fixed-point encoding at the
// given precision. Venue adapters call this at the boundary; the book itself
// trusts its input.
func ValidatePrice(price float64, precision uint32) error {
	scaled := price * math.Pow10(int(precision))
	if math.IsNaN(scaled) || math.IsInf(scaled, 0) || math.Abs(scaled) >= math.MaxInt64 {
		return fmt.Errorf("%w: price %v at precision %d", ErrPriceOutOfRange, price, precision)
	}
	return nil
}

package coupon

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// Percentage takes DiscountValue percent off the base price.
	Percentage DiscountType = "percentage"
	// Fixed takes DiscountValue (VND) off the base price.
	Fixed DiscountType = "fixed"
)

var (
	// ErrMissingCode is returned when the coupon carries no code.
	ErrMissingCode = errors.New("coupon code is required")
	// ErrUnknownType is returned for discount types other than percentage or fixed.
	ErrUnknownType = errors.New("coupon discount type not supported")
	// ErrNegativeValue indicates a negative discount value.
	ErrNegativeValue = errors.New("coupon discount value must not be negative")
	// ErrPercentOutOfRange indicates a percentage above 100.
	ErrPercentOutOfRange = errors.New("coupon percentage must be between 0 and 100")
)

var hundred = decimal.NewFromInt(100)

// Spec is a coupon supplied with a single pricing request. It is never persisted.
type Spec struct {
	Code          string       `json:"code"`
	DiscountType  DiscountType `json:"discountType"`
	DiscountValue float64      `json:"discountValue"`
}

// Validate reports whether the coupon can be used in a calculation.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Code) == "" {
		return ErrMissingCode
	}
	if s.DiscountValue < 0 {
		return ErrNegativeValue
	}
	switch s.Type() {
	case Percentage:
		if s.DiscountValue > 100 {
			return ErrPercentOutOfRange
		}
	case Fixed:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, s.DiscountType)
	}
	return nil
}

// Type returns the normalised discount type.
func (s Spec) Type() DiscountType {
	return DiscountType(strings.ToLower(strings.TrimSpace(string(s.DiscountType))))
}

// Amount computes the discount against base. Percentages are rounded to the
// nearest dong. The result is not capped at base: a fixed coupon larger than
// the order still reports its full value.
func (s Spec) Amount(base int64) int64 {
	value := decimal.NewFromFloat(s.DiscountValue)
	if value.IsNegative() {
		return 0
	}
	if s.Type() == Percentage {
		return decimal.NewFromInt(base).Mul(value).Div(hundred).Round(0).IntPart()
	}
	return value.Round(0).IntPart()
}

// Reason is the label shown next to the coupon discount.
func (s Spec) Reason() string {
	return "Mã " + strings.TrimSpace(s.Code)
}

package pricing

import "context"

// Strategy describes the pricing strategy chosen by the membership service.
type Strategy struct {
	Name string `json:"name"`
}

// MembershipQuote is the membership service answer. FinalPrice covers the
// whole quantity, not a single unit.
type MembershipQuote struct {
	FinalPrice float64  `json:"finalPrice"`
	Strategy   Strategy `json:"strategy"`
}

// MembershipPricer computes tier-specific prices for a user.
type MembershipPricer interface {
	CalculateForUser(ctx context.Context, userID string, avgUnitPrice float64, quantity int) (MembershipQuote, error)
}

// Directive asks the discount service to apply one reduction.
type Directive struct {
	Type      string  `json:"type"`
	Value     float64 `json:"value"`
	ValueType string  `json:"valueType,omitempty"`
	Reason    string  `json:"reason"`
}

// StackRequest is sent to the discount service. Ordering and interaction of
// directives is decided by the service.
type StackRequest struct {
	BasePrice Money       `json:"basePrice"`
	Quantity  int         `json:"quantity"`
	ItemName  string      `json:"itemName"`
	Discounts []Directive `json:"discounts"`
}

// StackQuote is the discount service answer.
type StackQuote struct {
	FinalPrice float64 `json:"finalPrice"`
}

// DiscountStacker applies several discount directives in one call.
type DiscountStacker interface {
	Calculate(ctx context.Context, req StackRequest) (StackQuote, error)
}

package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-buku/internal/coupon"
	"github.com/noah-isme/toko-buku/internal/obs"
)

// Money represents a monetary value in VND, which has no minor unit.
type Money = int64

const (
	// FreeShippingThreshold is the subtotal above which shipping is waived.
	FreeShippingThreshold Money = 500_000
	// FlatShippingFee is charged when the subtotal does not exceed the threshold.
	FlatShippingFee Money = 25_000
	// SeasonalPercent is the Tet promotion applied in January and February.
	SeasonalPercent = 5
	// SeasonalReason labels the Tet promotion line.
	SeasonalReason = "Khuyến mãi Tết"

	// MaxSubtotal bounds a cart so totals stay well inside int64.
	MaxSubtotal Money = 1_000_000_000_000_000

	orderItemName = "Đơn hàng"
	regularTier   = "regular"
)

// ErrInvalidInput is returned for carts or coupons that cannot be priced.
var ErrInvalidInput = errors.New("pricing: invalid input")

// Mode selects between self-contained and service-assisted calculation.
type Mode string

const (
	// ModeLocal never contacts external services.
	ModeLocal Mode = "local"
	// ModeAPI consults the membership and discount services for signed-in users.
	ModeAPI Mode = "api"
)

// ParseMode converts a configuration value into a Mode. Boolean spellings are
// accepted so an "enable API pricing" flag maps onto the same setting.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "local", "0", "false", "off", "no":
		return ModeLocal, nil
	case "api", "1", "true", "on", "yes":
		return ModeAPI, nil
	default:
		return "", fmt.Errorf("pricing: unknown mode %q", value)
	}
}

// CartLine is one priced line of the cart.
type CartLine struct {
	UnitPrice Money `json:"unitPrice"`
	Quantity  int   `json:"quantity"`
}

// DiscountKind identifies where a discount line came from.
type DiscountKind string

const (
	KindMembership DiscountKind = "membership"
	KindCoupon     DiscountKind = "coupon"
	KindSeasonal   DiscountKind = "seasonal"
)

// DiscountLine is one itemised reduction shown to the buyer.
type DiscountLine struct {
	Kind   DiscountKind `json:"kind"`
	Amount Money        `json:"amount"`
	Reason string       `json:"reason"`
}

// Result is the price breakdown of one calculation.
type Result struct {
	Subtotal      Money          `json:"subtotal"`
	Shipping      Money          `json:"shipping"`
	Discounts     []DiscountLine `json:"discounts"`
	Total         Money          `json:"total"`
	OriginalTotal Money          `json:"originalTotal"`
}

// DiscountTotal sums the amounts of all discount lines.
func (r Result) DiscountTotal() Money {
	var sum Money
	for _, d := range r.Discounts {
		sum += d.Amount
	}
	return sum
}

// Savings is the difference between the original and the charged total.
func (r Result) Savings() Money {
	return r.OriginalTotal - r.Total
}

// HasDiscount reports whether any discount line was produced.
func (r Result) HasDiscount() bool {
	return len(r.Discounts) > 0
}

// Request carries the inputs of one calculation.
type Request struct {
	Items          []CartLine
	UserID         string
	Coupon         *coupon.Spec
	MembershipTier string
}

// EngineConfig wires the engine's collaborators.
type EngineConfig struct {
	Mode       Mode
	Membership MembershipPricer
	Discounts  DiscountStacker
	Now        func() time.Time
	// Location decides which calendar month is current for the seasonal promotion.
	Location *time.Location
	Logger   zerolog.Logger
}

// Engine computes checkout prices. It keeps no per-call state and is safe for
// concurrent use.
type Engine struct {
	mode       Mode
	membership MembershipPricer
	discounts  DiscountStacker
	now        func() time.Time
	location   *time.Location
	logger     zerolog.Logger
}

// NewEngine validates the configuration and builds an Engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeLocal
	}
	if mode != ModeLocal && mode != ModeAPI {
		return nil, fmt.Errorf("pricing: unknown mode %q", mode)
	}
	if mode == ModeAPI && (cfg.Membership == nil || cfg.Discounts == nil) {
		return nil, errors.New("pricing: api mode requires membership and discount services")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		mode:       mode,
		membership: cfg.Membership,
		discounts:  cfg.Discounts,
		now:        now,
		location:   cfg.Location,
		logger:     cfg.Logger,
	}, nil
}

// Mode returns the configured calculation mode.
func (e *Engine) Mode() Mode {
	return e.mode
}

// Subtotal sums unit price times quantity over all lines.
func Subtotal(items []CartLine) Money {
	var subtotal Money
	for _, it := range items {
		subtotal += it.UnitPrice * Money(it.Quantity)
	}
	return subtotal
}

// TotalQuantity sums the quantities of all lines.
func TotalQuantity(items []CartLine) int {
	total := 0
	for _, it := range items {
		total += it.Quantity
	}
	return total
}

// ShippingFor returns the shipping fee for a subtotal.
func ShippingFor(subtotal Money) Money {
	if subtotal > FreeShippingThreshold {
		return 0
	}
	return FlatShippingFee
}

// Compute prices the request. The only error it returns is ErrInvalidInput;
// failures of the external services degrade to an undiscounted total.
func (e *Engine) Compute(ctx context.Context, req Request) (Result, error) {
	if err := validate(req); err != nil {
		return Result{}, err
	}
	subtotal := Subtotal(req.Items)
	shipping := ShippingFor(subtotal)

	userID := strings.TrimSpace(req.UserID)
	if e.mode != ModeAPI || userID == "" {
		observeQuote(e.mode, "local")
		return computeLocal(subtotal, shipping, req.Coupon), nil
	}

	res, step, err := e.computeAssisted(ctx, req, userID, subtotal, shipping)
	if err != nil {
		logger := obs.LoggerFrom(ctx, e.logger)
		logger.Warn().
			Err(err).
			Str("user_id", userID).
			Str("step", step).
			Int64("subtotal", subtotal).
			Msg("pricing_fallback")
		if obs.PricingFallbackTotal != nil {
			obs.PricingFallbackTotal.WithLabelValues(step).Inc()
		}
		observeQuote(ModeAPI, "fallback")
		return fallback(subtotal, shipping), nil
	}
	observeQuote(ModeAPI, "assisted")
	return res, nil
}

func computeLocal(subtotal, shipping Money, c *coupon.Spec) Result {
	discounts := make([]DiscountLine, 0, 1)
	var couponDiscount Money
	if c != nil {
		couponDiscount = c.Amount(subtotal)
		if couponDiscount > 0 {
			discounts = append(discounts, DiscountLine{Kind: KindCoupon, Amount: couponDiscount, Reason: c.Reason()})
		}
	}
	return Result{
		Subtotal:      subtotal,
		Shipping:      shipping,
		Discounts:     discounts,
		Total:         subtotal + shipping - couponDiscount,
		OriginalTotal: subtotal + shipping,
	}
}

// computeAssisted runs the membership step followed by the stacking step. The
// second request depends on the first answer, so they run sequentially. On
// error it reports which step failed.
func (e *Engine) computeAssisted(ctx context.Context, req Request, userID string, subtotal, shipping Money) (Result, string, error) {
	quantity := TotalQuantity(req.Items)
	running := subtotal
	discounts := make([]DiscountLine, 0, 3)

	if tier := strings.TrimSpace(req.MembershipTier); tier != "" && !strings.EqualFold(tier, regularTier) {
		quote, err := e.membership.CalculateForUser(ctx, userID, averageUnitPrice(subtotal, quantity), quantity)
		if err != nil {
			return Result{}, "membership", err
		}
		if final := toMoney(quote.FinalPrice); final > 0 && subtotal-final > 0 {
			name := strings.TrimSpace(quote.Strategy.Name)
			if name == "" {
				name = tier
			}
			discounts = append(discounts, DiscountLine{Kind: KindMembership, Amount: subtotal - final, Reason: "Ưu đãi " + name})
			running = final
		}
	}

	seasonal := e.seasonalActive()
	directives := make([]Directive, 0, 2)
	if req.Coupon != nil {
		directives = append(directives, Directive{
			Type:      string(KindCoupon),
			Value:     req.Coupon.DiscountValue,
			ValueType: string(req.Coupon.Type()),
			Reason:    req.Coupon.Reason(),
		})
	}
	if seasonal {
		directives = append(directives, Directive{
			Type:      string(KindSeasonal),
			Value:     SeasonalPercent,
			ValueType: string(coupon.Percentage),
			Reason:    SeasonalReason,
		})
	}

	if len(directives) > 0 {
		quote, err := e.discounts.Calculate(ctx, StackRequest{
			BasePrice: running,
			Quantity:  quantity,
			ItemName:  orderItemName,
			Discounts: directives,
		})
		if err != nil {
			return Result{}, "discounts", err
		}
		if final := toMoney(quote.FinalPrice); final > 0 && running-final > 0 {
			// Display lines are recomputed against the pre-stacking price and
			// need not add up to the service's aggregate reduction.
			if req.Coupon != nil {
				if amount := req.Coupon.Amount(running); amount > 0 {
					discounts = append(discounts, DiscountLine{Kind: KindCoupon, Amount: amount, Reason: req.Coupon.Reason()})
				}
			}
			if seasonal {
				if amount := percentOf(running, SeasonalPercent); amount > 0 {
					discounts = append(discounts, DiscountLine{Kind: KindSeasonal, Amount: amount, Reason: SeasonalReason})
				}
			}
			running = final
		}
	}

	return Result{
		Subtotal:      subtotal,
		Shipping:      shipping,
		Discounts:     discounts,
		Total:         running + shipping,
		OriginalTotal: subtotal + shipping,
	}, "", nil
}

// fallback drops every discount. A partially discounted total would not match
// what the services would have charged.
func fallback(subtotal, shipping Money) Result {
	return Result{
		Subtotal:      subtotal,
		Shipping:      shipping,
		Discounts:     []DiscountLine{},
		Total:         subtotal + shipping,
		OriginalTotal: subtotal + shipping,
	}
}

func (e *Engine) seasonalActive() bool {
	now := e.now()
	if e.location != nil {
		now = now.In(e.location)
	}
	month := now.Month()
	return month == time.January || month == time.February
}

func validate(req Request) error {
	var subtotal Money
	for i, it := range req.Items {
		if it.UnitPrice < 0 {
			return fmt.Errorf("%w: item %d has negative unit price", ErrInvalidInput, i)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", ErrInvalidInput, i)
		}
		if it.UnitPrice > (MaxSubtotal-subtotal)/Money(it.Quantity) {
			return fmt.Errorf("%w: item %d pushes the subtotal past %d", ErrInvalidInput, i, MaxSubtotal)
		}
		subtotal += it.UnitPrice * Money(it.Quantity)
	}
	if req.Coupon != nil {
		if err := req.Coupon.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}
	return nil
}

func averageUnitPrice(subtotal Money, quantity int) float64 {
	if quantity == 0 {
		return float64(subtotal)
	}
	return decimal.NewFromInt(subtotal).Div(decimal.NewFromInt(int64(quantity))).InexactFloat64()
}

func percentOf(base Money, percent int64) Money {
	return decimal.NewFromInt(base).Mul(decimal.NewFromInt(percent)).Div(decimal.NewFromInt(100)).Round(0).IntPart()
}

func toMoney(v float64) Money {
	return decimal.NewFromFloat(v).Round(0).IntPart()
}

func observeQuote(mode Mode, path string) {
	if obs.PricingQuotesTotal != nil {
		obs.PricingQuotesTotal.WithLabelValues(string(mode), path).Inc()
	}
}

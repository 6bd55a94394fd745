package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-buku/internal/common"
	"github.com/noah-isme/toko-buku/internal/coupon"
	"github.com/noah-isme/toko-buku/internal/obs"
	"github.com/noah-isme/toko-buku/internal/pricing"
)

// Quoter prices a cart.
type Quoter interface {
	Compute(ctx context.Context, req pricing.Request) (pricing.Result, error)
	Mode() pricing.Mode
}

// QuoteItem is one cart line of a quote request.
type QuoteItem struct {
	UnitPrice int64 `json:"unitPrice" validate:"gte=0,max=1000000000000"`
	Quantity  int   `json:"quantity" validate:"gte=1,max=10000"`
}

// QuoteCoupon is the coupon the buyer entered.
type QuoteCoupon struct {
	Code          string  `json:"code" validate:"required,max=64"`
	DiscountType  string  `json:"discountType" validate:"required"`
	DiscountValue float64 `json:"discountValue" validate:"gte=0"`
}

// QuoteRequest is the body of POST /checkout/quote. The user is taken from the
// bearer token, never from the body.
type QuoteRequest struct {
	Items          []QuoteItem  `json:"items" validate:"dive"`
	Coupon         *QuoteCoupon `json:"coupon,omitempty" validate:"omitempty"`
	MembershipTier string       `json:"membershipTier,omitempty" validate:"max=32"`
}

// Quote is the response payload.
type Quote struct {
	QuoteID   string            `json:"quoteId"`
	Mode      pricing.Mode      `json:"mode"`
	Pricing   pricing.Result    `json:"pricing"`
	Breakdown pricing.Breakdown `json:"breakdown"`
}

// Handler serves the checkout pricing endpoints.
type Handler struct {
	Engine   Quoter
	Validate *validator.Validate
	NewID    func() string
}

// NewHandler builds a Handler with a fresh validator.
func NewHandler(engine Quoter) *Handler {
	return &Handler{Engine: engine, Validate: validator.New(), NewID: uuid.NewString}
}

// Quote prices the posted cart for the current (possibly anonymous) buyer.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Engine == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing engine not configured", nil)
		return
	}
	var payload QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if details := h.validate(payload); details != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid quote request", details)
		return
	}

	userID, _ := common.UserID(r.Context())
	result, err := h.Engine.Compute(r.Context(), payload.PricingRequest(userID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	id := uuid.NewString
	if h.NewID != nil {
		id = h.NewID
	}
	common.Data(w, http.StatusOK, Quote{
		QuoteID:   id(),
		Mode:      h.Engine.Mode(),
		Pricing:   result,
		Breakdown: pricing.Present(result),
	})
}

// ShippingPolicy reports the free-shipping threshold and the flat fee.
func (h *Handler) ShippingPolicy(w http.ResponseWriter, _ *http.Request) {
	common.Data(w, http.StatusOK, map[string]any{
		"freeShippingThreshold": pricing.FreeShippingThreshold,
		"flatFee":               pricing.FlatShippingFee,
		"currency":              "VND",
	})
}

func (h *Handler) validate(payload QuoteRequest) map[string]string {
	v := h.Validate
	if v == nil {
		v = validator.New()
	}
	err := v.Struct(payload)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"body": err.Error()}
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Namespace()] = fe.Tag()
	}
	return details
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, pricing.ErrInvalidInput) {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), nil)
		return
	}
	if common.WriteAppError(w, err, http.StatusBadRequest, "BAD_REQUEST") {
		return
	}
	logger := obs.LoggerFrom(r.Context(), zerolog.Nop())
	logger.Error().Err(err).Msg("quote_failed")
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not price cart", nil)
}

// PricingRequest converts the payload into an engine request for userID.
func (p QuoteRequest) PricingRequest(userID string) pricing.Request {
	items := make([]pricing.CartLine, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, pricing.CartLine{UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}
	req := pricing.Request{
		Items:          items,
		UserID:         userID,
		MembershipTier: p.MembershipTier,
	}
	if p.Coupon != nil {
		req.Coupon = &coupon.Spec{
			Code:          p.Coupon.Code,
			DiscountType:  coupon.DiscountType(p.Coupon.DiscountType),
			DiscountValue: p.Coupon.DiscountValue,
		}
	}
	return req
}

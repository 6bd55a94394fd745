package remote

import (
	"context"

	"github.com/noah-isme/toko-buku/internal/pricing"
)

// DiscountTarget labels the discount service in metrics and logs.
const DiscountTarget = "discounts"

type discountResponse struct {
	FinalPrice *float64 `json:"finalPrice"`
}

// DiscountClient asks the discount service to stack coupon and seasonal
// directives on top of a base price.
type DiscountClient struct {
	caller caller
}

var _ pricing.DiscountStacker = (*DiscountClient)(nil)

// NewDiscountClient builds a client for the service rooted at baseURL.
func NewDiscountClient(baseURL string, opts Options) (*DiscountClient, error) {
	c, err := newCaller(DiscountTarget, baseURL, opts)
	if err != nil {
		return nil, err
	}
	return &DiscountClient{caller: c}, nil
}

// Calculate implements pricing.DiscountStacker.
func (c *DiscountClient) Calculate(ctx context.Context, req pricing.StackRequest) (pricing.StackQuote, error) {
	if req.Discounts == nil {
		req.Discounts = []pricing.Directive{}
	}
	var resp discountResponse
	if err := c.caller.postJSON(ctx, "/discounts/calculate", req, &resp); err != nil {
		return pricing.StackQuote{}, err
	}
	if resp.FinalPrice == nil {
		return pricing.StackQuote{}, nil
	}
	return pricing.StackQuote{FinalPrice: *resp.FinalPrice}, nil
}

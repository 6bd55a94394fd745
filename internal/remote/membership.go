package remote

import (
	"context"

	"github.com/noah-isme/toko-buku/internal/pricing"
)

// MembershipTarget labels the membership service in metrics and logs.
const MembershipTarget = "membership"

type membershipRequest struct {
	UserID    string  `json:"userId"`
	BasePrice float64 `json:"basePrice"`
	Quantity  int     `json:"quantity"`
}

type membershipResponse struct {
	FinalPrice *float64 `json:"finalPrice"`
	Strategy   struct {
		Name string `json:"name"`
	} `json:"strategy"`
}

// MembershipClient asks the membership service for a member's price.
type MembershipClient struct {
	caller caller
}

var _ pricing.MembershipPricer = (*MembershipClient)(nil)

// NewMembershipClient builds a client for the service rooted at baseURL.
func NewMembershipClient(baseURL string, opts Options) (*MembershipClient, error) {
	c, err := newCaller(MembershipTarget, baseURL, opts)
	if err != nil {
		return nil, err
	}
	return &MembershipClient{caller: c}, nil
}

// CalculateForUser implements pricing.MembershipPricer.
func (c *MembershipClient) CalculateForUser(ctx context.Context, userID string, avgUnitPrice float64, quantity int) (pricing.MembershipQuote, error) {
	var resp membershipResponse
	err := c.caller.postJSON(ctx, "/pricing/calculate", membershipRequest{
		UserID:    userID,
		BasePrice: avgUnitPrice,
		Quantity:  quantity,
	}, &resp)
	if err != nil {
		return pricing.MembershipQuote{}, err
	}
	// A missing finalPrice means no member price applies; the engine skips the step.
	var final float64
	if resp.FinalPrice != nil {
		final = *resp.FinalPrice
	}
	return pricing.MembershipQuote{
		FinalPrice: final,
		Strategy:   pricing.Strategy{Name: resp.Strategy.Name},
	}, nil
}

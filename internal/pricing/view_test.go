package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatVND(t *testing.T) {
	require.Equal(t, "1.000.000 ₫", FormatVND(1_000_000))
	require.Equal(t, "25.000 ₫", FormatVND(25_000))
	require.Equal(t, "0 ₫", FormatVND(0))
}

func TestPresentWithDiscounts(t *testing.T) {
	res := Result{
		Subtotal:      1_000_000,
		Shipping:      0,
		Discounts:     []DiscountLine{{Kind: KindCoupon, Amount: 100_000, Reason: "Mã SACH10"}},
		Total:         900_000,
		OriginalTotal: 1_000_000,
	}
	b := Present(res)

	require.Len(t, b.Rows, 3)
	require.Equal(t, "Tạm tính", b.Rows[0].Label)
	require.Equal(t, "Miễn phí", b.Rows[1].Display)
	require.Equal(t, Row{Kind: "coupon", Label: "Mã SACH10", Amount: -100_000, Display: "-100.000 ₫"}, b.Rows[2])
	require.True(t, b.StrikeOriginal)
	require.Equal(t, 10, b.SavingsPercent)
	require.Equal(t, "100.000 ₫", b.Savings)
	require.Equal(t, "900.000 ₫", b.Total)
	require.Equal(t, "1.000.000 ₫", b.OriginalTotal)
}

func TestPresentWithoutDiscounts(t *testing.T) {
	b := Present(Result{Subtotal: 100_000, Shipping: 25_000, Discounts: []DiscountLine{}, Total: 125_000, OriginalTotal: 125_000})
	require.Len(t, b.Rows, 2)
	require.Equal(t, "25.000 ₫", b.Rows[1].Display)
	require.False(t, b.StrikeOriginal)
	require.Zero(t, b.SavingsPercent)
	require.Empty(t, b.Savings)
}

func TestPresentSavingsPercentRounds(t *testing.T) {
	b := Present(Result{
		Subtotal:      300_000,
		Shipping:      25_000,
		Discounts:     []DiscountLine{{Kind: KindCoupon, Amount: 50_000, Reason: "Mã GIAM50K"}},
		Total:         275_000,
		OriginalTotal: 325_000,
	})
	// 50000 / 325000 = 15.38%
	require.Equal(t, 15, b.SavingsPercent)
}

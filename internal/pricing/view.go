package pricing

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Row is one display line of a breakdown.
type Row struct {
	Kind    string `json:"kind"`
	Label   string `json:"label"`
	Amount  Money  `json:"amount"`
	Display string `json:"display"`
}

// Breakdown is the buyer-facing rendering of a Result.
type Breakdown struct {
	Rows           []Row  `json:"rows"`
	Total          string `json:"total"`
	OriginalTotal  string `json:"originalTotal"`
	StrikeOriginal bool   `json:"strikeOriginal"`
	Savings        string `json:"savings,omitempty"`
	SavingsPercent int    `json:"savingsPercent"`
}

var vnd = message.NewPrinter(language.Vietnamese)

// FormatVND renders an amount with Vietnamese digit grouping, e.g. "1.000.000 ₫".
func FormatVND(amount Money) string {
	return vnd.Sprintf("%d ₫", amount)
}

// Present turns a Result into display rows. Discount rows carry negative
// amounts so the rows add up visually to the total.
func Present(r Result) Breakdown {
	rows := make([]Row, 0, 2+len(r.Discounts))
	rows = append(rows, Row{Kind: "subtotal", Label: "Tạm tính", Amount: r.Subtotal, Display: FormatVND(r.Subtotal)})

	shipping := Row{Kind: "shipping", Label: "Phí vận chuyển", Amount: r.Shipping, Display: FormatVND(r.Shipping)}
	if r.Shipping == 0 {
		shipping.Display = "Miễn phí"
	}
	rows = append(rows, shipping)

	for _, d := range r.Discounts {
		rows = append(rows, Row{Kind: string(d.Kind), Label: d.Reason, Amount: -d.Amount, Display: "-" + FormatVND(d.Amount)})
	}

	b := Breakdown{
		Rows:           rows,
		Total:          FormatVND(r.Total),
		OriginalTotal:  FormatVND(r.OriginalTotal),
		StrikeOriginal: r.HasDiscount() && r.Total != r.OriginalTotal,
		SavingsPercent: savingsPercent(r),
	}
	if savings := r.Savings(); savings > 0 {
		b.Savings = FormatVND(savings)
	}
	return b
}

func savingsPercent(r Result) int {
	savings := r.Savings()
	if savings <= 0 || r.OriginalTotal <= 0 {
		return 0
	}
	pct := decimal.NewFromInt(savings).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(r.OriginalTotal)).Round(0)
	return int(pct.IntPart())
}

package bill

import "math"

// Summary holds derived per-payer and grand totals. Values are exact
// float accumulators; rounding happens only in Rounded, never here, so
// rounding error cannot compound across items.
type Summary struct {
	PayerATotal float64 `json:"payer_a_total"`
	PayerBTotal float64 `json:"payer_b_total"`
	GrandTotal  float64 `json:"grand_total"`
	TotalTax    float64 `json:"total_tax"`
}

// RoundedSummary is the presentation form of a Summary, rounded to
// whole yen (JPY has no subdivision)
type RoundedSummary struct {
	PayerATotal int64 `json:"payer_a_total"`
	PayerBTotal int64 `json:"payer_b_total"`
	GrandTotal  int64 `json:"grand_total"`
	TotalTax    int64 `json:"total_tax"`
}

// Summarize derives a Summary from a Ledger. A pure fold: total over
// any ledger including the empty one, no hidden state. Per item, a
// negative or non-finite price counts as 0 and a tax rate outside
// {0.08, 0.10} counts as the standard rate.
func Summarize(ledger Ledger) Summary {
	var s Summary
	for _, item := range ledger {
		price := item.Price
		if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
			price = 0
		}
		taxRate := item.TaxRate
		if !validTaxRate(taxRate) {
			taxRate = StandardTaxRate
		}

		priceWithTax := price * (1 + taxRate)
		taxAmount := price * taxRate

		s.GrandTotal += priceWithTax
		s.TotalTax += taxAmount

		switch item.Payer {
		case PayerA:
			s.PayerATotal += priceWithTax
		case PayerB:
			s.PayerBTotal += priceWithTax
		default:
			s.PayerATotal += priceWithTax / 2
			s.PayerBTotal += priceWithTax / 2
		}
	}
	return s
}

// Rounded projects the summary to whole-yen display values
func (s Summary) Rounded() RoundedSummary {
	return RoundedSummary{
		PayerATotal: int64(math.Round(s.PayerATotal)),
		PayerBTotal: int64(math.Round(s.PayerBTotal)),
		GrandTotal:  int64(math.Round(s.GrandTotal)),
		TotalTax:    int64(math.Round(s.TotalTax)),
	}
}

package scoring

import (
	"fmt"
	"math"
	"strings"
)

// marginTiers maps operating margin to the 0-2 profitability sub-score.
var marginTiers = []struct {
	threshold float64
	points    float64
}{
	{0.20, 2.0},
	{0.10, 1.5},
	{0.05, 1.0},
	{0.00, 0.5},
}

// multipleTiers maps op_multiple (marketcap / operating income) to the 0-1
// valuation sub-score. Lower multiples score higher: cheaper is better.
var multipleTiers = []struct {
	ceiling float64
	points  float64
}{
	{10, 1.0},
	{20, 0.75},
	{30, 0.5},
	{50, 0.25},
}

// InvestmentInput carries the optional cross-component inputs for scoring.
// Nil pointers mean the upstream data was unavailable, which zeroes the
// corresponding sub-score rather than failing.
type InvestmentInput struct {
	MoatStrength   int
	TTMOpMargin    float64
	TTMOpIncome    int64
	OpMultiple     *float64
	RevenueCAGR    *float64
	MarginDelta    *float64 // %p
	BMCompleteness float64  // 0.0-1.0
	DataGapDays    int
}

// InvestmentValueScorer produces the 0-5 composite investment-value grade
// from profitability, moat strength, valuation and growth, minus penalties
// for stale data and thin business-model analysis.
type InvestmentValueScorer struct{}

// NewInvestmentValueScorer creates the scorer.
func NewInvestmentValueScorer() *InvestmentValueScorer {
	return &InvestmentValueScorer{}
}

// Score returns the integer grade in [0,5] and an ordered reason string
// listing every sub-score contribution and penalty with its numeric basis.
func (s *InvestmentValueScorer) Score(in InvestmentInput) (int, string) {
	var details []string
	total := 0.0

	// Profitability (0-2): operating deficit forces 0.
	profitability := 0.0
	if in.TTMOpIncome <= 0 {
		details = append(details, "수익성 0 (영업적자)")
	} else {
		for _, tier := range marginTiers {
			if in.TTMOpMargin >= tier.threshold {
				profitability = tier.points
				break
			}
		}
		details = append(details, fmt.Sprintf("수익성 %g (마진 %.1f%%)", profitability, in.TTMOpMargin*100))
	}
	total += profitability

	// Moat contribution (0-1.5).
	moat := in.MoatStrength
	if moat > 5 {
		moat = 5
	}
	moatPts := float64(moat) * 0.3
	total += moatPts
	details = append(details, fmt.Sprintf("해자 %.1f (%d/5)", moatPts, in.MoatStrength))

	// Valuation (0-1): not computable without positive earnings and a multiple.
	valuationPts := 0.0
	if in.TTMOpIncome <= 0 || in.OpMultiple == nil {
		details = append(details, "밸류 0 (산출불가)")
	} else {
		for _, tier := range multipleTiers {
			if *in.OpMultiple <= tier.ceiling {
				valuationPts = tier.points
				break
			}
		}
		details = append(details, fmt.Sprintf("밸류 %g (op_multiple %.1fx)", valuationPts, *in.OpMultiple))
	}
	total += valuationPts

	// Growth (0-0.5).
	growthPts := 0.0
	if in.RevenueCAGR != nil && in.MarginDelta != nil {
		cagr, delta := *in.RevenueCAGR, *in.MarginDelta
		if cagr >= 0.10 && delta > 0 {
			growthPts = 0.5
		} else if cagr >= 0.05 && delta >= 0 {
			growthPts = 0.25
		}
		details = append(details, fmt.Sprintf("성장 %g (CAGR %.1f%%, Δ%+.1f%%p)", growthPts, cagr*100, delta))
	} else {
		details = append(details, "성장 0 (데이터부족)")
	}
	total += growthPts

	// Penalties.
	if in.DataGapDays > 90 {
		total -= 0.5
		details = append(details, fmt.Sprintf("감점 -0.5 (시점괴리 %d일)", in.DataGapDays))
	}
	if in.BMCompleteness < 0.20 {
		total -= 0.5
		details = append(details, fmt.Sprintf("감점 -0.5 (BM완성도 %.0f%%)", in.BMCompleteness*100))
	}

	final := int(math.Round(total))
	if final < 0 {
		final = 0
	} else if final > 5 {
		final = 5
	}

	return final, strings.Join(details, " | ")
}

package resolver

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stock_moat/pkg/models"
)

// FinancialsResolver resolves TTM figures and multi-year trends through an
// ordered source cascade: oracle first, then quarterly reconstruction from
// disclosure filings, then annual figures as a last-resort TTM proxy.
// Every layer failure (error, missing filing, non-positive revenue) falls
// through to the next layer; only full exhaustion returns nil.
type FinancialsResolver struct {
	oracle OracleClient
	dart   DartClient
}

// NewFinancialsResolver creates a resolver. Either client may be nil, which
// simply disables that cascade layer.
func NewFinancialsResolver(oracle OracleClient, dart DartClient) *FinancialsResolver {
	return &FinancialsResolver{oracle: oracle, dart: dart}
}

// ttmLayer is one cascade attempt paired with its quality stamp. Modelling
// the cascade as a list keeps per-attempt failure isolation in one loop and
// makes adding a source a one-line change.
type ttmLayer struct {
	name    string
	attempt func(ctx context.Context, ticker, corpCode string, asOfDate string) *models.TTMFinancials
}

// ResolveTTM returns trailing-twelve-month financials for a ticker, or nil
// when every source layer is exhausted. asOfDate ("YYYY-MM-DD") anchors the
// fiscal-year scan; empty means today.
func (r *FinancialsResolver) ResolveTTM(ctx context.Context, ticker, corpCode, asOfDate string) *models.TTMFinancials {
	layers := []ttmLayer{
		{"oracle", r.layerOracle},
		{"dart_quarterly", r.layerDartQuarterly},
		{"dart_annual", r.layerDartAnnual},
	}

	for _, layer := range layers {
		result := layer.attempt(ctx, ticker, corpCode, asOfDate)
		if result != nil {
			fmt.Printf("    %s TTM 기준: %s\n", result.DataQuality.Label(), result.TTMQuarter)
			return result
		}
	}

	fmt.Printf("    [WARN] TTM 조회 실패 (%s): all layers\n", ticker)
	return nil
}

// ResolveTrend returns a contiguous multi-year revenue/op-income series,
// newest first, or nil when no source yields at least two positive-revenue
// periods.
func (r *FinancialsResolver) ResolveTrend(ctx context.Context, ticker, corpCode string, years int, asOfDate string) []models.TrendPeriod {
	if years <= 0 {
		years = 3
	}

	if r.oracle != nil && r.oracle.IsConnected() {
		periods, err := r.oracle.GetTrend(ctx, ticker, years)
		if err == nil && len(periods) >= 2 {
			return periods
		}
	}

	if r.dart != nil {
		if periods := r.dartMultiYearTrend(ctx, corpCode, years, asOfDate); len(periods) >= 2 {
			return periods
		}
	}

	return nil
}

func (r *FinancialsResolver) layerOracle(ctx context.Context, ticker, _ string, _ string) *models.TTMFinancials {
	if r.oracle == nil || !r.oracle.IsConnected() {
		return nil
	}
	result, err := r.oracle.GetTTM(ctx, ticker)
	if err != nil || result == nil || result.TTMRevenue <= 0 {
		return nil
	}
	if result.DataQuality.Source == "" {
		result.DataQuality = models.NewDataQuality(models.SourceOracle, models.ConfidenceHigh, result.TTMQuarter, nil)
	}
	return result
}

// layerDartQuarterly reconstructs TTM from cumulative quarterly filings:
//
//	TTM = current_cumulative + (prior_annual - prior_same_cumulative)
//
// It scans the current and prior fiscal year and, within each, the Q3, half
// and Q1 cumulative report codes, accepting the first combination where all
// three inputs carry positive revenue.
func (r *FinancialsResolver) layerDartQuarterly(ctx context.Context, _, corpCode string, asOfDate string) *models.TTMFinancials {
	if r.dart == nil || corpCode == "" {
		return nil
	}

	fmt.Println("    [INFO] DART quarterly reconstruction attempt...")
	currentYear := baseYear(asOfDate)

	reports := []struct {
		code string
		qtr  string
	}{
		{ReportQ3Cumulative, "03"},
		{ReportHalfCumulative, "02"},
		{ReportQ1Cumulative, "01"},
	}

	for _, year := range []int{currentYear, currentYear - 1} {
		for _, rep := range reports {
			current, err := r.dart.GetFinancialStatements(ctx, corpCode, fmt.Sprintf("%d", year), rep.code)
			if err != nil || current == nil || current.Revenue <= 0 {
				continue
			}

			priorPartial, err := r.dart.GetFinancialStatements(ctx, corpCode, fmt.Sprintf("%d", year-1), rep.code)
			if err != nil || priorPartial == nil || priorPartial.Revenue <= 0 {
				continue
			}
			priorAnnual, err := r.dart.GetFinancialStatements(ctx, corpCode, fmt.Sprintf("%d", year-1), ReportAnnual)
			if err != nil || priorAnnual == nil || priorAnnual.Revenue <= 0 {
				continue
			}

			ttmRev := current.Revenue + (priorAnnual.Revenue - priorPartial.Revenue)
			ttmOp := current.OperatingIncome + (priorAnnual.OperatingIncome - priorPartial.OperatingIncome)

			quarter := fmt.Sprintf("%d%s", year, rep.qtr)
			return &models.TTMFinancials{
				TTMRevenue:  ttmRev,
				TTMOpIncome: ttmOp,
				TTMQuarter:  quarter,
				DataQuality: models.NewDataQuality(models.SourceDartQuarterly, models.ConfidenceMedium, quarter, nil),
			}
		}
	}

	return nil
}

// layerDartAnnual falls back to the most recent of up to three prior annual
// filings, used directly as a TTM proxy.
func (r *FinancialsResolver) layerDartAnnual(ctx context.Context, _, corpCode string, asOfDate string) *models.TTMFinancials {
	if r.dart == nil || corpCode == "" {
		return nil
	}

	fmt.Println("    [WARN] DART quarterly unavailable, annual fallback...")
	currentYear := baseYear(asOfDate)

	for year := currentYear; year > currentYear-3; year-- {
		data, err := r.dart.GetFinancialStatements(ctx, corpCode, fmt.Sprintf("%d", year), ReportAnnual)
		if err != nil || data == nil || data.Revenue <= 0 {
			continue
		}

		quarter := fmt.Sprintf("%d04", year)
		return &models.TTMFinancials{
			TTMRevenue:  data.Revenue,
			TTMOpIncome: data.OperatingIncome,
			TTMQuarter:  quarter,
			DataQuality: models.NewDataQuality(models.SourceDartAnnual, models.ConfidenceLow, quarter, nil),
		}
	}

	return nil
}

func (r *FinancialsResolver) dartMultiYearTrend(ctx context.Context, corpCode string, years int, asOfDate string) []models.TrendPeriod {
	base := baseYear(asOfDate)
	var queryYears []string
	for y := base - (years + 1); y < base; y++ {
		queryYears = append(queryYears, fmt.Sprintf("%d", y))
	}

	multiYear, err := r.dart.GetMultiYearFinancials(ctx, corpCode, queryYears)
	if err != nil || len(multiYear) == 0 {
		return nil
	}

	var sortedYears []string
	for y := range multiYear {
		sortedYears = append(sortedYears, y)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(sortedYears)))

	var periods []models.TrendPeriod
	for _, year := range sortedYears {
		fin := multiYear[year]
		if fin == nil || fin.Revenue <= 0 {
			continue
		}
		margin := float64(fin.OperatingIncome) / float64(fin.Revenue)
		periods = append(periods, models.TrendPeriod{
			Quarter:  year + "04",
			Revenue:  fin.Revenue,
			OpIncome: fin.OperatingIncome,
			OpMargin: margin,
		})
		if len(periods) >= years+1 {
			break
		}
	}

	if len(periods) < 2 {
		return nil
	}
	return periods
}

func baseYear(asOfDate string) int {
	if asOfDate != "" {
		if d, err := time.Parse("2006-01-02", asOfDate); err == nil {
			return d.Year()
		}
	}
	return time.Now().Year()
}

package models

import (
	"fmt"
	"time"
)

// Data source identifiers for resolved financials, in cascade priority order.
const (
	SourceOracle        = "oracle"
	SourceDartQuarterly = "dart_quarterly"
	SourceDartAnnual    = "dart_annual"
)

// Confidence labels attached by the resolver depending on which source answered.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Evidence confidence labels.
const (
	EvidenceConfirmed = "confirmed"
	EvidenceEstimated = "estimated"
)

// WarnStaleTTMGap is appended to DataQuality.Warnings when the price date
// trails the TTM quarter end by more than 90 days.
const WarnStaleTTMGap = "stale_ttm_gap_gt_90d"

// AsOfDate is the unified temporal baseline for one evaluation run.
// GapDays and GapWarning are derived at construction and never mutated;
// build a new instance to recompute.
type AsOfDate struct {
	PriceDate  string `json:"price_date"` // YYYY-MM-DD
	TTMQuarter string `json:"ttm_quarter"` // YYYYQQ, e.g. "202403"
	ReportBase string `json:"report_base"`
	GapDays    int    `json:"gap_days"`
	GapWarning bool   `json:"gap_warning"`
}

// NewAsOfDate computes the gap between the price date and the end of the TTM
// quarter. Unparseable inputs leave the derived fields at zero, matching the
// "insufficient data" convention used across the pipeline.
func NewAsOfDate(priceDate, ttmQuarter, reportBase string) AsOfDate {
	a := AsOfDate{PriceDate: priceDate, TTMQuarter: ttmQuarter, ReportBase: reportBase}
	if priceDate == "" || len(ttmQuarter) < 6 {
		return a
	}

	var year, qq int
	if _, err := fmt.Sscanf(ttmQuarter[:6], "%4d%2d", &year, &qq); err != nil || qq < 1 || qq > 4 {
		return a
	}

	endMonth := time.Month(qq * 3)
	// First day of the following month, minus one day.
	quarterEnd := time.Date(year, endMonth+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)

	priceD, err := time.Parse("2006-01-02", priceDate)
	if err != nil {
		return a
	}

	a.GapDays = int(priceD.Sub(quarterEnd).Hours() / 24)
	a.GapWarning = a.GapDays > 90
	return a
}

// DataQuality records which cascade source produced a financial figure and
// how much to trust it. Source conventionally determines Confidence
// (oracle→high, dart_quarterly→medium, dart_annual→low) but the field stays
// independently settable for future sources.
type DataQuality struct {
	Source        string   `json:"data_source"`
	Confidence    string   `json:"data_confidence"`
	FreshnessDays int      `json:"data_freshness_days"`
	TTMQuarter    string   `json:"ttm_quarter"`
	PriceDate     string   `json:"price_date"`
	Warnings      []string `json:"data_warnings"`
}

// NewDataQuality stamps source metadata and inherits freshness and the stale
// warning from the as-of baseline.
func NewDataQuality(source, confidence, ttmQuarter string, asOf *AsOfDate) DataQuality {
	dq := DataQuality{
		Source:     source,
		Confidence: confidence,
		TTMQuarter: ttmQuarter,
	}
	if asOf != nil {
		dq.PriceDate = asOf.PriceDate
		if asOf.GapDays > 0 {
			dq.FreshnessDays = asOf.GapDays
		}
		if asOf.GapWarning {
			dq.Warnings = append(dq.Warnings, WarnStaleTTMGap)
		}
	}
	return dq
}

// Label returns the short [source/confidence] tag used in progress logs.
func (dq DataQuality) Label() string {
	return fmt.Sprintf("[%s/%s]", dq.Source, dq.Confidence)
}

// TTMFinancials is the unified trailing-twelve-month result in KRW.
// Created once per resolution call, never mutated.
type TTMFinancials struct {
	TTMRevenue  int64       `json:"ttm_revenue"`
	TTMOpIncome int64       `json:"ttm_op_income"`
	TTMQuarter  string      `json:"ttm_quarter"`
	CompanyName string      `json:"company_name"`
	DataQuality DataQuality `json:"data_quality"`
}

// TTMOpMargin is operating income over revenue, or 0 when revenue is not positive.
func (t *TTMFinancials) TTMOpMargin() float64 {
	if t.TTMRevenue > 0 {
		return float64(t.TTMOpIncome) / float64(t.TTMRevenue)
	}
	return 0
}

// TrendPeriod is one annual (or quarterly-labelled) observation in a trend.
type TrendPeriod struct {
	Quarter  string  `json:"quarter"` // YYYYQQ
	Revenue  int64   `json:"revenue"`
	OpIncome int64   `json:"op_income"`
	OpMargin float64 `json:"op_margin"`
}

// GrowthTrend holds a multi-period series, newest first, with derived growth
// metrics. With fewer than two periods the derived fields stay zero.
type GrowthTrend struct {
	Periods       []TrendPeriod `json:"periods"`
	RevenueCAGR   float64       `json:"revenue_cagr"`
	OpMarginDelta float64       `json:"op_margin_delta"` // percentage points, newest - oldest
	IsTurnaround  bool          `json:"is_turnaround"`
	OneTimeFlag   bool          `json:"one_time_flag"`
	GrowthScore   int           `json:"growth_score"`
	ScoreReason   string        `json:"score_reason"`
}

// Evidence is one excerpted disclosure passage tagged with a moat category.
// QualityScore is one of 0.5, 1.0, 1.5, 2.0 and is monotonic in specificity.
type Evidence struct {
	MoatType     string  `json:"moat_type"`
	EvidenceText string  `json:"evidence_text"`
	Source       string  `json:"source"`
	Confidence   string  `json:"confidence"` // confirmed | estimated
	HasNumbers   bool    `json:"has_numbers"`
	QualityScore float64 `json:"quality_score"`
}

// EvidenceCollection holds all evidence found for one company. Append-only
// during extraction, read-only afterward.
type EvidenceCollection struct {
	Company   string     `json:"company"`
	Ticker    string     `json:"ticker"`
	Evidences []Evidence `json:"evidences"`
}

// Add appends one evidence item.
func (c *EvidenceCollection) Add(e Evidence) {
	c.Evidences = append(c.Evidences, e)
}

// TotalQuality sums quality scores across all evidence.
func (c *EvidenceCollection) TotalQuality() float64 {
	var total float64
	for _, e := range c.Evidences {
		total += e.QualityScore
	}
	return total
}

// Coverage counts evidence items per moat type.
func (c *EvidenceCollection) Coverage() map[string]int {
	cov := make(map[string]int)
	for _, e := range c.Evidences {
		cov[e.MoatType]++
	}
	return cov
}

// ByType returns the evidence items for one moat type.
func (c *EvidenceCollection) ByType(moatType string) []Evidence {
	var out []Evidence
	for _, e := range c.Evidences {
		if e.MoatType == moatType {
			out = append(out, e)
		}
	}
	return out
}

// QualityByType sums quality scores for one moat type.
func (c *EvidenceCollection) QualityByType(moatType string) float64 {
	var total float64
	for _, e := range c.ByType(moatType) {
		total += e.QualityScore
	}
	return total
}

// FormatKRW renders a KRW amount in readable Korean units.
func FormatKRW(value int64) string {
	abs := value
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1_000_000_000_000:
		return fmt.Sprintf("%.1f조원", float64(value)/1_000_000_000_000)
	case abs >= 100_000_000:
		return fmt.Sprintf("%.0f억원", float64(value)/100_000_000)
	default:
		return fmt.Sprintf("%d원", value)
	}
}

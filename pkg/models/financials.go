package models

// FinancialRecord is one year (or cumulative period) of statement figures as
// returned by a cascade source. Optional ratios are pointers so a missing
// field reads as "unknown" rather than zero.
type FinancialRecord struct {
	Revenue         int64    `json:"revenue"`
	OperatingIncome int64    `json:"operating_income"`
	OperatingMargin *float64 `json:"operating_margin,omitempty"`
	RnDExpenses     int64    `json:"rnd_expenses,omitempty"`
	SGAExpenses     int64    `json:"sga_expenses,omitempty"`
	ROE             *float64 `json:"roe,omitempty"`
	DebtRatio       *float64 `json:"debt_ratio,omitempty"`
}

// Margin returns the reported operating margin if present, otherwise derives
// it from income over revenue. The second result is false when neither is
// available.
func (f *FinancialRecord) Margin() (float64, bool) {
	if f == nil {
		return 0, false
	}
	if f.OperatingMargin != nil {
		return *f.OperatingMargin, true
	}
	if f.Revenue > 0 {
		return float64(f.OperatingIncome) / float64(f.Revenue), true
	}
	return 0, false
}

// Classification carries the sector labels used for prompt context and
// sector-calibrated growth thresholds.
type Classification struct {
	KoreanSectorTop string  `json:"korean_sector_top"`
	KoreanSectorSub string  `json:"korean_sector_sub"`
	GICSSector      string  `json:"gics_sector"`
	GICSIndustry    string  `json:"gics_industry"`
	Confidence      float64 `json:"confidence"`
}

// Float64Ptr is a small helper for optional ratio fields.
func Float64Ptr(v float64) *float64 { return &v }

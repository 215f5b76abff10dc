package models

import "testing"

func TestNewAsOfDateGapBoundary(t *testing.T) {
	// 2024Q3 ends 2024-09-30. 90 days later is 2024-12-29.
	cases := []struct {
		name      string
		priceDate string
		wantGap   int
		wantWarn  bool
	}{
		{"same day", "2024-09-30", 0, false},
		{"exactly 90 days", "2024-12-29", 90, false},
		{"91 days", "2024-12-30", 91, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAsOfDate(tc.priceDate, "202403", "")
			if a.GapDays != tc.wantGap {
				t.Errorf("GapDays = %d, want %d", a.GapDays, tc.wantGap)
			}
			if a.GapWarning != tc.wantWarn {
				t.Errorf("GapWarning = %v, want %v", a.GapWarning, tc.wantWarn)
			}
		})
	}
}

func TestNewAsOfDateUnparseable(t *testing.T) {
	cases := []struct {
		name      string
		priceDate string
		quarter   string
	}{
		{"empty price date", "", "202403"},
		{"short quarter", "2024-11-15", "2024"},
		{"bad quarter number", "2024-11-15", "202405"},
		{"garbage price date", "not-a-date", "202403"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAsOfDate(tc.priceDate, tc.quarter, "")
			if a.GapDays != 0 || a.GapWarning {
				t.Errorf("derived fields should stay zero, got gap=%d warn=%v", a.GapDays, a.GapWarning)
			}
		})
	}
}

func TestNewDataQualityInheritsStaleness(t *testing.T) {
	asOf := NewAsOfDate("2025-01-15", "202403", "")
	dq := NewDataQuality(SourceDartQuarterly, ConfidenceMedium, "202403", &asOf)

	if dq.FreshnessDays != asOf.GapDays {
		t.Errorf("FreshnessDays = %d, want %d", dq.FreshnessDays, asOf.GapDays)
	}
	if len(dq.Warnings) != 1 || dq.Warnings[0] != WarnStaleTTMGap {
		t.Errorf("Warnings = %v, want [%s]", dq.Warnings, WarnStaleTTMGap)
	}
	if dq.Label() != "[dart_quarterly/medium]" {
		t.Errorf("Label = %q", dq.Label())
	}
}

func TestNewDataQualityNilAsOf(t *testing.T) {
	dq := NewDataQuality(SourceOracle, ConfidenceHigh, "202402", nil)
	if dq.FreshnessDays != 0 || len(dq.Warnings) != 0 {
		t.Errorf("nil as-of must not derive freshness, got %+v", dq)
	}
}

func TestTTMOpMargin(t *testing.T) {
	ttm := &TTMFinancials{TTMRevenue: 1_000_000_000_000, TTMOpIncome: 150_000_000_000}
	if got := ttm.TTMOpMargin(); got != 0.15 {
		t.Errorf("TTMOpMargin = %v, want 0.15", got)
	}
	zero := &TTMFinancials{TTMRevenue: 0, TTMOpIncome: 100}
	if got := zero.TTMOpMargin(); got != 0 {
		t.Errorf("zero revenue margin = %v, want 0", got)
	}
}

func TestFormatKRW(t *testing.T) {
	cases := []struct {
		value int64
		want  string
	}{
		{12_300_000_000_000, "12.3조원"},
		{50_000_000_000, "500억원"},
		{5_000_000, "5000000원"},
		{-2_500_000_000_000, "-2.5조원"},
	}
	for _, tc := range cases {
		if got := FormatKRW(tc.value); got != tc.want {
			t.Errorf("FormatKRW(%d) = %q, want %q", tc.value, got, tc.want)
		}
	}
}

func TestEvidenceCollectionAggregates(t *testing.T) {
	col := &EvidenceCollection{Company: "테스트전자", Ticker: "000001"}
	col.Add(Evidence{MoatType: "브랜드", QualityScore: 2.0})
	col.Add(Evidence{MoatType: "브랜드", QualityScore: 0.5})
	col.Add(Evidence{MoatType: "규모경제", QualityScore: 1.5})

	if got := col.TotalQuality(); got != 4.0 {
		t.Errorf("TotalQuality = %v, want 4.0", got)
	}
	if got := col.QualityByType("브랜드"); got != 2.5 {
		t.Errorf("QualityByType(브랜드) = %v, want 2.5", got)
	}
	cov := col.Coverage()
	if cov["브랜드"] != 2 || cov["규모경제"] != 1 {
		t.Errorf("Coverage = %v", cov)
	}
	if got := len(col.ByType("전환비용")); got != 0 {
		t.Errorf("ByType(전환비용) = %d items, want 0", got)
	}
}

package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"stock_moat/pkg/core/scoring"
	"stock_moat/pkg/models"
)

type stubOracle struct {
	ttm        *models.TTMFinancials
	periods    []models.TrendPeriod
	failTicker string
}

func (s *stubOracle) IsConnected() bool { return s.ttm != nil || len(s.periods) > 0 }

func (s *stubOracle) GetTTM(ctx context.Context, ticker string) (*models.TTMFinancials, error) {
	if s.ttm == nil || ticker == s.failTicker {
		return nil, errors.New("oracle unavailable")
	}
	return s.ttm, nil
}

func (s *stubOracle) GetTrend(ctx context.Context, ticker string, years int) ([]models.TrendPeriod, error) {
	if len(s.periods) == 0 || ticker == s.failTicker {
		return nil, errors.New("oracle unavailable")
	}
	return s.periods, nil
}

type stubDart struct {
	multiYear map[string]*models.FinancialRecord
}

func (s *stubDart) GetFinancialStatements(ctx context.Context, corpCode, year, reportCode string) (*models.FinancialRecord, error) {
	return nil, nil
}

func (s *stubDart) GetMultiYearFinancials(ctx context.Context, corpCode string, years []string) (map[string]*models.FinancialRecord, error) {
	if s.multiYear == nil {
		return nil, errors.New("dart unavailable")
	}
	return s.multiYear, nil
}

type stubLookup struct {
	code       string
	failTicker string
}

func (s *stubLookup) LookupCorpCode(ctx context.Context, ticker string) (string, error) {
	if s.code == "" || ticker == s.failTicker {
		return "", errors.New("unknown ticker")
	}
	return s.code, nil
}

type stubFetcher struct {
	text string
}

func (s *stubFetcher) FetchReport(ctx context.Context, corpCode string) (string, error) {
	if s.text == "" {
		return "", errors.New("no report filed")
	}
	return s.text, nil
}

const stubReport = `II. 사업의 내용

1. 사업의 개요
당사는 반도체 소재를 생산하는 기업으로 시장 점유율 45%를 확보하고 있으며, 장기 공급 계약을 바탕으로 안정적인 매출 기반을 유지하고 있습니다. 브랜드 인지도 제고를 위한 활동도 병행하고 있습니다.

III. 재무에 관한 사항
연결재무제표는 별도 기재되어 있습니다.
`

// healthyOrchestrator answers for every ticker except 999999, which resolves
// nothing anywhere.
func healthyOrchestrator() *Orchestrator {
	oracle := &stubOracle{
		failTicker: "999999",
		ttm: &models.TTMFinancials{
			TTMRevenue:  2_000_000_000_000,
			TTMOpIncome: 300_000_000_000,
			TTMQuarter:  "202403",
			DataQuality: models.DataQuality{Source: models.SourceOracle, Confidence: models.ConfidenceHigh},
		},
		periods: []models.TrendPeriod{
			{Quarter: "202304", Revenue: 1_900_000_000_000, OpIncome: 280_000_000_000, OpMargin: 0.147},
			{Quarter: "202204", Revenue: 1_700_000_000_000, OpIncome: 230_000_000_000, OpMargin: 0.135},
			{Quarter: "202104", Revenue: 1_500_000_000_000, OpIncome: 190_000_000_000, OpMargin: 0.127},
		},
	}
	dartC := &stubDart{multiYear: map[string]*models.FinancialRecord{
		"2023": {Revenue: 1_900_000_000_000, OperatingIncome: 280_000_000_000},
		"2022": {Revenue: 1_700_000_000_000, OperatingIncome: 230_000_000_000},
	}}
	return New(oracle, dartC, &stubLookup{code: "00123456", failTicker: "999999"}, &stubFetcher{text: stubReport},
		scoring.DefaultGrowthConfig(), nil, nil)
}

func TestRunEndToEnd(t *testing.T) {
	o := healthyOrchestrator()

	rec, err := o.Run(context.Background(), Request{
		Ticker:   "000001",
		Company:  "테스트전자",
		AsOfDate: "2024-11-15",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rec.TTM == nil || rec.TTM.TTMRevenue != 2_000_000_000_000 {
		t.Error("record should carry the resolved TTM figures")
	}
	if rec.MoatEval == nil || rec.MoatEval.MoatStrength < 1 || rec.MoatEval.MoatStrength > 5 {
		t.Fatalf("MoatEval = %+v", rec.MoatEval)
	}
	if !rec.MoatEval.EvidenceBased {
		t.Error("report text with moat keywords should produce evidence")
	}
	if rec.Verification == nil || rec.Verification.Verified {
		t.Error("no credential configured: verification must be skipped, not run")
	}
	if !strings.Contains(rec.SustainabilityNotes, "[지속가능성 검증]") {
		t.Error("sustainability notes missing")
	}
	if !strings.Contains(rec.AIReview, "[AI 검증 미실행]") {
		t.Errorf("AIReview = %q", rec.AIReview)
	}
	if rec.ReportHTML == "" || !strings.Contains(rec.ReportHTML, "테스트전자") {
		t.Error("rendered report HTML missing")
	}
	if rec.InvestmentScore < 0 || rec.InvestmentScore > 5 {
		t.Errorf("InvestmentScore = %d", rec.InvestmentScore)
	}
}

func TestRunFailsWithNoDataAtAll(t *testing.T) {
	o := New(&stubOracle{}, &stubDart{}, &stubLookup{}, &stubFetcher{},
		scoring.DefaultGrowthConfig(), nil, nil)

	_, err := o.Run(context.Background(), Request{Ticker: "999999", Company: "유령회사"})
	if err == nil {
		t.Fatal("a ticker with neither financials nor report must fail")
	}
}

func TestRunSurvivesMissingReport(t *testing.T) {
	o := healthyOrchestrator()
	o.fetcher = &stubFetcher{}

	rec, err := o.Run(context.Background(), Request{Ticker: "000001", Company: "테스트전자", AsOfDate: "2024-11-15"})
	if err != nil {
		t.Fatalf("financials alone should be enough: %v", err)
	}
	if rec.MoatEval == nil {
		t.Fatal("moat evaluation should still run on financial evidence")
	}
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	o := healthyOrchestrator()

	reqs := []Request{
		{Ticker: "000001", Company: "테스트전자", AsOfDate: "2024-11-15"},
		{Ticker: "999999", Company: "유령회사", AsOfDate: "2024-11-15"},
		{Ticker: "000002", Company: "테스트화학", AsOfDate: "2024-11-15"},
	}
	results := o.RunBatch(context.Background(), reqs, 2)

	if len(results) != len(reqs) {
		t.Fatalf("got %d results, want %d", len(results), len(reqs))
	}
	for i, res := range results {
		if res.Ticker != reqs[i].Ticker {
			t.Errorf("result %d ticker = %s, want %s (order must match input)", i, res.Ticker, reqs[i].Ticker)
		}
	}
	if results[0].Err != nil || results[0].Record == nil {
		t.Errorf("first ticker should succeed: %v", results[0].Err)
	}
	if results[1].Err == nil || results[1].Record != nil {
		t.Error("unresolvable ticker should fail without stopping the batch")
	}
	if results[2].Err != nil || results[2].Record == nil {
		t.Errorf("third ticker should succeed: %v", results[2].Err)
	}
}

func TestComposeFinancialRecord(t *testing.T) {
	roe := 0.12
	ttm := &models.TTMFinancials{TTMRevenue: 2_000_000_000_000, TTMOpIncome: 300_000_000_000}
	multiYear := map[string]*models.FinancialRecord{
		"2022": {Revenue: 1_700_000_000_000, RnDExpenses: 80_000_000_000},
		"2023": {Revenue: 1_900_000_000_000, RnDExpenses: 100_000_000_000, ROE: &roe},
	}

	rec := composeFinancialRecord(ttm, multiYear)
	if rec.Revenue != 2_000_000_000_000 {
		t.Errorf("Revenue = %d, want TTM revenue", rec.Revenue)
	}
	if rec.RnDExpenses != 100_000_000_000 {
		t.Errorf("RnDExpenses = %d, want latest annual value", rec.RnDExpenses)
	}
	if rec.ROE == nil || *rec.ROE != 0.12 {
		t.Errorf("ROE = %v, want latest annual value", rec.ROE)
	}
	if rec.OperatingMargin == nil || *rec.OperatingMargin != 0.15 {
		t.Errorf("OperatingMargin = %v, want derived 0.15", rec.OperatingMargin)
	}

	if got := composeFinancialRecord(nil, multiYear); got == nil || got.Revenue != 1_900_000_000_000 {
		t.Errorf("nil TTM should fall back to latest annual record, got %+v", got)
	}
	if got := composeFinancialRecord(nil, nil); got != nil {
		t.Errorf("no data should compose to nil, got %+v", got)
	}
}

func TestInvestmentInputGapDays(t *testing.T) {
	o := healthyOrchestrator()
	ttm := &models.TTMFinancials{TTMRevenue: 1_000_000_000_000, TTMOpIncome: 100_000_000_000, TTMQuarter: "202402"}

	in := o.investmentInput(Request{AsOfDate: "2024-11-15", MarketCap: 2_000_000_000_000}, ttm, models.GrowthTrend{}, 3)
	// 2024Q2 ends 2024-06-30; 2024-11-15 is 138 days later.
	if in.DataGapDays != 138 {
		t.Errorf("DataGapDays = %d, want 138", in.DataGapDays)
	}
	if in.OpMultiple == nil || *in.OpMultiple != 20 {
		t.Errorf("OpMultiple = %v, want 20", in.OpMultiple)
	}
}

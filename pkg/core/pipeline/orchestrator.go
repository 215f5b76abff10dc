// Package pipeline wires the evaluation stages end to end: financials
// resolution, disclosure parsing, evidence mining, moat scoring, growth and
// sustainability adjustment, investment grading, AI verification, storage.
// A single ticker runs synchronously; batches fan out over a bounded worker
// pool with per-ticker failure isolation.
package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"stock_moat/pkg/core/dart"
	"stock_moat/pkg/core/evidence"
	"stock_moat/pkg/core/moat"
	"stock_moat/pkg/core/report"
	"stock_moat/pkg/core/resolver"
	"stock_moat/pkg/core/scoring"
	"stock_moat/pkg/core/store"
	"stock_moat/pkg/core/sustainability"
	"stock_moat/pkg/core/verify"
	"stock_moat/pkg/models"
)

// ReportFetcher retrieves raw business-report text for an entity code.
// Implementations may hit the DART viewer, a local cache, or a fixture.
type ReportFetcher interface {
	FetchReport(ctx context.Context, corpCode string) (string, error)
}

// Request describes one ticker evaluation.
type Request struct {
	Ticker         string
	Company        string
	AsOfDate       string // price date, YYYY-MM-DD; empty means today
	Classification models.Classification
	MarketCap      int64  // KRW; zero disables the valuation multiple
	BMSummary      string // business-model analysis summary, may be empty
	BMCompleteness float64
	ReportText     string // pre-fetched report text; fetched when empty
}

// Orchestrator owns every stage collaborator. Construct with New and
// override individual fields in tests.
type Orchestrator struct {
	corpCodes  *resolver.CorpCodeCache
	financials *resolver.FinancialsResolver
	dartClient resolver.DartClient
	fetcher    ReportFetcher
	parser     *dart.ReportParser
	extractor  *evidence.Extractor
	evaluator  *moat.Evaluator
	growth     *scoring.GrowthScorer
	checker    *sustainability.Checker
	investor   *scoring.InvestmentValueScorer
	verifier   *verify.Verifier
	repo       *store.EvaluationRepo

	trendYears int
}

// New assembles an orchestrator from the external collaborators; all
// internal stages get their default implementations.
func New(
	oracle resolver.OracleClient,
	dartClient resolver.DartClient,
	lookup resolver.CorpCodeLookup,
	fetcher ReportFetcher,
	growthCfg scoring.GrowthConfig,
	verifier *verify.Verifier,
	repo *store.EvaluationRepo,
) *Orchestrator {
	if verifier == nil {
		verifier = verify.NewVerifier("")
	}
	return &Orchestrator{
		corpCodes:  resolver.NewCorpCodeCache(lookup),
		financials: resolver.NewFinancialsResolver(oracle, dartClient),
		dartClient: dartClient,
		fetcher:    fetcher,
		parser:     dart.NewReportParser(),
		extractor:  evidence.NewExtractor(),
		evaluator:  moat.NewEvaluator(),
		growth:     scoring.NewGrowthScorer(growthCfg),
		checker:    sustainability.NewChecker(),
		investor:   scoring.NewInvestmentValueScorer(),
		verifier:   verifier,
		repo:       repo,
		trendYears: 4,
	}
}

// Run evaluates one ticker. Stage failures degrade (missing financials,
// empty sections, disabled verifier are all survivable); only storage
// failures and an entirely unevaluable ticker return an error.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*store.EvaluationRecord, error) {
	fmt.Printf("[INFO] %s (%s) 평가 시작\n", req.Company, req.Ticker)
	start := time.Now()

	corpCode, err := o.corpCodes.Resolve(ctx, req.Ticker)
	if err != nil {
		fmt.Printf("  [WARN] 기업코드 조회 실패 (%s): %v\n", req.Ticker, err)
	}

	// 1. Financials
	ttm := o.financials.ResolveTTM(ctx, req.Ticker, corpCode, req.AsOfDate)
	periods := o.financials.ResolveTrend(ctx, req.Ticker, corpCode, o.trendYears, req.AsOfDate)
	multiYear := o.multiYearFinancials(ctx, corpCode, req.AsOfDate)
	finRec := composeFinancialRecord(ttm, multiYear)

	// 2. Disclosure sections
	sections := o.resolveSections(ctx, req, corpCode)
	if ttm == nil && len(sections) == 0 {
		return nil, fmt.Errorf("no data available for %s: financials and report both missing", req.Ticker)
	}

	// 3. Evidence and base moat
	collection := o.extractor.Extract(req.Company, req.Ticker, sections, finRec)
	moatEval := o.evaluator.Evaluate(req.Company, req.Ticker, collection, finRec, multiYear)
	fmt.Printf("  [INFO] 해자강도(기본): %d/5, 증거 %d건\n", moatEval.MoatStrength, len(collection.Evidences))

	// 4. Growth adjustment
	trend := o.growth.BuildTrend(periods)
	var ttmRevenue int64
	if ttm != nil {
		ttmRevenue = ttm.TTMRevenue
	}
	adj, growthReason := o.growth.Score(trend, req.Classification.GICSSector, ttmRevenue)
	trend.GrowthScore = adj
	trend.ScoreReason = growthReason
	strength := max(1, min(5, moatEval.MoatStrength+adj))
	if adj != 0 {
		fmt.Printf("  [INFO] 성장 조정: %+d (%s)\n", adj, growthReason)
	}

	// 5. Sustainability
	check := o.checker.Check(req.Company, finRec, multiYear, sections, strength)
	notes := report.SustainabilityNotes(check)
	fmt.Printf("  [INFO] 지속가능성 조정 해자강도: %d/5\n", check.AdjustedStrength)

	// 6. Investment value
	score, detail := o.investor.Score(o.investmentInput(req, ttm, trend, check.AdjustedStrength))
	fmt.Printf("  [INFO] 투자 가치: %d/5\n", score)

	// 7. AI verification
	verification := o.verifier.Verify(ctx, &verify.VerifyRequest{
		Company:             req.Company,
		Ticker:              req.Ticker,
		Classification:      req.Classification,
		ReportSections:      sections,
		Financials:          finRec,
		MultiYear:           multiYear,
		BMSummary:           req.BMSummary,
		Evidence:            collection.Evidences,
		MoatStrength:        check.AdjustedStrength,
		MoatDesc:            moatEval.MoatDesc,
		SustainabilityNotes: notes,
	})
	if verification.GapFlag {
		fmt.Printf("  [WARN] AI 검증 격차: %d점 (%s)\n", verification.Gap, verification.AdjustmentReason)
	}
	aiReview := report.AIReviewText(verification)

	// 8. Render and store
	record := &store.EvaluationRecord{
		Ticker:              req.Ticker,
		Company:             req.Company,
		TTM:                 ttm,
		Trend:               &trend,
		MoatEval:            moatEval,
		Sustainability:      &check,
		InvestmentScore:     score,
		InvestmentDetail:    detail,
		Verification:        verification,
		SustainabilityNotes: notes,
		AIReview:            aiReview,
	}
	markdown := report.BuildMarkdown(&report.Summary{
		Company:             req.Company,
		Ticker:              req.Ticker,
		TTM:                 ttm,
		Trend:               &trend,
		MoatEval:            moatEval,
		GrowthReason:        growthReason,
		Sustainability:      check,
		SustainabilityNotes: notes,
		InvestmentScore:     score,
		InvestmentDetail:    detail,
		AIReview:            aiReview,
	})
	if html, err := report.RenderHTML(markdown); err == nil {
		record.ReportHTML = html
	} else {
		fmt.Printf("  [WARN] 리포트 렌더 실패: %v\n", err)
	}

	if o.repo != nil {
		if err := o.repo.Save(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to persist evaluation for %s: %w", req.Ticker, err)
		}
	}

	fmt.Printf("[INFO] %s 평가 완료 (%.1fs)\n", req.Ticker, time.Since(start).Seconds())
	return record, nil
}

// BatchResult pairs one request with its outcome.
type BatchResult struct {
	Ticker string
	Record *store.EvaluationRecord
	Err    error
}

// RunBatch evaluates tickers over a bounded worker pool. One ticker failing
// never stops the others; results arrive in input order.
func (o *Orchestrator) RunBatch(ctx context.Context, reqs []Request, workers int) []BatchResult {
	if workers < 1 {
		workers = 1
	}
	if workers > len(reqs) {
		workers = len(reqs)
	}

	results := make([]BatchResult, len(reqs))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				req := reqs[i]
				rec, err := o.Run(ctx, req)
				if err != nil {
					fmt.Printf("[WARN] %s 평가 실패: %v\n", req.Ticker, err)
				}
				results[i] = BatchResult{Ticker: req.Ticker, Record: rec, Err: err}
			}
		}()
	}

	for i := range reqs {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			for j := i; j < len(reqs); j++ {
				results[j] = BatchResult{Ticker: reqs[j].Ticker, Err: ctx.Err()}
			}
			return results
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

// resolveSections returns the parsed section map, fetching report text when
// the request did not carry it.
func (o *Orchestrator) resolveSections(ctx context.Context, req Request, corpCode string) map[string]string {
	text := req.ReportText
	if text == "" && o.fetcher != nil && corpCode != "" {
		fetched, err := o.fetcher.FetchReport(ctx, corpCode)
		if err != nil {
			fmt.Printf("  [WARN] 사업보고서 조회 실패: %v\n", err)
		} else {
			text = fetched
		}
	}
	if text == "" {
		return map[string]string{}
	}

	sections := o.parser.ParseReport(dart.StripMarkup(text))
	quality := o.parser.GetParseQuality(sections)
	fmt.Printf("  [INFO] 보고서 섹션 %d/%d 추출\n", quality.TotalSectionsFound, quality.TotalSectionsPossible)
	return sections
}

// multiYearFinancials pulls the three annual records preceding the as-of
// year. Nil on any failure; downstream stages treat that as data absence.
func (o *Orchestrator) multiYearFinancials(ctx context.Context, corpCode, asOfDate string) map[string]*models.FinancialRecord {
	if o.dartClient == nil || corpCode == "" {
		return nil
	}
	base := time.Now().Year()
	if len(asOfDate) >= 4 {
		if y, err := strconv.Atoi(asOfDate[:4]); err == nil {
			base = y
		}
	}
	years := []string{
		strconv.Itoa(base - 3),
		strconv.Itoa(base - 2),
		strconv.Itoa(base - 1),
	}
	multiYear, err := o.dartClient.GetMultiYearFinancials(ctx, corpCode, years)
	if err != nil {
		fmt.Printf("  [WARN] 다년도 재무 조회 실패: %v\n", err)
		return nil
	}
	return multiYear
}

// composeFinancialRecord merges the TTM headline figures with the richer
// ratio fields from the latest annual record.
func composeFinancialRecord(ttm *models.TTMFinancials, multiYear map[string]*models.FinancialRecord) *models.FinancialRecord {
	var latest *models.FinancialRecord
	var latestYear string
	for y, rec := range multiYear {
		if rec != nil && y > latestYear {
			latest = rec
			latestYear = y
		}
	}

	if ttm == nil {
		return latest
	}

	rec := &models.FinancialRecord{
		Revenue:         ttm.TTMRevenue,
		OperatingIncome: ttm.TTMOpIncome,
	}
	if ttm.TTMRevenue > 0 {
		rec.OperatingMargin = models.Float64Ptr(ttm.TTMOpMargin())
	}
	if latest != nil {
		rec.RnDExpenses = latest.RnDExpenses
		rec.SGAExpenses = latest.SGAExpenses
		rec.ROE = latest.ROE
		rec.DebtRatio = latest.DebtRatio
	}
	return rec
}

func (o *Orchestrator) investmentInput(req Request, ttm *models.TTMFinancials, trend models.GrowthTrend, strength int) scoring.InvestmentInput {
	in := scoring.InvestmentInput{
		MoatStrength:   strength,
		BMCompleteness: req.BMCompleteness,
	}
	if ttm != nil {
		in.TTMOpMargin = ttm.TTMOpMargin()
		in.TTMOpIncome = ttm.TTMOpIncome
		if req.MarketCap > 0 && ttm.TTMOpIncome > 0 {
			in.OpMultiple = models.Float64Ptr(float64(req.MarketCap) / float64(ttm.TTMOpIncome))
		}
		asOf := models.NewAsOfDate(req.AsOfDate, ttm.TTMQuarter, "")
		in.DataGapDays = asOf.GapDays
	}
	if len(trend.Periods) >= 2 {
		in.RevenueCAGR = models.Float64Ptr(trend.RevenueCAGR)
		in.MarginDelta = models.Float64Ptr(trend.OpMarginDelta)
	}
	return in
}

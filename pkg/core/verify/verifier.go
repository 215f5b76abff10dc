// Package verify runs the final quality gate: an external model reviews the
// rule-based moat evaluation from a professional investor's perspective and
// returns an independent strength. Large disagreements raise a gap flag.
package verify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"stock_moat/pkg/core/llm"
	"stock_moat/pkg/core/utils"
	"stock_moat/pkg/models"
)

const (
	systemPrompt = "당신은 한국 주식시장 전문 투자 애널리스트입니다. " +
		"기업의 경쟁우위(해자)를 객관적으로 평가합니다. " +
		"증거 없는 추측은 하지 않으며, 보수적으로 판단합니다. " +
		"반드시 요청된 JSON 형식으로만 응답합니다."

	// Disagreement margin between rule-based and independent strength that
	// raises the gap flag.
	gapThreshold = 2

	maxEvidenceInPrompt = 5
	maxSectionExcerpt   = 500
	maxRawOpinion       = 500
)

// VerifyRequest is the canonical input shape. Both calling conventions are
// normalized into this before any work happens.
type VerifyRequest struct {
	Company             string
	Ticker              string
	Classification      models.Classification
	ReportSections      map[string]string
	Financials          *models.FinancialRecord
	MultiYear           map[string]*models.FinancialRecord
	BMSummary           string
	Evidence            []models.Evidence
	EvidenceSummary     string // preformatted; overrides Evidence when set
	MoatStrength        int
	MoatDesc            string
	SustainabilityNotes string
}

// VerificationResult is the structured review outcome. Verified=false means
// the review did not run (no credential or transport failure); Verified=true
// with a nil IndependentStrength means the model answered but the response
// could not be parsed, with the raw text kept for audit.
type VerificationResult struct {
	Verified            bool     `json:"verified"`
	AIOpinion           string   `json:"ai_opinion"`
	IndependentStrength *int     `json:"independent_strength"`
	AdjustedStrength    int      `json:"adjusted_strength"`
	AdjustmentReason    string   `json:"adjustment_reason"`
	RiskFlags           []string `json:"risk_flags"`
	OpportunityFlags    []string `json:"opportunity_flags"`
	MoatTypesFound      []string `json:"moat_types_found"`
	Confidence          float64  `json:"confidence"`
	Gap                 int      `json:"gap"`
	GapFlag             bool     `json:"gap_flag"`
	RawResponse         string   `json:"raw_response,omitempty"`
	Error               string   `json:"error,omitempty"`
}

// Verifier wraps an LLM provider. A nil provider disables verification
// entirely; Verify then returns a disabled result without any network call.
type Verifier struct {
	provider llm.Provider
	enabled  bool
}

// NewVerifier builds a verifier backed by the OpenAI provider. An empty or
// placeholder key disables it.
func NewVerifier(apiKey string) *Verifier {
	if apiKey == "" || apiKey == "your-openai-api-key-here" {
		return &Verifier{}
	}
	return &Verifier{provider: &llm.OpenAIProvider{APIKey: apiKey}, enabled: true}
}

// NewVerifierWithProvider injects a provider directly.
func NewVerifierWithProvider(p llm.Provider) *Verifier {
	return &Verifier{provider: p, enabled: p != nil}
}

// Enabled reports whether a credential is configured.
func (v *Verifier) Enabled() bool {
	return v.enabled
}

// Verify runs the review for a canonical request. It never returns an error;
// every failure mode is folded into the result.
func (v *Verifier) Verify(ctx context.Context, req *VerifyRequest) *VerificationResult {
	if !v.enabled {
		return &VerificationResult{
			Verified:         false,
			AIOpinion:        "OPENAI_API_KEY not configured",
			AdjustedStrength: req.MoatStrength,
			Error:            "API key not set",
		}
	}

	prompt := buildPrompt(req)
	response, err := v.provider.GenerateResponse(ctx, prompt, systemPrompt, nil)
	if err != nil {
		fmt.Printf("    [WARN] AI 검증 호출 실패: %v\n", err)
		return &VerificationResult{
			Verified:         false,
			AIOpinion:        "API call failed",
			AdjustedStrength: req.MoatStrength,
			Error:            fmt.Sprintf("LLM call failed: %v", err),
		}
	}

	result := parseResponse(response, req.MoatStrength)
	applyGap(result, req.MoatStrength)
	return result
}

// VerifyLegacy accepts the older positional convention and normalizes it
// into a VerifyRequest.
func (v *Verifier) VerifyLegacy(
	ctx context.Context,
	company, ticker string,
	moatStrength int,
	moatDesc, bmSummary, evidenceSummary, sustainabilityNotes string,
	classification models.Classification,
	financials *models.FinancialRecord,
) *VerificationResult {
	return v.Verify(ctx, &VerifyRequest{
		Company:             company,
		Ticker:              ticker,
		Classification:      classification,
		Financials:          financials,
		BMSummary:           bmSummary,
		EvidenceSummary:     evidenceSummary,
		MoatStrength:        moatStrength,
		MoatDesc:            moatDesc,
		SustainabilityNotes: sustainabilityNotes,
	})
}

// aiResponse is the fixed schema requested from the model.
type aiResponse struct {
	IndependentStrength *int     `json:"independent_strength"`
	AdjustedStrength    *int     `json:"adjusted_strength"` // older prompt variant
	AdjustmentReason    string   `json:"adjustment_reason"`
	MoatTypesFound      []string `json:"moat_types_found"`
	RiskFlags           []string `json:"risk_flags"`
	OpportunityFlags    []string `json:"opportunity_flags"`
	Opinion             string   `json:"opinion"`
	Confidence          float64  `json:"confidence"`
}

func parseResponse(response string, ruleStrength int) *VerificationResult {
	result := &VerificationResult{
		Verified:         true,
		AdjustedStrength: ruleStrength,
		Confidence:       0.5,
		RawResponse:      response,
	}

	var parsed aiResponse
	if err := utils.SmartParse(response, &parsed); err != nil {
		result.Error = fmt.Sprintf("JSON parsing failed: %v", err)
		result.AIOpinion = truncateRunes(response, maxRawOpinion)
		return result
	}

	strength := parsed.IndependentStrength
	if strength == nil {
		strength = parsed.AdjustedStrength
	}
	if strength != nil {
		clamped := max(1, min(5, *strength))
		result.IndependentStrength = &clamped
		result.AdjustedStrength = clamped
	}
	result.AdjustmentReason = parsed.AdjustmentReason
	result.MoatTypesFound = parsed.MoatTypesFound
	result.RiskFlags = parsed.RiskFlags
	result.OpportunityFlags = parsed.OpportunityFlags
	result.AIOpinion = parsed.Opinion
	if parsed.Confidence > 0 {
		result.Confidence = parsed.Confidence
	}
	return result
}

// applyGap compares the rule-based and independent strengths when both exist.
func applyGap(result *VerificationResult, ruleStrength int) {
	if result.IndependentStrength == nil || ruleStrength <= 0 {
		return
	}
	gap := *result.IndependentStrength - ruleStrength
	if gap < 0 {
		gap = -gap
	}
	result.Gap = gap
	if gap >= gapThreshold {
		result.GapFlag = true
		if result.AdjustmentReason == "" {
			result.AdjustmentReason = fmt.Sprintf(
				"규칙 기반 %d점 vs AI 독립 평가 %d점 (격차 %d)",
				ruleStrength, *result.IndependentStrength, gap)
		}
	}
}

func buildPrompt(req *VerifyRequest) string {
	finText := formatFinancials(req.Financials, req.MultiYear)

	sector := req.Classification.KoreanSectorTop
	if sector == "" {
		sector = "미분류"
	}

	evidenceText := req.EvidenceSummary
	if evidenceText == "" {
		evidenceText = formatEvidence(req.Evidence)
	}
	if evidenceText == "" {
		evidenceText = "증거 요약 없음"
	}

	bmText := req.BMSummary
	if bmText == "" {
		bmText = "BM 분석 없음"
	}
	sustText := req.SustainabilityNotes
	if sustText == "" {
		sustText = "(미실행)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "당신은 한국 주식시장 전문 투자자입니다. 아래 기업의 해자(moat) 평가 결과를 검증해주세요.\n\n")
	fmt.Fprintf(&b, "## 기업 정보\n")
	fmt.Fprintf(&b, "- 회사명: %s (%s)\n", req.Company, req.Ticker)
	fmt.Fprintf(&b, "- 섹터: %s (GICS: %s)\n", sector, req.Classification.GICSSector)
	fmt.Fprintf(&b, "- 재무: %s\n\n", finText)
	fmt.Fprintf(&b, "## 현재 해자 평가 결과\n")
	fmt.Fprintf(&b, "해자강도: %d/5\n\n", req.MoatStrength)
	fmt.Fprintf(&b, "### 해자 상세\n%s\n\n", req.MoatDesc)
	fmt.Fprintf(&b, "### BM 분석\n%s\n\n", bmText)
	fmt.Fprintf(&b, "### 증거 요약\n%s\n\n", evidenceText)
	fmt.Fprintf(&b, "### 지속가능성 검증\n%s\n\n", sustText)

	if excerpt := formatSections(req.ReportSections); excerpt != "" {
		fmt.Fprintf(&b, "### 공시 발췌\n%s\n\n", excerpt)
	}

	fmt.Fprintf(&b, "## 검증 요청\n전문투자자 관점에서 아래 항목을 검증해주세요:\n\n")
	fmt.Fprintf(&b, "1. **점수 적정성**: 현재 해자강도 %d점이 증거와 일치하는가?\n", req.MoatStrength)
	fmt.Fprintf(&b, "   - 과대평가(증거 대비 점수가 높음) 또는 과소평가(증거 대비 점수가 낮음)?\n")
	fmt.Fprintf(&b, "   - 증거만 보고 독립적으로 판단하면 몇 점인가?\n\n")
	fmt.Fprintf(&b, "2. **간과된 리스크**: 위 데이터에서 놓친 위험 요인이 있는가?\n\n")
	fmt.Fprintf(&b, "3. **간과된 기회**: 위 데이터에서 놓친 강점이나 기회가 있는가?\n\n")
	fmt.Fprintf(&b, "4. **최종 의견**: 전문투자자로서 이 회사의 해자에 대한 한 줄 평가\n\n")
	fmt.Fprintf(&b, "## 응답 형식 (반드시 아래 JSON 형식으로)\n")
	fmt.Fprintf(&b, "```json\n{\n")
	fmt.Fprintf(&b, "  \"independent_strength\": %d,\n", req.MoatStrength)
	fmt.Fprintf(&b, "  \"adjustment_reason\": \"조정 사유 (변경 없으면 빈 문자열)\",\n")
	fmt.Fprintf(&b, "  \"moat_types_found\": [\"전환비용\"],\n")
	fmt.Fprintf(&b, "  \"risk_flags\": [\"리스크1\", \"리스크2\"],\n")
	fmt.Fprintf(&b, "  \"opportunity_flags\": [\"기회1\"],\n")
	fmt.Fprintf(&b, "  \"opinion\": \"전문투자자 한 줄 평가\",\n")
	fmt.Fprintf(&b, "  \"confidence\": 0.8\n}\n```\n")

	return b.String()
}

func formatFinancials(fin *models.FinancialRecord, multiYear map[string]*models.FinancialRecord) string {
	target := fin
	if len(multiYear) > 0 {
		years := make([]string, 0, len(multiYear))
		for y := range multiYear {
			years = append(years, y)
		}
		sort.Strings(years)
		if rec := multiYear[years[len(years)-1]]; rec != nil && rec.Revenue > 0 {
			target = rec
		}
	}
	if target == nil {
		return "재무 데이터 없음"
	}

	var parts []string
	if target.Revenue > 0 {
		parts = append(parts, fmt.Sprintf("매출: %.1f조원", float64(target.Revenue)/1e12))
	}
	if opm, ok := target.Margin(); ok {
		parts = append(parts, fmt.Sprintf("영업이익률: %.1f%%", opm*100))
	}
	if target.ROE != nil {
		parts = append(parts, fmt.Sprintf("ROE: %.1f%%", *target.ROE*100))
	}
	if target.DebtRatio != nil {
		parts = append(parts, fmt.Sprintf("부채비율: %.0f%%", *target.DebtRatio*100))
	}
	if len(parts) == 0 {
		return "재무 데이터 없음"
	}
	return strings.Join(parts, ", ")
}

// formatEvidence lists the strongest items, sorted by quality and capped.
func formatEvidence(items []models.Evidence) string {
	if len(items) == 0 {
		return ""
	}
	sorted := make([]models.Evidence, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].QualityScore > sorted[j].QualityScore })
	if len(sorted) > maxEvidenceInPrompt {
		sorted = sorted[:maxEvidenceInPrompt]
	}

	var lines []string
	for _, e := range sorted {
		label := "추정"
		if e.Confidence == models.EvidenceConfirmed {
			label = "확인"
		}
		lines = append(lines, fmt.Sprintf("- [%s][%s] q=%.1f: %s",
			e.MoatType, label, e.QualityScore, truncateRunes(e.EvidenceText, 150)))
	}
	return strings.Join(lines, "\n")
}

// formatSections excerpts the most decision-relevant sections, bounded so the
// prompt stays within model limits.
func formatSections(sections map[string]string) string {
	if len(sections) == 0 {
		return ""
	}
	var lines []string
	for _, name := range []string{"business_overview", "competition"} {
		text := strings.TrimSpace(sections[name])
		if text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", name, truncateRunes(text, maxSectionExcerpt)))
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

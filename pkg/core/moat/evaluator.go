// Package moat scores moat strength from disclosure evidence. Scores are
// evidence-gated: a type can only reach 3+ with confirmed disclosure evidence,
// and insufficient evidence always downgrades, never upgrades.
package moat

import (
	"fmt"
	"sort"
	"strings"

	"stock_moat/pkg/core/evidence"
	"stock_moat/pkg/models"
)

// Korean display names per moat category.
var moatTypeKR = map[string]string{
	evidence.MoatSwitchingCost:  "전환비용",
	evidence.MoatNetworkEffect:  "네트워크 효과",
	evidence.MoatScaleEconomy:   "규모의 경제",
	evidence.MoatBrand:          "브랜드",
	evidence.MoatRegulatory:     "규제/허가",
	evidence.MoatDataLearning:   "데이터/학습",
	evidence.MoatPatentProcess:  "특허/공정",
	evidence.MoatSupplyChain:    "공급망/설치기반",
	evidence.MoatLockInStandard: "락인/표준",
	evidence.MoatCostAdvantage:  "원가 우위",
}

// scoreRule maps a per-type score to the minimum summed evidence quality that
// supports it.
type scoreRule struct {
	minQuality  float64
	description string
}

var scoreRules = map[int]scoreRule{
	5: {5.0, "구조적 해자 (증거+지속가능성)"},
	4: {3.5, "강한 해자 (증거+반증체크)"},
	3: {2.0, "보통 해자 (공시 증거)"},
	2: {0.5, "약한 해자 (추정)"},
	1: {0.0, "해자 없음"},
}

// StrengthDescription returns the Korean label for a 1-5 strength.
func StrengthDescription(strength int) string {
	return scoreRules[strength].description
}

const (
	megaCapRevenue  = 10_000_000_000_000 // 10조
	smallCapRevenue = 100_000_000_000    // 1000억
	lowMarginFloor  = 0.05
	lowROEFloor     = 0.05
)

// Moat types that need scale to be credible. A small company cannot carry a
// strong network or data moat.
var scaleDependentMoats = map[string]bool{
	evidence.MoatNetworkEffect: true,
	evidence.MoatDataLearning:  true,
	evidence.MoatScaleEconomy:  true,
}

// TypeScore is the evidence-derived score for one moat category.
type TypeScore struct {
	MoatType        string  `json:"moat_type"`
	Score           int     `json:"score"`
	EvidenceCount   int     `json:"evidence_count"`
	QualityTotal    float64 `json:"quality_total"`
	Reasoning       string  `json:"reasoning"`
	Downgraded      bool    `json:"downgraded"`
	DowngradeReason string  `json:"downgrade_reason,omitempty"`
}

// Evaluation is the complete moat evaluation for one company.
type Evaluation struct {
	Company          string                `json:"company"`
	Ticker           string                `json:"ticker"`
	MoatStrength     int                   `json:"moat_strength"`
	Scores           map[string]*TypeScore `json:"scores"`
	TotalScore       int                   `json:"total_score"`
	EvidenceBased    bool                  `json:"evidence_based"`
	VerificationDesc string                `json:"verification_desc,omitempty"`
	MoatDesc         string                `json:"moat_desc"`
}

// Evaluator derives moat strength from an evidence collection plus the
// financial gatekeeper checks.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate scores every moat type, applies the financial and size gates, and
// computes final strength as the rounded mean of the top five type scores.
// multiYear may be nil; when present its latest year with revenue overrides
// financials for the gatekeeper.
func (ev *Evaluator) Evaluate(
	company, ticker string,
	collection *models.EvidenceCollection,
	financials *models.FinancialRecord,
	multiYear map[string]*models.FinancialRecord,
) *Evaluation {
	maxScore, gateReasons := applyFinancialGatekeeper(financials, multiYear)

	scores := make(map[string]*TypeScore, len(evidence.AllMoatTypes))
	for _, moatType := range evidence.AllMoatTypes {
		items := collection.ByType(moatType)
		score := scoreSingleType(moatType, items)

		if score.Score > maxScore {
			score.Score = maxScore
			score.Downgraded = true
			reason := fmt.Sprintf("펀더멘털 제한(%s)", strings.Join(gateReasons, " | "))
			if score.DowngradeReason != "" {
				score.DowngradeReason = reason + " | " + score.DowngradeReason
			} else {
				score.DowngradeReason = reason
			}
		}

		if newScore, sizeReason := validateMoatSize(moatType, score.Score, financials); newScore < score.Score {
			score.Score = newScore
			score.Downgraded = true
			if score.DowngradeReason != "" {
				score.DowngradeReason += " | " + sizeReason
			} else {
				score.DowngradeReason = sizeReason
			}
		}

		scores[moatType] = score
	}

	strength := finalStrength(scores)

	result := &Evaluation{
		Company:      company,
		Ticker:       ticker,
		MoatStrength: strength,
		Scores:       scores,
	}
	for _, s := range scores {
		result.TotalScore += s.Score
		if s.EvidenceCount > 0 {
			result.EvidenceBased = true
		}
	}

	if strength >= 4 {
		result.VerificationDesc = buildVerificationDesc(company, strength, scores, collection)
	}
	result.MoatDesc = result.buildMoatDesc()

	return result
}

// applyFinancialGatekeeper caps the per-type score ceiling before any
// evidence is considered. Latest multi-year data wins over the TTM record.
// Mega caps (revenue >= 10조) get relaxed caps: a downturn there is treated
// as cyclical rather than structural.
func applyFinancialGatekeeper(financials *models.FinancialRecord, multiYear map[string]*models.FinancialRecord) (int, []string) {
	target := financials
	targetYear := "Current"

	if len(multiYear) > 0 {
		years := make([]string, 0, len(multiYear))
		for y := range multiYear {
			years = append(years, y)
		}
		sort.Strings(years)
		latest := years[len(years)-1]
		if rec := multiYear[latest]; rec != nil && rec.Revenue > 0 {
			target = rec
			targetYear = latest
		}
	}

	if target == nil {
		return 5, nil
	}

	maxScore := 5
	var reasons []string
	isMegaCap := target.Revenue >= megaCapRevenue

	if opm, ok := target.Margin(); ok {
		switch {
		case opm < 0:
			if isMegaCap {
				maxScore = min(maxScore, 3)
				reasons = append(reasons, fmt.Sprintf("적자지속(%s, %.1f%%) But 초대형주(방어)", targetYear, opm*100))
			} else {
				maxScore = min(maxScore, 2)
				reasons = append(reasons, fmt.Sprintf("적자지속(%s, %.1f%%)", targetYear, opm*100))
			}
		case opm < lowMarginFloor:
			if isMegaCap {
				maxScore = min(maxScore, 4)
				reasons = append(reasons, fmt.Sprintf("이익률저조(%s, %.1f%%) But 초대형주(경기민감)", targetYear, opm*100))
			} else {
				maxScore = min(maxScore, 2)
				reasons = append(reasons, fmt.Sprintf("이익률저조(%s, %.1f%%)", targetYear, opm*100))
			}
		}
	}

	if target.ROE != nil && *target.ROE < lowROEFloor && !isMegaCap {
		if maxScore > 2 {
			maxScore = 2
			reasons = append(reasons, fmt.Sprintf("ROE저조(%s, %.1f%%)", targetYear, *target.ROE*100))
		}
	}

	return maxScore, reasons
}

// scoreSingleType maps summed evidence quality to a raw score, then applies
// the fail-safe validation ladder.
func scoreSingleType(moatType string, items []models.Evidence) *TypeScore {
	var qualityTotal float64
	for _, e := range items {
		qualityTotal += e.QualityScore
	}

	rawScore := 1
	for _, candidate := range []int{5, 4, 3, 2} {
		if qualityTotal >= scoreRules[candidate].minQuality {
			rawScore = candidate
			break
		}
	}

	finalScore, downgradeReason := validateScore(rawScore, items)

	krName := moatTypeKR[moatType]
	var reasoning string
	if len(items) > 0 {
		top := items[0]
		for _, e := range items[1:] {
			if e.QualityScore > top.QualityScore {
				top = e
			}
		}
		reasoning = fmt.Sprintf("%s: quality %.1f, 증거 %d건", krName, qualityTotal, len(items))
		if top.EvidenceText != "" {
			reasoning += fmt.Sprintf(" | %q", truncateRunes(top.EvidenceText, 80)+"...")
		}
	} else {
		reasoning = fmt.Sprintf("%s: 증거 없음", krName)
	}

	return &TypeScore{
		MoatType:        moatType,
		Score:           finalScore,
		EvidenceCount:   len(items),
		QualityTotal:    qualityTotal,
		Reasoning:       reasoning,
		Downgraded:      finalScore < rawScore,
		DowngradeReason: downgradeReason,
	}
}

// validateScore enforces the evidence gates: 3 needs one confirmed item,
// 4 needs two confirmed plus one with numbers. 5 stays as a candidate for
// the sustainability check.
func validateScore(rawScore int, items []models.Evidence) (int, string) {
	if rawScore <= 2 {
		return rawScore, ""
	}

	var confirmed, withNumbers int
	for _, e := range items {
		if e.Confidence == models.EvidenceConfirmed {
			confirmed++
		}
		if e.HasNumbers {
			withNumbers++
		}
	}

	if confirmed < 1 {
		return 2, fmt.Sprintf("3점→2점: 공시 확인 증거 없음 (추정만 %d건)", len(items))
	}
	if rawScore >= 4 {
		if confirmed < 2 {
			return 3, fmt.Sprintf("4점→3점: 확인 증거 부족 (%d건, 2건 필요)", confirmed)
		}
		if withNumbers < 1 {
			return 3, "4점→3점: 수치 포함 증거 없음"
		}
	}

	return rawScore, ""
}

// validateMoatSize caps scale-dependent moat types at 2 for companies below
// 1000억 revenue.
func validateMoatSize(moatType string, current int, financials *models.FinancialRecord) (int, string) {
	if current < 3 || financials == nil {
		return current, ""
	}
	if financials.Revenue > 0 && financials.Revenue < smallCapRevenue && scaleDependentMoats[moatType] {
		return 2, fmt.Sprintf("%d점→2점: 매출 규모(%.0f억) 작음 - %s 약함",
			current, float64(financials.Revenue)/1e8, moatType)
	}
	return current, ""
}

// finalStrength averages the top five type scores. Not every type needs to
// be strong; a few deep moats carry the company.
func finalStrength(scores map[string]*TypeScore) int {
	all := make([]*TypeScore, 0, len(scores))
	for _, s := range scores {
		all = append(all, s)
	}
	if len(all) == 0 {
		return 1
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	top := all
	if len(top) > 5 {
		top = top[:5]
	}
	sum := 0
	for _, s := range top {
		sum += s.Score
	}
	avg := float64(sum) / float64(len(top))
	result := int(avg + 0.5)
	return max(1, min(5, result))
}

func buildVerificationDesc(company string, strength int, scores map[string]*TypeScore, collection *models.EvidenceCollection) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("[검증용 DESC - %s 해자강도 %d]", company, strength), "")

	lines = append(lines, "1. 사업 해자 설명:")
	var topTypes []*TypeScore
	for _, s := range scores {
		if s.Score >= 3 {
			topTypes = append(topTypes, s)
		}
	}
	sort.Slice(topTypes, func(i, j int) bool { return topTypes[i].Score > topTypes[j].Score })
	if len(topTypes) > 0 {
		var names []string
		limit := min(3, len(topTypes))
		for _, s := range topTypes[:limit] {
			names = append(names, fmt.Sprintf("%s(%d점)", moatTypeKR[s.MoatType], s.Score))
		}
		lines = append(lines, fmt.Sprintf("   핵심 해자 유형: %s", strings.Join(names, ", ")))
		primary := topTypes[0]
		lines = append(lines, fmt.Sprintf("   주요 해자: %s - %s", moatTypeKR[primary.MoatType], primary.Reasoning))
	} else {
		lines = append(lines, "   3점 이상 해자 유형 없음")
	}

	lines = append(lines, "", "2. 주요 증거 (출처 포함):")
	cited := 0
	if collection != nil && len(collection.Evidences) > 0 {
		sorted := make([]models.Evidence, len(collection.Evidences))
		copy(sorted, collection.Evidences)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].QualityScore > sorted[j].QualityScore })
		limit := min(5, len(sorted))
		for _, e := range sorted[:limit] {
			label := "[추정]"
			if e.Confidence == models.EvidenceConfirmed {
				label = "[확인]"
			}
			numbersTag := ""
			if e.HasNumbers {
				numbersTag = " [수치포함]"
			}
			lines = append(lines, fmt.Sprintf("   %s%s [%s] q=%.1f", label, numbersTag, e.MoatType, e.QualityScore))
			text := truncateRunes(e.EvidenceText, 200)
			if text == "" {
				text = "(텍스트 없음)"
			}
			lines = append(lines, fmt.Sprintf("      %q", text))
			lines = append(lines, fmt.Sprintf("      출처: %s", e.Source))
			cited++
		}
	}
	if cited == 0 {
		lines = append(lines, "   증거 없음 (주의: 4점+ 기준 미달)")
	}

	lines = append(lines, "", "3. 반증 체크:")
	var downgraded []*TypeScore
	for _, s := range scores {
		if s.Downgraded {
			downgraded = append(downgraded, s)
		}
	}
	sort.Slice(downgraded, func(i, j int) bool { return downgraded[i].MoatType < downgraded[j].MoatType })
	if len(downgraded) > 0 {
		for _, s := range downgraded {
			lines = append(lines, fmt.Sprintf("   [하향] %s: %s", moatTypeKR[s.MoatType], s.DowngradeReason))
		}
	} else {
		lines = append(lines, "   하향 조정 없음 (모든 유형 기준 충족)")
	}
	estimated := 0
	if collection != nil {
		for _, e := range collection.Evidences {
			if e.Confidence == models.EvidenceEstimated {
				estimated++
			}
		}
	}
	if estimated > 0 {
		lines = append(lines, fmt.Sprintf("   [주의] 추정 증거 %d건 - 확인 증거로 대체 필요", estimated))
	}

	lines = append(lines, "", "[검증 필요 항목]")
	lines = append(lines, "- 최신 경쟁 동향 확인 (공시 외 뉴스/리포트)")
	lines = append(lines, "- 실제 고객 이탈률/전환 데이터")
	lines = append(lines, "- 산업 전문가 의견 교차 검증")

	return strings.Join(lines, "\n")
}

// buildMoatDesc formats the per-type breakdown for storage.
func (e *Evaluation) buildMoatDesc() string {
	var lines []string
	lines = append(lines, fmt.Sprintf("해자강도: %d/5 (%s)", e.MoatStrength, StrengthDescription(e.MoatStrength)), "")

	lines = append(lines, "[증거 기반 평가]")
	for _, moatType := range evidence.AllMoatTypes {
		score := e.Scores[moatType]
		if score == nil {
			continue
		}
		var icon string
		switch {
		case score.Score >= 4:
			icon = "●"
		case score.Score >= 3:
			icon = "◐"
		case score.Score >= 2:
			icon = "○"
		default:
			icon = "."
		}
		downgrade := ""
		if score.Downgraded {
			downgrade = " ↓" + score.DowngradeReason
		}
		lines = append(lines, fmt.Sprintf("%s %s: %d점 (증거 %d건, q=%.1f)%s",
			icon, moatTypeKR[moatType], score.Score, score.EvidenceCount, score.QualityTotal, downgrade))
	}

	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("총점: %d/50", e.TotalScore))
	based := "No"
	if e.EvidenceBased {
		based = "Yes"
	}
	lines = append(lines, fmt.Sprintf("증거 기반: %s", based))

	if e.VerificationDesc != "" {
		lines = append(lines, "", e.VerificationDesc)
	}

	lines = append(lines, "", "[출처: DART 사업보고서, 증거 기반 평가]")
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

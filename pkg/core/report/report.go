// Package report renders evaluation results into the text blocks stored
// alongside each ticker and into HTML for the dashboard.
package report

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"stock_moat/pkg/core/moat"
	"stock_moat/pkg/core/sustainability"
	"stock_moat/pkg/core/verify"
	"stock_moat/pkg/models"
)

var riskIcons = map[string]string{
	sustainability.RiskLow:    "●",
	sustainability.RiskMedium: "◐",
	sustainability.RiskHigh:   "○",
}

// SustainabilityNotes formats the three qualitative checks plus warnings.
func SustainabilityNotes(res sustainability.CheckResult) string {
	lines := []string{"[지속가능성 검증]"}

	sg := res.StructuralGrowth
	icon := "○"
	if sg.Positive {
		icon = "●"
	}
	lines = append(lines, fmt.Sprintf("%s 구조적 성장: %s", icon, sg.Reason))

	cs := res.CompetitionShift
	riskIcon, ok := riskIcons[cs.Risk]
	if !ok {
		riskIcon = "?"
	}
	lines = append(lines, fmt.Sprintf("%s 경쟁 축 변화: %s", riskIcon, cs.Reason))

	mc := res.MaintenanceCost
	icon = "●"
	if mc.Excessive {
		icon = "○"
	}
	lines = append(lines, fmt.Sprintf("%s 유지비용: %s", icon, mc.Reason))

	if len(res.Warnings) > 0 {
		lines = append(lines, "", "[경고]")
		for _, w := range res.Warnings {
			lines = append(lines, "* "+w)
		}
	}

	lines = append(lines, fmt.Sprintf("\n조정 해자강도: %d", res.AdjustedStrength))
	return strings.Join(lines, "\n")
}

// AIReviewText formats the verification outcome. Unverified results carry
// the skip reason so the stored row explains itself.
func AIReviewText(res *verify.VerificationResult) string {
	if res == nil || !res.Verified {
		reason := "unknown"
		if res != nil && res.Error != "" {
			reason = res.Error
		}
		return fmt.Sprintf("[AI 검증 미실행] %s", reason)
	}

	lines := []string{"[AI 검증]"}
	if res.AIOpinion != "" {
		lines = append(lines, "의견: "+res.AIOpinion)
	}
	if res.IndependentStrength != nil {
		lines = append(lines, fmt.Sprintf("독립 평가: %d점", *res.IndependentStrength))
	}
	if res.AdjustmentReason != "" {
		lines = append(lines, fmt.Sprintf("조정: %d점 (%s)", res.AdjustedStrength, res.AdjustmentReason))
	}
	if res.GapFlag {
		lines = append(lines, fmt.Sprintf("[격차 경고] 규칙 기반 평가와 %d점 차이", res.Gap))
	}
	if len(res.RiskFlags) > 0 {
		lines = append(lines, "리스크: "+strings.Join(res.RiskFlags, "; "))
	}
	if len(res.OpportunityFlags) > 0 {
		lines = append(lines, "기회: "+strings.Join(res.OpportunityFlags, "; "))
	}
	lines = append(lines, fmt.Sprintf("신뢰도: %.0f%%", res.Confidence*100))

	return strings.Join(lines, "\n")
}

// Summary carries everything the markdown report needs for one ticker.
type Summary struct {
	Company             string
	Ticker              string
	TTM                 *models.TTMFinancials
	Trend               *models.GrowthTrend
	MoatEval            *moat.Evaluation
	GrowthReason        string
	Sustainability      sustainability.CheckResult
	SustainabilityNotes string
	InvestmentScore     int
	InvestmentDetail    string
	AIReview            string
}

// BuildMarkdown renders the full per-ticker evaluation as markdown.
func BuildMarkdown(s *Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s (%s) 해자 평가\n\n", s.Company, s.Ticker)

	if s.TTM != nil {
		fmt.Fprintf(&b, "## 재무 (TTM) %s\n\n", s.TTM.DataQuality.Label())
		fmt.Fprintf(&b, "- 매출: %s\n", models.FormatKRW(s.TTM.TTMRevenue))
		fmt.Fprintf(&b, "- 영업이익: %s\n", models.FormatKRW(s.TTM.TTMOpIncome))
		if s.TTM.TTMRevenue > 0 {
			fmt.Fprintf(&b, "- 영업이익률: %.1f%%\n", s.TTM.TTMOpMargin()*100)
		}
		for _, w := range s.TTM.DataQuality.Warnings {
			fmt.Fprintf(&b, "- 경고: %s\n", w)
		}
		b.WriteString("\n")
	}

	if s.MoatEval != nil {
		fmt.Fprintf(&b, "## 해자 평가\n\n```\n%s\n```\n\n", s.MoatEval.MoatDesc)
	}

	if s.Trend != nil {
		fmt.Fprintf(&b, "## 성장 추세\n\n")
		if len(s.Trend.Periods) >= 2 {
			fmt.Fprintf(&b, "- 매출 CAGR: %.1f%%\n", s.Trend.RevenueCAGR*100)
			fmt.Fprintf(&b, "- 마진 변화: %+.1fpp\n", s.Trend.OpMarginDelta)
		}
		if s.GrowthReason != "" {
			fmt.Fprintf(&b, "- 판정: %s\n", s.GrowthReason)
		}
		b.WriteString("\n")
	}

	notes := s.SustainabilityNotes
	if notes == "" {
		notes = SustainabilityNotes(s.Sustainability)
	}
	fmt.Fprintf(&b, "## 지속가능성\n\n```\n%s\n```\n\n", notes)

	fmt.Fprintf(&b, "## 투자 가치: %d/5\n\n%s\n", s.InvestmentScore, s.InvestmentDetail)

	if s.AIReview != "" {
		fmt.Fprintf(&b, "\n## AI 검증\n\n```\n%s\n```\n", s.AIReview)
	}

	return b.String()
}

// CleanMarkdown strips an outer code fence an LLM may wrap around its output.
func CleanMarkdown(input string) string {
	cleaned := strings.TrimSpace(input)
	if strings.HasPrefix(cleaned, "```markdown") && strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```markdown")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	} else if strings.HasPrefix(cleaned, "```") && strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}
	return cleaned
}

// RenderHTML converts a markdown report to HTML for dashboard storage.
func RenderHTML(markdown string) (string, error) {
	var buf strings.Builder
	if err := goldmark.Convert([]byte(CleanMarkdown(markdown)), &buf); err != nil {
		return "", fmt.Errorf("markdown render failed: %w", err)
	}
	return buf.String(), nil
}

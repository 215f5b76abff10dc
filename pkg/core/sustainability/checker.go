package sustainability

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"stock_moat/pkg/models"
)

// Risk levels for the competition-shift check.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Financial-reality thresholds.
const (
	deepDeficitMargin   = -0.5
	smallCapRevenue     = 10_000_000_000 // 100억
	severeDeclineCAGR   = -0.15
	structuralCAGRFloor = 0.05
	excessiveCostRatio  = 0.40
	moderateCostRatio   = 0.25
)

var (
	growthKeywordRe  = regexp.MustCompile(`(?:성장|확대|증가|호황)`)
	declineKeywordRe = regexp.MustCompile(`(?:축소|감소|쇠퇴|역성장|불황)`)
)

// competitionTriggers are the six categories of competitive-axis change
// scanned in competition and risk-factor text.
var competitionTriggers = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"기술변화", regexp.MustCompile(`(?:기술\s*변화|기술\s*발전|디지털\s*전환|AI\s*도입)`)},
	{"규제변경", regexp.MustCompile(`(?:규제\s*변[경화]|제도\s*변화|법[률규]\s*개정)`)},
	{"신규진입", regexp.MustCompile(`(?:신규\s*진입|후발\s*업체|경쟁\s*심화|신규\s*경쟁)`)},
	{"대체재", regexp.MustCompile(`(?:대체[재품]|대안\s*기술|대체\s*가능)`)},
	{"해외경쟁", regexp.MustCompile(`(?:해외\s*경쟁|중국.*경쟁|글로벌\s*경쟁)`)},
	{"원가변동", regexp.MustCompile(`(?:원[가재]료\s*가격|비용\s*[증상]가|원가\s*구조\s*변)`)},
}

// StructuralGrowthResult is the outcome of the structural growth check.
type StructuralGrowthResult struct {
	Positive        bool     `json:"positive"`
	Reason          string   `json:"reason"`
	RevenueCAGR     *float64 `json:"revenue_cagr,omitempty"`
	GrowthKeywords  []string `json:"growth_keywords,omitempty"`
	DeclineKeywords []string `json:"decline_keywords,omitempty"`
}

// CompetitionShiftResult is the outcome of the competitive-axis check.
type CompetitionShiftResult struct {
	Risk     string   `json:"risk"`
	Reason   string   `json:"reason"`
	Triggers []string `json:"triggers"`
}

// MaintenanceCostResult is the outcome of the moat-maintenance-cost check.
type MaintenanceCostResult struct {
	Excessive        bool    `json:"excessive"`
	Reason           string  `json:"reason"`
	RnDRatio         float64 `json:"rnd_ratio"`
	SGARatio         float64 `json:"sga_ratio"`
	MaintenanceRatio float64 `json:"maintenance_ratio"`
}

// CheckResult aggregates the three qualitative checks, the adjusted strength
// after financial-reality caps and downgrade rules, and the warnings that
// explain every reduction.
type CheckResult struct {
	StructuralGrowth StructuralGrowthResult `json:"structural_growth"`
	CompetitionShift CompetitionShiftResult `json:"competition_shift"`
	MaintenanceCost  MaintenanceCostResult  `json:"maintenance_cost"`
	AdjustedStrength int                    `json:"adjusted_strength"`
	Warnings         []string               `json:"warnings"`
}

// Checker validates whether a claimed moat strength is sustainable. It only
// ever confirms or lowers the input strength, floored at 1; it never raises
// it, and repeated runs over the same inputs produce the same result.
type Checker struct{}

// NewChecker creates a sustainability checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Check runs the financial-reality caps and the three qualitative checks
// against a claimed moat strength.
func (c *Checker) Check(companyName string, financials *models.FinancialRecord, multiYear map[string]*models.FinancialRecord, reportSections map[string]string, moatStrength int) CheckResult {
	if reportSections == nil {
		reportSections = map[string]string{}
	}

	result := CheckResult{
		StructuralGrowth: c.checkStructuralGrowth(multiYear, reportSections),
		CompetitionShift: c.checkCompetitionShift(reportSections),
		MaintenanceCost:  c.checkMaintenanceCost(financials),
		AdjustedStrength: moatStrength,
	}

	warnings := []string{}
	adjusted := moatStrength

	var opMargin *float64
	var revenue int64
	if financials != nil {
		if m, ok := financials.Margin(); ok {
			opMargin = &m
		}
		revenue = financials.Revenue
	}

	// A moat that cannot protect profits is not working: any operating
	// deficit caps strength at 2, with the depth stated in the warning.
	if opMargin != nil && *opMargin < deepDeficitMargin {
		warnings = append(warnings, fmt.Sprintf("영업이익률 %.1f%%: 해자가 수익을 보호하지 못함 -> 최대 2점", *opMargin*100))
		adjusted = min(adjusted, 2)
	} else if opMargin != nil && *opMargin < 0 {
		warnings = append(warnings, fmt.Sprintf("영업이익률 %.1f%%: 적자 지속 -> 최대 2점", *opMargin*100))
		adjusted = min(adjusted, 2)
	}

	// Catch a recent flip into deficit that the base-period figures miss.
	if latestYear, latestFin := latestOf(multiYear); latestFin != nil {
		if lm, ok := latestFin.Margin(); ok && lm < 0 {
			if opMargin == nil || *opMargin >= 0 {
				warnings = append(warnings, fmt.Sprintf("최근(%s) 영업이익률 %.1f%%: 적자 전환 -> 최대 2점", latestYear, lm*100))
				adjusted = min(adjusted, 2)
			}
		}
	}

	// Revenue too small to support a strong moat claim.
	if revenue > 0 && revenue < smallCapRevenue && moatStrength >= 4 {
		warnings = append(warnings, fmt.Sprintf("매출 %.0f억원: 규모가 작아 강한 해자 주장 어려움", float64(revenue)/100_000_000))
		adjusted = min(adjusted, 3)
	}

	growthNegative := !result.StructuralGrowth.Positive
	competitionHigh := result.CompetitionShift.Risk == RiskHigh
	costExcessive := result.MaintenanceCost.Excessive

	if growthNegative && adjusted >= 4 {
		warnings = append(warnings, "구조적 성장 미확인: 해자 지속가능성 의문")
	}
	if competitionHigh && adjusted >= 3 {
		warnings = append(warnings, "경쟁 축 변화 위험 높음: 기존 해자 약화 가능")
	}
	if costExcessive && adjusted >= 4 {
		warnings = append(warnings, "해자 유지비용 과다: 수익성 저하 위험")
	}

	// Downgrade rules: growth negative plus high competition risk costs 2;
	// any two unfavorable checks cost 1. Reductions floor at 1.
	unfavorable := 0
	for _, f := range []bool{growthNegative, competitionHigh, costExcessive} {
		if f {
			unfavorable++
		}
	}
	if growthNegative && competitionHigh {
		adjusted = min(adjusted, max(moatStrength-2, 1))
	} else if unfavorable >= 2 {
		adjusted = min(adjusted, max(moatStrength-1, 1))
	}

	if cagr := result.StructuralGrowth.RevenueCAGR; cagr != nil && *cagr < severeDeclineCAGR && adjusted >= 3 {
		warnings = append(warnings, fmt.Sprintf("매출 급감 (CAGR %.1f%%): 해자 유효성 의문", *cagr*100))
		adjusted = min(adjusted, 2)
	}

	result.AdjustedStrength = adjusted
	result.Warnings = warnings
	return result
}

// checkStructuralGrowth decides whether growth looks structural: multi-year
// CAGR when available, otherwise a growth-vs-decline keyword scan over the
// business overview text.
func (c *Checker) checkStructuralGrowth(multiYear map[string]*models.FinancialRecord, reportSections map[string]string) StructuralGrowthResult {
	result := StructuralGrowthResult{}

	if len(multiYear) >= 2 {
		years := sortedYears(multiYear)
		first := multiYear[years[0]]
		last := multiYear[years[len(years)-1]]

		if first != nil && last != nil && first.Revenue > 0 && last.Revenue > 0 {
			nYears := float64(len(years) - 1)
			cagr := math.Pow(float64(last.Revenue)/float64(first.Revenue), 1/nYears) - 1
			result.RevenueCAGR = &cagr

			switch {
			case cagr >= structuralCAGRFloor:
				result.Positive = true
				result.Reason = fmt.Sprintf("매출 CAGR %.1f%% (구조적 성장)", cagr*100)
			case cagr >= 0:
				result.Reason = fmt.Sprintf("매출 CAGR %.1f%% (완만한 성장)", cagr*100)
			default:
				result.Reason = fmt.Sprintf("매출 CAGR %.1f%% (역성장)", cagr*100)
			}
		}
	}

	if overview := reportSections["business_overview"]; overview != "" {
		growthKw := growthKeywordRe.FindAllString(overview, -1)
		declineKw := declineKeywordRe.FindAllString(overview, -1)

		if len(growthKw) > 0 && len(declineKw) == 0 {
			if result.Reason == "" {
				result.Positive = true
				result.Reason = "사업보고서 성장 키워드 발견: " + strings.Join(capStrings(growthKw, 3), ", ")
			}
			result.GrowthKeywords = capStrings(growthKw, 3)
		} else if len(declineKw) > 0 {
			result.DeclineKeywords = capStrings(declineKw, 3)
			if result.Reason == "" {
				result.Reason = "사업보고서 역성장 키워드: " + strings.Join(capStrings(declineKw, 3), ", ")
			}
		}
	}

	if result.Reason == "" {
		result.Reason = "성장 추세 데이터 부족"
	}
	return result
}

// checkCompetitionShift scans competition and risk-factor text for the six
// trigger categories: high risk at 3+, medium at 1-2, low at 0.
func (c *Checker) checkCompetitionShift(reportSections map[string]string) CompetitionShiftResult {
	result := CompetitionShiftResult{Risk: RiskLow, Triggers: []string{}}

	text := reportSections["competition"] + " " + reportSections["risk_factors"]
	if strings.TrimSpace(text) == "" {
		result.Reason = "경쟁 데이터 부족"
		return result
	}

	for _, trigger := range competitionTriggers {
		if trigger.pattern.MatchString(text) {
			result.Triggers = append(result.Triggers, trigger.name)
		}
	}

	switch {
	case len(result.Triggers) >= 3:
		result.Risk = RiskHigh
		result.Reason = fmt.Sprintf("경쟁 변화 요인 %d개 발견 (고위험)", len(result.Triggers))
	case len(result.Triggers) >= 1:
		result.Risk = RiskMedium
		result.Reason = fmt.Sprintf("경쟁 변화 요인 %d개: %s", len(result.Triggers), strings.Join(result.Triggers, ", "))
	default:
		result.Reason = "경쟁 축 변화 요인 미발견 (안정적)"
	}
	return result
}

// checkMaintenanceCost measures (R&D + SG&A) over revenue; above 40% the
// moat is considered too expensive to maintain.
func (c *Checker) checkMaintenanceCost(financials *models.FinancialRecord) MaintenanceCostResult {
	result := MaintenanceCostResult{}

	if financials == nil || financials.Revenue <= 0 {
		result.Reason = "매출 데이터 없음"
		return result
	}

	if financials.RnDExpenses > 0 {
		result.RnDRatio = float64(financials.RnDExpenses) / float64(financials.Revenue)
	}
	if financials.SGAExpenses > 0 {
		result.SGARatio = float64(financials.SGAExpenses) / float64(financials.Revenue)
	}
	result.MaintenanceRatio = result.RnDRatio + result.SGARatio

	switch {
	case result.MaintenanceRatio > excessiveCostRatio:
		result.Excessive = true
		result.Reason = fmt.Sprintf("유지비용 과다: R&D %.1f%% + 판관비 %.1f%% = %.1f%%",
			result.RnDRatio*100, result.SGARatio*100, result.MaintenanceRatio*100)
	case result.MaintenanceRatio > moderateCostRatio:
		result.Reason = fmt.Sprintf("유지비용 보통: R&D %.1f%% + 판관비 %.1f%% = %.1f%%",
			result.RnDRatio*100, result.SGARatio*100, result.MaintenanceRatio*100)
	default:
		result.Reason = fmt.Sprintf("유지비용 낮음: %.1f%%", result.MaintenanceRatio*100)
	}
	return result
}

func latestOf(multiYear map[string]*models.FinancialRecord) (string, *models.FinancialRecord) {
	if len(multiYear) == 0 {
		return "", nil
	}
	years := sortedYears(multiYear)
	latest := years[len(years)-1]
	return latest, multiYear[latest]
}

func sortedYears(m map[string]*models.FinancialRecord) []string {
	years := make([]string, 0, len(m))
	for y := range m {
		years = append(years, y)
	}
	sort.Strings(years)
	return years
}

func capStrings(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

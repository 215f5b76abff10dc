package evidence

import (
	"fmt"
	"sort"
	"strings"

	"stock_moat/pkg/models"
)

const (
	contextBefore      = 80  // runes of context kept before a keyword match
	contextAfter       = 120 // runes kept after
	maxPerTypeSection  = 2
	dedupKeyLen        = 60
	minSectionLength   = 10
)

// Financial-ratio evidence thresholds.
const (
	highMarginThreshold   = 0.15
	largeCapRevenue       = 10_000_000_000_000 // 10조
	midCapRevenue         = 1_000_000_000_000  // 1조
	rndRatioThreshold     = 0.05
)

// Extractor mines disclosure sections for moat evidence using the category
// keyword sets, suppresses known false positives via anti-patterns and noise
// contexts, and grades each surviving match by specificity.
type Extractor struct{}

// NewExtractor creates the rule-based extraction engine.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract scans every non-empty report section for all ten moat categories
// and synthesizes financial-ratio evidence when figures are supplied.
// Absence of evidence is a valid terminal state: the result may be empty but
// is never nil.
func (x *Extractor) Extract(company, ticker string, reportSections map[string]string, financials *models.FinancialRecord) *models.EvidenceCollection {
	collection := &models.EvidenceCollection{Company: company, Ticker: ticker}

	for sectionName, text := range reportSections {
		if len([]rune(text)) < minSectionLength {
			continue
		}
		source, ok := sectionSourceMap[sectionName]
		if !ok {
			source = "사업보고서 - " + sectionName
		}
		for _, moatType := range AllMoatTypes {
			collection.Evidences = append(collection.Evidences, x.extractTextEvidence(text, moatType, source)...)
		}
	}

	if financials != nil {
		collection.Evidences = append(collection.Evidences, x.extractFinancialEvidence(financials)...)
	}

	return collection
}

// extractTextEvidence collects evidence for one moat type from one section:
// match keywords, cut a bounded context window, drop anti-pattern and noise
// hits, grade quality, then dedup by leading substring keeping the highest
// quality, capped at two items.
func (x *Extractor) extractTextEvidence(text, moatType, source string) []models.Evidence {
	patterns, ok := moatPatterns[moatType]
	if !ok {
		return nil
	}

	var found []models.Evidence
	runes := []rune(text)
	runeIdx := buildRuneIndex(text)

	for _, keyword := range patterns.keywords {
		for _, loc := range keyword.FindAllStringIndex(text, -1) {
			context := contextWindow(runes, runeIdx, loc[0], loc[1])

			blocked := false
			for _, anti := range patterns.antiPatterns {
				if anti.MatchString(context) {
					blocked = true
					break
				}
			}
			if blocked || isNoiseContext(context) {
				continue
			}

			quality := calculateQuality(context)
			hasNumbers := numericMarkerRe.MatchString(context)
			confidence := models.EvidenceEstimated
			if hasNumbers || quality >= 1.5 {
				confidence = models.EvidenceConfirmed
			}

			found = append(found, models.Evidence{
				MoatType:     moatType,
				EvidenceText: context,
				Source:       source,
				Confidence:   confidence,
				HasNumbers:   hasNumbers,
				QualityScore: quality,
			})
		}
	}

	return dedupEvidence(found)
}

// dedupEvidence keeps, per leading-substring key, only the highest-quality
// item, and caps the output at maxPerTypeSection.
func dedupEvidence(items []models.Evidence) []models.Evidence {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].QualityScore > items[j].QualityScore
	})

	seen := make(map[string]bool)
	var unique []models.Evidence
	for _, ev := range items {
		key := leadingRunes(ev.EvidenceText, dedupKeyLen)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, ev)
		if len(unique) >= maxPerTypeSection {
			break
		}
	}
	return unique
}

// calculateQuality grades a context window: 0.5 base; 1.0 for a substantive
// Korean description; 1.5 with a quantified magnitude; 2.0 with an added
// comparative/superlative marker. The ladder only moves up as cues stack.
func calculateQuality(context string) float64 {
	score := 0.5

	koreanChars := len(hangulRe.FindAllString(context, -1))
	hasNumbers := numericMarkerRe.MatchString(context)

	if koreanChars > 30 && len([]rune(context)) > 80 {
		score = 1.0
	}
	if hasNumbers && koreanChars > 20 {
		score = 1.5
	}
	if hasNumbers && comparativeRe.MatchString(context) {
		score = 2.0
	}

	return score
}

func isNoiseContext(context string) bool {
	for _, pat := range noisePatterns {
		if pat.MatchString(context) {
			return true
		}
	}
	return false
}

// extractFinancialEvidence synthesizes up to three evidence items from
// financial ratios: strong operating margin as cost leadership, large
// revenue as economies of scale, and heavy R&D as patent/process strength.
func (x *Extractor) extractFinancialEvidence(fin *models.FinancialRecord) []models.Evidence {
	var out []models.Evidence

	if margin, ok := fin.Margin(); ok && margin > highMarginThreshold {
		out = append(out, models.Evidence{
			MoatType:     MoatCostAdvantage,
			EvidenceText: fmt.Sprintf("영업이익률 %.1f%% (업종 평균 대비 높음)", margin*100),
			Source:       "재무제표",
			Confidence:   models.EvidenceConfirmed,
			HasNumbers:   true,
			QualityScore: 1.5,
		})
	}

	if fin.Revenue >= largeCapRevenue {
		out = append(out, models.Evidence{
			MoatType:     MoatScaleEconomy,
			EvidenceText: fmt.Sprintf("매출 %.1f조원 (대형 기업)", float64(fin.Revenue)/1_000_000_000_000),
			Source:       "재무제표",
			Confidence:   models.EvidenceConfirmed,
			HasNumbers:   true,
			QualityScore: 1.5,
		})
	} else if fin.Revenue >= midCapRevenue {
		out = append(out, models.Evidence{
			MoatType:     MoatScaleEconomy,
			EvidenceText: fmt.Sprintf("매출 %.1f조원 (중형 기업)", float64(fin.Revenue)/1_000_000_000_000),
			Source:       "재무제표",
			Confidence:   models.EvidenceEstimated,
			HasNumbers:   true,
			QualityScore: 0.5,
		})
	}

	if fin.RnDExpenses > 0 && fin.Revenue > 0 {
		rndPct := float64(fin.RnDExpenses) / float64(fin.Revenue)
		if rndPct > rndRatioThreshold {
			out = append(out, models.Evidence{
				MoatType:     MoatPatentProcess,
				EvidenceText: fmt.Sprintf("R&D 투자 매출 대비 %.1f%% (%.0f억원)", rndPct*100, float64(fin.RnDExpenses)/100_000_000),
				Source:       "재무제표",
				Confidence:   models.EvidenceConfirmed,
				HasNumbers:   true,
				QualityScore: 1.0,
			})
		}
	}

	return out
}

// buildRuneIndex maps byte offsets to rune offsets for context windowing.
func buildRuneIndex(s string) map[int]int {
	idx := make(map[int]int, len(s))
	r := 0
	for b := range s {
		idx[b] = r
		r++
	}
	idx[len(s)] = r
	return idx
}

// contextWindow cuts a rune-safe window around a byte-indexed match.
func contextWindow(runes []rune, runeIdx map[int]int, byteStart, byteEnd int) string {
	start := runeIdx[byteStart] - contextBefore
	if start < 0 {
		start = 0
	}
	end := runeIdx[byteEnd] + contextAfter
	if end > len(runes) {
		end = len(runes)
	}
	return strings.TrimSpace(string(runes[start:end]))
}

func leadingRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

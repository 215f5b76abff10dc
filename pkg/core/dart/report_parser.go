// Package dart turns raw DART business-report text into the fixed section
// map the evidence extractor consumes. Section titles appear both in the
// table of contents and at the section body, so extraction uses a longest
// match strategy: every title occurrence is expanded to a candidate body and
// the longest candidate wins, which naturally discards TOC entries.
package dart

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MaxSectionLength caps one extracted section, in runes. The business
// overview gets triple the cap since it subsumes several subsections.
const MaxSectionLength = 15000

const minBodyLength = 50

type sectionSpec struct {
	name     string
	patterns []*regexp.Regexp
}

func compilePatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile("(?i)"+e))
	}
	return out
}

// The seven target sections, in output order. Patterns are tried most
// specific first.
var targetSections = []sectionSpec{
	{"business_overview", compilePatterns(
		`사업의\s*내용`,
		`II\.\s*사업의\s*내용`,
		`1\.\s*사업의\s*개요`,
		`사업\s*개요`,
	)},
	{"major_products", compilePatterns(
		`주요\s*제품\s*및\s*서비스`,
		`주요제품등의\s*현황`,
		`주요\s*제품\s*등의`,
		`주요\s*제품`,
		`주요\s*서비스`,
	)},
	{"competition", compilePatterns(
		`산업의\s*특성`,
		`경쟁\s*상황`,
		`경쟁\s*현황`,
		`시장\s*현황`,
		`경쟁\s*요소`,
		`경쟁요소`,
		`시장\s*점유율`,
		`시장점유율`,
	)},
	{"rnd", compilePatterns(
		`연구개발\s*활동`,
		`연구개발활동`,
		`연구\s*및\s*개발`,
		`연구\s*개발`,
	)},
	{"risk_factors", compilePatterns(
		`위험\s*요인`,
		`사업의\s*위험`,
		`사업\s*위험`,
		`투자\s*위험`,
		`위험관리`,
	)},
	{"facilities", compilePatterns(
		`생산\s*설비`,
		`원재료\s*및\s*생산설비`,
		`생산\s*능력`,
		`생산능력`,
		`설비\s*현황`,
	)},
	{"major_customers", compilePatterns(
		`주요\s*고객`,
		`매출처`,
		`거래처`,
		`주요\s*매출처`,
	)},
}

// Boundaries that terminate any section body.
var majorDelimiters = compilePatterns(
	`III\.\s`,
	`IV\.\s`,
	`V\.\s`,
	`\[감사보고서\]`,
	`\[재무제표\]`,
	`재무에\s*관한\s*사항`,
	`이사의\s*경영진단`,
)

// Numbered subsection headings that end a non-overview section early.
var subSectionRe = regexp.MustCompile(`\n\s*(?:\d+\.|[가-힣]\.)\s*(?:주요|경쟁|연구|위험|생산|매출|원재료)`)

var (
	entityRe   = regexp.MustCompile(`&[a-zA-Z]+;|&#\d+;`)
	hspaceRe   = regexp.MustCompile(`[ \t]+`)
	blanklineRe = regexp.MustCompile(`\n{3,}`)
)

// ParseQuality summarizes how much of a report the parser recovered.
type ParseQuality struct {
	TotalSectionsFound    int      `json:"total_sections_found"`
	TotalSectionsPossible int      `json:"total_sections_possible"`
	Coverage              float64  `json:"coverage"`
	TotalTextLength       int      `json:"total_text_length"`
	SectionsFound         []string `json:"sections_found"`
	SectionsMissing       []string `json:"sections_missing"`
	ParsedSuccessfully    bool     `json:"parsed_successfully"`
}

// ReportParser extracts the target sections from business-report text.
type ReportParser struct{}

func NewReportParser() *ReportParser {
	return &ReportParser{}
}

// StripMarkup removes residual viewer HTML from report text fetched through
// the DART document viewer. Plain text passes through unchanged.
func StripMarkup(raw string) string {
	if !strings.Contains(raw, "<") {
		return raw
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return raw
	}
	doc.Find("script, style").Remove()
	return doc.Text()
}

// ParseReport splits report text into the target sections. Returns an empty
// map for text too short to contain a report.
func (p *ReportParser) ParseReport(text string) map[string]string {
	runes := []rune(text)
	if len(runes) < 100 {
		return map[string]string{}
	}
	byteToRune := buildByteToRune(text)

	sections := make(map[string]string)
	for _, spec := range targetSections {
		if body := extractSection(text, runes, byteToRune, spec); body != "" {
			sections[spec.name] = cleanText(body)
		}
	}
	return sections
}

// extractSection expands every title match to a candidate body and keeps the
// longest one. Title occurrences preceded by a quote or a cross-reference
// marker are skipped.
func extractSection(text string, runes []rune, byteToRune []int, spec sectionSpec) string {
	var best string
	var bestLen int

	for _, pattern := range spec.patterns {
		for _, loc := range pattern.FindAllStringIndex(text, -1) {
			start := byteToRune[loc[0]]
			end := byteToRune[loc[1]]

			before := string(runes[max(0, start-20):start])
			if strings.ContainsAny(before, "'‘’") || strings.Contains(before, "참고") {
				continue
			}

			body := strings.TrimSpace(extractUntilBoundary(runes, end, spec.name))
			if n := len([]rune(body)); n > minBodyLength && n > bestLen {
				best = body
				bestLen = n
			}
		}
	}
	return best
}

// extractUntilBoundary slices from startRune to the nearest major delimiter
// or subsection heading, within the per-section length cap.
func extractUntilBoundary(runes []rune, startRune int, sectionName string) string {
	rem := runes[startRune:]
	maxLen := MaxSectionLength
	if sectionName == "business_overview" {
		maxLen *= 3
	}
	if maxLen > len(rem) {
		maxLen = len(rem)
	}

	window := string(rem[:maxLen])
	windowIdx := buildByteToRune(window)

	endPos := maxLen
	for _, delim := range majorDelimiters {
		if loc := delim.FindStringIndex(window); loc != nil {
			if r := windowIdx[loc[0]]; r > 100 && r < endPos {
				endPos = r
			}
		}
	}

	if sectionName != "business_overview" && len(rem) > 200 {
		sub := string(rem[200:maxLen])
		if loc := subSectionRe.FindStringIndex(sub); loc != nil {
			subIdx := buildByteToRune(sub)
			if candidate := 200 + subIdx[loc[0]]; candidate > 100 && candidate < endPos {
				endPos = candidate
			}
		}
	}

	return string(rem[:endPos])
}

// cleanText normalizes whitespace and stray entities, then trims to the
// section cap at a sentence boundary when one is close enough.
func cleanText(text string) string {
	text = entityRe.ReplaceAllString(text, " ")
	text = hspaceRe.ReplaceAllString(text, " ")
	text = blanklineRe.ReplaceAllString(text, "\n\n")

	runes := []rune(text)
	if len(runes) > MaxSectionLength {
		runes = runes[:MaxSectionLength]
		lastPeriod := -1
		for i := len(runes) - 1; i >= 0; i-- {
			if runes[i] == '.' {
				lastPeriod = i
				break
			}
		}
		if float64(lastPeriod) > float64(MaxSectionLength)*0.8 {
			runes = runes[:lastPeriod+1]
		}
		text = string(runes)
	}
	return strings.TrimSpace(text)
}

// GetParseQuality reports coverage metrics for an extracted section map.
func (p *ReportParser) GetParseQuality(sections map[string]string) ParseQuality {
	q := ParseQuality{
		TotalSectionsFound:    len(sections),
		TotalSectionsPossible: len(targetSections),
		ParsedSuccessfully:    len(sections) >= 2,
	}
	q.Coverage = float64(q.TotalSectionsFound) / float64(q.TotalSectionsPossible)
	for _, spec := range targetSections {
		if body, ok := sections[spec.name]; ok {
			q.SectionsFound = append(q.SectionsFound, spec.name)
			q.TotalTextLength += len([]rune(body))
		} else {
			q.SectionsMissing = append(q.SectionsMissing, spec.name)
		}
	}
	return q
}

// buildByteToRune maps each rune-start byte offset to its rune offset.
// Regexp match positions are byte offsets; section arithmetic is rune based.
func buildByteToRune(s string) []int {
	idx := make([]int, len(s)+1)
	n := 0
	for i := range s {
		idx[i] = n
		n++
	}
	idx[len(s)] = n
	return idx
}

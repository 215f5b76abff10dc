// Package localdata backs every pipeline collaborator interface with a JSON
// fixture file, so evaluations can run from pre-fetched disclosures without
// live market-data or DART connectivity.
package localdata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"stock_moat/pkg/models"
)

// Fixture holds every piece of pre-fetched data for one ticker.
type Fixture struct {
	Ticker   string `json:"ticker"`
	Company  string `json:"company"`
	CorpCode string `json:"corp_code"`

	// Oracle layer. Nil TTM means the primary source is disconnected for
	// this ticker and the resolver falls through to the DART layers.
	TTM   *models.TTMFinancials `json:"ttm,omitempty"`
	Trend []models.TrendPeriod  `json:"trend,omitempty"`

	// DART layers. Quarterly is keyed "YYYY/reportCode", Annual by year.
	Quarterly map[string]*models.FinancialRecord `json:"quarterly,omitempty"`
	Annual    map[string]*models.FinancialRecord `json:"annual,omitempty"`

	// Business report, inline or as a path relative to the fixture file.
	Report     string `json:"report,omitempty"`
	ReportFile string `json:"report_file,omitempty"`
}

// Source serves fixtures for many tickers. It implements the oracle, DART,
// corp-code and report-fetch interfaces consumed by the pipeline.
type Source struct {
	dir       string
	byTicker  map[string]*Fixture
	byCorp    map[string]*Fixture
	connected bool
}

// Load reads a fixture file: either a single Fixture object or an array.
func Load(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}

	var fixtures []*Fixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		var single Fixture
		if err2 := json.Unmarshal(data, &single); err2 != nil {
			return nil, fmt.Errorf("failed to parse fixture file %s: %w", path, err)
		}
		fixtures = []*Fixture{&single}
	}

	s := &Source{
		dir:      filepath.Dir(path),
		byTicker: make(map[string]*Fixture, len(fixtures)),
		byCorp:   make(map[string]*Fixture, len(fixtures)),
	}
	for _, f := range fixtures {
		if f.Ticker == "" {
			return nil, fmt.Errorf("fixture entry missing ticker in %s", path)
		}
		s.byTicker[f.Ticker] = f
		if f.CorpCode != "" {
			s.byCorp[f.CorpCode] = f
		}
		if f.TTM != nil {
			s.connected = true
		}
	}
	return s, nil
}

// Fixtures returns all loaded fixtures, for batch drivers.
func (s *Source) Fixtures() []*Fixture {
	out := make([]*Fixture, 0, len(s.byTicker))
	for _, f := range s.byTicker {
		out = append(out, f)
	}
	return out
}

// IsConnected reports whether any fixture carries oracle TTM data.
func (s *Source) IsConnected() bool {
	return s.connected
}

// GetTTM serves the oracle layer.
func (s *Source) GetTTM(_ context.Context, ticker string) (*models.TTMFinancials, error) {
	f := s.byTicker[ticker]
	if f == nil || f.TTM == nil {
		return nil, nil
	}
	return f.TTM, nil
}

// GetTrend serves the oracle trend series, newest first, capped at years.
func (s *Source) GetTrend(_ context.Context, ticker string, years int) ([]models.TrendPeriod, error) {
	f := s.byTicker[ticker]
	if f == nil || len(f.Trend) == 0 {
		return nil, nil
	}
	trend := f.Trend
	if years > 0 && len(trend) > years {
		trend = trend[:years]
	}
	return trend, nil
}

// GetFinancialStatements serves the DART quarterly layer.
func (s *Source) GetFinancialStatements(_ context.Context, corpCode, year, reportCode string) (*models.FinancialRecord, error) {
	f := s.byCorp[corpCode]
	if f == nil {
		return nil, nil
	}
	return f.Quarterly[year+"/"+reportCode], nil
}

// GetMultiYearFinancials serves the DART annual layer.
func (s *Source) GetMultiYearFinancials(_ context.Context, corpCode string, years []string) (map[string]*models.FinancialRecord, error) {
	f := s.byCorp[corpCode]
	if f == nil || len(f.Annual) == 0 {
		return nil, nil
	}
	out := make(map[string]*models.FinancialRecord)
	for _, y := range years {
		if rec := f.Annual[y]; rec != nil {
			out[y] = rec
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// LookupCorpCode resolves a ticker to its fixture's corp code.
func (s *Source) LookupCorpCode(_ context.Context, ticker string) (string, error) {
	f := s.byTicker[ticker]
	if f == nil || f.CorpCode == "" {
		return "", fmt.Errorf("corp code not found for ticker %s", ticker)
	}
	return f.CorpCode, nil
}

// FetchReport returns the business-report text for an entity code.
func (s *Source) FetchReport(_ context.Context, corpCode string) (string, error) {
	f := s.byCorp[corpCode]
	if f == nil {
		return "", fmt.Errorf("no report fixture for corp code %s", corpCode)
	}
	if f.Report != "" {
		return f.Report, nil
	}
	if f.ReportFile != "" {
		data, err := os.ReadFile(filepath.Join(s.dir, f.ReportFile))
		if err != nil {
			return "", fmt.Errorf("failed to read report file: %w", err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("fixture for %s has no report", corpCode)
}

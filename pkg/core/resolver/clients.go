package resolver

import (
	"context"

	"stock_moat/pkg/models"
)

// DART report codes, in the priority order the quarterly reconstruction scans them.
const (
	ReportQ3Cumulative   = "11014"
	ReportHalfCumulative = "11012"
	ReportQ1Cumulative   = "11013"
	ReportAnnual         = "11011"
)

// OracleClient is the primary structured-financials source (layer 1).
// Implementations wrap a market-data terminal or internal warehouse; the
// resolver only cares about connectivity and the two lookups.
type OracleClient interface {
	IsConnected() bool
	GetTTM(ctx context.Context, ticker string) (*models.TTMFinancials, error)
	GetTrend(ctx context.Context, ticker string, years int) ([]models.TrendPeriod, error)
}

// DartClient is the secondary disclosure-database source (layers 2 and 3).
type DartClient interface {
	// GetFinancialStatements returns the cumulative figures for one year and
	// report code, or nil when the filing does not exist.
	GetFinancialStatements(ctx context.Context, corpCode, year, reportCode string) (*models.FinancialRecord, error)
	// GetMultiYearFinancials returns annual records keyed by year ("2023").
	GetMultiYearFinancials(ctx context.Context, corpCode string, years []string) (map[string]*models.FinancialRecord, error)
}

// CorpCodeLookup resolves a ticker to the disclosure database's entity code.
// The full mapping is large and mostly static, so lookups go through the
// process-scoped CorpCodeCache.
type CorpCodeLookup interface {
	LookupCorpCode(ctx context.Context, ticker string) (string, error)
}

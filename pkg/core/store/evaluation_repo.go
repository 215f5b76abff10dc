package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stock_moat/pkg/core/moat"
	"stock_moat/pkg/core/sustainability"
	"stock_moat/pkg/core/verify"
	"stock_moat/pkg/models"
)

// EvaluationRecord is the full per-ticker result persisted after a pipeline
// run. One JSONB blob keeps the schema flexible while scoring rules evolve.
type EvaluationRecord struct {
	RunID               string                      `json:"run_id"`
	Ticker              string                      `json:"ticker"`
	Company             string                      `json:"company"`
	TTM                 *models.TTMFinancials       `json:"ttm,omitempty"`
	Trend               *models.GrowthTrend         `json:"trend,omitempty"`
	MoatEval            *moat.Evaluation            `json:"moat_eval,omitempty"`
	Sustainability      *sustainability.CheckResult `json:"sustainability,omitempty"`
	InvestmentScore     int                         `json:"investment_score"`
	InvestmentDetail    string                      `json:"investment_detail"`
	Verification        *verify.VerificationResult  `json:"verification,omitempty"`
	SustainabilityNotes string                      `json:"sustainability_notes,omitempty"`
	AIReview            string                      `json:"ai_review,omitempty"`
	ReportHTML          string                      `json:"report_html,omitempty"`
	EvaluatedAt         time.Time                   `json:"evaluated_at"`
}

// EvaluationRepo stores evaluation records. Hybrid: Postgres when a pool is
// configured, JSON files under fileDir otherwise.
//
// Schema assumption:
//
//	CREATE TABLE IF NOT EXISTS moat_evaluations (
//	  ticker TEXT PRIMARY KEY,
//	  run_id UUID,
//	  moat_strength INT,
//	  investment_score INT,
//	  evaluation_json JSONB,
//	  updated_at TIMESTAMPTZ
//	);
type EvaluationRepo struct {
	pool    *pgxpool.Pool
	fileDir string
}

// NewEvaluationRepo creates a repository. A nil pool falls back to the file
// store; an empty dir then defaults to .cache/moat/evaluations.
func NewEvaluationRepo(pool *pgxpool.Pool, dir string) *EvaluationRepo {
	if pool == nil && dir == "" {
		dir = filepath.Join(".cache", "moat", "evaluations")
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Printf("[WARN] evaluation cache dir: %v\n", err)
		}
	}
	return &EvaluationRepo{pool: pool, fileDir: dir}
}

// Save upserts the record by ticker. A fresh run ID is stamped when missing.
func (r *EvaluationRepo) Save(ctx context.Context, rec *EvaluationRecord) error {
	if rec.Ticker == "" {
		return fmt.Errorf("evaluation record missing ticker")
	}
	if rec.RunID == "" {
		rec.RunID = uuid.New().String()
	}
	if rec.EvaluatedAt.IsZero() {
		rec.EvaluatedAt = time.Now()
	}

	jsonData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation: %w", err)
	}

	if r.pool != nil {
		strength := 0
		if rec.MoatEval != nil {
			strength = rec.MoatEval.MoatStrength
		}
		query := `
			INSERT INTO moat_evaluations (ticker, run_id, moat_strength, investment_score, evaluation_json, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (ticker)
			DO UPDATE SET
				run_id = EXCLUDED.run_id,
				moat_strength = EXCLUDED.moat_strength,
				investment_score = EXCLUDED.investment_score,
				evaluation_json = EXCLUDED.evaluation_json,
				updated_at = EXCLUDED.updated_at;
		`
		_, err = r.pool.Exec(ctx, query,
			rec.Ticker, rec.RunID, strength, rec.InvestmentScore, jsonData, rec.EvaluatedAt)
		if err != nil {
			return fmt.Errorf("failed to save evaluation: %w", err)
		}
		return nil
	}

	if r.fileDir != "" {
		pretty, _ := json.MarshalIndent(rec, "", "  ")
		path := r.tickerPath(rec.Ticker)
		if err := os.WriteFile(path, pretty, 0644); err != nil {
			return fmt.Errorf("failed to write evaluation file: %w", err)
		}
	}
	return nil
}

// Load retrieves the latest record for a ticker, or nil when none exists.
func (r *EvaluationRepo) Load(ctx context.Context, ticker string) (*EvaluationRecord, error) {
	if r.pool != nil {
		var jsonData []byte
		err := r.pool.QueryRow(ctx,
			`SELECT evaluation_json FROM moat_evaluations WHERE ticker = $1`, ticker,
		).Scan(&jsonData)
		if err != nil {
			if err == pgx.ErrNoRows {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to load evaluation: %w", err)
		}
		var rec EvaluationRecord
		if err := json.Unmarshal(jsonData, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal evaluation: %w", err)
		}
		return &rec, nil
	}

	if r.fileDir != "" {
		data, err := os.ReadFile(r.tickerPath(ticker))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to read evaluation file: %w", err)
		}
		var rec EvaluationRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal evaluation file: %w", err)
		}
		return &rec, nil
	}

	return nil, nil
}

func (r *EvaluationRepo) tickerPath(ticker string) string {
	return filepath.Join(r.fileDir, ticker+".json")
}

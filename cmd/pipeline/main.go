package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"stock_moat/pkg/core/llm"
	"stock_moat/pkg/core/localdata"
	"stock_moat/pkg/core/pipeline"
	"stock_moat/pkg/core/scoring"
	"stock_moat/pkg/core/store"
	"stock_moat/pkg/core/verify"
	"stock_moat/pkg/models"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, assuming environment variables are set.")
	}

	var (
		ticker    = flag.String("ticker", "", "ticker to evaluate (e.g. 005930)")
		dataPath  = flag.String("data", "testdata/fixtures.json", "path to the pre-fetched data fixture")
		asOf      = flag.String("asof", "", "price date YYYY-MM-DD (default: today)")
		cfgPath   = flag.String("config", "config/growth_thresholds.yaml", "growth thresholds config")
		marketCap = flag.Int64("marketcap", 0, "market cap in KRW, enables the valuation multiple")
		sector    = flag.String("sector", "", "GICS sector for growth thresholds")
		cacheDir  = flag.String("cache", "", "evaluation cache dir when no database is configured")
	)
	flag.Parse()

	if *ticker == "" {
		log.Fatal("Error: -ticker is required.")
	}

	ctx := context.Background()

	source, err := localdata.Load(*dataPath)
	if err != nil {
		log.Fatalf("Error loading data fixture: %v", err)
	}

	if os.Getenv("DATABASE_URL") != "" {
		if err := store.InitDB(ctx); err != nil {
			log.Printf("Warning: database unavailable, using file cache: %v", err)
		}
	}
	repo := store.NewEvaluationRepo(store.GetPool(), *cacheDir)

	verifier := verify.NewVerifier(os.Getenv("OPENAI_API_KEY"))
	if !verifier.Enabled() && os.Getenv("GEMINI_API_KEY") != "" {
		verifier = verify.NewVerifierWithProvider(&llm.GeminiProvider{Model: os.Getenv("GEMINI_MODEL")})
	}
	if !verifier.Enabled() {
		fmt.Println("[INFO] OPENAI_API_KEY/GEMINI_API_KEY 미설정: AI 검증 생략")
	}

	orch := pipeline.New(
		source, source, source, source,
		scoring.LoadGrowthConfig(*cfgPath),
		verifier, repo,
	)

	company := *ticker
	for _, f := range source.Fixtures() {
		if f.Ticker == *ticker && f.Company != "" {
			company = f.Company
		}
	}

	record, err := orch.Run(ctx, pipeline.Request{
		Ticker:         *ticker,
		Company:        company,
		AsOfDate:       *asOf,
		Classification: models.Classification{GICSSector: *sector},
		MarketCap:      *marketCap,
	})
	if err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}

	fmt.Println()
	if record.MoatEval != nil {
		fmt.Println(record.MoatEval.MoatDesc)
		fmt.Println()
	}
	fmt.Println(record.SustainabilityNotes)
	fmt.Printf("\n투자 가치: %d/5\n%s\n", record.InvestmentScore, record.InvestmentDetail)
	if record.AIReview != "" {
		fmt.Println()
		fmt.Println(record.AIReview)
	}
}

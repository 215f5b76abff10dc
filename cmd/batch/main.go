package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/joho/godotenv"

	"stock_moat/pkg/core/llm"
	"stock_moat/pkg/core/localdata"
	"stock_moat/pkg/core/pipeline"
	"stock_moat/pkg/core/scoring"
	"stock_moat/pkg/core/store"
	"stock_moat/pkg/core/verify"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, assuming environment variables are set.")
	}

	var (
		dataPath = flag.String("data", "testdata/fixtures.json", "path to the pre-fetched data fixture")
		asOf     = flag.String("asof", "", "price date YYYY-MM-DD (default: today)")
		cfgPath  = flag.String("config", "config/growth_thresholds.yaml", "growth thresholds config")
		workers  = flag.Int("workers", 4, "concurrent ticker evaluations")
		cacheDir = flag.String("cache", "", "evaluation cache dir when no database is configured")
	)
	flag.Parse()

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

	orch := pipeline.New(
		source, source, source, source,
		scoring.LoadGrowthConfig(*cfgPath),
		verifier,
		repo,
	)

	fixtures := source.Fixtures()
	sort.Slice(fixtures, func(i, j int) bool { return fixtures[i].Ticker < fixtures[j].Ticker })

	reqs := make([]pipeline.Request, 0, len(fixtures))
	for _, f := range fixtures {
		company := f.Company
		if company == "" {
			company = f.Ticker
		}
		reqs = append(reqs, pipeline.Request{
			Ticker:   f.Ticker,
			Company:  company,
			AsOfDate: *asOf,
		})
	}
	if len(reqs) == 0 {
		log.Fatal("Error: fixture file contains no tickers.")
	}

	fmt.Printf("[INFO] %d개 종목 배치 평가 (워커 %d)\n", len(reqs), *workers)
	results := orch.RunBatch(ctx, reqs, *workers)

	succeeded := 0
	for _, res := range results {
		if res.Err != nil {
			fmt.Printf("  FAIL %s: %v\n", res.Ticker, res.Err)
			continue
		}
		succeeded++
		strength := 0
		if res.Record.MoatEval != nil {
			strength = res.Record.MoatEval.MoatStrength
		}
		fmt.Printf("  OK   %s: 해자 %d/5, 투자가치 %d/5\n", res.Ticker, strength, res.Record.InvestmentScore)
	}
	fmt.Printf("[INFO] 완료: %d/%d 성공\n", succeeded, len(results))

	if succeeded < len(results) {
		os.Exit(1)
	}
}

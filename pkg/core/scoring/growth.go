package scoring

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v2"

	"stock_moat/pkg/models"
)

// GrowthConfig tunes the growth scorer per sector. Operators edit the yaml
// file; code never hard-codes sector judgments beyond the defaults below.
type GrowthConfig struct {
	Thresholds       map[string]float64 `yaml:"thresholds"`        // GICS sector -> CAGR threshold
	CyclicalSectors  []string           `yaml:"cyclical_sectors"`  // sectors eligible for the mega-cap exception
	MegaCapThreshold int64              `yaml:"mega_cap_threshold"` // TTM revenue cutoff, KRW
	OneTimeSpikeRatio float64           `yaml:"one_time_spike_ratio"`
}

// DefaultGrowthConfig is the built-in fallback when no config file is
// reachable: a single 10% threshold, 10조 mega-cap cutoff, 3x spike ratio.
func DefaultGrowthConfig() GrowthConfig {
	return GrowthConfig{
		Thresholds:        map[string]float64{"default": 0.10},
		MegaCapThreshold:  10_000_000_000_000,
		OneTimeSpikeRatio: 3.0,
	}
}

// LoadGrowthConfig reads the thresholds yaml. Any load or parse failure
// falls back to the defaults; configuration trouble is never fatal.
func LoadGrowthConfig(path string) GrowthConfig {
	cfg := DefaultGrowthConfig()
	if path == "" {
		return cfg
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("[WARN] growth config %s unreadable, using defaults: %v\n", path, err)
		return cfg
	}

	var loaded GrowthConfig
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		fmt.Printf("[WARN] growth config %s malformed, using defaults: %v\n", path, err)
		return cfg
	}

	if len(loaded.Thresholds) > 0 {
		cfg.Thresholds = loaded.Thresholds
	}
	if len(loaded.CyclicalSectors) > 0 {
		cfg.CyclicalSectors = loaded.CyclicalSectors
	}
	if loaded.MegaCapThreshold > 0 {
		cfg.MegaCapThreshold = loaded.MegaCapThreshold
	}
	if loaded.OneTimeSpikeRatio > 0 {
		cfg.OneTimeSpikeRatio = loaded.OneTimeSpikeRatio
	}
	return cfg
}

// GrowthScorer converts a multi-period trend into a -1/0/+1 moat adjustment
// using sector-calibrated thresholds.
type GrowthScorer struct {
	cfg GrowthConfig
}

// NewGrowthScorer creates a scorer with explicit configuration.
func NewGrowthScorer(cfg GrowthConfig) *GrowthScorer {
	if cfg.Thresholds == nil {
		cfg = DefaultGrowthConfig()
	}
	if cfg.OneTimeSpikeRatio <= 0 {
		cfg.OneTimeSpikeRatio = 3.0
	}
	return &GrowthScorer{cfg: cfg}
}

// BuildTrend derives CAGR, margin delta, turnaround and one-time-spike flags
// from a newest-first period series. With fewer than two periods the derived
// fields stay empty (insufficient data).
func (s *GrowthScorer) BuildTrend(periods []models.TrendPeriod) models.GrowthTrend {
	trend := models.GrowthTrend{Periods: periods}
	if len(periods) < 2 {
		return trend
	}

	latest := periods[0]
	oldest := periods[len(periods)-1]

	if latest.Revenue > 0 {
		if oldest.Revenue > 0 {
			nYears := float64(len(periods) - 1)
			ratio := float64(latest.Revenue) / float64(oldest.Revenue)
			trend.RevenueCAGR = math.Pow(ratio, 1/nYears) - 1
		} else {
			trend.RevenueCAGR = -1.0
		}
	}

	trend.OpMarginDelta = (latest.OpMargin - oldest.OpMargin) * 100 // %p

	prevOp := periods[1].OpIncome
	currOp := periods[0].OpIncome
	trend.IsTurnaround = prevOp < 0 && currOp > 0
	if prevOp > 0 && currOp > 0 {
		spike := float64(currOp) / float64(prevOp)
		trend.OneTimeFlag = spike >= s.cfg.OneTimeSpikeRatio
	}

	return trend
}

// Score evaluates the trend against the sector threshold in strict priority
// order: turnaround, one-time spike, quantitative+qualitative growth,
// quantity-only, structural decline (with the mega-cap cyclical exception),
// decline with held margins, then neutral. Every branch states its numeric
// basis in the reason.
func (s *GrowthScorer) Score(trend models.GrowthTrend, gicsSector string, ttmRevenue int64) (int, string) {
	if len(trend.Periods) < 2 {
		return 0, "데이터 부족"
	}

	if trend.IsTurnaround {
		return 1, "턴어라운드 (적자→흑자)"
	}
	if trend.OneTimeFlag {
		return 0, "일회성 이익 의심 (제외)"
	}

	threshold := s.threshold(gicsSector)
	cagr := trend.RevenueCAGR
	marginDelta := trend.OpMarginDelta

	if cagr >= threshold && marginDelta > 0 {
		return 1, fmt.Sprintf("성장 우수 (CAGR %.1f%% >= %.0f%%, 마진 +%.1f%%p)", cagr*100, threshold*100, marginDelta)
	}
	if cagr >= threshold {
		return 0, fmt.Sprintf("성장↑ 질↓ (CAGR %.1f%%, 마진 %+.1f%%p)", cagr*100, marginDelta)
	}
	if cagr < 0 && marginDelta < 0 {
		if ttmRevenue >= s.cfg.MegaCapThreshold && s.isCyclical(gicsSector) {
			return 0, fmt.Sprintf("사이클 예외 (초대형 %s)", gicsSector)
		}
		return -1, fmt.Sprintf("구조적 악화 (CAGR %.1f%%, 마진 %+.1f%%p)", cagr*100, marginDelta)
	}
	if cagr < 0 {
		return 0, fmt.Sprintf("매출↓ 마진유지 (CAGR %.1f%%)", cagr*100)
	}

	return 0, fmt.Sprintf("중립 (CAGR %.1f%%, 임계치 %.0f%%)", cagr*100, threshold*100)
}

func (s *GrowthScorer) threshold(gicsSector string) float64 {
	if v, ok := s.cfg.Thresholds[gicsSector]; ok {
		return v
	}
	if v, ok := s.cfg.Thresholds["default"]; ok {
		return v
	}
	return 0.10
}

func (s *GrowthScorer) isCyclical(gicsSector string) bool {
	for _, sec := range s.cfg.CyclicalSectors {
		if sec == gicsSector {
			return true
		}
	}
	return false
}

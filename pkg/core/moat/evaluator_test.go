package moat

import (
	"strings"
	"testing"

	"stock_moat/pkg/core/evidence"
	"stock_moat/pkg/models"
)

func confirmedEv(moatType string, quality float64, hasNumbers bool) models.Evidence {
	return models.Evidence{
		MoatType:     moatType,
		EvidenceText: "시장 점유율 45%를 확보하고 있습니다",
		Source:       "사업보고서 - 사업의 내용",
		Confidence:   models.EvidenceConfirmed,
		HasNumbers:   hasNumbers,
		QualityScore: quality,
	}
}

func estimatedEv(moatType string, quality float64) models.Evidence {
	return models.Evidence{
		MoatType:     moatType,
		EvidenceText: "관련 언급",
		Source:       "사업보고서 - 사업의 내용",
		Confidence:   models.EvidenceEstimated,
		QualityScore: quality,
	}
}

func TestScoreSingleTypeQualityThresholds(t *testing.T) {
	cases := []struct {
		name  string
		items []models.Evidence
		want  int
	}{
		{"quality 5.0 with full validation", []models.Evidence{
			confirmedEv(evidence.MoatBrand, 2.0, true),
			confirmedEv(evidence.MoatBrand, 2.0, true),
			confirmedEv(evidence.MoatBrand, 1.0, false),
		}, 5},
		{"quality 3.5", []models.Evidence{
			confirmedEv(evidence.MoatBrand, 2.0, true),
			confirmedEv(evidence.MoatBrand, 1.5, true),
		}, 4},
		{"quality 2.0", []models.Evidence{
			confirmedEv(evidence.MoatBrand, 2.0, true),
		}, 3},
		{"quality 0.5 estimated", []models.Evidence{
			estimatedEv(evidence.MoatBrand, 0.5),
		}, 2},
		{"no evidence", nil, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := scoreSingleType(evidence.MoatBrand, tc.items)
			if got.Score != tc.want {
				t.Errorf("Score = %d, want %d (reason: %s)", got.Score, tc.want, got.DowngradeReason)
			}
		})
	}
}

func TestValidateScoreFailSafe(t *testing.T) {
	t.Run("3 without confirmed evidence drops to 2", func(t *testing.T) {
		items := []models.Evidence{estimatedEv(evidence.MoatBrand, 1.0), estimatedEv(evidence.MoatBrand, 1.0)}
		score, reason := validateScore(3, items)
		if score != 2 {
			t.Errorf("score = %d, want 2", score)
		}
		if !strings.Contains(reason, "공시 확인 증거 없음") {
			t.Errorf("reason = %q", reason)
		}
	})

	t.Run("4 with one confirmed drops to 3", func(t *testing.T) {
		items := []models.Evidence{
			confirmedEv(evidence.MoatBrand, 2.0, true),
			estimatedEv(evidence.MoatBrand, 1.5),
		}
		score, reason := validateScore(4, items)
		if score != 3 {
			t.Errorf("score = %d, want 3", score)
		}
		if !strings.Contains(reason, "확인 증거 부족") {
			t.Errorf("reason = %q", reason)
		}
	})

	t.Run("4 without numbers drops to 3", func(t *testing.T) {
		items := []models.Evidence{
			confirmedEv(evidence.MoatBrand, 2.0, false),
			confirmedEv(evidence.MoatBrand, 1.5, false),
		}
		score, reason := validateScore(4, items)
		if score != 3 {
			t.Errorf("score = %d, want 3", score)
		}
		if !strings.Contains(reason, "수치 포함 증거 없음") {
			t.Errorf("reason = %q", reason)
		}
	})

	t.Run("2 passes without evidence checks", func(t *testing.T) {
		if score, _ := validateScore(2, nil); score != 2 {
			t.Errorf("score = %d, want 2", score)
		}
	})
}

func TestFinancialGatekeeper(t *testing.T) {
	roe := func(v float64) *float64 { return &v }

	cases := []struct {
		name      string
		fin       *models.FinancialRecord
		multiYear map[string]*models.FinancialRecord
		wantMax   int
	}{
		{"no financials", nil, nil, 5},
		{"healthy", &models.FinancialRecord{Revenue: 2_000_000_000_000, OperatingIncome: 300_000_000_000, ROE: roe(0.12)}, nil, 5},
		{"deficit", &models.FinancialRecord{Revenue: 2_000_000_000_000, OperatingIncome: -100_000_000_000}, nil, 2},
		{"deficit mega cap", &models.FinancialRecord{Revenue: 12_000_000_000_000, OperatingIncome: -500_000_000_000}, nil, 3},
		{"low margin", &models.FinancialRecord{Revenue: 2_000_000_000_000, OperatingIncome: 60_000_000_000}, nil, 2},
		{"low margin mega cap", &models.FinancialRecord{Revenue: 12_000_000_000_000, OperatingIncome: 360_000_000_000}, nil, 4},
		{"low ROE", &models.FinancialRecord{Revenue: 2_000_000_000_000, OperatingIncome: 300_000_000_000, ROE: roe(0.03)}, nil, 2},
		{
			"latest multi-year overrides deficit TTM",
			&models.FinancialRecord{Revenue: 2_000_000_000_000, OperatingIncome: -100_000_000_000},
			map[string]*models.FinancialRecord{
				"2022": {Revenue: 1_800_000_000_000, OperatingIncome: 200_000_000_000},
				"2023": {Revenue: 2_000_000_000_000, OperatingIncome: 250_000_000_000},
			},
			5,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, reasons := applyFinancialGatekeeper(tc.fin, tc.multiYear)
			if got != tc.wantMax {
				t.Errorf("maxScore = %d, want %d (reasons: %v)", got, tc.wantMax, reasons)
			}
		})
	}
}

func TestValidateMoatSize(t *testing.T) {
	small := &models.FinancialRecord{Revenue: 50_000_000_000, OperatingIncome: 10_000_000_000}

	if score, reason := validateMoatSize(evidence.MoatNetworkEffect, 4, small); score != 2 {
		t.Errorf("small-cap network effect = %d, want 2 (%s)", score, reason)
	}
	if score, _ := validateMoatSize(evidence.MoatBrand, 4, small); score != 4 {
		t.Errorf("brand is not scale dependent, got %d", score)
	}
	big := &models.FinancialRecord{Revenue: 500_000_000_000}
	if score, _ := validateMoatSize(evidence.MoatNetworkEffect, 4, big); score != 4 {
		t.Errorf("500억 revenue should not trigger the size cap, got %d", score)
	}
	if score, _ := validateMoatSize(evidence.MoatDataLearning, 2, small); score != 2 {
		t.Errorf("scores below 3 pass through, got %d", score)
	}
}

func TestFinalStrengthTopFive(t *testing.T) {
	mk := func(scores ...int) map[string]*TypeScore {
		m := make(map[string]*TypeScore)
		for i, s := range scores {
			m[evidence.AllMoatTypes[i]] = &TypeScore{MoatType: evidence.AllMoatTypes[i], Score: s}
		}
		return m
	}

	cases := []struct {
		name   string
		scores map[string]*TypeScore
		want   int
	}{
		{"five deep moats carry", mk(5, 5, 5, 5, 5, 1, 1, 1, 1, 1), 5},
		{"mixed rounds half up", mk(4, 4, 3, 1, 1, 1, 1, 1, 1, 1), 3},
		{"all weak", mk(1, 1, 1, 1, 1, 1, 1, 1, 1, 1), 1},
		{"empty", map[string]*TypeScore{}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := finalStrength(tc.scores); got != tc.want {
				t.Errorf("finalStrength = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestEvaluateDeficitCapsEvidenceScore(t *testing.T) {
	col := &models.EvidenceCollection{Company: "적자전자", Ticker: "000002"}
	col.Add(confirmedEv(evidence.MoatBrand, 2.0, true))
	col.Add(confirmedEv(evidence.MoatBrand, 2.0, true))

	fin := &models.FinancialRecord{Revenue: 500_000_000_000, OperatingIncome: -50_000_000_000}

	result := NewEvaluator().Evaluate("적자전자", "000002", col, fin, nil)

	brand := result.Scores[evidence.MoatBrand]
	if brand.Score != 2 {
		t.Errorf("brand score = %d, want 2 under deficit gate", brand.Score)
	}
	if !brand.Downgraded || !strings.Contains(brand.DowngradeReason, "펀더멘털 제한") {
		t.Errorf("expected gatekeeper downgrade, got %+v", brand)
	}
	if result.MoatStrength > 2 {
		t.Errorf("MoatStrength = %d, want <= 2", result.MoatStrength)
	}
}

func TestEvaluateStrongMoatProducesVerificationDesc(t *testing.T) {
	col := &models.EvidenceCollection{Company: "강한전자", Ticker: "000003"}
	strongTypes := []string{
		evidence.MoatBrand, evidence.MoatScaleEconomy, evidence.MoatPatentProcess,
		evidence.MoatSupplyChain, evidence.MoatCostAdvantage,
	}
	for _, mt := range strongTypes {
		col.Add(confirmedEv(mt, 2.0, true))
		col.Add(confirmedEv(mt, 1.5, true))
	}

	fin := &models.FinancialRecord{Revenue: 5_000_000_000_000, OperatingIncome: 800_000_000_000}

	result := NewEvaluator().Evaluate("강한전자", "000003", col, fin, nil)

	if result.MoatStrength != 4 {
		t.Fatalf("MoatStrength = %d, want 4", result.MoatStrength)
	}
	if !result.EvidenceBased {
		t.Error("EvidenceBased should be true")
	}
	if result.VerificationDesc == "" {
		t.Fatal("strength >= 4 must carry a verification desc")
	}
	for _, want := range []string{"[검증용 DESC - 강한전자 해자강도 4]", "핵심 해자 유형", "검증 필요 항목"} {
		if !strings.Contains(result.VerificationDesc, want) {
			t.Errorf("VerificationDesc missing %q", want)
		}
	}
	if !strings.Contains(result.MoatDesc, "해자강도: 4/5") {
		t.Errorf("MoatDesc missing strength header:\n%s", result.MoatDesc)
	}
	if !strings.Contains(result.MoatDesc, "총점:") {
		t.Error("MoatDesc missing total line")
	}
}

func TestEvaluateNoEvidence(t *testing.T) {
	col := &models.EvidenceCollection{Company: "무증거", Ticker: "000004"}
	result := NewEvaluator().Evaluate("무증거", "000004", col, nil, nil)

	if result.MoatStrength != 1 {
		t.Errorf("MoatStrength = %d, want 1", result.MoatStrength)
	}
	if result.EvidenceBased {
		t.Error("EvidenceBased should be false with no evidence")
	}
	if result.VerificationDesc != "" {
		t.Error("weak moat must not carry a verification desc")
	}
}

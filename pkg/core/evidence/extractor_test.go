package evidence

import (
	"strings"
	"testing"

	"stock_moat/pkg/models"
)

func TestExtractFindsConfirmedEvidence(t *testing.T) {
	x := NewExtractor()
	sections := map[string]string{
		"competition": "당사는 국내 시장 점유율 45%로 안정적인 공급 기반을 유지하고 있습니다.",
	}

	col := x.Extract("테스트전자", "000001", sections, nil)
	if col == nil {
		t.Fatal("collection should never be nil")
	}

	scale := col.ByType(MoatScaleEconomy)
	if len(scale) == 0 {
		t.Fatal("expected scale-economy evidence from 시장 점유율 keyword")
	}
	ev := scale[0]
	if ev.Confidence != models.EvidenceConfirmed {
		t.Errorf("Confidence = %q, want confirmed", ev.Confidence)
	}
	if !ev.HasNumbers {
		t.Error("HasNumbers should be true for 45% context")
	}
	if ev.QualityScore != 2.0 {
		t.Errorf("QualityScore = %v, want 2.0 (number + 점유율 marker)", ev.QualityScore)
	}
	if ev.Source != "사업보고서 - 경쟁 상황" {
		t.Errorf("Source = %q", ev.Source)
	}
}

func TestExtractSkipsShortSections(t *testing.T) {
	x := NewExtractor()
	col := x.Extract("테스트전자", "000001", map[string]string{"rnd": "짧은 내용"}, nil)
	if len(col.Evidences) != 0 {
		t.Errorf("short section should yield no evidence, got %d items", len(col.Evidences))
	}
}

func TestAntiPatternSuppressesConversionLanguage(t *testing.T) {
	x := NewExtractor()
	sections := map[string]string{
		"business_overview": "보통주로의 주식 전환 청구 기간 동안 장기 유지 계약 조건이 그대로 적용됩니다.",
	}

	col := x.Extract("테스트전자", "000001", sections, nil)
	if got := col.ByType(MoatSwitchingCost); len(got) != 0 {
		t.Errorf("주식 전환 context must not produce switching-cost evidence, got %d", len(got))
	}
}

func TestNoiseContextSuppressed(t *testing.T) {
	x := NewExtractor()
	sections := map[string]string{
		"business_overview": "주주총회 결의로 브랜드 인지도 제고 활동에 대한 예산이 승인되었습니다.",
	}

	col := x.Extract("테스트전자", "000001", sections, nil)
	if got := col.ByType(MoatBrand); len(got) != 0 {
		t.Errorf("governance boilerplate must not produce brand evidence, got %d", len(got))
	}
}

func TestDedupCapsPerTypeAndSection(t *testing.T) {
	filler := strings.Repeat("시장 환경과 산업 구조 전반에 대한 일반적인 서술이 계속 이어지는 부분입니다. ", 6)
	text := "모바일 메신저 부문에서는 가입자 간 상호작용이 늘수록 네트워크 효과가 강화됩니다." + filler +
		"간편 결제 부문에서도 가맹점과 이용자가 함께 늘며 네트워크 효과가 확대됩니다." + filler +
		"콘텐츠 유통 부문 역시 창작자 유입에 힘입어 네트워크 효과가 누적되고 있습니다."

	x := NewExtractor()
	col := x.Extract("테스트전자", "000001", map[string]string{"business_overview": text}, nil)

	got := col.ByType(MoatNetworkEffect)
	if len(got) != 2 {
		t.Fatalf("per-type per-section cap = 2, got %d items", len(got))
	}
}

func TestDedupKeepsHighestQuality(t *testing.T) {
	// Two matches whose context windows share the same leading substring:
	// only one survives, and it is the higher-quality one.
	text := "네트워크 효과가 존재하며 가입자 1200만명 기준 네트워크 효과가 계속 확대되고 있는 상황입니다."

	x := NewExtractor()
	col := x.Extract("테스트전자", "000001", map[string]string{"business_overview": text}, nil)

	got := col.ByType(MoatNetworkEffect)
	if len(got) != 1 {
		t.Fatalf("overlapping windows should dedup to 1 item, got %d", len(got))
	}
	if !got[0].HasNumbers {
		t.Error("surviving item should be the quantified one")
	}
}

func TestCalculateQualityLadder(t *testing.T) {
	cases := []struct {
		name    string
		context string
		want    float64
	}{
		{"base", "짧은 언급", 0.5},
		{
			"substantive",
			"당사의 주요 제품은 오랜 기간 축적된 생산 기술을 바탕으로 안정적인 품질을 유지하고 있으며 국내외 거래처로부터 꾸준한 신뢰를 받아 왔습니다. 향후에도 기존 거래 관계를 바탕으로 안정적인 수요가 지속될 것으로 예상됩니다.",
			1.0,
		},
		{
			"quantified",
			"연간 생산 능력이 전년 대비 45% 수준으로 확대되어 원자재 조달 단가가 크게 낮아졌습니다.",
			1.5,
		},
		{
			"comparative",
			"국내 시장 점유율 45%를 확보하고 있습니다.",
			2.0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := calculateQuality(tc.context); got != tc.want {
				t.Errorf("calculateQuality(%s) = %v, want %v", tc.name, got, tc.want)
			}
		})
	}
}

func TestQualityScoresStayOnLadder(t *testing.T) {
	text := "당사는 국내 시장 점유율 45%를 보유하고 있으며, 특허 등록 320건과 데이터 축적 500만건을 기반으로 독자 공정을 운영합니다. 브랜드 인지도 조사에서도 높은 평가를 받고 있습니다."

	x := NewExtractor()
	col := x.Extract("테스트전자", "000001", map[string]string{"business_overview": text}, nil)
	if len(col.Evidences) == 0 {
		t.Fatal("expected evidence from keyword-dense text")
	}

	valid := map[float64]bool{0.5: true, 1.0: true, 1.5: true, 2.0: true}
	for _, ev := range col.Evidences {
		if !valid[ev.QualityScore] {
			t.Errorf("%s: QualityScore %v outside {0.5, 1.0, 1.5, 2.0}", ev.MoatType, ev.QualityScore)
		}
	}
}

func TestFinancialRatioEvidence(t *testing.T) {
	fin := &models.FinancialRecord{
		Revenue:         12_000_000_000_000,
		OperatingIncome: 2_400_000_000_000,
		RnDExpenses:     720_000_000_000,
	}

	x := NewExtractor()
	col := x.Extract("테스트전자", "000001", map[string]string{}, fin)

	if got := col.ByType(MoatCostAdvantage); len(got) != 1 {
		t.Errorf("20%% margin should yield cost-advantage evidence, got %d", len(got))
	}
	scale := col.ByType(MoatScaleEconomy)
	if len(scale) != 1 {
		t.Fatalf("12조 revenue should yield scale evidence, got %d", len(scale))
	}
	if scale[0].Confidence != models.EvidenceConfirmed {
		t.Errorf("large-cap scale evidence should be confirmed, got %q", scale[0].Confidence)
	}
	if got := col.ByType(MoatPatentProcess); len(got) != 1 {
		t.Errorf("6%% R&D ratio should yield patent evidence, got %d", len(got))
	}
	for _, ev := range col.Evidences {
		if ev.Source != "재무제표" {
			t.Errorf("financial evidence source = %q", ev.Source)
		}
		if !ev.HasNumbers {
			t.Errorf("%s: financial evidence must carry numbers", ev.MoatType)
		}
	}
}

func TestFinancialEvidenceMidCapEstimated(t *testing.T) {
	fin := &models.FinancialRecord{
		Revenue:         2_000_000_000_000,
		OperatingIncome: 100_000_000_000,
	}

	x := NewExtractor()
	col := x.Extract("테스트전자", "000001", map[string]string{}, fin)

	scale := col.ByType(MoatScaleEconomy)
	if len(scale) != 1 {
		t.Fatalf("2조 revenue should yield mid-cap scale evidence, got %d", len(scale))
	}
	if scale[0].Confidence != models.EvidenceEstimated {
		t.Errorf("mid-cap scale evidence should be estimated, got %q", scale[0].Confidence)
	}
	if scale[0].QualityScore != 0.5 {
		t.Errorf("mid-cap scale quality = %v, want 0.5", scale[0].QualityScore)
	}
	if got := col.ByType(MoatCostAdvantage); len(got) != 0 {
		t.Errorf("5%% margin must not yield cost-advantage evidence, got %d", len(got))
	}
}

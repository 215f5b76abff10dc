package localdata

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const fixtureJSON = `[
  {
    "ticker": "000001",
    "company": "테스트전자",
    "corp_code": "00123456",
    "ttm": {"ttm_revenue": 2000000000000, "ttm_op_income": 300000000000, "ttm_quarter": "202403"},
    "quarterly": {
      "2024/11014": {"revenue": 700000000000, "operating_income": 100000000000}
    },
    "annual": {
      "2023": {"revenue": 1900000000000, "operating_income": 280000000000}
    },
    "report": "II. 사업의 내용 테스트 본문"
  },
  {
    "ticker": "000002",
    "company": "테스트화학",
    "corp_code": "00654321",
    "report_file": "000002_report.txt"
  }
]`

func writeFixture(t *testing.T) *Source {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fixtures.json")
	if err := os.WriteFile(path, []byte(fixtureJSON), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "000002_report.txt"), []byte("파일에서 읽은 보고서"), 0644); err != nil {
		t.Fatal(err)
	}
	src, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return src
}

func TestLoadServesAllInterfaces(t *testing.T) {
	src := writeFixture(t)
	ctx := context.Background()

	if !src.IsConnected() {
		t.Error("a fixture with TTM data should report the oracle as connected")
	}
	if got := len(src.Fixtures()); got != 2 {
		t.Errorf("Fixtures() = %d entries, want 2", got)
	}

	ttm, err := src.GetTTM(ctx, "000001")
	if err != nil || ttm == nil || ttm.TTMRevenue != 2_000_000_000_000 {
		t.Errorf("GetTTM = %+v, %v", ttm, err)
	}
	if ttm2, _ := src.GetTTM(ctx, "000002"); ttm2 != nil {
		t.Error("ticker without ttm should serve nil")
	}

	code, err := src.LookupCorpCode(ctx, "000001")
	if err != nil || code != "00123456" {
		t.Errorf("LookupCorpCode = %q, %v", code, err)
	}
	if _, err := src.LookupCorpCode(ctx, "없는티커"); err == nil {
		t.Error("unknown ticker must not resolve")
	}

	rec, err := src.GetFinancialStatements(ctx, "00123456", "2024", "11014")
	if err != nil || rec == nil || rec.Revenue != 700_000_000_000 {
		t.Errorf("GetFinancialStatements = %+v, %v", rec, err)
	}
	if rec, _ := src.GetFinancialStatements(ctx, "00123456", "2024", "11012"); rec != nil {
		t.Error("missing filing should serve nil, not an error")
	}

	multi, err := src.GetMultiYearFinancials(ctx, "00123456", []string{"2022", "2023"})
	if err != nil || len(multi) != 1 || multi["2023"] == nil {
		t.Errorf("GetMultiYearFinancials = %+v, %v", multi, err)
	}
}

func TestFetchReportInlineAndFile(t *testing.T) {
	src := writeFixture(t)
	ctx := context.Background()

	inline, err := src.FetchReport(ctx, "00123456")
	if err != nil || inline != "II. 사업의 내용 테스트 본문" {
		t.Errorf("inline report = %q, %v", inline, err)
	}

	fromFile, err := src.FetchReport(ctx, "00654321")
	if err != nil || fromFile != "파일에서 읽은 보고서" {
		t.Errorf("file report = %q, %v", fromFile, err)
	}

	if _, err := src.FetchReport(ctx, "없는코드"); err == nil {
		t.Error("unknown corp code must fail")
	}
}

func TestLoadSingleObject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "single.json")
	single := `{"ticker": "000003", "company": "단일", "corp_code": "00000003"}`
	if err := os.WriteFile(path, []byte(single), 0644); err != nil {
		t.Fatal(err)
	}

	src, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(src.Fixtures()) != 1 || src.Fixtures()[0].Ticker != "000003" {
		t.Errorf("Fixtures = %+v", src.Fixtures())
	}
}

func TestLoadRejectsMissingTicker(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`[{"company": "무명"}]`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("a fixture entry without a ticker must be rejected")
	}
}

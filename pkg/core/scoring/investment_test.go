package scoring

import (
	"strings"
	"testing"

	"stock_moat/pkg/models"
)

func TestInvestmentScoreFullMarks(t *testing.T) {
	// 2.0 profitability + 1.5 moat + 1.0 valuation + 0.5 growth = 5.0.
	s := NewInvestmentValueScorer()
	score, detail := s.Score(InvestmentInput{
		MoatStrength:   5,
		TTMOpMargin:    0.25,
		TTMOpIncome:    1,
		OpMultiple:     models.Float64Ptr(8),
		RevenueCAGR:    models.Float64Ptr(0.15),
		MarginDelta:    models.Float64Ptr(2),
		BMCompleteness: 0.5,
		DataGapDays:    10,
	})
	if score != 5 {
		t.Errorf("expected score 5, got %d (%s)", score, detail)
	}
}

func TestInvestmentScoreDeficitZeroesSubScores(t *testing.T) {
	s := NewInvestmentValueScorer()
	_, detail := s.Score(InvestmentInput{
		MoatStrength: 3,
		TTMOpMargin:  -0.10,
		TTMOpIncome:  -100,
		OpMultiple:   models.Float64Ptr(8),
	})
	if !strings.Contains(detail, "수익성 0") {
		t.Errorf("expected profitability forced to 0, got %q", detail)
	}
	if !strings.Contains(detail, "밸류 0") {
		t.Errorf("expected valuation forced to 0, got %q", detail)
	}
}

func TestInvestmentScorePenalties(t *testing.T) {
	// 1.5 + 0.9 + 0.75 = 3.15; minus 0.5 (stale) minus 0.5 (thin BM) = 2.15 -> 2.
	s := NewInvestmentValueScorer()
	score, detail := s.Score(InvestmentInput{
		MoatStrength:   3,
		TTMOpMargin:    0.12,
		TTMOpIncome:    100,
		OpMultiple:     models.Float64Ptr(15),
		BMCompleteness: 0.1,
		DataGapDays:    120,
	})
	if score != 2 {
		t.Errorf("expected score 2 after penalties, got %d (%s)", score, detail)
	}
	if !strings.Contains(detail, "시점괴리") || !strings.Contains(detail, "BM완성도") {
		t.Errorf("expected both penalty reasons, got %q", detail)
	}
}

func TestInvestmentScoreBounds(t *testing.T) {
	s := NewInvestmentValueScorer()
	for _, in := range []InvestmentInput{
		{},
		{MoatStrength: 9, TTMOpMargin: 1.0, TTMOpIncome: 1, OpMultiple: models.Float64Ptr(1)},
		{MoatStrength: -2, TTMOpIncome: -1, DataGapDays: 500},
	} {
		score, _ := s.Score(in)
		if score < 0 || score > 5 {
			t.Errorf("score %d out of [0,5] for input %+v", score, in)
		}
	}
}

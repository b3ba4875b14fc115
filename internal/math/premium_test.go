package math

import "testing"

func TestPremiumForScore(t *testing.T) {
	const base = 1_000_000

	cases := []struct {
		score int
		want  int64
	}{
		{50, 1_000_000},
		{80, 1_600_000},
		{1, 20_000},
		{100, 2_000_000},
		{33, 660_000},
	}
	for _, tc := range cases {
		if got := PremiumForScore(base, tc.score); got != tc.want {
			t.Errorf("PremiumForScore(%d, %d) = %d, want %d", base, tc.score, got, tc.want)
		}
	}
}

func TestPremiumForScoreTruncates(t *testing.T) {
	// 999_999 * 33 / 50 = 659_999.34 -> 659_999
	if got := PremiumForScore(999_999, 33); got != 659_999 {
		t.Errorf("got %d, want 659999", got)
	}
}

func TestAdjustmentFactorSymmetric(t *testing.T) {
	cases := []struct {
		oldScore, newScore int
		want               int64
	}{
		{50, 80, 160},
		{80, 50, 160},
		{50, 100, 200},
		{100, 50, 200},
		{50, 50, 100},
		{3, 7, 233},
		{7, 3, 233},
	}
	for _, tc := range cases {
		if got := AdjustmentFactor(tc.oldScore, tc.newScore); got != tc.want {
			t.Errorf("AdjustmentFactor(%d, %d) = %d, want %d", tc.oldScore, tc.newScore, got, tc.want)
		}
	}
}

func TestRiskFactor(t *testing.T) {
	if got := RiskFactor(1); got != 99 {
		t.Errorf("RiskFactor(1) = %d, want 99", got)
	}
	if got := RiskFactor(100); got != 0 {
		t.Errorf("RiskFactor(100) = %d, want 0", got)
	}
}

func TestTimeFactor(t *testing.T) {
	if got := TimeFactor(999, 1000); got != 100 {
		t.Errorf("stale update: got %d, want 100", got)
	}
	if got := TimeFactor(1000, 1000); got != 50 {
		t.Errorf("same-instant update: got %d, want 50", got)
	}
	if got := TimeFactor(1001, 1000); got != 50 {
		t.Errorf("future update: got %d, want 50", got)
	}
}

func TestMemberShare(t *testing.T) {
	// total 1_000_000, riskFactor 50, timeFactor 100 -> 500_000
	if got := MemberShare(1_000_000, 50, 100); got != 500_000 {
		t.Errorf("got %d, want 500000", got)
	}
	// half weight for a fresh score
	if got := MemberShare(1_000_000, 50, 50); got != 250_000 {
		t.Errorf("got %d, want 250000", got)
	}
	// truncation: 999 * 99 * 100 / 10000 = 989.01 -> 989
	if got := MemberShare(999, 99, 100); got != 989 {
		t.Errorf("got %d, want 989", got)
	}
}

func TestMemberShareNoOverflow(t *testing.T) {
	// total near the int64 ceiling must not wrap through the intermediate
	// product.
	total := int64(9_000_000_000_000_000_000) / 100
	got := MemberShare(total, 99, 100)
	want := total / 10_000 * 99 * 100
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func TestDivideInt128Rounding(t *testing.T) {
	if got := DivideInt128(MultiplyInt128(7, 1), 2, RoundDown); got != 3 {
		t.Errorf("RoundDown: got %d, want 3", got)
	}
	if got := DivideInt128(MultiplyInt128(7, 1), 2, RoundUp); got != 4 {
		t.Errorf("RoundUp: got %d, want 4", got)
	}
	if got := DivideInt128(MultiplyInt128(7, 1), 2, RoundHalfEven); got != 4 {
		t.Errorf("RoundHalfEven 3.5: got %d, want 4", got)
	}
	if got := DivideInt128(MultiplyInt128(5, 1), 2, RoundHalfEven); got != 2 {
		t.Errorf("RoundHalfEven 2.5: got %d, want 2", got)
	}
}

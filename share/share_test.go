package share_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/xraph/fundledger/share"
	"github.com/xraph/fundledger/types"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		goal   string
		want   string
	}{
		{"third of ten thousand", "333.33", "10000.00", "3.33"},
		{"whole goal", "1000.00", "1000.00", "100.00"},
		{"sixty percent", "600.00", "1000.00", "60.00"},
		{"half-up at the boundary", "0.05", "1000.00", "0.01"},
		{"below half rounds down", "0.04", "1000.00", "0.00"},
		{"repeating thirds", "1.00", "3.00", "33.33"},
		{"two thirds rounds up", "2.00", "3.00", "66.67"},
		{"exact half at second place", "1.00", "8.00", "12.50"},
		{"smallest unit of large goal", "0.01", "10000.00", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount := types.MustParseMoney(tt.amount, "usd")
			goal := types.MustParseMoney(tt.goal, "usd")
			got := share.Format(share.Compute(amount, goal))
			if got != tt.want {
				t.Errorf("Compute(%s, %s): got %s, want %s", tt.amount, tt.goal, got, tt.want)
			}
		})
	}
}

func TestComputeZeroGoal(t *testing.T) {
	got := share.Compute(types.USD(100), types.Zero("usd"))
	if !got.IsZero() {
		t.Errorf("got %s, want 0", got)
	}
}

func TestComputeDeterministic(t *testing.T) {
	amount := types.MustParseMoney("333.33", "usd")
	goal := types.MustParseMoney("10000.00", "usd")
	first := share.Compute(amount, goal)
	for range 1000 {
		if got := share.Compute(amount, goal); !got.Equal(first) {
			t.Fatalf("non-deterministic share: %s vs %s", got, first)
		}
	}
}

func TestSum(t *testing.T) {
	shares := []decimal.Decimal{
		decimal.RequireFromString("33.33"),
		decimal.RequireFromString("33.33"),
		decimal.RequireFromString("33.33"),
	}
	if got := share.Format(share.Sum(shares...)); got != "99.99" {
		t.Errorf("Sum: got %s, want 99.99", got)
	}
	if got := share.Sum(); !got.IsZero() {
		t.Errorf("empty Sum: got %s, want 0", got)
	}
}

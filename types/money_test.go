package types

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr error
	}{
		{"333.33", 33333, nil},
		{"10000.00", 1000000, nil},
		{"0.01", 1, nil},
		{"  42 ", 4200, nil},
		{"1.5", 150, nil},
		{"1.230", 123, nil},
		{"-5.00", -500, nil},
		{"0", 0, nil},
		{"", 0, ErrAmountEmpty},
		{"   ", 0, ErrAmountEmpty},
		{"abc", 0, ErrAmountSyntax},
		{"1,000.00", 0, ErrAmountSyntax},
		{"NaN", 0, ErrAmountSyntax},
		{"0.001", 0, ErrAmountPrecision},
		{"12.345", 0, ErrAmountPrecision},
		{"99999999999999999999999", 0, ErrAmountRange},
		{"1e2", 0, ErrAmountSyntax},
		{"1e7000000", 0, ErrAmountSyntax},
		{"1e-7000000", 0, ErrAmountSyntax},
		{"1.", 0, ErrAmountSyntax},
		{"+7.50", 750, nil},
		{strings.Repeat("9", MaxAmountLength+1), 0, ErrAmountTooLong},
	}

	for _, tt := range tests {
		name := tt.input
		if len(name) > 20 {
			name = name[:20] + "..."
		}
		t.Run(name, func(t *testing.T) {
			got, err := ParseMoney(tt.input, "USD")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error: got %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Amount != tt.want {
				t.Errorf("Amount: got %d, want %d", got.Amount, tt.want)
			}
			if got.Currency != "usd" {
				t.Errorf("Currency: got %s, want usd", got.Currency)
			}
		})
	}
}

func TestParseMoneyErrorStaysShort(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"oversized digits", strings.Repeat("1", 1<<20), ErrAmountTooLong},
		{"oversized garbage", strings.Repeat("x", 1<<20), ErrAmountTooLong},
		{"huge exponent", "1e7000000", ErrAmountSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMoney(tt.input, "usd")
			if !errors.Is(err, tt.want) {
				t.Fatalf("error: got %v, want %v", err, tt.want)
			}
			if got := len(err.Error()); got > 128 {
				t.Errorf("error length: got %d, want at most 128", got)
			}
		})
	}
}

func TestMoneyFormat(t *testing.T) {
	tests := []struct {
		money   Money
		major   string
		display string
	}{
		{USD(33333), "333.33", "$333.33"},
		{USD(1), "0.01", "$0.01"},
		{USD(0), "0.00", "$0.00"},
		{USD(-1), "-0.01", "$-0.01"},
		{New(100000, "EUR"), "1000.00", "€1000.00"},
		{New(1050, "chf"), "10.50", "CHF 10.50"},
	}

	for _, tt := range tests {
		t.Run(tt.major, func(t *testing.T) {
			if got := tt.money.FormatMajor(); got != tt.major {
				t.Errorf("FormatMajor: got %s, want %s", got, tt.major)
			}
			if got := tt.money.String(); got != tt.display {
				t.Errorf("String: got %s, want %s", got, tt.display)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return USD(100).Add(USD(200)) }, USD(300)},
		{"Subtract", func() Money { return USD(500).Subtract(USD(200)) }, USD(300)},
		{"Sum", func() Money { return Sum("usd", USD(60000), USD(40000)) }, USD(100000)},
		{"Sum empty", func() Money { return Sum("usd") }, Zero("usd")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op(); !got.Equal(tt.expected) {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMoneyComparison(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Money
		less    bool
		greater bool
		equal   bool
	}{
		{"Equal", USD(100), USD(100), false, false, true},
		{"Less", USD(50), USD(100), true, false, false},
		{"Greater", USD(200), USD(100), false, true, false},
		{"Zero equal", USD(0), Zero("USD"), false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.LessThan(tt.b); got != tt.less {
				t.Errorf("LessThan: got %v, want %v", got, tt.less)
			}
			if got := tt.a.GreaterThan(tt.b); got != tt.greater {
				t.Errorf("GreaterThan: got %v, want %v", got, tt.greater)
			}
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Equal: got %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for currency mismatch")
		}
	}()

	_ = USD(100).Add(New(100, "eur"))
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(USD(33333))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"amount":33333,"currency":"usd","display":"333.33"}`
	if string(data) != want {
		t.Errorf("marshal: got %s, want %s", data, want)
	}

	var back Money
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(USD(33333)) {
		t.Errorf("unmarshal: got %v, want %v", back, USD(33333))
	}
}

func TestMustParseMoneyPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for invalid literal")
		}
	}()

	_ = MustParseMoney("1.001", "usd")
}

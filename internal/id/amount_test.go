package id

import (
	"math/big"
	"testing"
)

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount("1.25", 6)
	if err != nil {
		t.Fatalf("ParseAmount failed: %v", err)
	}
	if got.String() != "1250000" {
		t.Fatalf("unexpected base units: %s", got)
	}

	got, err = ParseAmount("10", 18)
	if err != nil {
		t.Fatalf("ParseAmount failed: %v", err)
	}
	if got.String() != "10000000000000000000" {
		t.Fatalf("unexpected base units: %s", got)
	}
}

func TestParseAmountValidation(t *testing.T) {
	if _, err := ParseAmount("1.1234567", 6); err == nil {
		t.Fatal("expected precision error")
	}
	if _, err := ParseAmount("0", 6); err == nil {
		t.Fatal("expected zero amount error")
	}
	if _, err := ParseAmount("-1", 6); err == nil {
		t.Fatal("expected format error")
	}
	if _, err := ParseAmount("1.500000000", 6); err != nil {
		t.Fatalf("trailing zeros should not count toward precision: %v", err)
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(big.NewInt(1250000), 6); got != "1.25" {
		t.Fatalf("unexpected format: %s", got)
	}
	if got := FormatAmount(big.NewInt(5), 6); got != "0.000005" {
		t.Fatalf("unexpected small format: %s", got)
	}
	if got := FormatAmount(nil, 6); got != "0" {
		t.Fatalf("unexpected nil format: %s", got)
	}
}

func TestApplySlippage(t *testing.T) {
	if got := ApplySlippage(big.NewInt(10_000), 50); got.Int64() != 9_950 {
		t.Fatalf("unexpected min out: %s", got)
	}
	if got := ApplySlippage(big.NewInt(10_000), 0); got.Int64() != 10_000 {
		t.Fatalf("unexpected min out without slippage: %s", got)
	}
}

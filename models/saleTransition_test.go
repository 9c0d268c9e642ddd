package models

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from SaleState
		to   SaleState
		want bool
	}{
		{SaleStatePending, SaleStatePaid, true},
		{SaleStatePending, SaleStateDebt, true},
		{SaleStatePending, SaleStateCancelled, true},
		{SaleStateDebt, SaleStatePaid, true},
		{SaleStateDebt, SaleStateCancelled, true},
		{SaleStateDebt, SaleStatePending, false},
		{SaleStatePaid, SaleStatePending, false},
		{SaleStatePaid, SaleStateDebt, false},
		{SaleStatePaid, SaleStateCancelled, false},
		{SaleStateCancelled, SaleStatePending, false},
		{SaleStateCancelled, SaleStatePaid, false},
		{SaleStatePending, SaleStatePending, false},
	}

	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestParseSaleState(t *testing.T) {
	if _, err := ParseSaleState("pending"); err != nil {
		t.Fatalf("pending: %v", err)
	}
	if _, err := ParseSaleState("shipped"); err == nil {
		t.Fatal("expected error for unknown state")
	}
}

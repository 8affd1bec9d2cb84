package fare

import "testing"

func TestDerive_ScenarioSix(t *testing.T) {
	got := Derive(7, 22)
	if got != 19900 {
		t.Fatalf("expected 19900 cents, got %d", got)
	}
}

func TestDerive_FloorsAtMinimumFare(t *testing.T) {
	got := Derive(0.1, 0.5)
	if got != MinFareCents {
		t.Fatalf("expected the minimum fare floor of %d, got %d", MinFareCents, got)
	}
}

func TestSplit_ScenarioSix(t *testing.T) {
	earnings, commission := Split(19900)
	if earnings != 16915 {
		t.Fatalf("expected driver earnings of 16915, got %d", earnings)
	}
	if commission != 2985 {
		t.Fatalf("expected commission of 2985, got %d", commission)
	}
	if earnings+commission != 19900 {
		t.Fatalf("earnings and commission must sum to the fare, got %d", earnings+commission)
	}
}

func TestAddEarnings_SaturatesAtCap(t *testing.T) {
	got := AddEarnings(MaxEarningsCents-10, 100)
	if got != MaxEarningsCents {
		t.Fatalf("expected saturation at %d, got %d", MaxEarningsCents, got)
	}
}

func TestAddEarnings_IgnoresNonPositiveDelta(t *testing.T) {
	got := AddEarnings(500, 0)
	if got != 500 {
		t.Fatalf("expected unchanged total for zero delta, got %d", got)
	}
}

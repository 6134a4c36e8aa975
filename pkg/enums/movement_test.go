package enums

import "testing"

func TestMovementReasonAllows(t *testing.T) {
	cases := []struct {
		reason MovementReason
		dir    MovementDirection
		want   bool
	}{
		{MovementReasonSale, MovementOut, true},
		{MovementReasonSale, MovementIn, false},
		{MovementReasonLoss, MovementOut, true},
		{MovementReasonPurchase, MovementIn, true},
		{MovementReasonPurchase, MovementOut, false},
		{MovementReasonReturn, MovementIn, true},
		{MovementReasonInitial, MovementOut, false},
		{MovementReasonAdjustment, MovementIn, true},
		{MovementReasonAdjustment, MovementOut, true},
		{MovementReasonAdjustment, MovementDirection("sideways"), false},
		{MovementReason("gift"), MovementIn, false},
	}
	for _, tc := range cases {
		if got := tc.reason.Allows(tc.dir); got != tc.want {
			t.Fatalf("%s/%s: expected %v got %v", tc.reason, tc.dir, tc.want, got)
		}
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole("elevated"); err != nil || r != RoleElevated {
		t.Fatalf("expected elevated, got %q err=%v", r, err)
	}
	if _, err := ParseRole("administrador"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestParsePaymentMethod(t *testing.T) {
	for _, raw := range []string{"cash", "card", "transfer"} {
		if _, err := ParsePaymentMethod(raw); err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
	}
	if _, err := ParsePaymentMethod("ach"); err == nil {
		t.Fatalf("expected ach to be rejected")
	}
}

func TestDirectionSign(t *testing.T) {
	if MovementIn.Sign() != 1 || MovementOut.Sign() != -1 {
		t.Fatalf("unexpected signs")
	}
}

func TestParseIsExact(t *testing.T) {
	for _, raw := range []string{"Cash", " cash", ""} {
		if _, err := ParsePaymentMethod(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
	if got, err := ParseOutboxDLQErrorReason("max_attempts"); err != nil || got != OutboxDLQReasonMaxAttempts {
		t.Fatalf("expected max_attempts, got %q err=%v", got, err)
	}
	if !EventSaleCompleted.IsValid() || OutboxEventType("sale_voided").IsValid() {
		t.Fatalf("unexpected event type validity")
	}
}

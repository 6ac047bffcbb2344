package model

import (
	"encoding/json"
	"math"
	"testing"
)

func TestParseBookingStatus(t *testing.T) {
	cases := []struct {
		in   string
		want BookingStatus
		ok   bool
	}{
		{"booked", StatusBooked, true},
		{"BOOKED", StatusBooked, true},
		{" Completed ", StatusCompleted, true},
		{"cancelled", StatusCancelled, true},
		{"canceled", StatusCancelled, true}, // US spelling accepted
		{"pending", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseBookingStatus(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseBookingStatus(%q) = (%q,%v), want (%q,%v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestBookingStatusTransitions(t *testing.T) {
	if !StatusBooked.CanTransitionTo(StatusCompleted) {
		t.Error("BOOKED -> COMPLETED should be legal")
	}
	if !StatusBooked.CanTransitionTo(StatusCancelled) {
		t.Error("BOOKED -> CANCELLED should be legal")
	}
	if StatusCompleted.CanTransitionTo(StatusCancelled) {
		t.Error("COMPLETED is terminal; no move to CANCELLED")
	}
	if StatusCancelled.CanTransitionTo(StatusBooked) {
		t.Error("CANCELLED is terminal; no move back to BOOKED")
	}
	// writing the same status again is a no-op, not a violation
	if !StatusCompleted.CanTransitionTo(StatusCompleted) {
		t.Error("re-writing the current status should pass")
	}
	if !StatusCompleted.Terminal() || !StatusCancelled.Terminal() {
		t.Error("COMPLETED and CANCELLED are terminal")
	}
	if StatusBooked.Terminal() {
		t.Error("BOOKED is not terminal")
	}
}

func TestParsePaymentStatus(t *testing.T) {
	if got, ok := ParsePaymentStatus("paid"); !ok || got != PaymentPaid {
		t.Errorf("ParsePaymentStatus(paid) = (%q,%v)", got, ok)
	}
	if got, ok := ParsePaymentStatus(" PENDING "); !ok || got != PaymentPending {
		t.Errorf("ParsePaymentStatus(PENDING) = (%q,%v)", got, ok)
	}
	if _, ok := ParsePaymentStatus("refunded"); ok {
		t.Error("refunded should not parse")
	}
}

func TestAmountUnmarshal(t *testing.T) {
	cases := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{`199.5`, 199.5, false},
		{`"199.50"`, 199.5, false}, // string numerics from legacy clients
		{`"0"`, 0, false},
		{`0`, 0, false},
		{`" 12.25 "`, 12.25, false},
		{`null`, 0, false},
		{`"abc"`, 0, true},
		{`{}`, 0, true},
	}
	for _, tc := range cases {
		var a Amount
		err := json.Unmarshal([]byte(tc.in), &a)
		if tc.wantErr {
			if err == nil {
				t.Errorf("unmarshal %s: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("unmarshal %s: %v", tc.in, err)
			continue
		}
		if math.Abs(float64(a)-tc.want) > 1e-9 {
			t.Errorf("unmarshal %s = %v, want %v", tc.in, float64(a), tc.want)
		}
	}
}

func TestAmountMarshal(t *testing.T) {
	b, err := json.Marshal(Amount(199.5))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "199.5" {
		t.Errorf("marshal = %s, want 199.5", b)
	}
}

func TestAmountInsideStruct(t *testing.T) {
	var req struct {
		Amount Amount `json:"amount"`
	}
	if err := json.Unmarshal([]byte(`{"amount":"199.50"}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if float64(req.Amount) != 199.5 {
		t.Errorf("amount = %v, want 199.5", float64(req.Amount))
	}
}

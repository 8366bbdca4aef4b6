package models

import (
	"testing"
	"time"
)

func TestParseBlobState(t *testing.T) {
	tests := []struct {
		raw     string
		want    BlobState
		wantErr bool
	}{
		{raw: "pending", want: StatePending},
		{raw: " Leased ", want: StateLeased},
		{raw: "PROCESSED", want: StateProcessed},
		{raw: "", wantErr: true},
		{raw: "done", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseBlobState(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestIsValidTransition(t *testing.T) {
	if !IsValidTransition(StatePending, StateLeased) {
		t.Fatal("pending -> leased should be allowed")
	}
	if !IsValidTransition(StateLeased, StatePending) {
		t.Fatal("leased -> pending should be allowed on expiry")
	}
	if !IsValidTransition(StateLeased, StateProcessed) {
		t.Fatal("leased -> processed should be allowed")
	}
	if IsValidTransition(StateProcessed, StatePending) {
		t.Fatal("processed is terminal")
	}
}

func TestBlobEffectiveState(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	expired := Blob{State: StateLeased, LeaseExpiresAt: &past}
	if got := expired.EffectiveState(now); got != StatePending {
		t.Fatalf("expected expired lease to read as pending, got %q", got)
	}
	active := Blob{State: StateLeased, LeaseExpiresAt: &future}
	if got := active.EffectiveState(now); got != StateLeased {
		t.Fatalf("expected active lease to stay leased, got %q", got)
	}
	atDeadline := Blob{State: StateLeased, LeaseExpiresAt: &now}
	if got := atDeadline.EffectiveState(now); got != StatePending {
		t.Fatalf("expected lease at deadline to be expired, got %q", got)
	}
}

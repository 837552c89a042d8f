package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func TestSharesAcceptedIncrements(t *testing.T) {
	m := New()
	m.SharesAccepted.Inc()
	m.SharesAccepted.Inc()

	var out dto.Metric
	if err := m.SharesAccepted.Write(&out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.GetCounter().GetValue() != 2 {
		t.Fatalf("expected counter value 2, got %v", out.GetCounter().GetValue())
	}
}

func TestSharesRejectedLabelsByReason(t *testing.T) {
	m := New()
	m.SharesRejected.WithLabelValues("insufficient_pow").Inc()
	m.SharesRejected.WithLabelValues("duplicate").Inc()
	m.SharesRejected.WithLabelValues("duplicate").Inc()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "faucetd_shares_rejected_total" {
			found = true
			if len(f.Metric) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(f.Metric))
			}
		}
	}
	if !found {
		t.Fatalf("expected to find faucetd_shares_rejected_total in the registry")
	}
}

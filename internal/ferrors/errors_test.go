package ferrors

import (
	"errors"
	"net/http"
	"testing"
)

func TestKindStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{Validation, http.StatusBadRequest},
		{Policy, http.StatusBadRequest},
		{Conflict, http.StatusConflict},
		{Transient, http.StatusServiceUnavailable},
		{Fatal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := c.kind.Status(); got != c.want {
			t.Errorf("%v.Status() = %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	err := Newf(Policy, "quota_exceeded", "maximum shares per block exceeded")
	want := "[policy] maximum shares per block exceeded"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWithFieldAndStatus(t *testing.T) {
	err := Validationf("nonce", "invalid nonce format").WithStatus(http.StatusTeapot)
	if err.Field != "nonce" {
		t.Errorf("Field = %q, want nonce", err.Field)
	}
	if err.HTTPStatus() != http.StatusTeapot {
		t.Errorf("HTTPStatus() = %d, want %d", err.HTTPStatus(), http.StatusTeapot)
	}
}

func TestWrapAndUnwrap(t *testing.T) {
	cause := errors.New("database is locked")
	err := Wrap(Transient, "storage_busy", "storage unavailable", cause)
	if !errors.Is(err, cause) {
		t.Errorf("expected wrapped cause to be reachable via errors.Is")
	}
	fe, ok := AsError(err)
	if !ok || fe.Kind != Transient {
		t.Errorf("AsError failed to recover the tagged error")
	}
}

func TestAsErrorMiss(t *testing.T) {
	if _, ok := AsError(errors.New("plain")); ok {
		t.Errorf("expected AsError to report false for a plain error")
	}
}

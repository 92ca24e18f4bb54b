package services_test

import (
	"errors"
	"strings"
	"testing"

	"garpconnect/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrValidation, "dhl", "create shipment", "rejected", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"dhl", "create shipment", "rejected"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "postnord", "booking", "", errors.New("io"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected nil marker to default to transient, got %v", err)
	}
}

func TestKindMapping(t *testing.T) {
	cases := []struct {
		marker error
		want   string
	}{
		{services.ErrTransient, "transient"},
		{services.ErrAuth, "auth"},
		{services.ErrValidation, "validation"},
		{services.ErrPrinter, "printer"},
		{services.ErrConfiguration, "configuration"},
		{services.ErrNotFound, "not_found"},
	}
	for _, tc := range cases {
		err := services.Wrap(tc.marker, "component", "op", "detail", nil)
		if got := services.Kind(err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.marker, got, tc.want)
		}
	}
	if got := services.Kind(errors.New("plain")); got != "unknown" {
		t.Fatalf("expected unknown kind for plain error, got %q", got)
	}
	if got := services.Kind(nil); got != "" {
		t.Fatalf("expected empty kind for nil error, got %q", got)
	}
}

func TestIsTerminal(t *testing.T) {
	if services.IsTerminal(services.Wrap(services.ErrTransient, "dhl", "post", "timeout", nil)) {
		t.Fatal("transient errors are not terminal")
	}
	if !services.IsTerminal(services.Wrap(services.ErrValidation, "parser", "srvid", "bad", nil)) {
		t.Fatal("validation errors are terminal")
	}
}

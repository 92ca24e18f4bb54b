package carrier_test

import (
	"errors"
	"testing"

	"garpconnect/internal/carrier"
	"garpconnect/internal/services"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{401, services.ErrAuth},
		{403, services.ErrAuth},
		{400, services.ErrValidation},
		{404, services.ErrValidation},
		{422, services.ErrValidation},
		{500, services.ErrTransient},
		{503, services.ErrTransient},
		{429, services.ErrTransient},
	}
	for _, tc := range cases {
		err := carrier.ClassifyStatus("dhl", "create shipment", tc.status, []byte("nope"))
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestClassifyStatusTruncatesBody(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	err := carrier.ClassifyStatus("dhl", "create shipment", 400, long)
	if len(err.Error()) > 500 {
		t.Fatalf("expected truncated message, got %d chars", len(err.Error()))
	}
}

func TestCleanPostalCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"11122", "11122"},
		{"DK-5220", "5220"},
		{"NO-1234", "1234"},
		{" 11122 ", "11122"},
		{"12-345", "12-345"},
		{"SE-", "SE-"},
	}
	for _, tc := range cases {
		if got := carrier.CleanPostalCode(tc.in); got != tc.want {
			t.Fatalf("CleanPostalCode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

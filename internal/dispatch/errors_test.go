package dispatch_test

import (
	"errors"
	"strings"
	"testing"

	"dispatchscan/internal/dispatch"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("connection refused")
	err := dispatch.Wrap(dispatch.ErrSubmissionFailed, "backend", "submit", "post scan", base)
	if !errors.Is(err, dispatch.ErrSubmissionFailed) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	for _, fragment := range []string{"backend", "submit", "post scan"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in error string %q", fragment, err.Error())
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := dispatch.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, dispatch.ErrSubmissionFailed) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "dispatch failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestCategory(t *testing.T) {
	cases := map[string]error{
		"input":      dispatch.Wrap(dispatch.ErrUserInput, "pipeline", "admit", "blank", nil),
		"validation": dispatch.Wrap(dispatch.ErrValidationRejected, "backend", "validate", "unknown order", nil),
		"device":     dispatch.Wrap(dispatch.ErrDeviceAcquisition, "capture", "open", "", errors.New("EBUSY")),
		"submission": errors.New("plain"),
	}
	for want, err := range cases {
		if got := dispatch.Category(err); got != want {
			t.Fatalf("Category(%v) = %q, want %q", err, got, want)
		}
	}
	if got := dispatch.Category(dispatch.ErrNoChannel); got != "input" {
		t.Fatalf("no channel should be input, got %q", got)
	}
	if dispatch.Category(nil) != "" {
		t.Fatal("nil error should have empty category")
	}
}

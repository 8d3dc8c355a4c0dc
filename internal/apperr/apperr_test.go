package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		kind Kind
	}{
		{Validation("bad input"), KindValidation},
		{Permission("no"), KindPermission},
		{NotFound("gone"), KindNotFound},
		{Conflict("dup"), KindConflict},
		{Unexpected("boom", errors.New("cause")), KindUnexpected},
		{errors.New("plain"), KindUnexpected},
		{nil, KindUnexpected},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.kind {
			t.Fatalf("KindOf(%v) = %v, want %v", tc.err, got, tc.kind)
		}
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NotFound("gone"))
	if !IsNotFound(wrapped) {
		t.Fatalf("expected wrapped error to stay not-found")
	}
	if IsConflict(wrapped) {
		t.Fatalf("wrapped not-found must not be conflict")
	}
}

func TestUnexpectedUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := Unexpected("save failed", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable via errors.Is")
	}
	if err.Error() != "save failed: disk full" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

package httperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindPredicatesDoNotOverlap(t *testing.T) {
	tests := []struct {
		err          error
		isBadRequest bool
		isNotFound   bool
		isConflict   bool
		isPrecond    bool
	}{
		{err: NewBadRequest("FLAG_INVALID", "flag invalid"), isBadRequest: true},
		{err: NewNotFound("VERSION_NOT_FOUND", "version not found"), isNotFound: true},
		{err: NewConflict("PUBLISH_IN_FLIGHT", "publish in flight"), isConflict: true},
		{err: NewFailedPrecondition("NO_ACTIVE_VERSION", "no active version"), isPrecond: true},
		{err: errors.New("plain"), isBadRequest: false},
	}
	for _, tt := range tests {
		if got := IsBadRequest(tt.err); got != tt.isBadRequest {
			t.Fatalf("IsBadRequest(%v)=%v", tt.err, got)
		}
		if got := IsNotFound(tt.err); got != tt.isNotFound {
			t.Fatalf("IsNotFound(%v)=%v", tt.err, got)
		}
		if got := IsConflict(tt.err); got != tt.isConflict {
			t.Fatalf("IsConflict(%v)=%v", tt.err, got)
		}
		if got := IsFailedPrecondition(tt.err); got != tt.isPrecond {
			t.Fatalf("IsFailedPrecondition(%v)=%v", tt.err, got)
		}
	}
}

func TestCodeSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("publish: %w", NewConflict("VERSION_NUMBER_COLLISION", "version number collision"))
	if !IsConflict(err) {
		t.Fatalf("expected conflict through wrap")
	}
	if Code(err) != "VERSION_NUMBER_COLLISION" {
		t.Fatalf("code=%q", Code(err))
	}
}

func TestConflictReferences(t *testing.T) {
	err := NewReferencedConflict("DRAFT_ITEM_REFERENCED", "item referenced by history", 3)
	refs, ok := ConflictReferences(err)
	if !ok || refs != 3 {
		t.Fatalf("refs=%d ok=%v", refs, ok)
	}
	if _, ok := ConflictReferences(errors.New("plain")); ok {
		t.Fatalf("expected no references on plain error")
	}
}

func TestPreconditionReasons(t *testing.T) {
	err := NewFailedPrecondition("PUBLISH_PRECONDITION_FAILED", "guard failed", "SCORECARD_WEIGHT_SUM_INVALID")
	reasons, ok := PreconditionReasons(err)
	if !ok || len(reasons) != 1 || reasons[0] != "SCORECARD_WEIGHT_SUM_INVALID" {
		t.Fatalf("reasons=%v ok=%v", reasons, ok)
	}
}

func TestCodeForUnknownErrorIsEmpty(t *testing.T) {
	if Code(errors.New("plain")) != "" {
		t.Fatalf("expected empty code")
	}
}

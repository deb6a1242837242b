package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("submit: %w", DuplicateReview("booking %d already reviewed", 7))
	if !errors.Is(err, ErrDuplicateReview) {
		t.Fatalf("expected duplicate review match")
	}
	if errors.Is(err, ErrNotEligible) {
		t.Fatalf("unexpected not eligible match")
	}
	if KindOf(err) != KindDuplicateReview {
		t.Fatalf("kind = %s", KindOf(err))
	}
	if DetailOf(err) != "booking 7 already reviewed" {
		t.Fatalf("detail = %q", DetailOf(err))
	}
}

func TestStorageWrapKeepsClassified(t *testing.T) {
	nf := NotFound("booking 1")
	if got := Storage(nf, "load"); got != error(nf) {
		t.Fatalf("classified error should pass through, got %v", got)
	}
	raw := errors.New("disk I/O error")
	wrapped := Storage(raw, "insert booking")
	if !errors.Is(wrapped, ErrStorage) || !errors.Is(wrapped, raw) {
		t.Fatalf("storage wrap lost chain: %v", wrapped)
	}
	if Storage(nil, "noop") != nil {
		t.Fatalf("nil must stay nil")
	}
	if KindOf(raw) != KindStorage {
		t.Fatalf("unclassified errors report storage")
	}
}

package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"courtline/internal/apperr"
)

func TestHasCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("start gate: %w", apperr.Validation(apperr.CodeUnknownGate, "gate %s not found", "nope"))
	if !apperr.HasCode(err, apperr.CodeUnknownGate) {
		t.Fatalf("expected unknown_gate in chain: %v", err)
	}
	if apperr.HasCode(err, apperr.CodeUnknownStatement) {
		t.Fatalf("unexpected code match")
	}
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("kind = %s", apperr.KindOf(err))
	}
}

func TestWithValidListsAlternatives(t *testing.T) {
	err := apperr.Validation(apperr.CodeUnknownGate, "gate %s not found", "x").WithValid([]string{"b", "a"})
	if err.Error() != "gate x not found (valid: a, b)" {
		t.Fatalf("message = %q", err.Error())
	}
	valid, _ := err.Details["valid"].([]string)
	if len(valid) != 2 || valid[0] != "a" {
		t.Fatalf("details = %v", err.Details)
	}
}

func TestKindHelpers(t *testing.T) {
	if !apperr.IsAlreadyDone(apperr.AlreadyDone(apperr.CodeAlreadyCompleted, "done")) {
		t.Fatalf("expected already done")
	}
	if !apperr.IsGameOver(apperr.Terminated("Nurse Hall")) {
		t.Fatalf("expected game over")
	}
	if apperr.KindOf(errors.New("plain")) != "" {
		t.Fatalf("plain errors have no kind")
	}
	cause := errors.New("bad json")
	c := apperr.Corrupt(apperr.CodeCorruptLog, "events.json", cause)
	if !errors.Is(c, cause) {
		t.Fatalf("corrupt error should unwrap to cause")
	}
}

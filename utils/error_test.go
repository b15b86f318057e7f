package utils

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorTaxonomyClassification(t *testing.T) {
	validation := NewValidationError("task name is required")
	conflict := NewStateConflict("Completed", "task is retained for audit")
	duplicate := &DuplicateCheckError{TaskId: 7, AssetId: 3}

	if !IsValidation(validation) || IsValidation(conflict) {
		t.Fatalf("validation classification broken")
	}
	if !IsStateConflict(conflict) || IsStateConflict(validation) {
		t.Fatalf("state conflict classification broken")
	}
	if !IsDuplicateCheck(duplicate) || IsDuplicateCheck(conflict) {
		t.Fatalf("duplicate classification broken")
	}
	if !IsNotFound(ErrorRecordNotFound) || IsNotFound(validation) {
		t.Fatalf("not found classification broken")
	}
}

func TestErrorTaxonomySurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("batch item 3: %w", &DuplicateCheckError{TaskId: 1, AssetId: 2})
	if !IsDuplicateCheck(wrapped) {
		t.Fatalf("wrapped duplicate not detected")
	}

	wrappedNotFound := fmt.Errorf("fetch task: %w", ErrorRecordNotFound)
	if !IsNotFound(wrappedNotFound) {
		t.Fatalf("wrapped not-found not detected")
	}
}

func TestStateConflictCarriesStatus(t *testing.T) {
	err := NewStateConflict("InProgress", "task is active; complete or abandon it first")
	var sc *StateConflictError
	if !errors.As(err, &sc) {
		t.Fatalf("expected StateConflictError")
	}
	if sc.CurrentStatus != "InProgress" {
		t.Fatalf("expected status InProgress, got %s", sc.CurrentStatus)
	}
}

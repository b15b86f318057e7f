package models

import (
	"errors"
	"strconv"
	"testing"
)

func TestRunBatch_FailuresDoNotAbortSiblings(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	result := RunBatch(items,
		func(n int) string { return "item " + strconv.Itoa(n) },
		func(n int) (*int, error) {
			if n%2 == 0 {
				return nil, errors.New("even numbers fail")
			}
			doubled := n * 2
			return &doubled, nil
		})

	if result.SuccessCount != 3 {
		t.Fatalf("expected success_count=3, got %d", result.SuccessCount)
	}
	if result.FailedCount != 2 {
		t.Fatalf("expected failed_count=2, got %d", result.FailedCount)
	}
	if len(result.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(result.Results))
	}
	if len(result.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(result.Errors))
	}

	// order preserved, indexes point at the original positions
	if *result.Results[0] != 2 || *result.Results[1] != 6 || *result.Results[2] != 10 {
		t.Fatalf("unexpected results: %v %v %v",
			*result.Results[0], *result.Results[1], *result.Results[2])
	}
	if result.Errors[0].Index != 1 || result.Errors[1].Index != 3 {
		t.Fatalf("unexpected error indexes: %d %d",
			result.Errors[0].Index, result.Errors[1].Index)
	}
	if result.Errors[0].Reference != "item 2" {
		t.Fatalf("unexpected reference: %q", result.Errors[0].Reference)
	}
	if result.Errors[0].Reason != "even numbers fail" {
		t.Fatalf("unexpected reason: %q", result.Errors[0].Reason)
	}
}

func TestRunBatch_AllFail(t *testing.T) {
	result := RunBatch([]string{"a", "b"},
		func(s string) string { return s },
		func(s string) (*string, error) {
			return nil, errors.New("nope")
		})

	if result.SuccessCount != 0 || result.FailedCount != 2 {
		t.Fatalf("expected 0/2, got %d/%d", result.SuccessCount, result.FailedCount)
	}
	if len(result.Results) != 0 {
		t.Fatalf("expected no results, got %d", len(result.Results))
	}
}

func TestRunBatch_Empty(t *testing.T) {
	result := RunBatch([]int{},
		func(n int) string { return "" },
		func(n int) (*int, error) { return &n, nil })

	if result.SuccessCount != 0 || result.FailedCount != 0 {
		t.Fatalf("expected empty result, got %d/%d", result.SuccessCount, result.FailedCount)
	}
}

package models

// BatchItemError pins a failure to its position in the submitted batch.
// Reference carries a human identifier (usually the asset id) so operators
// can spot the row without counting.
type BatchItemError struct {
	Index     int    `json:"index"`
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
}

type BatchResult[T any] struct {
	SuccessCount int              `json:"success_count"`
	FailedCount  int              `json:"failed_count"`
	Results      []*T             `json:"results"`
	Errors       []BatchItemError `json:"errors"`
}

// RunBatch applies run to every item in order. One item failing never aborts
// its siblings; failures are collected and reported alongside successes.
func RunBatch[In any, Out any](items []In,
	ref func(In) string,
	run func(In) (*Out, error),
) *BatchResult[Out] {

	result := BatchResult[Out]{
		Results: make([]*Out, 0, len(items)),
		Errors:  make([]BatchItemError, 0),
	}

	for i, item := range items {
		out, err := run(item)
		if err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, BatchItemError{
				Index:     i,
				Reference: ref(item),
				Reason:    err.Error(),
			})
			continue
		}
		result.SuccessCount++
		result.Results = append(result.Results, out)
	}

	return &result
}

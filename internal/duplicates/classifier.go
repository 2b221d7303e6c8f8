package duplicates

import (
	"context"
	"fmt"
)

// Submission is the new feedback being screened.
type Submission struct {
	Title  string
	Detail string
}

// Decision is the classifier's verdict. SimilarTo only holds ids of the
// candidates it was given.
type Decision struct {
	IsDuplicate bool
	SimilarTo   []int64
}

// Classifier decides whether a submission restates one of the candidates.
type Classifier interface {
	Classify(ctx context.Context, submission Submission, candidates []Candidate) (Decision, error)
}

// ClassifierError reports a failed, timed out or malformed classification.
type ClassifierError struct {
	Op  string
	Err error
}

func (e *ClassifierError) Error() string {
	return fmt.Sprintf("duplicate classifier: %s: %v", e.Op, e.Err)
}

func (e *ClassifierError) Unwrap() error {
	return e.Err
}

// NopClassifier never reports duplicates. It is used when semantic
// screening is disabled.
type NopClassifier struct{}

func (NopClassifier) Classify(context.Context, Submission, []Candidate) (Decision, error) {
	return Decision{}, nil
}

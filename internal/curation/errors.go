package curation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"huntcurator/internal/model"
)

var (
	ErrUnknownRow            = errors.New("unknown row number")
	ErrRowNotSelected        = errors.New("row is not part of the confirmed selection")
	ErrNoRubric              = errors.New("no rubric loaded")
	ErrReferenceGateRequired = errors.New("reference response has not passed the current rubric")
)

// RubricFormatError means the rubric text as a whole is unusable
type RubricFormatError struct {
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func (e *RubricFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rubric format: %s: %v", e.Reason, e.Err)
	}
	return "rubric format: " + e.Reason
}

func (e *RubricFormatError) Unwrap() error { return e.Err }

// RubricItemError points at one malformed element of the rubric array
type RubricItemError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

func (e *RubricItemError) Error() string {
	return fmt.Sprintf("rubric item %d: %s", e.Index, e.Reason)
}

// SelectionFullError is returned when adding to a full selection
type SelectionFullError struct {
	Size int `json:"size"`
}

func (e *SelectionFullError) Error() string {
	return fmt.Sprintf("selection already holds %d attempts", e.Size)
}

// CombinationError carries the breaking/passing split that was refused
type CombinationError struct {
	Breaking int `json:"breaking"`
	Passing  int `json:"passing"`
}

func (e *CombinationError) Error() string {
	return fmt.Sprintf("invalid combination: %d breaking, %d passing (need 4 breaking or 3 breaking + 1 passing)", e.Breaking, e.Passing)
}

// Tally counts automated votes for one criterion across a selection
type Tally struct {
	Pass int `json:"pass"`
	Fail int `json:"fail"`
}

// DiversityError means no criterion split the selection into PASS and FAIL
type DiversityError struct {
	Tally map[string]Tally `json:"tally"`
}

func (e *DiversityError) Error() string {
	ids := make([]string, 0, len(e.Tally))
	for id := range e.Tally {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		t := e.Tally[id]
		parts[i] = fmt.Sprintf("%s=%dP/%dF", id, t.Pass, t.Fail)
	}
	return "no criterion has both PASS and FAIL among selected attempts: " + strings.Join(parts, ", ")
}

// SelectionIncompleteError is returned when confirming fewer than four rows
type SelectionIncompleteError struct {
	Size int `json:"size"`
}

func (e *SelectionIncompleteError) Error() string {
	return fmt.Sprintf("selection has %d of %d attempts", e.Size, model.SelectionSize)
}

// IncompleteGradingError lists the displayed criteria a review left ungraded
type IncompleteGradingError struct {
	Row     int      `json:"row"`
	Missing []string `json:"missing"`
}

func (e *IncompleteGradingError) Error() string {
	return fmt.Sprintf("row %d: criteria without a grade: %s", e.Row, strings.Join(e.Missing, ", "))
}

// ExplanationTooShortError is returned for explanations under the minimum length
type ExplanationTooShortError struct {
	Row    int `json:"row"`
	Length int `json:"length"`
	Min    int `json:"min"`
}

func (e *ExplanationTooShortError) Error() string {
	return fmt.Sprintf("row %d: explanation has %d characters, need at least %d", e.Row, e.Length, e.Min)
}

// ReviewsIncompleteError is returned when revealing before every row is reviewed
type ReviewsIncompleteError struct {
	Missing int `json:"missing"`
}

func (e *ReviewsIncompleteError) Error() string {
	return fmt.Sprintf("%d selected attempts still need a review", e.Missing)
}

// WorkflowLockedError is returned when a review is changed after reveal
type WorkflowLockedError struct {
	Row   int                 `json:"row"`
	State model.WorkflowState `json:"state"`
}

func (e *WorkflowLockedError) Error() string {
	return fmt.Sprintf("row %d: reviews are locked in state %s", e.Row, e.State)
}

// InvalidTransitionError is returned for operations not allowed in the current state
type InvalidTransitionError struct {
	Op    string              `json:"op"`
	State model.WorkflowState `json:"state"`
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s in state %s", e.Op, e.State)
}

// ReferenceGateError lists the criteria the reference response did not pass
type ReferenceGateError struct {
	Failed  []string `json:"failed"`
	Missing []string `json:"missing"`
}

func (e *ReferenceGateError) Error() string {
	var parts []string
	if len(e.Failed) > 0 {
		parts = append(parts, "failed: "+strings.Join(e.Failed, ", "))
	}
	if len(e.Missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(e.Missing, ", "))
	}
	return "reference response did not pass all criteria (" + strings.Join(parts, "; ") + ")"
}

// Diagnostic returns the typed error carried by err, or nil if err holds
// none. Its fields are the details a curator needs to fix the input.
func Diagnostic(err error) error {
	targets := []interface{}{
		new(*RubricFormatError),
		new(*RubricItemError),
		new(*SelectionFullError),
		new(*CombinationError),
		new(*DiversityError),
		new(*SelectionIncompleteError),
		new(*IncompleteGradingError),
		new(*ExplanationTooShortError),
		new(*ReviewsIncompleteError),
		new(*WorkflowLockedError),
		new(*InvalidTransitionError),
		new(*ReferenceGateError),
	}
	for _, target := range targets {
		if errors.As(err, target) {
			return reflect.ValueOf(target).Elem().Interface().(error)
		}
	}
	return nil
}

// Kind classifies err into a stable label for metrics and API responses.
// Errors outside the curation taxonomy map to "internal".
func Kind(err error) string {
	var (
		formatErr     *RubricFormatError
		itemErr       *RubricItemError
		fullErr       *SelectionFullError
		comboErr      *CombinationError
		diversityErr  *DiversityError
		sizeErr       *SelectionIncompleteError
		gradingErr    *IncompleteGradingError
		explainErr    *ExplanationTooShortError
		reviewsErr    *ReviewsIncompleteError
		lockedErr     *WorkflowLockedError
		transitionErr *InvalidTransitionError
		gateErr       *ReferenceGateError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &formatErr):
		return "rubric_format"
	case errors.As(err, &itemErr):
		return "rubric_item"
	case errors.As(err, &fullErr):
		return "selection_full"
	case errors.As(err, &comboErr):
		return "combination"
	case errors.As(err, &diversityErr):
		return "diversity"
	case errors.As(err, &sizeErr):
		return "selection_incomplete"
	case errors.As(err, &gradingErr):
		return "incomplete_grading"
	case errors.As(err, &explainErr):
		return "explanation_too_short"
	case errors.As(err, &reviewsErr):
		return "reviews_incomplete"
	case errors.As(err, &lockedErr):
		return "workflow_locked"
	case errors.As(err, &transitionErr):
		return "invalid_transition"
	case errors.As(err, &gateErr):
		return "reference_gate"
	case errors.Is(err, ErrUnknownRow):
		return "unknown_row"
	case errors.Is(err, ErrRowNotSelected):
		return "row_not_selected"
	case errors.Is(err, ErrNoRubric):
		return "no_rubric"
	case errors.Is(err, ErrReferenceGateRequired):
		return "reference_gate_required"
	default:
		return "internal"
	}
}

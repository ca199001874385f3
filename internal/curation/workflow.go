package curation

import (
	"slices"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"huntcurator/internal/model"
)

// MinExplanationLength is the minimum trimmed length of a review explanation
const MinExplanationLength = 10

// NewCycle starts a cycle in SELECTING with an empty selection
func NewCycle(id string, now time.Time) model.Cycle {
	return model.Cycle{
		ID:        id,
		State:     model.StateSelecting,
		Selection: []int{},
		StartedAt: now,
	}
}

func requireState(c model.Cycle, op string, want model.WorkflowState) error {
	if c.State != want {
		return &InvalidTransitionError{Op: op, State: c.State}
	}
	return nil
}

// Confirm freezes a full, admissible selection and moves the cycle to REVIEWING
func Confirm(c model.Cycle, log []model.AttemptResult, now time.Time) (model.Cycle, error) {
	if err := requireState(c, "confirm selection", model.StateSelecting); err != nil {
		return c, err
	}
	if err := CheckCombination(log, c.Selection); err != nil {
		return c, err
	}
	c.State = model.StateReviewing
	c.Reviews = make(map[int]model.ReviewRecord, model.SelectionSize)
	c.ConfirmedAt = &now
	return c, nil
}

// ValidateReview checks that grades cover every displayed criterion with an
// explicit PASS or FAIL and that the explanation is long enough.
func ValidateReview(criteria []model.Criterion, row int, grades map[string]model.Grade, explanation string) error {
	var missing []string
	for _, cr := range criteria {
		if !grades[cr.ID].Valid() {
			missing = append(missing, cr.ID)
		}
	}
	if len(missing) > 0 {
		return &IncompleteGradingError{Row: row, Missing: missing}
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(explanation)); n < MinExplanationLength {
		return &ExplanationTooShortError{Row: row, Length: n, Min: MinExplanationLength}
	}
	return nil
}

// Judgment is FAIL if any criterion failed, else PASS
func Judgment(grades map[string]model.Grade) model.Grade {
	for _, g := range grades {
		if g == model.GradeFail {
			return model.GradeFail
		}
	}
	return model.GradePass
}

// RecordReview records (or overwrites) the review of a selected row.
// Only grades for displayed criteria are kept.
func RecordReview(c model.Cycle, criteria []model.Criterion, row int, grades map[string]model.Grade, explanation string, now time.Time) (model.Cycle, error) {
	switch c.State {
	case model.StateReviewing:
	case model.StateRevealed, model.StateSaved:
		return c, &WorkflowLockedError{Row: row, State: c.State}
	default:
		return c, &InvalidTransitionError{Op: "submit review", State: c.State}
	}
	if !slices.Contains(c.Selection, row) {
		return c, ErrRowNotSelected
	}
	if err := ValidateReview(criteria, row, grades, explanation); err != nil {
		return c, err
	}

	kept := make(map[string]model.Grade, len(criteria))
	for _, cr := range criteria {
		kept[cr.ID] = grades[cr.ID]
	}

	reviews := make(map[int]model.ReviewRecord, len(c.Reviews)+1)
	for r, rec := range c.Reviews {
		reviews[r] = rec
	}
	reviews[row] = model.ReviewRecord{
		RowNumber:       row,
		CriterionGrades: kept,
		Explanation:     strings.TrimSpace(explanation),
		Judgment:        Judgment(kept),
		SubmittedAt:     now,
	}
	c.Reviews = reviews
	return c, nil
}

// checkReviews requires one complete review per selected row against the
// criteria displayed now, which may differ from those at submission time.
func checkReviews(c model.Cycle, criteria []model.Criterion) error {
	missing := 0
	for _, row := range c.Selection {
		if _, ok := c.Reviews[row]; !ok {
			missing++
		}
	}
	if missing > 0 {
		return &ReviewsIncompleteError{Missing: missing}
	}
	for _, row := range sortedRows(c.Selection) {
		rec := c.Reviews[row]
		if err := ValidateReview(criteria, row, rec.CriterionGrades, rec.Explanation); err != nil {
			return err
		}
	}
	return nil
}

// RevealCycle locks all reviews and exposes the automated judgments
func RevealCycle(c model.Cycle, criteria []model.Criterion, now time.Time) (model.Cycle, error) {
	if err := requireState(c, "reveal", model.StateReviewing); err != nil {
		return c, err
	}
	if err := checkReviews(c, criteria); err != nil {
		return c, err
	}
	c.State = model.StateRevealed
	c.RevealedAt = &now
	return c, nil
}

// ValidateSave re-checks every save precondition without changing state
func ValidateSave(c model.Cycle, log []model.AttemptResult, criteria []model.Criterion) error {
	if err := requireState(c, "save", model.StateRevealed); err != nil {
		return err
	}
	if err := CheckCombination(log, c.Selection); err != nil {
		return err
	}
	if err := CheckDiversity(log, c.Selection); err != nil {
		return err
	}
	return checkReviews(c, criteria)
}

// CompleteCycle records a successful persist. Call only after the persistence
// collaborator confirmed the write.
func CompleteCycle(c model.Cycle, now time.Time) (model.Cycle, error) {
	if err := requireState(c, "mark saved", model.StateRevealed); err != nil {
		return c, err
	}
	c.State = model.StateSaved
	c.SavedAt = &now
	return c, nil
}

func sortedRows(rows []int) []int {
	out := slices.Clone(rows)
	sort.Ints(out)
	return out
}

package curation

import (
	"slices"

	"huntcurator/internal/model"
)

// Counts returns how many of rows are breaking and how many are passing
func Counts(log []model.AttemptResult, rows []int) model.CombinationCount {
	var c model.CombinationCount
	for _, row := range rows {
		if row < 0 || row >= len(log) {
			continue
		}
		if log[row].IsBreaking {
			c.Breaking++
		} else {
			c.Passing++
		}
	}
	return c
}

func admissible(c model.CombinationCount) bool {
	return (c.Breaking == 4 && c.Passing == 0) || (c.Breaking == 3 && c.Passing == 1)
}

// TrySelect adds row to sel. Sizes one to three are accepted freely; the
// combination policy is enforced only on the add that would reach four.
// Selecting a row that is already a member is a no-op.
func TrySelect(log []model.AttemptResult, sel []int, row int) ([]int, error) {
	if _, err := AttemptAt(log, row); err != nil {
		return sel, err
	}
	if slices.Contains(sel, row) {
		return sel, nil
	}
	if len(sel) >= model.SelectionSize {
		return sel, &SelectionFullError{Size: len(sel)}
	}

	next := append(slices.Clone(sel), row)
	if len(next) == model.SelectionSize {
		if c := Counts(log, next); !admissible(c) {
			return sel, &CombinationError{Breaking: c.Breaking, Passing: c.Passing}
		}
	}
	return next, nil
}

// RemoveRow removes row from sel. Removal is always allowed.
func RemoveRow(sel []int, row int) []int {
	out := make([]int, 0, len(sel))
	for _, r := range sel {
		if r != row {
			out = append(out, r)
		}
	}
	return out
}

// CheckCombination validates a full selection against the combination policy
func CheckCombination(log []model.AttemptResult, sel []int) error {
	if len(sel) != model.SelectionSize {
		return &SelectionIncompleteError{Size: len(sel)}
	}
	for _, row := range sel {
		if _, err := AttemptAt(log, row); err != nil {
			return err
		}
	}
	if c := Counts(log, sel); !admissible(c) {
		return &CombinationError{Breaking: c.Breaking, Passing: c.Passing}
	}
	return nil
}

// CheckDiversity requires at least one criterion to be graded PASS on one
// selected attempt and FAIL on another, using automated grades only. A
// selection with no automated criterion grades at all passes vacuously.
func CheckDiversity(log []model.AttemptResult, sel []int) error {
	tally := make(map[string]Tally)
	for _, row := range sel {
		a, err := AttemptAt(log, row)
		if err != nil {
			return err
		}
		for id, g := range a.AutomatedCriteriaGrades {
			t := tally[id]
			switch g {
			case model.GradePass:
				t.Pass++
			case model.GradeFail:
				t.Fail++
			default:
				continue
			}
			tally[id] = t
		}
	}
	if len(tally) == 0 {
		return nil
	}
	for _, t := range tally {
		if t.Pass > 0 && t.Fail > 0 {
			return nil
		}
	}
	return &DiversityError{Tally: tally}
}

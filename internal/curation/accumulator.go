package curation

import (
	"fmt"
	"time"

	"huntcurator/internal/model"
)

// AppendResults assigns row numbers to batch starting at len(log), in arrival
// order, and returns the extended log along with the new entries. The input
// log is never modified.
func AppendResults(log []model.AttemptResult, run int, batch []model.AttemptInput, now time.Time) ([]model.AttemptResult, []model.AttemptResult) {
	next := make([]model.AttemptResult, len(log), len(log)+len(batch))
	copy(next, log)

	offset := len(log)
	for i, in := range batch {
		next = append(next, model.AttemptResult{
			RowNumber:               offset + i,
			RunLocalID:              in.RunLocalID,
			Run:                     run,
			Model:                   in.Model,
			AutomatedScore:          copyScore(in.AutomatedScore),
			AutomatedCriteriaGrades: copyGrades(in.AutomatedCriteriaGrades),
			ResponseText:            in.ResponseText,
			ReasoningTrace:          in.ReasoningTrace,
			IsBreaking:              model.Breaking(in.AutomatedScore),
			AppendedAt:              now,
		})
	}
	return next, next[offset:]
}

// AttemptAt looks up a row by its number
func AttemptAt(log []model.AttemptResult, row int) (model.AttemptResult, error) {
	if row < 0 || row >= len(log) {
		return model.AttemptResult{}, fmt.Errorf("%w: %d", ErrUnknownRow, row)
	}
	return log[row], nil
}

func copyScore(s *int) *int {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyGrades(g map[string]model.Grade) map[string]model.Grade {
	if g == nil {
		return nil
	}
	out := make(map[string]model.Grade, len(g))
	for k, v := range g {
		out[k] = v
	}
	return out
}

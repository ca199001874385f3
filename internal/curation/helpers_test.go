package curation

import (
	"time"

	"huntcurator/internal/model"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func score(v int) *int { return &v }

// buildLog returns one attempt per flag; true means breaking (score 0).
func buildLog(breaking ...bool) []model.AttemptResult {
	batch := make([]model.AttemptInput, len(breaking))
	for i, b := range breaking {
		s := 1
		if b {
			s = 0
		}
		batch[i] = model.AttemptInput{
			RunLocalID:     i + 1,
			Model:          "model-a",
			AutomatedScore: score(s),
			ResponseText:   "response",
		}
	}
	log, _ := AppendResults(nil, 1, batch, testNow)
	return log
}

func passAll(criteria []model.Criterion) map[string]model.Grade {
	out := make(map[string]model.Grade, len(criteria))
	for _, c := range criteria {
		out[c.ID] = model.GradePass
	}
	return out
}

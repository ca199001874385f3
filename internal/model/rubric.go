package model

import "time"

// Grade is a per-criterion verdict
type Grade string

const (
	GradePass    Grade = "PASS"
	GradeFail    Grade = "FAIL"
	GradeMissing Grade = "MISSING" // Judge produced no verdict for the criterion
)

// Valid reports whether g is an explicit PASS or FAIL
func (g Grade) Valid() bool {
	return g == GradePass || g == GradeFail
}

// Criterion is one pass/fail rule of a rubric
type Criterion struct {
	ID          string `json:"id" bson:"id"`
	Description string `json:"description" bson:"description"`
}

// RubricSnapshot is the ordered criteria list captured at a point in time
type RubricSnapshot struct {
	Criteria   []Criterion `json:"criteria" bson:"criteria"`
	SourceText string      `json:"sourceText,omitempty" bson:"sourceText,omitempty"`
	CapturedAt time.Time   `json:"capturedAt" bson:"capturedAt"`
}

// IDs returns criterion ids in rubric order
func (r *RubricSnapshot) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, len(r.Criteria))
	for i, c := range r.Criteria {
		ids[i] = c.ID
	}
	return ids
}

package model

import "time"

// WorkflowState is the state of a review cycle
type WorkflowState string

const (
	StateSelecting WorkflowState = "SELECTING"
	StateReviewing WorkflowState = "REVIEWING"
	StateRevealed  WorkflowState = "REVEALED"
	StateSaved     WorkflowState = "SAVED"
)

// SelectionSize is the exact number of attempts a cycle reviews
const SelectionSize = 4

// ReviewRecord is the curator's grading of one selected row
type ReviewRecord struct {
	RowNumber       int              `json:"rowNumber" bson:"rowNumber"`
	CriterionGrades map[string]Grade `json:"criterionGrades" bson:"criterionGrades"`
	Explanation     string           `json:"explanation" bson:"explanation"`
	Judgment        Grade            `json:"judgment" bson:"judgment"`
	SubmittedAt     time.Time        `json:"submittedAt" bson:"submittedAt"`
}

// Cycle is one pass through SELECTING -> REVIEWING -> REVEALED -> SAVED
type Cycle struct {
	ID          string               `json:"id"`
	State       WorkflowState        `json:"state"`
	Selection   []int                `json:"selection"`
	Reviews     map[int]ReviewRecord `json:"reviews,omitempty"`
	StartedAt   time.Time            `json:"startedAt"`
	ConfirmedAt *time.Time           `json:"confirmedAt,omitempty"`
	RevealedAt  *time.Time           `json:"revealedAt,omitempty"`
	SavedAt     *time.Time           `json:"savedAt,omitempty"`
}

// ReferenceGate records the last reference-response check against the current rubric
type ReferenceGate struct {
	Passed    bool             `json:"passed"`
	Grades    map[string]Grade `json:"grades,omitempty"`
	CheckedAt *time.Time       `json:"checkedAt,omitempty"`
}

// Session is the whole curation state of one curator working on one task
type Session struct {
	ID            string          `json:"id"`
	CuratorID     string          `json:"curatorId"`
	InitialRubric *RubricSnapshot `json:"initialRubric"`
	CurrentRubric *RubricSnapshot `json:"currentRubric"`
	ActiveModel   string          `json:"activeModel,omitempty"`
	Runs          int             `json:"runs"`
	Attempts      []AttemptResult `json:"attempts"`
	Reference     ReferenceGate   `json:"reference"`
	Cycle         Cycle           `json:"cycle"`
	Version       int             `json:"version"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy so that callers can derive a new session value
// without aliasing the slices and maps of the old one.
func (s Session) Clone() Session {
	out := s
	out.InitialRubric = cloneRubric(s.InitialRubric)
	out.CurrentRubric = cloneRubric(s.CurrentRubric)
	if s.Attempts != nil {
		out.Attempts = make([]AttemptResult, len(s.Attempts))
		for i, a := range s.Attempts {
			out.Attempts[i] = a.Clone()
		}
	}
	out.Reference.Grades = cloneGrades(s.Reference.Grades)
	if s.Cycle.Selection != nil {
		out.Cycle.Selection = make([]int, len(s.Cycle.Selection))
		copy(out.Cycle.Selection, s.Cycle.Selection)
	}
	if s.Cycle.Reviews != nil {
		out.Cycle.Reviews = make(map[int]ReviewRecord, len(s.Cycle.Reviews))
		for row, rec := range s.Cycle.Reviews {
			rec.CriterionGrades = cloneGrades(rec.CriterionGrades)
			out.Cycle.Reviews[row] = rec
		}
	}
	return out
}

func cloneRubric(r *RubricSnapshot) *RubricSnapshot {
	if r == nil {
		return nil
	}
	c := *r
	c.Criteria = append([]Criterion(nil), r.Criteria...)
	return &c
}

func cloneGrades(g map[string]Grade) map[string]Grade {
	if g == nil {
		return nil
	}
	out := make(map[string]Grade, len(g))
	for k, v := range g {
		out[k] = v
	}
	return out
}

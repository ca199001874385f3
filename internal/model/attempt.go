package model

import "time"

// AttemptInput is one item of an attempt batch produced by the hunt executor
type AttemptInput struct {
	RunLocalID              int              `json:"runLocalId" validate:"min=1"`
	Model                   string           `json:"model"`
	AutomatedScore          *int             `json:"automatedScore" validate:"omitempty,min=0"`
	AutomatedCriteriaGrades map[string]Grade `json:"automatedCriteriaGrades,omitempty"`
	ResponseText            string           `json:"responseText"`
	ReasoningTrace          string           `json:"reasoningTrace,omitempty"`
}

// AttemptResult is an attempt after it has been appended to a session's log.
// RowNumber is the stable selection key; RunLocalID restarts every run.
type AttemptResult struct {
	RowNumber               int              `json:"rowNumber" bson:"rowNumber"`
	RunLocalID              int              `json:"runLocalId" bson:"runLocalId"`
	Run                     int              `json:"run" bson:"run"`
	Model                   string           `json:"model" bson:"model"`
	AutomatedScore          *int             `json:"automatedScore" bson:"automatedScore"`
	AutomatedCriteriaGrades map[string]Grade `json:"automatedCriteriaGrades,omitempty" bson:"automatedCriteriaGrades,omitempty"`
	ResponseText            string           `json:"responseText" bson:"responseText"`
	ReasoningTrace          string           `json:"reasoningTrace,omitempty" bson:"reasoningTrace,omitempty"`
	IsBreaking              bool             `json:"isBreaking" bson:"isBreaking"`
	Redacted                bool             `json:"redacted,omitempty" bson:"-"` // automated judgment withheld from this view
	AppendedAt              time.Time        `json:"appendedAt" bson:"appendedAt"`
}

// Breaking reports whether a score denotes breaking the target behavior.
// An absent score is never breaking.
func Breaking(score *int) bool {
	return score != nil && *score == 0
}

// Clone copies the score pointer and grade map so the copy shares nothing
func (a AttemptResult) Clone() AttemptResult {
	if a.AutomatedScore != nil {
		v := *a.AutomatedScore
		a.AutomatedScore = &v
	}
	a.AutomatedCriteriaGrades = cloneGrades(a.AutomatedCriteriaGrades)
	return a
}

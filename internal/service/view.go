package service

import (
	"time"

	"huntcurator/internal/curation"
	"huntcurator/internal/model"
)

// SessionView is what a curator may see of a session at this moment
type SessionView struct {
	ID              string                 `json:"id"`
	CuratorID       string                 `json:"curatorId"`
	InitialRubric   *model.RubricSnapshot  `json:"initialRubric"`
	CurrentRubric   *model.RubricSnapshot  `json:"currentRubric"`
	MissingCriteria []string               `json:"missingCriteria"`
	ActiveModel     string                 `json:"activeModel,omitempty"`
	Runs            int                    `json:"runs"`
	Attempts        []model.AttemptResult  `json:"attempts"`
	Reference       model.ReferenceGate    `json:"reference"`
	Cycle           model.Cycle            `json:"cycle"`
	Combination     model.CombinationCount `json:"combination"`
	Version         int                    `json:"version"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

// NewSessionView redacts automated judgments that must stay hidden
func NewSessionView(s model.Session) *SessionView {
	missing := curation.MissingInSession(s)
	if missing == nil {
		missing = []string{}
	}
	v := &SessionView{
		ID:              s.ID,
		CuratorID:       s.CuratorID,
		InitialRubric:   s.InitialRubric,
		CurrentRubric:   s.CurrentRubric,
		MissingCriteria: missing,
		ActiveModel:     s.ActiveModel,
		Runs:            s.Runs,
		Attempts:        curation.VisibleAttempts(s),
		Reference:       s.Reference,
		Cycle:           s.Cycle,
		Version:         s.Version,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
	if s.Cycle.State != model.StateReviewing {
		v.Combination = curation.Counts(s.Attempts, s.Cycle.Selection)
	}
	return v
}

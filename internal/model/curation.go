package model

import "time"

// PersistRequest is the payload handed to the persistence collaborator on save.
// One document per cycle, keyed by cycle id.
type PersistRequest struct {
	CycleID   string           `json:"cycleId" bson:"_id"`
	SessionID string           `json:"sessionId" bson:"sessionId"`
	CuratorID string           `json:"curatorId" bson:"curatorId"`
	Model     string           `json:"model" bson:"model"`
	Rubric    []Criterion      `json:"rubric" bson:"rubric"`
	Attempts  []AttemptResult  `json:"attempts" bson:"attempts"`
	Reviews   []ReviewRecord   `json:"reviews" bson:"reviews"`
	Combo     CombinationCount `json:"combination" bson:"combination"`
	SavedAt   time.Time        `json:"savedAt" bson:"savedAt"`
}

// CombinationCount is the breaking/passing split of a selection
type CombinationCount struct {
	Breaking int `json:"breaking" bson:"breaking"`
	Passing  int `json:"passing" bson:"passing"`
}

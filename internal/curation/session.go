package curation

import (
	"time"

	"huntcurator/internal/model"
)

// The functions below are the only way a model.Session changes. Each takes a
// session value and returns a new one; the input is left untouched, so the
// caller may keep it for undo or discard the result on error.

// NewSession extracts the rubric strictly and captures it as both the
// initial and the current snapshot.
func NewSession(id, curatorID, rubricText, cycleID string, now time.Time) (model.Session, error) {
	criteria, err := ExtractRubric(rubricText)
	if err != nil {
		return model.Session{}, err
	}
	s := model.Session{
		ID:            id,
		CuratorID:     curatorID,
		InitialRubric: snapshot(criteria, rubricText, now),
		CurrentRubric: snapshot(criteria, rubricText, now),
		Attempts:      []model.AttemptResult{},
		Cycle:         NewCycle(cycleID, now),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return s, nil
}

func snapshot(criteria []model.Criterion, text string, now time.Time) *model.RubricSnapshot {
	return &model.RubricSnapshot{
		Criteria:   append([]model.Criterion(nil), criteria...),
		SourceText: text,
		CapturedAt: now,
	}
}

func criteriaOf(s model.Session) []model.Criterion {
	if s.CurrentRubric == nil {
		return nil
	}
	return s.CurrentRubric.Criteria
}

// UpdateRubric re-captures the current rubric. The initial snapshot is set
// only if it was never captured. The reference gate is cleared because it
// was checked against the previous rubric. Returns initial ids now missing.
func UpdateRubric(s model.Session, rubricText string, now time.Time) (model.Session, []string, error) {
	criteria, err := ExtractRubric(rubricText)
	if err != nil {
		return s, nil, err
	}
	next := s.Clone()
	next.CurrentRubric = snapshot(criteria, rubricText, now)
	if next.InitialRubric == nil {
		next.InitialRubric = snapshot(criteria, rubricText, now)
	}
	next.Reference = model.ReferenceGate{}
	return next, MissingInSession(next), nil
}

// MissingInSession compares the current rubric to the initial one
func MissingInSession(s model.Session) []string {
	if s.InitialRubric == nil || s.CurrentRubric == nil {
		return nil
	}
	return MissingCriteria(s.CurrentRubric.Criteria, s.InitialRubric.Criteria)
}

// RecordReference stores the reference grades and whether they pass the
// current rubric. The returned session is valid even when the gate error is
// non-nil: a failed check is still a recorded check.
func RecordReference(s model.Session, grades map[string]model.Grade, now time.Time) (model.Session, error) {
	criteria := criteriaOf(s)
	if len(criteria) == 0 {
		return s, ErrNoRubric
	}
	gateErr := CheckReference(criteria, grades)

	next := s.Clone()
	next.Reference = model.ReferenceGate{
		Passed:    gateErr == nil,
		Grades:    copyGrades(grades),
		CheckedAt: &now,
	}
	return next, gateErr
}

// AppendRun adds one executor run to the log. A run for a different model
// than the active one invalidates the accumulated rows, so the log is reset
// (and the cycle restarted under newCycleID) before appending.
func AppendRun(s model.Session, modelName string, batch []model.AttemptInput, newCycleID string, now time.Time) (model.Session, []model.AttemptResult, error) {
	if len(criteriaOf(s)) == 0 {
		return s, nil, ErrNoRubric
	}
	if !s.Reference.Passed {
		return s, nil, ErrReferenceGateRequired
	}

	next := s.Clone()
	if next.ActiveModel != "" && modelName != "" && modelName != next.ActiveModel {
		next = ResetResults(next, newCycleID, now)
	}
	if modelName != "" {
		next.ActiveModel = modelName
	}

	items := make([]model.AttemptInput, len(batch))
	for i, in := range batch {
		if in.Model == "" {
			in.Model = next.ActiveModel
		}
		items[i] = in
	}

	next.Runs++
	var added []model.AttemptResult
	next.Attempts, added = AppendResults(next.Attempts, next.Runs, items, now)
	return next, added, nil
}

// ResetResults clears the log and row counter. The current cycle references
// rows that no longer exist, so it is replaced by a fresh one.
func ResetResults(s model.Session, newCycleID string, now time.Time) model.Session {
	next := s.Clone()
	next.Attempts = []model.AttemptResult{}
	next.Runs = 0
	next.ActiveModel = ""
	next.Cycle = NewCycle(newCycleID, now)
	return next
}

// Select adds a row to the current cycle's selection
func Select(s model.Session, row int) (model.Session, error) {
	if err := requireState(s.Cycle, "change selection", model.StateSelecting); err != nil {
		return s, err
	}
	sel, err := TrySelect(s.Attempts, s.Cycle.Selection, row)
	if err != nil {
		return s, err
	}
	next := s.Clone()
	next.Cycle.Selection = sel
	return next, nil
}

// Deselect removes a row from the current cycle's selection
func Deselect(s model.Session, row int) (model.Session, error) {
	if err := requireState(s.Cycle, "change selection", model.StateSelecting); err != nil {
		return s, err
	}
	next := s.Clone()
	next.Cycle.Selection = RemoveRow(next.Cycle.Selection, row)
	return next, nil
}

// ConfirmSelection is the explicit confirmation gate: once it succeeds the
// selection is frozen until the cycle is restarted.
func ConfirmSelection(s model.Session, now time.Time) (model.Session, error) {
	c, err := Confirm(s.Cycle, s.Attempts, now)
	if err != nil {
		return s, err
	}
	next := s.Clone()
	next.Cycle = c
	return next, nil
}

// SubmitReview records the curator's grading of a selected row
func SubmitReview(s model.Session, row int, grades map[string]model.Grade, explanation string, now time.Time) (model.Session, error) {
	c, err := RecordReview(s.Cycle, criteriaOf(s), row, grades, explanation, now)
	if err != nil {
		return s, err
	}
	next := s.Clone()
	next.Cycle = c
	return next, nil
}

// Reveal exposes the automated judgments and locks the reviews
func Reveal(s model.Session, now time.Time) (model.Session, error) {
	c, err := RevealCycle(s.Cycle, criteriaOf(s), now)
	if err != nil {
		return s, err
	}
	next := s.Clone()
	next.Cycle = c
	return next, nil
}

// PrepareSave validates every save precondition and builds the payload for
// the persistence collaborator. The session does not change; call MarkSaved
// once the payload has been stored.
func PrepareSave(s model.Session, now time.Time) (*model.PersistRequest, error) {
	criteria := criteriaOf(s)
	if err := ValidateSave(s.Cycle, s.Attempts, criteria); err != nil {
		return nil, err
	}

	rows := sortedRows(s.Cycle.Selection)
	req := &model.PersistRequest{
		CycleID:   s.Cycle.ID,
		SessionID: s.ID,
		CuratorID: s.CuratorID,
		Model:     s.ActiveModel,
		Rubric:    append([]model.Criterion(nil), criteria...),
		Attempts:  make([]model.AttemptResult, 0, len(rows)),
		Reviews:   make([]model.ReviewRecord, 0, len(rows)),
		Combo:     Counts(s.Attempts, rows),
		SavedAt:   now,
	}
	for _, row := range rows {
		a := s.Attempts[row]
		a.AutomatedCriteriaGrades = copyGrades(a.AutomatedCriteriaGrades)
		req.Attempts = append(req.Attempts, a)

		rec := s.Cycle.Reviews[row]
		rec.CriterionGrades = copyGrades(rec.CriterionGrades)
		req.Reviews = append(req.Reviews, rec)
	}
	return req, nil
}

// MarkSaved moves a revealed cycle to SAVED
func MarkSaved(s model.Session, now time.Time) (model.Session, error) {
	c, err := CompleteCycle(s.Cycle, now)
	if err != nil {
		return s, err
	}
	next := s.Clone()
	next.Cycle = c
	return next, nil
}

// RestartCycle abandons the current cycle and opens a new one in SELECTING.
// The log is kept. A saved cycle stays persisted.
func RestartCycle(s model.Session, newCycleID string, now time.Time) model.Session {
	next := s.Clone()
	next.Cycle = NewCycle(newCycleID, now)
	return next
}

// VisibleAttempts returns the log as the curator may see it. While a cycle
// is REVIEWING, the automated score and grades of the selected rows are
// withheld so they cannot influence the human grading. Withheld rows are
// marked Redacted; their IsBreaking is meaningless.
func VisibleAttempts(s model.Session) []model.AttemptResult {
	out := make([]model.AttemptResult, len(s.Attempts))
	copy(out, s.Attempts)
	if s.Cycle.State != model.StateReviewing {
		return out
	}
	for _, row := range s.Cycle.Selection {
		if row < 0 || row >= len(out) {
			continue
		}
		out[row].AutomatedScore = nil
		out[row].AutomatedCriteriaGrades = nil
		out[row].IsBreaking = false
		out[row].Redacted = true
	}
	return out
}

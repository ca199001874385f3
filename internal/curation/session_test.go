package curation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huntcurator/internal/model"
)

func newGatedSession(t *testing.T) model.Session {
	t.Helper()
	s, err := NewSession("s1", "curator-1", threeCriteria, "cycle-1", testNow)
	require.NoError(t, err)
	s, err = RecordReference(s, map[string]model.Grade{"C1": "PASS", "C2": "PASS", "C3": "PASS"}, testNow)
	require.NoError(t, err)
	return s
}

func runOf(breaking ...bool) []model.AttemptInput {
	batch := make([]model.AttemptInput, len(breaking))
	for i, b := range breaking {
		s := 2
		if b {
			s = 0
		}
		batch[i] = model.AttemptInput{RunLocalID: i + 1, AutomatedScore: score(s), ResponseText: "r"}
	}
	return batch
}

func TestNewSession_CapturesInitialRubric(t *testing.T) {
	s, err := NewSession("s1", "curator-1", threeCriteria, "cycle-1", testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"C1", "C2", "C3"}, s.InitialRubric.IDs())
	assert.Equal(t, []string{"C1", "C2", "C3"}, s.CurrentRubric.IDs())
	assert.Equal(t, model.StateSelecting, s.Cycle.State)

	_, err = NewSession("s1", "curator-1", `[{"id":"C1","criteria1":"x"}]`, "cycle-1", testNow)
	var formatErr *RubricFormatError
	assert.ErrorAs(t, err, &formatErr)
}

func TestUpdateRubric_KeepsInitialAndReportsMissing(t *testing.T) {
	s := newGatedSession(t)

	next, missing, err := UpdateRubric(s, `[{"id":"C1","criteria1":"x"},{"id":"C2b","criteria1":"y"},{"id":"C3","criteria1":"z"}]`, testNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"C2"}, missing)
	assert.Equal(t, []string{"C1", "C2", "C3"}, next.InitialRubric.IDs())
	assert.Equal(t, []string{"C1", "C2b", "C3"}, next.CurrentRubric.IDs())
	assert.False(t, next.Reference.Passed, "gate must be re-run for the new rubric")
	assert.True(t, s.Reference.Passed, "input session untouched")

	_, _, err = UpdateRubric(s, "garbage", testNow)
	assert.Error(t, err)
}

func TestRecordReference_Gate(t *testing.T) {
	s, err := NewSession("s1", "curator-1", threeCriteria, "cycle-1", testNow)
	require.NoError(t, err)

	_, _, err = AppendRun(s, "model-a", runOf(true), "c2", testNow)
	assert.ErrorIs(t, err, ErrReferenceGateRequired)

	failed, err := RecordReference(s, map[string]model.Grade{"C1": "PASS", "C2": "FAIL"}, testNow)
	var gateErr *ReferenceGateError
	require.ErrorAs(t, err, &gateErr)
	assert.False(t, failed.Reference.Passed)
	assert.NotNil(t, failed.Reference.CheckedAt)

	passed, err := RecordReference(failed, map[string]model.Grade{"C1": "PASS", "C2": "PASS", "C3": "PASS"}, testNow)
	require.NoError(t, err)
	assert.True(t, passed.Reference.Passed)
}

func TestScenarioB_Combination(t *testing.T) {
	s := newGatedSession(t)
	s, _, err := AppendRun(s, "model-a", runOf(true, true, true, false, false), "c", testNow)
	require.NoError(t, err)

	ok := s
	for _, row := range []int{0, 1, 2, 3} {
		ok, err = Select(ok, row)
		require.NoError(t, err)
	}
	assert.Equal(t, model.CombinationCount{Breaking: 3, Passing: 1}, Counts(ok.Attempts, ok.Cycle.Selection))

	bad := s
	for _, row := range []int{0, 1, 3} {
		bad, err = Select(bad, row)
		require.NoError(t, err)
	}
	_, err = Select(bad, 4)
	var comboErr *CombinationError
	require.ErrorAs(t, err, &comboErr)
	assert.Equal(t, 2, comboErr.Breaking)
	assert.Equal(t, 2, comboErr.Passing)
}

func TestScenarioC_DiversityBlocksSave(t *testing.T) {
	s := newGatedSession(t)
	batch := runOf(true, true, true, true)
	for i := range batch {
		batch[i].AutomatedCriteriaGrades = map[string]model.Grade{"C1": "PASS", "C2": "PASS"}
	}
	s, _, err := AppendRun(s, "model-a", batch, "c", testNow)
	require.NoError(t, err)

	for row := 0; row < 4; row++ {
		s, err = Select(s, row)
		require.NoError(t, err)
	}
	s, err = ConfirmSelection(s, testNow)
	require.NoError(t, err)
	for row := 0; row < 4; row++ {
		s, err = SubmitReview(s, row, passAll(s.CurrentRubric.Criteria), "complete review text", testNow)
		require.NoError(t, err)
	}
	s, err = Reveal(s, testNow)
	require.NoError(t, err)

	req, err := PrepareSave(s, testNow)
	var divErr *DiversityError
	require.ErrorAs(t, err, &divErr)
	assert.Nil(t, req)
	assert.Equal(t, model.StateRevealed, s.Cycle.State)
}

func TestScenarioD_ResetRestartsRowNumbers(t *testing.T) {
	s := newGatedSession(t)
	s, first, err := AppendRun(s, "model-a", runOf(true, true, true, false), "c", testNow)
	require.NoError(t, err)
	assert.Equal(t, 0, first[0].RowNumber)

	s, second, err := AppendRun(s, "model-a", runOf(true, true, true, true), "c", testNow)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5, 6, 7}, []int{second[0].RowNumber, second[1].RowNumber, second[2].RowNumber, second[3].RowNumber})
	assert.Equal(t, []int{1, 2, 3, 4}, []int{second[0].RunLocalID, second[1].RunLocalID, second[2].RunLocalID, second[3].RunLocalID})
	assert.Equal(t, 2, s.Runs)

	s, err = Select(s, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Attempts[5].RunLocalID)

	s = ResetResults(s, "cycle-2", testNow)
	assert.Empty(t, s.Attempts)
	assert.Empty(t, s.Cycle.Selection)
	assert.Equal(t, "cycle-2", s.Cycle.ID)

	s, third, err := AppendRun(s, "model-a", runOf(true), "c", testNow)
	require.NoError(t, err)
	assert.Equal(t, 0, third[0].RowNumber)
}

func TestAppendRun_ModelChangeResetsLog(t *testing.T) {
	s := newGatedSession(t)
	s, _, err := AppendRun(s, "model-a", runOf(true, true), "c", testNow)
	require.NoError(t, err)
	s, err = Select(s, 1)
	require.NoError(t, err)

	s, added, err := AppendRun(s, "model-b", runOf(false), "cycle-b", testNow)
	require.NoError(t, err)
	assert.Equal(t, 0, added[0].RowNumber)
	assert.Equal(t, "model-b", added[0].Model)
	assert.Len(t, s.Attempts, 1)
	assert.Equal(t, "cycle-b", s.Cycle.ID)
	assert.Empty(t, s.Cycle.Selection)
}

func TestFullCycle_SaveAndVisibility(t *testing.T) {
	s := newGatedSession(t)
	batch := runOf(true, true, true, false, false)
	batch[0].AutomatedCriteriaGrades = map[string]model.Grade{"C1": "FAIL", "C2": "PASS"}
	batch[3].AutomatedCriteriaGrades = map[string]model.Grade{"C1": "PASS", "C2": "PASS"}
	s, _, err := AppendRun(s, "model-a", batch, "c", testNow)
	require.NoError(t, err)

	for _, row := range []int{3, 0, 2, 1} {
		s, err = Select(s, row)
		require.NoError(t, err)
	}
	s, err = ConfirmSelection(s, testNow)
	require.NoError(t, err)

	_, err = Deselect(s, 0)
	var transErr *InvalidTransitionError
	require.ErrorAs(t, err, &transErr, "confirmed selection is frozen")

	visible := VisibleAttempts(s)
	assert.Nil(t, visible[0].AutomatedScore)
	assert.Nil(t, visible[0].AutomatedCriteriaGrades)
	assert.True(t, visible[0].Redacted)
	assert.False(t, visible[4].Redacted, "unselected rows stay visible")
	assert.NotNil(t, s.Attempts[0].AutomatedScore, "redaction does not touch the log")

	_, err = Reveal(s, testNow)
	var incompleteErr *ReviewsIncompleteError
	require.ErrorAs(t, err, &incompleteErr)
	assert.Equal(t, 4, incompleteErr.Missing)

	for _, row := range s.Cycle.Selection {
		s, err = SubmitReview(s, row, passAll(s.CurrentRubric.Criteria), "complete review text", testNow)
		require.NoError(t, err)
	}
	s, err = Reveal(s, testNow)
	require.NoError(t, err)
	assert.NotNil(t, VisibleAttempts(s)[0].AutomatedScore)
	assert.False(t, VisibleAttempts(s)[0].Redacted)

	req, err := PrepareSave(s, testNow)
	require.NoError(t, err)
	assert.Equal(t, "cycle-1", req.CycleID)
	assert.Equal(t, []int{0, 1, 2, 3}, []int{req.Attempts[0].RowNumber, req.Attempts[1].RowNumber, req.Attempts[2].RowNumber, req.Attempts[3].RowNumber})
	assert.Len(t, req.Reviews, 4)
	assert.Equal(t, model.CombinationCount{Breaking: 3, Passing: 1}, req.Combo)
	assert.Equal(t, model.StateRevealed, s.Cycle.State, "prepare does not transition")

	s, err = MarkSaved(s, testNow)
	require.NoError(t, err)
	assert.Equal(t, model.StateSaved, s.Cycle.State)

	_, err = PrepareSave(s, testNow)
	assert.ErrorAs(t, err, &transErr)

	s = RestartCycle(s, "cycle-2", testNow)
	assert.Equal(t, model.StateSelecting, s.Cycle.State)
	assert.Len(t, s.Attempts, 5)
}

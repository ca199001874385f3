package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"huntcurator/internal/cache"
	"huntcurator/internal/curation"
	"huntcurator/internal/model"
)

const testRubric = `[{"id":"C1","criteria1":"names the capital"},{"id":"C2","criteria1":"cites a source"},{"id":"C3","criteria1":"stays short"}]`

type fakeRepo struct {
	mu    sync.Mutex
	saved []*model.PersistRequest
	fail  error
}

func (r *fakeRepo) Save(_ context.Context, req *model.PersistRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.saved = append(r.saved, req)
	return nil
}

func (r *fakeRepo) GetByCycle(_ context.Context, cycleID string) (*model.PersistRequest, error) {
	for _, req := range r.saved {
		if req.CycleID == cycleID {
			return req, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) ListByCurator(_ context.Context, curatorID string) ([]*model.PersistRequest, error) {
	var out []*model.PersistRequest
	for _, req := range r.saved {
		if req.CuratorID == curatorID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListBySession(_ context.Context, sessionID string) ([]*model.PersistRequest, error) {
	var out []*model.PersistRequest
	for _, req := range r.saved {
		if req.SessionID == sessionID {
			out = append(out, req)
		}
	}
	return out, nil
}

type fakeJudge struct {
	grades map[string]model.Grade
	err    error
}

func (j *fakeJudge) GradeReference(context.Context, []model.Criterion, string) (map[string]model.Grade, error) {
	return j.grades, j.err
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *recordingBroadcaster) Publish(_ string, msgType string, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, msgType)
}

func (b *recordingBroadcaster) has(msgType string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.events {
		if e == msgType {
			return true
		}
	}
	return false
}

type fixture struct {
	svc   *CurationService
	repo  *fakeRepo
	judge *fakeJudge
	bc    *recordingBroadcaster
}

func newFixture() *fixture {
	repo := &fakeRepo{}
	judge := &fakeJudge{grades: map[string]model.Grade{"C1": model.GradePass, "C2": model.GradePass, "C3": model.GradePass}}
	bc := &recordingBroadcaster{}
	svc := NewCurationService(cache.NewMemorySessionStore(16, time.Hour), repo, judge)
	svc.SetBroadcaster(bc)

	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }
	return &fixture{svc: svc, repo: repo, judge: judge, bc: bc}
}

func intp(v int) *int { return &v }

func batchOf(breaking ...bool) []model.AttemptInput {
	out := make([]model.AttemptInput, len(breaking))
	for i, b := range breaking {
		s, c1 := 3, model.GradePass
		if b {
			s, c1 = 0, model.GradeFail
		}
		out[i] = model.AttemptInput{
			RunLocalID:              i + 1,
			AutomatedScore:          intp(s),
			AutomatedCriteriaGrades: map[string]model.Grade{"C1": c1, "C2": model.GradePass},
			ResponseText:            "attempt",
		}
	}
	return out
}

var allPass = map[string]model.Grade{"C1": model.GradePass, "C2": model.GradePass, "C3": model.GradePass}

// readySession creates a session, passes the gate and loads five attempts
func (f *fixture) readySession(t *testing.T) *model.Session {
	t.Helper()
	ctx := context.Background()
	sess, err := f.svc.CreateSession(ctx, "cur-1", testRubric)
	require.NoError(t, err)
	_, err = f.svc.CheckReference(ctx, "cur-1", sess.ID, "Paris, per the atlas")
	require.NoError(t, err)
	sess, _, err = f.svc.AppendRun(ctx, "cur-1", sess.ID, "model-a", batchOf(true, true, false, true, false))
	require.NoError(t, err)
	return sess
}

func TestCreateSession_RejectsBadRubric(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateSession(context.Background(), "cur-1", `[{"id":"C1","criteria1":"x"}]`)
	var fe *curation.RubricFormatError
	assert.ErrorAs(t, err, &fe)
}

func TestGetSession_Ownership(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess, err := f.svc.CreateSession(ctx, "cur-1", testRubric)
	require.NoError(t, err)

	_, err = f.svc.GetSession(ctx, "cur-2", sess.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.GetSession(ctx, "cur-1", "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAppendRun_RequiresReferenceGate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess, err := f.svc.CreateSession(ctx, "cur-1", testRubric)
	require.NoError(t, err)

	_, _, err = f.svc.AppendRun(ctx, "cur-1", sess.ID, "model-a", batchOf(true))
	assert.ErrorIs(t, err, curation.ErrReferenceGateRequired)

	f.judge.grades = map[string]model.Grade{"C1": model.GradePass, "C2": model.GradeFail, "C3": model.GradePass}
	stored, err := f.svc.CheckReference(ctx, "cur-1", sess.ID, "resp")
	var gate *curation.ReferenceGateError
	require.ErrorAs(t, err, &gate)
	assert.Equal(t, []string{"C2"}, gate.Failed)
	require.NotNil(t, stored)
	assert.False(t, stored.Reference.Passed)
	assert.NotNil(t, stored.Reference.CheckedAt)
}

func TestCheckReference_JudgeError(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess, err := f.svc.CreateSession(ctx, "cur-1", testRubric)
	require.NoError(t, err)

	f.judge.err = errors.New("timeout")
	_, err = f.svc.CheckReference(ctx, "cur-1", sess.ID, "resp")
	assert.Error(t, err)

	got, err := f.svc.GetSession(ctx, "cur-1", sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Reference.CheckedAt)
}

func TestFullCycle_PersistsThenSaves(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := f.readySession(t)
	id := sess.ID
	assert.True(t, f.bc.has(EventAttemptsAdded))

	for _, row := range []int{0, 1, 2, 3} {
		_, err := f.svc.Select(ctx, "cur-1", id, row)
		require.NoError(t, err)
	}
	_, err := f.svc.Select(ctx, "cur-1", id, 4)
	var full *curation.SelectionFullError
	assert.ErrorAs(t, err, &full)

	sess, err = f.svc.Confirm(ctx, "cur-1", id)
	require.NoError(t, err)
	assert.Equal(t, model.StateReviewing, sess.Cycle.State)

	view := NewSessionView(*sess)
	assert.Nil(t, view.Attempts[0].AutomatedScore)
	assert.NotNil(t, view.Attempts[4].AutomatedScore)

	_, err = f.svc.Reveal(ctx, "cur-1", id)
	var incomplete *curation.ReviewsIncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, 4, incomplete.Missing)

	for _, row := range []int{0, 1, 2, 3} {
		_, err := f.svc.SubmitReview(ctx, "cur-1", id, row, allPass, "reads fine to me")
		require.NoError(t, err)
	}
	sess, err = f.svc.Reveal(ctx, "cur-1", id)
	require.NoError(t, err)
	assert.Equal(t, model.StateRevealed, sess.Cycle.State)
	assert.True(t, f.bc.has(EventRevealed))

	_, err = f.svc.SubmitReview(ctx, "cur-1", id, 0, allPass, "changed my mind")
	var locked *curation.WorkflowLockedError
	assert.ErrorAs(t, err, &locked)

	f.repo.fail = errors.New("mongo down")
	_, err = f.svc.Save(ctx, "cur-1", id)
	assert.ErrorIs(t, err, ErrPersistFailed)
	sess, err = f.svc.GetSession(ctx, "cur-1", id)
	require.NoError(t, err)
	assert.Equal(t, model.StateRevealed, sess.Cycle.State)

	f.repo.fail = nil
	req, err := f.svc.Save(ctx, "cur-1", id)
	require.NoError(t, err)
	assert.Equal(t, model.CombinationCount{Breaking: 3, Passing: 1}, req.Combo)
	assert.Len(t, req.Reviews, 4)
	assert.True(t, f.bc.has(EventSaved))

	sess, err = f.svc.GetSession(ctx, "cur-1", id)
	require.NoError(t, err)
	assert.Equal(t, model.StateSaved, sess.Cycle.State)

	list, err := f.svc.ListCurations(ctx, "cur-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, sess.Cycle.ID, list[0].CycleID)

	list, err = f.svc.SessionCurations(ctx, "cur-1", id)
	require.NoError(t, err)
	require.Len(t, list, 1)

	got, err := f.svc.GetCuration(ctx, "cur-1", sess.Cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, id, got.SessionID)
	_, err = f.svc.GetCuration(ctx, "cur-2", sess.Cycle.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.GetCuration(ctx, "cur-1", "no-such-cycle")
	assert.ErrorIs(t, err, ErrCurationNotFound)

	sess, err = f.svc.Restart(ctx, "cur-1", id)
	require.NoError(t, err)
	assert.Equal(t, model.StateSelecting, sess.Cycle.State)
	assert.Empty(t, sess.Cycle.Selection)
	assert.Len(t, sess.Attempts, 5)
}

func TestSave_RequiresReveal(t *testing.T) {
	f := newFixture()
	sess := f.readySession(t)

	_, err := f.svc.Save(context.Background(), "cur-1", sess.ID)
	var tr *curation.InvalidTransitionError
	assert.ErrorAs(t, err, &tr)
	assert.Empty(t, f.repo.saved)
}

func TestUpdateRubric_ReportsMissingAndClearsGate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := f.readySession(t)

	next, missing, err := f.svc.UpdateRubric(ctx, "cur-1", sess.ID,
		`[{"id":"C1","criteria1":"a"},{"id":"C3","criteria1":"b"},{"id":"C4","criteria1":"c"}]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"C2"}, missing)
	assert.False(t, next.Reference.Passed)

	got, err := f.svc.MissingCriteria(ctx, "cur-1", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"C2"}, got)
}

func TestResetResults_RestartsRows(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := f.readySession(t)

	sess, err := f.svc.ResetResults(ctx, "cur-1", sess.ID)
	require.NoError(t, err)
	assert.Empty(t, sess.Attempts)

	_, added, err := f.svc.AppendRun(ctx, "cur-1", sess.ID, "model-b", batchOf(true, false))
	require.NoError(t, err)
	assert.Equal(t, 0, added[0].RowNumber)
	assert.Equal(t, 1, added[1].RowNumber)
}

func TestVersionIncrementsPerMutation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := f.readySession(t)
	v := sess.Version

	sess, err := f.svc.Select(ctx, "cur-1", sess.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, v+1, sess.Version)

	_, err = f.svc.Select(ctx, "cur-1", sess.ID, 99)
	assert.ErrorIs(t, err, curation.ErrUnknownRow)
	got, err := f.svc.GetSession(ctx, "cur-1", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, v+1, got.Version)
}

func TestSessionLocks_DropEntriesWhenReleased(t *testing.T) {
	l := sessionLocks{m: make(map[string]*sessionLock)}

	unlockA := l.lock("a")
	assert.Equal(t, 1, l.size())

	acquired := make(chan func())
	go func() { acquired <- l.lock("a") }()
	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.m["a"] != nil && l.m["a"].refs == 2
	}, time.Second, 5*time.Millisecond)

	unlockA()
	unlockB := <-acquired
	assert.Equal(t, 1, l.size(), "entry kept while a waiter holds it")
	unlockB()
	assert.Zero(t, l.size())
}

func TestSessionCurations_RequiresOwnership(t *testing.T) {
	f := newFixture()
	sess := f.readySession(t)

	list, err := f.svc.SessionCurations(context.Background(), "cur-1", sess.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.svc.SessionCurations(context.Background(), "cur-2", sess.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestConcurrentSelectsAreSerialized(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := f.readySession(t)

	var wg sync.WaitGroup
	for row := 0; row < 5; row++ {
		wg.Add(1)
		go func(row int) {
			defer wg.Done()
			_, _ = f.svc.Select(ctx, "cur-1", sess.ID, row)
		}(row)
	}
	wg.Wait()

	assert.Zero(t, f.svc.locks.size(), "released locks are dropped")

	got, err := f.svc.GetSession(ctx, "cur-1", sess.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(got.Cycle.Selection), model.SelectionSize)
	if len(got.Cycle.Selection) == model.SelectionSize {
		assert.NoError(t, curation.CheckCombination(got.Attempts, got.Cycle.Selection))
	}
}

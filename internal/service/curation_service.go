package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"huntcurator/internal/cache"
	"huntcurator/internal/curation"
	"huntcurator/internal/metrics"
	"huntcurator/internal/model"
	"huntcurator/internal/repository"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrForbidden        = errors.New("belongs to another curator")
	ErrPersistFailed    = errors.New("failed to persist curation")
	ErrCurationNotFound = errors.New("curation not found")
)

// CurationService runs the curation workflow for stored sessions.
// Operations on one session are serialized; different sessions run in parallel.
type CurationService struct {
	store       cache.SessionStore
	repo        repository.CurationRepo
	judge       ReferenceJudge
	broadcaster Broadcaster

	locks sessionLocks
	now   func() time.Time
	newID func() string
}

// NewCurationService creates a new curation service
func NewCurationService(store cache.SessionStore, repo repository.CurationRepo, judge ReferenceJudge) *CurationService {
	return &CurationService{
		store: store,
		repo:  repo,
		judge: judge,
		locks: sessionLocks{m: make(map[string]*sessionLock)},
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// SetBroadcaster sets the broadcaster for real-time updates
func (s *CurationService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// sessionLocks hands out one mutex per session id. An entry lives only
// while someone holds or waits for it.
type sessionLocks struct {
	mu sync.Mutex
	m  map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func (l *sessionLocks) lock(id string) func() {
	l.mu.Lock()
	e, ok := l.m[id]
	if !ok {
		e = &sessionLock{}
		l.m[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.m, id)
		}
		l.mu.Unlock()
	}
}

func (l *sessionLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

// CreateSession extracts the rubric and opens a session for the curator
func (s *CurationService) CreateSession(ctx context.Context, curatorID, rubricText string) (*model.Session, error) {
	now := s.now()
	sess, err := curation.NewSession(s.newID(), curatorID, rubricText, s.newID(), now)
	if err != nil {
		s.reject("create_session", "", err)
		return nil, err
	}
	sess.Version = 1
	if err := s.store.Save(ctx, &sess); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	metrics.Transitions.WithLabelValues(string(sess.Cycle.State)).Inc()
	slog.Info("session created",
		"session_id", sess.ID,
		"cycle_id", sess.Cycle.ID,
		"curator_id", curatorID,
		"criteria", len(sess.CurrentRubric.Criteria))
	return &sess, nil
}

// GetSession loads a session owned by the curator
func (s *CurationService) GetSession(ctx context.Context, curatorID, id string) (*model.Session, error) {
	return s.load(ctx, curatorID, id)
}

// UpdateRubric re-extracts the rubric and reports initial criteria now missing
func (s *CurationService) UpdateRubric(ctx context.Context, curatorID, id, rubricText string) (*model.Session, []string, error) {
	var missing []string
	sess, err := s.mutate(ctx, "update_rubric", curatorID, id, func(cur model.Session, now time.Time) (model.Session, error) {
		next, m, err := curation.UpdateRubric(cur, rubricText, now)
		missing = m
		return next, err
	})
	if err != nil {
		return nil, nil, err
	}
	if len(missing) > 0 {
		slog.Warn("rubric update dropped initial criteria", "session_id", id, "missing", missing)
	}
	return sess, missing, nil
}

// MissingCriteria lists initial criterion ids absent from the current rubric
func (s *CurationService) MissingCriteria(ctx context.Context, curatorID, id string) ([]string, error) {
	sess, err := s.load(ctx, curatorID, id)
	if err != nil {
		return nil, err
	}
	return curation.MissingInSession(*sess), nil
}

// CheckReference grades a reference response with the judge and records the
// result. A failed gate is stored and returned alongside the gate error.
func (s *CurationService) CheckReference(ctx context.Context, curatorID, id, responseText string) (*model.Session, error) {
	return s.recordReference(ctx, curatorID, id, func(cur model.Session) (map[string]model.Grade, error) {
		return s.judge.GradeReference(ctx, cur.CurrentRubric.Criteria, responseText)
	})
}

// RecordReferenceGrades records reference grades produced elsewhere
func (s *CurationService) RecordReferenceGrades(ctx context.Context, curatorID, id string, grades map[string]model.Grade) (*model.Session, error) {
	return s.recordReference(ctx, curatorID, id, func(model.Session) (map[string]model.Grade, error) {
		return grades, nil
	})
}

func (s *CurationService) recordReference(ctx context.Context, curatorID, id string, grade func(model.Session) (map[string]model.Grade, error)) (*model.Session, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	cur, err := s.load(ctx, curatorID, id)
	if err != nil {
		return nil, err
	}
	if cur.CurrentRubric == nil || len(cur.CurrentRubric.Criteria) == 0 {
		s.reject("check_reference", id, curation.ErrNoRubric)
		return nil, curation.ErrNoRubric
	}

	grades, err := grade(*cur)
	if err != nil {
		return nil, err
	}

	next, gateErr := curation.RecordReference(*cur, grades, s.now())
	if gateErr != nil {
		s.reject("check_reference", id, gateErr)
	}
	if err := s.commit(ctx, "check_reference", cur, &next); err != nil {
		return nil, err
	}
	return &next, gateErr
}

// AppendRun appends one executor run to the session log
func (s *CurationService) AppendRun(ctx context.Context, curatorID, id, modelName string, batch []model.AttemptInput) (*model.Session, []model.AttemptResult, error) {
	var added []model.AttemptResult
	sess, err := s.mutate(ctx, "append_run", curatorID, id, func(cur model.Session, now time.Time) (model.Session, error) {
		next, a, err := curation.AppendRun(cur, modelName, batch, s.newID(), now)
		added = a
		return next, err
	})
	if err != nil {
		return nil, nil, err
	}
	metrics.AttemptsAppended.Add(float64(len(added)))
	slog.Info("run appended",
		"session_id", id,
		"run", sess.Runs,
		"model", sess.ActiveModel,
		"added", len(added),
		"log_size", len(sess.Attempts))
	s.publish(id, EventAttemptsAdded, added)
	return sess, added, nil
}

// ResetResults clears the log and restarts the cycle
func (s *CurationService) ResetResults(ctx context.Context, curatorID, id string) (*model.Session, error) {
	return s.mutate(ctx, "reset_results", curatorID, id, func(cur model.Session, now time.Time) (model.Session, error) {
		return curation.ResetResults(cur, s.newID(), now), nil
	})
}

// Select adds a row to the selection
func (s *CurationService) Select(ctx context.Context, curatorID, id string, row int) (*model.Session, error) {
	return s.mutate(ctx, "select", curatorID, id, func(cur model.Session, _ time.Time) (model.Session, error) {
		return curation.Select(cur, row)
	})
}

// Deselect removes a row from the selection
func (s *CurationService) Deselect(ctx context.Context, curatorID, id string, row int) (*model.Session, error) {
	return s.mutate(ctx, "deselect", curatorID, id, func(cur model.Session, _ time.Time) (model.Session, error) {
		return curation.Deselect(cur, row)
	})
}

// Confirm freezes the selection and starts the review
func (s *CurationService) Confirm(ctx context.Context, curatorID, id string) (*model.Session, error) {
	return s.mutate(ctx, "confirm", curatorID, id, func(cur model.Session, now time.Time) (model.Session, error) {
		return curation.ConfirmSelection(cur, now)
	})
}

// SubmitReview records the curator's grades for a selected row
func (s *CurationService) SubmitReview(ctx context.Context, curatorID, id string, row int, grades map[string]model.Grade, explanation string) (*model.Session, error) {
	sess, err := s.mutate(ctx, "submit_review", curatorID, id, func(cur model.Session, now time.Time) (model.Session, error) {
		return curation.SubmitReview(cur, row, grades, explanation, now)
	})
	if err != nil {
		return nil, err
	}
	s.publish(id, EventReviewSubmitted, sess.Cycle.Reviews[row])
	return sess, nil
}

// Reveal exposes automated judgments and locks the reviews
func (s *CurationService) Reveal(ctx context.Context, curatorID, id string) (*model.Session, error) {
	sess, err := s.mutate(ctx, "reveal", curatorID, id, func(cur model.Session, now time.Time) (model.Session, error) {
		return curation.Reveal(cur, now)
	})
	if err != nil {
		return nil, err
	}
	revealed := make([]model.AttemptResult, 0, len(sess.Cycle.Selection))
	for _, row := range sess.Cycle.Selection {
		revealed = append(revealed, sess.Attempts[row])
	}
	s.publish(id, EventRevealed, revealed)
	return sess, nil
}

// Save validates the revealed cycle, persists it, and only then marks it
// SAVED. A persistence failure leaves the cycle REVEALED so Save can be retried.
func (s *CurationService) Save(ctx context.Context, curatorID, id string) (*model.PersistRequest, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	cur, err := s.load(ctx, curatorID, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	req, err := curation.PrepareSave(*cur, now)
	if err != nil {
		s.reject("save", id, err)
		return nil, err
	}

	if err := s.repo.Save(ctx, req); err != nil {
		metrics.Saves.WithLabelValues("failed").Inc()
		slog.Error("persist curation failed", "session_id", id, "cycle_id", req.CycleID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	metrics.Saves.WithLabelValues("ok").Inc()

	next, err := curation.MarkSaved(*cur, now)
	if err != nil {
		return nil, err
	}
	if err := s.commit(ctx, "save", cur, &next); err != nil {
		return nil, err
	}
	s.publish(id, EventSaved, req)
	return req, nil
}

// Restart abandons the current cycle and opens a new one
func (s *CurationService) Restart(ctx context.Context, curatorID, id string) (*model.Session, error) {
	return s.mutate(ctx, "restart", curatorID, id, func(cur model.Session, now time.Time) (model.Session, error) {
		return curation.RestartCycle(cur, s.newID(), now), nil
	})
}

// ListCurations returns the curator's saved cycles, newest first
func (s *CurationService) ListCurations(ctx context.Context, curatorID string) ([]*model.PersistRequest, error) {
	list, err := s.repo.ListByCurator(ctx, curatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list curations: %w", err)
	}
	if list == nil {
		list = []*model.PersistRequest{}
	}
	return list, nil
}

// SessionCurations returns the saved cycles of one session, newest first
func (s *CurationService) SessionCurations(ctx context.Context, curatorID, id string) ([]*model.PersistRequest, error) {
	if _, err := s.load(ctx, curatorID, id); err != nil {
		return nil, err
	}
	list, err := s.repo.ListBySession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list session curations: %w", err)
	}
	if list == nil {
		list = []*model.PersistRequest{}
	}
	return list, nil
}

// GetCuration returns one saved cycle. It does not need the live session,
// which may have expired from the store.
func (s *CurationService) GetCuration(ctx context.Context, curatorID, cycleID string) (*model.PersistRequest, error) {
	req, err := s.repo.GetByCycle(ctx, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get curation: %w", err)
	}
	if req == nil {
		return nil, ErrCurationNotFound
	}
	if req.CuratorID != curatorID {
		return nil, ErrForbidden
	}
	return req, nil
}

func (s *CurationService) load(ctx context.Context, curatorID, id string) (*model.Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	if sess.CuratorID != curatorID {
		return nil, ErrForbidden
	}
	return sess, nil
}

// mutate loads, applies fn, and commits under the session lock
func (s *CurationService) mutate(ctx context.Context, op, curatorID, id string, fn func(model.Session, time.Time) (model.Session, error)) (*model.Session, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	cur, err := s.load(ctx, curatorID, id)
	if err != nil {
		return nil, err
	}
	next, err := fn(*cur, s.now())
	if err != nil {
		s.reject(op, id, err)
		return nil, err
	}
	if err := s.commit(ctx, op, cur, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

func (s *CurationService) commit(ctx context.Context, op string, prev, next *model.Session) error {
	next.Version = prev.Version + 1
	next.UpdatedAt = s.now()
	if err := s.store.Save(ctx, next); err != nil {
		slog.Error("store session failed", "session_id", next.ID, "op", op, "error", err)
		return fmt.Errorf("failed to store session: %w", err)
	}

	if prev.Cycle.ID != next.Cycle.ID || prev.Cycle.State != next.Cycle.State {
		metrics.Transitions.WithLabelValues(string(next.Cycle.State)).Inc()
		slog.Info("workflow transition",
			"session_id", next.ID,
			"cycle_id", next.Cycle.ID,
			"op", op,
			"from", prev.Cycle.State,
			"to", next.Cycle.State)
	}
	s.publish(next.ID, EventSessionUpdated, NewSessionView(*next))
	return nil
}

func (s *CurationService) reject(op, id string, err error) {
	kind := curation.Kind(err)
	metrics.Rejections.WithLabelValues(op, kind).Inc()
	slog.Info("operation rejected", "session_id", id, "op", op, "kind", kind, "error", err)
}

func (s *CurationService) publish(id, msgType string, payload interface{}) {
	if s.broadcaster != nil {
		s.broadcaster.Publish(id, msgType, payload)
	}
}

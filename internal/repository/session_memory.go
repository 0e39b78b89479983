package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"CoParent/internal/catalog"
	"CoParent/internal/model"
	pkgerrors "CoParent/pkg/errors"
)

// MemorySessionStore 进程内会话存储，用于本地运行和测试
type MemorySessionStore struct {
	catalog  *catalog.Catalog
	sessions map[string]*model.OnboardingSession
	now      func() time.Time
	mu       sync.Mutex
	nextID   int64
}

func NewMemorySessionStore(cat *catalog.Catalog) *MemorySessionStore {
	return &MemorySessionStore{
		catalog:  cat,
		sessions: make(map[string]*model.OnboardingSession),
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Get(_ context.Context, sessionID string) (*model.OnboardingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, pkgerrors.OnboardingSessionNotFound
	}
	return sess.Clone(), nil
}

func (s *MemorySessionStore) Create(_ context.Context) (*model.OnboardingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.nextID++
	sess := &model.OnboardingSession{
		BaseModel:          model.BaseModel{ID: s.nextID, CreatedAt: now, UpdatedAt: now},
		SessionID:          uuid.NewString(),
		Answers:            model.OnboardingAnswers{},
		CurrentQuestionKey: firstKey(s.catalog),
	}
	s.sessions[sess.SessionID] = sess
	return sess.Clone(), nil
}

func (s *MemorySessionStore) Advance(_ context.Context, sessionID, key, value string) (*RecordResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, pkgerrors.OnboardingSessionNotFound
	}

	now := s.now()
	t, err := applyAdvance(s.catalog, sess, key, value, now)
	if err != nil {
		return nil, err
	}
	return s.commit(sess, t, now), nil
}

func (s *MemorySessionStore) RecordAnswer(_ context.Context, sessionID, key, value string) (*RecordResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, pkgerrors.OnboardingSessionNotFound
	}

	now := s.now()
	t, err := applyAnswer(s.catalog, sess, key, value, now)
	if err != nil {
		return nil, err
	}
	return s.commit(sess, t, now), nil
}

func (s *MemorySessionStore) Skip(_ context.Context, sessionID, key string) (*RecordResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, pkgerrors.OnboardingSessionNotFound
	}

	t, err := applySkip(s.catalog, sess, key)
	if err != nil {
		return nil, err
	}
	return s.commit(sess, t, s.now()), nil
}

func (s *MemorySessionStore) MarkCompleted(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return false, pkgerrors.OnboardingSessionNotFound
	}
	if sess.Completed {
		return false, nil
	}

	now := s.now()
	sess.Completed = true
	sess.CompletedAt = &now
	sess.UpdatedAt = now
	sess.Version++
	return true, nil
}

// commit 调用方持有锁
func (s *MemorySessionStore) commit(sess *model.OnboardingSession, t *transition, now time.Time) *RecordResult {
	sess.Answers = t.answers
	sess.CurrentQuestionKey = t.next
	sess.UpdatedAt = now
	sess.Version++
	return &RecordResult{Session: sess.Clone(), Advanced: t.advanced}
}

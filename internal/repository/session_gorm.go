package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"CoParent/internal/catalog"
	"CoParent/internal/model"
	pkgerrors "CoParent/pkg/errors"
	"CoParent/pkg/logger"
)

// 并发冲突时的重读次数，超过说明同一会话被异常高频写入
const maxCASAttempts = 5

var ErrConcurrentUpdate = errors.New("onboarding session was updated concurrently")

// GormSessionStore PostgreSQL 会话存储，以 version 列做乐观锁
type GormSessionStore struct {
	db      *gorm.DB
	catalog *catalog.Catalog
	now     func() time.Time
}

func NewGormSessionStore(db *gorm.DB, cat *catalog.Catalog) *GormSessionStore {
	return &GormSessionStore{db: db, catalog: cat, now: time.Now}
}

func (s *GormSessionStore) Get(ctx context.Context, sessionID string) (*model.OnboardingSession, error) {
	var sess model.OnboardingSession
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Take(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.OnboardingSessionNotFound
		}
		return nil, fmt.Errorf("failed to query onboarding session: %w", err)
	}
	return &sess, nil
}

func (s *GormSessionStore) Create(ctx context.Context) (*model.OnboardingSession, error) {
	sess := &model.OnboardingSession{
		SessionID:          uuid.NewString(),
		Answers:            model.OnboardingAnswers{},
		CurrentQuestionKey: firstKey(s.catalog),
	}
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, fmt.Errorf("failed to create onboarding session: %w", err)
	}
	return sess, nil
}

func (s *GormSessionStore) Advance(ctx context.Context, sessionID, key, value string) (*RecordResult, error) {
	return s.compareAndSet(ctx, sessionID, func(sess *model.OnboardingSession, now time.Time) (*transition, error) {
		return applyAdvance(s.catalog, sess, key, value, now)
	})
}

func (s *GormSessionStore) RecordAnswer(ctx context.Context, sessionID, key, value string) (*RecordResult, error) {
	return s.compareAndSet(ctx, sessionID, func(sess *model.OnboardingSession, now time.Time) (*transition, error) {
		return applyAnswer(s.catalog, sess, key, value, now)
	})
}

func (s *GormSessionStore) Skip(ctx context.Context, sessionID, key string) (*RecordResult, error) {
	return s.compareAndSet(ctx, sessionID, func(sess *model.OnboardingSession, _ time.Time) (*transition, error) {
		return applySkip(s.catalog, sess, key)
	})
}

// compareAndSet 读取快照、计算新状态，并仅在 version 与 current_question_key 都未变化时提交；
// 冲突则重读，重读后的快照由 apply 重新校验
func (s *GormSessionStore) compareAndSet(
	ctx context.Context,
	sessionID string,
	apply func(*model.OnboardingSession, time.Time) (*transition, error),
) (*RecordResult, error) {
	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		sess, err := s.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		now := s.now()
		t, err := apply(sess, now)
		if err != nil {
			return nil, err
		}

		var next interface{} = gorm.Expr("NULL")
		if t.next != nil {
			next = *t.next
		}

		tx := s.db.WithContext(ctx).
			Model(&model.OnboardingSession{}).
			Where("session_id = ? AND version = ? AND completed = ?", sessionID, sess.Version, false)
		if sess.CurrentQuestionKey != nil {
			tx = tx.Where("current_question_key = ?", *sess.CurrentQuestionKey)
		} else {
			tx = tx.Where("current_question_key IS NULL")
		}

		result := tx.Updates(map[string]interface{}{
				"answers":              t.answers,
				"current_question_key": next,
				"version":              gorm.Expr("version + 1"),
				"updated_at":           now,
			})
		if result.Error != nil {
			return nil, fmt.Errorf("failed to update onboarding session: %w", result.Error)
		}

		if result.RowsAffected == 1 {
			sess.Answers = t.answers
			sess.CurrentQuestionKey = t.next
			sess.Version++
			sess.UpdatedAt = now
			return &RecordResult{Session: sess, Advanced: t.advanced}, nil
		}

		logger.Logger.Debug("Onboarding session CAS conflict, retrying",
			logger.SessionID(sessionID),
			zap.Int64("version", sess.Version),
			zap.Int("attempt", attempt),
		)
	}

	return nil, ErrConcurrentUpdate
}

func (s *GormSessionStore) MarkCompleted(ctx context.Context, sessionID string) (bool, error) {
	now := s.now()
	result := s.db.WithContext(ctx).
		Model(&model.OnboardingSession{}).
		Where("session_id = ? AND completed = ?", sessionID, false).
		Updates(map[string]interface{}{
			"completed":    true,
			"completed_at": now,
			"version":      gorm.Expr("version + 1"),
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark onboarding session completed: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	// 未更新：会话不存在，或已被其他请求标记完成
	if _, err := s.Get(ctx, sessionID); err != nil {
		return false, err
	}
	return false, nil
}

package repository

import (
	"context"
	"time"

	"CoParent/internal/catalog"
	"CoParent/internal/model"
	pkgerrors "CoParent/pkg/errors"
)

// SessionStore 引导会话存储
//
// Advance、RecordAnswer、Skip、MarkCompleted 对同一会话的并发调用是原子的：
// 同一个问题的两次并发 Advance 只有一次成功，另一次被拒绝且不修改会话，
// MarkCompleted 只有一个调用方能拿到 transitioned=true。
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*model.OnboardingSession, error)
	Create(ctx context.Context) (*model.OnboardingSession, error)
	// Advance 仅当 key 仍是当前问题时记录并推进；否则 OutOfOrder，已答完时 InvalidTransition
	Advance(ctx context.Context, sessionID, key, value string) (*RecordResult, error)
	// RecordAnswer key 为当前问题时记录并推进；key 已作答时原位覆盖、不推进；其余情况 OutOfOrder
	RecordAnswer(ctx context.Context, sessionID, key, value string) (*RecordResult, error)
	// Skip 跳过当前的可选问题，不记录答案
	Skip(ctx context.Context, sessionID, key string) (*RecordResult, error)
	MarkCompleted(ctx context.Context, sessionID string) (bool, error)
}

// RecordResult 写入后的会话快照
type RecordResult struct {
	Session  *model.OnboardingSession
	Advanced bool // 本次调用推进了 current_question_key
}

// transition 一次写入的计算结果，由各存储实现以 CAS 方式提交
type transition struct {
	answers  model.OnboardingAnswers
	next     *string
	advanced bool
}

// applyAnswer 纯函数：根据当前会话快照计算记录答案后的状态
func applyAnswer(cat *catalog.Catalog, sess *model.OnboardingSession, key, value string, now time.Time) (*transition, error) {
	if err := checkWritable(cat, sess, key); err != nil {
		return nil, err
	}

	_, answered := sess.Answers.Get(key)
	switch {
	case sess.CurrentKey() == key:
		next, err := nextKey(cat, key)
		if err != nil {
			return nil, err
		}
		return &transition{
			answers:  sess.Answers.Clone().Set(key, value, now),
			next:     next,
			advanced: true,
		}, nil
	case answered:
		return &transition{
			answers: sess.Answers.Clone().Set(key, value, now),
			next:    sess.CurrentQuestionKey,
		}, nil
	default:
		return nil, pkgerrors.OnboardingAnswerOutOfOrder
	}
}

// applyAdvance 只接受当前问题的答案，不走覆盖分支
func applyAdvance(cat *catalog.Catalog, sess *model.OnboardingSession, key, value string, now time.Time) (*transition, error) {
	if err := checkCurrent(cat, sess, key); err != nil {
		return nil, err
	}

	next, err := nextKey(cat, key)
	if err != nil {
		return nil, err
	}
	return &transition{
		answers:  sess.Answers.Clone().Set(key, value, now),
		next:     next,
		advanced: true,
	}, nil
}

// applySkip 只允许跳过当前问题
func applySkip(cat *catalog.Catalog, sess *model.OnboardingSession, key string) (*transition, error) {
	if err := checkCurrent(cat, sess, key); err != nil {
		return nil, err
	}

	next, err := nextKey(cat, key)
	if err != nil {
		return nil, err
	}
	return &transition{answers: sess.Answers.Clone(), next: next, advanced: true}, nil
}

func checkWritable(cat *catalog.Catalog, sess *model.OnboardingSession, key string) error {
	if sess.Completed {
		return pkgerrors.OnboardingSessionCompleted
	}
	if !cat.Has(key) {
		return pkgerrors.OnboardingQuestionUnknown
	}
	return nil
}

// checkCurrent 最后一题已记录但尚未标记完成时同样视为已完成
func checkCurrent(cat *catalog.Catalog, sess *model.OnboardingSession, key string) error {
	if err := checkWritable(cat, sess, key); err != nil {
		return err
	}
	if sess.CurrentQuestionKey == nil {
		return pkgerrors.OnboardingSessionCompleted
	}
	if *sess.CurrentQuestionKey != key {
		return pkgerrors.OnboardingAnswerOutOfOrder
	}
	return nil
}

func nextKey(cat *catalog.Catalog, key string) (*string, error) {
	q, ok, err := cat.Next(key)
	if err != nil {
		return nil, pkgerrors.OnboardingQuestionUnknown
	}
	if !ok {
		return nil, nil
	}
	return &q.Key, nil
}

func firstKey(cat *catalog.Catalog) *string {
	key := cat.First().Key
	return &key
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"CoParent/internal/catalog"
	"CoParent/internal/model"
	"CoParent/internal/repository"
	pkgerrors "CoParent/pkg/errors"
	"CoParent/pkg/logger"
	"CoParent/pkg/metrics"
	"CoParent/pkg/snowflake"
)

// 完成副作用与请求解耦，客户端断开也要执行完
const sideEffectTimeout = 15 * time.Second

// CompletionPublisher 完成通知投递
type CompletionPublisher interface {
	PublishOnboardingCompleted(ctx context.Context, msg *model.OnboardingCompletedMessage) error
}

// OnboardingOptions 构造依赖
type OnboardingOptions struct {
	Catalog   *catalog.Catalog
	Sessions  repository.SessionStore
	Accounts  repository.UserAccounts
	Profiles  repository.ProfileWriter
	Publisher CompletionPublisher // 可选
	Phraser   Phraser             // 可选，默认静态分块
	// Validators 为空时使用 DefaultValidators
	Validators Validators
	// RestartOnUnknownSession 未知 session_id 时新建会话，而不是返回 404
	RestartOnUnknownSession bool
}

type OnboardingService struct {
	catalog    *catalog.Catalog
	sessions   repository.SessionStore
	accounts   repository.UserAccounts
	profiles   repository.ProfileWriter
	publisher  CompletionPublisher
	phraser    Phraser
	validators Validators
	log        *zap.Logger
	restart    bool
}

func NewOnboardingService(opts OnboardingOptions) *OnboardingService {
	s := &OnboardingService{
		catalog:    opts.Catalog,
		sessions:   opts.Sessions,
		accounts:   opts.Accounts,
		profiles:   opts.Profiles,
		publisher:  opts.Publisher,
		phraser:    opts.Phraser,
		validators: opts.Validators,
		restart:    opts.RestartOnUnknownSession,
		log:        logger.Component("onboarding"),
	}
	if s.phraser == nil {
		s.phraser = NewStaticPhraser(0, 0)
	}
	if s.validators == nil {
		s.validators = DefaultValidators(opts.Accounts)
	}
	return s
}

func (s *OnboardingService) Catalog() *catalog.Catalog {
	return s.catalog
}

// NextQuestionResult nextQuestion 的结果；Completed 时 Question 为 nil
type NextQuestionResult struct {
	Question  *catalog.Question
	Progress  model.Progress
	SessionID string
	Completed bool
	Resumed   bool
	Created   bool // 本次调用新建了会话
}

// SubmitAnswerResult submitAnswer / reviseAnswer 的结果
type SubmitAnswerResult struct {
	NextQuestion *catalog.Question
	Progress     model.Progress
	SessionID    string
	Completed    bool
}

// ProgressResult 会话进度
type ProgressResult struct {
	SessionID          string
	State              model.SessionState
	CurrentQuestionKey string
	Progress           model.Progress
	Completed          bool
}

// NextQuestion 返回会话当前的问题；sessionID 为空时新建会话。
// 对进行中和已完成的会话都没有副作用，客户端可以放心重试。
func (s *OnboardingService) NextQuestion(ctx context.Context, sessionID string, resumed bool) (*NextQuestionResult, error) {
	sess, created, err := s.loadOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// 上次最后一题已写入但未来得及标记完成
	if sess.AwaitingCompletion() {
		if err := s.finalize(ctx, sess); err != nil {
			return nil, err
		}
		sess.Completed = true
	}

	result := &NextQuestionResult{
		SessionID: sess.SessionID,
		Completed: sess.Completed,
		Created:   created,
		Resumed:   resumed && !created,
		Progress:  s.progressOf(sess),
	}
	if sess.Completed {
		return result, nil
	}

	q, err := s.catalog.ByKey(sess.CurrentKey())
	if err != nil {
		// 目录在会话进行中被替换
		s.log.Error("Current question missing from catalog",
			logger.SessionID(sess.SessionID),
			logger.QuestionKey(sess.CurrentKey()),
			zap.String("catalog", s.catalog.Name()),
		)
		return nil, fmt.Errorf("failed to resolve current question: %w", err)
	}
	result.Question = &q
	return result, nil
}

func (s *OnboardingService) loadOrCreate(ctx context.Context, sessionID string) (*model.OnboardingSession, bool, error) {
	if sessionID != "" {
		sess, err := s.sessions.Get(ctx, sessionID)
		if err == nil {
			return sess, false, nil
		}
		if !errors.Is(err, pkgerrors.OnboardingSessionNotFound) || !s.restart {
			return nil, false, err
		}
		s.log.Warn("Unknown onboarding session, starting a new one",
			logger.SessionID(sessionID),
		)
	}

	sess, err := s.sessions.Create(ctx)
	if err != nil {
		return nil, false, err
	}
	metrics.GetMetrics().RecordSessionStarted(ctx, sessionID != "")
	s.log.Info("Onboarding session created", logger.SessionID(sess.SessionID))
	return sess, true, nil
}

// SubmitAnswer 回答当前问题并推进；最后一题通过后标记完成并触发一次性副作用
func (s *OnboardingService) SubmitAnswer(ctx context.Context, sessionID, questionKey, answer string) (*SubmitAnswerResult, error) {
	result, err := s.submitAnswer(ctx, sessionID, questionKey, answer)
	if err != nil {
		s.recordRejection(ctx, sessionID, questionKey, err)
		return nil, err
	}
	return result, nil
}

func (s *OnboardingService) submitAnswer(ctx context.Context, sessionID, questionKey, answer string) (*SubmitAnswerResult, error) {
	if sessionID == "" {
		return nil, pkgerrors.OnboardingSessionNotFound
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.AwaitingCompletion() {
		if err := s.finalize(ctx, sess); err != nil {
			return nil, err
		}
		return nil, pkgerrors.OnboardingSessionCompleted
	}
	if sess.Completed {
		return nil, pkgerrors.OnboardingSessionCompleted
	}
	if questionKey != sess.CurrentKey() {
		return nil, pkgerrors.OnboardingAnswerOutOfOrder
	}

	q, err := s.catalog.ByKey(questionKey)
	if err != nil {
		return nil, pkgerrors.OnboardingQuestionUnknown
	}

	value, skip, err := s.validators.validate(ctx, q, answer)
	if err != nil {
		return nil, err
	}

	// 上面的快照可能已过期，是否仍是当前问题由存储在原子步骤内再判一次
	var res *repository.RecordResult
	outcome := "accepted"
	if skip {
		outcome = "skipped"
		res, err = s.sessions.Skip(ctx, sessionID, questionKey)
	} else {
		res, err = s.sessions.Advance(ctx, sessionID, questionKey, value)
	}
	if err != nil {
		return nil, err
	}
	metrics.GetMetrics().RecordAnswer(ctx, questionKey, outcome)

	result := &SubmitAnswerResult{
		SessionID: sessionID,
		Progress:  s.progressOf(res.Session),
	}

	if res.Session.CurrentQuestionKey == nil {
		if err := s.finalize(ctx, res.Session); err != nil {
			return nil, err
		}
		result.Completed = true
		result.Progress.Answered = result.Progress.Total
		return result, nil
	}

	next, err := s.catalog.ByKey(res.Session.CurrentKey())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve next question: %w", err)
	}
	result.NextQuestion = &next
	return result, nil
}

// ReviseAnswer 修改已回答的问题，不改变当前进度
func (s *OnboardingService) ReviseAnswer(ctx context.Context, sessionID, questionKey, answer string) (*SubmitAnswerResult, error) {
	result, err := s.reviseAnswer(ctx, sessionID, questionKey, answer)
	if err != nil {
		s.recordRejection(ctx, sessionID, questionKey, err)
		return nil, err
	}
	return result, nil
}

func (s *OnboardingService) reviseAnswer(ctx context.Context, sessionID, questionKey, answer string) (*SubmitAnswerResult, error) {
	if sessionID == "" {
		return nil, pkgerrors.OnboardingSessionNotFound
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Completed || sess.AwaitingCompletion() {
		return nil, pkgerrors.OnboardingSessionCompleted
	}

	q, err := s.catalog.ByKey(questionKey)
	if err != nil {
		return nil, pkgerrors.OnboardingQuestionUnknown
	}
	if _, answered := sess.Answers.Get(questionKey); !answered {
		return nil, pkgerrors.OnboardingAnswerOutOfOrder
	}

	value, _, err := s.validators.validate(ctx, q, answer)
	if err != nil {
		return nil, err
	}

	res, err := s.sessions.RecordAnswer(ctx, sessionID, questionKey, value)
	if err != nil {
		return nil, err
	}
	metrics.GetMetrics().RecordAnswer(ctx, questionKey, "revised")

	result := &SubmitAnswerResult{
		SessionID: sessionID,
		Progress:  s.progressOf(res.Session),
	}
	if current, err := s.catalog.ByKey(res.Session.CurrentKey()); err == nil {
		result.NextQuestion = &current
	}
	return result, nil
}

// Progress 会话进度，供断点续答 cookie 和 /progress 使用
func (s *OnboardingService) Progress(ctx context.Context, sessionID string) (*ProgressResult, error) {
	if sessionID == "" {
		return nil, pkgerrors.OnboardingSessionNotFound
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &ProgressResult{
		SessionID:          sess.SessionID,
		State:              sess.State(),
		CurrentQuestionKey: sess.CurrentKey(),
		Progress:           s.progressOf(sess),
		Completed:          sess.Completed,
	}, nil
}

// progressOf 已经过的问题数（含跳过的可选题）/ 总数
func (s *OnboardingService) progressOf(sess *model.OnboardingSession) model.Progress {
	total := s.catalog.Len()
	if sess.Completed || sess.CurrentQuestionKey == nil {
		return model.Progress{Answered: total, Total: total}
	}
	pos, ok := s.catalog.Position(sess.CurrentKey())
	if !ok {
		pos = len(sess.Answers)
	}
	return model.Progress{Answered: pos, Total: total}
}

// finalize 翻转完成标记；只有赢得翻转的调用方执行副作用
func (s *OnboardingService) finalize(ctx context.Context, sess *model.OnboardingSession) error {
	if missing := s.missingRequired(sess); len(missing) > 0 {
		s.log.Error("Completing session with unanswered required questions",
			logger.SessionID(sess.SessionID),
			zap.Strings("missing", missing),
		)
	}

	transitioned, err := s.sessions.MarkCompleted(ctx, sess.SessionID)
	if err != nil {
		return err
	}
	if !transitioned {
		return nil
	}

	metrics.GetMetrics().RecordCompleted(ctx)
	s.log.Info("Onboarding session completed",
		logger.SessionID(sess.SessionID),
		zap.Int("answers", len(sess.Answers)),
	)

	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	s.runCompletionSideEffect(sideCtx, sess)
	return nil
}

func (s *OnboardingService) missingRequired(sess *model.OnboardingSession) []string {
	var missing []string
	for _, key := range s.catalog.RequiredKeys() {
		if _, ok := sess.Answers.Get(key); !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

// runCompletionSideEffect 建档 + 投递完成通知。失败只记录，不回滚已提交的完成状态
func (s *OnboardingService) runCompletionSideEffect(ctx context.Context, sess *model.OnboardingSession) {
	log := s.log.With(append(logger.Trace(ctx), logger.SessionID(sess.SessionID))...)
	answers := sess.Answers.Map()
	email, name := answers["email"], answers["name"]

	if email == "" || s.accounts == nil {
		log.Warn("Skipping account creation, no email collected")
		return
	}

	user, err := s.accounts.UpsertFromOnboarding(ctx, sess.SessionID, email, name)
	if errors.Is(err, pkgerrors.EmailAlreadyRegistered) {
		// 两个会话在作答时都通过了查重，后完成的一方不接管已有账号
		log.Warn("Onboarding email already owned by another account", zap.Error(err))
		metrics.GetMetrics().RecordSideEffectFailure(ctx, "account_duplicate_email")
		return
	}
	if err != nil {
		log.Error("Failed to create account from onboarding", zap.Error(err))
		metrics.GetMetrics().RecordSideEffectFailure(ctx, "account")
		return
	}

	if s.profiles != nil {
		if err := s.profiles.SaveOnboardingProfile(ctx, user.ID, answers); err != nil {
			log.Error("Failed to save onboarding profile", zap.Int64("user_id", user.ID), zap.Error(err))
			metrics.GetMetrics().RecordSideEffectFailure(ctx, "profile")
		}
	}

	if s.publisher == nil {
		return
	}

	completedAt := time.Now()
	if sess.CompletedAt != nil {
		completedAt = *sess.CompletedAt
	}
	msg := &model.OnboardingCompletedMessage{
		MessageID:    newMessageID("onboarding_completed"),
		SessionID:    sess.SessionID,
		UserPublicID: user.PublicID,
		Email:        user.Email,
		Name:         user.Name,
		CompletedAt:  completedAt.UTC().Format(time.RFC3339),
	}
	if err := s.publisher.PublishOnboardingCompleted(ctx, msg); err != nil {
		log.Error("Failed to publish onboarding completed message", zap.Error(err))
		metrics.GetMetrics().RecordSideEffectFailure(ctx, "notification")
		return
	}
	log.Info("Onboarding completion side effect done",
		zap.Int64("user_public_id", user.PublicID),
		logger.MessageID(msg.MessageID),
	)
}

func (s *OnboardingService) recordRejection(ctx context.Context, sessionID, questionKey string, err error) {
	def, ok := pkgerrors.As(err)
	if !ok {
		s.log.Error("Failed to process onboarding answer",
			logger.SessionID(sessionID),
			logger.QuestionKey(questionKey),
			zap.Error(err),
		)
		return
	}
	metrics.GetMetrics().RecordAnswer(ctx, questionKey, def.Code)
	s.log.Debug("Onboarding answer rejected",
		logger.SessionID(sessionID),
		logger.QuestionKey(questionKey),
		zap.String("code", def.Code),
	)
}

func newMessageID(prefix string) string {
	if id, err := snowflake.NextMessageID(prefix); err == nil {
		return id
	}
	return prefix + "_" + uuid.NewString()
}

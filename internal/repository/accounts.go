package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"CoParent/internal/model"
	pkgerrors "CoParent/pkg/errors"
	"CoParent/pkg/snowflake"
)

// UserAccounts 用户账号协作方
type UserAccounts interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	// UpsertFromOnboarding 按邮箱建立账号；同一会话重复调用结果一致。
	// 邮箱已属于其他会话或既有账号时返回 EmailAlreadyRegistered，不修改该账号
	UpsertFromOnboarding(ctx context.Context, sessionID, email, name string) (*model.User, error)
}

// ProfileWriter 家庭档案协作方
type ProfileWriter interface {
	SaveOnboardingProfile(ctx context.Context, userID int64, answers map[string]string) error
}

// NormalizeEmail 邮箱统一按小写比较
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ProfileFromAnswers 把答案映射到档案字段，未知字段只保留在 Answers 中
func ProfileFromAnswers(userID int64, answers map[string]string) *model.Profile {
	p := &model.Profile{
		UserID:          userID,
		FamilySituation: answers["family_situation"],
		Municipality:    strings.TrimSpace(answers["municipality"]),
		Goals:           strings.TrimSpace(answers["goals"]),
		Answers:         model.ProfileAnswers{},
	}
	if n, err := strconv.Atoi(strings.TrimSpace(answers["children_count"])); err == nil {
		p.ChildrenCount = n
	}
	for k, v := range answers {
		p.Answers[k] = v
	}
	return p
}

func ownedBy(user *model.User, sessionID string) bool {
	return user.OnboardingSessionID != nil && *user.OnboardingSessionID == sessionID
}

// ========== Gorm 实现 ==========

type GormAccounts struct {
	db *gorm.DB
}

func NewGormAccounts(db *gorm.DB) *GormAccounts {
	return &GormAccounts{db: db}
}

func (a *GormAccounts) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := a.db.WithContext(ctx).
		Model(&model.User{}).
		Where("email = ?", NormalizeEmail(email)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return count > 0, nil
}

func (a *GormAccounts) UpsertFromOnboarding(ctx context.Context, sessionID, email, name string) (*model.User, error) {
	publicID, err := snowflake.NextID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate public id: %w", err)
	}

	user := &model.User{
		PublicID:            publicID,
		Email:               NormalizeEmail(email),
		Name:                strings.TrimSpace(name),
		Role:                model.UserRoleParent,
		OnboardingSessionID: &sessionID,
	}

	// 冲突时只有同一会话建立的账号才会被更新，保留原 public_id
	err = a.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "users.onboarding_session_id = ?", Vars: []interface{}{sessionID}},
			}},
		}).
		Create(user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	var stored model.User
	if err := a.db.WithContext(ctx).Where("email = ?", user.Email).Take(&stored).Error; err != nil {
		return nil, fmt.Errorf("failed to reload user: %w", err)
	}
	if !ownedBy(&stored, sessionID) {
		return nil, pkgerrors.EmailAlreadyRegistered
	}
	return &stored, nil
}

type GormProfiles struct {
	db *gorm.DB
}

func NewGormProfiles(db *gorm.DB) *GormProfiles {
	return &GormProfiles{db: db}
}

func (p *GormProfiles) SaveOnboardingProfile(ctx context.Context, userID int64, answers map[string]string) error {
	profile := ProfileFromAnswers(userID, answers)
	err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"family_situation", "children_count", "municipality", "goals", "answers", "updated_at"}),
		}).
		Create(profile).Error
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// ========== 内存实现 ==========

var ErrUserNotFound = errors.New("user not found")

type MemoryAccounts struct {
	users  map[string]*model.User
	mu     sync.Mutex
	nextID int64
}

func NewMemoryAccounts(existing ...string) *MemoryAccounts {
	a := &MemoryAccounts{users: make(map[string]*model.User)}
	for _, email := range existing {
		a.nextID++
		a.users[NormalizeEmail(email)] = &model.User{
			BaseModel: model.BaseModel{ID: a.nextID},
			PublicID:  a.nextID,
			Email:     NormalizeEmail(email),
			Role:      model.UserRoleParent,
		}
	}
	return a
}

func (a *MemoryAccounts) EmailExists(_ context.Context, email string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.users[NormalizeEmail(email)]
	return ok, nil
}

func (a *MemoryAccounts) UpsertFromOnboarding(_ context.Context, sessionID, email, name string) (*model.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := NormalizeEmail(email)
	user, ok := a.users[key]
	if ok && !ownedBy(user, sessionID) {
		return nil, pkgerrors.EmailAlreadyRegistered
	}
	if !ok {
		a.nextID++
		user = &model.User{
			BaseModel:           model.BaseModel{ID: a.nextID},
			PublicID:            a.nextID,
			Email:               key,
			Role:                model.UserRoleParent,
			OnboardingSessionID: &sessionID,
		}
		a.users[key] = user
	}
	user.Name = strings.TrimSpace(name)

	cp := *user
	return &cp, nil
}

// Lookup 测试辅助
func (a *MemoryAccounts) Lookup(email string) (*model.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	user, ok := a.users[NormalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

type MemoryProfiles struct {
	profiles map[int64]*model.Profile
	mu       sync.Mutex
}

func NewMemoryProfiles() *MemoryProfiles {
	return &MemoryProfiles{profiles: make(map[int64]*model.Profile)}
}

func (p *MemoryProfiles) SaveOnboardingProfile(_ context.Context, userID int64, answers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[userID] = ProfileFromAnswers(userID, answers)
	return nil
}

func (p *MemoryProfiles) Get(userID int64) (*model.Profile, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	profile, ok := p.profiles[userID]
	if !ok {
		return nil, false
	}
	cp := *profile
	return &cp, true
}

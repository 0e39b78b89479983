package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// SessionState 引导会话状态
type SessionState string

const (
	SessionStateNew        SessionState = "new"         // 还没有任何答案
	SessionStateInProgress SessionState = "in_progress" // 答题中
	SessionStateCompleted  SessionState = "completed"   // 终态
)

// OnboardingAnswer 单个问题的答案
type OnboardingAnswer struct {
	Key        string    `json:"key"`
	Value      string    `json:"value"`
	AnsweredAt time.Time `json:"answered_at"`
}

// OnboardingAnswers 答案列表（JSONB），顺序即作答顺序
type OnboardingAnswers []OnboardingAnswer

func (a OnboardingAnswers) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

func (a *OnboardingAnswers) Scan(value interface{}) error {
	if value == nil {
		*a = OnboardingAnswers{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("failed to unmarshal onboarding answers")
	}
	return json.Unmarshal(data, a)
}

// Get 查询答案
func (a OnboardingAnswers) Get(key string) (string, bool) {
	for _, ans := range a {
		if ans.Key == key {
			return ans.Value, true
		}
	}
	return "", false
}

// Set 写入答案：已存在则原位覆盖，保持首次作答的顺序
func (a OnboardingAnswers) Set(key, value string, at time.Time) OnboardingAnswers {
	for i := range a {
		if a[i].Key == key {
			a[i].Value = value
			a[i].AnsweredAt = at
			return a
		}
	}
	return append(a, OnboardingAnswer{Key: key, Value: value, AnsweredAt: at})
}

func (a OnboardingAnswers) Keys() []string {
	keys := make([]string, len(a))
	for i, ans := range a {
		keys[i] = ans.Key
	}
	return keys
}

// Map 转成 key -> value，供建档等下游使用
func (a OnboardingAnswers) Map() map[string]string {
	m := make(map[string]string, len(a))
	for _, ans := range a {
		m[ans.Key] = ans.Value
	}
	return m
}

func (a OnboardingAnswers) Clone() OnboardingAnswers {
	out := make(OnboardingAnswers, len(a))
	copy(out, a)
	return out
}

// OnboardingSession 一次引导尝试
type OnboardingSession struct {
	BaseModel
	SessionID          string            `gorm:"uniqueIndex;type:varchar(64);not null" json:"session_id"`
	Answers            OnboardingAnswers `gorm:"type:jsonb;not null;default:'[]'" json:"answers"`
	CurrentQuestionKey *string           `gorm:"type:varchar(64)" json:"current_question_key"`
	Completed          bool              `gorm:"not null;default:false;index:idx_onboarding_sessions_completed" json:"completed"`
	CompletedAt        *time.Time        `gorm:"type:timestamptz" json:"completed_at,omitempty"`
	Version            int64             `gorm:"not null;default:0" json:"-"` // 乐观锁，每次写入 +1
}

// TableName 指定表名
func (OnboardingSession) TableName() string {
	return "onboarding_sessions"
}

// State 由字段推导状态
func (s *OnboardingSession) State() SessionState {
	switch {
	case s.Completed:
		return SessionStateCompleted
	case len(s.Answers) == 0:
		return SessionStateNew
	default:
		return SessionStateInProgress
	}
}

// CurrentKey 当前期望回答的问题，没有时返回空串
func (s *OnboardingSession) CurrentKey() string {
	if s.CurrentQuestionKey == nil {
		return ""
	}
	return *s.CurrentQuestionKey
}

// AwaitingCompletion 最后一题已记录但完成标记尚未翻转
func (s *OnboardingSession) AwaitingCompletion() bool {
	return !s.Completed && s.CurrentQuestionKey == nil
}

// Clone 深拷贝，store 之外拿到的永远是副本
func (s *OnboardingSession) Clone() *OnboardingSession {
	cp := *s
	cp.Answers = s.Answers.Clone()
	if s.CurrentQuestionKey != nil {
		key := *s.CurrentQuestionKey
		cp.CurrentQuestionKey = &key
	}
	if s.CompletedAt != nil {
		at := *s.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}

// Progress 粗粒度进度，写入断点续答 cookie
type Progress struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

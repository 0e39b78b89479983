package model

// UserRole 用户角色枚举
type UserRole string

const (
	UserRoleParent     UserRole = "parent"     // 家长
	UserRoleCaseworker UserRole = "caseworker" // 社工
	UserRoleAdmin      UserRole = "admin"
)

// User 用户模型，引导完成后按邮箱建立或更新
type User struct {
	BaseModel
	PublicID int64    `gorm:"uniqueIndex;not null" json:"public_id"`
	Email    string   `gorm:"uniqueIndex;type:varchar(255);not null" json:"email"` // 统一小写存储
	Name     string   `gorm:"type:varchar(128);not null;default:''" json:"name"`
	Role     UserRole `gorm:"type:varchar(16);not null;default:'parent'" json:"role"`

	// 来源的引导会话，便于追溯
	OnboardingSessionID *string `gorm:"type:varchar(64);index" json:"onboarding_session_id,omitempty"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// ProfileAnswers 引导答案快照（JSONB）
type ProfileAnswers map[string]string

func (p ProfileAnswers) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

func (p *ProfileAnswers) Scan(value interface{}) error {
	if value == nil {
		*p = ProfileAnswers{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal profile answers")
	}
	return json.Unmarshal(bytes, p)
}

// Profile 家庭档案，每个用户一份
type Profile struct {
	BaseModel
	UserID          int64          `gorm:"uniqueIndex;not null" json:"user_id"`
	FamilySituation string         `gorm:"type:varchar(64);not null;default:''" json:"family_situation"`
	ChildrenCount   int            `gorm:"not null;default:0" json:"children_count"`
	Municipality    string         `gorm:"type:varchar(128);not null;default:''" json:"municipality"`
	Goals           string         `gorm:"type:text;not null;default:''" json:"goals"`
	Answers         ProfileAnswers `gorm:"type:jsonb;not null;default:'{}'" json:"answers"` // 完整答案，目录变更时不丢字段
}

// TableName 指定表名
func (Profile) TableName() string {
	return "profiles"
}

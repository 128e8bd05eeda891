package model

import (
	"time"
	"ustp_things/internal/pkg/session"
	"ustp_things/pkg/model"
)

const (
	RoleUser  = session.RoleUser
	RoleAdmin = session.RoleAdmin
)

// 用户状态
const (
	StatusNormal  = 1
	StatusBanned  = 2
	StatusDeleted = 3
)

// 认证等级，决定下单服务费率
const (
	TierStudent    = "student"
	TierCompany    = "company"
	TierUnverified = "unverified"
)

// User 用户模型
type User struct {
	model.BaseModel
	Mobile           string     `gorm:"type:varchar(20);uniqueIndex;not null" json:"mobile"`
	Nickname         string     `gorm:"type:varchar(64)" json:"nickname"`
	AvatarURL        string     `gorm:"type:varchar(512)" json:"avatar_url"`
	Role             int        `gorm:"default:1" json:"role"`
	Status           int        `gorm:"default:1" json:"status"`
	VerificationTier string     `gorm:"type:varchar(16);default:unverified" json:"verification_tier"`
	BannedUntil      *time.Time `json:"banned_until,omitempty"`
	Token            string     `gorm:"type:text" json:"-"`
	TokenExpireAt    *time.Time `json:"-"`
}

// Tier 空值按未认证处理
func (u *User) Tier() string {
	if u.VerificationTier == "" {
		return TierUnverified
	}
	return u.VerificationTier
}

func ValidTier(tier string) bool {
	return tier == TierStudent || tier == TierCompany
}

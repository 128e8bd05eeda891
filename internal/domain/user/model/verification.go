package model

import (
	"time"
	"ustp_things/pkg/model"
)

const (
	VerificationPending  = "pending"
	VerificationApproved = "approved"
	VerificationRejected = "rejected"
)

// VerifiedAccount 认证申请，审核通过后写入 User.VerificationTier
type VerifiedAccount struct {
	model.BaseModel
	UserID      string     `gorm:"type:uuid;index;not null" json:"user_id"`
	Tier        string     `gorm:"type:varchar(16);not null" json:"tier"`
	DocumentURL string     `gorm:"type:varchar(512);not null" json:"document_url"`
	Status      string     `gorm:"type:varchar(16);index;default:pending" json:"status"`
	ReviewedBy  *string    `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	Note        string     `gorm:"type:varchar(255)" json:"note"`
}

func (VerifiedAccount) TableName() string {
	return "verified_accounts"
}

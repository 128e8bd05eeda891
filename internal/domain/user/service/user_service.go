package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"ustp_things/internal/domain/user/model"
	"ustp_things/internal/domain/user/repository"
	"ustp_things/internal/pkg/otp"
	"ustp_things/internal/pkg/session"
	"ustp_things/pkg/utils"

	"gorm.io/gorm"
)

var (
	ErrInvalidCode          = errors.New("invalid verification code")
	ErrAccountBanned        = errors.New("account is banned")
	ErrAccountDeleted       = errors.New("account has been deleted")
	ErrUserNotFound         = errors.New("user not found")
	ErrInvalidTier          = errors.New("tier must be student or company")
	ErrVerificationPending  = errors.New("a verification request is already pending")
	ErrVerificationNotFound = errors.New("verification request not found")
	ErrVerificationReviewed = errors.New("verification request already reviewed")
	ErrNoPermission         = errors.New("no permission")
)

// LoginResult 登录结果
type LoginResult struct {
	Token    string      `json:"token"`
	ExpireAt *time.Time  `json:"expire_at"`
	User     *model.User `json:"user"`
}

// UserService 用户服务接口
type UserService interface {
	SendOTP(ctx context.Context, mobile string) error
	LoginOrRegister(ctx context.Context, mobile, code string) (*LoginResult, error)
	GetUsers(ctx context.Context, page, limit int) ([]model.User, int64, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	UpdateUser(ctx context.Context, sess session.Session, nickname, avatarURL string) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error

	// GetTier 返回用户认证等级，下单计算服务费用
	GetTier(ctx context.Context, userID string) (string, error)
	SubmitVerification(ctx context.Context, sess session.Session, tier, documentURL string) (*model.VerifiedAccount, error)
	ListVerifications(ctx context.Context, status string, page, limit int) ([]model.VerifiedAccount, int64, error)
	ReviewVerification(ctx context.Context, sess session.Session, id string, approve bool, note string) (*model.VerifiedAccount, error)
}

type userService struct {
	repo         repository.UserRepository
	verification repository.VerificationRepository
	otp          otp.OTPService
	now          func() time.Time
}

func NewUserService(repo repository.UserRepository, verification repository.VerificationRepository, otp otp.OTPService) UserService {
	return &userService{repo: repo, verification: verification, otp: otp, now: time.Now}
}

func (s *userService) SendOTP(ctx context.Context, mobile string) error {
	_, err := s.otp.Send(ctx, mobile)
	return err
}

// LoginOrRegister 登录或注册
func (s *userService) LoginOrRegister(ctx context.Context, mobile, code string) (*LoginResult, error) {
	// 1. 验证验证码
	if !s.otp.Verify(ctx, mobile, code) {
		return nil, ErrInvalidCode
	}

	// 2. 查询用户，不存在则注册
	user, err := s.repo.GetByMobile(ctx, mobile)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		user = &model.User{
			Mobile:           mobile,
			Nickname:         defaultNickname(mobile),
			Role:             model.RoleUser,
			Status:           model.StatusNormal,
			VerificationTier: model.TierUnverified,
		}
		if err := s.repo.Create(ctx, user); err != nil {
			return nil, err
		}
	}

	// 3. 检查用户状态，封禁到期自动解封
	switch user.Status {
	case model.StatusBanned:
		if user.BannedUntil == nil || s.now().Before(*user.BannedUntil) {
			return nil, ErrAccountBanned
		}
		user.Status = model.StatusNormal
		user.BannedUntil = nil
	case model.StatusDeleted:
		return nil, ErrAccountDeleted
	}

	// 4. 生成 Token 并保存
	token, expireAt, err := utils.GenerateToken(session.Session{UserID: user.ID, Role: user.Role})
	if err != nil {
		return nil, err
	}
	user.Token = token
	user.TokenExpireAt = expireAt
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, ExpireAt: expireAt, User: user}, nil
}

func defaultNickname(mobile string) string {
	if len(mobile) < 4 {
		return "User_" + mobile
	}
	return "User_" + mobile[len(mobile)-4:]
}

// GetUsers 获取用户列表（分页）
func (s *userService) GetUsers(ctx context.Context, page, limit int) ([]model.User, int64, error) {
	p := utils.Pagination{Page: page, Limit: limit}
	offset, size := p.GetPageOffset()
	return s.repo.GetList(ctx, offset, size)
}

func (s *userService) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpdateUser 只允许修改自己的资料
func (s *userService) UpdateUser(ctx context.Context, sess session.Session, nickname, avatarURL string) (*model.User, error) {
	user, err := s.GetUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}

	if nickname != "" {
		user.Nickname = nickname
	}
	if avatarURL != "" {
		user.AvatarURL = avatarURL
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser 软删除，标记为已注销
func (s *userService) DeleteUser(ctx context.Context, id string) error {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}

	user.Status = model.StatusDeleted
	user.Token = ""
	return s.repo.Update(ctx, user)
}

func (s *userService) GetTier(ctx context.Context, userID string) (string, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Tier(), nil
}

func (s *userService) SubmitVerification(ctx context.Context, sess session.Session, tier, documentURL string) (*model.VerifiedAccount, error) {
	if !model.ValidTier(tier) {
		return nil, ErrInvalidTier
	}
	if documentURL == "" {
		return nil, fmt.Errorf("%w: document url is required", ErrInvalidTier)
	}

	pending, err := s.verification.FindPendingByUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, ErrVerificationPending
	}

	v := &model.VerifiedAccount{
		UserID:      sess.UserID,
		Tier:        tier,
		DocumentURL: documentURL,
		Status:      model.VerificationPending,
	}
	if err := s.verification.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *userService) ListVerifications(ctx context.Context, status string, page, limit int) ([]model.VerifiedAccount, int64, error) {
	p := utils.Pagination{Page: page, Limit: limit}
	offset, size := p.GetPageOffset()
	return s.verification.List(ctx, status, offset, size)
}

func (s *userService) ReviewVerification(ctx context.Context, sess session.Session, id string, approve bool, note string) (*model.VerifiedAccount, error) {
	if !sess.IsAdmin() {
		return nil, ErrNoPermission
	}

	v, err := s.verification.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVerificationNotFound
		}
		return nil, err
	}
	if v.Status != model.VerificationPending {
		return nil, ErrVerificationReviewed
	}

	now := s.now()
	reviewer := sess.UserID
	v.Status = model.VerificationRejected
	if approve {
		v.Status = model.VerificationApproved
	}
	v.ReviewedBy = &reviewer
	v.ReviewedAt = &now
	v.Note = note

	if err := s.verification.Review(ctx, v); err != nil {
		if errors.Is(err, repository.ErrAlreadyReviewed) {
			return nil, ErrVerificationReviewed
		}
		return nil, err
	}
	return v, nil
}

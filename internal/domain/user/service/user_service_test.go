package service

import (
	"context"
	"testing"
	"time"
	"ustp_things/internal/domain/user/model"
	"ustp_things/internal/domain/user/repository"
	"ustp_things/internal/pkg/config"
	"ustp_things/internal/pkg/session"
	basemodel "ustp_things/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// MockUserRepository is a mock of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	if user.ID == "" {
		user.ID = "generated-id"
	}
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) GetByMobile(ctx context.Context, mobile string) (*model.User, error) {
	args := m.Called(ctx, mobile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) GetList(ctx context.Context, offset, limit int) ([]model.User, int64, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).([]model.User), args.Get(1).(int64), args.Error(2)
}

func (m *MockUserRepository) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockVerificationRepository is a mock of VerificationRepository
type MockVerificationRepository struct {
	mock.Mock
}

func (m *MockVerificationRepository) Create(ctx context.Context, v *model.VerifiedAccount) error {
	return m.Called(ctx, v).Error(0)
}

func (m *MockVerificationRepository) GetByID(ctx context.Context, id string) (*model.VerifiedAccount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.VerifiedAccount), args.Error(1)
}

func (m *MockVerificationRepository) FindPendingByUser(ctx context.Context, userID string) (*model.VerifiedAccount, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.VerifiedAccount), args.Error(1)
}

func (m *MockVerificationRepository) List(ctx context.Context, status string, offset, limit int) ([]model.VerifiedAccount, int64, error) {
	args := m.Called(ctx, status, offset, limit)
	return args.Get(0).([]model.VerifiedAccount), args.Get(1).(int64), args.Error(2)
}

func (m *MockVerificationRepository) Review(ctx context.Context, v *model.VerifiedAccount) error {
	return m.Called(ctx, v).Error(0)
}

// MockOTPService is a mock of OTPService
type MockOTPService struct {
	mock.Mock
}

func (m *MockOTPService) Send(ctx context.Context, mobile string) (string, error) {
	args := m.Called(ctx, mobile)
	return args.String(0), args.Error(1)
}

func (m *MockOTPService) Verify(ctx context.Context, mobile, code string) bool {
	args := m.Called(ctx, mobile, code)
	return args.Bool(0)
}

func createTestUser(id, mobile string) *model.User {
	return &model.User{
		BaseModel:        basemodel.BaseModel{ID: id},
		Mobile:           mobile,
		Nickname:         "TestUser",
		Role:             model.RoleUser,
		Status:           model.StatusNormal,
		VerificationTier: model.TierUnverified,
	}
}

func newTestService() (UserService, *MockUserRepository, *MockVerificationRepository, *MockOTPService) {
	config.GlobalConfig.JWT.Secret = "test-secret-which-is-long-enough-123456"
	config.GlobalConfig.JWT.Expire = 1

	repo := new(MockUserRepository)
	verification := new(MockVerificationRepository)
	otpSvc := new(MockOTPService)
	return NewUserService(repo, verification, otpSvc), repo, verification, otpSvc
}

func TestLoginOrRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("New user registration success", func(t *testing.T) {
		svc, repo, _, otpSvc := newTestService()
		mobile := "09171234567"

		otpSvc.On("Verify", ctx, mobile, "123456").Return(true)
		repo.On("GetByMobile", ctx, mobile).Return(nil, gorm.ErrRecordNotFound)
		repo.On("Create", ctx, mock.AnythingOfType("*model.User")).Return(nil)
		repo.On("Update", ctx, mock.AnythingOfType("*model.User")).Return(nil)

		res, err := svc.LoginOrRegister(ctx, mobile, "123456")

		require.NoError(t, err)
		assert.NotEmpty(t, res.Token)
		assert.Equal(t, "User_4567", res.User.Nickname)
		assert.Equal(t, model.TierUnverified, res.User.Tier())
		otpSvc.AssertExpectations(t)
		repo.AssertExpectations(t)
	})

	t.Run("Existing user login success", func(t *testing.T) {
		svc, repo, _, otpSvc := newTestService()
		mobile := "09170000001"
		user := createTestUser("existing-user-id", mobile)

		otpSvc.On("Verify", ctx, mobile, "123456").Return(true)
		repo.On("GetByMobile", ctx, mobile).Return(user, nil)
		repo.On("Update", ctx, user).Return(nil)

		res, err := svc.LoginOrRegister(ctx, mobile, "123456")

		require.NoError(t, err)
		assert.Equal(t, "existing-user-id", res.User.ID)
		assert.Equal(t, res.Token, user.Token)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Invalid verification code", func(t *testing.T) {
		svc, repo, _, otpSvc := newTestService()
		otpSvc.On("Verify", ctx, "09170000002", "wrongcode").Return(false)

		res, err := svc.LoginOrRegister(ctx, "09170000002", "wrongcode")

		assert.ErrorIs(t, err, ErrInvalidCode)
		assert.Nil(t, res)
		repo.AssertNotCalled(t, "GetByMobile", mock.Anything, mock.Anything)
	})

	t.Run("Banned user rejected", func(t *testing.T) {
		svc, repo, _, otpSvc := newTestService()
		user := createTestUser("banned", "09170000003")
		user.Status = model.StatusBanned
		until := time.Now().Add(time.Hour)
		user.BannedUntil = &until

		otpSvc.On("Verify", ctx, user.Mobile, "123456").Return(true)
		repo.On("GetByMobile", ctx, user.Mobile).Return(user, nil)

		_, err := svc.LoginOrRegister(ctx, user.Mobile, "123456")
		assert.ErrorIs(t, err, ErrAccountBanned)
	})

	t.Run("Expired ban lifted", func(t *testing.T) {
		svc, repo, _, otpSvc := newTestService()
		user := createTestUser("was-banned", "09170000004")
		user.Status = model.StatusBanned
		until := time.Now().Add(-time.Hour)
		user.BannedUntil = &until

		otpSvc.On("Verify", ctx, user.Mobile, "123456").Return(true)
		repo.On("GetByMobile", ctx, user.Mobile).Return(user, nil)
		repo.On("Update", ctx, user).Return(nil)

		_, err := svc.LoginOrRegister(ctx, user.Mobile, "123456")
		require.NoError(t, err)
		assert.Equal(t, model.StatusNormal, user.Status)
		assert.Nil(t, user.BannedUntil)
	})
}

func TestSendOTP(t *testing.T) {
	svc, _, _, otpSvc := newTestService()
	ctx := context.Background()
	otpSvc.On("Send", ctx, "09171234567").Return("123456", nil)

	assert.NoError(t, svc.SendOTP(ctx, "09171234567"))
	otpSvc.AssertExpectations(t)
}

func TestGetUsers(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()
	users := []model.User{
		*createTestUser("user1", "09170000001"),
		*createTestUser("user2", "09170000002"),
	}
	repo.On("GetList", ctx, 10, 10).Return(users, int64(12), nil)

	result, total, err := svc.GetUsers(ctx, 2, 10)

	assert.NoError(t, err)
	assert.Len(t, result, 2)
	assert.Equal(t, int64(12), total)
	repo.AssertExpectations(t)
}

func TestGetUser_NotFound(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()
	repo.On("GetByID", ctx, "missing").Return(nil, gorm.ErrRecordNotFound)

	_, err := svc.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateUser(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()
	user := createTestUser("u1", "09170000001")
	repo.On("GetByID", ctx, "u1").Return(user, nil)
	repo.On("Update", ctx, user).Return(nil)

	result, err := svc.UpdateUser(ctx, session.Session{UserID: "u1"}, "Updated Nickname", "")

	assert.NoError(t, err)
	assert.Equal(t, "Updated Nickname", result.Nickname)
	repo.AssertExpectations(t)
}

func TestDeleteUser(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()
	user := createTestUser("u1", "09170000001")
	repo.On("GetByID", ctx, "u1").Return(user, nil)
	repo.On("Update", ctx, user).Return(nil)

	assert.NoError(t, svc.DeleteUser(ctx, "u1"))
	assert.Equal(t, model.StatusDeleted, user.Status)
}

func TestGetTier(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()
	user := createTestUser("u1", "09170000001")
	user.VerificationTier = ""
	repo.On("GetByID", ctx, "u1").Return(user, nil)

	tier, err := svc.GetTier(ctx, "u1")
	assert.NoError(t, err)
	assert.Equal(t, model.TierUnverified, tier)
}

func TestSubmitVerification(t *testing.T) {
	ctx := context.Background()
	sess := session.Session{UserID: "u1", Role: session.RoleUser}

	t.Run("invalid tier", func(t *testing.T) {
		svc, _, _, _ := newTestService()
		_, err := svc.SubmitVerification(ctx, sess, "faculty", "https://cdn/id.png")
		assert.ErrorIs(t, err, ErrInvalidTier)
	})

	t.Run("already pending", func(t *testing.T) {
		svc, _, ver, _ := newTestService()
		ver.On("FindPendingByUser", ctx, "u1").Return(&model.VerifiedAccount{UserID: "u1"}, nil)

		_, err := svc.SubmitVerification(ctx, sess, model.TierStudent, "https://cdn/id.png")
		assert.ErrorIs(t, err, ErrVerificationPending)
	})

	t.Run("created", func(t *testing.T) {
		svc, _, ver, _ := newTestService()
		ver.On("FindPendingByUser", ctx, "u1").Return(nil, nil)
		ver.On("Create", ctx, mock.AnythingOfType("*model.VerifiedAccount")).Return(nil)

		v, err := svc.SubmitVerification(ctx, sess, model.TierStudent, "https://cdn/id.png")
		require.NoError(t, err)
		assert.Equal(t, model.VerificationPending, v.Status)
		assert.Equal(t, model.TierStudent, v.Tier)
	})
}

func TestReviewVerification(t *testing.T) {
	ctx := context.Background()
	admin := session.Session{UserID: "admin-1", Role: session.RoleAdmin}

	t.Run("non admin rejected", func(t *testing.T) {
		svc, _, _, _ := newTestService()
		_, err := svc.ReviewVerification(ctx, session.Session{UserID: "u1"}, "v1", true, "")
		assert.ErrorIs(t, err, ErrNoPermission)
	})

	t.Run("approve", func(t *testing.T) {
		svc, _, ver, _ := newTestService()
		pending := &model.VerifiedAccount{
			BaseModel: basemodel.BaseModel{ID: "v1"},
			UserID:    "u1",
			Tier:      model.TierCompany,
			Status:    model.VerificationPending,
		}
		ver.On("GetByID", ctx, "v1").Return(pending, nil)
		ver.On("Review", ctx, pending).Return(nil)

		v, err := svc.ReviewVerification(ctx, admin, "v1", true, "looks good")
		require.NoError(t, err)
		assert.Equal(t, model.VerificationApproved, v.Status)
		require.NotNil(t, v.ReviewedBy)
		assert.Equal(t, "admin-1", *v.ReviewedBy)
	})

	t.Run("concurrent review loses", func(t *testing.T) {
		svc, _, ver, _ := newTestService()
		pending := &model.VerifiedAccount{BaseModel: basemodel.BaseModel{ID: "v2"}, Status: model.VerificationPending}
		ver.On("GetByID", ctx, "v2").Return(pending, nil)
		ver.On("Review", ctx, pending).Return(repository.ErrAlreadyReviewed)

		_, err := svc.ReviewVerification(ctx, admin, "v2", false, "")
		assert.ErrorIs(t, err, ErrVerificationReviewed)
	})

	t.Run("already reviewed", func(t *testing.T) {
		svc, _, ver, _ := newTestService()
		ver.On("GetByID", ctx, "v3").Return(&model.VerifiedAccount{Status: model.VerificationRejected}, nil)

		_, err := svc.ReviewVerification(ctx, admin, "v3", true, "")
		assert.ErrorIs(t, err, ErrVerificationReviewed)
	})
}

package service

import (
	"context"
	"fmt"
	"time"
	"ustp_things/internal/domain/user/model"
	"ustp_things/internal/pkg/session"
	"ustp_things/pkg/cache"
	"ustp_things/pkg/logger"

	"go.uber.org/zap"
)

// 缓存键常量
const (
	UserCacheKeyPrefix = "user:"
	UserCacheTTL       = time.Hour * 2
)

// CachedUserService 在 UserService 外加一层用户资料缓存
// 下单每次都要读认证等级，读多写少
type CachedUserService struct {
	UserService
	cache cache.CacheService
}

func NewCachedUserService(inner UserService, c cache.CacheService) *CachedUserService {
	return &CachedUserService{UserService: inner, cache: c}
}

func (s *CachedUserService) getUserCacheKey(id string) string {
	return fmt.Sprintf("%s%s", UserCacheKeyPrefix, id)
}

func (s *CachedUserService) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, s.getUserCacheKey(userID)); err != nil {
		logger.Log.Warn("failed to invalidate user cache", zap.String("user_id", userID), zap.Error(err))
	}
}

// GetUser 获取单个用户（带缓存）
func (s *CachedUserService) GetUser(ctx context.Context, id string) (*model.User, error) {
	cacheKey := s.getUserCacheKey(id)

	var user model.User
	if err := s.cache.Get(ctx, cacheKey, &user); err == nil {
		return &user, nil
	}

	found, err := s.UserService.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	// 缓存失败不影响业务逻辑，只记录日志
	if err := s.cache.Set(ctx, cacheKey, found, UserCacheTTL); err != nil {
		logger.Log.Warn("failed to cache user", zap.String("user_id", id), zap.Error(err))
	}
	return found, nil
}

func (s *CachedUserService) GetTier(ctx context.Context, userID string) (string, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Tier(), nil
}

func (s *CachedUserService) LoginOrRegister(ctx context.Context, mobile, code string) (*LoginResult, error) {
	res, err := s.UserService.LoginOrRegister(ctx, mobile, code)
	if err != nil {
		return nil, err
	}
	// 可能刚解封
	s.invalidate(ctx, res.User.ID)
	return res, nil
}

func (s *CachedUserService) UpdateUser(ctx context.Context, sess session.Session, nickname, avatarURL string) (*model.User, error) {
	user, err := s.UserService.UpdateUser(ctx, sess, nickname, avatarURL)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, sess.UserID)
	return user, nil
}

func (s *CachedUserService) DeleteUser(ctx context.Context, id string) error {
	if err := s.UserService.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// ReviewVerification 审核通过会改变认证等级，必须清缓存
func (s *CachedUserService) ReviewVerification(ctx context.Context, sess session.Session, id string, approve bool, note string) (*model.VerifiedAccount, error) {
	v, err := s.UserService.ReviewVerification(ctx, sess, id, approve, note)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, v.UserID)
	return v, nil
}

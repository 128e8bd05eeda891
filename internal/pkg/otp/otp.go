package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
	"ustp_things/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrTooFrequent = errors.New("please wait before sending again")

const (
	codeTTL     = 5 * time.Minute
	resendAfter = time.Minute
)

// 仅当值匹配时删除，防止错误验证码把正确的冲掉
var verifyScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type OTPService interface {
	Send(ctx context.Context, mobile string) (string, error)
	Verify(ctx context.Context, mobile, code string) bool
}

type otpService struct {
	rdb       *redis.Client
	fixedCode string
}

// NewOTPService fixedCode 非空时所有验证码都用它 (测试环境)
func NewOTPService(rdb *redis.Client, fixedCode string) OTPService {
	return &otpService{rdb: rdb, fixedCode: fixedCode}
}

func key(mobile string) string {
	return fmt.Sprintf("otp:%s", mobile)
}

// Send 生成验证码存入 Redis，短信发送由网关侧完成，这里只记录日志
func (s *otpService) Send(ctx context.Context, mobile string) (string, error) {
	k := key(mobile)
	ttl, err := s.rdb.TTL(ctx, k).Result()
	if err == nil && ttl > codeTTL-resendAfter {
		return "", ErrTooFrequent
	}

	code := s.fixedCode
	if code == "" {
		if code, err = randomCode(); err != nil {
			return "", err
		}
	}

	if err := s.rdb.Set(ctx, k, code, codeTTL).Err(); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}

	logger.Log.Info("otp issued", zap.String("mobile", mobile))
	return code, nil
}

// Verify 验证成功后立即删除，防止重放
func (s *otpService) Verify(ctx context.Context, mobile, code string) bool {
	n, err := verifyScript.Run(ctx, s.rdb, []string{key(mobile)}, code).Int()
	return err == nil && n == 1
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

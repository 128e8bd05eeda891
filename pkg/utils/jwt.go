package utils

import (
	"time"
	"ustp_things/internal/pkg/config"
	"ustp_things/internal/pkg/session"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "ustp-things"

// Claims 登录令牌，Subject 为用户 ID
type Claims struct {
	Role int `json:"role"`
	jwt.RegisteredClaims
}

// Session 转成服务层使用的调用者身份
func (c *Claims) Session() session.Session {
	return session.Session{UserID: c.Subject, Role: c.Role}
}

// GenerateToken 为调用者签发令牌，有效期取 jwt.expire (小时)
func GenerateToken(sess session.Session) (string, *time.Time, error) {
	hours := config.GlobalConfig.JWT.Expire
	if hours <= 0 {
		hours = 24 * 30
	}
	now := time.Now()
	expireTime := now.Add(time.Duration(hours) * time.Hour)

	claims := Claims{
		Role: sess.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.UserID,
			Issuer:    tokenIssuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expireTime),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(config.GlobalConfig.JWT.Secret))
	if err != nil {
		return "", nil, err
	}
	return token, &expireTime, nil
}

// ParseToken 只接受本服务签发的 HS256 令牌
func ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(config.GlobalConfig.JWT.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Package session 携带当前请求的调用者身份，由认证中间件创建后显式传入各服务
package session

const (
	RoleUser  = 1
	RoleAdmin = 2
)

// Session 调用者身份
type Session struct {
	UserID string
	Role   int
}

func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// Anonymous 未登录
func (s Session) Anonymous() bool {
	return s.UserID == ""
}

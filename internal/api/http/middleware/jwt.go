package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/jwt"
)

// NewJWTAuth 创建只做校验的 JWT 中间件（HS256）；签发由外部身份服务负责
func NewJWTAuth(key []byte, timeout, maxRefresh time.Duration) (*jwt.HertzJWTMiddleware, error) {
	if len(key) == 0 {
		return nil, errors.New("jwt key 为空")
	}
	return jwt.New(&jwt.HertzJWTMiddleware{
		Realm:         "math-tutor",
		Key:           key,
		Timeout:       timeout,
		MaxRefresh:    maxRefresh,
		TokenLookup:   "header: Authorization",
		TokenHeadName: "Bearer",
		TimeFunc:      time.Now,
		Unauthorized: func(ctx context.Context, c *app.RequestContext, code int, message string) {
			c.JSON(code, map[string]string{"error": message})
		},
	})
}

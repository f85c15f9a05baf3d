package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"media-pipeline-service/ddd/domain/vo"
	"media-pipeline-service/pkg/config"
)

// Claims 访问令牌声明，anon=true 表示匿名会话令牌
type Claims struct {
	Plan string `json:"plan,omitempty"`
	Anon bool   `json:"anon,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier HS256 令牌校验
type JWTVerifier struct {
	secret []byte
	issuer string
}

// NewJWTVerifier 创建校验器，secret 为空时所有令牌都无效
func NewJWTVerifier(cfg config.JWTConfig) *JWTVerifier {
	return &JWTVerifier{secret: []byte(cfg.Secret), issuer: cfg.Issuer}
}

func (v *JWTVerifier) Verify(token string) (vo.Identity, error) {
	if len(v.secret) == 0 {
		return vo.Identity{}, errors.New("jwt secret not configured")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return vo.Identity{}, err
	}
	if !parsed.Valid {
		return vo.Identity{}, errors.New("invalid token")
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return vo.Identity{}, fmt.Errorf("token has no subject")
	}
	if claims.Anon {
		return vo.NewGuestIdentity(subject), nil
	}
	return vo.NewAuthenticatedIdentity(subject, claims.Plan), nil
}

// Sign 签发令牌，供 CLI 与测试使用
func (v *JWTVerifier) Sign(claims Claims) (string, error) {
	if claims.Issuer == "" {
		claims.Issuer = v.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims 访问令牌声明
type Claims struct {
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
	DealerId string `json:"dealer_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier 校验 HS256 令牌
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier 创建令牌校验器
func NewTokenVerifier(secret, issuer string) (*TokenVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}, nil
}

// Parse 解析并校验令牌
func (v *TokenVerifier) Parse(tokenString string) (Actor, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" || claims.Role == "" {
		return Actor{}, fmt.Errorf("%w: missing subject or role", ErrUnauthorized)
	}
	return Actor{
		UserId:   claims.Subject,
		Email:    claims.Email,
		Role:     Role(claims.Role),
		DealerId: claims.DealerId,
	}, nil
}

// Sign 签发令牌，供运维工具和测试使用
func (v *TokenVerifier) Sign(actor Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:    actor.Email,
		Role:     string(actor.Role),
		DealerId: actor.DealerId,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserId,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// BearerToken 从 Authorization 头提取令牌
func BearerToken(header string) (string, error) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrUnauthorized
	}
	return strings.TrimSpace(header[len(prefix):]), nil
}

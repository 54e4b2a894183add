package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL 是浏览器扩展访问令牌的默认有效期。
const DefaultTokenTTL = 30 * 24 * time.Hour

const tokenIssuer = "twinlog"

var (
	// ErrInvalidToken 表示令牌无法解析、签名错误或已过期。
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenSecretMissing 表示未配置签名密钥。
	ErrTokenSecretMissing = errors.New("token secret is required")
)

// TokenClaims 是扩展令牌携带的声明。
type TokenClaims struct {
	UserID   uint   `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenService 为浏览器扩展签发与校验 HS256 令牌。
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService 构造 TokenService，ttl 非正数时使用默认值。
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(strings.TrimSpace(secret)), ttl: ttl, now: time.Now}
}

// Issue 签发令牌，返回令牌与过期时间。
func (s *TokenService) Issue(userID uint, username string) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, ErrTokenSecretMissing
	}

	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)
	claims := TokenClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate 校验令牌并返回声明。
func (s *TokenService) Validate(tokenString string) (*TokenClaims, error) {
	if len(s.secret) == 0 {
		return nil, ErrTokenSecretMissing
	}

	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(tokenString), claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"huntcurator/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

const tokenTTL = 12 * time.Hour

// AuthService handles curator authentication
type AuthService struct {
	username  string
	password  string
	jwtSecret []byte
}

// NewAuthService creates a new auth service
func NewAuthService(username, password, secret string) *AuthService {
	return &AuthService{
		username:  username,
		password:  password,
		jwtSecret: []byte(secret),
	}
}

// CuratorID is stable per username so sessions survive re-login
func CuratorID(username string) string {
	return "curator_" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(username)).String()[:8]
}

// Login validates credentials and returns a signed token
func (s *AuthService) Login(username, password string) (*model.LoginResponse, error) {
	if username != s.username || password != s.password {
		return nil, ErrInvalidCredentials
	}

	curatorID := CuratorID(username)
	now := time.Now()
	claims := &model.CuratorClaims{
		CuratorID: curatorID,
		Username:  username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &model.LoginResponse{
		Token:     tokenString,
		CuratorID: curatorID,
	}, nil
}

// ValidateToken validates a curator JWT and returns its claims
func (s *AuthService) ValidateToken(tokenString string) (*model.CuratorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.CuratorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.CuratorClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

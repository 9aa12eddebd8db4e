package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"anoa.com/bountyboard/internal/modules/admin/dto"
	"anoa.com/bountyboard/pkg/apperror"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Audience marks tokens issued to operators.
const Audience = "bountyboard-admin"

var ErrInvalidCredentials = apperror.New(401, "invalid credentials", apperror.ErrUnauthorized)

type AuthService interface {
	Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error)
}

type authService struct {
	username     string
	passwordHash []byte
	secret       []byte
	tokenTTL     time.Duration
	now          func() time.Time
}

func NewAuthService(username, passwordHash, secret string, tokenTTL time.Duration) AuthService {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &authService{
		username:     username,
		passwordHash: []byte(passwordHash),
		secret:       []byte(secret),
		tokenTTL:     tokenTTL,
		now:          time.Now,
	}
}

func (s *authService) Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error) {
	if len(s.passwordHash) == 0 || len(s.secret) == 0 {
		return nil, apperror.New(503, "admin login is not configured", errors.New("missing admin credentials"))
	}

	userOK := subtle.ConstantTimeCompare([]byte(input.Username), []byte(s.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(input.Password))
	if !userOK || passErr != nil {
		return nil, ErrInvalidCredentials
	}

	token, expiresIn, err := s.generateToken()
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{AccessToken: token, TokenType: "Bearer", ExpiresIn: expiresIn}, nil
}

func (s *authService) generateToken() (string, int64, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   s.username,
		Audience:  jwt.ClaimStrings{Audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(s.tokenTTL.Seconds()), nil
}

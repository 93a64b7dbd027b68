package usecase

import (
	"errors"
	"time"

	"jobtrail-backend/pkg/config"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// AuthUsecase resolves bearer tokens to account ids. Tokens are issued by
// the external identity service; IssueToken exists for the CLI and tests.
type AuthUsecase interface {
	ValidateToken(tokenString string) (accountID string, err error)
	IssueToken(accountID string, ttl time.Duration) (string, error)
}

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	secret []byte
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(cfg *config.Config) AuthUsecase {
	return &authUsecase{secret: []byte(cfg.Auth.JWTSecret)}
}

func (u *authUsecase) IssueToken(accountID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": accountID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(u.secret)
}

func (u *authUsecase) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return u.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	// identity service tokens carry the account in "sub"; older ones used "user_id"
	for _, key := range []string{"sub", "account", "user_id"} {
		if id, ok := claims[key].(string); ok && id != "" {
			return id, nil
		}
	}
	return "", ErrInvalidToken
}

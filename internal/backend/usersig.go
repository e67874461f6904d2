package backend

import (
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/meetcore/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidUserSig = errors.New("invalid user sig")
	ErrUserSigExpired = errors.New("user sig expired")
	ErrEmptySecret    = errors.New("usersig secret is empty")
)

const userSigIssuer = "meetcore"

// UserSigClaims binds a signature to one app and one user.
type UserSigClaims struct {
	AppID int `json:"app_id"`
	jwt.RegisteredClaims
}

// UserSigner issues and checks HS256 user signatures.
type UserSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewUserSigner(secret string, ttl time.Duration) (*UserSigner, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &UserSigner{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (s *UserSigner) Sign(appID int, user domain.UserID) (string, error) {
	now := s.now()
	claims := UserSigClaims{
		AppID: appID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(user),
			Issuer:    userSigIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	sig, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign usersig: %w", err)
	}
	return sig, nil
}

// Verify checks that sig was issued by this signer for appID and user.
func (s *UserSigner) Verify(appID int, user domain.UserID, sig string) error {
	claims := &UserSigClaims{}
	_, err := jwt.ParseWithClaims(sig, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(userSigIssuer),
		jwt.WithSubject(string(user)),
		jwt.WithTimeFunc(s.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrUserSigExpired
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUserSig, err)
	}
	if claims.AppID != appID {
		return fmt.Errorf("%w: app id mismatch", ErrInvalidUserSig)
	}
	return nil
}

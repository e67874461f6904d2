// Package domain contains meeting entities without transport or lifecycle logic.
package domain

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

const (
	MaxUserIDLen = 36
	MaxRoomIDLen = 64
)

var (
	ErrUserIDEmpty   = errors.New("user id empty")
	ErrUserIDTooLong = errors.New("user id too long")
	ErrUserSigEmpty  = errors.New("user sig empty")
	ErrAppIDInvalid  = errors.New("app id must be positive")
	ErrRoomIDEmpty   = errors.New("room id empty")
	ErrRoomIDTooLong = errors.New("room id too long")
)

type UserID string

// Credential is the identity a session authenticates with.
// It is immutable once built; UserSig is opaque and never rendered.
type Credential struct {
	AppID   int
	UserID  UserID
	UserSig string
}

// NewCredential avoids raw literals in adapters and keeps validation in one place.
func NewCredential(appID int, userID, userSig string) (Credential, error) {
	if appID <= 0 {
		return Credential{}, ErrAppIDInvalid
	}
	if err := ValidateUserID(UserID(userID)); err != nil {
		return Credential{}, err
	}
	if userSig == "" {
		return Credential{}, ErrUserSigEmpty
	}
	return Credential{AppID: appID, UserID: UserID(userID), UserSig: userSig}, nil
}

func ValidateUserID(id UserID) error {
	if len(id) == 0 {
		return ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return ErrUserIDTooLong
	}
	return nil
}

func (c Credential) String() string {
	return fmt.Sprintf("%d/%s", c.AppID, c.UserID)
}

// MarshalZerologObject lets log.Info().Object("cred", c) omit the signature.
func (c Credential) MarshalZerologObject(e *zerolog.Event) {
	e.Int("app_id", c.AppID).Str("user", string(c.UserID))
}

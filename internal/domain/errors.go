package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure a caller can observe.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindInvalidCredential
	KindNetworkTimeout
	KindNetwork
	KindNotAuthenticated
	KindAlreadyInProgress
	KindAlreadyLoggedIn
	KindRoomAlreadyActive
	KindRoomNotFound
	KindRoomExists
	KindNoPrivilege
	KindCanceled
	KindBackend
	KindProtocolAnomaly
	KindParticipantNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInvalidCredential:
		return "invalid_credential"
	case KindNetworkTimeout:
		return "network_timeout"
	case KindNetwork:
		return "network"
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindAlreadyInProgress:
		return "already_in_progress"
	case KindAlreadyLoggedIn:
		return "already_logged_in"
	case KindRoomAlreadyActive:
		return "room_already_active"
	case KindRoomNotFound:
		return "room_not_found"
	case KindRoomExists:
		return "room_exists"
	case KindNoPrivilege:
		return "no_privilege"
	case KindCanceled:
		return "canceled"
	case KindBackend:
		return "backend"
	case KindProtocolAnomaly:
		return "protocol_anomaly"
	case KindParticipantNotFound:
		return "participant_not_found"
	default:
		return "unknown"
	}
}

// Retryable is true for transport failures; the caller owns the retry policy.
func (k ErrorKind) Retryable() bool {
	return k == KindNetworkTimeout || k == KindNetwork
}

// Local result codes. Backend codes are positive and pass through untouched.
const (
	CodeOK                  = 0
	CodeInvalidCredential   = -1001
	CodeTimeout             = -1002
	CodeNetwork             = -1003
	CodeNotAuthenticated    = -1004
	CodeAlreadyInProgress   = -1005
	CodeAlreadyLoggedIn     = -1006
	CodeRoomAlreadyActive   = -1007
	CodeRoomNotFound        = -1008
	CodeRoomExists          = -1009
	CodeNoPrivilege         = -1010
	CodeCanceled            = -1011
	CodeBackend             = -1012
	CodeParticipantNotFound = -1013
)

// Error is a surfaced failure: a code, a kind and a human message.
type Error struct {
	Code    int
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Retryable() bool { return e.Kind.Retryable() }

// Is matches on kind so errors.Is(err, ErrRoomNotFound) holds for backend codes too.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

func NewError(kind ErrorKind, code int, msg string) *Error {
	return &Error{Code: code, Kind: kind, Message: msg}
}

var (
	ErrInvalidCredential   = NewError(KindInvalidCredential, CodeInvalidCredential, "invalid credential")
	ErrTimeout             = NewError(KindNetworkTimeout, CodeTimeout, "request timed out")
	ErrNetwork             = NewError(KindNetwork, CodeNetwork, "network unavailable")
	ErrNotAuthenticated    = NewError(KindNotAuthenticated, CodeNotAuthenticated, "not authenticated")
	ErrAlreadyInProgress   = NewError(KindAlreadyInProgress, CodeAlreadyInProgress, "operation already in progress")
	ErrAlreadyLoggedIn     = NewError(KindAlreadyLoggedIn, CodeAlreadyLoggedIn, "another user is logged in")
	ErrRoomAlreadyActive   = NewError(KindRoomAlreadyActive, CodeRoomAlreadyActive, "a room is already active")
	ErrRoomNotFound        = NewError(KindRoomNotFound, CodeRoomNotFound, "room not found")
	ErrRoomExists          = NewError(KindRoomExists, CodeRoomExists, "room already exists")
	ErrNoPrivilege         = NewError(KindNoPrivilege, CodeNoPrivilege, "no privilege")
	ErrCanceled            = NewError(KindCanceled, CodeCanceled, "request canceled")
	ErrParticipantNotFound = NewError(KindParticipantNotFound, CodeParticipantNotFound, "participant not in room")
)

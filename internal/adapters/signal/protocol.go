package signal

import (
	"errors"

	"github.com/dkeye/meetcore/internal/backend"
	"github.com/dkeye/meetcore/internal/domain"
)

// Client to server.
const (
	TypeLogin         = "login"
	TypeLogout        = "logout"
	TypeCreateRoom    = "create_room"
	TypeJoinRoom      = "join_room"
	TypeLeaveRoom     = "leave_room"
	TypeDestroyRoom   = "destroy_room"
	TypeMediaState    = "media_state"
	TypeQuality       = "quality"
	TypeKick          = "kick"
	TypeTransferOwner = "transfer_owner"
	TypeOffer         = "offer"
	TypeCandidate     = "candidate"
	TypePing          = "ping"
)

// Server to client. Room events reuse backend.EventType names.
const (
	TypeResult = "result"
	TypeAnswer = "answer"
	TypePong   = "pong"
	TypeError  = "error"
)

// Wire result codes.
const (
	CodeOK             = 0
	CodeBadRequest     = 4000
	CodeInvalidUserSig = 4001
	CodeUserSigExpired = 4002
	CodeNotLoggedIn    = 4010
	CodeNoPrivilege    = 4030
	CodeRoomNotFound   = 4040
	CodeNotMember      = 4041
	CodeRoomExists     = 4090
	CodeAlreadyInRoom  = 4091
	CodeRateLimited    = 4290
	CodeInternal       = 5000
)

// Envelope is every frame on the signaling socket. Requests carry ReqID and
// get exactly one "result" with the same ReqID.
type Envelope struct {
	Type  string `json:"type"`
	ReqID string `json:"req_id,omitempty"`

	AppID   int    `json:"app_id,omitempty"`
	UserID  string `json:"user_id,omitempty"`
	UserSig string `json:"user_sig,omitempty"`

	RoomID  string               `json:"room_id,omitempty"`
	OwnerID string               `json:"owner_id,omitempty"`
	Seq     uint64               `json:"seq,omitempty"`
	Members []domain.Participant `json:"members,omitempty"`

	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`

	Audio     *bool  `json:"audio,omitempty"`
	Video     *bool  `json:"video,omitempty"`
	Available bool   `json:"available,omitempty"`
	Quality   int    `json:"quality,omitempty"`
	Target    string `json:"target,omitempty"`
	Reason    string `json:"reason,omitempty"`

	SDP           string  `json:"sdp,omitempty"`
	Candidate     string  `json:"candidate,omitempty"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// CodeOf maps a hub error onto its wire code.
func CodeOf(err error) int {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, backend.ErrUserSigExpired):
		return CodeUserSigExpired
	case errors.Is(err, backend.ErrInvalidUserSig):
		return CodeInvalidUserSig
	case errors.Is(err, backend.ErrNotLoggedIn):
		return CodeNotLoggedIn
	case errors.Is(err, backend.ErrNoPrivilege):
		return CodeNoPrivilege
	case errors.Is(err, backend.ErrRoomNotFound):
		return CodeRoomNotFound
	case errors.Is(err, backend.ErrNotMember):
		return CodeNotMember
	case errors.Is(err, backend.ErrRoomExists):
		return CodeRoomExists
	case errors.Is(err, backend.ErrAlreadyInRoom):
		return CodeAlreadyInRoom
	case errors.Is(err, backend.ErrRateLimited):
		return CodeRateLimited
	default:
		return CodeInternal
	}
}

// Classify maps a wire code onto the kind a session surfaces.
func Classify(code int) domain.ErrorKind {
	switch code {
	case CodeOK:
		return domain.KindNone
	case CodeInvalidUserSig, CodeUserSigExpired:
		return domain.KindInvalidCredential
	case CodeNotLoggedIn:
		return domain.KindNotAuthenticated
	case CodeNoPrivilege:
		return domain.KindNoPrivilege
	case CodeRoomNotFound, CodeNotMember:
		return domain.KindRoomNotFound
	case CodeRoomExists:
		return domain.KindRoomExists
	case CodeAlreadyInRoom:
		return domain.KindRoomAlreadyActive
	default:
		return domain.KindBackend
	}
}

// EventEnvelope renders a hub event for the wire.
func EventEnvelope(ev backend.Event) Envelope {
	return Envelope{
		Type:      ev.Type.String(),
		RoomID:    string(ev.RoomID),
		UserID:    string(ev.UserID),
		OwnerID:   string(ev.OwnerID),
		Seq:       ev.Seq,
		Available: ev.Available,
		Quality:   int(ev.Quality),
		Reason:    ev.Reason,
	}
}

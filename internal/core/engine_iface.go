package core

import "github.com/dkeye/meetcore/internal/domain"

// RequestID correlates a fire-and-forget engine call with its completion.
type RequestID string

// MediaEngine is the boundary to the transport/codec layer.
// Calls must not block on the network; results come back through the EventSink.
type MediaEngine interface {
	Authenticate(cred domain.Credential) (RequestID, error)
	Logout() (RequestID, error)
	CreateRoom(id domain.RoomID) (RequestID, error)
	// JoinRoom completes with the room's roster snapshot and its sequence number.
	JoinRoom(id domain.RoomID) (RequestID, error)
	DestroyRoom(id domain.RoomID) (RequestID, error)
	// KickUser removes a member from the current room. Owner only.
	KickUser(id domain.UserID) (RequestID, error)
	// TransferOwner hands the current room to another member. Owner only.
	TransferOwner(id domain.UserID) (RequestID, error)
	// LeaveRoom releases local publish/subscribe state. No completion follows.
	LeaveRoom() error
	// Subscribe sets the sink every asynchronous event is pushed to, in receive order.
	Subscribe(sink EventSink)
}

// EventSink receives engine events from any goroutine.
type EventSink interface {
	OnEngineEvent(EngineEvent)
}

type EngineEventType int

const (
	EngineCompletion EngineEventType = iota
	EngineParticipantJoined
	EngineParticipantLeft
	EngineAudioAvailable
	EngineVideoAvailable
	EngineNetworkQuality
	EngineOwnerChanged
	EngineRoomClosed
	EngineKicked
	EngineConnectionLost
)

func (t EngineEventType) String() string {
	switch t {
	case EngineCompletion:
		return "completion"
	case EngineParticipantJoined:
		return "participant_joined"
	case EngineParticipantLeft:
		return "participant_left"
	case EngineAudioAvailable:
		return "audio_available"
	case EngineVideoAvailable:
		return "video_available"
	case EngineNetworkQuality:
		return "network_quality"
	case EngineOwnerChanged:
		return "owner_changed"
	case EngineRoomClosed:
		return "room_closed"
	case EngineKicked:
		return "kicked"
	case EngineConnectionLost:
		return "connection_lost"
	default:
		return "unknown"
	}
}

// EngineEvent is one raw event from the adapter. Completions carry RequestID;
// roster and quality events are untagged.
type EngineEvent struct {
	Type      EngineEventType
	RequestID RequestID

	// Completion outcome. Kind is the adapter's classification of Code.
	Code    int
	Message string
	Kind    domain.ErrorKind

	RoomID  domain.RoomID
	OwnerID domain.UserID
	// Seq orders roster changes within a room; 0 means the adapter does not sequence.
	Seq    uint64
	Roster []domain.Participant

	UserID    domain.UserID
	Available bool
	Quality   domain.NetworkQuality
	Reason    string
}

// IsRoster reports whether ev changes the roster or a participant's fields.
func (ev EngineEvent) IsRoster() bool {
	switch ev.Type {
	case EngineParticipantJoined, EngineParticipantLeft,
		EngineAudioAvailable, EngineVideoAvailable, EngineNetworkQuality:
		return true
	}
	return false
}

package domain

type RoomID string

func (id RoomID) Validate() error {
	if len(id) == 0 {
		return ErrRoomIDEmpty
	}
	if len(id) > MaxRoomIDLen {
		return ErrRoomIDTooLong
	}
	return nil
}

type RoomState int

const (
	RoomJoining RoomState = iota
	RoomActive
	RoomClosed
)

func (s RoomState) String() string {
	switch s {
	case RoomJoining:
		return "joining"
	case RoomActive:
		return "active"
	case RoomClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Room is the meta of the one room a session may hold. The roster lives in core.Roster.
type Room struct {
	ID      RoomID    `json:"room_id"`
	OwnerID UserID    `json:"owner_id"`
	State   RoomState `json:"-"`
}

// IsOwner reports whether id owns the room.
func (r Room) IsOwner(id UserID) bool {
	return r.OwnerID != "" && r.OwnerID == id
}

// CloseReason tells listeners why the room went away without a LeaveRoom call.
type CloseReason int

const (
	CloseByBackend CloseReason = iota
	CloseOwnershipTransferred
	CloseKicked
	CloseDisconnected
	CloseDestroyed
)

func (r CloseReason) String() string {
	switch r {
	case CloseByBackend:
		return "closed_by_backend"
	case CloseOwnershipTransferred:
		return "ownership_transferred"
	case CloseKicked:
		return "kicked"
	case CloseDisconnected:
		return "disconnected"
	case CloseDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

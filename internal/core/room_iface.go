package core

import "github.com/dkeye/meetcore/internal/domain"

// RoomEvent is an uncorrelated room event. The set of variants is closed.
type RoomEvent interface {
	Room() domain.RoomID
	roomEvent()
}

type ParticipantJoined struct {
	RoomID      domain.RoomID      `json:"room_id"`
	Participant domain.Participant `json:"participant"`
}

type ParticipantLeft struct {
	RoomID domain.RoomID `json:"room_id"`
	UserID domain.UserID `json:"user_id"`
	Reason string        `json:"reason,omitempty"`
}

type AudioAvailabilityChanged struct {
	RoomID    domain.RoomID `json:"room_id"`
	UserID    domain.UserID `json:"user_id"`
	Available bool          `json:"available"`
}

type VideoAvailabilityChanged struct {
	RoomID    domain.RoomID `json:"room_id"`
	UserID    domain.UserID `json:"user_id"`
	Available bool          `json:"available"`
}

type NetworkQualityChanged struct {
	RoomID  domain.RoomID         `json:"room_id"`
	UserID  domain.UserID         `json:"user_id"`
	Quality domain.NetworkQuality `json:"quality"`
}

// RoomClosed is emitted when the room ends without a LeaveRoom call.
type RoomClosed struct {
	RoomID domain.RoomID      `json:"room_id"`
	Reason domain.CloseReason `json:"reason"`
}

func (e ParticipantJoined) Room() domain.RoomID        { return e.RoomID }
func (e ParticipantLeft) Room() domain.RoomID          { return e.RoomID }
func (e AudioAvailabilityChanged) Room() domain.RoomID { return e.RoomID }
func (e VideoAvailabilityChanged) Room() domain.RoomID { return e.RoomID }
func (e NetworkQualityChanged) Room() domain.RoomID    { return e.RoomID }
func (e RoomClosed) Room() domain.RoomID               { return e.RoomID }

func (ParticipantJoined) roomEvent()        {}
func (ParticipantLeft) roomEvent()          {}
func (AudioAvailabilityChanged) roomEvent() {}
func (VideoAvailabilityChanged) roomEvent() {}
func (NetworkQualityChanged) roomEvent()    {}
func (RoomClosed) roomEvent()               {}

// EventName is the wire/log name of a room event.
func EventName(ev RoomEvent) string {
	switch ev.(type) {
	case ParticipantJoined:
		return "participant_joined"
	case ParticipantLeft:
		return "participant_left"
	case AudioAvailabilityChanged:
		return "audio_changed"
	case VideoAvailabilityChanged:
		return "video_changed"
	case NetworkQualityChanged:
		return "network_quality_changed"
	case RoomClosed:
		return "room_closed"
	default:
		return "unknown"
	}
}

// RoomListener receives room events on the session's executor.
type RoomListener interface {
	OnRoomEvent(RoomEvent)
}

type ListenerFunc func(RoomEvent)

func (f ListenerFunc) OnRoomEvent(ev RoomEvent) { f(ev) }

// ListenerID is a registration handle. IDs are never reused, so a stale
// handle can never match a newer registration.
type ListenerID uint64

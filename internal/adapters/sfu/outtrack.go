package sfu

import (
	"sync/atomic"

	"github.com/dkeye/meetcore/internal/domain"
	"github.com/pion/webrtc/v4"
)

type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStateDelete
)

// OutTrack is one subscriber's local track of a given kind. A relay writes into it.
type OutTrack struct {
	Room  domain.RoomID
	User  domain.UserID
	Track *webrtc.TrackLocalStaticRTP
	state atomic.Int32 // Zero by default (TrackStateOk)
}

func NewOutTrack(room domain.RoomID, user domain.UserID, track *webrtc.TrackLocalStaticRTP) *OutTrack {
	return &OutTrack{Room: room, User: user, Track: track}
}

func (ot *OutTrack) Kind() webrtc.RTPCodecType { return ot.Track.Kind() }

func (ot *OutTrack) State() TrackState {
	return TrackState(ot.state.Load())
}

func (ot *OutTrack) MarkDelete() {
	ot.state.Store(int32(TrackStateDelete))
}

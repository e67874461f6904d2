package sfu

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/dkeye/meetcore/internal/domain"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// ReadFunc yields the next RTP packet of a published track.
type ReadFunc func() (*rtp.Packet, error)

// Relay forwards one publisher's track of one kind to the subscribers of its room.
type Relay struct {
	Room domain.RoomID
	User domain.UserID
	Kind webrtc.RTPCodecType

	read  ReadFunc
	muted atomic.Bool
	// seq orders relays by start so subscribers follow the newest publisher.
	seq uint64

	mu        sync.RWMutex
	outTracks map[domain.UserID]*OutTrack

	cancel context.CancelFunc
}

func NewRelay(room domain.RoomID, user domain.UserID, kind webrtc.RTPCodecType, read ReadFunc, cancel context.CancelFunc) *Relay {
	return &Relay{
		Room:      room,
		User:      user,
		Kind:      kind,
		read:      read,
		outTracks: make(map[domain.UserID]*OutTrack),
		cancel:    cancel,
	}
}

// loop reads RTP packets from the source and forwards them until ctx ends or the read fails.
func (r *Relay) loop(ctx context.Context, logger *zerolog.Logger, onExit func()) {
	defer onExit()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay ctx done")
			return
		default:
		}
		pkt, err := r.read()
		if err != nil {
			logger.Info().Err(err).Msg("relay source ended")
			return
		}
		r.forward(pkt, logger)
	}
}

func (r *Relay) forward(pkt *rtp.Packet, logger *zerolog.Logger) int {
	if r.muted.Load() {
		return 0
	}
	snapshot := make(map[domain.UserID]*OutTrack, len(r.outTracks))
	r.mu.RLock()
	maps.Copy(snapshot, r.outTracks)
	r.mu.RUnlock()

	sent := 0
	dirty := make([]domain.UserID, 0, len(snapshot))
	for dst, ot := range snapshot {
		if ot.State() == TrackStateDelete {
			dirty = append(dirty, dst)
			continue
		}
		if err := ot.Track.WriteRTP(pkt); err != nil {
			logger.Error().
				Err(err).
				Str("dst", string(dst)).
				Msg("relay write RTP error, dropping subscriber")
			ot.MarkDelete()
			dirty = append(dirty, dst)
			continue
		}
		sent++
	}

	// Cleanup is done outside the RLock.
	if len(dirty) > 0 {
		r.cleanupDeleted(dirty)
	}
	return sent
}

func (r *Relay) cleanupDeleted(dirty []domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range dirty {
		if ot, ok := r.outTracks[u]; ok && ot.State() == TrackStateDelete {
			delete(r.outTracks, u)
		}
	}
}

func (r *Relay) attach(ot *OutTrack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outTracks[ot.User] = ot
}

func (r *Relay) detach(user domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.outTracks, user)
}

func (r *Relay) subscribers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.outTracks)
}

package rtc

import (
	"context"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrClosed = errors.New("peer connection closed")

// Answerer is the backend side of one client's media session: it accepts the
// client's offer and answers it. Remote tracks are handed to OnTrack.
type Answerer struct {
	pc     *webrtc.PeerConnection
	peer   string
	onICE  func(webrtc.ICECandidateInit)
	ctx    context.Context
	cancel context.CancelFunc

	onTrack  func(track *webrtc.TrackRemote)
	onClosed func()
}

func DefaultWebRTCConfig(stunURLs ...string) webrtc.Configuration {
	if len(stunURLs) == 0 {
		stunURLs = []string{"stun:stun.l.google.com:19302"}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stunURLs}},
	}
}

func NewAnswerer(cfg webrtc.Configuration, peer string) (*Answerer, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &Answerer{pc: pc, peer: peer}, nil
}

func (a *Answerer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.ctx, a.cancel = ctx, cancel

	a.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("peer", a.peer).Str("ice_state", s.String()).Msg("ICE state")
		if s == webrtc.ICEConnectionStateFailed || s == webrtc.ICEConnectionStateClosed {
			cancel()
		}
	})

	a.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer", a.peer).Str("peer_connection_state", s.String()).Msg("Peer state")
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			if a.onClosed != nil {
				a.onClosed()
			}
		}
	})

	a.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && a.onICE != nil {
			a.onICE(cand.ToJSON())
		}
	})

	a.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("peer", a.peer).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("remote track")
		if a.onTrack != nil {
			a.onTrack(track)
		}
	})

	return nil
}

func (a *Answerer) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := a.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := a.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}

	gatherComplete := webrtc.GatheringCompletePromise(a.pc)
	if err := a.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	<-gatherComplete

	return a.pc.LocalDescription(), nil
}

func (a *Answerer) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if err := a.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("peer", a.peer).Msg("close error")
	} else {
		log.Info().Str("module", "rtc").Str("peer", a.peer).Msg("closed")
	}
}

// Context ends when the connection fails or is closed.
func (a *Answerer) Context() context.Context { return a.ctx }

func (a *Answerer) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return a.pc.AddICECandidate(ci)
}

func (a *Answerer) OnICECandidate(fn func(webrtc.ICECandidateInit)) { a.onICE = fn }

// OnTrack receives every remote track the client publishes.
func (a *Answerer) OnTrack(fn func(track *webrtc.TrackRemote)) { a.onTrack = fn }

// AddLocalTrack adds a track the client will receive. It must be called before
// the offer is applied so it binds to the offered transceiver of its kind.
func (a *Answerer) AddLocalTrack(kind webrtc.RTPCodecType) (*webrtc.TrackLocalStaticRTP, error) {
	codec, ok := forwardCodecs[kind]
	if !ok {
		return nil, fmt.Errorf("no codec for %s", kind)
	}
	track, err := webrtc.NewTrackLocalStaticRTP(codec, kind.String(), "meet-"+a.peer)
	if err != nil {
		return nil, err
	}
	if _, err := a.pc.AddTrack(track); err != nil {
		return nil, err
	}
	return track, nil
}

var forwardCodecs = map[webrtc.RTPCodecType]webrtc.RTPCodecCapability{
	webrtc.RTPCodecTypeAudio: {MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
	webrtc.RTPCodecTypeVideo: {MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
}

func (a *Answerer) OnClosed(fn func()) { a.onClosed = fn }

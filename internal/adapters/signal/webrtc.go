package signal

import (
	"context"

	"github.com/dkeye/meetcore/internal/adapters/rtc"
	"github.com/dkeye/meetcore/internal/domain"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var mediaKinds = []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo}

func (ctl *SignalWSController) sendCandidate(c *WsSignalConn, ci webrtc.ICECandidateInit) {
	ctl.sendJSON(c, Envelope{
		Type:          TypeCandidate,
		Candidate:     ci.Candidate,
		SDPMid:        ci.SDPMid,
		SDPMLineIndex: ci.SDPMLineIndex,
	})
}

// handleOffer opens the member's media session: its published tracks are relayed
// to the room and it receives the room's newest publisher of each kind.
func (ctl *SignalWSController) handleOffer(ctx context.Context, c *WsSignalConn, env Envelope) {
	if ctl.opts.Media == nil {
		ctl.reply(c, env, CodeBadRequest, "media disabled")
		return
	}
	user, room, ok := ctl.Hub.Whereabouts(c.id)
	if !ok {
		ctl.reply(c, env, CodeNotMember, "not in a room")
		return
	}

	a, err := rtc.NewAnswerer(*ctl.opts.Media, c.id)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc new pc")
		ctl.reply(c, env, CodeInternal, "media unavailable")
		return
	}
	a.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		ctl.sendCandidate(c, ci)
	})
	if err := a.Start(ctx); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc start")
		a.Close()
		ctl.reply(c, env, CodeInternal, "media unavailable")
		return
	}
	a.OnTrack(func(track *webrtc.TrackRemote) {
		ctl.relays.StartRelay(a.Context(), room, user, track.Kind(), func() (*rtp.Packet, error) {
			pkt, _, err := track.ReadRTP()
			return pkt, err
		})
	})

	// replace before subscribing so the old session's subscriptions are gone
	c.setMedia(a, user)
	for _, kind := range mediaKinds {
		local, err := a.AddLocalTrack(kind)
		if err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("kind", kind.String()).Msg("no forwarded track")
			continue
		}
		ctl.relays.AddSubscriber(room, user, local)
	}

	answer, err := a.ApplyOfferAndCreateAnswer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: env.SDP})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc apply offer")
		c.dropMedia()
		ctl.reply(c, env, CodeBadRequest, "bad offer")
		return
	}

	ctl.sendJSON(c, Envelope{Type: TypeAnswer, ReqID: env.ReqID, SDP: answer.SDP})
}

func (ctl *SignalWSController) handleCandidate(c *WsSignalConn, env Envelope) {
	mc := c.currentMedia()
	if mc == nil {
		log.Warn().Str("module", "signal").Str("peer", c.id).Msg("candidate: no media connection")
		return
	}
	cand := webrtc.ICECandidateInit{
		Candidate:     env.Candidate,
		SDPMid:        env.SDPMid,
		SDPMLineIndex: env.SDPMLineIndex,
	}
	if err := mc.AddICECandidate(cand); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("add ice candidate")
	}
}

// muteRelays makes the relays follow the member's announced media flags.
func (ctl *SignalWSController) muteRelays(user domain.UserID, audio, video *bool) {
	if ctl.relays == nil {
		return
	}
	if audio != nil {
		ctl.relays.SetMuted(user, webrtc.RTPCodecTypeAudio, !*audio)
	}
	if video != nil {
		ctl.relays.SetMuted(user, webrtc.RTPCodecTypeVideo, !*video)
	}
}

package engine

import (
	"github.com/dkeye/meetcore/internal/adapters/rtc"
	"github.com/dkeye/meetcore/internal/adapters/signal"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// publish opens a publisher for the room entered in generation gen and sends
// its offer. Media released in the meantime makes it a no-op.
func (e *Engine) publish(gen uint64) {
	pub, err := rtc.NewPublisher(*e.opts.Media)
	if err != nil {
		log.Error().Err(err).Str("module", "engine").Msg("publisher")
		return
	}
	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		_ = pub.Close()
		log.Debug().Str("module", "engine").Msg("room left before publishing")
		return
	}
	prev := e.pub
	e.pub = pub
	e.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}

	offer, err := pub.Offer()
	if err != nil {
		log.Error().Err(err).Str("module", "engine").Msg("publisher offer")
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return
	}
	if err := e.enqueueLocked(signal.Envelope{Type: signal.TypeOffer, SDP: offer.SDP}); err != nil {
		log.Warn().Err(err).Str("module", "engine").Msg("send offer")
	}
}

func (e *Engine) onAnswer(env signal.Envelope) {
	pub := e.publisher()
	if pub == nil {
		return
	}
	if err := pub.ApplyAnswer(env.SDP); err != nil {
		log.Error().Err(err).Str("module", "engine").Msg("apply answer")
	}
}

func (e *Engine) onCandidate(env signal.Envelope) {
	pub := e.publisher()
	if pub == nil {
		return
	}
	ci := webrtc.ICECandidateInit{Candidate: env.Candidate, SDPMid: env.SDPMid, SDPMLineIndex: env.SDPMLineIndex}
	if err := pub.AddICECandidate(ci); err != nil {
		log.Debug().Err(err).Str("module", "engine").Msg("add ice candidate")
	}
}

func (e *Engine) publisher() *rtc.Publisher {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pub
}

// releaseMedia closes the publisher and forgets room requests still in
// flight, so a late room result no longer starts one.
func (e *Engine) releaseMedia() {
	e.mu.Lock()
	pub := e.pub
	e.pub = nil
	e.gen++
	clear(e.rooms)
	e.mu.Unlock()
	if pub != nil {
		_ = pub.Close()
	}
}

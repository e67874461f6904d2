package signal

import (
	"github.com/dkeye/meetcore/internal/domain"
)

func (ctl *SignalWSController) handlePing(c *WsSignalConn) {
	ctl.sendJSON(c, Envelope{Type: TypePong})
}

func (ctl *SignalWSController) handleMediaState(c *WsSignalConn, env Envelope) {
	err := ctl.Hub.SetMedia(c.id, env.Audio, env.Video)
	if err == nil {
		if user, _, ok := ctl.Hub.Whereabouts(c.id); ok {
			ctl.muteRelays(user, env.Audio, env.Video)
		}
	}
	ctl.replyErr(c, env, err)
}

func (ctl *SignalWSController) handleQuality(c *WsSignalConn, env Envelope) {
	q := domain.NetworkQuality(env.Quality)
	if !q.Valid() {
		ctl.reply(c, env, CodeBadRequest, "quality out of range")
		return
	}
	ctl.replyErr(c, env, ctl.Hub.SetQuality(c.id, q))
}

package signal

import (
	"github.com/dkeye/meetcore/internal/domain"
)

func (ctl *SignalWSController) handleLogin(c *WsSignalConn, env Envelope) {
	err := ctl.Hub.Login(c.id, env.AppID, domain.UserID(env.UserID), env.UserSig)
	ctl.replyErr(c, env, err)
}

func (ctl *SignalWSController) handleLogout(c *WsSignalConn, env Envelope) {
	c.dropMedia()
	ctl.replyErr(c, env, ctl.Hub.Logout(c.id))
}

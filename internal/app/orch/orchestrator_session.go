package orch

import (
	"github.com/dkeye/meetcore/internal/app"
	"github.com/dkeye/meetcore/internal/core"
	"github.com/dkeye/meetcore/internal/domain"
	"github.com/rs/zerolog/log"
)

// Login authenticates userID. cb gets exactly one result.
func (o *Orchestrator) Login(appID int, userID, userSig string, cb core.Callback) {
	cred, err := domain.NewCredential(appID, userID, userSig)
	if err != nil {
		o.fail(cb, domain.NewError(domain.KindInvalidCredential, domain.CodeInvalidCredential, err.Error()))
		return
	}
	o.submit(cb, func() { o.login(cred, cb) })
}

func (o *Orchestrator) login(cred domain.Credential, cb core.Callback) {
	switch o.State() {
	case domain.LoggingIn, domain.LoggingOut:
		o.fail(cb, domain.ErrAlreadyInProgress)
		return
	case domain.Authenticated:
		if o.UserID() == cred.UserID {
			o.deliver(cb, core.OK())
			return
		}
		o.fail(cb, domain.ErrAlreadyLoggedIn)
		return
	}

	id, err := o.engine.Authenticate(cred)
	if err != nil {
		o.fail(cb, engineError(err))
		return
	}
	if err := o.pending.Add(id, app.RequestLogin, cb); err != nil {
		o.fail(cb, domain.NewError(domain.KindBackend, domain.CodeBackend, err.Error()))
		return
	}
	o.setCredential(cred)
	o.setState(domain.LoggingIn)
	log.Info().Str("module", "app.orch").Object("cred", cred).Str("req", string(id)).Msg("login issued")
}

func (o *Orchestrator) loginDone(req *app.PendingRequest, res core.Result) {
	if res.OK() {
		o.setState(domain.Authenticated)
		log.Info().Str("module", "app.orch").Str("user", string(o.UserID())).Msg("logged in")
	} else {
		o.setCredential(domain.Credential{})
		o.setState(domain.LoggedOut)
		log.Warn().Str("module", "app.orch").Str("kind", res.Kind.String()).Int("code", res.Code).Msg("login failed")
	}
	o.deliver(req.Callback, res)
}

// Logout leaves any room and ends the session. Logging out while logged
// out succeeds; logging out during a login cancels that login.
func (o *Orchestrator) Logout(cb core.Callback) {
	o.submit(cb, func() { o.logout(cb) })
}

func (o *Orchestrator) logout(cb core.Callback) {
	switch o.State() {
	case domain.LoggedOut:
		o.deliver(cb, core.OK())
		return
	case domain.LoggingOut:
		o.fail(cb, domain.ErrAlreadyInProgress)
		return
	case domain.LoggingIn:
		for _, req := range o.pending.CancelKinds(app.RequestLogin) {
			o.deliver(req.Callback, core.ResultOf(domain.ErrCanceled))
		}
		o.setCredential(domain.Credential{})
		o.setState(domain.LoggedOut)
		o.deliver(cb, core.OK())
		return
	}

	o.leave()
	o.setState(domain.LoggingOut)
	id, err := o.engine.Logout()
	if err == nil {
		err = o.pending.Add(id, app.RequestLogout, cb)
	}
	if err != nil {
		// The session ends locally either way.
		o.loggedOut()
		o.fail(cb, engineError(err))
	}
}

func (o *Orchestrator) logoutDone(req *app.PendingRequest, res core.Result) {
	o.loggedOut()
	o.deliver(req.Callback, res)
}

func (o *Orchestrator) loggedOut() {
	o.setCredential(domain.Credential{})
	o.setState(domain.LoggedOut)
}

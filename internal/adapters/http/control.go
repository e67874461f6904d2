package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dkeye/meetcore/internal/app/orch"
	"github.com/dkeye/meetcore/internal/config"
	"github.com/dkeye/meetcore/internal/core"
	"github.com/dkeye/meetcore/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// MediaControl is the part of the engine the control API exposes directly.
type MediaControl interface {
	SetMedia(audio, video *bool) error
	ReportQuality(q domain.NetworkQuality) error
}

type Control struct {
	sess  *orch.Orchestrator
	media MediaControl
	// wait bounds how long a handler waits for a session callback.
	wait time.Duration
}

func NewControl(sess *orch.Orchestrator, media MediaControl, wait time.Duration) *Control {
	if wait <= 0 {
		wait = orch.DefaultRequestTimeout + time.Second
	}
	return &Control{sess: sess, media: media, wait: wait}
}

// SetupControlRouter serves the local API a UI drives the meeting session through.
func SetupControlRouter(cfg *config.Config, ctl *Control) *gin.Engine {
	r := newEngine(cfg, "MeetControl")
	api := r.Group("/api")

	api.POST("/login", ctl.login)
	api.POST("/logout", ctl.logout)
	api.GET("/session", ctl.session)
	api.POST("/rooms", ctl.createRoom)
	api.POST("/rooms/join", ctl.joinRoom)
	api.DELETE("/rooms/current", ctl.leaveRoom)
	api.POST("/rooms/current/destroy", ctl.destroyRoom)
	api.POST("/rooms/current/kick", ctl.kickUser)
	api.POST("/rooms/current/owner", ctl.transferOwner)
	api.PUT("/media", ctl.setMedia)
	api.PUT("/quality", ctl.setQuality)
	api.GET("/events", ctl.events)

	log.Info().Str("module", "adapters.http").Msg("control router setup")
	return r
}

type loginRequest struct {
	AppID   int    `json:"app_id"`
	UserID  string `json:"user_id"`
	UserSig string `json:"user_sig"`
}

type roomRequest struct {
	RoomID string `json:"room_id"`
}

type userRequest struct {
	UserID string `json:"user_id"`
}

type mediaRequest struct {
	Audio *bool `json:"audio"`
	Video *bool `json:"video"`
}

type qualityRequest struct {
	Quality int `json:"quality"`
}

func (ctl *Control) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	ctl.await(c, func(cb core.Callback) { ctl.sess.Login(req.AppID, req.UserID, req.UserSig, cb) })
}

func (ctl *Control) logout(c *gin.Context) {
	ctl.await(c, ctl.sess.Logout)
}

func (ctl *Control) createRoom(c *gin.Context) {
	var req roomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	ctl.await(c, func(cb core.Callback) { ctl.sess.CreateRoom(req.RoomID, cb) })
}

func (ctl *Control) joinRoom(c *gin.Context) {
	var req roomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	ctl.await(c, func(cb core.Callback) { ctl.sess.JoinRoom(req.RoomID, cb) })
}

func (ctl *Control) leaveRoom(c *gin.Context) {
	ctl.sess.LeaveRoom()
	c.Status(http.StatusNoContent)
}

func (ctl *Control) destroyRoom(c *gin.Context) {
	ctl.await(c, ctl.sess.DestroyRoom)
}

func (ctl *Control) kickUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	ctl.await(c, func(cb core.Callback) { ctl.sess.KickUser(req.UserID, cb) })
}

func (ctl *Control) transferOwner(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	ctl.await(c, func(cb core.Callback) { ctl.sess.TransferOwner(req.UserID, cb) })
}

func (ctl *Control) setMedia(c *gin.Context) {
	var req mediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := ctl.media.SetMedia(req.Audio, req.Video); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusAccepted)
}

func (ctl *Control) setQuality(c *gin.Context) {
	var req qualityRequest
	if err := c.ShouldBindJSON(&req); err != nil || !domain.NetworkQuality(req.Quality).Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quality"})
		return
	}
	if err := ctl.media.ReportQuality(domain.NetworkQuality(req.Quality)); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusAccepted)
}

type sessionView struct {
	State        string               `json:"state"`
	UserID       domain.UserID        `json:"user_id,omitempty"`
	Room         *roomView            `json:"room,omitempty"`
	Participants []domain.Participant `json:"participants,omitempty"`
	Requests     requestView          `json:"requests"`
}

type roomView struct {
	domain.Room
	State string `json:"state"`
}

type requestView struct {
	Issued    uint64 `json:"issued"`
	Delivered uint64 `json:"delivered"`
	Timeouts  uint64 `json:"timeouts"`
	Canceled  uint64 `json:"canceled"`
	Anomalies uint64 `json:"anomalies"`
	InFlight  int    `json:"in_flight"`
}

func (ctl *Control) session(c *gin.Context) {
	st := ctl.sess.Stats()
	v := sessionView{
		State:  ctl.sess.State().String(),
		UserID: ctl.sess.UserID(),
		Requests: requestView{
			Issued:    st.Issued,
			Delivered: st.Delivered,
			Timeouts:  st.Timeouts,
			Canceled:  st.Canceled,
			Anomalies: st.Anomalies,
			InFlight:  st.InFlight,
		},
	}
	if room, ok := ctl.sess.Room(); ok {
		v.Room = &roomView{Room: room, State: room.State.String()}
		v.Participants = ctl.sess.Participants()
	}
	c.JSON(http.StatusOK, v)
}

// await runs op and writes its Result once the session calls back.
func (ctl *Control) await(c *gin.Context, op func(core.Callback)) {
	ch := make(chan core.Result, 1)
	op(func(r core.Result) { ch <- r })

	ctx, cancel := context.WithTimeout(c.Request.Context(), ctl.wait)
	defer cancel()
	select {
	case res := <-ch:
		c.JSON(StatusOf(res), gin.H{"code": res.Code, "message": res.Message, "kind": res.Kind.String(), "retryable": res.Retryable()})
	case <-ctx.Done():
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "session did not answer"})
	}
}

// StatusOf maps a session Result onto an HTTP status.
func StatusOf(res core.Result) int {
	switch res.Kind {
	case domain.KindNone:
		return http.StatusOK
	case domain.KindInvalidCredential:
		return http.StatusUnauthorized
	case domain.KindNotAuthenticated:
		return http.StatusUnauthorized
	case domain.KindNoPrivilege:
		return http.StatusForbidden
	case domain.KindRoomNotFound, domain.KindParticipantNotFound:
		return http.StatusNotFound
	case domain.KindAlreadyInProgress, domain.KindAlreadyLoggedIn,
		domain.KindRoomAlreadyActive, domain.KindRoomExists:
		return http.StatusConflict
	case domain.KindNetworkTimeout:
		return http.StatusGatewayTimeout
	case domain.KindNetwork, domain.KindBackend:
		return http.StatusBadGateway
	case domain.KindCanceled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

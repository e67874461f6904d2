package signal

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/meetcore/internal/backend"
	"github.com/dkeye/meetcore/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func setup(t *testing.T) (string, *backend.UserSigner) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	signer, err := backend.NewUserSigner("s3cret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	ctl := NewSignalWSController(backend.NewHub(signer, nil), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", signer
}

func dial(t *testing.T, url string) *client {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return &client{t: t, conn: conn}
}

func (c *client) send(env Envelope) {
	c.t.Helper()
	if err := c.conn.WriteJSON(env); err != nil {
		c.t.Fatal(err)
	}
}

func (c *client) recv() Envelope {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		c.t.Fatal(err)
	}
	return env
}

func (c *client) do(env Envelope) Envelope {
	c.t.Helper()
	c.send(env)
	res := c.recv()
	if res.Type != TypeResult || res.ReqID != env.ReqID {
		c.t.Fatalf("reply to %s = %+v", env.Type, res)
	}
	return res
}

func (c *client) login(signer *backend.UserSigner, user string) {
	c.t.Helper()
	sig, _ := signer.Sign(7, domain.UserID("u-"+user))
	if res := c.do(Envelope{Type: TypeLogin, ReqID: "login", AppID: 7, UserID: "u-" + user, UserSig: sig}); res.Code != CodeOK {
		c.t.Fatalf("login: %+v", res)
	}
}

func TestSignalRoomFlow(t *testing.T) {
	url, signer := setup(t)
	a := dial(t, url)
	b := dial(t, url)

	if res := a.do(Envelope{Type: TypeCreateRoom, ReqID: "1", RoomID: "r1"}); res.Code != CodeNotLoggedIn {
		t.Fatalf("create before login = %+v", res)
	}
	a.login(signer, "a")
	b.login(signer, "b")

	res := a.do(Envelope{Type: TypeCreateRoom, ReqID: "2", RoomID: "r1"})
	if res.Code != CodeOK || res.OwnerID != "u-a" || len(res.Members) != 1 {
		t.Fatalf("create = %+v", res)
	}
	res = b.do(Envelope{Type: TypeJoinRoom, ReqID: "3", RoomID: "r1"})
	if res.Code != CodeOK || len(res.Members) != 2 || res.Seq == 0 {
		t.Fatalf("join = %+v", res)
	}

	ev := a.recv()
	if ev.Type != backend.EventMemberJoined.String() || ev.UserID != "u-b" || ev.Seq != res.Seq {
		t.Fatalf("event = %+v", ev)
	}

	if res := b.do(Envelope{Type: TypeDestroyRoom, ReqID: "4", RoomID: "r1"}); res.Code != CodeNoPrivilege {
		t.Fatalf("destroy by member = %+v", res)
	}
	if res := a.do(Envelope{Type: TypeDestroyRoom, ReqID: "5", RoomID: "r1"}); res.Code != CodeOK {
		t.Fatalf("destroy = %+v", res)
	}
	ev = b.recv()
	if ev.Type != backend.EventRoomClosed.String() || ev.Reason != "destroyed" {
		t.Fatalf("close event = %+v", ev)
	}
}

func TestSignalBadInput(t *testing.T) {
	url, _ := setup(t)
	c := dial(t, url)

	if err := c.conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	if ev := c.recv(); ev.Type != TypeError || ev.Code != CodeBadRequest {
		t.Fatalf("bad json = %+v", ev)
	}
	if res := c.do(Envelope{Type: "teleport", ReqID: "x"}); res.Code != CodeBadRequest {
		t.Fatalf("unknown type = %+v", res)
	}
	if res := c.do(Envelope{Type: TypeLogin, ReqID: "y", AppID: 7, UserID: "u1", UserSig: "nope"}); res.Code != CodeInvalidUserSig {
		t.Fatalf("bad sig = %+v", res)
	}
	c.send(Envelope{Type: TypePing})
	if ev := c.recv(); ev.Type != TypePong {
		t.Fatalf("ping = %+v", ev)
	}
}

func TestClassify(t *testing.T) {
	cases := map[int]string{
		CodeOK:             "none",
		CodeInvalidUserSig: "invalid_credential",
		CodeRoomNotFound:   "room_not_found",
		CodeInternal:       "backend",
	}
	for code, want := range cases {
		if got := Classify(code).String(); got != want {
			t.Errorf("Classify(%d) = %s, want %s", code, got, want)
		}
	}
	if CodeOf(backend.ErrRoomExists) != CodeRoomExists || CodeOf(nil) != CodeOK {
		t.Error("CodeOf mapping broken")
	}
}

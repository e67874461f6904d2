package backend

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/meetcore/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownPeer   = errors.New("unknown connection")
	ErrNotLoggedIn   = errors.New("not logged in")
	ErrAlreadyInRoom = errors.New("already in a room")
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomExists    = errors.New("room already exists")
	ErrNoPrivilege   = errors.New("no privilege")
	ErrNotMember     = errors.New("user is not a member of the room")
	ErrRateLimited   = errors.New("too many join attempts")
)

type EventType int

const (
	EventMemberJoined EventType = iota
	EventMemberLeft
	EventAudioChanged
	EventVideoChanged
	EventQualityChanged
	EventOwnerChanged
	EventRoomClosed
	EventKicked
)

func (t EventType) String() string {
	switch t {
	case EventMemberJoined:
		return "member_joined"
	case EventMemberLeft:
		return "member_left"
	case EventAudioChanged:
		return "audio_changed"
	case EventVideoChanged:
		return "video_changed"
	case EventQualityChanged:
		return "network_quality"
	case EventOwnerChanged:
		return "owner_changed"
	case EventRoomClosed:
		return "room_closed"
	case EventKicked:
		return "kicked"
	default:
		return "unknown"
	}
}

// Event is pushed to room members. Seq is set on roster and media events.
type Event struct {
	Type      EventType
	RoomID    domain.RoomID
	UserID    domain.UserID
	OwnerID   domain.UserID
	Seq       uint64
	Available bool
	Quality   domain.NetworkQuality
	Reason    string
}

// Peer is one connected client. Notify is called with the hub lock held and must not block.
type Peer interface {
	ID() string
	Notify(Event)
}

// Snapshot is a room roster at sequence Seq.
type Snapshot struct {
	RoomID  domain.RoomID        `json:"room_id"`
	OwnerID domain.UserID        `json:"owner_id"`
	Seq     uint64               `json:"seq"`
	Members []domain.Participant `json:"members"`
}

type RoomInfo struct {
	ID        domain.RoomID `json:"room_id"`
	OwnerID   domain.UserID `json:"owner_id"`
	Members   int           `json:"members"`
	CreatedAt time.Time     `json:"created_at"`
}

type room struct {
	id        domain.RoomID
	owner     domain.UserID
	seq       uint64
	members   map[domain.UserID]*domain.Participant
	createdAt time.Time
}

type peerState struct {
	peer  Peer
	user  domain.UserID
	appID int
	room  domain.RoomID
}

// Hub is the in-memory meeting backend: logins, rooms and their rosters.
type Hub struct {
	mu      sync.Mutex
	signer  *UserSigner
	limiter *JoinLimiter
	peers   map[string]*peerState
	byUser  map[domain.UserID]string
	rooms   map[domain.RoomID]*room
}

func NewHub(signer *UserSigner, limiter *JoinLimiter) *Hub {
	return &Hub{
		signer:  signer,
		limiter: limiter,
		peers:   make(map[string]*peerState),
		byUser:  make(map[domain.UserID]string),
		rooms:   make(map[domain.RoomID]*room),
	}
}

func (h *Hub) Connect(p Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[p.ID()] = &peerState{peer: p}
	log.Info().Str("module", "backend").Str("peer", p.ID()).Msg("peer connected")
}

// Disconnect drops the peer and everything it held.
func (h *Hub) Disconnect(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ps, ok := h.peers[id]
	if !ok {
		return
	}
	h.leaveLocked(ps, "disconnected")
	h.unbindLocked(ps)
	delete(h.peers, id)
	log.Info().Str("module", "backend").Str("peer", id).Msg("peer disconnected")
}

func (h *Hub) Login(id string, appID int, user domain.UserID, sig string) error {
	if err := domain.ValidateUserID(user); err != nil {
		return ErrInvalidUserSig
	}
	if err := h.signer.Verify(appID, user, sig); err != nil {
		log.Warn().Str("module", "backend").Str("peer", id).Str("user", string(user)).Err(err).Msg("login rejected")
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	ps, ok := h.peers[id]
	if !ok {
		return ErrUnknownPeer
	}
	if ps.user == user {
		return nil
	}
	if ps.user != "" {
		h.leaveLocked(ps, "relogin")
		h.unbindLocked(ps)
	}
	// One login per user: an older connection of the same user is logged out.
	if prev, ok := h.byUser[user]; ok {
		if old := h.peers[prev]; old != nil {
			if old.room != "" {
				roomID := old.room
				h.leaveLocked(old, "logged_in_elsewhere")
				old.peer.Notify(Event{Type: EventKicked, RoomID: roomID, Reason: "logged_in_elsewhere"})
			}
			old.user = ""
		}
	}
	ps.user = user
	ps.appID = appID
	h.byUser[user] = id
	log.Info().Str("module", "backend").Str("peer", id).Str("user", string(user)).Int("app_id", appID).Msg("logged in")
	return nil
}

func (h *Hub) Logout(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	ps, err := h.userLocked(id)
	if err != nil {
		return err
	}
	h.leaveLocked(ps, "logout")
	h.limiter.Forget(ps.user)
	h.unbindLocked(ps)
	return nil
}

func (h *Hub) CreateRoom(id string, roomID domain.RoomID) (Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ps, err := h.userLocked(id)
	if err != nil {
		return Snapshot{}, err
	}
	if ps.room != "" {
		return Snapshot{}, ErrAlreadyInRoom
	}
	if !h.limiter.Allow(ps.user) {
		return Snapshot{}, ErrRateLimited
	}
	if _, ok := h.rooms[roomID]; ok {
		return Snapshot{}, ErrRoomExists
	}
	r := &room{
		id:        roomID,
		owner:     ps.user,
		members:   make(map[domain.UserID]*domain.Participant),
		createdAt: time.Now(),
	}
	self := domain.NewParticipant(ps.user)
	r.members[ps.user] = &self
	r.seq++
	h.rooms[roomID] = r
	ps.room = roomID
	log.Info().Str("module", "backend").Str("room", string(roomID)).Str("owner", string(ps.user)).Msg("room created")
	return r.snapshot(), nil
}

// JoinRoom adds the user and returns the roster including the joiner.
// Every later event in the room carries a larger Seq than the snapshot.
func (h *Hub) JoinRoom(id string, roomID domain.RoomID) (Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ps, err := h.userLocked(id)
	if err != nil {
		return Snapshot{}, err
	}
	if ps.room == roomID {
		return h.rooms[roomID].snapshot(), nil
	}
	if ps.room != "" {
		return Snapshot{}, ErrAlreadyInRoom
	}
	if !h.limiter.Allow(ps.user) {
		return Snapshot{}, ErrRateLimited
	}
	r, ok := h.rooms[roomID]
	if !ok {
		return Snapshot{}, ErrRoomNotFound
	}
	p := domain.NewParticipant(ps.user)
	r.members[ps.user] = &p
	r.seq++
	ps.room = roomID
	h.broadcastLocked(r, Event{Type: EventMemberJoined, UserID: ps.user}, ps.user)
	log.Info().Str("module", "backend").Str("room", string(roomID)).Str("user", string(ps.user)).Msg("joined room")
	return r.snapshot(), nil
}

func (h *Hub) LeaveRoom(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	ps, err := h.userLocked(id)
	if err != nil {
		return err
	}
	h.leaveLocked(ps, "left")
	return nil
}

// DestroyRoom closes roomID for every member. Owner only.
func (h *Hub) DestroyRoom(id string, roomID domain.RoomID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	ps, err := h.userLocked(id)
	if err != nil {
		return err
	}
	r, ok := h.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if r.owner != ps.user {
		return ErrNoPrivilege
	}
	h.closeLocked(r, "destroyed", ps.user)
	return nil
}

// SetMedia updates the caller's audio/video flags; nil leaves a flag alone.
func (h *Hub) SetMedia(id string, audio, video *bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	ps, r, err := h.memberLocked(id)
	if err != nil {
		return err
	}
	p := r.members[ps.user]
	if audio != nil && p.AudioEnabled != *audio {
		p.AudioEnabled = *audio
		r.seq++
		h.broadcastLocked(r, Event{Type: EventAudioChanged, UserID: ps.user, Available: *audio}, "")
	}
	if video != nil && p.VideoEnabled != *video {
		p.VideoEnabled = *video
		r.seq++
		h.broadcastLocked(r, Event{Type: EventVideoChanged, UserID: ps.user, Available: *video}, "")
	}
	return nil
}

func (h *Hub) SetQuality(id string, q domain.NetworkQuality) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	ps, r, err := h.memberLocked(id)
	if err != nil {
		return err
	}
	r.members[ps.user].Quality = q
	r.seq++
	h.broadcastLocked(r, Event{Type: EventQualityChanged, UserID: ps.user, Quality: q}, "")
	return nil
}

// Kick removes target from the caller's room. Owner only.
func (h *Hub) Kick(id string, target domain.UserID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	ps, r, err := h.memberLocked(id)
	if err != nil {
		return err
	}
	if r.owner != ps.user {
		return ErrNoPrivilege
	}
	peerID, ok := h.byUser[target]
	tps := h.peers[peerID]
	if !ok || tps == nil || tps.room != r.id || target == ps.user {
		return ErrNotMember
	}
	h.leaveLocked(tps, "kicked")
	tps.peer.Notify(Event{Type: EventKicked, RoomID: r.id, Reason: "kicked"})
	return nil
}

// TransferOwner hands the caller's room to target. Owner only.
func (h *Hub) TransferOwner(id string, target domain.UserID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	ps, r, err := h.memberLocked(id)
	if err != nil {
		return err
	}
	if r.owner != ps.user {
		return ErrNoPrivilege
	}
	if _, ok := r.members[target]; !ok || target == ps.user {
		return ErrNotMember
	}
	r.owner = target
	// the caller learns the outcome from its own result
	h.broadcastLocked(r, Event{Type: EventOwnerChanged, OwnerID: target}, ps.user)
	log.Info().Str("module", "backend").Str("room", string(r.id)).Str("owner", string(target)).Msg("owner changed")
	return nil
}

// Rooms lists open rooms ordered by id.
func (h *Hub) Rooms() []RoomInfo {
	h.mu.Lock()
	out := make([]RoomInfo, 0, len(h.rooms))
	for _, r := range h.rooms {
		out = append(out, RoomInfo{ID: r.id, OwnerID: r.owner, Members: len(r.members), CreatedAt: r.createdAt})
	}
	h.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Room returns the current snapshot of roomID.
func (h *Hub) Room(roomID domain.RoomID) (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[roomID]
	if !ok {
		return Snapshot{}, false
	}
	return r.snapshot(), true
}

// Whereabouts reports the user behind peer id and the room it is in.
func (h *Hub) Whereabouts(id string) (domain.UserID, domain.RoomID, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ps, ok := h.peers[id]
	if !ok || ps.user == "" || ps.room == "" {
		return "", "", false
	}
	return ps.user, ps.room, true
}

func (h *Hub) userLocked(id string) (*peerState, error) {
	ps, ok := h.peers[id]
	if !ok {
		return nil, ErrUnknownPeer
	}
	if ps.user == "" {
		return nil, ErrNotLoggedIn
	}
	return ps, nil
}

func (h *Hub) memberLocked(id string) (*peerState, *room, error) {
	ps, err := h.userLocked(id)
	if err != nil {
		return nil, nil, err
	}
	r, ok := h.rooms[ps.room]
	if !ok {
		return nil, nil, ErrRoomNotFound
	}
	return ps, r, nil
}

func (h *Hub) unbindLocked(ps *peerState) {
	if ps.user == "" {
		return
	}
	if h.byUser[ps.user] == ps.peer.ID() {
		delete(h.byUser, ps.user)
	}
	ps.user = ""
}

// leaveLocked removes ps from its room. The owner leaving closes the room.
func (h *Hub) leaveLocked(ps *peerState, reason string) {
	r, ok := h.rooms[ps.room]
	ps.room = ""
	if !ok {
		return
	}
	delete(r.members, ps.user)
	log.Info().Str("module", "backend").Str("room", string(r.id)).Str("user", string(ps.user)).Str("reason", reason).Msg("left room")
	if len(r.members) == 0 {
		delete(h.rooms, r.id)
		return
	}
	if r.owner == ps.user {
		h.closeLocked(r, "owner_left", ps.user)
		return
	}
	r.seq++
	h.broadcastLocked(r, Event{Type: EventMemberLeft, UserID: ps.user, Reason: reason}, "")
}

func (h *Hub) closeLocked(r *room, reason string, except domain.UserID) {
	for uid := range r.members {
		ps := h.peers[h.byUser[uid]]
		if ps == nil {
			continue
		}
		ps.room = ""
		if uid != except {
			ps.peer.Notify(Event{Type: EventRoomClosed, RoomID: r.id, Reason: reason})
		}
	}
	delete(h.rooms, r.id)
	log.Info().Str("module", "backend").Str("room", string(r.id)).Str("reason", reason).Msg("room closed")
}

func (h *Hub) broadcastLocked(r *room, ev Event, except domain.UserID) {
	ev.RoomID = r.id
	if ev.Type != EventOwnerChanged {
		ev.Seq = r.seq
	}
	for uid := range r.members {
		if uid == except {
			continue
		}
		if ps := h.peers[h.byUser[uid]]; ps != nil {
			ps.peer.Notify(ev)
		}
	}
}

func (r *room) snapshot() Snapshot {
	members := make([]domain.Participant, 0, len(r.members))
	for _, p := range r.members {
		members = append(members, *p)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	return Snapshot{RoomID: r.id, OwnerID: r.owner, Seq: r.seq, Members: members}
}

package server

import (
	"cmp"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/selight/designo/internal/platform/timeouts"
	"github.com/selight/designo/internal/scene/protocol"
	"golang.org/x/net/websocket"
)

type wsSession struct {
	mu       sync.Mutex
	peer     *wsPeer
	room     *projectRoom
	identity protocol.Identity
}

func newWSSession(peer *wsPeer) *wsSession {
	return &wsSession{peer: peer}
}

func (s *wsSession) setRoom(next *projectRoom, identity protocol.Identity) *projectRoom {
	s.mu.Lock()
	previous := s.room
	s.room = next
	s.identity = identity
	s.mu.Unlock()
	return previous
}

func (s *wsSession) current() (*projectRoom, protocol.Identity) {
	s.mu.Lock()
	room, identity := s.room, s.identity
	s.mu.Unlock()
	return room, identity
}

type wsPeer struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	encoder *json.Encoder
}

func newWSPeer(conn *websocket.Conn) *wsPeer {
	return &wsPeer{conn: conn, encoder: json.NewEncoder(conn)}
}

func (p *wsPeer) writeFrame(frame protocol.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		_ = p.conn.SetWriteDeadline(time.Now().Add(timeouts.WSWrite))
	}
	return p.encoder.Encode(frame)
}

type roomHub struct {
	mu    sync.Mutex
	rooms map[string]*projectRoom
}

func newRoomHub() *roomHub {
	return &roomHub{rooms: make(map[string]*projectRoom)}
}

func (h *roomHub) room(projectID string) *projectRoom {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[projectID]
	if ok {
		return room
	}

	room = newProjectRoom(projectID)
	h.rooms[projectID] = room
	return room
}

// join adds peer to the project's room. ack runs under the room lock with
// the roster, so the joiner sees its snapshot before any relayed frame.
func (h *roomHub) join(projectID string, peer *wsPeer, identity protocol.Identity, ack func([]protocol.Identity)) (*projectRoom, []*wsPeer) {
	for {
		room := h.room(projectID)
		if others, ok := room.join(peer, identity, ack); ok {
			return room, others
		}
	}
}

// leave removes peer and drops the room once it is empty.
func (h *roomHub) leave(room *projectRoom, peer *wsPeer) (protocol.Identity, []*wsPeer, bool) {
	identity, others, found := room.leave(peer)
	if found && len(others) == 0 {
		h.mu.Lock()
		if h.rooms[room.projectID] == room {
			delete(h.rooms, room.projectID)
		}
		h.mu.Unlock()
	}
	return identity, others, found
}

func (h *roomHub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

type roomMember struct {
	identity protocol.Identity
	order    uint64
}

type projectRoom struct {
	mu        sync.Mutex
	projectID string
	closed    bool
	nextOrder uint64
	members   map[*wsPeer]roomMember
}

func newProjectRoom(projectID string) *projectRoom {
	return &projectRoom{
		projectID: projectID,
		members:   make(map[*wsPeer]roomMember),
	}
}

func (r *projectRoom) join(peer *wsPeer, identity protocol.Identity, ack func([]protocol.Identity)) ([]*wsPeer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false
	}
	others := r.peersExceptLocked(peer)
	r.nextOrder++
	r.members[peer] = roomMember{identity: identity, order: r.nextOrder}
	if ack != nil {
		ack(r.rosterLocked())
	}
	return others, true
}

func (r *projectRoom) leave(peer *wsPeer) (protocol.Identity, []*wsPeer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.members[peer]
	if !ok {
		return protocol.Identity{}, nil, false
	}
	delete(r.members, peer)
	if len(r.members) == 0 {
		r.closed = true
	}
	return member.identity, r.peersExceptLocked(peer), true
}

func (r *projectRoom) others(peer *wsPeer) []*wsPeer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peersExceptLocked(peer)
}

func (r *projectRoom) roster() []protocol.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rosterLocked()
}

func (r *projectRoom) peersExceptLocked(peer *wsPeer) []*wsPeer {
	peers := make([]*wsPeer, 0, len(r.members))
	for member := range r.members {
		if member != peer {
			peers = append(peers, member)
		}
	}
	return peers
}

// rosterLocked lists members in join order.
func (r *projectRoom) rosterLocked() []protocol.Identity {
	members := make([]roomMember, 0, len(r.members))
	for _, member := range r.members {
		members = append(members, member)
	}
	slices.SortFunc(members, func(a, b roomMember) int {
		return cmp.Compare(a.order, b.order)
	})
	users := make([]protocol.Identity, 0, len(members))
	for _, member := range members {
		users = append(users, member.identity)
	}
	return users
}

// Package session keeps a client connected to its project's relay room. It
// performs the join handshake, queues outbound change and camera events,
// applies inbound remote changes to the replica and tracks presence.
//
// Inbound events are decoded on the connection's reader goroutine and
// applied on the client event loop, so the replica is only touched from
// the loop. Outbound calls may come from any goroutine.
package session

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/selight/designo/internal/client/replica"
	"github.com/selight/designo/internal/platform/clock"
	apperrors "github.com/selight/designo/internal/platform/errors"
	"github.com/selight/designo/internal/platform/timeouts"
	"github.com/selight/designo/internal/scene/diff"
	"github.com/selight/designo/internal/scene/domain"
	"github.com/selight/designo/internal/scene/protocol"
)

// DefaultQueueSize bounds outbound frames waiting for the writer.
const DefaultQueueSize = 64

var (
	// ErrNotJoined is returned when an event is sent outside a joined room.
	ErrNotJoined = errors.New("session not joined")
	// ErrQueueFull is returned when the outbound queue drops a frame.
	ErrQueueFull = errors.New("session outbound queue full")
	// ErrJoinTimeout is returned when the relay never acknowledges a join.
	ErrJoinTimeout = errors.New("timed out waiting for relay roster")
	// ErrConnectionClosed is returned when the relay hangs up during a join.
	ErrConnectionClosed = errors.New("relay connection closed")
)

// State is the session lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateJoined
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Poster runs funcs on the client event loop.
type Poster interface {
	Post(fn func()) error
}

// Config wires a Session.
type Config struct {
	Dialer Dialer
	Loop   Poster
	// Replica receives inbound remote changes. Nil only notifies observers.
	Replica *replica.Replica
	// Clock drives camera coalescing. Defaults to clock.Real.
	Clock        clock.Clock
	JoinTimeout  time.Duration
	CameraWindow time.Duration
	QueueSize    int
}

// Session is one client's membership in a relay room.
type Session struct {
	dialer      Dialer
	loop        Poster
	replica     *replica.Replica
	joinTimeout time.Duration
	queueSize   int
	camera      *cameraCoalescer

	mu        sync.Mutex
	state     State
	link      *link
	self      protocol.Identity
	projectID string
	roster    map[string]protocol.Identity
	observers []Observer
}

// New validates cfg and returns a disconnected session.
func New(cfg Config) (*Session, error) {
	if cfg.Dialer == nil {
		return nil, errors.New("session: dialer is required")
	}
	if cfg.Loop == nil {
		return nil, errors.New("session: event loop is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = timeouts.JoinAck
	}
	if cfg.CameraWindow <= 0 {
		cfg.CameraWindow = DefaultCameraWindow
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	s := &Session{
		dialer:      cfg.Dialer,
		loop:        cfg.Loop,
		replica:     cfg.Replica,
		joinTimeout: cfg.JoinTimeout,
		queueSize:   cfg.QueueSize,
	}
	s.camera = newCameraCoalescer(cfg.Clock, cfg.CameraWindow, func(move protocol.CameraMove) {
		_ = s.send(move)
	})
	return s, nil
}

// AddObserver registers o for future notifications.
func (s *Session) AddObserver(o Observer) {
	if o == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Self returns the identity the relay assigned on join.
func (s *Session) Self() protocol.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self
}

// ProjectID returns the joined project.
func (s *Session) ProjectID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectID
}

// Roster returns the room members ordered by display name.
func (s *Session) Roster() []protocol.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rosterLocked()
}

func (s *Session) rosterLocked() []protocol.Identity {
	users := make([]protocol.Identity, 0, len(s.roster))
	for _, user := range s.roster {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b protocol.Identity) int {
		return cmp.Or(
			strings.Compare(strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)),
			strings.Compare(a.SessionID, b.SessionID),
		)
	})
	return users
}

// Join connects to the relay and waits for the room roster. Any previous
// connection is closed first. On failure the session is left disconnected;
// there is no retry.
func (s *Session) Join(ctx context.Context, req protocol.JoinProject) error {
	frame, err := protocol.Encode(req)
	if err != nil {
		return err
	}

	s.mu.Lock()
	previous := s.link
	s.link = nil
	s.state = StateConnecting
	s.roster = nil
	s.mu.Unlock()
	if previous != nil {
		previous.close()
	}
	s.camera.stop()
	s.notifyState(StateConnecting, nil)

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		err = fmt.Errorf("join %s: %w", req.ProjectID, err)
		s.disconnect(nil, err)
		return err
	}

	l := newLink(conn, s.queueSize)
	s.mu.Lock()
	if s.state != StateConnecting || s.link != nil {
		s.mu.Unlock()
		l.close()
		return fmt.Errorf("join %s: %w", req.ProjectID, ErrConnectionClosed)
	}
	s.link = l
	s.mu.Unlock()

	go s.writeLoop(l)
	go s.readLoop(l)

	if err := l.enqueue(frame); err != nil {
		err = fmt.Errorf("join %s: %w", req.ProjectID, err)
		s.disconnect(l, err)
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.joinTimeout)
	defer cancel()
	select {
	case <-l.acked:
		return nil
	case err := <-l.rejected:
		err = fmt.Errorf("join %s: %w", req.ProjectID, err)
		s.disconnect(l, err)
		return err
	case <-l.done:
		return fmt.Errorf("join %s: %w", req.ProjectID, ErrConnectionClosed)
	case <-waitCtx.Done():
		err := waitCtx.Err()
		if ctx.Err() == nil {
			err = ErrJoinTimeout
		}
		err = fmt.Errorf("join %s: %w", req.ProjectID, err)
		log.Printf("session: %v", err)
		s.disconnect(l, err)
		return err
	}
}

// Close leaves the room and cancels any pending camera window.
func (s *Session) Close() error {
	s.mu.Lock()
	l := s.link
	previous := s.state
	s.link = nil
	s.state = StateDisconnected
	s.roster = nil
	s.mu.Unlock()

	s.camera.stop()
	if l != nil {
		l.close()
	}
	if previous != StateDisconnected {
		s.notifyState(StateDisconnected, nil)
	}
	return nil
}

// SendObjectChange broadcasts one committed change. It is dropped unless
// the session is joined.
func (s *Session) SendObjectChange(change protocol.ObjectChange) error {
	return s.send(change)
}

// SendChanges broadcasts a diff as object-changes frames. A commit goes out
// as one frame unless its encoding exceeds the relay payload limit, in which
// case it is split in order across the fewest frames that fit.
func (s *Session) SendChanges(changes diff.Changes) error {
	if changes.Empty() {
		return nil
	}
	list := make([]protocol.ObjectChange, 0, changes.Len())
	for i := range changes.Added {
		list = append(list, protocol.ObjectChange{Action: protocol.ActionAdd, Object: &changes.Added[i]})
	}
	for i := range changes.Updated {
		list = append(list, protocol.ObjectChange{Action: protocol.ActionUpdate, Object: &changes.Updated[i]})
	}
	for _, id := range changes.Removed {
		list = append(list, protocol.ObjectChange{Action: protocol.ActionDelete, ObjectID: id})
	}
	batches, err := protocol.Batch(list)
	if err != nil {
		log.Printf("session: drop %s: %v", protocol.TypeObjectChanges, err)
		return err
	}
	for _, batch := range batches {
		if err := s.send(batch); err != nil {
			return err
		}
	}
	return nil
}

// SendCameraMove schedules a throttled camera broadcast carrying the latest
// pose once the current window closes.
func (s *Session) SendCameraMove(position, target domain.Vec3) error {
	move := protocol.CameraMove{Position: position, Target: target}
	if !move.Camera().Valid() {
		return apperrors.New(apperrors.CodeInvalidCamera, "camera must be finite")
	}
	if s.State() != StateJoined {
		log.Printf("session: drop %s: %v", protocol.TypeCameraMove, ErrNotJoined)
		return ErrNotJoined
	}
	s.camera.push(move)
	return nil
}

func (s *Session) send(ev protocol.Event) error {
	frame, err := protocol.Encode(ev)
	if err != nil {
		return err
	}
	s.mu.Lock()
	l := s.link
	joined := s.state == StateJoined
	s.mu.Unlock()
	if !joined || l == nil {
		log.Printf("session: drop %s: %v", ev.EventType(), ErrNotJoined)
		return ErrNotJoined
	}
	if err := l.enqueue(frame); err != nil {
		log.Printf("session: drop %s: %v", ev.EventType(), err)
		return err
	}
	return nil
}

func (s *Session) writeLoop(l *link) {
	for {
		select {
		case <-l.done:
			return
		case frame := <-l.out:
			if err := l.conn.Send(frame); err != nil {
				if !l.isClosed() {
					log.Printf("session: write %s failed: %v", frame.Type, err)
					s.disconnect(l, err)
				}
				return
			}
		}
	}
}

func (s *Session) readLoop(l *link) {
	for {
		frame, err := l.conn.Receive()
		if err != nil {
			if !l.isClosed() {
				log.Printf("session: read failed: %v", err)
				s.disconnect(l, err)
			}
			return
		}
		ev, err := protocol.Decode(frame)
		if err != nil {
			log.Printf("session: ignore frame: %v", err)
			continue
		}
		s.handle(l, ev)
	}
}

func (s *Session) handle(l *link, ev protocol.Event) {
	switch ev := ev.(type) {
	case protocol.RoomUsers:
		s.mu.Lock()
		if s.link != l {
			s.mu.Unlock()
			return
		}
		s.state = StateJoined
		s.self = ev.Self
		s.projectID = ev.ProjectID
		s.roster = make(map[string]protocol.Identity, len(ev.Users)+1)
		s.roster[ev.Self.SessionID] = ev.Self
		for _, user := range ev.Users {
			s.roster[user.SessionID] = user
		}
		users := s.rosterLocked()
		s.mu.Unlock()

		l.ack()
		s.notifyState(StateJoined, nil)
		s.notifyRoster(RosterChange{Users: users})
	case protocol.UserJoined:
		user := ev.User
		users, ok := s.updateRoster(l, func(roster map[string]protocol.Identity) {
			roster[user.SessionID] = user
		})
		if ok {
			s.notifyRoster(RosterChange{Users: users, Joined: &user})
		}
	case protocol.UserLeft:
		user := ev.User
		users, ok := s.updateRoster(l, func(roster map[string]protocol.Identity) {
			delete(roster, user.SessionID)
		})
		if ok {
			s.notifyRoster(RosterChange{Users: users, Left: &user})
		}
	case protocol.ObjectChanged:
		change := ev.ObjectChange
		s.post(l, func(observers []Observer) {
			remote := Remote{SenderID: ev.SenderID, Change: &change}
			if s.replica != nil {
				remote.Removed, remote.Changed = s.replica.ApplyRemote(change)
			}
			for _, o := range observers {
				o.RemoteApplied(remote)
			}
		})
	case protocol.ObjectsChanged:
		changes := ev.Changes
		s.post(l, func(observers []Observer) {
			for i := range changes {
				change := changes[i]
				remote := Remote{SenderID: ev.SenderID, Change: &change}
				if s.replica != nil {
					remote.Removed, remote.Changed = s.replica.ApplyRemote(change)
				}
				for _, o := range observers {
					o.RemoteApplied(remote)
				}
			}
		})
	case protocol.CameraMoved:
		camera := ev.Camera()
		s.post(l, func(observers []Observer) {
			remote := Remote{SenderID: ev.SenderID, Camera: &camera}
			if s.replica != nil {
				remote.Changed = s.replica.ApplyCamera(camera)
			}
			for _, o := range observers {
				o.RemoteApplied(remote)
			}
		})
	case protocol.Error:
		log.Printf("session: relay error %s: %s", ev.Code, ev.Message)
		if s.State() == StateConnecting {
			l.reject(apperrors.New(apperrors.Code(ev.Code), ev.Message))
		}
		s.post(l, func(observers []Observer) {
			for _, o := range observers {
				o.RelayError(ev)
			}
		})
	default:
		log.Printf("session: ignore unexpected %s", ev.EventType())
	}
}

func (s *Session) updateRoster(l *link, mutate func(map[string]protocol.Identity)) ([]protocol.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.link != l || s.state != StateJoined {
		return nil, false
	}
	mutate(s.roster)
	return s.rosterLocked(), true
}

// disconnect tears l down when it is still current. A nil l only resets a
// session that never got a link.
func (s *Session) disconnect(l *link, err error) {
	s.mu.Lock()
	if s.link != l {
		s.mu.Unlock()
		if l != nil {
			l.close()
		}
		return
	}
	s.link = nil
	s.state = StateDisconnected
	s.roster = nil
	s.mu.Unlock()

	if l != nil {
		l.close()
	}
	s.camera.stop()
	s.notifyState(StateDisconnected, err)
}

// post runs fn on the event loop with the current observers, unless the
// link was replaced in the meantime.
func (s *Session) post(l *link, fn func([]Observer)) {
	err := s.loop.Post(func() {
		s.mu.Lock()
		if s.link != l {
			s.mu.Unlock()
			return
		}
		observers := slices.Clone(s.observers)
		s.mu.Unlock()
		fn(observers)
	})
	if err != nil {
		log.Printf("session: post event: %v", err)
	}
}

func (s *Session) notifyState(state State, cause error) {
	s.notify(func(o Observer) { o.StateChanged(state, cause) })
}

func (s *Session) notifyRoster(change RosterChange) {
	s.notify(func(o Observer) { o.RosterChanged(change) })
}

func (s *Session) notify(fn func(Observer)) {
	s.mu.Lock()
	observers := slices.Clone(s.observers)
	s.mu.Unlock()
	if len(observers) == 0 {
		return
	}
	if err := s.loop.Post(func() {
		for _, o := range observers {
			fn(o)
		}
	}); err != nil {
		log.Printf("session: post notification: %v", err)
	}
}

// link is one relay connection with its outbound queue.
type link struct {
	conn      Conn
	out       chan protocol.Frame
	done      chan struct{}
	acked     chan struct{}
	rejected  chan error
	ackOnce   sync.Once
	closeOnce sync.Once
}

func newLink(conn Conn, queueSize int) *link {
	return &link{
		conn:     conn,
		out:      make(chan protocol.Frame, queueSize),
		done:     make(chan struct{}),
		acked:    make(chan struct{}),
		rejected: make(chan error, 1),
	}
}

func (l *link) enqueue(frame protocol.Frame) error {
	select {
	case <-l.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case l.out <- frame:
		return nil
	default:
		return ErrQueueFull
	}
}

func (l *link) ack() {
	l.ackOnce.Do(func() { close(l.acked) })
}

func (l *link) reject(err error) {
	select {
	case l.rejected <- err:
	default:
	}
}

func (l *link) isClosed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

func (l *link) close() {
	l.closeOnce.Do(func() {
		close(l.done)
		if err := l.conn.Close(); err != nil {
			log.Printf("session: close connection: %v", err)
		}
	})
}

package session

import (
	"github.com/selight/designo/internal/scene/domain"
	"github.com/selight/designo/internal/scene/protocol"
)

// RosterChange describes one roster update. Users is the full sorted
// snapshot after the change; Joined and Left name the session that caused
// it, when there is one.
type RosterChange struct {
	Users  []protocol.Identity
	Joined *protocol.Identity
	Left   *protocol.Identity
}

// Remote is a change another session made, already applied to the replica.
// Exactly one of Change or Camera is set.
type Remote struct {
	SenderID string
	Change   *protocol.ObjectChange
	Camera   *domain.Camera
	// Removed lists every id the change deleted, cascades included.
	Removed []string
	// Changed is false when the change was a no-op for this replica.
	Changed bool
}

// Observer receives session notifications on the client event loop.
type Observer interface {
	StateChanged(state State, err error)
	RosterChanged(change RosterChange)
	RemoteApplied(remote Remote)
	RelayError(ev protocol.Error)
}

// ObserverFuncs adapts optional funcs to an Observer.
type ObserverFuncs struct {
	OnState  func(State, error)
	OnRoster func(RosterChange)
	OnRemote func(Remote)
	OnError  func(protocol.Error)
}

func (o ObserverFuncs) StateChanged(state State, err error) {
	if o.OnState != nil {
		o.OnState(state, err)
	}
}

func (o ObserverFuncs) RosterChanged(change RosterChange) {
	if o.OnRoster != nil {
		o.OnRoster(change)
	}
}

func (o ObserverFuncs) RemoteApplied(remote Remote) {
	if o.OnRemote != nil {
		o.OnRemote(remote)
	}
}

func (o ObserverFuncs) RelayError(ev protocol.Error) {
	if o.OnError != nil {
		o.OnError(ev)
	}
}

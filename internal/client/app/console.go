package app

import (
	"fmt"
	"io"
	"sync"

	"github.com/selight/designo/internal/client/interaction"
	"github.com/selight/designo/internal/client/session"
	"github.com/selight/designo/internal/platform/i18n/catalog"
	"github.com/selight/designo/internal/scene/domain"
	"github.com/selight/designo/internal/scene/protocol"
)

// console prints notices, scene summaries and presence to the terminal.
type console struct {
	mu     sync.Mutex
	out    io.Writer
	locale string
}

func newConsole(out io.Writer, locale string) *console {
	return &console{out: out, locale: catalog.Default().Resolve(locale)}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) notice(key string, blocking bool, metadata map[string]string) {
	c.Notify(interaction.Notice{
		Key:      key,
		Message:  catalog.Default().Localize(c.locale, key, metadata),
		Blocking: blocking,
	})
}

// Notify implements interaction.Notifier.
func (c *console) Notify(n interaction.Notice) {
	if n.Blocking {
		c.printf("!! %s\n", n.Message)
		return
	}
	c.printf("-- %s\n", n.Message)
}

// Render implements interaction.Renderer with a one-line summary.
func (c *console) Render(v interaction.View) {
	c.printf("scene: %d objects, selected=%s, focus=%s, state=%s\n",
		len(v.Objects), orDash(v.Selected), orDash(v.Focus), v.State)
}

func (c *console) list(v interaction.View) {
	for _, obj := range v.Objects {
		marker := " "
		if obj.ID == v.Selected {
			marker = "*"
		}
		c.printf("%s %s %-10s %-12q %s\n", marker, obj.ID, describeType(obj), obj.Name, describeTransform(obj))
	}
	if v.Camera != nil {
		c.printf("  camera position=%v target=%v\n", v.Camera.Position, v.Camera.Target)
	}
	if v.Intent != nil {
		c.printf("  placing annotation on %s\n", v.Intent.TargetObjectID)
	}
}

func (c *console) roster(users []protocol.Identity, self string) {
	for _, user := range users {
		marker := " "
		if user.SessionID == self {
			marker = "*"
		}
		c.printf("%s %s %s %s\n", marker, user.SessionID, user.DisplayColor, user.DisplayName)
	}
}

func (c *console) sessionObserver(projectID string, self func() protocol.Identity) session.Observer {
	joined := false
	return session.ObserverFuncs{
		OnState: func(state session.State, err error) {
			if state == session.StateDisconnected && joined && err != nil {
				c.notice("notices.connection_lost", true, nil)
			}
			joined = state == session.StateJoined
		},
		OnRoster: func(change session.RosterChange) {
			switch {
			case change.Joined != nil:
				c.notice("notices.user_joined", false, map[string]string{"DisplayName": change.Joined.DisplayName})
			case change.Left != nil:
				c.notice("notices.user_left", false, map[string]string{"DisplayName": change.Left.DisplayName})
			default:
				c.notice("notices.joined", false, map[string]string{"ProjectID": projectID, "DisplayName": self().DisplayName})
			}
		},
		OnError: func(ev protocol.Error) {
			c.notice("notices.relay_error", false, map[string]string{"Message": ev.Message})
		},
	}
}

func describeType(obj domain.Object) string {
	switch obj.Type {
	case domain.TypePrimitive:
		return string(obj.Kind)
	case domain.TypeAnnotation:
		return "note"
	}
	return string(obj.Type)
}

func describeTransform(obj domain.Object) string {
	if obj.Type == domain.TypeAnnotation {
		return fmt.Sprintf("on=%s text=%q", obj.TargetObjectID, obj.Text)
	}
	hidden := ""
	if !obj.Visible {
		hidden = " hidden"
	}
	return fmt.Sprintf("pos=%v rot=%v scale=%v%s", obj.Position, obj.Rotation, obj.Scale, hidden)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

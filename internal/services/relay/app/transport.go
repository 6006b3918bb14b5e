package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	apperrors "github.com/selight/designo/internal/platform/errors"
	"github.com/selight/designo/internal/platform/id"
	platformotel "github.com/selight/designo/internal/platform/otel"
	"github.com/selight/designo/internal/scene/grant"
	"github.com/selight/designo/internal/scene/protocol"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/websocket"
)

const (
	maxFramesPerSecond     = 60
	maxDecodeErrorsPerConn = 3

	defaultDisplayName = "guest"
)

var displayColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

var displayPalette = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231",
	"#911eb4", "#42d4f4", "#f032e6", "#9a6324",
}

type handlerConfig struct {
	grants  grant.VerifierConfig
	verbose bool
	hub     *roomHub
}

// NewHandler creates relay routes without join grant checks.
func NewHandler() http.Handler {
	return newHandler(handlerConfig{})
}

// NewHandlerWithGrants creates relay routes that require a valid join grant
// on every join-project frame.
func NewHandlerWithGrants(grants grant.VerifierConfig) http.Handler {
	return newHandler(handlerConfig{grants: grants})
}

func newHandler(cfg handlerConfig) http.Handler {
	if cfg.hub == nil {
		cfg.hub = newRoomHub()
	}
	tracer := platformotel.Tracer("github.com/selight/designo/relay")
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		handleWSConn(conn, cfg, tracer)
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})

	return mux
}

func handleWSConn(conn *websocket.Conn, cfg handlerConfig, tracer trace.Tracer) {
	defer func() {
		_ = conn.Close()
	}()

	decoder := json.NewDecoder(conn)
	session := newWSSession(newWSPeer(conn))
	defer func() {
		if room, _ := session.current(); room != nil {
			leaveRoom(cfg.hub, room, session.peer)
		}
	}()

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame protocol.Frame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return
			}
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if !errors.As(err, &syntaxErr) && !errors.As(err, &typeErr) {
				return
			}
			decodeErrors++
			_ = writeWSError(session.peer, apperrors.InvalidFrame("invalid frame payload"))
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			if syntaxErr != nil {
				decoder = json.NewDecoder(conn)
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > protocol.MaxPayloadBytes {
			_ = writeWSError(session.peer, apperrors.FrameTooLarge(len(frame.Payload), protocol.MaxPayloadBytes))
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(session.peer, apperrors.New(apperrors.CodeRateLimited, "rate limit exceeded"))
			return
		}

		if cfg.verbose {
			log.Printf("relay: frame %s (%d bytes) from %s", frame.Type, len(frame.Payload), conn.Request().RemoteAddr)
		}

		event, err := protocol.Decode(frame)
		if err != nil {
			_ = writeWSError(session.peer, apperrors.InvalidFrame(err.Error()))
			continue
		}

		switch ev := event.(type) {
		case protocol.JoinProject:
			handleJoin(session, cfg, ev)
		case protocol.ObjectChange:
			handleRelayed(conn.Request().Context(), session, tracer, func(senderID string) protocol.Event {
				return protocol.ObjectChanged{ObjectChange: ev, SenderID: senderID}
			})
		case protocol.ObjectChanges:
			handleRelayed(conn.Request().Context(), session, tracer, func(senderID string) protocol.Event {
				return protocol.ObjectsChanged{ObjectChanges: ev, SenderID: senderID}
			})
		case protocol.CameraMove:
			handleRelayed(conn.Request().Context(), session, tracer, func(senderID string) protocol.Event {
				return protocol.CameraMoved{CameraMove: ev, SenderID: senderID}
			})
		default:
			_ = writeWSError(session.peer, apperrors.InvalidFrame("unsupported frame type "+string(frame.Type)))
		}
	}
}

func handleJoin(session *wsSession, cfg handlerConfig, ev protocol.JoinProject) {
	identity, err := joinIdentity(cfg.grants, ev)
	if err != nil {
		log.Printf("relay: join rejected for project %q: %v", ev.ProjectID, err)
		_ = writeWSError(session.peer, err)
		return
	}

	if previous, _ := session.current(); previous != nil {
		leaveRoom(cfg.hub, previous, session.peer)
		session.setRoom(nil, protocol.Identity{})
	}

	room, others := cfg.hub.join(ev.ProjectID, session.peer, identity, func(users []protocol.Identity) {
		_ = writeEvent(session.peer, protocol.RoomUsers{
			ProjectID: ev.ProjectID,
			Self:      identity,
			Users:     users,
		})
	})
	session.setRoom(room, identity)
	log.Printf("relay: %s (%s) joined project %q", identity.DisplayName, identity.SessionID, ev.ProjectID)

	broadcast(others, protocol.UserJoined{User: identity})
}

func handleRelayed(ctx context.Context, session *wsSession, tracer trace.Tracer, build func(senderID string) protocol.Event) {
	room, identity := session.current()
	if room == nil {
		_ = writeWSError(session.peer, apperrors.New(apperrors.CodeNotJoined, "must join a project before sending"))
		return
	}
	event := build(identity.SessionID)
	recipients := room.others(session.peer)

	_, span := tracer.Start(ctx, "relay.fanout", trace.WithAttributes(
		attribute.String("designo.project_id", room.projectID),
		attribute.String("designo.event_type", string(event.EventType())),
		attribute.Int("designo.recipients", len(recipients)),
	))
	defer span.End()
	broadcast(recipients, event)
}

func leaveRoom(hub *roomHub, room *projectRoom, peer *wsPeer) {
	identity, others, found := hub.leave(room, peer)
	if !found {
		return
	}
	log.Printf("relay: %s (%s) left project %q", identity.DisplayName, identity.SessionID, room.projectID)
	broadcast(others, protocol.UserLeft{User: identity})
}

// joinIdentity builds the session identity, taking user fields from a
// verified grant when grants are enabled.
func joinIdentity(grants grant.VerifierConfig, ev protocol.JoinProject) (protocol.Identity, error) {
	sessionID, err := id.NewID()
	if err != nil {
		return protocol.Identity{}, apperrors.Wrap(apperrors.CodeUnknown, "generate session id", err)
	}
	identity := protocol.Identity{
		SessionID:   sessionID,
		UserID:      strings.TrimSpace(ev.UserID),
		DisplayName: ev.DisplayName,
	}
	if grants.Enabled() {
		claims, err := grant.Validate(ev.Grant, ev.ProjectID, grants)
		if err != nil {
			return protocol.Identity{}, err
		}
		identity.UserID = claims.UserID
		if claims.DisplayName != "" {
			identity.DisplayName = claims.DisplayName
		}
	}
	if identity.DisplayName == "" {
		identity.DisplayName = defaultDisplayName
	}
	identity.DisplayColor = displayColor(ev.DisplayColor, sessionID)
	return identity, nil
}

// displayColor keeps a well-formed requested color and otherwise derives
// one from the session id.
func displayColor(requested, sessionID string) string {
	requested = strings.TrimSpace(requested)
	if displayColorPattern.MatchString(requested) {
		return strings.ToLower(requested)
	}
	return displayPalette[xxhash.Sum64String(sessionID)%uint64(len(displayPalette))]
}

func broadcast(peers []*wsPeer, event protocol.Event) {
	if len(peers) == 0 {
		return
	}
	frame, err := protocol.Encode(event)
	if err != nil {
		log.Printf("relay: encode %s: %v", event.EventType(), err)
		return
	}
	for _, peer := range peers {
		if err := peer.writeFrame(frame); err != nil {
			log.Printf("relay: write %s: %v", frame.Type, err)
		}
	}
}

func writeEvent(peer *wsPeer, event protocol.Event) error {
	frame, err := protocol.Encode(event)
	if err != nil {
		log.Printf("relay: encode %s: %v", event.EventType(), err)
		return err
	}
	return peer.writeFrame(frame)
}

func writeWSError(peer *wsPeer, err error) error {
	code := apperrors.GetCode(err)
	return writeEvent(peer, protocol.Error{
		Code:    string(code),
		Message: apperrors.Localize(err, apperrors.DefaultLocale),
	})
}

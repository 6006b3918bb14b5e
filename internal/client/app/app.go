// Package app runs the headless scene client. It loads the project through
// the persistence gateway, joins the relay room and drives the interaction
// controller from console commands, all on one event loop.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/selight/designo/internal/client/interaction"
	"github.com/selight/designo/internal/client/loop"
	"github.com/selight/designo/internal/client/replica"
	"github.com/selight/designo/internal/client/session"
	"github.com/selight/designo/internal/platform/clock"
	"github.com/selight/designo/internal/scene/domain"
	"github.com/selight/designo/internal/scene/protocol"
	"github.com/selight/designo/internal/services/scene/storage"
	"golang.org/x/sync/errgroup"
)

// Config wires a Client.
type Config struct {
	ProjectID    string
	DisplayName  string
	DisplayColor string
	UserID       string
	// Grant is a signed join grant, required when the relay verifies them.
	Grant  string
	Locale string

	Gateway storage.Gateway
	Dialer  session.Dialer
	Clock   clock.Clock

	// Input feeds console commands. Nil runs without a console until the
	// context ends.
	Input  io.Reader
	Output io.Writer
	// Renderer replaces the console's one-line scene summary.
	Renderer interaction.Renderer
	// Observers receive session notifications next to the console.
	Observers []session.Observer
}

// Client is one connected editor of a project.
type Client struct {
	projectID string
	join      protocol.JoinProject
	input     io.Reader

	loop       *loop.Loop
	replica    *replica.Replica
	session    *session.Session
	controller *interaction.Controller
	console    *console
}

// New loads the project and builds a client. A project without a saved
// scene starts empty and is created by the first commit.
func New(ctx context.Context, cfg Config) (*Client, error) {
	projectID, err := storage.NormalizeProjectID(cfg.ProjectID)
	if err != nil {
		return nil, err
	}
	if cfg.Gateway == nil {
		return nil, errors.New("client: gateway is required")
	}
	if cfg.Dialer == nil {
		return nil, errors.New("client: dialer is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Output == nil {
		cfg.Output = io.Discard
	}

	con := newConsole(cfg.Output, cfg.Locale)
	doc, err := cfg.Gateway.Load(ctx, projectID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		doc = domain.Document{ID: projectID, Objects: []domain.Object{}}
	case err != nil:
		con.notice("notices.load_failed", true, map[string]string{"ProjectID": projectID, "Reason": err.Error()})
		return nil, fmt.Errorf("load project %s: %w", projectID, err)
	}

	lp := loop.New(loop.DefaultQueueSize)
	loopClock := lp.Clock(cfg.Clock)
	rep := replica.New(doc)

	sess, err := session.New(session.Config{
		Dialer:  cfg.Dialer,
		Loop:    lp,
		Replica: rep,
		Clock:   loopClock,
	})
	if err != nil {
		return nil, err
	}

	renderer := cfg.Renderer
	if renderer == nil {
		renderer = con
	}
	ctrl, err := interaction.New(interaction.Config{
		ProjectID: projectID,
		Replica:   rep,
		Gateway:   cfg.Gateway,
		Session:   sess,
		Clock:     loopClock,
		Notifier:  con,
		Renderer:  renderer,
		Locale:    cfg.Locale,
	})
	if err != nil {
		return nil, err
	}

	sess.AddObserver(session.ObserverFuncs{OnRemote: ctrl.RemoteApplied})
	sess.AddObserver(con.sessionObserver(projectID, sess.Self))
	for _, o := range cfg.Observers {
		sess.AddObserver(o)
	}

	return &Client{
		projectID: projectID,
		join: protocol.JoinProject{
			ProjectID:    projectID,
			DisplayName:  cfg.DisplayName,
			DisplayColor: cfg.DisplayColor,
			UserID:       cfg.UserID,
			Grant:        cfg.Grant,
		},
		input:      cfg.Input,
		loop:       lp,
		replica:    rep,
		session:    sess,
		controller: ctrl,
		console:    con,
	}, nil
}

// Session returns the client's relay session.
func (c *Client) Session() *session.Session {
	return c.session
}

// Do runs fn on the event loop with exclusive access to the controller and
// the replica.
func (c *Client) Do(ctx context.Context, fn func(*interaction.Controller, *replica.Replica)) error {
	return c.loop.Do(ctx, func() { fn(c.controller, c.replica) })
}

// Exec runs one console command on the event loop.
func (c *Client) Exec(ctx context.Context, line string) error {
	if isJoinCommand(line) {
		return c.Join(ctx)
	}
	var err error
	if doErr := c.loop.Do(ctx, func() { err = c.exec(ctx, line) }); doErr != nil {
		return doErr
	}
	return err
}

// Join (re)joins the project room. Failures leave the client editing
// offline; they are reported, not retried.
func (c *Client) Join(ctx context.Context) error {
	if err := c.session.Join(ctx, c.join); err != nil {
		_ = c.loop.Post(func() {
			c.console.notice("notices.join_failed", true, map[string]string{"ProjectID": c.projectID, "Reason": err.Error()})
		})
		return err
	}
	return nil
}

// Run drives the client until ctx ends or the console input is exhausted.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() {
		if err := c.session.Close(); err != nil {
			log.Printf("client: close session: %v", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.loop.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		if err := c.Join(gctx); err != nil {
			log.Printf("client: %v", err)
		}
		if c.input == nil {
			<-gctx.Done()
			return nil
		}
		return c.readCommands(gctx)
	})
	return g.Wait()
}

func (c *Client) readCommands(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.input)
		scanner.Buffer(make([]byte, 0, 64<<10), protocol.MaxPayloadBytes)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read console: %w", err)
					}
				default:
				}
				return nil
			}
			err := c.Exec(ctx, line)
			switch {
			case errors.Is(err, errQuit):
				return nil
			case errors.Is(err, loop.ErrStopped), errors.Is(err, context.Canceled):
				return nil
			case err != nil:
				c.console.printf("error: %v\n", err)
			}
		}
	}
}

func isJoinCommand(line string) bool {
	fields := strings.Fields(line)
	return len(fields) == 1 && fields[0] == "join"
}

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/selight/designo/internal/client/interaction"
	"github.com/selight/designo/internal/scene/domain"
)

var errQuit = errors.New("quit")

const helpText = `commands:
  ls                                  list objects
  who                                 list room members
  add cube|sphere|cone                add a primitive
  import <name> <geometry-json>       add a mesh
  click <id|-> [x y z [nx ny nz]]     click an object surface or empty space
  dblclick <id> [x y z [nx ny nz]]    double click, opens an annotation
  annotate <text>                     place the open annotation
  cancel                              cancel the open annotation
  drag translate|rotate|scale dx dy dz  drag the selected object
  delete                              delete the selected object
  edit <id> <text>                    edit an annotation
  show <id> | hide <id>               toggle visibility
  rename <id> <name>                  rename an object
  camera px py pz tx ty tz            move the camera
  settle                              save the camera
  join                                rejoin the project room
  quit
`

// exec runs one command line. It must be called on the event loop.
func (c *Client) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]
	ctrl := c.controller

	switch name {
	case "help", "?":
		c.console.printf("%s", helpText)
		return nil
	case "quit", "exit":
		return errQuit
	case "ls":
		c.console.list(ctrl.View())
		return nil
	case "who":
		c.console.roster(c.session.Roster(), c.session.Self().SessionID)
		return nil
	case "add":
		if len(args) != 1 {
			return usage("add cube|sphere|cone")
		}
		kind := domain.Kind(args[0])
		if !kind.Valid() {
			return fmt.Errorf("unknown primitive %q", args[0])
		}
		_, err := ctrl.AddPrimitive(ctx, kind)
		return err
	case "import":
		if len(args) < 2 {
			return usage("import <name> <geometry-json>")
		}
		geometry := restAfter(line, 2)
		_, err := ctrl.ImportMesh(ctx, args[0], json.RawMessage(geometry))
		return err
	case "click", "dblclick":
		if len(args) == 0 {
			return usage(name + " <id|-> [x y z [nx ny nz]]")
		}
		hit, err := parseHit(args)
		if err != nil {
			return err
		}
		ctrl.Click(hit)
		if name == "dblclick" {
			ctrl.Click(hit)
		}
		return nil
	case "annotate":
		text := restAfter(line, 1)
		if text == "" {
			return usage("annotate <text>")
		}
		_, err := ctrl.PlaceAnnotation(ctx, text)
		return err
	case "cancel":
		ctrl.CancelAnnotation()
		return nil
	case "drag":
		if len(args) != 4 {
			return usage("drag translate|rotate|scale dx dy dz")
		}
		mode, err := interaction.ParseMode(args[0])
		if err != nil {
			return err
		}
		delta, err := parseVec(args[1:4])
		if err != nil {
			return err
		}
		if err := ctrl.BeginDrag(mode); err != nil {
			return err
		}
		ctrl.Drag(delta)
		return ctrl.EndDrag(ctx)
	case "delete":
		return ctrl.DeleteSelected(ctx)
	case "edit":
		if len(args) < 2 {
			return usage("edit <id> <text>")
		}
		return ctrl.EditAnnotation(ctx, args[0], restAfter(line, 2))
	case "show", "hide":
		if len(args) != 1 {
			return usage(name + " <id>")
		}
		return ctrl.SetVisible(ctx, args[0], name == "show")
	case "rename":
		if len(args) < 2 {
			return usage("rename <id> <name>")
		}
		return ctrl.Rename(ctx, args[0], restAfter(line, 2))
	case "camera":
		if len(args) != 6 {
			return usage("camera px py pz tx ty tz")
		}
		position, err := parseVec(args[0:3])
		if err != nil {
			return err
		}
		target, err := parseVec(args[3:6])
		if err != nil {
			return err
		}
		return ctrl.MoveCamera(position, target)
	case "settle":
		return ctrl.SettleCamera(ctx)
	}
	return fmt.Errorf("unknown command %q, try help", name)
}

func usage(text string) error {
	return fmt.Errorf("usage: %s", text)
}

// restAfter returns line with its first n fields removed, keeping the
// remaining spacing.
func restAfter(line string, n int) string {
	rest := strings.TrimSpace(line)
	for i := 0; i < n; i++ {
		idx := strings.IndexFunc(rest, func(r rune) bool { return r == ' ' || r == '\t' })
		if idx < 0 {
			return ""
		}
		rest = strings.TrimSpace(rest[idx:])
	}
	return rest
}

func parseHit(args []string) (interaction.Hit, error) {
	hit := interaction.Hit{}
	if args[0] != "-" {
		hit.ObjectID = args[0]
	}
	switch len(args) {
	case 1:
	case 4:
		point, err := parseVec(args[1:4])
		if err != nil {
			return interaction.Hit{}, err
		}
		hit.Point = point
	case 7:
		point, err := parseVec(args[1:4])
		if err != nil {
			return interaction.Hit{}, err
		}
		normal, err := parseVec(args[4:7])
		if err != nil {
			return interaction.Hit{}, err
		}
		hit.Point, hit.Normal = point, normal
	default:
		return interaction.Hit{}, usage("<id|-> [x y z [nx ny nz]]")
	}
	return hit, nil
}

func parseVec(args []string) (domain.Vec3, error) {
	var v domain.Vec3
	for i := range v {
		f, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return domain.Vec3{}, fmt.Errorf("parse %q: %w", args[i], err)
		}
		v[i] = f
	}
	return v, nil
}

package world

import (
	"errors"
	"fmt"
	"time"

	"ratpet.ai/internal/sim/desktop"
	"ratpet.ai/internal/sim/geom"
	"ratpet.ai/internal/sim/tuning"
	"ratpet.ai/internal/sim/world/feature/movement"
	"ratpet.ai/internal/sim/world/featurectx"
	"ratpet.ai/internal/sim/world/kernel/model"
)

type CommandType string

const (
	CmdThrowToy    CommandType = "THROW_TOY"
	CmdGrabToy     CommandType = "GRAB_TOY"
	CmdDragToy     CommandType = "DRAG_TOY"
	CmdReleaseToy  CommandType = "RELEASE_TOY"
	CmdFollowStart CommandType = "FOLLOW_START"
	CmdFollowStop  CommandType = "FOLLOW_STOP"
	CmdHideToy     CommandType = "HIDE_TOY"
	CmdFeed        CommandType = "FEED"
	CmdPoke        CommandType = "POKE"
	CmdMovePointer CommandType = "MOVE_POINTER"
	CmdSetSettings CommandType = "SET_SETTINGS"
)

const (
	FeedHop  = 6.0
	PokeIdle = time.Second
)

var (
	ErrUnknownCommand = errors.New("world: unknown command")
	ErrNoToy          = errors.New("world: no toy sprite configured")
	ErrToyHidden      = errors.New("world: toy is not visible")
	ErrNoSettings     = errors.New("world: settings missing")
)

// Command is an external input from the tray, the settings UI or the
// pointer. X/Y are screen coordinates where meaningful.
type Command struct {
	Type     CommandType      `json:"type"`
	X        float64          `json:"x,omitempty"`
	Y        float64          `json:"y,omitempty"`
	HandOff  bool             `json:"hand_off,omitempty"`
	Settings *tuning.Settings `json:"settings,omitempty"`
}

func (c Command) Point() geom.Point { return geom.Pt(c.X, c.Y) }

func ParseCommandType(s string) (CommandType, error) {
	switch t := CommandType(s); t {
	case CmdThrowToy, CmdGrabToy, CmdDragToy, CmdReleaseToy, CmdFollowStart, CmdFollowStop,
		CmdHideToy, CmdFeed, CmdPoke, CmdMovePointer, CmdSetSettings:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

func (w *World) apply(c *featurectx.Context, cmd Command) error {
	now := c.Now
	switch cmd.Type {
	case CmdThrowToy:
		if !w.tun.Assets.HasToy() {
			return ErrNoToy
		}
		w.toy.Show(w.agent.Pos)
		w.showBubble(c, FetchText)
		c.Record(model.EventThrow, desktop.None, "")
	case CmdGrabToy:
		if !w.toy.Visible {
			return ErrToyHidden
		}
		w.toy.Grab(cmd.Point(), now)
	case CmdDragToy:
		w.toy.DragTo(cmd.Point())
	case CmdReleaseToy:
		w.toy.Release(cmd.Point(), now)
	case CmdFollowStart:
		if !w.tun.Assets.HasToy() {
			return ErrNoToy
		}
		w.toy.StartFollow(cmd.Point(), now)
	case CmdFollowStop:
		w.toy.StopFollow(cmd.Point(), now, cmd.HandOff)
	case CmdHideToy:
		w.toy.Hide()
	case CmdFeed:
		w.agent.Pos.Y -= FeedHop
		movement.Clamp(&w.agent, w.monitors.Region())
	case CmdPoke:
		a := &w.agent
		if a.State == model.StateSleep {
			a.Enter(model.StateIdle, now, PokeIdle)
			a.Frame = 0
		}
	case CmdMovePointer:
		if err := c.Pointer.SetPosition(cmd.Point()); err != nil {
			return err
		}
	case CmdSetSettings:
		if cmd.Settings == nil {
			return ErrNoSettings
		}
		w.ApplySettings(*cmd.Settings, now)
		c.Record(model.EventSettings, desktop.None, "")
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
	c.Record(model.EventCommand, desktop.None, string(cmd.Type))
	return nil
}

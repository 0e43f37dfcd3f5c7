package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrQuit is returned by Exec for the quit command
var ErrQuit = errors.New("quit")

// CommandHelp lists the line commands understood by Exec
const CommandHelp = `commands:
  s [minutes]   start the countdown, or stop it while running
  p             pause or resume
  e             end the rotation and show the next photo
  u <url>       load photos from a page
  w             save the session
  o             load the saved session
  ?             show this help
  q             quit`

// Exec runs one line command against the App. minutes is used by "s" when
// the command does not name a duration.
func (a *App) Exec(ctx context.Context, line string, minutes int) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch strings.ToLower(fields[0]) {
	case "s", "start":
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return fmt.Errorf("invalid minutes %q", fields[1])
			}
			minutes = n
		}
		return a.ToggleTimer(minutes)
	case "p", "pause", "resume":
		a.PauseResume()
		return nil
	case "e", "end":
		a.EndTimer()
		return nil
	case "u", "url":
		if len(fields) < 2 {
			return errors.New("usage: u <url>")
		}
		return a.SetList(fields[1])
	case "w", "save":
		return a.Save(ctx)
	case "o", "load":
		return a.Load(ctx)
	case "q", "quit", "exit":
		return ErrQuit
	case "?", "h", "help":
		return nil
	default:
		return fmt.Errorf("unknown command %q (? for help)", fields[0])
	}
}

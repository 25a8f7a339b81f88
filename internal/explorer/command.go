package explorer

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/fraudviz/pkg/core"
)

// Command is a typed user intent applied to a Session.
type Command interface {
	// Name is the command keyword, also used as the metrics label.
	Name() string
}

// SelectNode focuses a node and its direct neighbours.
type SelectNode struct{ ID string }

// SwitchView changes the view mode.
type SwitchView struct{ Mode core.ViewMode }

// Search highlights nodes matching Text. Blank text clears the highlight.
type Search struct{ Text string }

// Reset returns every element to normal.
type Reset struct{}

// Reload fetches a fresh snapshot.
type Reload struct{}

func (SelectNode) Name() string { return "select" }
func (SwitchView) Name() string { return "view" }
func (Search) Name() string     { return "search" }
func (Reset) Name() string      { return "reset" }
func (Reload) Name() string     { return "reload" }

// CommandHelp lists the text form of every command.
var CommandHelp = []struct{ Usage, Description string }{
	{"select <id>", "highlight a node and its neighbours"},
	{"view <transactions|fraud>", "switch the view mode"},
	{"search <text>", "highlight nodes whose label, id, name or email matches"},
	{"reset", "clear the highlight"},
	{"reload", "fetch a fresh snapshot"},
}

// ParseCommand reads the text form of a command, as typed into the shell.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	verb, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(verb) {
	case "select":
		if arg == "" {
			return nil, fmt.Errorf("usage: select <id>")
		}
		return SelectNode{ID: arg}, nil
	case "view":
		mode, err := core.ParseViewMode(arg)
		if err != nil {
			return nil, err
		}
		return SwitchView{Mode: mode}, nil
	case "search":
		return Search{Text: arg}, nil
	case "reset":
		return Reset{}, nil
	case "reload":
		return Reload{}, nil
	case "":
		return nil, fmt.Errorf("empty command")
	default:
		return nil, fmt.Errorf("unknown command %q", verb)
	}
}

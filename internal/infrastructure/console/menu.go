package console

import (
	"fmt"
	"io"

	"github.com/specht/specht-client/internal/domain/model"
)

// Action is what selecting a menu item does
type Action string

const (
	ActionToggle     Action = "toggle"
	ActionDisconnect Action = "disconnect"
	ActionOpenFolder Action = "open-folder"
	ActionReload     Action = "reload"
	ActionExit       Action = "exit"
)

// MenuItem is one line of the control menu
type MenuItem struct {
	Title     string
	Action    Action
	Shortcut  string
	Checked   bool
	Enabled   bool
	Separator bool
	// Tunnel is the tunnel name for toggle items
	Tunnel string
}

var statusSuffix = map[model.ConnectionStatus]string{
	model.StatusConnecting:    " (Connecting)",
	model.StatusDisconnecting: " (Disconnecting)",
	model.StatusReasserting:   " (Reconnecting)",
	model.StatusInvalid:       " (----)",
}

// BuildMenu lays out the tunnels of snap followed by the fixed actions.
// While one tunnel is active, idle and invalid tunnels cannot be toggled.
func BuildMenu(snap model.SnapshotPayload) []MenuItem {
	items := make([]MenuItem, 0, len(snap.Tunnels)+7)
	for _, h := range snap.Tunnels {
		enabled := true
		if snap.AnyActive && (h.Status == model.StatusDisconnected || h.Status == model.StatusInvalid) {
			enabled = false
		}
		items = append(items, MenuItem{
			Title:   h.Name() + statusSuffix[h.Status],
			Action:  ActionToggle,
			Checked: h.Status == model.StatusConnected,
			Enabled: enabled,
			Tunnel:  h.Name(),
		})
	}

	return append(items,
		MenuItem{Separator: true},
		MenuItem{Title: "Disconnect", Action: ActionDisconnect, Shortcut: "d", Enabled: true},
		MenuItem{Title: "Open config folder", Action: ActionOpenFolder, Shortcut: "c", Enabled: true},
		MenuItem{Title: "Reload config", Action: ActionReload, Shortcut: "r", Enabled: true},
		MenuItem{Separator: true},
		MenuItem{Title: "Exit", Action: ActionExit, Shortcut: "q", Enabled: true},
	)
}

// Render writes items as a plain text menu
func Render(w io.Writer, items []MenuItem) error {
	for _, it := range items {
		var err error
		switch {
		case it.Separator:
			_, err = fmt.Fprintln(w, "----")
		case it.Action == ActionToggle:
			_, err = fmt.Fprintf(w, "%s %s\n", marker(it), it.Title)
		default:
			_, err = fmt.Fprintf(w, "    %s (%s)\n", it.Title, it.Shortcut)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func marker(it MenuItem) string {
	switch {
	case !it.Enabled:
		return "[-]"
	case it.Checked:
		return "[x]"
	default:
		return "[ ]"
	}
}

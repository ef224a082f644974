package editor

import (
	"context"
	"strings"

	"github.com/matzehuels/mindcanvas/pkg/graph"
)

// Command is an editor action bound to a keyboard shortcut.
type Command int

// Commands.
const (
	CmdNone Command = iota
	CmdUndo
	CmdRedo
	CmdSave
	CmdCopy
	CmdCut
	CmdPaste
	CmdSearch
	CmdDelete
	CmdCancel
)

var commandNames = map[Command]string{
	CmdNone:   "none",
	CmdUndo:   "undo",
	CmdRedo:   "redo",
	CmdSave:   "save",
	CmdCopy:   "copy",
	CmdCut:    "cut",
	CmdPaste:  "paste",
	CmdSearch: "search",
	CmdDelete: "delete",
	CmdCancel: "cancel",
}

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return "unknown"
}

// shortcuts maps key names, as reported by the terminal UI, to commands.
var shortcuts = map[string]Command{
	"ctrl+z":       CmdUndo,
	"ctrl+y":       CmdRedo,
	"ctrl+shift+z": CmdRedo,
	"ctrl+s":       CmdSave,
	"ctrl+c":       CmdCopy,
	"ctrl+x":       CmdCut,
	"ctrl+v":       CmdPaste,
	"ctrl+f":       CmdSearch,
	"delete":       CmdDelete,
	"backspace":    CmdDelete,
	"esc":          CmdCancel,
	"escape":       CmdCancel,
}

// ResolveShortcut maps a key to an editor command. Every shortcut is
// suppressed while focus is in a text input, so the input keeps its native
// editing keys.
func ResolveShortcut(key string, inTextInput bool) (Command, bool) {
	if inTextInput {
		return CmdNone, false
	}
	cmd, ok := shortcuts[strings.ToLower(key)]
	return cmd, ok
}

// Execute runs a command. cursor is the pointer position in screen
// coordinates, used by paste. CmdSearch only reports true; opening the
// search box is up to the UI. The error is non-nil only for a failed save.
func (s *Store) Execute(ctx context.Context, cmd Command, cursor graph.Position) (bool, error) {
	switch cmd {
	case CmdUndo:
		return s.Undo(), nil
	case CmdRedo:
		return s.Redo(), nil
	case CmdSave:
		if err := s.Save(ctx); err != nil {
			return false, err
		}
		return true, nil
	case CmdCopy:
		return s.Copy(), nil
	case CmdCut:
		return s.Cut(), nil
	case CmdPaste:
		return s.Paste(cursor), nil
	case CmdSearch:
		return true, nil
	case CmdDelete:
		return s.DeleteSelection(), nil
	case CmdCancel:
		return s.Cancel(), nil
	}
	return false, nil
}

package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/mindcanvas/pkg/collab"
	"github.com/matzehuels/mindcanvas/pkg/editor"
	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/graph"
)

// Outline styles
var (
	outlineCursorStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	outlineSelectedStyle = lipgloss.NewStyle().Foreground(colorYellow)
	outlineNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	outlineDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	outlineInputStyle    = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
)

// nudge is how far H/J/K/L move the selection, in canvas units.
const nudge = 20

var edgeCycle = []graph.EdgeType{
	graph.EdgeDefault, graph.EdgeStraight, graph.EdgeStep, graph.EdgeSmoothStep, graph.EdgeBezier,
}

// =============================================================================
// Outline
// =============================================================================

// outlineRow is one line of the tree view.
type outlineRow struct {
	ID       string
	Depth    int
	Label    string
	Type     graph.NodeType
	Selected bool
}

// buildOutline flattens the document into a depth-first tree starting at
// the root. Nodes not reachable from the root follow as extra top-level
// entries. A node with several parents is listed once, under the first.
func buildOutline(s graph.Snapshot) []outlineRow {
	children := make(map[string][]string)
	for _, e := range s.Edges {
		children[e.Source] = append(children[e.Source], e.Target)
	}
	byID := make(map[string]graph.Node, len(s.Nodes))
	for _, n := range s.Nodes {
		byID[n.ID] = n
	}

	var rows []outlineRow
	seen := make(map[string]bool)
	var visit func(id string, depth int)
	visit = func(id string, depth int) {
		n, ok := byID[id]
		if !ok || seen[id] {
			return
		}
		seen[id] = true
		rows = append(rows, outlineRow{ID: id, Depth: depth, Label: n.Label(), Type: n.Type, Selected: n.Selected})
		for _, c := range children[id] {
			visit(c, depth+1)
		}
	}

	visit(graph.RootID, 0)
	for _, n := range s.Nodes {
		visit(n.ID, 0)
	}
	return rows
}

// renamePayload returns n's payload with its display text replaced.
func renamePayload(n graph.Node, text string) (graph.Payload, bool) {
	switch d := n.Data.(type) {
	case graph.TextData:
		d.Label = text
		return d, true
	case graph.LinkData:
		d.DisplayText = text
		return d, true
	case graph.ImageData:
		d.Caption = text
		return d, true
	case graph.AudioData:
		d.Label = text
		return d, true
	case graph.SubMapData:
		d.Label = text
		return d, true
	case graph.PlaylistData:
		d.Label = text
		d.Items = slices.Clone(d.Items)
		return d, true
	case graph.SocialData:
		d.Username = text
		return d, true
	case graph.EmbedData:
		d.EmbedURL = text
		return d, true
	}
	return nil, false
}

// =============================================================================
// Messages
// =============================================================================

// remoteMsg carries an event from a collaborator into the UI goroutine,
// which is the only goroutine that touches the store.
type remoteMsg struct{ ev collab.Event }

type autosaveMsg time.Time

// =============================================================================
// editorModel - Interactive mind map editor
// =============================================================================

type inputMode int

const (
	modeNormal inputMode = iota
	modeRename
	modeTitle
	modeSearch
	modeImage
	modeColor
)

var modePrompts = map[inputMode]string{
	modeRename: "Rename",
	modeTitle:  "Title",
	modeSearch: "Search",
	modeImage:  "Image URL",
	modeColor:  "Color",
}

// editorModel is the bubbletea model of the outline editor.
type editorModel struct {
	ctx      context.Context
	store    *editor.Store
	autosave time.Duration
	peers    string

	rows   []outlineRow
	cursor int
	offset int
	height int

	mode  inputMode
	input textinput.Model
	hits  []string

	status    string
	statusErr bool
	remote    int
	quitting  bool
}

func newEditorModel(ctx context.Context, store *editor.Store, autosave time.Duration, peers string) editorModel {
	m := editorModel{ctx: ctx, store: store, autosave: autosave, peers: peers, height: 20}
	m.input = textinput.New()
	m.input.PromptStyle = outlineInputStyle
	m.input.CharLimit = 500
	m.refresh()
	return m
}

func (m editorModel) Init() tea.Cmd {
	return m.scheduleAutosave()
}

func (m editorModel) scheduleAutosave() tea.Cmd {
	if m.autosave <= 0 {
		return nil
	}
	return tea.Tick(m.autosave, func(t time.Time) tea.Msg { return autosaveMsg(t) })
}

func (m editorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = max(msg.Height-8, 5)
		m.scroll()
	case remoteMsg:
		if m.store.ApplyRemote(msg.ev) == collab.ResultApplied {
			m.remote++
			m.refresh()
		}
	case autosaveMsg:
		if m.store.HasUnsavedChanges() {
			m.save("Autosaved")
		}
		return m, m.scheduleAutosave()
	case tea.KeyMsg:
		if m.mode != modeNormal {
			return m.updateInput(msg)
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

func (m editorModel) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	m.status, m.statusErr = "", false

	if cmd, ok := editor.ResolveShortcut(key, false); ok {
		return m.execute(cmd)
	}

	var cmd tea.Cmd
	switch key {
	case "ctrl+q":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		m.move(-1)
	case "down", "j":
		m.move(1)
	case "home", "g":
		m.cursor = 0
		m.scroll()
	case "end", "G":
		m.cursor = max(len(m.rows)-1, 0)
		m.scroll()
	case " ":
		if id := m.current(); id != "" {
			if n, _ := m.store.Node(id); n.Selected {
				m.store.Deselect(id)
			} else {
				m.store.Select(id, true)
			}
			m.refresh()
		}
	case "a", "enter", "tab":
		if id, ok := m.store.AddChild(m.current(), graph.TypeText); ok {
			m.refresh()
			m.focus(id)
			cmd = m.open(modeRename, "")
		} else {
			m.fail("Cannot add a child here")
		}
	case "r", "f2":
		if n, ok := m.store.Node(m.current()); ok {
			cmd = m.open(modeRename, n.Label())
		}
	case "t":
		cmd = m.open(modeTitle, m.store.Title())
	case "/":
		cmd = m.open(modeSearch, "")
	case "i":
		cmd = m.open(modeImage, "")
	case "c":
		if n, ok := m.store.Node(m.current()); ok {
			cmd = m.open(modeColor, n.Style.Background)
		}
	case "l":
		if n, ok := m.store.AutoLayout(m.current()); ok {
			m.info(fmt.Sprintf("Laid out %d nodes", n))
		} else {
			m.info("Nothing to lay out")
		}
	case "e":
		next := nextEdgeType(m.store.Settings().EdgeType)
		if m.store.SetEdgeType(next) {
			m.info("Edges: " + string(next))
		}
	case "H", "J", "K", "L":
		m.nudge(key)
	}
	return m, cmd
}

// execute runs an editor shortcut. Commands that act on the selection fall
// back to the node under the cursor when nothing is selected.
func (m editorModel) execute(cmd editor.Command) (tea.Model, tea.Cmd) {
	switch cmd {
	case editor.CmdSearch:
		cmd := m.open(modeSearch, "")
		return m, cmd
	case editor.CmdCopy, editor.CmdCut, editor.CmdDelete:
		if len(m.store.Selected()) == 0 {
			m.store.Select(m.current(), false)
		}
	}

	ok, err := m.store.Execute(m.ctx, cmd, m.cursorScreen())
	switch {
	case err != nil:
		m.fail(apperr.UserMessage(err))
	case !ok && cmd == editor.CmdDelete:
		m.fail("The root node cannot be deleted")
	case !ok && cmd == editor.CmdPaste:
		m.fail("Clipboard is empty")
	case ok && cmd == editor.CmdSave:
		m.info("Saved")
	case ok:
		m.info(strings.ToUpper(cmd.String()[:1]) + cmd.String()[1:])
	}
	m.refresh()
	return m, nil
}

func (m editorModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closeInput()
		m.hits = nil
		return m, nil
	case tea.KeyEnter:
		m.commit()
		m.closeInput()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == modeSearch {
		m.hits = m.store.Search(m.input.Value())
	}
	return m, cmd
}

// commit applies the text input of the current mode.
func (m *editorModel) commit() {
	text := strings.TrimSpace(m.input.Value())
	id := m.current()

	switch m.mode {
	case modeRename:
		n, ok := m.store.Node(id)
		if !ok {
			return
		}
		data, ok := renamePayload(n, text)
		if !ok || !m.store.UpdateNode(id, data, n.Style.Background) {
			m.fail("Cannot rename " + string(n.Type) + " node")
		}
	case modeTitle:
		if text != "" {
			m.store.UpdateTitle(text)
		}
	case modeSearch:
		m.hits = m.store.Search(text)
		if len(m.hits) == 0 {
			m.fail("No matches")
			return
		}
		m.store.ClearSelection()
		for _, h := range m.hits {
			m.store.Select(h, true)
		}
		m.refresh()
		m.focus(m.hits[0])
		m.info(fmt.Sprintf("%d matches selected", len(m.hits)))
		m.hits = nil
	case modeImage:
		if err := apperr.ValidateURL(text); err != nil {
			m.fail(apperr.UserMessage(err))
			return
		}
		if nid, ok := m.store.PasteImage(text, m.cursorScreen()); ok {
			m.refresh()
			m.focus(nid)
		}
	case modeColor:
		n, ok := m.store.Node(id)
		if !ok {
			return
		}
		if text != "" {
			if err := apperr.ValidateColor(text); err != nil {
				m.fail(apperr.UserMessage(err))
				return
			}
		}
		m.store.UpdateNode(id, n.Data, text)
	}
	m.refresh()
}

// nudge moves the selection, or the node under the cursor, one grid step.
func (m *editorModel) nudge(key string) {
	ids := make([]string, 0)
	for _, n := range m.store.Selected() {
		ids = append(ids, n.ID)
	}
	if len(ids) == 0 && m.current() != "" {
		ids = append(ids, m.current())
	}
	delta := map[string]graph.Position{
		"H": {X: -nudge}, "L": {X: nudge}, "K": {Y: -nudge}, "J": {Y: nudge},
	}[key]
	if !m.store.BeginDrag(ids...) {
		return
	}
	m.store.DragTo(delta)
	m.store.EndDrag()
}

// cursorScreen is the paste position: just below and right of the node
// under the cursor, in screen coordinates.
func (m editorModel) cursorScreen() graph.Position {
	n, ok := m.store.Node(m.current())
	if !ok {
		return graph.Position{}
	}
	w, h := n.Size()
	return m.store.Viewport().WorldToScreen(n.Position.Add(graph.Position{X: w / 2, Y: h + 40}))
}

func (m *editorModel) open(mode inputMode, initial string) tea.Cmd {
	m.mode, m.hits = mode, nil
	m.input.Prompt = modePrompts[mode] + ": "
	m.input.SetValue(initial)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *editorModel) closeInput() {
	m.mode = modeNormal
	m.input.Blur()
	m.input.Reset()
}

func (m *editorModel) refresh() {
	m.rows = buildOutline(m.store.Snapshot())
	if m.cursor >= len(m.rows) {
		m.cursor = max(len(m.rows)-1, 0)
	}
	m.scroll()
}

func (m *editorModel) move(d int) {
	m.cursor = min(max(m.cursor+d, 0), max(len(m.rows)-1, 0))
	m.scroll()
}

func (m *editorModel) scroll() {
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+m.height {
		m.offset = m.cursor - m.height + 1
	}
}

func (m *editorModel) focus(id string) {
	for i, r := range m.rows {
		if r.ID == id {
			m.cursor = i
			m.scroll()
			return
		}
	}
}

func (m editorModel) current() string {
	if m.cursor < len(m.rows) {
		return m.rows[m.cursor].ID
	}
	return ""
}

func (m *editorModel) save(msg string) {
	ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
	defer cancel()
	if err := m.store.Save(ctx); err != nil {
		m.fail(apperr.UserMessage(err))
		return
	}
	m.info(msg)
}

func (m *editorModel) info(s string) { m.status, m.statusErr = s, false }
func (m *editorModel) fail(s string) { m.status, m.statusErr = s, true }

func nextEdgeType(t graph.EdgeType) graph.EdgeType {
	i := slices.Index(edgeCycle, t)
	return edgeCycle[(i+1)%len(edgeCycle)]
}

func (m editorModel) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.store.Title()))
	b.WriteString("  ")
	b.WriteString(outlineDimStyle.Render(m.store.DocumentID()))
	if m.peers != "" {
		b.WriteString(outlineDimStyle.Render("  via " + m.peers))
	}
	b.WriteString("\n")
	snap := m.store.Snapshot()
	b.WriteString(statsLine(len(snap.Nodes), len(snap.Edges), m.store.HasUnsavedChanges()))
	if m.remote > 0 {
		b.WriteString(outlineDimStyle.Render(fmt.Sprintf("  %d remote changes", m.remote)))
	}
	b.WriteString("\n\n")

	hit := make(map[string]bool, len(m.hits))
	for _, h := range m.hits {
		hit[h] = true
	}
	end := min(m.offset+m.height, len(m.rows))
	for i := m.offset; i < end; i++ {
		b.WriteString(m.renderRow(m.rows[i], i == m.cursor, hit[m.rows[i].ID]))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.mode != modeNormal {
		b.WriteString(m.input.View())
		if m.mode == modeSearch {
			b.WriteString(outlineDimStyle.Render(fmt.Sprintf("  %d matches", len(m.hits))))
		}
		b.WriteString("\n")
	} else if m.status != "" {
		if m.statusErr {
			b.WriteString(styleIconError.Render(m.status))
		} else {
			b.WriteString(styleIconSuccess.Render(m.status))
		}
		b.WriteString("\n")
	}
	b.WriteString(outlineDimStyle.Render("↑/↓ move  a add  r rename  space select  l layout  e edges  / search  ^z/^y undo/redo  ^s save  ^q quit"))
	return b.String()
}

func (m editorModel) renderRow(r outlineRow, cursor, hit bool) string {
	marker := "  "
	if cursor {
		marker = "▸ "
	}
	sel := " "
	if r.Selected {
		sel = "●"
	}
	label := r.Label
	style := outlineNormalStyle
	switch {
	case cursor:
		style = outlineCursorStyle
	case r.Selected || hit:
		style = outlineSelectedStyle
	}
	tag := ""
	if r.Type != graph.TypeText {
		tag = outlineDimStyle.Render(" [" + string(r.Type) + "]")
	}
	return marker + sel + " " + strings.Repeat("  ", r.Depth) + style.Render(label) + tag
}

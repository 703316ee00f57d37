package views

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskboard/internal/api"
	"github.com/tgienger/taskboard/internal/board"
	"github.com/tgienger/taskboard/internal/ui/keys"
	"github.com/tgienger/taskboard/internal/ui/styles"
)

// Kanban renders a collection as status columns and moves the selected card
// between them. The project, task and personal task boards embed one.
type Kanban[T any, S comparable] struct {
	owner   int64
	ctx     context.Context
	lane    board.Lane[T, S]
	mover   *board.Mover[T, S]
	persist func(ctx context.Context, item T, to S) error
	card    func(item *T, width int) []string
	styles  *styles.Styles
	keys    keys.KeyMap

	items   []T
	filter  func([]T) []T
	col     int
	row     int
	notices []board.Notice

	width  int
	height int
}

// moveResult is the outcome of a status change request
type moveResult[S comparable] struct {
	owner  int64
	ticket board.Ticket[S]
	err    error
}

// newKanban creates a board over lane. persist saves a status change and
// receives a copy of the item as it was optimistically updated; card renders
// the lines of one card.
func newKanban[T any, S comparable](
	ctx context.Context,
	lane board.Lane[T, S],
	persist func(ctx context.Context, item T, to S) error,
	card func(item *T, width int) []string,
	s *styles.Styles,
	k keys.KeyMap,
) *Kanban[T, S] {
	kb := &Kanban[T, S]{
		owner:   nextOwner(),
		ctx:     ctx,
		lane:    lane,
		persist: persist,
		card:    card,
		styles:  s,
		keys:    k,
	}
	kb.mover = board.NewMover(lane, func(n board.Notice) {
		kb.notices = append(kb.notices, n)
	})
	return kb
}

// SetItems replaces the collection, e.g. after a reload
func (k *Kanban[T, S]) SetItems(items []T) {
	k.items = items
	k.clampCursor()
}

// Items returns the whole collection, including filtered-out items
func (k *Kanban[T, S]) Items() []T { return k.items }

// SetFilter sets the function selecting the visible items. nil shows all.
func (k *Kanban[T, S]) SetFilter(fn func([]T) []T) {
	k.filter = fn
	k.clampCursor()
}

func (k *Kanban[T, S]) SetSize(width, height int) {
	k.width = width
	k.height = height
}

func (k *Kanban[T, S]) columns() []board.Column[T, S] {
	items := k.items
	if k.filter != nil {
		items = k.filter(items)
	}
	return board.Columns(k.lane, items)
}

// Selected returns the selected item within the collection, or nil
func (k *Kanban[T, S]) Selected() *T {
	cols := k.columns()
	if k.col >= len(cols) || k.row >= len(cols[k.col].Items) {
		return nil
	}
	return k.lane.Find(k.items, k.lane.ID(&cols[k.col].Items[k.row]))
}

// Move shifts the selected card delta columns
func (k *Kanban[T, S]) Move(delta int) tea.Cmd {
	e := k.Selected()
	if e == nil {
		return nil
	}
	to, ok := k.lane.Neighbour(k.lane.Get(e).Status, delta)
	if !ok {
		return nil
	}
	return k.MoveTo(e, to)
}

// MoveTo changes e's status now and returns the command persisting it. e
// must point into the collection.
func (k *Kanban[T, S]) MoveTo(e *T, to S) tea.Cmd {
	t, ok := k.mover.Begin(e, to)
	if !ok {
		return nil
	}
	k.follow(t.ID)

	ctx, persist, owner, item := k.ctx, k.persist, k.owner, *e
	return func() tea.Msg {
		return moveResult[S]{owner: owner, ticket: t, err: persist(ctx, item, t.To)}
	}
}

// follow puts the cursor on the card with id
func (k *Kanban[T, S]) follow(id int64) {
	for c, col := range k.columns() {
		for r := range col.Items {
			if k.lane.ID(&col.Items[r]) == id {
				k.col, k.row = c, r
				return
			}
		}
	}
}

func (k *Kanban[T, S]) clampCursor() {
	cols := k.columns()
	k.col = clamp(k.col, 0, max(len(cols)-1, 0))
	if len(cols) == 0 {
		k.row = 0
		return
	}
	k.row = clamp(k.row, 0, max(len(cols[k.col].Items)-1, 0))
}

// Update handles navigation and move results. It returns the commands the
// screen must run.
func (k *Kanban[T, S]) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case moveResult[S]:
		if msg.owner != k.owner {
			return nil
		}
		outcome := k.mover.Settle(k.lane.Find(k.items, msg.ticket.ID), msg.ticket, msg.err)
		slog.Debug("status change settled",
			"entity", k.lane.Name, "id", msg.ticket.ID, "to", fmt.Sprint(msg.ticket.To), "outcome", outcome.String())
		k.clampCursor()

		var cmds []tea.Cmd
		for _, n := range k.notices {
			cmds = append(cmds, func() tea.Msg {
				return Toast{Text: n.String(), Err: n.Kind == board.NoticeError}
			})
		}
		k.notices = nil
		if outcome == board.RolledBack && errors.Is(msg.err, api.ErrUnauthorized) {
			cmds = append(cmds, func() tea.Msg { return Unauthorized{} })
		}
		return tea.Batch(cmds...)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, k.keys.MoveLeft):
			return k.Move(-1)
		case key.Matches(msg, k.keys.MoveRight):
			return k.Move(1)
		case key.Matches(msg, k.keys.Left):
			k.col--
		case key.Matches(msg, k.keys.Right):
			k.col++
		case key.Matches(msg, k.keys.Up):
			k.row--
		case key.Matches(msg, k.keys.Down):
			k.row++
		}
		k.clampCursor()
	}
	return nil
}

func (k *Kanban[T, S]) statusLabel(s S) string {
	if k.lane.StatusLabel != nil {
		return k.lane.StatusLabel(s)
	}
	return fmt.Sprint(s)
}

// View renders the columns side by side
func (k *Kanban[T, S]) View() string {
	s := k.styles
	cols := k.columns()
	if len(cols) == 0 {
		return ""
	}

	colWidth := max(k.width/len(cols)-2, 18)
	innerWidth := colWidth - 4
	// each card takes its lines plus a margin; leave room for the title
	visible := max((k.height-4)/4, 1)

	rendered := make([]string, len(cols))
	for i, col := range cols {
		title := s.ColumnTitle.Foreground(styles.StatusColor(fmt.Sprint(col.Status))).
			Render(fmt.Sprintf("%s (%d)", k.statusLabel(col.Status), len(col.Items)))

		lines := []string{title}
		if len(col.Items) == 0 {
			lines = append(lines, s.TitleMuted.Render("Nothing here"))
		}

		start := 0
		if i == k.col && k.row >= visible {
			start = k.row - visible + 1
		}
		end := min(start+visible, len(col.Items))
		for j := start; j < end; j++ {
			item := &col.Items[j]
			body := k.card(item, innerWidth)
			if k.mover.Pending(k.lane.ID(item)) {
				body = append(body, s.CardPending.Render("saving…"))
			}
			st := s.Card
			if i == k.col && j == k.row {
				st = s.CardSelected
			}
			lines = append(lines, st.Width(innerWidth).Render(strings.Join(body, "\n")))
		}
		if end < len(col.Items) {
			lines = append(lines, s.TitleMuted.Render(fmt.Sprintf("+%d more", len(col.Items)-end)))
		}

		st := s.Column
		if i == k.col {
			st = s.ColumnFocused
		}
		rendered[i] = st.Width(colWidth).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

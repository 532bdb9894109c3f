package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"prefixjoin/internal/candidate"
)

type candidateItem struct {
	candidate.Candidate
}

func (c candidateItem) FilterValue() string { return c.SSID }

func (c candidateItem) signalStyle() lipgloss.Style {
	switch {
	case c.Signal >= signalExcellent:
		return signalExcellentStyle
	case c.Signal >= signalGood:
		return signalGoodStyle
	default:
		return signalWeakStyle
	}
}

func (c candidateItem) SignalBars() string {
	faint := lipgloss.NewStyle().Foreground(colorFaint)
	switch {
	case c.Signal >= signalExcellent:
		return signalExcellentStyle.Render("▂▄▆█")
	case c.Signal >= signalGood:
		return signalGoodStyle.Render("▂▄▆") + faint.Render("█")
	case c.Signal > 0:
		return signalWeakStyle.Render("▂▄") + faint.Render("▆█")
	default:
		return faint.Render("▂▄▆█")
	}
}

func (c candidateItem) Description() string {
	label := lipgloss.NewStyle().Foreground(colorFaint)
	parts := []string{
		fmt.Sprintf("%s %s %s", label.Render("Signal:"), c.SignalBars(), c.signalStyle().Render(fmt.Sprintf("%d%%", c.Signal))),
		fmt.Sprintf("%s %s", label.Render("Security:"), label.Render(c.Cipher.String())),
	}
	return strings.Join(parts, label.Render(" │ "))
}

type itemDelegate struct{}

func (d itemDelegate) Height() int                             { return 2 }
func (d itemDelegate) Spacing() int                            { return 1 }
func (d itemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d itemDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	item, ok := listItem.(candidateItem)
	if !ok {
		return
	}
	var title, desc string
	if index == m.Index() {
		title = listSelectedItemStyle.Render("▸ " + item.SSID)
		desc = listSelectedDescStyle.Render("  " + item.Description())
	} else {
		title = listItemStyle.Render("  " + item.SSID)
		desc = listDescStyle.Render("  " + item.Description())
	}
	fmt.Fprintf(w, "%s\n%s", title, desc)
}

func toItems(cs []candidate.Candidate) []list.Item {
	items := make([]list.Item, len(cs))
	for i, c := range cs {
		items[i] = candidateItem{c}
	}
	return items
}

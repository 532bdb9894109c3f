package tui

import "github.com/charmbracelet/lipgloss"

const (
	appName          = "prefixjoin"
	helpBarMaxWidth  = 80
	listWidthPercent = 0.85
	listFixedWidth   = 80
	minListWidth     = 30
	minListHeight    = 3
)

// Signal strength thresholds
const (
	signalExcellent = 70
	signalGood      = 40
)

var (
	appStyle = lipgloss.NewStyle().Margin(1, 1)

	colorPrimary   = lipgloss.Color("5")
	colorSecondary = lipgloss.Color("4")
	colorAccent    = lipgloss.Color("6")
	colorSuccess   = lipgloss.Color("2")
	colorError     = lipgloss.Color("1")
	colorWarning   = lipgloss.Color("3")
	colorFaint     = lipgloss.Color("8")
	colorText      = lipgloss.Color("7")

	titleStyle            = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Padding(0, 1)
	listTitleStyle        = lipgloss.NewStyle().Foreground(colorSecondary).Padding(0, 1).Bold(true)
	listItemStyle         = lipgloss.NewStyle().PaddingLeft(2).Foreground(colorText)
	listSelectedItemStyle = lipgloss.NewStyle().PaddingLeft(1).Foreground(colorPrimary).Bold(true)
	listDescStyle         = lipgloss.NewStyle().PaddingLeft(2).Foreground(colorFaint)
	listSelectedDescStyle = lipgloss.NewStyle().PaddingLeft(1).Foreground(colorPrimary)
	listNoItemsStyle      = lipgloss.NewStyle().Faint(true).Margin(1, 0).Foreground(colorFaint)

	buttonStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(colorSecondary).
			Padding(0, 2).
			MarginRight(2)
	buttonActiveStyle = buttonStyle.BorderForeground(colorPrimary).Foreground(colorPrimary).Bold(true)

	statusStyle     = lipgloss.NewStyle().MarginTop(1)
	successStyle    = statusStyle.Foreground(colorSuccess).Bold(true)
	errorStyle      = statusStyle.Foreground(colorError).Bold(true)
	warningStyle    = statusStyle.Foreground(colorWarning)
	infoStyle       = statusStyle.Foreground(colorFaint)
	connectingStyle = lipgloss.NewStyle().Foreground(colorAccent)
	helpGlobalStyle = lipgloss.NewStyle().Foreground(colorFaint)
	linkStyle       = lipgloss.NewStyle().Foreground(colorFaint).Italic(true)

	wifiStatusEnabled  = lipgloss.NewStyle().Foreground(colorSuccess)
	wifiStatusDisabled = lipgloss.NewStyle().Foreground(colorError)
	wifiStatusPending  = lipgloss.NewStyle().Foreground(colorWarning)

	signalExcellentStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	signalGoodStyle      = lipgloss.NewStyle().Foreground(colorWarning)
	signalWeakStyle      = lipgloss.NewStyle().Foreground(colorError)
)

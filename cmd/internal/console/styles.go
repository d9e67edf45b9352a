package console

import "github.com/charmbracelet/lipgloss"

// One Dark palette, shared with the site's dark theme.
var (
	colorFgPrimary = lipgloss.Color("#ABB2BF")
	colorFgMuted   = lipgloss.Color("#636B78")
	colorRed       = lipgloss.Color("#E06C75")
	colorGreen     = lipgloss.Color("#98C379")
	colorYellow    = lipgloss.Color("#E5C07B")
	colorBlue      = lipgloss.Color("#61AFEF")
	colorMagenta   = lipgloss.Color("#C678DD")
	colorBorder    = lipgloss.Color("#3F4451")
)

var (
	brandStyle = lipgloss.NewStyle().
			Foreground(colorMagenta).
			Bold(true)

	navBarStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	linkStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Underline(true)

	avatarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#282C34")).
			Background(colorMagenta).
			Bold(true).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(colorFgPrimary).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorFgMuted)

	menuStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(colorMagenta).
			PaddingLeft(1)

	errorBannerStyle = lipgloss.NewStyle().
				Foreground(colorRed).
				Bold(true)

	successBannerStyle = lipgloss.NewStyle().
				Foreground(colorGreen).
				Bold(true)

	fieldErrorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			PaddingLeft(2)

	busyStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Italic(true)

	cardTitleStyle = lipgloss.NewStyle().
			Foreground(colorFgPrimary).
			Bold(true)

	tagStyle = lipgloss.NewStyle().
			Foreground(colorBlue)
)

// strengthStyles colours the meter by level: weak, medium, strong.
var strengthStyles = [...]lipgloss.Style{
	lipgloss.NewStyle().Foreground(colorRed),
	lipgloss.NewStyle().Foreground(colorYellow),
	lipgloss.NewStyle().Foreground(colorGreen),
}

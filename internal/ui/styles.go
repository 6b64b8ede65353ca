package ui

import "github.com/charmbracelet/lipgloss"

// Palette is one colour theme.
type Palette struct {
	Name      string
	Success   lipgloss.Color // success notices, happy votes
	Warning   lipgloss.Color // info notices, pending actions
	Error     lipgloss.Color // error notices, sad votes
	Address   lipgloss.Color // addresses, hashes
	Value     lipgloss.Color // counts and amounts
	Meta      lipgloss.Color // hints, timestamps
	Border    lipgloss.Color // UI chrome
	Chain     lipgloss.Color // network names, titles
	Highlight lipgloss.Color // selected rows, headers
	Selected  lipgloss.Color // text on Highlight
}

// Themes.
var (
	Dark = Palette{
		Name:      "dark",
		Success:   lipgloss.Color("#00D26A"),
		Warning:   lipgloss.Color("#FFB800"),
		Error:     lipgloss.Color("#FF4444"),
		Address:   lipgloss.Color("#00B4D8"),
		Value:     lipgloss.Color("#FFFFFF"),
		Meta:      lipgloss.Color("#777777"),
		Border:    lipgloss.Color("#3B2A6B"),
		Chain:     lipgloss.Color("#836EF9"), // monad purple
		Highlight: lipgloss.Color("#A0055D"),
		Selected:  lipgloss.Color("#FFFFFF"),
	}
	Light = Palette{
		Name:      "light",
		Success:   lipgloss.Color("#0A7F3F"),
		Warning:   lipgloss.Color("#A66A00"),
		Error:     lipgloss.Color("#C62828"),
		Address:   lipgloss.Color("#00658A"),
		Value:     lipgloss.Color("#111111"),
		Meta:      lipgloss.Color("#6B6B6B"),
		Border:    lipgloss.Color("#C9BFF5"),
		Chain:     lipgloss.Color("#5B3FD9"),
		Highlight: lipgloss.Color("#E2D9FF"),
		Selected:  lipgloss.Color("#111111"),
	}
)

// Current is the active palette.
var Current = Dark

// Base styles, rebuilt by ApplyTheme.
var (
	StyleSuccess  lipgloss.Style
	StyleWarning  lipgloss.Style
	StyleError    lipgloss.Style
	StyleAddress  lipgloss.Style
	StyleValue    lipgloss.Style
	StyleMeta     lipgloss.Style
	StyleChain    lipgloss.Style
	StyleBorder   lipgloss.Style
	StyleHeader   lipgloss.Style
	StyleSelected lipgloss.Style
	StyleTitle    lipgloss.Style
	StyleDim      lipgloss.Style
)

func init() { ApplyTheme(Dark.Name) }

// ApplyTheme switches the palette by name. Unknown names fall back to dark.
func ApplyTheme(name string) {
	p := Dark
	if name == Light.Name {
		p = Light
	}
	Current = p

	StyleSuccess = lipgloss.NewStyle().Foreground(p.Success).Bold(true)
	StyleWarning = lipgloss.NewStyle().Foreground(p.Warning).Bold(true)
	StyleError = lipgloss.NewStyle().Foreground(p.Error).Bold(true)
	StyleAddress = lipgloss.NewStyle().Foreground(p.Address)
	StyleValue = lipgloss.NewStyle().Foreground(p.Value).Bold(true)
	StyleMeta = lipgloss.NewStyle().Foreground(p.Meta)
	StyleChain = lipgloss.NewStyle().Foreground(p.Chain).Bold(true)

	StyleBorder = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Border).
		Padding(0, 1)

	StyleHeader = lipgloss.NewStyle().
		Foreground(p.Chain).
		Bold(true).
		Underline(true)

	StyleSelected = lipgloss.NewStyle().
		Background(p.Highlight).
		Foreground(p.Selected).
		Bold(true)

	StyleTitle = lipgloss.NewStyle().
		Foreground(p.Chain).
		Bold(true).
		MarginBottom(1)

	StyleDim = lipgloss.NewStyle().Foreground(p.Meta)
}

// ToggleTheme flips between light and dark and returns the new name.
func ToggleTheme() string {
	if Current.Name == Dark.Name {
		ApplyTheme(Light.Name)
	} else {
		ApplyTheme(Dark.Name)
	}
	return Current.Name
}

// Banner returns the monadvote banner.
func Banner() string {
	title := StyleChain.Render("  ☺ ☹  monadvote")
	tagline := StyleMeta.Render("  How is Monad feeling today?")
	return title + "\n" + tagline + "\n"
}

// Success formats a success message.
func Success(msg string) string { return StyleSuccess.Render("✓ " + msg) }

// Warn formats a warning message.
func Warn(msg string) string { return StyleWarning.Render("⚠ " + msg) }

// Err formats an error message.
func Err(msg string) string { return StyleError.Render("✗ " + msg) }

// Info formats an informational message.
func Info(msg string) string { return StyleWarning.Render("ℹ " + msg) }

// Addr formats an address.
func Addr(a string) string { return StyleAddress.Render(a) }

// Val formats a value.
func Val(v string) string { return StyleValue.Render(v) }

// Meta formats metadata text.
func Meta(m string) string { return StyleMeta.Render(m) }

// ChainName formats a network name.
func ChainName(c string) string { return StyleChain.Render(c) }

// TruncateAddr shortens an address for display: 0x1234…5678.
func TruncateAddr(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

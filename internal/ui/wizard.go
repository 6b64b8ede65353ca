package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// WizardResult holds answers collected by the setup wizard.
type WizardResult struct {
	Network       string
	Theme         string
	RPCAlgorithm  string
	WalletAddress string
	WalletName    string
}

// --- Bubble Tea model ---

type wizardStep int

const (
	stepNetwork wizardStep = iota
	stepTheme
	stepAlgorithm
	stepWallet
	stepDone
)

type wizardModel struct {
	step      wizardStep
	result    WizardResult
	cursor    int
	choices   []string
	input     string
	inputMode bool
	cancelled bool
}

var (
	wizardNetworks   = []string{"mainnet", "testnet"}
	wizardThemes     = []string{"dark", "light"}
	wizardAlgorithms = []string{"fastest", "round-robin", "failover"}
)

func initialWizard() wizardModel {
	return wizardModel{
		step:    stepNetwork,
		choices: wizardNetworks,
	}
}

func (m wizardModel) Init() tea.Cmd { return nil }

func (m wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c":
		m.cancelled = true
		return m, tea.Quit

	case "q":
		if !m.inputMode {
			m.cancelled = true
			return m, tea.Quit
		}
		m.input += "q"

	case "up", "k":
		if !m.inputMode && m.cursor > 0 {
			m.cursor--
		} else if m.inputMode {
			m.input += key.String()
		}

	case "down", "j":
		if !m.inputMode && m.cursor < len(m.choices)-1 {
			m.cursor++
		} else if m.inputMode {
			m.input += key.String()
		}

	case "enter":
		if m.inputMode {
			m.applyInput()
		} else {
			m.applyChoice()
		}
		m.cursor = 0
		m.advance()

	case "backspace":
		if m.inputMode && len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}

	default:
		if m.inputMode && key.Type == tea.KeyRunes {
			m.input += string(key.Runes)
		}
	}

	if m.step == stepDone {
		return m, tea.Quit
	}
	return m, nil
}

func (m *wizardModel) advance() {
	m.step++
	switch m.step {
	case stepTheme:
		m.choices = wizardThemes
	case stepAlgorithm:
		m.choices = wizardAlgorithms
	case stepWallet:
		m.choices = nil
		m.inputMode = true
		m.input = ""
	default:
		m.inputMode = false
	}
}

func (m *wizardModel) applyChoice() {
	if m.cursor >= len(m.choices) {
		return
	}
	switch m.step {
	case stepNetwork:
		m.result.Network = m.choices[m.cursor]
	case stepTheme:
		m.result.Theme = m.choices[m.cursor]
	case stepAlgorithm:
		m.result.RPCAlgorithm = m.choices[m.cursor]
	}
}

func (m *wizardModel) applyInput() {
	if m.step != stepWallet {
		return
	}
	// strip whitespace and brackets picked up from a paste
	addr := strings.Trim(strings.TrimSpace(m.input), "[]")
	if addr != "" {
		m.result.WalletAddress = addr
		m.result.WalletName = "default"
	}
}

func (m wizardModel) View() string {
	var s string

	switch m.step {
	case stepNetwork:
		s = renderMenu("Select Monad network:", m.choices, m.cursor)
	case stepTheme:
		s = renderMenu("Select colour theme:", m.choices, m.cursor)
	case stepAlgorithm:
		s = renderMenu("Select RPC algorithm:", m.choices, m.cursor)
	case stepWallet:
		s = StyleTitle.Render("Add a watch-only wallet (optional)") + "\n\n"
		s += StyleMeta.Render("Enter wallet address (or press Enter to skip):") + "\n"
		s += "> " + StyleAddress.Render(m.input) + "█\n"
	case stepDone:
		s = Success("Setup complete!") + "\n"
	}

	return StyleBorder.Render(s) + "\n"
}

func renderMenu(title string, items []string, cursor int) string {
	s := StyleTitle.Render(title) + "\n\n"
	for i, item := range items {
		icon := "  "
		style := lipgloss.NewStyle().Foreground(Current.Value)
		if i == cursor {
			icon = "▸ "
			style = StyleSelected
		}
		s += icon + style.Render(item) + "\n"
	}
	s += "\n" + StyleMeta.Render("↑/↓ navigate · Enter select · q quit")
	return s
}

// RunWizard launches the interactive setup wizard. A nil result means the
// user quit before finishing.
func RunWizard() (*WizardResult, error) {
	p := tea.NewProgram(initialWizard())
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("wizard error: %w", err)
	}
	m := final.(wizardModel)
	if m.cancelled {
		return nil, nil
	}
	result := m.result
	return &result, nil
}

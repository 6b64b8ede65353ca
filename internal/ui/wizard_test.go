package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func feed(m wizardModel, keys ...string) (wizardModel, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(keyMsg(k))
		m = next.(wizardModel)
	}
	return m, cmd
}

func TestWizardCollectsChoices(t *testing.T) {
	m, cmd := feed(initialWizard(),
		"down", "enter", // testnet
		"down", "enter", // light
		"enter",         // fastest
	)
	assert.Nil(t, cmd)
	assert.Equal(t, stepWallet, m.step)

	m, cmd = feed(m, "0", "x", "A", "b", "backspace", "enter")
	assert.NotNil(t, cmd)
	assert.Equal(t, stepDone, m.step)
	assert.Equal(t, WizardResult{
		Network:       "testnet",
		Theme:         "light",
		RPCAlgorithm:  "fastest",
		WalletAddress: "0xA",
		WalletName:    "default",
	}, m.result)
}

func TestWizardSkipsEmptyWallet(t *testing.T) {
	m, _ := feed(initialWizard(), "enter", "enter", "enter", "enter")
	assert.Equal(t, stepDone, m.step)
	assert.Empty(t, m.result.WalletAddress)
	assert.Equal(t, "mainnet", m.result.Network)
}

func TestWizardQuitCancels(t *testing.T) {
	m, cmd := feed(initialWizard(), "q")
	assert.NotNil(t, cmd)
	assert.True(t, m.cancelled)
}

func TestWizardTypesQInAddress(t *testing.T) {
	m, _ := feed(initialWizard(), "enter", "enter", "enter", "q", "j")
	assert.False(t, m.cancelled)
	assert.Equal(t, "qj", m.input)
}

func TestWizardView(t *testing.T) {
	m := initialWizard()
	assert.Contains(t, m.View(), "Select Monad network:")
	assert.Contains(t, m.View(), "testnet")
}

package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormattersKeepMessage(t *testing.T) {
	formatters := map[string]func(string) string{
		"Success":   Success,
		"Warn":      Warn,
		"Err":       Err,
		"Info":      Info,
		"Addr":      Addr,
		"Val":       Val,
		"Meta":      Meta,
		"ChainName": ChainName,
	}
	for name, fn := range formatters {
		t.Run(name, func(t *testing.T) {
			assert.Contains(t, fn("test"), "test")
		})
	}
}

func TestNoticePrefixes(t *testing.T) {
	assert.Contains(t, Success("done"), "✓")
	assert.Contains(t, Err("failed"), "✗")
	assert.Contains(t, Info("note"), "ℹ")
	assert.NotEqual(t, Info("same"), Warn("same"))
}

func TestTruncateAddr(t *testing.T) {
	assert.Equal(t, "", TruncateAddr(""))
	assert.Equal(t, "0x12345678", TruncateAddr("0x12345678"))
	assert.Equal(t, "0x1234…5678", TruncateAddr("0x1234567890abcdef1234567890abcdef12345678"))
}

func TestThemes(t *testing.T) {
	t.Cleanup(func() { ApplyTheme(Dark.Name) })

	ApplyTheme("light")
	assert.Equal(t, Light.Name, Current.Name)
	assert.Equal(t, "dark", ToggleTheme())
	assert.Equal(t, "light", ToggleTheme())

	ApplyTheme("neon")
	assert.Equal(t, Dark.Name, Current.Name)
}

func TestBanner(t *testing.T) {
	assert.Contains(t, Banner(), "monadvote")
}

package banner

import (
	"testclients/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

const ascii = `
 _            _       _ _            _
| |_ ___  ___| |_ ___| (_) ___ _ __ | |_ ___
| __/ _ \/ __| __/ __| | |/ _ \ '_ \| __/ __|
| ||  __/\__ \ || (__| | |  __/ | | | |_\__ \
 \__\___||___/\__\___|_|_|\___|_| |_|\__|___/`

// GetString renders the banner shown above the help text.
func GetString() string {
	style := lipgloss.DefaultRenderer().NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)
	return "\n" + style.Render(ascii) + "\n"
}

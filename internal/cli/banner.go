package cli

import "github.com/charmbracelet/lipgloss"

var bannerStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("62")).
	Bold(true)

const bannerArt = `
 _   _
| \ | | __ _ _   _ _ __ _   _
|  \| |/ _' | | | | '__| | | |
| |\  | (_| | |_| | |  | |_| |
|_| \_|\__,_|\__, |_|   \__,_|
             |___/
`

// Banner returns the lipgloss-styled startup banner printed by "nayru serve".
func Banner() string {
	return bannerStyle.Render(bannerArt)
}

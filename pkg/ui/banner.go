package ui

import (
	"fmt"

	"github.com/pterm/pterm"
)

// ASCII art for the lightkeeper logo.
const lightkeeperLogo = `
 _ _       _     _   _
| (_) __ _| |__ | |_| | ___   ___ _ __   ___ _ __
| | |/ _` + "`" + ` | '_ \| __| |/ / _ \ / _ \ '_ \ / _ \ '__|
| | | (_| | | | | |_|   <  __/|  __/ |_) |  __/ |
|_|_|\__, |_| |_|\__|_|\_\___(_)___| .__/ \___|_|
     |___/                        |_|
`

// PrintStartupBanner prints the full ASCII banner for 'serve'.
func PrintStartupBanner(version string) {
	fmt.Print(pterm.Cyan(lightkeeperLogo))

	subtitle := fmt.Sprintf(" host-fleet observability and remediation - %s", version)
	fmt.Println(pterm.NewStyle(pterm.FgWhite, pterm.Bold).Sprint(subtitle))
	fmt.Println()
}

// PrintCompactBanner prints a minimal one-line banner.
// Use this sparingly - most commands should not print any banner.
func PrintCompactBanner(version string) {
	fmt.Printf("%s %s\n",
		pterm.Cyan("lightkeeper"),
		pterm.Gray(fmt.Sprintf("v%s", version)),
	)
}

package cli

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/diillson/cloud-plan-estimator/pkg/version"
)

// displayWelcomeBanner exibe o banner de boas-vindas com informações de versão.
func displayWelcomeBanner(versionStr string) {
	banner := `
     ____  _               _____     _   _                 _
    |  _ \| | __ _ _ __   | ____|___| |_(_)_ __ ___   __ _| |_ ___  _ __
    | |_) | |/ _' | '_ \  |  _| / __| __| | '_ ' _ \ / _' | __/ _ \| '__|
    |  __/| | (_| | | | | | |___\__ \ |_| | | | | | | (_| | || (_) | |
    |_|   |_|\__,_|_| |_| |_____|___/\__|_|_| |_| |_|\__,_|\__\___/|_|
        `
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	blue := color.New(color.FgBlue, color.Bold).SprintFunc()

	fmt.Println(red(banner))

	// Obtem a string formatada da versão através do pacote version
	formattedVersion := version.FormatVersion()
	fmt.Println(blue(fmt.Sprintf("Cloud Plan Estimator (v%s)", formattedVersion)))
}

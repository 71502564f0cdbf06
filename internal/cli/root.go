// Package cli implements the EduGuardian command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "eduguardian",
	Short: "EduGuardian: study progression engine",
	Long: `EduGuardian tracks study progress for a note-sharing platform.
It awards XP and badges, keeps daily streaks and caps AI feature usage.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

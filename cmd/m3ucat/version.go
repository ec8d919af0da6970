package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("m3ucat: %s\n", version)
		if commit != "" {
			fmt.Printf("Commit: %s\n", commit)
		}
		if date != "" {
			fmt.Printf("Build date: %s\n", date)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

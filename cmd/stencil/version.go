package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the release version, overridable at link time.
var Version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the stencil version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("stencil", Version)
	},
}

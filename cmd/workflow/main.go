package main

import (
	"fmt"
	"os"

	"github.com/avivheldman/WorkFlow/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Run sequential and parallel task workflows",
}

func main() {
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/pbparthas/enki/internal/cli"
	"github.com/pbparthas/enki/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "enkid",
		Short: "Enki daemon and CLI",
		Long:  "Enki daemon for running the knowledge API server and managing API keys, decay passes, and snapshot exports",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.APIKeyCmd())
	rootCmd.AddCommand(admin.DecayCmd())
	rootCmd.AddCommand(admin.ExportCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

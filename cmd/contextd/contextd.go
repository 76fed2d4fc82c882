// Package contextdcmder
package contextdcmder

import (
	"github.com/spf13/cobra"

	servecmder "github.com/twinfold/contextd/cmd/contextd/serve"
	versioncmder "github.com/twinfold/contextd/cmd/version"
)

const contextdLongDesc string = `Contextd assembles conversation context for LLM calls.

Run services using:
  contextd serve       Run the context API server`

const contextdShortDesc string = "Contextd - Conversation Context Engine"

func NewContextdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contextd",
		Short: contextdShortDesc,
		Long:  contextdLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config", "", "Path to a config file")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

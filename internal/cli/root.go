package cli

import (
	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-catalog-go/config"
)

// Version is reported as the OpenTelemetry service version. It is set at build time.
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

func (o *RootOptions) load() (config.Config, error) {
	return config.Load(o.ConfigPath)
}

// NewRootCommand creates the root command of the librarycatalog CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "librarycatalog",
		Short: "Library catalog services",
		Long: `Library catalog services: the book creation saga with its author and genre
participants, the lending side book catalog projector and the CQRS read models.
All services talk to each other only through the message broker.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML configuration file")

	cmd.AddCommand(newServiceCommand(opts, roleCoordinator, "Run the book service: saga coordinator and validation responder"))
	cmd.AddCommand(newServiceCommand(opts, roleAuthor, "Run the author service participant"))
	cmd.AddCommand(newServiceCommand(opts, roleGenre, "Run the genre service participant"))
	cmd.AddCommand(newServiceCommand(opts, roleCatalogProjector, "Run the lending side book catalog projector"))
	cmd.AddCommand(newServiceCommand(opts, roleReadModels, "Run the book, author and genre read model projectors"))
	cmd.AddCommand(newAllInOneCommand(opts))
	cmd.AddCommand(newRequestBookCommand(opts))
	cmd.AddCommand(newValidateBookCommand(opts))

	return cmd
}

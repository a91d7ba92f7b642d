package cli

import (
	"github.com/spf13/cobra"

	"github.com/sebas5384/now-php-extra/pkg/buildinfo"
)

// RootCommand creates the root cobra command with all subcommands registered.
//
// The --verbose flag switches the CLI logger to debug level before any
// subcommand runs, and the logger is attached to the command context.
func (c *CLI) RootCommand() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   appName,
		Short: "now-php builds PHP projects into serverless functions",
		Long: `now-php installs a PHP project's composer dependencies, separates its
static assets and packages the rest, together with a PHP runtime bridge,
into a deployable lambda.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := LogInfo
			if verbose {
				level = LogDebug
			}
			c.SetLogLevel(level)
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	// Register all subcommands
	root.AddCommand(c.buildCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

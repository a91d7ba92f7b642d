package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sebas5384/now-php-extra/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the composer download cache",
	}
	cmd.PersistentFlags().StringVar(&dir, "cache-dir", "", "download cache directory (default ~/.cache/now-php)")

	cmd.AddCommand(c.cacheClearCommand(&dir))
	cmd.AddCommand(c.cachePathCommand(&dir))

	return cmd
}

// resolveCacheDir returns dir, or the default cache directory when empty.
func resolveCacheDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	d, err := cacheDir()
	if err != nil {
		return "", fmt.Errorf("get cache dir: %w", err)
	}
	return d, nil
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := resolveCacheDir(*dir)
			if err != nil {
				return err
			}
			if _, err := os.Stat(d); os.IsNotExist(err) {
				printInfo("Cache is empty")
				return nil
			}

			fc, err := cache.NewFileCache(d)
			if err != nil {
				return err
			}
			count, err := fc.(*cache.FileCache).Clear()
			if err != nil {
				return err
			}

			printSuccess("Cleared %d cached entries", count)
			printDetail("Directory: %s", d)
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := resolveCacheDir(*dir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), d)
			return nil
		},
	}
}

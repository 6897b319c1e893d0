package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"rgehrsitz/nest/internal/cache"
	"rgehrsitz/nest/internal/config"
)

func (c *cli) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the generated-content cache",
	}
	cmd.AddCommand(c.cacheCleanupCmd())
	cmd.AddCommand(c.cacheClearCmd())
	return cmd
}

func (c *cli) cacheCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired cache entries now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			if len(b.sweepers) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s backend expires entries itself; nothing to do.\n", c.cfg.Cache.Backend)
				return nil
			}

			names := make([]string, 0, len(b.sweepers))
			for name := range b.sweepers {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if err := b.sweepers[name].Cleanup(cmd.Context()); err != nil {
					return fmt.Errorf("cleanup %s: %w", name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: cleaned\n", name)
			}
			return nil
		},
	}
}

func (c *cli) cacheClearCmd() *cobra.Command {
	var babyID string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete cached content for one baby, or everything with the redis backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			switch c.cfg.Cache.Backend {
			case config.BackendSQLite, config.BackendPostgres:
				if babyID == "" {
					return fmt.Errorf("--baby is required for the %s backend", c.cfg.Cache.Backend)
				}
				if err := cache.NewDB(b.db, babyID, "", "").Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared cache for baby %s\n", babyID)
			case config.BackendRedis:
				if err := b.shared.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "cleared redis cache")
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "%s backend does not outlive the process; nothing to clear.\n", c.cfg.Cache.Backend)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&babyID, "baby", "", "Baby whose cached content is deleted")
	return cmd
}

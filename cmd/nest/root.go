package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rgehrsitz/nest/internal/config"
	"rgehrsitz/nest/internal/logging"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

// cli holds state shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "nest",
		Short:         "nest - content rules for infant-care cards",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "",
		"Config file (overrides NEST_CONFIG_PATH)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "",
		"Log level (overrides config and NEST_LOG_LEVEL)")

	root.AddCommand(c.serveCmd())
	root.AddCommand(c.pickCmd())
	root.AddCommand(c.explainCmd())
	root.AddCommand(c.validateCmd())
	root.AddCommand(c.cacheCmd())
	return root
}

func (c *cli) load() error {
	var err error
	if c.configPath != "" {
		c.cfg, err = config.LoadFromFile(c.configPath)
	} else {
		c.cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := c.cfg.Log.Level
	if c.logLevel != "" {
		level = c.logLevel
	}
	if err := logging.Setup(level, c.cfg.Log.Format); err != nil {
		return err
	}
	log.Debug().Str("backend", c.cfg.Cache.Backend).Msg("configuration loaded")
	return nil
}

// printJSON marshals v to indented JSON and writes it to w.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readInput reads a file, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

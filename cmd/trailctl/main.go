// Package main provides trailctl, the maintenance CLI for the trail database.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/info3g/hikstar-celery/internal/constants"
	"github.com/info3g/hikstar-celery/internal/database"
	"github.com/info3g/hikstar-celery/internal/log"
	"github.com/info3g/hikstar-celery/internal/store"
	"github.com/info3g/hikstar-celery/pkg/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli holds what every subcommand shares once the root pre-run has loaded
// the configuration
type cli struct {
	configFile string
	debug      bool

	config *config.ConfigData
	logger *zap.SugaredLogger
	client *database.Client
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "trailctl",
		Short: "trailctl maintains the trail database",
		Long: `trailctl runs schema migrations, prints the trail section graph,
recomputes activity metrics and merges duplicate trail sections.`,
		Version:           constants.Version,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.close()
		},
	}

	root.PersistentFlags().StringVar(&c.configFile, "config", "config.yaml", "path to the YAML configuration file")
	root.PersistentFlags().BoolVar(&c.debug, "debug", false, "turn on debugging output")

	root.AddCommand(newMigrateCmd(c))
	root.AddCommand(newGraphCmd(c))
	root.AddCommand(newRecomputeCmd(c))
	root.AddCommand(newDedupeCmd(c))

	return root
}

// setup loads the configuration and connects to the database
func (c *cli) setup(cmd *cobra.Command, args []string) error {
	if err := log.Init(c.debug); err != nil {
		return err
	}
	c.logger = log.GetSugaredLogger()

	filename, _ := filepath.Abs(c.configFile)
	cfg, err := config.NewYAMLProvider(filename).LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.config = cfg

	c.client = database.NewClient(cfg.Storage, c.logger)
	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

func (c *cli) close() error {
	log.Sync()
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// store migrates the schema and returns a store. Route geometry is left to the
// server; metric recomputes never change it.
func (c *cli) store(opts ...store.Option) (*store.Store, error) {
	if err := c.client.Migrate(); err != nil {
		return nil, err
	}
	return store.New(c.client.DB, c.logger, opts...), nil
}

package main

import (
	"context"

	"github.com/hupe1980/pointgrid"
	"github.com/hupe1980/pointgrid/resource"
	"github.com/hupe1980/pointgrid/tablestore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries what every command needs once configuration is loaded.
type app struct {
	v          *viper.Viper
	configFile string

	cfg    *Config
	logger *pointgrid.Logger
	rc     *resource.Controller
}

func (a *app) load() error {
	cfg, err := loadConfig(a.v, a.configFile)
	if err != nil {
		return err
	}
	logger, err := cfg.logger()
	if err != nil {
		return err
	}
	a.cfg, a.logger, a.rc = cfg, logger, cfg.resources()
	return nil
}

func (a *app) options() []pointgrid.Option {
	return a.cfg.options(a.logger, a.rc)
}

func (a *app) store(ctx context.Context) (*tablestore.Store, error) {
	return a.cfg.tableStore(ctx, a.logger, a.rc)
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "pointgrid",
		Short:         "Fixed-radius neighbor search over 3D point clouds",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.load()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default ./pointgrid.yaml)")
	pf.String("store", "", "snapshot store: local, minio or s3")
	pf.String("store-path", "", "directory of the local store")
	pf.String("bucket", "", "bucket of the minio or s3 store")
	pf.Int("workers", 0, "worker goroutines (0 = GOMAXPROCS)")
	pf.String("log-level", "", "debug, info, warn or error")
	_ = a.v.BindPFlag("store.kind", pf.Lookup("store"))
	_ = a.v.BindPFlag("store.path", pf.Lookup("store-path"))
	_ = a.v.BindPFlag("store.bucket", pf.Lookup("bucket"))
	_ = a.v.BindPFlag("workers", pf.Lookup("workers"))
	_ = a.v.BindPFlag("log.level", pf.Lookup("log-level"))

	root.AddCommand(newBuildCmd(a), newSearchCmd(a), newListCmd(a))
	return root
}

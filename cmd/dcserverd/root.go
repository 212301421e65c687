// Package main implements the dcserverd command: the Datacapsule storage
// server launcher.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/datacapsule-io/dcserver/internal/capsule"
	"github.com/datacapsule-io/dcserver/internal/dchash"
	"github.com/datacapsule-io/dcserver/internal/protocol"
	"github.com/datacapsule-io/dcserver/internal/server"
	"github.com/datacapsule-io/dcserver/internal/store"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	cfgConfigFile        = "config"
	cfgListenAddr        = "listen_addr"
	cfgDataDir           = "data_dir"
	cfgMerkleFanout      = "merkle_fanout"
	cfgHashCacheCapacity = "hash_cache_capacity"
	cfgSigAvoidMaxExtra  = "sig_avoid_max_extra_hashes"
	cfgLogLevel          = "log_level"
)

var (
	rootCmd = &cobra.Command{
		Use:     "dcserverd",
		Short:   "Datacapsule storage server",
		Version: "0.1.0",
		RunE:    runRoot,
	}

	rootFlags = flag.NewFlagSet("", flag.ContinueOnError)
	cfgFile   string
)

func init() {
	rootFlags.StringVar(&cfgFile, cfgConfigFile, "", "config file (yaml)")
	rootFlags.String(cfgListenAddr, "127.0.0.1:7420", "TCP listen address")
	rootFlags.String(cfgDataDir, "./data", "embedded store data directory")
	rootFlags.Int(cfgMerkleFanout, 16, "merkle tree fanout (>=2)")
	rootFlags.Int(cfgHashCacheCapacity, 1024, "per-session hash cache capacity")
	rootFlags.Int(cfgSigAvoidMaxExtra, 4, "signature-avoidance extra hash budget")
	rootFlags.String(cfgLogLevel, "info", "zap log level")
	_ = viper.BindPFlags(rootFlags)

	rootCmd.PersistentFlags().AddFlagSet(rootFlags)

	cobra.OnInitialize(func() {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
			if err := viper.ReadInConfig(); err != nil {
				fmt.Fprintf(os.Stderr, "dcserverd: failed to read config: %v\n", err)
				os.Exit(1)
			}
		}
	})
}

func newLogger() (*zap.SugaredLogger, error) {
	level, err := zap.ParseAtomicLevel(viper.GetString(cfgLogLevel))
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("dcserverd: failed to initialize logging: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	fanout := viper.GetInt(cfgMerkleFanout)
	if fanout < 2 {
		return fmt.Errorf("dcserverd: %s must be >= 2", cfgMerkleFanout)
	}

	st, err := store.Open(viper.GetString(cfgDataDir))
	if err != nil {
		return fmt.Errorf("dcserverd: failed to open store: %w", err)
	}
	defer st.Close() //nolint:errcheck

	registry := capsule.NewRegistry()
	if err := recoverCapsules(st, registry, log); err != nil {
		return fmt.Errorf("dcserverd: recovery pass failed: %w", err)
	}

	serverSigner, err := dchash.GenerateSigner()
	if err != nil {
		return fmt.Errorf("dcserverd: failed to generate server signing key: %w", err)
	}

	cfg := protocol.Config{
		MerkleFanout:           fanout,
		HashCacheCapacity:      viper.GetInt(cfgHashCacheCapacity),
		SigAvoidMaxExtraHashes: viper.GetInt(cfgSigAvoidMaxExtra),
	}
	dispatcher := protocol.NewDispatcher(cfg, st, registry, serverSigner)
	srv := server.New(dispatcher, log)

	addr := viper.GetString(cfgListenAddr)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("dcserverd: failed to listen on %s: %w", addr, err)
	}
	log.Infow("listening", "addr", addr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return srv.Serve(ctx, ln)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

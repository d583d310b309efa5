// Command ddrived is the daemon binary: it wires the chunk engine, the
// namespace manager, the scheduled backup runner and the reconciler
// together, and serves the operator-facing health/metrics endpoints. The
// business HTTP API consuming pkg/access is an external collaborator
// and lives outside this binary.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ddrive-io/ddrive/pkg/blob/discordblob"
	"github.com/ddrive-io/ddrive/pkg/chunkengine"
	"github.com/ddrive-io/ddrive/pkg/config"
	"github.com/ddrive-io/ddrive/pkg/httpd"
	"github.com/ddrive-io/ddrive/pkg/log"
	"github.com/ddrive-io/ddrive/pkg/metastore/sqlstore"
	"github.com/ddrive-io/ddrive/pkg/reconciler"
	"github.com/ddrive-io/ddrive/pkg/task"
)

var (
	cfgFile string
	logger  = log.New("ddrived")
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ddrived",
	Short: "ddrived runs the chunk-substrate drive's backend daemon",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reconcileCmd)
}

func loadConfig() (*daemonConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("ddrive")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg daemonConfig
	if err := config.Decode(v.AllSettings(), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// newRuntime wires the metadata store, blob substrate, chunk engine,
// reconciler and task runtime from a decoded config. Each caller (serve,
// reconcile) gets its own independent wiring, avoiding an in-memory
// singleton runtime.
func newRuntime(ctx context.Context, cfg *daemonConfig) (*sqlstore.Store, *chunkengine.Engine, *reconciler.Reconciler, *task.Runtime, error) {
	store, err := sqlstore.Open(cfg.Database.DSN)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open metadata store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("migrate metadata store: %w", err)
	}

	blobAdapter, err := discordblob.New(cfg.Discord.Token, cfg.Discord.ChannelID)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open blob substrate: %w", err)
	}

	engine := &chunkengine.Engine{
		Meta:    store,
		Blob:    blobAdapter,
		UserKey: userKeyResolver(store),
	}

	rec := &reconciler.Reconciler{Meta: store, Blob: blobAdapter}

	rt := &task.Runtime{Meta: store, Chunks: engine}

	return store, engine, rec, rt, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon: task scheduler, watchdog and ops HTTP endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store, _, rec, rt, err := newRuntime(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		rt.Start(ctx)
		defer rt.Stop(ctx)

		sched := task.NewScheduler(rt)
		if err := sched.Load(ctx); err != nil {
			return fmt.Errorf("load scheduled tasks: %w", err)
		}
		sched.Start()
		defer sched.Stop()

		stopReconcileLoop := runReconcileLoop(ctx, rec)
		defer stopReconcileLoop()

		srv := &http.Server{
			Addr: cfg.ListenAddr,
			Handler: httpd.New(func() error {
				return nil
			}, *logger.Zerolog()),
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error(ctx, fmt.Errorf("ops server exited unexpectedly: %w", err))
			}
		}()

		logger.Printf(ctx, "ddrived listening on %s", cfg.ListenAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		logger.Printf(ctx, "shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	},
}

// runReconcileLoop runs SweepOrphans and SweepRecycleBin on a fixed
// interval for the lifetime of the serve process.
func runReconcileLoop(ctx context.Context, rec *reconciler.Reconciler) func() {
	const interval = time.Hour
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				close(done)
				return
			case <-ticker.C:
				if _, err := rec.SweepOrphans(ctx); err != nil {
					logger.Error(ctx, fmt.Errorf("orphan sweep failed: %w", err))
				}
				if _, err := rec.SweepRecycleBin(ctx); err != nil {
					logger.Error(ctx, fmt.Errorf("recycle bin sweep failed: %w", err))
				}
			}
		}
	}()
	return func() { <-done }
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one orphan sweep and one recycle-bin retention sweep, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := context.Background()
		store, _, rec, _, err := newRuntime(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		orphans, err := rec.SweepOrphans(ctx)
		if err != nil {
			return fmt.Errorf("orphan sweep: %w", err)
		}
		fmt.Printf("orphans: scanned=%d deleted=%d errors=%d capped_early=%v\n",
			orphans.MessagesScanned, orphans.Deleted, orphans.Errors, orphans.CappedEarly)

		retention, err := rec.SweepRecycleBin(ctx)
		if err != nil {
			return fmt.Errorf("recycle bin sweep: %w", err)
		}
		fmt.Printf("recycle bin: purged=%d errors=%d\n", retention.FilesPurged, retention.Errors)
		return nil
	},
}

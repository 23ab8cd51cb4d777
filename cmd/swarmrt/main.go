package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skyblanket/swarmrt/pkg/config"
	"github.com/skyblanket/swarmrt/pkg/kernel"
	"github.com/skyblanket/swarmrt/pkg/log"
	"github.com/skyblanket/swarmrt/pkg/metrics"
	"github.com/skyblanket/swarmrt/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	flagConfig      string
	flagWorkers     int
	flagMaxProcs    int
	flagLogLevel    string
	flagJSONLog     bool
	flagMetricsAddr string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "swarmrt",
	Short: "SwarmRT - cooperative actor runtime",
	Long: `SwarmRT is an actor runtime in the BEAM tradition: cheap isolated
processes communicating by message passing, multiplexed across a small
pool of scheduler workers, with links, monitors, and timers.

This binary drives the runtime kernel directly for demos and
benchmarks.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"SwarmRT version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file")
	rootCmd.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "scheduler workers (0 = one per CPU)")
	rootCmd.PersistentFlags().IntVar(&flagMaxProcs, "max-processes", 0, "process slots in the arena")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLog, "log-json", false, "log as JSON")
	rootCmd.PersistentFlags().StringVar(&flagMetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address (empty = off)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(benchCmd)
}

func initLogging() {
	log.Init(log.Config{
		Level:      log.Level(flagLogLevel),
		JSONOutput: flagJSONLog,
	})
}

// loadConfig merges the config file (if any) with command-line flags.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if flagWorkers > 0 {
		cfg.Workers = flagWorkers
	}
	if flagMaxProcs > 0 {
		cfg.MaxProcesses = flagMaxProcs
	}
	return cfg, nil
}

// startRuntime initializes the kernel and, when requested, the metrics
// endpoint and collector.
func startRuntime() (*kernel.Runtime, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	rt, err := kernel.Init(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start runtime: %w", err)
	}

	var collector *metrics.Collector
	if flagMetricsAddr != "" {
		collector = metrics.NewCollector(rt, 5*time.Second)
		collector.Start()
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(flagMetricsAddr, mux); err != nil {
				log.Errorf("metrics endpoint failed", err)
			}
		}()
		log.WithComponent("metrics").Info().
			Str("addr", flagMetricsAddr).
			Msg("serving prometheus metrics")
	}

	stop := func() {
		if collector != nil {
			collector.Stop()
		}
		rt.Shutdown()
	}
	return rt, stop, nil
}

const (
	tagCall types.Tag = types.TagUserMin + iota
	tagCast
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the counter demo",
	Long: `Spawns a registered counter process, drives it with call/cast
messages from the outside, and prints runtime stats on exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, stop, err := startRuntime()
		if err != nil {
			return err
		}
		defer stop()

		counter, err := rt.Spawn(func(self *kernel.Proc, _ any) {
			count := 0
			for {
				payload, tag, ok := self.ReceiveAny(types.Forever)
				if !ok {
					return
				}
				switch tag {
				case tagCall:
					payload.(chan int) <- count
				case tagCast:
					count++
				}
			}
		}, nil)
		if err != nil {
			return fmt.Errorf("failed to spawn counter: %w", err)
		}
		if err := rt.Register("counter", counter); err != nil {
			return fmt.Errorf("failed to register counter: %w", err)
		}

		call := func() (int, error) {
			reply := make(chan int, 1)
			if err := rt.SendNamed("counter", tagCall, reply); err != nil {
				return 0, err
			}
			select {
			case n := <-reply:
				return n, nil
			case <-time.After(5 * time.Second):
				return 0, fmt.Errorf("counter call timed out")
			}
		}

		n, err := call()
		if err != nil {
			return err
		}
		fmt.Printf("counter starts at %d\n", n)

		for i := 0; i < 3; i++ {
			if err := rt.SendNamed("counter", tagCast, nil); err != nil {
				return err
			}
		}

		n, err = call()
		if err != nil {
			return err
		}
		fmt.Printf("counter after three increments: %d\n", n)

		rt.DumpStats(os.Stderr)
		return nil
	},
}

var (
	flagBenchSpawns int
	flagBenchWait   bool
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run the spawn-churn benchmark",
	Long: `Spawns short-lived processes in a tight monitored loop and reports
throughput plus arena conservation. Interrupt with Ctrl-C to stop
early; stats are printed either way.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, stop, err := startRuntime()
		if err != nil {
			return err
		}
		defer stop()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		done := make(chan int, 1)
		start := time.Now()
		_, err = rt.Spawn(func(self *kernel.Proc, _ any) {
			completed := 0
			defer func() { done <- completed }()
			for completed < flagBenchSpawns {
				child, err := self.Spawn(func(*kernel.Proc, any) {}, nil)
				if err != nil {
					return
				}
				if ref := self.Monitor(child); ref != 0 {
					if _, ok := self.ReceiveTagged(types.TagDown, types.Forever); !ok {
						return
					}
				}
				completed++
			}
		}, nil)
		if err != nil {
			return fmt.Errorf("failed to spawn bench driver: %w", err)
		}

		var completed int
		select {
		case completed = <-done:
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "interrupted")
		}

		elapsed := time.Since(start)

		if flagBenchWait {
			settleBy := time.Now().Add(5 * time.Second)
			for rt.LiveProcesses() > 0 && time.Now().Before(settleBy) {
				time.Sleep(time.Millisecond)
			}
		}

		if completed > 0 {
			fmt.Printf("spawned and reaped %d processes in %s (%.0f/s)\n",
				completed, elapsed.Round(time.Millisecond),
				float64(completed)/elapsed.Seconds())
		}

		rt.DumpStats(os.Stderr)
		return nil
	},
}

func init() {
	benchCmd.Flags().IntVar(&flagBenchSpawns, "spawns", 100000, "processes to spawn")
	benchCmd.Flags().BoolVar(&flagBenchWait, "settle", true, "wait for the arena to settle before printing stats")
}

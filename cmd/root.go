package cmd

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/open-science-stack/oss/oss"
)

var (
	logLevel       string        // Log verbosity level
	labConfigPath  string        // Optional YAML lab configuration
	metricsAddr    string        // Optional address to serve /metrics on
	completerDelay time.Duration // Delay before the auto-completer fulfils waits
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "oss",
	Short: "Orchestrator for automated liquid-handling experiments",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
		return nil
	},
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&labConfigPath, "lab-config", "", "YAML lab configuration file (defaults to the stock lab)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :2112)")
	rootCmd.PersistentFlags().DurationVar(&completerDelay, "completer-delay", 10*time.Millisecond, "simulated delay before incubations and measurements complete")
}

// loadLabConfig resolves the lab configuration for this invocation.
func loadLabConfig() (*oss.LabConfig, error) {
	if labConfigPath == "" {
		return oss.DefaultLabConfig(), nil
	}
	return oss.LoadLabConfig(labConfigPath)
}

// newOrchestrator wires an orchestrator with logging devices, a signal
// board that auto-completes waits (no hardware on the other end of this
// CLI), and a per-invocation metrics registry.
func newOrchestrator() (*oss.Orchestrator, error) {
	cfg, err := loadLabConfig()
	if err != nil {
		return nil, err
	}

	board := oss.NewSignalBoard()
	board.SetAutoComplete(completerDelay, syntheticReadings)

	reg := prometheus.NewRegistry()
	metrics := oss.NewMetrics(reg)
	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			logrus.Infof("Serving metrics on %s/metrics", metricsAddr)
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logrus.Errorf("metrics server: %v", err)
			}
		}()
	}

	return oss.New(cfg, oss.Deps{Signals: board, Metrics: metrics}), nil
}

// syntheticReadings produces a deterministic absorbance curve so replayed
// protocols get stable, plausible numbers. A plate payload carries one
// value per well; consumers truncate to what they asked for.
func syntheticReadings(key string) []float64 {
	readings := make([]float64, 96)
	for i := range readings {
		readings[i] = 0.05 + 0.01*float64(i)
	}
	return readings
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/common/version"
	"k8s.io/klog/v2"

	contractgardener "github.com/elevated-systems/contract-gardener/pkg/contractgardener"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/cache"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/common"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/config"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/ensemble"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/predictor"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/server"
	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/store"
)

func main() {
	var (
		configPath  string
		requestPath string
		showVersion bool
		port        int
	)

	flag.StringVar(&configPath, "config", "", "Path to YAML configuration file (defaults plus environment when empty)")
	flag.StringVar(&requestPath, "request", "", "Run once on a JSON request file ('-' for stdin) and print the recommendation")
	flag.BoolVar(&showVersion, "version", false, "Print version information and exit")
	flag.IntVar(&port, "port", 0, "HTTP port (overrides configuration when set)")

	klog.InitFlags(nil)
	flag.Parse()

	if showVersion {
		fmt.Println(version.Print("contract-optimizer"))
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		klog.ErrorS(err, "Failed to load configuration", "path", configPath)
		os.Exit(1)
	}
	if port > 0 {
		cfg.Observability.ListenPort = port
	}
	applyLogLevel(cfg.Observability.LogLevel)

	predictionCache := cache.New(cfg.Models.CacheTTL, cfg.Models.MaxCacheAge)
	defer closeCache(predictionCache)

	opts := []contractgardener.Option{
		contractgardener.WithPredictors(
			newPredictor(common.ModelSequence, cfg.Models.SequenceURL, cfg.Models, predictionCache),
			newPredictor(common.ModelTree, cfg.Models.TreeURL, cfg.Models, predictionCache),
		),
	}

	recommendationStore, err := store.New(cfg.Store)
	if err != nil {
		klog.ErrorS(err, "Failed to open recommendation store")
		os.Exit(1)
	}
	if recommendationStore != nil {
		defer recommendationStore.Close()
		if err := recommendationStore.Cleanup(cfg.Store.RetentionDays); err != nil {
			klog.ErrorS(err, "Failed to clean up old recommendations")
		}
		opts = append(opts, contractgardener.WithStore(recommendationStore))
	}

	advisor, err := contractgardener.New(cfg, opts...)
	if err != nil {
		klog.ErrorS(err, "Failed to create advisor")
		os.Exit(1)
	}

	if requestPath != "" {
		if err := runOnce(advisor, requestPath, os.Stdout); err != nil {
			klog.ErrorS(err, "Recommendation failed", "kind", common.ErrorKind(err))
			os.Exit(1)
		}
		return
	}

	if err := serve(advisor, cfg); err != nil {
		klog.ErrorS(err, "Server error")
		os.Exit(1)
	}
}

// applyLogLevel maps the configured level to klog verbosity unless -v was
// given on the command line
func applyLogLevel(level string) {
	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "v" {
			explicit = true
		}
	})
	if explicit {
		return
	}

	verbosity := map[string]string{"info": "0", "verbose": "2", "debug": "4", "trace": "6"}[level]
	if verbosity == "" {
		return
	}
	if err := flag.Set("v", verbosity); err != nil {
		klog.ErrorS(err, "Failed to apply log level", "level", level)
	}
}

// closeCache stops cache cleanup and logs how well the cache served the run
func closeCache(c *cache.Cache) {
	hits, misses := c.GetMetrics()
	klog.V(2).InfoS("Prediction cache stats", "hits", hits, "misses", misses, "entries", c.Size())
	c.Close()
}

// newPredictor returns nil when no model URL is configured, which the
// advisor treats as an unavailable model
func newPredictor(model, url string, cfg config.ModelsConfig, c *cache.Cache) ensemble.Predictor {
	if url == "" {
		klog.InfoS("No URL configured for predictive model, requests must carry its output", "model", model)
		return nil
	}
	var opts []predictor.ClientOption
	if c != nil {
		opts = append(opts, predictor.WithCache(c))
	}
	return predictor.NewClient(model, url, cfg, opts...)
}

// runOnce reads a request from path and writes the recommendation as JSON
func runOnce(advisor *contractgardener.Advisor, path string, out io.Writer) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read request: %v", err)
	}

	var req contractgardener.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("failed to unmarshal request: %v", err)
	}

	rec, err := advisor.Recommend(context.Background(), req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

func serve(advisor *contractgardener.Advisor, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		klog.InfoS("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Observability.ListenPort),
		Handler:      server.New(advisor, cfg.Observability.MetricsEnabled).Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	klog.InfoS("Starting contract optimizer",
		"port", cfg.Observability.ListenPort,
		"metricsEnabled", cfg.Observability.MetricsEnabled,
		"storeEnabled", cfg.Store.Enabled,
		"version", version.Version)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			cancel()
		}
	}()

	<-ctx.Done()

	klog.InfoS("Shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		klog.ErrorS(err, "Error shutting down server")
	}

	select {
	case err := <-errCh:
		return err
	default:
		klog.InfoS("Contract optimizer stopped")
		return nil
	}
}

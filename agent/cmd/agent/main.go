package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/obsidianstack/truststore-agent/agent/internal/config"
	"github.com/obsidianstack/truststore-agent/agent/internal/expiry"
	"github.com/obsidianstack/truststore-agent/agent/internal/metrics"
	"github.com/obsidianstack/truststore-agent/agent/internal/truststore"
)

const scrapeTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "register the gauges, print the exposition to stdout and exit")
	scrape := flag.String("scrape", "", "print the truststore gauges served at this URL and exit")
	flag.Parse()

	// stdout carries the exposition in -once and -scrape modes.
	logOut := os.Stdout
	if *once || *scrape != "" {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *scrape != "" {
		if err := runScrape(ctx, *scrape, os.Stdout); err != nil {
			slog.Error("scrape failed", "url", *scrape, "err", err)
			os.Exit(1)
		}
		return
	}

	slog.Info("truststore-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"listen_address", cfg.Agent.ListenAddress,
		"metrics_path", cfg.Agent.MetricsPath,
		"truststores", len(cfg.TrustStores),
	)

	reg := prometheus.NewRegistry()
	registered, err := registerStores(cfg.TrustStores, metrics.New(reg))
	if err != nil {
		slog.Error("failed to register truststore metrics", "kind", failureKind(err), "err", err)
		os.Exit(1)
	}

	if *once {
		if err := metrics.WriteText(os.Stdout, reg); err != nil {
			slog.Error("failed to write exposition", "err", err)
			os.Exit(1)
		}
		return
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if cfg.Agent.Watch {
		paths := []string{*configPath}
		for _, ts := range cfg.TrustStores {
			paths = append(paths, ts.Path)
		}
		onChange := changeHandler(*configPath, cfg.TrustStores, registered, reportChange)
		go func() {
			if err := config.Watch(ctx, paths, onChange); err != nil {
				slog.Error("file watcher stopped", "err", err)
			}
		}()
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Agent.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok\n")
	})

	httpSrv := &http.Server{
		Addr:              cfg.Agent.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("metrics endpoint listening", "address", cfg.Agent.ListenAddress, "path", cfg.Agent.MetricsPath)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("truststore-agent shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

// registerStores loads every configured store, then registers their gauges
// in config order. It returns the registered aliases keyed by store path.
// Nothing is registered when any store fails to load.
func registerStores(stores []config.TrustStoreConfig, reg expiry.Registry, opts ...expiry.Option) (map[string][]string, error) {
	loaded := make([][]truststore.Entry, len(stores))
	for i, ts := range stores {
		entries, err := truststore.LoadFormat(ts.Path, ts.Secret(), truststore.Format(ts.Type))
		if err != nil {
			return nil, err
		}
		loaded[i] = entries
	}

	registered := make(map[string][]string, len(stores))
	for i, ts := range stores {
		if err := expiry.Register(loaded[i], reg, opts...); err != nil {
			return nil, fmt.Errorf("%s: %w", ts.Path, err)
		}
		registered[ts.Path] = truststore.Aliases(loaded[i])
		slog.Info("truststore registered", "path", ts.Path, "entries", len(loaded[i]))
	}
	return registered, nil
}

// failureKind names the start-up failure class of err.
func failureKind(err error) string {
	switch {
	case errors.Is(err, truststore.ErrStoreNotFound):
		return "StoreNotFound"
	case errors.Is(err, truststore.ErrStoreDecryptionFailed):
		return "StoreDecryptionFailed"
	case errors.Is(err, truststore.ErrUnsupportedFormat):
		return "UnsupportedFormat"
	case errors.Is(err, expiry.ErrCertificateTypeMismatch):
		return "CertificateTypeMismatch"
	default:
		return "Registration"
	}
}

// reportChange reloads a store that changed on disk and logs how its aliases
// differ from the registered ones. Gauges are not touched.
func reportChange(ts config.TrustStoreConfig, registered []string) {
	entries, err := truststore.LoadFormat(ts.Path, ts.Secret(), truststore.Format(ts.Type))
	if err != nil {
		slog.Warn("truststore changed on disk but cannot be loaded",
			"path", ts.Path, "kind", failureKind(err), "err", err)
		return
	}
	added, removed := diffAliases(registered, truststore.Aliases(entries))
	if len(added) == 0 && len(removed) == 0 {
		slog.Info("truststore rewritten with the same aliases", "path", ts.Path)
		return
	}
	slog.Warn("truststore aliases changed; restart the agent to update gauges",
		"path", ts.Path, "added", added, "removed", removed)
}

// changeHandler routes a watcher callback to report for the store whose
// path matches. Paths are compared cleaned; the watcher reports them so.
func changeHandler(configPath string, stores []config.TrustStoreConfig, registered map[string][]string,
	report func(config.TrustStoreConfig, []string)) func(path string) {
	configPath = filepath.Clean(configPath)
	return func(path string) {
		path = filepath.Clean(path)
		if path == configPath {
			slog.Warn("config changed on disk; restart the agent to apply it", "path", path)
			return
		}
		for _, ts := range stores {
			if filepath.Clean(ts.Path) == path {
				report(ts, registered[ts.Path])
			}
		}
	}
}

// diffAliases returns the aliases only in after and only in before.
func diffAliases(before, after []string) (added, removed []string) {
	for _, a := range after {
		if !slices.Contains(before, a) {
			added = append(added, a)
		}
	}
	for _, b := range before {
		if !slices.Contains(after, b) {
			removed = append(removed, b)
		}
	}
	return added, removed
}

// runScrape fetches the exposition at url and prints every truststore gauge.
// It fails when the endpoint is unreachable or serves no truststore gauges.
func runScrape(ctx context.Context, url string, w io.Writer) error {
	client := &http.Client{Timeout: scrapeTimeout}
	mfs, err := metrics.Fetch(ctx, client, url)
	if err != nil {
		return err
	}
	samples := metrics.GaugeValues(mfs, metrics.MetricName(expiry.NamePrefix, ""))
	if len(samples) == 0 {
		return fmt.Errorf("no truststore gauges at %s", url)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tDAYS LEFT\tNOT AFTER")
	for _, s := range samples {
		fmt.Fprintf(tw, "%s\t%.0f\t%s\n", s.Name, s.Value, s.Labels[metrics.LabelName(expiry.TagDateEnd)])
	}
	return tw.Flush()
}

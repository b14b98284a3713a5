package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/repsync/internal/metrics"
	"github.com/roach88/repsync/internal/notify"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	PushURL     string
	MetricsAddr string
	MergeCart   bool

	// Source overrides the WebSocket source (for testing).
	Source notify.Source
}

// Notification is one delivered event as printed by watch.
type Notification struct {
	CorrelationKey string    `json:"correlation_key,omitempty"`
	Content        string    `json:"content"`
	ReceivedAt     time.Time `json:"received_at"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print workout review notifications",
		Long: `Subscribe to the push endpoint and print workout review notifications.

Duplicate notifications are suppressed. With --metrics-addr, Prometheus
metrics are served on /metrics while watching.

Examples:
  repsync watch --push-url ws://localhost:8080/ws
  repsync watch --metrics-addr :9100 --merge-cart --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.PushURL, "push-url", "", "WebSocket push endpoint (overrides config)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides config)")
	cmd.Flags().BoolVar(&opts.MergeCart, "merge-cart", false, "merge the guest cart before watching")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return newFormatter(opts.RootOptions, cmd).Fail(ExitCommandError, "failed to load config", err)
	}
	pushURL := cfg.PushURL
	if opts.PushURL != "" {
		pushURL = opts.PushURL
	}
	metricsAddr := cfg.MetricsAddr
	if opts.MetricsAddr != "" {
		metricsAddr = opts.MetricsAddr
	}

	source := opts.Source
	if source == nil {
		if pushURL == "" {
			return NewExitError(ExitCommandError, "no push URL: set push_url in the config or pass --push-url")
		}
		ws := notify.NewWebSocketSource(pushURL)
		if cfg.Token != "" {
			ws.Header = http.Header{"Authorization": []string{"Bearer " + cfg.Token}}
		}
		source = ws
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	parentCtx := commandContext(cmd)
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	s, err := openSession(ctx, opts.RootOptions, cmd, withSource(source), withMetrics(m))
	if err != nil {
		return err
	}
	defer s.Close()

	go func() {
		select {
		case sig := <-sigChan:
			s.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if metricsAddr != "" {
		stop, err := serveMetrics(metricsAddr, reg, s)
		if err != nil {
			return s.formatter.Fail(ExitCommandError, "failed to serve metrics", err)
		}
		defer stop()
	}

	if opts.MergeCart {
		outcome := s.syncer.MergeCartOnce(ctx)
		s.formatter.VerboseLog("cart %s", outcome)
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	unsubscribe := s.syncer.SubscribeNotifications(func(ev notify.Event) {
		n := Notification{CorrelationKey: ev.CorrelationKey, Content: ev.Content, ReceivedAt: ev.ReceivedAt}
		if n.ReceivedAt.IsZero() {
			n.ReceivedAt = time.Now().UTC()
		}
		if opts.Format == "json" {
			_ = enc.Encode(CLIResponse{Status: "ok", Data: n})
			return
		}
		if n.CorrelationKey != "" {
			fmt.Fprintf(out, "[%s] %s\n", n.CorrelationKey, n.Content)
			return
		}
		fmt.Fprintln(out, n.Content)
	})
	defer unsubscribe()

	s.formatter.VerboseLog("watching %s", pushURL)
	if err := s.syncer.RunNotifications(ctx); err != nil {
		return s.formatter.Fail(ExitFailure, "notification stream failed", err)
	}
	return nil
}

// serveMetrics starts the metrics endpoint and returns its shutdown func.
func serveMetrics(addr string, reg *prometheus.Registry, s *session) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", "error", err)
		}
	}()
	s.formatter.VerboseLog("metrics on http://%s/metrics", ln.Addr())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		<-done
	}, nil
}

package cli

import (
	"context"
	"log/slog"
	"net/http/cookiejar"

	"github.com/spf13/cobra"

	"github.com/roach88/repsync/internal/config"
	"github.com/roach88/repsync/internal/engine"
	"github.com/roach88/repsync/internal/metrics"
	"github.com/roach88/repsync/internal/notify"
	"github.com/roach88/repsync/internal/remote"
	"github.com/roach88/repsync/internal/store"
	"github.com/roach88/repsync/internal/syncer"
)

// session is one command's connection to the backend.
type session struct {
	cfg       config.Config
	syncer    *syncer.Syncer
	journal   *store.Store
	formatter *OutputFormatter
	logger    *slog.Logger
}

type sessionOption func(*sessionSettings)

type sessionSettings struct {
	source  notify.Source
	metrics *metrics.Metrics
}

func withSource(src notify.Source) sessionOption {
	return func(s *sessionSettings) { s.source = src }
}

func withMetrics(m *metrics.Metrics) sessionOption {
	return func(s *sessionSettings) { s.metrics = m }
}

// openSession loads the configuration, opens the journal when one is
// configured and builds the syncer. Close must be called when done.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command, sopts ...sessionOption) (*session, error) {
	var settings sessionSettings
	for _, o := range sopts {
		o(&settings)
	}

	formatter := newFormatter(opts, cmd)
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, "failed to load config", err)
	}

	logger := newLogger(opts, cmd.ErrOrStderr())
	s := &session{
		cfg:       cfg,
		logger:    logger,
		formatter: formatter,
	}

	engineOpts := []engine.EngineOption{}
	if cfg.JournalPath != "" {
		st, err := store.Open(cfg.JournalPath)
		if err != nil {
			return nil, formatter.FailCode(ExitCommandError, ErrCodeJournal, "failed to open journal", err)
		}
		last, err := st.LastSeq(ctx)
		if err != nil {
			st.Close()
			return nil, formatter.FailCode(ExitCommandError, ErrCodeJournal, "failed to read journal", err)
		}
		s.journal = st
		engineOpts = append(engineOpts, engine.WithJournal(st), engine.WithClock(engine.NewClockAt(last)))
		s.formatter.VerboseLog("journal %s at seq %d", cfg.JournalPath, last)
	}

	// Cookies set while loading routines carry the guest cart identity that
	// merge-cart sends back.
	jar, _ := cookiejar.New(nil)
	client := remote.New(cfg.BaseURL,
		remote.WithToken(cfg.Token),
		remote.WithCookieJar(jar),
		remote.WithTimeout(cfg.Timeout.Std()),
	)

	syncOpts := []syncer.Option{
		syncer.WithLogger(logger),
		syncer.WithEngineOptions(engineOpts...),
		syncer.WithMetrics(settings.metrics),
		syncer.WithDeduplicator(notify.NewDeduplicator(
			notify.WithWindows(cfg.Dedup.KeyWindow.Std(), cfg.Dedup.ContentWindow.Std()),
		)),
	}
	if settings.source != nil {
		syncOpts = append(syncOpts, syncer.WithSource(settings.source))
	}
	s.syncer = syncer.New(client, syncOpts...)

	return s, nil
}

// Close releases the journal.
func (s *session) Close() {
	if s.journal == nil {
		return
	}
	if err := s.journal.Close(); err != nil {
		s.logger.Error("error closing journal", "error", err)
	}
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

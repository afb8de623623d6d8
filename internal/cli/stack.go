// Package cli wires configuration into the engine, its stores and its
// frontends for the waypoint command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/internal/config"
	"github.com/aretw0/waypoint/internal/logging"
	fileAdapter "github.com/aretw0/waypoint/pkg/adapters/file"
	"github.com/aretw0/waypoint/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/waypoint/pkg/adapters/redis"
	"github.com/aretw0/waypoint/pkg/adapters/sqlite"
	"github.com/aretw0/waypoint/pkg/persistence/middleware"
	"github.com/aretw0/waypoint/pkg/ports"
)

// KeyPrefix namespaces every redis key written by waypoint.
const KeyPrefix = "waypoint:"

// Stack holds the shared pieces every command needs.
type Stack struct {
	Config   config.Config
	Logger   *slog.Logger
	Loader   ports.DefinitionLoader
	Store    ports.ProgressStore
	Recorder ports.CompletionRecorder
	// Locker is set for the redis backend.
	Locker ports.DistributedLocker

	closers []func() error
}

// NewLogger builds the slog logger described by cfg.
func NewLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewWithFormat(w, level, cfg.Format), nil
}

// Build opens the tour source and the configured progress backend.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Stack, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	loader, err := waypoint.OpenLoader(cfg.Tour)
	if err != nil {
		return nil, err
	}
	s := &Stack{Config: cfg, Logger: logger, Loader: loader}
	if err := s.openStore(ctx); err != nil {
		return nil, err
	}
	logger.Debug("stack ready", "tour", cfg.Tour, "store", cfg.Store.Backend)
	return s, nil
}

func (s *Stack) openStore(ctx context.Context) error {
	sc := s.Config.Store
	switch sc.Backend {
	case config.StoreMemory, "":
		s.Store = memory.NewStore()
		s.Recorder = memory.NewRecorder()
	case config.StoreFile:
		st := fileAdapter.New(sc.Path)
		s.Store, s.Recorder = st, st
	case config.StoreSQLite:
		st, err := sqlite.Open(sc.SQLiteDSN)
		if err != nil {
			return err
		}
		s.Store, s.Recorder = st, st
		s.closers = append(s.closers, st.Close)
	case config.StoreRedis:
		client := backend.NewClient(&backend.Options{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPassword,
			DB:       sc.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("connect to redis at %s: %w", sc.RedisAddr, err)
		}
		st := redisAdapter.NewFromClient(client, redisAdapter.WithTTL(time.Duration(sc.TTL)), redisAdapter.WithPrefix(KeyPrefix))
		s.Store, s.Recorder = st, st
		s.Locker = redisAdapter.NewLocker(client, KeyPrefix)
		s.closers = append(s.closers, st.Close)
	default:
		return fmt.Errorf("unknown store backend %q", sc.Backend)
	}

	if sc.PseudonymKey != "" {
		p, err := middleware.NewPseudonymizer([]byte(sc.PseudonymKey))
		if err != nil {
			return err
		}
		s.Store = p.Store(s.Store)
		s.Recorder = p.Recorder(s.Recorder)
	}
	return nil
}

// EngineOptions translates the engine settings and shared stores into
// facade options.
func (s *Stack) EngineOptions() []waypoint.Option {
	ec := s.Config.Engine
	delays := make([]time.Duration, len(ec.CleanupDelays))
	for i, d := range ec.CleanupDelays {
		delays[i] = time.Duration(d)
	}
	return []waypoint.Option{
		waypoint.WithLogger(s.Logger),
		waypoint.WithLoader(s.Loader),
		waypoint.WithProgressStore(s.Store),
		waypoint.WithCompletionRecorder(s.Recorder),
		waypoint.WithElementTimeout(time.Duration(ec.ElementTimeout)),
		waypoint.WithVisibilityInterval(time.Duration(ec.VisibilityInterval)),
		waypoint.WithCompletionDelay(time.Duration(ec.CompletionDelay)),
		waypoint.WithCleanupDelays(delays),
		waypoint.WithProtectedElements(ec.Protected),
		waypoint.WithExpansionSelectors(ec.ExpansionControl, ec.ExpandedIndicator),
		waypoint.WithTargetValidation(time.Duration(ec.ValidationTimeout), ec.StrictValidation),
	}
}

// Watch forwards source changes when the loader supports it.
func (s *Stack) Watch(ctx context.Context) (<-chan string, error) {
	if w, ok := s.Loader.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, errors.New("tour source does not support watching")
}

// Close releases the backend connections.
func (s *Stack) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

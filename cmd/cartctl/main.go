// Command cartctl drives a shopper cart from the terminal. Guest carts live in
// a local slot; after login the cart API is authoritative.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Pritech-Vior/PritechVior-sub000/internal/cart"
	"github.com/Pritech-Vior/PritechVior-sub000/internal/config"
	"github.com/Pritech-Vior/PritechVior-sub000/internal/logging"
	"github.com/Pritech-Vior/PritechVior-sub000/internal/remote"
	"github.com/Pritech-Vior/PritechVior-sub000/internal/slot"
)

const signedInMarker = "signed-in"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// session is everything a subcommand needs. It is built once per process.
type session struct {
	cfg     *config.Config
	logger  *zap.Logger
	slot    slot.Slot
	closers []func() error
	client  *remote.Client
	manager *cart.Manager
}

func (s *session) markerKey() string {
	return s.cfg.Client.Slot.Key + ":session"
}

// remember persists whether the next process should start signed in.
func (s *session) remember(ctx context.Context, signedIn bool) error {
	value := ""
	if signedIn {
		value = signedInMarker
	}
	if err := s.slot.Set(ctx, s.markerKey(), value); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	return nil
}

func (s *session) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn("close failed", zap.Error(err))
		}
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
		token      string
		sess       *session
	)

	root := &cobra.Command{
		Use:           "cartctl",
		Short:         "Inspect and edit a VioRmart shopping cart",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if token != "" {
				cfg.Client.Token = token
			}
			// Results go to stdout; logs stay at warn unless --verbose.
			logger, err := logging.New(config.LoggingConfig{Level: "warn", Format: "console"}, verbose)
			if err != nil {
				return err
			}
			sess, err = openSession(cmd.Context(), cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return err
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if sess != nil {
				sess.close()
				_ = sess.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "viormart.yaml", "path to the YAML config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&token, "token", "", "bearer token for the cart API (overrides config)")

	current := func() *session { return sess }
	root.AddCommand(
		newShowCmd(current),
		newAddCmd(current),
		newUpdateCmd(current),
		newRemoveCmd(current),
		newClearCmd(current),
		newLoginCmd(current),
		newLogoutCmd(current),
		newSummaryCmd(current),
	)
	return root
}

func openSession(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*session, error) {
	s := &session{cfg: cfg, logger: logger}

	switch cfg.Client.Slot.Driver {
	case config.SlotSQLite:
		store, err := slot.OpenSQLite(cfg.Client.Slot.Path)
		if err != nil {
			return nil, err
		}
		if err := store.Init(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		s.slot = store
		s.closers = append(s.closers, store.Close)
	case config.SlotRedis:
		store, err := slot.OpenRedis(cfg.Client.Slot.RedisURL, "viormart:")
		if err != nil {
			return nil, err
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		s.slot = store
		s.closers = append(s.closers, store.Close)
	default:
		s.slot = slot.NewMemory()
	}

	client, err := remote.NewClient(cfg.Client.BaseURL, remote.StaticToken(cfg.Client.Token),
		remote.WithHTTPClient(&http.Client{Timeout: cfg.Client.Timeout}),
		remote.WithLogger(logger.Named("remote")))
	if err != nil {
		s.close()
		return nil, err
	}
	s.client = client

	local := cart.NewLocalStore(s.slot,
		cart.WithSlotKey(cfg.Client.Slot.Key),
		cart.WithLocalLogger(logger.Named("local")))
	opts := []cart.Option{cart.WithLogger(logger.Named("cart"))}
	marker, _, err := s.slot.Get(ctx, s.markerKey())
	if err != nil {
		logger.Warn("session state unreadable, starting as guest", zap.Error(err))
	}
	if marker == signedInMarker {
		opts = append(opts, cart.StartSignedIn())
	}
	s.manager = cart.NewManager(local, client, opts...)
	s.manager.Refresh(ctx)
	return s, nil
}

var errNoSession = errors.New("cart session is not open")

func requireSession(current func() *session) (*session, error) {
	s := current()
	if s == nil {
		return nil, errNoSession
	}
	return s, nil
}

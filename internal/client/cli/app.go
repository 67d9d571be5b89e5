package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	hubapi "github.com/iudanet/packsync/internal/client/api"
	"github.com/iudanet/packsync/internal/client/auth"
	"github.com/iudanet/packsync/internal/client/data"
	"github.com/iudanet/packsync/internal/client/iocli"
	"github.com/iudanet/packsync/internal/client/localstore"
	"github.com/iudanet/packsync/internal/client/netstatus"
	"github.com/iudanet/packsync/internal/client/querycache"
	"github.com/iudanet/packsync/internal/client/storage"
	"github.com/iudanet/packsync/internal/client/storage/boltdb"
	"github.com/iudanet/packsync/internal/client/sync"
	"github.com/iudanet/packsync/internal/client/transport"
	"github.com/iudanet/packsync/internal/clock"
	"github.com/iudanet/packsync/internal/config"
	"github.com/iudanet/packsync/pkg/api"
)

// pollInterval частота проверки прогресса доставки
const pollInterval = 50 * time.Millisecond

// App собирает клиентский стек для одной команды
type App struct {
	cfg       *config.ClientConfig
	logger    *slog.Logger
	io        iocli.IO
	store     *localstore.Store
	session   *auth.Session
	auth      *storage.AuthData
	api       *hubapi.Client
	transport *transport.Transport
	network   *netstatus.Monitor
	cache     *querycache.Cache
	engine    *sync.Engine
	data      data.Service
	timeout   time.Duration
	closers   []func()
}

// openApp loads config, opens the local store and wires the sync stack.
// With requireSession a missing or expired login is an error.
func openApp(cmd *cobra.Command, opts *RootOptions, requireSession bool) (*App, error) {
	ctx := cmd.Context()

	cfg, logger, store, err := openLocal(cmd, opts)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		io:      opts.IO,
		store:   store,
		session: auth.NewSession(store),
		cache:   querycache.New(),
		timeout: opts.Timeout,
	}

	session, err := a.session.Current(ctx)
	switch {
	case err == nil:
		a.auth = session
		if session.ServerURL != "" {
			cfg.ServerURL = session.ServerURL
		}
	case requireSession:
		_ = store.Close()
		return nil, err
	}
	if opts.ServerURL != "" {
		cfg.ServerURL = opts.ServerURL
	}
	if err := cfg.Validate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	wsURL, err := cfg.WebsocketURL()
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var token string
	if a.auth != nil {
		token = a.auth.AccessToken
	}
	a.api = hubapi.NewClient(cfg.ServerURL)
	a.api.SetToken(token)

	a.transport = transport.New(&transport.WebsocketDialer{URL: wsURL, Token: token}, clock.Real{}, logger, transport.DefaultOptions())
	a.network = netstatus.NewMonitor(a.api, clock.Real{}, logger, cfg.ProbeInterval)
	a.closers = append(a.closers, a.network.Subscribe(func(online bool) {
		if online {
			a.transport.NetworkOnline()
		} else {
			a.transport.NetworkOffline()
		}
	}))

	a.engine = sync.New(store, a.transport, a.network, a.cache, clock.Real{}, logger, sync.Options{
		PeriodicInterval: cfg.SyncInterval,
		Snapshots:        a.api,
	})
	a.data = data.NewService(a.engine, store, a.cache, logger)

	if opts.Offline || a.auth == nil {
		a.network.Set(false)
	} else {
		a.network.Check()
	}
	a.engine.Start(ctx)

	return a, nil
}

// openLocal loads config and opens the local store without touching the hub.
func openLocal(cmd *cobra.Command, opts *RootOptions) (*config.ClientConfig, *slog.Logger, *localstore.Store, error) {
	cfg, err := config.LoadClientConfig(opts.ConfigPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	logger := config.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	store := localstore.New(func(ctx context.Context) (storage.Backend, error) {
		return boltdb.New(ctx, cfg.DBPath)
	}, logger)
	if err := store.Initialize(cmd.Context()); err != nil {
		logger.Warn("Local database unavailable, changes will not survive this run", "path", cfg.DBPath, "error", err)
	}
	return cfg, logger, store, nil
}

// Close stops background work and closes the local store.
func (a *App) Close() {
	a.engine.Destroy()
	a.engine.Wait()
	a.network.Stop()
	for _, c := range a.closers {
		c()
	}
	a.transport.Disconnect()
	if err := a.store.Close(); err != nil {
		a.logger.Error("Failed to close local database", "error", err)
	}
}

// deliveryReport итог доставки операций одного списка
type deliveryReport struct {
	ListID    int64
	Confirmed int
	Rejected  int
	Pending   int
	Offline   bool
}

var errAccessDenied = errors.New("hub denied access to list")

// deliver joins listID, lets the engine replay its pending operations and
// waits until the hub has confirmed them or the timeout passes. Operations
// that were not confirmed stay queued for the next run.
func (a *App) deliver(ctx context.Context, listID int64) (deliveryReport, error) {
	report := deliveryReport{ListID: listID}
	want := a.store.CountPending(ctx, listID)

	if a.auth == nil || !a.network.IsOnline() {
		report.Pending = want
		report.Offline = true
		return report, nil
	}

	deviceID, err := a.store.DeviceID(ctx)
	if err != nil {
		return report, err
	}
	prefix := deviceID + ":"

	var confirmed, rejected atomic.Int64
	unsubUpdates := a.transport.Subscribe(api.MessageTypeUpdate, func(env api.Envelope) {
		var msg api.UpdateMessage
		if env.Decode(&msg) == nil && msg.PackingListID == listID && strings.HasPrefix(msg.OperationID, prefix) {
			confirmed.Add(1)
		}
	})
	defer unsubUpdates()
	unsubErrors := a.transport.Subscribe(api.MessageTypeError, func(env api.Envelope) {
		var msg api.ErrorMessage
		if env.Decode(&msg) == nil && msg.PackingListID == listID && a.transport.IsJoined(listID) {
			a.io.Printf("Hub rejected a change in list %d: %s\n", listID, msg.Message)
			rejected.Add(1)
		}
	})
	defer unsubErrors()

	a.transport.Connect(listID, a.auth.UserID)

	waitCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

wait:
	for {
		if a.transport.Denied(listID) {
			report.Pending = a.store.CountPending(ctx, listID)
			return report, fmt.Errorf("%w %d", errAccessDenied, listID)
		}
		if a.transport.IsJoined(listID) {
			if a.store.CountPending(ctx, listID) > 0 {
				// пропускается, если проход уже идет; повторим на следующем тике
				a.engine.AttemptSync(waitCtx)
			} else if confirmed.Load()+rejected.Load() >= int64(want) {
				break wait
			}
		}

		select {
		case <-waitCtx.Done():
			break wait
		case <-ticker.C:
		}
	}

	a.engine.Wait()
	report.Confirmed = min(int(confirmed.Load()), want)
	report.Rejected = int(rejected.Load())
	report.Pending = a.store.CountPending(ctx, listID)
	return report, nil
}

func (a *App) printReport(r deliveryReport) {
	switch {
	case r.Offline && r.Pending > 0:
		a.io.Printf("Offline: %d change(s) for list %d queued\n", r.Pending, r.ListID)
	case r.Offline:
	case r.Pending > 0 || r.Rejected > 0:
		a.io.Printf("List %d: %d confirmed, %d rejected, %d still pending\n", r.ListID, r.Confirmed, r.Rejected, r.Pending)
	default:
		a.io.Printf("List %d: %d change(s) confirmed by hub\n", r.ListID, r.Confirmed)
	}
}

// pendingLists returns lists with unsynced operations in first-enqueued order.
func (a *App) pendingLists(ctx context.Context) []int64 {
	var lists []int64
	seen := make(map[int64]bool)
	for _, op := range a.store.ListUnsyncedOperations(ctx, storage.AllLists) {
		if !seen[op.ListID] {
			seen[op.ListID] = true
			lists = append(lists, op.ListID)
		}
	}
	return lists
}

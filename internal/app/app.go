// Package app wires the stores, services, sweeper and HTTP router together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	account "auction-server/internal/accountService"
	bidding "auction-server/internal/biddingService"
	"auction-server/internal/config"
	"auction-server/internal/events"
	"auction-server/internal/mq"
	"auction-server/internal/repository"
	"auction-server/internal/server"
	"auction-server/internal/session"
	"auction-server/internal/storage"
	"auction-server/internal/sweeper"
	"auction-server/utils"
)

const (
	UsersFile = "users.dat"
	ItemsFile = "items.dat"

	shutdownTimeout = 10 * time.Second
)

// App owns every long-lived resource of a running server.
type App struct {
	cfg      config.Config
	dirLock  *storage.DirLock
	users    *repository.UserStore
	items    *repository.ItemStore
	bus      *events.Bus
	audit    *events.AuditLog
	broker   mq.Backend
	sessions *session.Table

	closeOnce sync.Once
	closeErr  error

	Accounts *account.AccountService
	Auctions *bidding.BiddingService
	Sweeper  *sweeper.Sweeper
	Router   *gin.Engine
}

// New opens the data directory exclusively and builds the application. The
// caller must Close it.
func New(cfg config.Config) (*App, error) {
	a := &App{cfg: cfg}
	if err := a.open(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) open() error {
	cfg := a.cfg

	var err error
	if a.dirLock, err = storage.LockDir(cfg.DataDir, true); err != nil {
		return err
	}
	if a.users, err = repository.OpenUserStore(filepath.Join(cfg.DataDir, UsersFile), cfg.BcryptCost); err != nil {
		return fmt.Errorf("open user store: %w", err)
	}
	if a.items, err = repository.OpenItemStore(filepath.Join(cfg.DataDir, ItemsFile), cfg.Auction.BidHistoryCapacity); err != nil {
		return fmt.Errorf("open item store: %w", err)
	}

	a.bus = events.NewBus()
	if cfg.LogFile != "" {
		if a.audit, err = events.OpenAuditLog(cfg.LogFile); err != nil {
			return err
		}
		a.audit.Attach(a.bus)
	}
	if cfg.AMQP.Enabled() {
		client, err := mq.NewRabbitMQClient(cfg.AMQP.URL, cfg.AMQP.Durable)
		if err != nil {
			// the broker is an optional observer; run without it
			utils.Warn("RabbitMQ unavailable, events will not be forwarded", map[string]any{"error": err.Error()})
		} else {
			a.broker = client
			mq.NewForwarder(client, cfg.AMQP.Queue).Attach(a.bus)
		}
	}

	a.sessions = session.NewTable(cfg.SessionCapacity)
	a.Accounts = account.NewAccountService(a.users, a.sessions, a.bus, cfg.SessionTTL)
	a.Auctions = bidding.NewBiddingService(a.items, a.users, a.bus, bidding.Options{
		ListLimit:        cfg.Auction.ListLimit,
		MyBidsLimit:      cfg.Auction.MyBidsLimit,
		HistoryLimit:     cfg.Auction.HistoryLimit,
		WithdrawCooldown: cfg.Auction.WithdrawCooldown,
	})
	a.Sweeper = sweeper.New(a.Auctions, cfg.Auction.SweepInterval)

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	a.Router = server.SetupRouter(server.Deps{
		Accounts:  a.Accounts,
		Auctions:  a.Auctions,
		Sessions:  a.sessions,
		JWTSecret: cfg.JWTSecret,
	})
	return nil
}

// Run serves HTTP and runs the sweeper until ctx is cancelled, then shuts
// down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         a.cfg.Addr(),
		Handler:      a.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		a.Sweeper.Run(sweepCtx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		utils.Info("Starting auction server", map[string]any{"addr": srv.Addr, "data_dir": a.cfg.DataDir})
		serveErr <- srv.ListenAndServe()
	}()

	var err error
	select {
	case <-ctx.Done():
		utils.Info("Shutdown signal received, draining requests", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err = srv.Shutdown(shutdownCtx)
		cancel()
	case err = <-serveErr:
	}

	stopSweep()
	<-sweepDone

	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}

// Close waits for in-flight event handlers and releases every resource.
// Later calls return the first call's result.
func (a *App) Close() error {
	a.closeOnce.Do(func() { a.closeErr = a.close() })
	return a.closeErr
}

func (a *App) close() error {
	if a.bus != nil {
		a.bus.Wait()
	}

	var errs []error
	if a.broker != nil {
		errs = append(errs, a.broker.Close())
	}
	if a.audit != nil {
		errs = append(errs, a.audit.Close())
	}
	if a.items != nil {
		errs = append(errs, a.items.Close())
	}
	if a.users != nil {
		errs = append(errs, a.users.Close())
	}
	if a.dirLock != nil {
		errs = append(errs, a.dirLock.Release())
	}
	return errors.Join(errs...)
}

// ActiveSessions reports the number of live sessions.
func (a *App) ActiveSessions() int {
	return a.sessions.Active()
}

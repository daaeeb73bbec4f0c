package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/app"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/config"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/proxy"
	"github.com/gin-gonic/gin"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}
}

// run owns the app so every exit path closes the store and background work.
func run(ctx context.Context, cfg *config.Config) error {
	a, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.Logger.Error(ctx, "close failed", "error", err)
		}
	}()

	if ok, err := a.Session.Resume(ctx); err != nil {
		a.Logger.Warn(ctx, "stored session could not be resumed", "error", err)
	} else if ok {
		a.Logger.Info(ctx, "stored session resumed")
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	s, err := proxy.New(cfg.APIBaseURL, proxy.Deps{
		Session:   a.Session,
		Activity:  a.Feed,
		Transport: a.Factory.Transport(),
		Gatherer:  a.Registry,
		Logger:    a.Logger,
	})
	if err != nil {
		return err
	}

	if err := s.Run(ctx, cfg.ProxyListen); err != nil {
		a.Logger.Error(ctx, "proxy stopped", "error", err)
		return err
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/survival-check/internal/handlers"
	"github.com/example/survival-check/internal/session"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the prediction API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	logger := a.logger

	client, err := a.scorerClient()
	if err != nil {
		return err
	}

	opts := a.cfg.SessionOptions()
	opts.Logger = logger

	var mirror *session.Mirror
	if a.cfg.Redis.Addr != "" {
		redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
		defer redisCancel()
		redisClient, err := initRedis(redisCtx, a.cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		mirror = session.NewMirror(session.NewRedisCache(redisClient), a.cfg.Redis.TTL, logger)
		defer mirror.Close()
		opts.Observers = append(opts.Observers, mirror.Observe)
		logger.Info("mirroring session state to redis", zap.String("addr", a.cfg.Redis.Addr))
	}

	manager := session.NewManager(client, opts)
	defer manager.Close()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	handlers.RegisterRoutes(r, handlers.Dependencies{
		Scorer:   client,
		Sessions: manager,
		Mirror:   mirror,
		Strict:   a.cfg.Validation.Strict,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("prediction API listening",
		zap.String("addr", server.Addr),
		zap.String("scorer", client.BaseURL()),
		zap.Bool("strict", a.cfg.Validation.Strict),
	)
	return serveHTTPServer(server, a.cfg.Server.ShutdownTimeout, logger)
}

func initRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}

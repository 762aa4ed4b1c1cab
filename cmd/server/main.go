package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/relaymesh/chatrelay/internal/chat"
	"github.com/relaymesh/chatrelay/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfg := server.NewConfigFromEnv()
	manager := chat.NewManager(logger, cfg.HistorySize)

	tcpServer := server.NewTCPServer(cfg, manager, logger)
	webServer := server.NewServer(cfg, manager, logger)
	httpServer := server.CreateServer(cfg.HTTPAddr, webServer.Routes())

	errs := make(chan error, 2)
	go func() {
		errs <- tcpServer.ListenAndServe()
	}()
	go func() {
		errs <- server.StartServer(httpServer, logger)
	}()

	logger.Info("chat relay started",
		zap.String("tcp_addr", cfg.TCPAddr),
		zap.String("http_addr", cfg.HTTPAddr))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutdown signal received", zap.Stringer("signal", sig))
	case err := <-errs:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
		}
	}

	_ = server.ShutdownServer(httpServer, shutdownTimeout, logger)
	_ = webServer.Shutdown(shutdownTimeout)
	_ = tcpServer.Shutdown(shutdownTimeout)
	logger.Info("shutdown complete")
}

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"catalogdb/pkg/api"
	"catalogdb/pkg/catalog"
	"catalogdb/pkg/config"
	"catalogdb/pkg/loader"
	"catalogdb/pkg/network"
)

// main 是课程目录服务器的入口：加载配置、目录，然后启动 HTTP 与 TCP 两个前端。
func main() {
	configPath := pflag.String("config", "", "path to catalog.yaml")
	addr := pflag.String("addr", "", "HTTP listen address (overrides server.addr)")
	tcpAddr := pflag.String("tcp-addr", "", "TCP listen address (overrides server.tcp_addr)")
	catalogPath := pflag.String("catalog", "", "course file or .db to load at startup")
	engine := pflag.String("engine", "", "index engine (bst or btree)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *tcpAddr != "" {
		cfg.Server.TCPAddr = *tcpAddr
	}
	if *catalogPath != "" {
		cfg.Catalog.Path = *catalogPath
	}
	if *engine != "" {
		cfg.Catalog.Engine = *engine
	}
	if err := cfg.Catalog.Validate(); err != nil {
		logrus.Fatalf("Invalid catalog settings: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logrus.Fatalf("Invalid log level %q: %v", cfg.Log.Level, err)
	}
	logrus.SetLevel(level)
	log := logrus.WithField("component", "server")

	c := catalog.New(cfg.Catalog, afero.NewOsFs())
	defer c.Close()

	if _, err := c.Load(""); err != nil {
		if errors.Is(err, loader.ErrInvalidRecord) || errors.Is(err, loader.ErrDanglingPrerequisite) {
			log.WithError(err).Warn("Serving partially valid catalog")
		} else {
			// the catalog can still be loaded later through /api/load
			log.WithError(err).Error("Initial load failed")
		}
	}

	httpServer := api.NewServer(c, cfg.Storage.Path)
	tcpServer := network.NewTCPServer(c)

	errCh := make(chan error, 2)
	go func() { errCh <- tcpServer.Start(cfg.Server.TCPAddr) }()
	go func() { errCh <- httpServer.Start(cfg.Server.Addr) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("Received %v, shutting down...", sig)
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("Listener failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("HTTP shutdown")
	}
	if err := tcpServer.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("TCP shutdown")
	}
	log.Info("Bye")
}

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

	"github.com/hashicorp/go-hclog"

	"roulette/internal/config"
	"roulette/internal/events"
	"roulette/internal/network"
	"roulette/internal/services/cluster"
	"roulette/internal/session"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "roulette-server: %v\n", err)
		os.Exit(1)
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "roulette-server",
		Level: hclog.LevelFromString(cfg.LogLevel),
	})

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, logger hclog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := cluster.NewHealthAggregator()

	var publisher events.Publisher = events.Nop{}
	if cfg.NatsURL != "" {
		nc, err := events.ConnectNATS(cfg.NatsURL, logger)
		if err != nil {
			return err
		}
		health.AddCheck("nats", nc.Healthy)
		publisher = nc
	}
	defer publisher.Close()

	manager := session.NewManager(session.Config{
		ChamberCapacity:     cfg.ChamberCapacity,
		LiveRounds:          cfg.LiveRounds,
		MaxLife:             cfg.MaxLife,
		TurnTimeout:         cfg.TurnTimeout,
		ReloadOnEmpty:       cfg.ReloadOnEmpty,
		ForfeitOnDisconnect: cfg.ForfeitOnDisconnect,
	}, publisher, logger)
	manager.OnDone(func(id string, res session.Result, err error) {
		logger.Debug("session done", "session_id", id, "reason", res.Reason, "error", err)
	})
	matchmaker := session.NewMatchmaker(manager.Pair, logger)
	lobby := session.NewLobby(matchmaker, cfg.HandshakeTimeout, cfg.MaxLineLength, logger)
	server := network.NewServer(lobby, logger)

	health.AddStat("active_sessions", func() any { return manager.Active() })
	health.AddStat("queued_players", func() any { return matchmaker.Waiting() })

	ln, err := net.Listen("tcp", cfg.TCPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.TCPAddr, err)
	}
	errc := make(chan error, 3)
	matchmakerDone := make(chan struct{})
	go func() {
		matchmaker.Run(ctx)
		close(matchmakerDone)
	}()
	go func() { errc <- server.ServeTCP(ctx, ln) }()

	var servers []*http.Server
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", health.Handler())
	if cfg.WebSocketAddr == cfg.HealthAddr && cfg.WebSocketAddr != "" {
		healthMux.Handle("/ws", server.WebSocketHandler(ctx))
	} else if cfg.WebSocketAddr != "" {
		wsMux := http.NewServeMux()
		wsMux.Handle("/ws", server.WebSocketHandler(ctx))
		servers = append(servers, serveHTTP(cfg.WebSocketAddr, wsMux, "websocket", logger, errc))
	}
	if cfg.HealthAddr != "" {
		servers = append(servers, serveHTTP(cfg.HealthAddr, healthMux, "health", logger, errc))
	}

	if cfg.ConsulAddr != "" {
		consul, err := cluster.NewConsulClient(cfg.ConsulAddr, logger.Named("cluster"))
		if err != nil {
			return err
		}
		deregister, err := cluster.Register(consul, cluster.Registration{
			Name:      cfg.ServiceName,
			Addr:      cfg.TCPAddr,
			HealthURL: healthURL(cfg.HealthAddr),
		}, logger.Named("cluster"))
		if err != nil {
			return err
		}
		defer func() {
			if err := deregister(); err != nil {
				logger.Warn("consul deregistration failed", "error", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errc:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, s := range servers {
		s.Shutdown(shutdownCtx)
	}
	// No session can start once the matchmaker has returned.
	<-matchmakerDone
	manager.Wait()
	return err
}

func serveHTTP(addr string, h http.Handler, name string, logger hclog.Logger, errc chan<- error) *http.Server {
	s := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("listening", "transport", name, "addr", addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("%s server: %w", name, err)
		}
	}()
	return s
}

// healthURL is the address the Consul agent polls, built from this host's name.
func healthURL(addr string) string {
	if addr == "" {
		return ""
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return ""
	}
	host := os.Getenv("HOSTNAME")
	if host == "" {
		host, _ = os.Hostname()
	}
	return fmt.Sprintf("http://%s/health", net.JoinHostPort(host, port))
}

// simple-bot joins matches and fires at random until the configured number
// of games has been played. It is used for smoke and load testing.
package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"roulette/internal/client"
	"roulette/internal/config"
)

func main() {
	cfg, err := config.LoadBot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "simple-bot: %v\n", err)
		os.Exit(1)
	}
	name := cfg.PlayerName
	if name == "" {
		name = "bot-" + uuid.NewString()[:8]
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "simple-bot",
		Level: hclog.LevelFromString(cfg.LogLevel),
	}).With("bot", name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dial, err := client.Dialer(cfg.Transport, client.StaticAddr(cfg.ServerAddr))
	if err != nil {
		logger.Error("bad transport", "error", err)
		os.Exit(1)
	}
	c := client.New(dial, client.Options{RetryInterval: cfg.RetryInterval, MaxRetries: cfg.MaxRetries}, logger)
	defer c.Close()

	if err := c.Connect(ctx); err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}

	wins := 0
	for game := 1; cfg.Games == 0 || game <= cfg.Games; game++ {
		if game > 1 {
			if err := c.ReturnToLobby(ctx); err != nil {
				logger.Error("reconnect failed", "error", err)
				os.Exit(1)
			}
		}
		won, err := playOne(ctx, c, name, cfg.ThinkTime)
		if err != nil {
			logger.Error("game failed", "game", game, "error", err)
			os.Exit(1)
		}
		if won {
			wins++
		}
		logger.Info("game over", "game", game, "won", won, "wins", wins)
	}
}

func playOne(ctx context.Context, c *client.Client, name string, think time.Duration) (bool, error) {
	if err := c.RequestMatch(name); err != nil {
		return false, err
	}
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case u, ok := <-c.Updates():
			if !ok {
				return false, fmt.Errorf("connection closed")
			}
			c.Handle(u)
		}

		v := c.View()
		switch {
		case v.State == client.StateDisconnected:
			return false, fmt.Errorf("%s", v.Message)
		case v.State == client.StateInEndScreen:
			return v.Won, nil
		case v.Turn:
			if think > 0 {
				time.Sleep(rand.N(think))
			}
			var err error
			if rand.IntN(2) == 0 {
				err = c.ShootOpponent()
			} else {
				err = c.ShootSelf()
			}
			if err != nil {
				return false, err
			}
		}
	}
}

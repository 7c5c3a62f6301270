package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"

	"roulette/internal/client"
	"roulette/internal/config"
	"roulette/internal/services/cluster"
)

const (
	optShootOpponent = "Shoot opponent"
	optShootSelf     = "Shoot yourself"
	optPlayAgain     = "Return to lobby"
	optQuit          = "Quit"
)

var errQuit = errors.New("quit")

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "roulette-client",
		Level:  hclog.LevelFromString(cfg.LogLevel),
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dial, err := dialer(cfg, logger)
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	c := client.New(dial, client.Options{
		RetryInterval: cfg.RetryInterval,
		MaxRetries:    cfg.MaxRetries,
	}, logger)
	defer c.Close()

	pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("Roulette", pterm.FgRed.ToStyle()),
	).Render()

	if err := play(ctx, c, cfg.PlayerName); err != nil && !errors.Is(err, errQuit) && !errors.Is(err, context.Canceled) {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func dialer(cfg config.Client, logger hclog.Logger) (client.DialFunc, error) {
	if cfg.ConsulAddr == "" {
		return client.Dialer(cfg.Transport, client.StaticAddr(cfg.ServerAddr))
	}
	consul, err := cluster.NewConsulClient(cfg.ConsulAddr, logger.Named("cluster"))
	if err != nil {
		return nil, err
	}
	return client.Dialer(cfg.Transport, func() (string, error) {
		return cluster.DiscoverAnyHealthy(consul, cfg.ServiceName)
	})
}

func play(ctx context.Context, c *client.Client, name string) error {
	spinner, _ := pterm.DefaultSpinner.Start(c.View().Message)
	if err := c.Connect(ctx); err != nil {
		spinner.Fail(c.View().Message)
		return err
	}
	spinner.Success("Connected")

	for {
		if err := lobby(c, name); err != nil {
			return err
		}
		if err := match(ctx, c); err != nil {
			return err
		}

		choice, _ := pterm.DefaultInteractiveSelect.WithOptions([]string{optPlayAgain, optQuit}).Show()
		if choice != optPlayAgain {
			return errQuit
		}
		spinner, _ := pterm.DefaultSpinner.Start("Reconnecting...")
		if err := c.ReturnToLobby(ctx); err != nil {
			spinner.Fail(c.View().Message)
			return err
		}
		spinner.Success("Connected")
	}
}

func lobby(c *client.Client, name string) error {
	pterm.Info.Println(c.View().Message)
	for {
		if strings.TrimSpace(name) == "" {
			name, _ = pterm.DefaultInteractiveTextInput.WithDefaultText("Name").Show()
		}
		err := c.RequestMatch(name)
		if errors.Is(err, client.ErrEmptyName) {
			pterm.Warning.Println("Name must not be empty")
			continue
		}
		return err
	}
}

// match runs from the matchmaking queue to the end screen.
func match(ctx context.Context, c *client.Client) error {
	spinner, _ := pterm.DefaultSpinner.Start(c.View().Message)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-c.Updates():
			if !ok {
				return fmt.Errorf("connection closed")
			}
			prev := c.View().State
			c.Handle(u)
			v := c.View()

			if prev == client.StateMatching && v.State == client.StateInGame {
				spinner.Success("Opponent found")
			}
			switch v.State {
			case client.StateDisconnected:
				if prev == client.StateMatching {
					spinner.Fail(v.Message)
				}
				return errors.New(v.Message)
			case client.StateInEndScreen:
				render(v)
				return nil
			}
			if v.Turn {
				render(v)
				if err := turn(c); err != nil {
					return err
				}
			}
		}
	}
}

func turn(c *client.Client) error {
	choice, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{optShootOpponent, optShootSelf, optQuit}).
		Show("Your turn")
	switch choice {
	case optShootOpponent:
		return c.ShootOpponent()
	case optShootSelf:
		return c.ShootSelf()
	default:
		return errQuit
	}
}

func render(v client.View) {
	box := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	title := pterm.LightYellow("|" + v.Name + "|")
	if v.State == client.StateInEndScreen {
		title = pterm.LightRed("|GAME OVER|")
		if v.Won {
			title = pterm.LightGreen("|GAME OVER|")
		}
	}
	body := pterm.Sprintfln("Your life: %d", v.Life) +
		pterm.Sprintfln("-> %s", v.Chamber()) +
		v.Message
	box.WithTitle(title).WithTitleTopCenter().Println(body)
}

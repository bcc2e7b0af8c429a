package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/Masterminds/semver/v3"
	"github.com/hearthbook/go-ledger-api/server"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "ledger-server",
		Usage: "Run a fake ledger API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "address to listen on",
				Value:   "localhost:3001",
				EnvVars: []string{"LEDGER_SERVER_ADDR"},
			},
			&cli.BoolFlag{
				Name:    "tls",
				Usage:   "serve over TLS with a self-signed certificate",
				EnvVars: []string{"LEDGER_SERVER_TLS"},
			},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "enable password protection with this password",
				EnvVars: []string{"LEDGER_SERVER_PASSWORD"},
			},
			&cli.DurationFlag{
				Name:    "auth-life",
				Usage:   "lifetime of access tokens",
				Value:   server.DefaultAuthLife,
				EnvVars: []string{"LEDGER_SERVER_AUTH_LIFE"},
			},
			&cli.DurationFlag{
				Name:    "refresh-life",
				Usage:   "lifetime of refresh cookies",
				Value:   server.DefaultRefreshLife,
				EnvVars: []string{"LEDGER_SERVER_REFRESH_LIFE"},
			},
			&cli.StringFlag{
				Name:  "min-app-version",
				Usage: "reject clients older than this version",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("Server failed")
	}
}

func run(c *cli.Context) error {
	listener, err := net.Listen("tcp", c.String("addr"))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	opts := []server.Option{
		server.WithListener(listener),
		server.WithTLS(c.Bool("tls")),
		server.WithLogger(os.Stdout),
		server.WithAuthLife(c.Duration("auth-life")),
		server.WithRefreshLife(c.Duration("refresh-life")),
	}

	if v := c.String("min-app-version"); v != "" {
		version, err := semver.NewVersion(v)
		if err != nil {
			return fmt.Errorf("invalid min app version: %w", err)
		}

		opts = append(opts, server.WithMinAppVersion(version))
	}

	s := server.New(opts...)
	defer s.Close()

	if password := c.String("password"); password != "" {
		if err := s.SetPassword(password); err != nil {
			return err
		}
	}

	logrus.WithFields(logrus.Fields{
		"url":       s.GetHostURL(),
		"protected": s.PasswordRequired(),
	}).Info("Server is listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh

	return nil
}

// Command arcade is a headless client for both games. It talks to the peer
// broker of the server binary and reads moves from standard input.
//
//	arcade ox host | ox join <code> | ox local [-bot]
//	arcade dino host | dino join <code>
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"

	"github.com/rocketscienceinc/arcade-sync/internal/config"
	"github.com/rocketscienceinc/arcade-sync/internal/peer/wsnet"
	"github.com/rocketscienceinc/arcade-sync/internal/session"
)

var errUsage = errors.New("usage: arcade [-config file] [-name name] ox host|join <code>|local [-bot] | dino host|join <code>")

// app - what every subcommand needs.
type app struct {
	logger *slog.Logger
	conf   config.Client
	in     <-chan string
	out    io.Writer
}

func main() {
	configPath := flag.String("config", "config.yml", "path to the config file")
	name := flag.String("name", "", "player name")
	color := flag.String("color", "", "player colour in the dodge game")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *name != "" {
		conf.Client.Name = *name
	}
	if *color != "" {
		conf.Client.Color = *color
	}

	logger, sync := initLogger(conf.LogLevel)
	defer sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := &app{
		logger: logger,
		conf:   conf.Client,
		in:     readLines(os.Stdin),
		out:    os.Stdout,
	}

	if err = a.run(ctx, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (that *app) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}

	switch args[0] {
	case "ox":
		return that.runOX(ctx, args[1:])
	case "dino":
		return that.runDino(ctx, args[1:])
	default:
		return errUsage
	}
}

func (that *app) sessionOptions(prefix string) session.Options {
	return session.Options{
		Prefix:         prefix,
		ConnectTimeout: that.conf.ConnectTimeout,
		MaxAttempts:    that.conf.MaxCodeAttempts,
		Logger:         that.logger,
	}
}

func (that *app) transport() *wsnet.Transport {
	return wsnet.New(that.logger, that.conf.BrokerURL)
}

func (that *app) printf(format string, args ...any) {
	fmt.Fprintf(that.out, format, args...)
}

// forward - a subscriber that hands events to the play loop and gives up
// once the loop is gone, so the publisher is never stuck behind it.
func forward[T any](ctx context.Context, events chan T) func(T) {
	return func(event T) {
		select {
		case events <- event:
		case <-ctx.Done():
		}
	}
}

// readLines - standard input as a channel, closed at EOF.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	return lines
}

// initialize logger; the terminal belongs to the game, so logs go to stderr.
func initLogger(logLevel string) (*slog.Logger, func()) {
	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.OutputPaths = []string{"stderr"}

	level, err := zap.ParseAtomicLevel(logLevel)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	zapConfig.Level = level

	zapLogger, err := zapConfig.Build()
	if err != nil {
		panic(fmt.Errorf("failed to build logger: %w", err))
	}

	return slog.New(zapslog.NewHandler(zapLogger.Core(), nil)), func() { _ = zapLogger.Sync() }
}

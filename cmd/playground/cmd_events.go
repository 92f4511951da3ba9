package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/felixgeelhaar/playground/internal/config"
	"github.com/felixgeelhaar/playground/internal/domain"
	"github.com/felixgeelhaar/playground/internal/events"
)

// cmdEvents drains progress events from the configured queue and prints them.
// It stops after count events when a count is given, otherwise on Ctrl-C.
func cmdEvents(args []string) error {
	count := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid event count %q", args[0])
		}
		count = n
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Events.AMQPURL == "" {
		return errors.New("events are disabled (set events.amqp_url or PLAYGROUND_AMQP_URL)")
	}

	conn, err := events.Dial(cfg.Events.AMQPURL, cfg.Events.Queue)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fmt.Fprintf(os.Stderr, "Listening on %s (Ctrl-C to stop)\n", conn.Queue())
	seen := 0
	err = events.Consume(ctx, conn, "playground-cli", func(_ context.Context, env events.Envelope) error {
		printEvent(os.Stdout, env)
		seen++
		if count > 0 && seen >= count {
			cancel()
		}
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printEvent(w io.Writer, env events.Envelope) {
	ts := env.OccurredAt.Local().Format("15:04:05")
	switch env.Type {
	case domain.EventLevelCompleted:
		levels := make([]string, len(env.CompletedLevels))
		for i, n := range env.CompletedLevels {
			levels[i] = strconv.Itoa(n)
		}
		fmt.Fprintf(w, "%s  level %d completed  (levels %s, total %d%%)\n",
			ts, env.Level, strings.Join(levels, ","), env.TotalProgress)
	default:
		fmt.Fprintf(w, "%s  %s  level %d\n", ts, env.Type, env.Level)
	}
}

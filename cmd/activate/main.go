// Command activate sends one activation task to the coordinator's worker and,
// by default, waits until the toggle has been delivered. It is meant to be
// bound to an OS-level keyboard shortcut.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quickask/internal/app"
	"quickask/internal/httputil"
	"quickask/internal/message"
	"quickask/internal/queue"
)

type options struct {
	event    message.ActivationEvent
	attempts int
	backoff  time.Duration
	wait     bool
	timeout  time.Duration
}

func parseFlags(args []string, out io.Writer) (options, error) {
	fs := flag.NewFlagSet("activate", flag.ContinueOnError)
	fs.SetOutput(out)

	source := fs.String("source", message.SourceCommand, "event source: command or icon")
	command := fs.String("command", message.CommandOpen, "command name for command events")
	tab := fs.Int("tab", 0, "tab id for icon events (0 resolves the active tab)")
	attempts := fs.Int("attempts", 3, "publish attempts")
	backoff := fs.Duration("backoff", 200*time.Millisecond, "base publish backoff")
	wait := fs.Bool("wait", true, "wait for the coordinator to finish the activation")
	timeout := fs.Duration("timeout", 20*time.Second, "bound on publishing and waiting")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	ev := message.ActivationEvent{Source: *source}
	if *source == message.SourceCommand {
		ev.Command = *command
	}
	if *tab > 0 {
		ev.Tab = &message.Tab{ID: *tab}
	}
	if err := httputil.Validator.Struct(&ev); err != nil {
		return options{}, fmt.Errorf("invalid event: %w", err)
	}
	return options{event: ev, attempts: *attempts, backoff: *backoff, wait: *wait, timeout: *timeout}, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		slog.Default().Error("invalid arguments", "err", err)
		os.Exit(2)
	}

	deps, err := app.BuildPublisher()
	if err != nil {
		slog.Default().Error("failed to build dependencies", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := publish(ctx, deps.Queue, deps.Log, opts); err != nil {
		deps.Log.Error("publish failed", "err", err)
		os.Exit(1)
	}
}

func publish(ctx context.Context, q queue.Queue, log *slog.Logger, opts options) error {
	task, err := queue.NewActivationTask(opts.event)
	if err != nil {
		return err
	}
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	if !opts.wait {
		if err := queue.EnqueueWithRetry(ctx, q, task, opts.attempts, opts.backoff); err != nil {
			return fmt.Errorf("enqueue activation: %w", err)
		}
		log.Info("activation published", "task_id", task.ID, "source", opts.event.Source)
		return nil
	}

	if err := queue.RequestWithRetry(ctx, q, task, opts.attempts, opts.backoff); err != nil {
		return fmt.Errorf("activation: %w", err)
	}
	log.Info("activation completed", "task_id", task.ID, "source", opts.event.Source)
	return nil
}

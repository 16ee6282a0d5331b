package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"quick-tools-overlay/src/singleinstance"
	"quick-tools-overlay/src/tools"
)

type stressOptions struct {
	n        int
	mode     string
	deadline time.Duration
}

type counts struct {
	ok, absent, failed int32
	elapsed            time.Duration
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-bridge",
		Short:         "Stress test the resident overlay bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			send, err := sender(opts.mode)
			if err != nil {
				return err
			}
			c := runWithOptions(*opts, send)
			fmt.Fprintf(cmd.OutOrStdout(), "launched=%d ok=%d absent=%d err=%d elapsed=%s\n", opts.n, c.ok, c.absent, c.failed, c.elapsed)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to launch")
	cmd.Flags().StringVar(&opts.mode, "mode", "config", "config|ping: send the default tool list or only ping")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")

	return cmd
}

// sendFunc performs one client exchange.
type sendFunc func(ctx context.Context) (delegated bool, err error)

func sender(mode string) (sendFunc, error) {
	switch mode {
	case "config":
		return func(ctx context.Context) (bool, error) {
			return singleinstance.NewClient().SendConfig(ctx, tools.DefaultJSON)
		}, nil
	case "ping":
		return func(ctx context.Context) (bool, error) {
			_, ok := singleinstance.NewClient().DetectResidentPort(ctx)
			return ok, nil
		}, nil
	}
	return nil, fmt.Errorf("unknown mode %q", mode)
}

func runWithOptions(opts stressOptions, send sendFunc) counts {
	var wg sync.WaitGroup
	var c counts

	start := time.Now()
	for i := 0; i < opts.n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), opts.deadline)
			defer cancel()
			delegated, err := send(ctx)
			switch {
			case err != nil:
				atomic.AddInt32(&c.failed, 1)
			case delegated:
				atomic.AddInt32(&c.ok, 1)
			default:
				atomic.AddInt32(&c.absent, 1)
			}
		}()
	}
	wg.Wait()
	c.elapsed = time.Since(start)
	return c
}

package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/launchpad/internal/engine"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Salt string // when set, pending randomness is answered after every command
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Execute a stream of commands read from stdin",
		Long: `Start the single-writer engine loop and feed it commands, one JSON
object per line:

  {"action":"mint","caller":"admin","args":{"asset":"USDC","to":"alice","amount":"1000000"}}
  {"campaign":"sale","action":"buy_tokens","caller":"alice","args":{"amount":"1000000"}}

Each outcome is written to stdout as one JSON line, in input order.
Rejections are reported and the stream continues. With --salt every
pending randomness request is answered after each command.

Example:
  launchpad serve --db ./launchpad.db < commands.jsonl`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Salt, "salt", "", "answer randomness requests with values derived from this salt")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	s, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	loopDone := make(chan error, 1)
	go func() { loopDone <- s.engine.Run(ctx) }()

	enc := json.NewEncoder(cmd.OutOrStdout())
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var stats struct{ ok, rejected int }

	for line := 1; scanner.Scan(); line++ {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var c engine.Command
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			_ = enc.Encode(CLIResponse{Status: "error", Error: &CLIError{Code: "E_INPUT", Message: fmt.Sprintf("line %d: %v", line, err)}})
			continue
		}

		done, ok := s.engine.Submit(ctx, c)
		if !ok {
			break
		}
		var res engine.Result
		select {
		case res = <-done:
		case <-ctx.Done():
			return stopServe(s, loopDone)
		}

		if res.Err != nil {
			stats.rejected++
			_ = enc.Encode(CLIResponse{
				Status:  "error",
				Error:   &CLIError{Code: engine.Code(res.Err), Message: res.Err.Error()},
				TraceID: res.Outcome.ActionID,
			})
		} else {
			stats.ok++
			_ = enc.Encode(CLIResponse{Status: "ok", Data: res.Outcome, TraceID: res.Outcome.ActionID})
		}

		if opts.Salt != "" {
			if err := s.engine.Oracle().FulfillAll(ctx, opts.Salt); err != nil {
				slog.Warn("fulfillment failed", "error", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		s.engine.Stop()
		<-loopDone
		return WrapExitError(ExitCommandError, "failed to read commands", err)
	}

	slog.Info("input drained", "ok", stats.ok, "rejected", stats.rejected)
	return stopServe(s, loopDone)
}

func stopServe(s *session, loopDone <-chan error) error {
	s.engine.Stop()
	if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "engine error", err)
	}
	slog.Info("engine stopped gracefully")
	return nil
}

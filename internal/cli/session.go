package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/engine"
	"github.com/roach88/launchpad/internal/store"
)

// session is an engine rebuilt from the database log, ready to accept
// new actions.
type session struct {
	store  *store.Store
	engine *engine.Engine
}

// openSession opens the database and replays its log. The caller must
// Close the session.
func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	slog.Debug("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	e, err := engine.Replay(ctx, st, engine.WithPlatform(opts.platform()))
	if err != nil {
		_ = st.Close()
		if engine.IsReplayDiverged(err) {
			return nil, WrapExitError(ExitFailure, "replay diverged", err)
		}
		return nil, WrapExitError(ExitCommandError, "failed to replay database", err)
	}
	return &session{store: st, engine: e}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func formatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// parseAt reads an --at value: empty means the wall clock, otherwise
// RFC 3339.
func parseAt(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid --at %q: want RFC 3339", s))
	}
	return t.UTC(), nil
}

// parseArgs decodes a JSON object of action arguments. Numbers are kept
// as json.Number so large amounts survive.
func parseArgs(s string) (map[string]any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var args map[string]any
	if err := dec.Decode(&args); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --args JSON", err)
	}
	return args, nil
}

// campaignAmount parses "<quantity> <ASSET>" against the assets of
// campaign id, or a plain base-unit integer.
func campaignAmount(e *engine.Engine, id, s string) (amount.Amount, error) {
	qty, asset, ok := strings.Cut(strings.TrimSpace(s), " ")
	if !ok {
		return amount.ParseBase(s)
	}
	c, err := e.Campaign(id)
	if err != nil {
		return amount.Amount{}, err
	}
	for _, a := range []struct {
		id  string
		dec uint8
	}{
		{c.Config.Capital.ID, c.Config.Capital.Decimals},
		{c.Config.Token.ID, c.Config.Token.Decimals},
		{c.Config.Burn.ID, c.Config.Burn.Decimals},
	} {
		if a.id != "" && a.id == asset {
			return amount.Parse(qty, a.dec)
		}
	}
	return amount.Amount{}, fmt.Errorf("asset %s is not used by campaign %s", asset, id)
}

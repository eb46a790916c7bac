package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/launchpad/internal/store"
)

// Replay rebuilds an engine from the action log in s.
//
// Every accepted action is executed again, in seq order, at its recorded
// time and with its recorded arguments. Rejected actions are skipped: they
// changed nothing. Each replayed action must be accepted again and
// reproduce the recorded action id and state hash, otherwise Replay stops
// with a REPLAY_DIVERGED error.
//
// Oracle request ids are taken from the recorded results, so requests
// still pending at the end of the log can be fulfilled by the rebuilt
// engine.
//
// The returned engine writes new actions to s and continues the logical
// clock after the last recorded seq. opts must describe the same platform
// the log was written with.
func Replay(ctx context.Context, s *store.Store, opts ...Option) (*Engine, error) {
	e := New(opts...)
	e.store = nil
	e.replaying = true

	actions, err := s.ListActions(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	replayed := 0
	for i := range actions {
		rec := &actions[i]
		if !rec.Accepted() {
			continue
		}
		cmd := Command{
			Campaign: rec.CampaignID,
			Action:   rec.Action,
			Caller:   rec.Caller,
			Args:     rec.Args,
			At:       rec.At,
		}
		if !CampaignScoped(rec.Action) {
			cmd.Campaign = ""
		}
		e.mu.Lock()
		_, err := e.execute(ctx, cmd, rec)
		e.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("replay seq %d (%s): %w", rec.Seq, rec.Action, err)
		}
		replayed++
	}

	maxSeq, err := s.MaxSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	e.clock = NewClockAt(maxSeq)
	e.store = s
	e.replaying = false

	slog.Info("replay complete",
		"actions", len(actions),
		"replayed", replayed,
		"seq", maxSeq,
	)
	return e, nil
}

// Verify replays the log into a fresh engine and checks that every
// persisted campaign snapshot matches the rebuilt state.
func Verify(ctx context.Context, s *store.Store, opts ...Option) error {
	e, err := Replay(ctx, s, opts...)
	if err != nil {
		return err
	}
	snaps, err := s.ListSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	for _, snap := range snaps {
		hash, err := e.StateHash(snap.ID)
		if err != nil {
			return fmt.Errorf("verify %s: %w", snap.ID, err)
		}
		if hash != snap.StateHash {
			return NewReplayDivergedError(snap.ID, snap.Seq, "snapshot state hash", snap.StateHash, hash)
		}
	}
	return nil
}

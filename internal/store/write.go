package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/launchpad/internal/campaign"
)

// OutcomeOK marks an accepted action. Rejected actions carry their error
// code as outcome.
const OutcomeOK = "ok"

// Action is one executed command.
type Action struct {
	ID         string
	Seq        int64
	CampaignID string
	Action     string
	Caller     string
	Args       map[string]any
	At         time.Time
	Outcome    string
	Error      string
	Result     map[string]any
	Movements  []campaign.Movement
	StateHash  string
}

// Accepted reports whether the action changed state.
func (a Action) Accepted() bool { return a.Outcome == OutcomeOK }

// Snapshot is a campaign's persisted state after its latest action.
type Snapshot struct {
	ID        string
	Index     int
	Owner     string
	Account   string
	State     []byte
	StateHash string
	Seq       int64
}

// WriteAction inserts an action record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteAction(ctx context.Context, a Action) error {
	return writeAction(ctx, s.db, a)
}

// Commit writes an accepted action and the campaign snapshot it produced
// in one transaction. A nil snapshot records the action alone.
func (s *Store) Commit(ctx context.Context, a Action, snap *Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit: begin: %w", err)
	}
	defer tx.Rollback()

	if err := writeAction(ctx, tx, a); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if snap != nil {
		if err := writeSnapshot(ctx, tx, *snap); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writeAction(ctx context.Context, db execer, a Action) error {
	argsJSON, err := marshalObject("args", a.Args)
	if err != nil {
		return fmt.Errorf("write action: %w", err)
	}
	resultJSON, err := marshalObject("result", a.Result)
	if err != nil {
		return fmt.Errorf("write action: %w", err)
	}
	movesJSON, err := marshalMovements(a.Movements)
	if err != nil {
		return fmt.Errorf("write action: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO actions
		(id, seq, campaign_id, action, caller, args, at, outcome, error, result, movements, state_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		a.ID,
		a.Seq,
		a.CampaignID,
		a.Action,
		a.Caller,
		argsJSON,
		formatTime(a.At),
		a.Outcome,
		a.Error,
		resultJSON,
		movesJSON,
		a.StateHash,
	)
	if err != nil {
		return fmt.Errorf("write action: %w", err)
	}
	return nil
}

// writeSnapshot upserts a campaign snapshot. Snapshots only move forward:
// an older seq never overwrites a newer one.
func writeSnapshot(ctx context.Context, db execer, snap Snapshot) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO campaigns (id, idx, owner, account, state, state_hash, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			state_hash = excluded.state_hash,
			seq = excluded.seq
		WHERE excluded.seq > campaigns.seq
	`,
		snap.ID,
		snap.Index,
		snap.Owner,
		snap.Account,
		string(snap.State),
		snap.StateHash,
		snap.Seq,
	)
	if err != nil {
		return fmt.Errorf("write snapshot %s: %w", snap.ID, err)
	}
	return nil
}

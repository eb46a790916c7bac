package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

const actionColumns = `id, seq, campaign_id, action, caller, args, at, outcome, error, result, movements, state_hash`

type scanner interface {
	Scan(dest ...any) error
}

func scanAction(row scanner) (Action, error) {
	var (
		a                                   Action
		argsJSON, at, resultJSON, movesJSON string
	)
	if err := row.Scan(&a.ID, &a.Seq, &a.CampaignID, &a.Action, &a.Caller, &argsJSON, &at, &a.Outcome, &a.Error, &resultJSON, &movesJSON, &a.StateHash); err != nil {
		return Action{}, err
	}
	var err error
	if a.Args, err = unmarshalObject("args", argsJSON); err != nil {
		return Action{}, err
	}
	if a.Result, err = unmarshalObject("result", resultJSON); err != nil {
		return Action{}, err
	}
	if a.Movements, err = unmarshalMovements(movesJSON); err != nil {
		return Action{}, err
	}
	if a.At, err = parseTime(at); err != nil {
		return Action{}, err
	}
	return a, nil
}

// ReadAction returns the action with id.
func (s *Store) ReadAction(ctx context.Context, id string) (Action, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+actionColumns+` FROM actions WHERE id = ?`, id)
	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Action{}, fmt.Errorf("action %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Action{}, fmt.Errorf("read action %s: %w", id, err)
	}
	return a, nil
}

// ListActions returns actions in seq order. An empty campaignID lists
// every action, including platform actions that belong to no campaign.
//
// Returns an empty slice (not nil) if no records exist.
func (s *Store) ListActions(ctx context.Context, campaignID string) ([]Action, error) {
	query := `SELECT ` + actionColumns + ` FROM actions`
	var args []any
	if campaignID != "" {
		query += ` WHERE campaign_id = ?`
		args = append(args, campaignID)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`
	return s.queryActions(ctx, query, args...)
}

// ListRejected returns rejected actions in seq order.
func (s *Store) ListRejected(ctx context.Context) ([]Action, error) {
	return s.queryActions(ctx, `
		SELECT `+actionColumns+` FROM actions
		WHERE outcome != ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, OutcomeOK)
}

func (s *Store) queryActions(ctx context.Context, query string, args ...any) ([]Action, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	actions := []Action{}
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return actions, nil
}

// MaxSeq returns the highest recorded seq, or 0 for an empty log.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM actions`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq.Int64, nil
}

// LoadSnapshot returns the latest snapshot of campaign id.
func (s *Store) LoadSnapshot(ctx context.Context, id string) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, idx, owner, account, state, state_hash, seq
		FROM campaigns WHERE id = ?
	`, id)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("campaign %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	return snap, nil
}

// ListSnapshots returns every campaign snapshot in registry index order.
func (s *Store) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, idx, owner, account, state, state_hash, seq
		FROM campaigns ORDER BY idx ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

func scanSnapshot(row scanner) (Snapshot, error) {
	var (
		snap  Snapshot
		state string
	)
	if err := row.Scan(&snap.ID, &snap.Index, &snap.Owner, &snap.Account, &state, &snap.StateHash, &snap.Seq); err != nil {
		return Snapshot{}, err
	}
	snap.State = []byte(state)
	return snap, nil
}

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/campaign"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testAction(id string, seq int64, campaignID string) Action {
	return Action{
		ID:         id,
		Seq:        seq,
		CampaignID: campaignID,
		Action:     "buy_tokens",
		Caller:     "alice",
		Args:       map[string]any{"amount": "1000000"},
		At:         t0.Add(time.Duration(seq) * time.Minute),
		Outcome:    OutcomeOK,
		Result:     map[string]any{"tokens": "100"},
		Movements: []campaign.Movement{{
			Kind:    campaign.MoveTransferFrom,
			Asset:   "USDC",
			From:    "alice",
			To:      "campaign:" + campaignID,
			Spender: "campaign:" + campaignID,
			Amount:  amount.New(1_000_000),
		}},
		StateHash: "hash-" + id,
	}
}

func TestWriteAction_RoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	want := testAction("a1", 1, "c1")
	if err := s.WriteAction(ctx, want); err != nil {
		t.Fatalf("WriteAction() failed: %v", err)
	}

	got, err := s.ReadAction(ctx, "a1")
	if err != nil {
		t.Fatalf("ReadAction() failed: %v", err)
	}
	if got.CampaignID != "c1" || got.Action != "buy_tokens" || got.Caller != "alice" {
		t.Errorf("ReadAction() = %+v", got)
	}
	if !got.At.Equal(want.At) {
		t.Errorf("At = %v, want %v", got.At, want.At)
	}
	if got.Args["amount"] != "1000000" {
		t.Errorf("Args = %v", got.Args)
	}
	if got.Result["tokens"] != "100" {
		t.Errorf("Result = %v", got.Result)
	}
	if len(got.Movements) != 1 || got.Movements[0] != want.Movements[0] {
		t.Errorf("Movements = %+v, want %+v", got.Movements, want.Movements)
	}
	if !got.Accepted() {
		t.Error("Accepted() = false for ok outcome")
	}
}

func TestWriteAction_Idempotent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	a := testAction("a1", 1, "c1")
	for i := 0; i < 2; i++ {
		if err := s.WriteAction(ctx, a); err != nil {
			t.Fatalf("WriteAction() attempt %d failed: %v", i, err)
		}
	}

	actions, err := s.ListActions(ctx, "")
	if err != nil {
		t.Fatalf("ListActions() failed: %v", err)
	}
	if len(actions) != 1 {
		t.Errorf("len(actions) = %d, want 1", len(actions))
	}
}

func TestWriteAction_LargeIntegerArgs(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	a := testAction("a1", 1, "c1")
	a.Args = map[string]any{"priority": 15, "nonce": int64(1) << 60}
	if err := s.WriteAction(ctx, a); err != nil {
		t.Fatalf("WriteAction() failed: %v", err)
	}

	got, err := s.ReadAction(ctx, "a1")
	if err != nil {
		t.Fatalf("ReadAction() failed: %v", err)
	}
	if got.Args["nonce"].(interface{ String() string }).String() != "1152921504606846976" {
		t.Errorf("nonce = %v, lost precision", got.Args["nonce"])
	}
}

func TestReadAction_NotFound(t *testing.T) {
	s := openTest(t)

	_, err := s.ReadAction(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadAction() error = %v, want ErrNotFound", err)
	}
}

func TestListActions_OrderAndFilter(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	for _, a := range []Action{
		testAction("a3", 3, "c1"),
		testAction("a1", 1, "c1"),
		testAction("a2", 2, "c2"),
	} {
		if err := s.WriteAction(ctx, a); err != nil {
			t.Fatalf("WriteAction(%s) failed: %v", a.ID, err)
		}
	}

	all, err := s.ListActions(ctx, "")
	if err != nil {
		t.Fatalf("ListActions() failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "a1" || all[1].ID != "a2" || all[2].ID != "a3" {
		t.Errorf("ListActions(\"\") order = %v", ids(all))
	}

	c1, err := s.ListActions(ctx, "c1")
	if err != nil {
		t.Fatalf("ListActions(c1) failed: %v", err)
	}
	if len(c1) != 2 || c1[0].ID != "a1" || c1[1].ID != "a3" {
		t.Errorf("ListActions(c1) = %v", ids(c1))
	}

	none, err := s.ListActions(ctx, "c9")
	if err != nil {
		t.Fatalf("ListActions(c9) failed: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("ListActions(c9) = %v, want empty non-nil slice", none)
	}
}

func TestListRejected(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	ok := testAction("a1", 1, "c1")
	bad := testAction("a2", 2, "c1")
	bad.Outcome = "NOT_READY"
	bad.Error = "buy_tokens: tally not committed"
	bad.Movements = nil
	for _, a := range []Action{ok, bad} {
		if err := s.WriteAction(ctx, a); err != nil {
			t.Fatalf("WriteAction(%s) failed: %v", a.ID, err)
		}
	}

	rejected, err := s.ListRejected(ctx)
	if err != nil {
		t.Fatalf("ListRejected() failed: %v", err)
	}
	if len(rejected) != 1 || rejected[0].ID != "a2" {
		t.Fatalf("ListRejected() = %v, want [a2]", ids(rejected))
	}
	if rejected[0].Accepted() {
		t.Error("Accepted() = true for rejected action")
	}
	if len(rejected[0].Movements) != 0 {
		t.Errorf("Movements = %v, want empty", rejected[0].Movements)
	}
}

func TestMaxSeq(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	seq, err := s.MaxSeq(ctx)
	if err != nil {
		t.Fatalf("MaxSeq() failed: %v", err)
	}
	if seq != 0 {
		t.Errorf("MaxSeq() on empty log = %d, want 0", seq)
	}

	if err := s.WriteAction(ctx, testAction("a7", 7, "c1")); err != nil {
		t.Fatalf("WriteAction() failed: %v", err)
	}
	if seq, _ = s.MaxSeq(ctx); seq != 7 {
		t.Errorf("MaxSeq() = %d, want 7", seq)
	}
}

func TestCommit_WritesActionAndSnapshot(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	snap := Snapshot{ID: "c1", Index: 0, Owner: "owner", Account: "campaign:c1", State: []byte(`{"v":1}`), StateHash: "h1", Seq: 1}
	if err := s.Commit(ctx, testAction("a1", 1, "c1"), &snap); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	got, err := s.LoadSnapshot(ctx, "c1")
	if err != nil {
		t.Fatalf("LoadSnapshot() failed: %v", err)
	}
	if string(got.State) != `{"v":1}` || got.StateHash != "h1" || got.Account != "campaign:c1" {
		t.Errorf("LoadSnapshot() = %+v", got)
	}

	snap.State = []byte(`{"v":2}`)
	snap.StateHash = "h2"
	snap.Seq = 2
	if err := s.Commit(ctx, testAction("a2", 2, "c1"), &snap); err != nil {
		t.Fatalf("second Commit() failed: %v", err)
	}
	if got, _ = s.LoadSnapshot(ctx, "c1"); got.StateHash != "h2" || got.Seq != 2 {
		t.Errorf("snapshot not advanced: %+v", got)
	}
}

func TestCommit_StaleSnapshotIgnored(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	newer := Snapshot{ID: "c1", Owner: "owner", Account: "campaign:c1", State: []byte(`{}`), StateHash: "new", Seq: 5}
	if err := s.Commit(ctx, testAction("a5", 5, "c1"), &newer); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	older := newer
	older.StateHash = "old"
	older.Seq = 3
	if err := s.Commit(ctx, testAction("a3", 3, "c1"), &older); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	got, err := s.LoadSnapshot(ctx, "c1")
	if err != nil {
		t.Fatalf("LoadSnapshot() failed: %v", err)
	}
	if got.StateHash != "new" {
		t.Errorf("StateHash = %q, stale snapshot overwrote newer one", got.StateHash)
	}
}

func TestCommit_RollsBackOnFailure(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	first := Snapshot{ID: "c1", Index: 0, Owner: "owner", Account: "campaign:c1", State: []byte(`{}`), StateHash: "h", Seq: 1}
	if err := s.Commit(ctx, testAction("a1", 1, "c1"), &first); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	// Same registry index under a different id violates UNIQUE(idx).
	clash := Snapshot{ID: "c2", Index: 0, Owner: "owner", Account: "campaign:c2", State: []byte(`{}`), StateHash: "h", Seq: 2}
	if err := s.Commit(ctx, testAction("a2", 2, "c2"), &clash); err == nil {
		t.Fatal("Commit() with clashing index succeeded")
	}

	if _, err := s.ReadAction(ctx, "a2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("action a2 persisted despite rollback: %v", err)
	}
}

func TestListSnapshots_ByIndex(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	for i, id := range []string{"zeta", "alpha"} {
		snap := Snapshot{ID: id, Index: i, Owner: "owner", Account: "campaign:" + id, State: []byte(`{}`), StateHash: "h", Seq: int64(i + 1)}
		if err := s.Commit(ctx, testAction("a-"+id, int64(i+1), id), &snap); err != nil {
			t.Fatalf("Commit(%s) failed: %v", id, err)
		}
	}

	snaps, err := s.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("ListSnapshots() failed: %v", err)
	}
	if len(snaps) != 2 || snaps[0].ID != "zeta" || snaps[1].ID != "alpha" {
		t.Errorf("ListSnapshots() order wrong: %+v", snaps)
	}

	if _, err := s.LoadSnapshot(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadSnapshot(missing) error = %v, want ErrNotFound", err)
	}
}

func ids(actions []Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.ID
	}
	return out
}

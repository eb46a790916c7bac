package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/launchpad/internal/amount"
	"github.com/roach88/launchpad/internal/campaign"
)

func TestMintAndTransfer(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint("TKN", "alice", amount.New(100)))
	require.NoError(t, l.Transfer("TKN", "alice", "bob", amount.New(40)))

	assert.Equal(t, amount.New(60), l.BalanceOf("TKN", "alice"))
	assert.Equal(t, amount.New(40), l.BalanceOf("TKN", "bob"))
	assert.Equal(t, amount.New(100), l.TotalSupply("TKN"))
	assert.Equal(t, []string{"alice", "bob"}, l.Holders("TKN"))
}

func TestTransferInsufficientBalance(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint("TKN", "alice", amount.New(10)))

	err := l.Transfer("TKN", "alice", "bob", amount.New(11))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, amount.New(10), l.BalanceOf("TKN", "alice"))
}

func TestSettleIsAtomic(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint("CAP", "alice", amount.New(50)))
	require.NoError(t, l.Mint("BRN", "alice", amount.New(5)))
	l.Approve("BRN", "alice", "pool", amount.New(5))

	err := l.Settle([]campaign.Movement{
		{Kind: campaign.MoveTransfer, Asset: "CAP", From: "alice", To: "pool", Amount: amount.New(50)},
		{Kind: campaign.MoveTransferFrom, Asset: "BRN", From: "alice", To: "pool", Spender: "pool", Amount: amount.New(6)},
	})
	require.ErrorIs(t, err, ErrInsufficientAllowance)

	assert.Equal(t, amount.New(50), l.BalanceOf("CAP", "alice"))
	assert.True(t, l.BalanceOf("CAP", "pool").IsZero())
	assert.Equal(t, amount.New(5), l.Allowance("BRN", "alice", "pool"))
}

func TestRevertRestoresEverything(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint("CAP", "alice", amount.New(50)))
	require.NoError(t, l.Mint("BRN", "alice", amount.New(5)))
	l.Approve("CAP", "alice", "pool", amount.New(50))

	batch := []campaign.Movement{
		{Kind: campaign.MoveTransferFrom, Asset: "CAP", From: "alice", To: "pool", Spender: "pool", Amount: amount.New(30)},
		{Kind: campaign.MoveBurn, Asset: "BRN", From: "alice", Amount: amount.New(2)},
		{Kind: campaign.MoveMint, Asset: "LP", To: "pool", Amount: amount.New(7)},
	}
	require.NoError(t, l.Settle(batch))
	assert.Equal(t, amount.New(20), l.Allowance("CAP", "alice", "pool"))
	assert.Equal(t, amount.New(3), l.TotalSupply("BRN"))

	require.NoError(t, l.Revert(batch))
	assert.Equal(t, amount.New(50), l.BalanceOf("CAP", "alice"))
	assert.Equal(t, amount.New(50), l.Allowance("CAP", "alice", "pool"))
	assert.Equal(t, amount.New(5), l.BalanceOf("BRN", "alice"))
	assert.Equal(t, amount.New(5), l.TotalSupply("BRN"))
	assert.True(t, l.TotalSupply("LP").IsZero())
}

func TestSnapshots(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint("GOV", "alice", amount.New(30)))
	require.NoError(t, l.Mint("GOV", "bob", amount.New(70)))
	l.Snapshot("s1", "GOV")

	require.NoError(t, l.Transfer("GOV", "bob", "alice", amount.New(70)))

	bal, err := l.BalanceAt("s1", "bob")
	require.NoError(t, err)
	assert.Equal(t, amount.New(70), bal)
	supply, err := l.TotalSupplyAt("s1")
	require.NoError(t, err)
	assert.Equal(t, amount.New(100), supply)

	_, err = l.BalanceAt("missing", "bob")
	assert.ErrorIs(t, err, ErrUnknownSnapshot)
}

func TestRecordSnapshotWithSupply(t *testing.T) {
	l := New()
	balances := map[string]amount.Amount{"alice": amount.New(10)}
	require.NoError(t, l.RecordSnapshotWithSupply("s", "GOV", amount.New(100), balances))

	supply, err := l.TotalSupplyAt("s")
	require.NoError(t, err)
	assert.Equal(t, amount.New(100), supply)

	err = l.RecordSnapshotWithSupply("bad", "GOV", amount.New(5), balances)
	assert.Error(t, err)
}

func TestConcurrentTransfers(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint("TKN", "a", amount.New(1000)))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Transfer("TKN", "a", "b", amount.New(10)))
		}()
	}
	wg.Wait()

	assert.True(t, l.BalanceOf("TKN", "a").IsZero())
	assert.Equal(t, amount.New(1000), l.BalanceOf("TKN", "b"))
}

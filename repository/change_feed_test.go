package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/idkrafsan/BetTracker/models"
	"github.com/idkrafsan/BetTracker/repository/testutil"
	"github.com/shopspring/decimal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshotRecorder[T any] struct {
	mu        sync.Mutex
	snapshots []T
}

func (r *snapshotRecorder[T]) record(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, v)
}

func (r *snapshotRecorder[T]) last() (T, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	if len(r.snapshots) == 0 {
		return zero, 0
	}
	return r.snapshots[len(r.snapshots)-1], len(r.snapshots)
}

func TestChangeFeed_SubscribeBets(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	feed := NewChangeFeed(testDB.DB)
	repo := NewBetRepository(testDB.DB)
	ctx := context.Background()

	recorder := &snapshotRecorder[[]*models.Bet]{}
	sub, err := feed.SubscribeBets(ctx, recorder.record)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	initial, count := recorder.last()
	require.Equal(t, 1, count, "initial snapshot is delivered before subscribe returns")
	assert.Empty(t, initial)

	bet := testutil.CreateTestBet("Benfica vs Porto", models.BetStatusPending)
	require.NoError(t, repo.Create(ctx, bet))

	assert.Eventually(t, func() bool {
		snapshot, _ := recorder.last()
		return len(snapshot) == 1 && snapshot[0].ID == bet.ID
	}, 5*time.Second, 20*time.Millisecond)

	_, err = repo.Delete(ctx, bet.ID)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		snapshot, _ := recorder.last()
		return len(snapshot) == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestChangeFeed_SubscribeAccount(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	feed := NewChangeFeed(testDB.DB)
	repo := NewAccountRepository(testDB.DB)
	ctx := context.Background()

	recorder := &snapshotRecorder[*models.Account]{}
	sub, err := feed.SubscribeAccount(ctx, models.DefaultAccountID, recorder.record)
	require.NoError(t, err)

	initial, count := recorder.last()
	require.Equal(t, 1, count)
	assert.Nil(t, initial)

	other := decimal.RequireFromString("5")
	_, err = repo.Merge(ctx, "someone-else", models.AccountPatch{Balance: &other})
	require.NoError(t, err)

	balance := decimal.RequireFromString("42")
	_, err = repo.Merge(ctx, models.DefaultAccountID, models.AccountPatch{Balance: &balance})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		account, _ := recorder.last()
		return account != nil && account.Balance.Equal(balance)
	}, 5*time.Second, 20*time.Millisecond)

	sub.Unsubscribe()
	_, delivered := recorder.last()

	updated := decimal.RequireFromString("43")
	_, err = repo.Merge(ctx, models.DefaultAccountID, models.AccountPatch{Balance: &updated})
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	_, after := recorder.last()
	assert.Equal(t, delivered, after, "no snapshots after unsubscribe")
}

package usage

import (
	"context"
	"sync"
	"testing"

	"buildadvisor/internal/database/dbtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead_MissingRowIsZero(t *testing.T) {
	repo := NewRepository(dbtest.Open(t, &Counters{}))

	c, err := repo.Read(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.Zero(t, c.TotalAnswers)
	assert.Zero(t, c.FreeAnswersUsed)
	assert.Nil(t, c.LastAnswer())
}

func TestIncrementAfterSuccess_FreeAndPaid(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t, &Counters{}))

	require.NoError(t, repo.IncrementAfterSuccess(ctx, "u1", false))
	c, err := repo.Read(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.TotalAnswers)
	assert.Equal(t, int64(1), c.FreeAnswersUsed)
	assert.NotNil(t, c.LastAnswer())

	require.NoError(t, repo.IncrementAfterSuccess(ctx, "u1", false))
	require.NoError(t, repo.IncrementAfterSuccess(ctx, "u1", true))
	c, err = repo.Read(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.TotalAnswers)
	assert.Equal(t, int64(2), c.FreeAnswersUsed, "paid answers must not consume the free allowance")
}

func TestIncrementAfterSuccess_FirstPaidAnswerCreatesRow(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t, &Counters{}))

	require.NoError(t, repo.IncrementAfterSuccess(ctx, "u1", true))
	c, err := repo.Read(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.TotalAnswers)
	assert.Zero(t, c.FreeAnswersUsed)
}

func TestIncrementAfterSuccess_ConcurrentIsExact(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t, &Counters{}))

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.IncrementAfterSuccess(ctx, "u1", false)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	c, err := repo.Read(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(n), c.TotalAnswers)
	assert.Equal(t, int64(n), c.FreeAnswersUsed)
}

func TestTouch_KeepsCounters(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.Open(t, &Counters{}))

	require.NoError(t, repo.Touch(ctx, "new-user"))
	c, err := repo.Read(ctx, "new-user")
	require.NoError(t, err)
	assert.Zero(t, c.TotalAnswers)
	assert.False(t, c.UpdatedAt.IsZero())

	require.NoError(t, repo.IncrementAfterSuccess(ctx, "u1", false))
	require.NoError(t, repo.IncrementAfterSuccess(ctx, "u1", false))
	require.NoError(t, repo.Touch(ctx, "u1"))

	c, err = repo.Read(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.TotalAnswers)
	assert.Equal(t, int64(2), c.FreeAnswersUsed)
}

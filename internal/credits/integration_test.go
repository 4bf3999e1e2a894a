package credits

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestPostgres connects to a real database when TEST_DB_DSN is set and
// skips otherwise, matching how the rest of the suite treats integration
// dependencies.
func setupTestPostgres(t *testing.T) *sql.DB {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set, skipping PostgreSQL integration test")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	return db
}

func TestLedgerLifecycle_Postgres(t *testing.T) {
	db := setupTestPostgres(t)
	defer db.Close()

	ctx := context.Background()
	repo := NewRepo(db)

	const userID = "it-credits-user"
	_, err := db.ExecContext(ctx, `
INSERT INTO credit_accounts (user_id, balance, reserved)
VALUES ($1, 100, 0)
ON CONFLICT (user_id) DO UPDATE SET balance = 100, reserved = 0`, userID)
	require.NoError(t, err)

	resID, err := repo.Reserve(ctx, userID, 40, ReasonDeck, "it-deck")
	require.NoError(t, err)

	balance, err := repo.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), balance)

	require.NoError(t, repo.Release(ctx, resID))

	balance, err = repo.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	resID, err = repo.Reserve(ctx, userID, 40, ReasonDeck, "it-deck")
	require.NoError(t, err)
	require.NoError(t, repo.Commit(ctx, resID))

	res, err := repo.Get(ctx, resID)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, res.State)

	balance, err = repo.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), balance)

	// Holding more than the remaining balance must refuse outright.
	_, err = repo.Reserve(ctx, userID, 1000, ReasonDeck, "it-deck")
	assert.ErrorIs(t, err, ErrInsufficientCredit)
}

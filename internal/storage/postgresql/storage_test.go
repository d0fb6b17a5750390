package postgresql

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/freemoonfaucet/gas-faucet/internal/postgres/migrations"
	"github.com/freemoonfaucet/gas-faucet/internal/storage"
	"github.com/freemoonfaucet/gas-faucet/internal/tests"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// These tests need a real postgres instance because TryReserve leans on
// the ON CONFLICT upsert predicate. Configure FAUCET_DATABASE_* and set
// FAUCET_TEST_DATABASE=true to run them.
func setupStore(t *testing.T) (*PostgresClaimStore, *gorm.DB) {
	if os.Getenv("FAUCET_TEST_DATABASE") != "true" {
		t.Skip("Skipping postgres store tests, FAUCET_TEST_DATABASE is not set")
	}

	l := zap.NewNop()
	cfg := tests.GetConfig()
	db, grm, err := tests.GetDatabaseConnection(cfg)
	assert.Nil(t, err)

	migrator := migrations.NewMigrator(db.Db, grm, l)
	assert.Nil(t, migrator.MigrateAll())

	res := grm.Exec("DELETE FROM faucet_claims")
	assert.Nil(t, res.Error)

	return NewPostgresClaimStore(grm, l), grm
}

const cooldown = time.Hour * 24

func Test_PostgresClaimStore(t *testing.T) {
	ctx := context.Background()

	t.Run("reserves a fresh identity and stores it lowercased", func(t *testing.T) {
		store, _ := setupStore(t)

		reservation, err := store.TryReserve(ctx, "203.0.113.9", "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B", time.Now(), cooldown)
		assert.Nil(t, err)
		assert.Equal(t, "0xab5801a7d398351b8be11c439e05c5b3259aec9b", reservation.TargetAccount)

		record, err := store.GetClaim(ctx, "203.0.113.9", "0xab5801a7d398351b8be11c439e05c5b3259aec9b")
		assert.Nil(t, err)
		assert.Equal(t, storage.ClaimState_Reserved, record.State)
	})
	t.Run("denies a second reserve inside the cooldown", func(t *testing.T) {
		store, _ := setupStore(t)
		now := time.Now()

		reservation, err := store.TryReserve(ctx, "203.0.113.9", "0xab5801a7d398351b8be11c439e05c5b3259aec9b", now, cooldown)
		assert.Nil(t, err)
		assert.Nil(t, store.Commit(ctx, reservation))

		_, err = store.TryReserve(ctx, "203.0.113.9", "0xab5801a7d398351b8be11c439e05c5b3259aec9b", now.Add(time.Hour), cooldown)
		alreadyClaimed := &storage.AlreadyClaimedError{}
		assert.True(t, errors.As(err, &alreadyClaimed))
		assert.True(t, reservation.ReservedAt.Equal(alreadyClaimed.LastClaimAt))
	})
	t.Run("allows a reserve exactly at the cooldown boundary", func(t *testing.T) {
		store, _ := setupStore(t)
		now := time.Now()

		reservation, err := store.TryReserve(ctx, "203.0.113.9", "0xab5801a7d398351b8be11c439e05c5b3259aec9b", now, cooldown)
		assert.Nil(t, err)
		assert.Nil(t, store.Commit(ctx, reservation))

		_, err = store.TryReserve(ctx, "203.0.113.9", "0xab5801a7d398351b8be11c439e05c5b3259aec9b", reservation.ReservedAt.Add(cooldown), cooldown)
		assert.Nil(t, err)
	})
	t.Run("a released claim can be reserved again immediately", func(t *testing.T) {
		store, _ := setupStore(t)
		now := time.Now()

		reservation, err := store.TryReserve(ctx, "203.0.113.9", "0xab5801a7d398351b8be11c439e05c5b3259aec9b", now, cooldown)
		assert.Nil(t, err)
		assert.Nil(t, store.Release(ctx, reservation))

		_, err = store.TryReserve(ctx, "203.0.113.9", "0xab5801a7d398351b8be11c439e05c5b3259aec9b", now.Add(time.Second), cooldown)
		assert.Nil(t, err)
	})
	t.Run("a stale release cannot undo a newer reservation", func(t *testing.T) {
		store, _ := setupStore(t)
		now := time.Now()

		stale, err := store.TryReserve(ctx, "203.0.113.9", "0xab5801a7d398351b8be11c439e05c5b3259aec9b", now, cooldown)
		assert.Nil(t, err)
		assert.Nil(t, store.Release(ctx, stale))

		fresh, err := store.TryReserve(ctx, "203.0.113.9", "0xab5801a7d398351b8be11c439e05c5b3259aec9b", now.Add(time.Minute), cooldown)
		assert.Nil(t, err)

		assert.Nil(t, store.Release(ctx, stale))
		record, err := store.GetClaim(ctx, "203.0.113.9", "0xab5801a7d398351b8be11c439e05c5b3259aec9b")
		assert.Nil(t, err)
		assert.Equal(t, storage.ClaimState_Reserved, record.State)
		assert.True(t, fresh.ReservedAt.Equal(record.LastClaimAt))
	})
	t.Run("a release cannot overwrite a commit", func(t *testing.T) {
		store, _ := setupStore(t)

		reservation, err := store.TryReserve(ctx, "203.0.113.9", "0xab5801a7d398351b8be11c439e05c5b3259aec9b", time.Now(), cooldown)
		assert.Nil(t, err)
		assert.Nil(t, store.Commit(ctx, reservation))
		assert.Nil(t, store.Release(ctx, reservation))

		record, err := store.GetClaim(ctx, "203.0.113.9", "0xab5801a7d398351b8be11c439e05c5b3259aec9b")
		assert.Nil(t, err)
		assert.Equal(t, storage.ClaimState_Committed, record.State)
	})
	t.Run("distinct identities do not interfere", func(t *testing.T) {
		store, _ := setupStore(t)
		now := time.Now()

		_, err := store.TryReserve(ctx, "203.0.113.9", "0xab5801a7d398351b8be11c439e05c5b3259aec9b", now, cooldown)
		assert.Nil(t, err)

		_, err = store.TryReserve(ctx, "203.0.113.10", "0xab5801a7d398351b8be11c439e05c5b3259aec9b", now, cooldown)
		assert.Nil(t, err)

		_, err = store.TryReserve(ctx, "203.0.113.9", "0x71c7656ec7ab88b098defb751b7401b5f6d8976f", now, cooldown)
		assert.Nil(t, err)
	})
	t.Run("unknown identities report not found", func(t *testing.T) {
		store, _ := setupStore(t)

		_, err := store.GetClaim(ctx, "203.0.113.200", "0xab5801a7d398351b8be11c439e05c5b3259aec9b")
		notFound := &storage.NotFoundError{}
		assert.True(t, errors.As(err, &notFound))
	})
}

func Test_PostgresClaimStore_ConcurrentReserve(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	now := time.Now()

	workers := 8
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, err := store.TryReserve(ctx, "203.0.113.9", "0xab5801a7d398351b8be11c439e05c5b3259aec9b", now, cooldown)
			results <- err
		}()
	}

	reserved := 0
	denied := 0
	for i := 0; i < workers; i++ {
		err := <-results
		if err == nil {
			reserved++
			continue
		}
		alreadyClaimed := &storage.AlreadyClaimedError{}
		assert.True(t, errors.As(err, &alreadyClaimed))
		denied++
	}
	assert.Equal(t, 1, reserved)
	assert.Equal(t, workers-1, denied)
}

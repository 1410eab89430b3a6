package ownership

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zipbul/gildash/internal/store"
)

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenTestDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAcquireWatcherRoleNoRowBecomesOwner(t *testing.T) {
	db := newTestDB(t)
	var role Role
	err := db.ImmediateTransaction(context.Background(), func(tx store.Execer) error {
		r, err := AcquireWatcherRole(tx, 100, Options{})
		role = r
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, role)
}

func TestAcquireWatcherRoleSamePidStaysOwner(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.ImmediateTransaction(context.Background(), func(tx store.Execer) error {
		_, err := AcquireWatcherRole(tx, 100, Options{})
		return err
	}))

	var role Role
	err := db.ImmediateTransaction(context.Background(), func(tx store.Execer) error {
		r, err := AcquireWatcherRole(tx, 100, Options{})
		role = r
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, role)
}

func TestAcquireWatcherRoleLiveOwnerMakesOthersReaders(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.ImmediateTransaction(context.Background(), func(tx store.Execer) error {
		_, err := AcquireWatcherRole(tx, 100, Options{})
		return err
	}))

	var role Role
	err := db.ImmediateTransaction(context.Background(), func(tx store.Execer) error {
		r, err := AcquireWatcherRole(tx, 200, Options{IsAlive: func(pid int) bool { return true }})
		role = r
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, RoleReader, role)
}

func TestAcquireWatcherRoleStaleHeartbeatTakesOver(t *testing.T) {
	db := newTestDB(t)
	start := time.Now()
	require.NoError(t, db.ImmediateTransaction(context.Background(), func(tx store.Execer) error {
		_, err := AcquireWatcherRole(tx, 100, Options{Now: func() time.Time { return start }})
		return err
	}))

	later := start.Add(2 * time.Hour)
	var role Role
	err := db.ImmediateTransaction(context.Background(), func(tx store.Execer) error {
		r, err := AcquireWatcherRole(tx, 200, Options{
			Now:     func() time.Time { return later },
			IsAlive: func(pid int) bool { return true },
		})
		role = r
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, role)
}

func TestAcquireWatcherRoleDeadOwnerTakesOverEvenIfFresh(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.ImmediateTransaction(context.Background(), func(tx store.Execer) error {
		_, err := AcquireWatcherRole(tx, 100, Options{})
		return err
	}))

	var role Role
	err := db.ImmediateTransaction(context.Background(), func(tx store.Execer) error {
		r, err := AcquireWatcherRole(tx, 200, Options{IsAlive: func(pid int) bool { return false }})
		role = r
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, role)
}

func TestReleaseWatcherRoleOnlyDeletesOwnRow(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.ImmediateTransaction(context.Background(), func(tx store.Execer) error {
		_, err := AcquireWatcherRole(tx, 100, Options{})
		return err
	}))

	require.NoError(t, db.Transaction(context.Background(), func(tx store.Execer) error {
		return ReleaseWatcherRole(tx, 999)
	}))
	owner, err := store.SelectOwner(db.Conn())
	require.NoError(t, err)
	require.NotNil(t, owner, "release with wrong pid must not delete the row")

	require.NoError(t, db.Transaction(context.Background(), func(tx store.Execer) error {
		return ReleaseWatcherRole(tx, 100)
	}))
	owner, err = store.SelectOwner(db.Conn())
	require.NoError(t, err)
	assert.Nil(t, owner)
}

func TestCoordinatorHealthCheckPromotesOnStaleTakeover(t *testing.T) {
	db := newTestDB(t)
	start := time.Now()
	require.NoError(t, db.ImmediateTransaction(context.Background(), func(tx store.Execer) error {
		_, err := AcquireWatcherRole(tx, 999, Options{Now: func() time.Time { return start.Add(-3 * time.Hour) }})
		return err
	}))

	c := New(db, os.Getpid(), RoleReader, nil)
	c.opts = Options{IsAlive: func(int) bool { return false }}
	c.healthCheckInterval = 10 * time.Millisecond

	promoted := make(chan struct{}, 1)
	c.OnPromoted = func() error {
		promoted <- struct{}{}
		return nil
	}
	c.StartHealthCheck()
	t.Cleanup(c.Stop)

	select {
	case <-promoted:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for promotion")
	}
	assert.Equal(t, RoleOwner, c.Role())
}

func TestCoordinatorSelfClosesAfterMaxRetries(t *testing.T) {
	db := newTestDB(t)
	db.Close() // force every acquire attempt to fail

	c := New(db, os.Getpid(), RoleReader, nil)
	c.maxRetries = 2
	c.healthCheckInterval = 5 * time.Millisecond

	closed := make(chan struct{}, 1)
	c.OnSelfClose = func() { closed <- struct{}{} }
	c.StartHealthCheck()
	t.Cleanup(c.Stop)

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for self-close")
	}
}

// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

package csrf

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assesshub/platform/internal/apperr"
	"github.com/assesshub/platform/internal/models"
	"github.com/assesshub/platform/internal/testutil"
)

var testMaster = []byte("csrf-master-secret-for-tests-xxx")

func TestStore_IssueVerifyRoundTrip(t *testing.T) {
	db, repo := testutil.NewTestDB(t)
	user := testutil.NewTestUser(t, repo, "round@example.com", models.RoleStudent)
	store := NewStore(db, testMaster, time.Hour)

	token, err := store.Issue(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	valid, err := store.Verify(context.Background(), user.ID, token)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestStore_CrossUserRejection(t *testing.T) {
	db, repo := testutil.NewTestDB(t)
	alice := testutil.NewTestUser(t, repo, "alice@example.com", models.RoleStudent)
	bob := testutil.NewTestUser(t, repo, "bob@example.com", models.RoleStudent)
	store := NewStore(db, testMaster, time.Hour)

	aliceToken, err := store.Issue(context.Background(), alice.ID)
	require.NoError(t, err)

	valid, err := store.Verify(context.Background(), bob.ID, aliceToken)
	require.NoError(t, err)
	assert.False(t, valid, "a token issued for one user must never verify for another")
}

func TestStore_SecretEpochRejection(t *testing.T) {
	db, repo := testutil.NewTestDB(t)
	user := testutil.NewTestUser(t, repo, "epoch@example.com", models.RoleStudent)

	oldStore := NewStore(db, []byte("previous-master-secret"), time.Hour)
	token, err := oldStore.Issue(context.Background(), user.ID)
	require.NoError(t, err)

	// After a secret rotation the row still matches, but the HMAC
	// binding no longer holds.
	newStore := NewStore(db, testMaster, time.Hour)
	valid, err := newStore.Verify(context.Background(), user.ID, token)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestStore_UpsertKeepsOneRowPerUser(t *testing.T) {
	db, repo := testutil.NewTestDB(t)
	user := testutil.NewTestUser(t, repo, "upsert@example.com", models.RoleStudent)
	store := NewStore(db, testMaster, time.Hour)

	first, err := store.Issue(context.Background(), user.ID)
	require.NoError(t, err)
	second, err := store.Issue(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	var count int64
	require.NoError(t, db.Get(&count,
		`SELECT count(*) FROM csrf_tokens WHERE user_id = ?`, user.ID))
	assert.Equal(t, int64(1), count)

	// The newer token supersedes the older one.
	valid, err := store.Verify(context.Background(), user.ID, first)
	require.NoError(t, err)
	assert.False(t, valid)

	valid, err = store.Verify(context.Background(), user.ID, second)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestStore_ExpiredTokenRejected(t *testing.T) {
	db, repo := testutil.NewTestDB(t)
	user := testutil.NewTestUser(t, repo, "expired@example.com", models.RoleStudent)
	store := NewStore(db, testMaster, time.Hour)

	now := time.Now()
	store.now = func() time.Time { return now }

	token, err := store.Issue(context.Background(), user.ID)
	require.NoError(t, err)

	now = now.Add(59 * time.Minute)
	valid, err := store.Verify(context.Background(), user.ID, token)
	require.NoError(t, err)
	assert.True(t, valid)

	now = now.Add(2 * time.Minute)
	valid, err = store.Verify(context.Background(), user.ID, token)
	require.NoError(t, err)
	assert.False(t, valid)

	// The failed verification swept the expired row.
	var count int64
	require.NoError(t, db.Get(&count,
		`SELECT count(*) FROM csrf_tokens WHERE user_id = ?`, user.ID))
	assert.Equal(t, int64(0), count)
}

func TestStore_LazySchemaCreationOnIssue(t *testing.T) {
	db, repo := testutil.NewTestDB(t)
	user := testutil.NewTestUser(t, repo, "fresh@example.com", models.RoleStudent)
	store := NewStore(db, testMaster, time.Hour)

	// Migrations do not create csrf_tokens; the store owns its schema.
	var tables int64
	require.NoError(t, db.Get(&tables,
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='csrf_tokens'`))
	require.Equal(t, int64(0), tables)

	token, err := store.Issue(context.Background(), user.ID)
	require.NoError(t, err, "first issuance against a fresh database must self-heal")
	require.NotEmpty(t, token)

	require.NoError(t, db.Get(&tables,
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='csrf_tokens'`))
	assert.Equal(t, int64(1), tables)

	valid, err := store.Verify(context.Background(), user.ID, token)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestStore_VerifyOnMissingTableReportsSchemaNotReady(t *testing.T) {
	db, repo := testutil.NewTestDB(t)
	user := testutil.NewTestUser(t, repo, "firstrun@example.com", models.RoleStudent)
	store := NewStore(db, testMaster, time.Hour)

	// A token with a valid binding but no table behind it.
	token := store.mint(user.ID)

	_, err := store.Verify(context.Background(), user.ID, token)
	require.Error(t, err)
	assert.Equal(t, apperr.SchemaNotReady, apperr.KindOf(err))

	// The schema now exists and subsequent verification works normally.
	var tables int64
	require.NoError(t, db.Get(&tables,
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='csrf_tokens'`))
	assert.Equal(t, int64(1), tables)

	valid, err := store.Verify(context.Background(), user.ID, token)
	require.NoError(t, err)
	assert.False(t, valid, "minted but never stored tokens do not validate")
}

func TestStore_Sweep(t *testing.T) {
	db, repo := testutil.NewTestDB(t)
	alive := testutil.NewTestUser(t, repo, "alive@example.com", models.RoleStudent)
	stale := testutil.NewTestUser(t, repo, "stale@example.com", models.RoleStudent)
	store := NewStore(db, testMaster, time.Hour)

	now := time.Now()
	store.now = func() time.Time { return now }

	_, err := store.Issue(context.Background(), stale.ID)
	require.NoError(t, err)

	now = now.Add(30 * time.Minute)
	aliveToken, err := store.Issue(context.Background(), alive.ID)
	require.NoError(t, err)

	// The first token is past its expiry, the second is not.
	now = now.Add(45 * time.Minute)
	removed, err := store.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	valid, err := store.Verify(context.Background(), alive.ID, aliveToken)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestStore_SweepOnMissingTableIsNoop(t *testing.T) {
	db, _ := testutil.NewTestDB(t)
	store := NewStore(db, testMaster, time.Hour)

	removed, err := store.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)
}

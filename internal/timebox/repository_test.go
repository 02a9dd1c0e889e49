package timebox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifelock-backend/internal/db"
	"lifelock-backend/internal/testutils"
)

func TestDayKey(t *testing.T) {
	k, err := NewDayKey(0, "2025-01-15")
	require.NoError(t, err)
	assert.Equal(t, "lifelock-2025-01-15-timeline", k.String())

	k, err = NewDayKey(42, "2025-01-15")
	require.NoError(t, err)
	assert.Equal(t, "lifelock-u42-2025-01-15-timeline", k.String())

	for _, bad := range []string{"", "2025-1-15", "15-01-2025", "2025-02-30"} {
		_, err := NewDayKey(0, bad)
		assert.Error(t, err, bad)
	}
}

func sampleDay() []Task {
	return []Task{
		{ID: "t1", Title: "Deep work", StartTime: "09:00", EndTime: "10:30", Category: CategoryDeepWork},
		{ID: "t2", Title: "Email", StartTime: "10:30", EndTime: "11:15", Category: CategoryAdmin, Completed: true, Description: "inbox zero"},
		{ID: "t3", Title: "Run", StartTime: "07:00", EndTime: "07:45", Category: CategoryWellness},
	}
}

func testRepositoryRoundTrip(t *testing.T, repo Repository) {
	ctx := context.Background()
	day, _ := NewDayKey(7, "2025-01-15")
	other, _ := NewDayKey(7, "2025-01-16")

	got, err := repo.List(ctx, day)
	require.NoError(t, err)
	assert.Empty(t, got)

	want := sampleDay()
	require.NoError(t, repo.Save(ctx, day, want))

	got, err = repo.List(ctx, day)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	got, err = repo.List(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, repo.Save(ctx, day, want[:1]))
	got, err = repo.List(ctx, day)
	require.NoError(t, err)
	if diff := cmp.Diff(want[:1], got); diff != "" {
		t.Fatalf("replace mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, repo.Save(ctx, day, nil))
	got, err = repo.List(ctx, day)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryRepository_RoundTrip(t *testing.T) {
	testRepositoryRoundTrip(t, NewMemoryRepository())
}

func TestMemoryRepository_CopiesSlices(t *testing.T) {
	repo := NewMemoryRepository()
	day, _ := NewDayKey(0, "2025-01-15")
	tasks := sampleDay()
	require.NoError(t, repo.Save(context.Background(), day, tasks))
	tasks[0].Title = "mutated"

	got, err := repo.List(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, "Deep work", got[0].Title)
}

func TestRedisRepository_RoundTrip(t *testing.T) {
	rdb, _ := testutils.NewRedis(t)
	testRepositoryRoundTrip(t, NewRedisRepository(rdb, 0))
}

func TestRedisRepository_StorageLayout(t *testing.T) {
	rdb, srv := testutils.NewRedis(t)
	repo := NewRedisRepository(rdb, 48*time.Hour)
	day, _ := NewDayKey(0, "2025-01-15")
	require.NoError(t, repo.Save(context.Background(), day, sampleDay()))

	raw, err := srv.Get("lifelock-2025-01-15-timeline")
	require.NoError(t, err)
	var stored []map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	require.Len(t, stored, 3)
	assert.Equal(t, "09:00", stored[0]["startTime"])
	assert.Equal(t, "deep-work", stored[0]["category"])
	assert.NotContains(t, stored[0], "duration")
	assert.Equal(t, 48*time.Hour, srv.TTL("lifelock-2025-01-15-timeline"))
}

func TestSQLRepository_RoundTrip(t *testing.T) {
	conn := testutils.OpenTestSQLite(t)
	testRepositoryRoundTrip(t, NewSQLRepository(conn, db.SQLite))
}

func TestSQLRepository_UsersAreIsolated(t *testing.T) {
	conn := testutils.OpenTestSQLite(t)
	repo := NewSQLRepository(conn, db.SQLite)
	ctx := context.Background()
	alice, _ := NewDayKey(1, "2025-01-15")
	bob, _ := NewDayKey(2, "2025-01-15")

	require.NoError(t, repo.Save(ctx, alice, sampleDay()))
	require.NoError(t, repo.Save(ctx, bob, sampleDay()[:1]))

	got, err := repo.List(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	got, err = repo.List(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

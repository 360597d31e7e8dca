package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONFixtureStorage_MissingOrEmptyFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	f, err := NewJSONFixtureStorage(filepath.Join(dir, "nope.json")).Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, f.Communities)
	assert.Empty(t, f.Updates())

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	f, err = NewJSONFixtureStorage(empty).Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, f.Scores)
}

func TestJSONFixtureStorage_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "scores.json")
	storage := NewJSONFixtureStorage(path)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, storage.Save(ctx, SampleFixture(now)))

	f, err := storage.Load(ctx)
	require.NoError(t, err)
	require.Len(t, f.Communities, 1)
	assert.Equal(t, int64(1), f.Communities[0].AccountID)

	updates := f.Updates()
	require.Len(t, updates, 3)
	assert.Equal(t, int64(1), updates[0].CommunityID)
	assert.True(t, decimal.RequireFromString("12.5").Equal(updates[0].Score))
	assert.True(t, now.Equal(updates[2].Timestamp))
	assert.Equal(t, "20", updates[1].Evidence["threshold"])
}

func TestJSONFixtureStorage_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewJSONFixtureStorage(path).Load(context.Background())
	assert.Error(t, err)
}

package filerepo_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kinnstay/booking-workflow/storage"
	"github.com/kinnstay/booking-workflow/storage/filerepo"
)

func TestRoundTrip(t *testing.T) {
	repo, err := filerepo.New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, repo.Set(storage.TokenKey, []byte("tok-123")))
	value, err := repo.Get(storage.TokenKey)
	require.NoError(t, err)
	require.Equal(t, []byte("tok-123"), value)

	// Overwrite wins.
	require.NoError(t, repo.Set(storage.TokenKey, []byte("tok-456")))
	value, err = repo.Get(storage.TokenKey)
	require.NoError(t, err)
	require.Equal(t, []byte("tok-456"), value)
}

func TestGetMissing(t *testing.T) {
	repo, err := filerepo.New(t.TempDir())
	require.NoError(t, err)

	_, err = repo.Get("never-written")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteIdempotent(t *testing.T) {
	repo, err := filerepo.New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, repo.Set(storage.IdentityKey, []byte("{}")))
	require.NoError(t, repo.Delete(storage.IdentityKey))
	_, err = repo.Get(storage.IdentityKey)
	require.ErrorIs(t, err, storage.ErrNotFound)

	// Deleting an absent key is not an error.
	require.NoError(t, repo.Delete(storage.IdentityKey))
}

func TestSurvivesReopen(t *testing.T) {
	folder := t.TempDir()

	repo, err := filerepo.New(folder)
	require.NoError(t, err)
	require.NoError(t, repo.Set(storage.IdentityKey, []byte(`{"id":"u-1"}`)))

	reopened, err := filerepo.New(folder)
	require.NoError(t, err)
	value, err := reopened.Get(storage.IdentityKey)
	require.NoError(t, err)
	require.Equal(t, []byte(`{"id":"u-1"}`), value)
}

func TestKeysWithSeparators(t *testing.T) {
	repo, err := filerepo.New(t.TempDir())
	require.NoError(t, err)

	// Keys are encoded, so path separators cannot escape the folder.
	key := "../outside/entry"
	require.NoError(t, repo.Set(key, []byte("x")))
	value, err := repo.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("x"), value)
}

package session

import (
	"context"
	"testing"

	"github.com/dgellow/popauth/internal/auth"
	"github.com/dgellow/popauth/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResult() *auth.Result {
	return &auth.Result{
		Strategy: auth.StrategyGoogle,
		Profile: auth.UserProfile{
			Name:          "Jane Doe",
			GivenName:     "Jane",
			FamilyName:    "Doe",
			Email:         "jane@example.com",
			EmailVerified: true,
			Picture:       "https://example.com/jane.jpg",
		},
	}
}

func TestNewStore_RequiresKV(t *testing.T) {
	_, err := NewStore(nil)
	assert.Error(t, err)
}

func TestStore_LoadingLifecycle(t *testing.T) {
	store, err := NewStore(storage.New(storage.NewMemoryBackend(), ""))
	require.NoError(t, err)

	assert.True(t, store.IsLoading())
	select {
	case <-store.Ready():
		t.Fatal("ready before load")
	default:
	}

	store.Load(context.Background())
	store.Load(context.Background())

	assert.False(t, store.IsLoading())
	<-store.Ready()
	_, ok := store.AuthData()
	assert.False(t, ok)
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := storage.New(storage.NewMemoryBackend(), "app_")

	first, err := NewStore(kv)
	require.NoError(t, err)
	first.Load(ctx)
	first.SetAuthData(ctx, testResult())

	second, err := NewStore(kv)
	require.NoError(t, err)
	second.Load(ctx)

	restored, ok := second.AuthData()
	require.True(t, ok)
	assert.Equal(t, testResult(), restored)
}

func TestStore_SetNilRemovesRecord(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	kv := storage.New(backend, "app_")

	store, err := NewStore(kv)
	require.NoError(t, err)
	store.Load(ctx)
	store.SetAuthData(ctx, testResult())
	store.SetAuthData(ctx, nil)

	_, err = backend.Get(ctx, "app_"+AuthDataKey)
	assert.ErrorIs(t, err, storage.ErrNotFound, "record must be deleted, not emptied")

	fresh, err := NewStore(kv)
	require.NoError(t, err)
	fresh.Load(ctx)
	_, ok := fresh.AuthData()
	assert.False(t, ok)
}

func TestStore_CorruptRecord(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not_json", raw: "{oops"},
		{name: "unknown_strategy", raw: `{"strategy":"bogus","profile":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := storage.New(storage.NewMemoryBackend(), "")
			require.NoError(t, kv.Set(ctx, AuthDataKey, tt.raw))

			store, err := NewStore(kv)
			require.NoError(t, err)
			store.Load(ctx)

			assert.False(t, store.IsLoading())
			_, ok := store.AuthData()
			assert.False(t, ok)
		})
	}
}

func TestStore_WithoutBackend(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(storage.New(nil, ""))
	require.NoError(t, err)

	store.Load(ctx)
	store.SetAuthData(ctx, testResult())

	result, ok := store.AuthData()
	require.True(t, ok, "in-memory state works without persistence")
	assert.Equal(t, "jane@example.com", result.Profile.Email)
}

func TestStore_ReportNilKeepsSession(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(storage.New(storage.NewMemoryBackend(), ""))
	require.NoError(t, err)
	store.Load(ctx)

	store.Report(ctx, testResult())
	store.Report(ctx, nil)

	_, ok := store.AuthData()
	assert.True(t, ok)

	store.Logout(ctx)
	_, ok = store.AuthData()
	assert.False(t, ok)
}

func TestStore_AuthDataIsACopy(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(storage.New(storage.NewMemoryBackend(), ""))
	require.NoError(t, err)

	in := testResult()
	store.SetAuthData(ctx, in)
	in.Profile.Name = "changed"

	out, ok := store.AuthData()
	require.True(t, ok)
	assert.Equal(t, "Jane Doe", out.Profile.Name)

	out.Profile.Name = "changed again"
	again, _ := store.AuthData()
	assert.Equal(t, "Jane Doe", again.Profile.Name)
}

func TestStore_Subscribe(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(storage.New(storage.NewMemoryBackend(), ""))
	require.NoError(t, err)

	changes, unsubscribe := store.Subscribe()
	defer unsubscribe()

	store.Load(ctx)
	st := <-changes
	assert.False(t, st.IsLoading)
	assert.Nil(t, st.Result)

	store.SetAuthData(ctx, testResult())
	st = <-changes
	require.NotNil(t, st.Result)
	assert.Equal(t, auth.StrategyGoogle, st.Result.Strategy)

	unsubscribe()
	unsubscribe()
	store.SetAuthData(ctx, nil)
}

package client

import (
	"context"
	"net/http"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltTokenStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")
	u, err := url.Parse("http://127.0.0.1:8080/auth/login")
	require.NoError(t, err)

	store, err := OpenBoltTokenStore(path)
	require.NoError(t, err)

	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.Save(ctx, "access-1"))
	store.SetCookies(u, []*http.Cookie{{Name: "refreshToken", Value: "refresh-1", Path: "/", MaxAge: 3600}})
	require.NoError(t, store.Close())

	store, err = OpenBoltTokenStore(path)
	require.NoError(t, err)
	defer store.Close()

	token, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)

	refreshURL, _ := url.Parse("http://127.0.0.1:8080/auth/refresh")
	cookies := store.Cookies(refreshURL)
	require.Len(t, cookies, 1)
	assert.Equal(t, "refresh-1", cookies[0].Value)

	store.SetCookies(u, []*http.Cookie{{Name: "refreshToken", Value: "", Path: "/", MaxAge: -1}})
	assert.Empty(t, store.Cookies(refreshURL))

	require.NoError(t, store.Save(ctx, "access-2"))
	require.NoError(t, store.Clear(ctx))
	token, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeGetter struct {
	val   string
	err   error
	calls int
	names []string
}

func (f *fakeGetter) GetParameter(_ context.Context, name string) (string, error) {
	f.calls++
	f.names = append(f.names, name)
	return f.val, f.err
}

func TestNewTokenSource_Validates(t *testing.T) {
	_, err := NewTokenSource(nil, "/relay")
	require.ErrorContains(t, err, "nil")

	_, err = NewTokenSource(&fakeGetter{}, " / ")
	require.ErrorContains(t, err, "prefix")
}

func TestTokenSource_FetchedOnce(t *testing.T) {
	g := &fakeGetter{val: `{"token":"sk-from-ssm"}`}
	src, err := NewTokenSource(g, "/relay/")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		key, err := src.APIKey(context.Background())
		require.NoError(t, err)
		require.Equal(t, "sk-from-ssm", key)
	}
	require.Equal(t, 1, g.calls, "SSM must only be called once per process lifetime")
	require.Equal(t, []string{"/relay/provider-token"}, g.names)
}

func TestTokenSource_Errors(t *testing.T) {
	cases := []struct {
		name string
		g    *fakeGetter
		want string
	}{
		{name: "getter error", g: &fakeGetter{err: errors.New("ssm unavailable")}, want: "ssm unavailable"},
		{name: "malformed json", g: &fakeGetter{val: `{"broken`}, want: "unmarshal"},
		{name: "missing token", g: &fakeGetter{val: `{"other":"value"}`}, want: "token is empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src, err := NewTokenSource(tc.g, "/relay")
			require.NoError(t, err)
			_, err = src.APIKey(context.Background())
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)

			_, err = src.APIKey(context.Background())
			require.Error(t, err)
			require.Equal(t, 2, tc.g.calls)
		})
	}
}

func TestTokenSource_RetriesAfterCancelledFirstCall(t *testing.T) {
	g := &ctxGetter{val: `{"token":"sk-from-ssm"}`}
	src, err := NewTokenSource(g, "/relay")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.APIKey(ctx)
	require.ErrorIs(t, err, context.Canceled)

	for i := 0; i < 2; i++ {
		key, err := src.APIKey(context.Background())
		require.NoError(t, err)
		require.Equal(t, "sk-from-ssm", key)
	}
	require.Equal(t, 2, g.calls)
}

// ctxGetter fails the way the SDK does when the caller's context is done.
type ctxGetter struct {
	val   string
	calls int
}

func (g *ctxGetter) GetParameter(ctx context.Context, _ string) (string, error) {
	g.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return g.val, nil
}

func TestStaticToken(t *testing.T) {
	key, err := StaticToken("sk-env").APIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-env", key)

	_, err = StaticToken(" ").APIKey(context.Background())
	require.ErrorContains(t, err, "empty")
}

package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatch-cms/dispatch/internal/api"
	"github.com/dispatch-cms/dispatch/internal/client"
	"github.com/dispatch-cms/dispatch/internal/session"
	"github.com/dispatch-cms/dispatch/pkg/apicore"
)

const seedYAML = `
users:
  - email: editor@dispatch.test
    password: secret
entities:
  tags:
    - name: news
    - name: sports
`

func setupServer(t *testing.T) (*client.Client, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o644))

	app, err := api.NewApp(&apicore.Config{
		Name:     "dispatch-client-test",
		SeedFile: path,
		TokenKey: "01234567890123456789012345678901",
	})
	require.NoError(t, err)
	srv := httptest.NewServer(app.Server.Router)
	t.Cleanup(func() {
		srv.Close()
		app.Close()
	})

	c := client.New(srv.URL, client.WithRateLimit(0, 0))
	token, err := c.Login(context.Background(), "editor@dispatch.test", "secret")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	return c, token
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

func TestLoginFailure(t *testing.T) {
	c, _ := setupServer(t)
	_, err := c.Login(context.Background(), "editor@dispatch.test", "wrong")
	require.Error(t, err)
	assert.True(t, client.IsUnauthorized(err))
}

func TestListNormalizesResults(t *testing.T) {
	c, token := setupServer(t)
	res, err := c.List(context.Background(), token, "tags", client.Query{})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Count)
	assert.Equal(t, []string{"1", "2"}, res.IDs)
	assert.Equal(t, "news", res.Records[0].String("name"))
	assert.Nil(t, res.Next)
}

func TestListWithQueryAndLimit(t *testing.T) {
	c, token := setupServer(t)
	res, err := c.List(context.Background(), token, "tags", client.Query{Q: "news"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, res.IDs)

	res, err = c.List(context.Background(), token, "tags", client.Query{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, res.IDs)
	require.NotNil(t, res.Next)
	assert.Equal(t, 1, *res.Next)
}

func TestCreateGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	c, token := setupServer(t)

	created, err := c.Create(ctx, token, "tags", map[string]any{"name": "weather"})
	require.NoError(t, err)
	assert.Equal(t, "3", created.ID)

	got, err := c.Get(ctx, token, "tags", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "weather", got.String("name"))

	updated, err := c.Update(ctx, token, "tags", created.ID, map[string]any{"name": "climate"})
	require.NoError(t, err)
	assert.Equal(t, "climate", updated.String("name"))

	require.NoError(t, c.Delete(ctx, token, "tags", created.ID))
	_, err = c.Get(ctx, token, "tags", created.ID)
	assert.True(t, client.IsNotFound(err))
}

func TestValidationErrorCarriesFields(t *testing.T) {
	c, token := setupServer(t)
	_, err := c.Create(context.Background(), token, "tags", map[string]any{})

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "this field is required", apiErr.Fields["name"])
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 1, "name": "x"}`))
	}))
	t.Cleanup(srv.Close)

	e, err := client.New(srv.URL).Create(context.Background(), "abc", "tags", map[string]any{"name": "x"})
	require.NoError(t, err)

	assert.Equal(t, "1", e.ID)
	assert.Equal(t, "Token abc", got.Get("Authorization"))
	assert.NotEmpty(t, got.Get("X-Request-ID"))
	assert.NotEmpty(t, got.Get("Idempotency-Key"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	c, _ := setupServer(t)
	_, err := c.List(context.Background(), "", "tags", client.Query{})
	assert.True(t, client.IsUnauthorized(err))
	assert.False(t, client.IsNotFound(err))
}

func TestRateLimitHonorsContext(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"count":0,"results":[]}`))
	}))
	t.Cleanup(srv.Close)

	c := client.New(srv.URL, client.WithRateLimit(0.001, 1))
	_, err := c.List(context.Background(), "", "tags", client.Query{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.List(ctx, "", "tags", client.Query{})
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

// ---------------------------------------------------------------------------
// Admin
// ---------------------------------------------------------------------------

func TestAdminHealthAndReset(t *testing.T) {
	ctx := context.Background()
	c, token := setupServer(t)

	ok, _ := c.Health(ctx)
	assert.True(t, ok)

	_, err := c.Create(ctx, token, "tags", map[string]any{"name": "weather"})
	require.NoError(t, err)
	_, err = c.Reset(ctx)
	require.NoError(t, err)

	res, err := c.List(ctx, token, "tags", client.Query{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
}

func TestAdminSeedMissingFile(t *testing.T) {
	c, _ := setupServer(t)
	_, err := c.Seed(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Fetcher
// ---------------------------------------------------------------------------

func TestFetcherTagsScenario(t *testing.T) {
	ctx := context.Background()
	c, token := setupServer(t)
	f := client.NewFetcher(c)
	s := session.New(token, nil)

	_, err := f.ListInto(ctx, s, "tags", client.Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, s.Snapshot().Results("tags"))

	created, err := f.CreateInto(ctx, s, "tags", map[string]any{"name": "weather"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, s.Snapshot().Results("tags"), "create must not touch results")

	_, err = f.ListInto(ctx, s, "tags", client.Query{})
	require.NoError(t, err)

	var names []string
	for _, e := range s.Snapshot().Resolve("tags") {
		names = append(names, e.String("name"))
	}
	assert.Equal(t, []string{"news", "sports", "weather"}, names)

	_, err = f.UpdateInto(ctx, s, "tags", created.ID, map[string]any{"name": "climate"})
	require.NoError(t, err)
	got, _ := s.Snapshot().Entity("tags", created.ID)
	assert.Equal(t, "climate", got.String("name"))
}

func TestFetcherFailureLeavesSessionUntouched(t *testing.T) {
	ctx := context.Background()
	c, token := setupServer(t)
	f := client.NewFetcher(c)
	s := session.New(token, nil)

	_, err := f.ListInto(ctx, s, "tags", client.Query{})
	require.NoError(t, err)
	before := s.Snapshot().Snapshot()

	_, err = f.ListInto(ctx, s, "widgets", client.Query{})
	assert.True(t, client.IsNotFound(err))
	_, err = f.CreateInto(ctx, s, "tags", map[string]any{"colour": "red"})
	assert.Error(t, err)
	_, err = f.UpdateInto(ctx, s, "tags", "404", map[string]any{"name": "x"})
	assert.True(t, client.IsNotFound(err))

	assert.Equal(t, before, s.Snapshot().Snapshot())
}

func TestFetcherDropsOvertakenList(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "slow" {
			close(arrived)
			<-release
			w.Write([]byte(`{"count":1,"results":[{"id":1,"name":"slow"}]}`))
			return
		}
		w.Write([]byte(`{"count":1,"results":[{"id":2,"name":"fast"}]}`))
	}))
	t.Cleanup(srv.Close)

	f := client.NewFetcher(client.New(srv.URL, client.WithRateLimit(0, 0)))
	s := session.New("tok", nil)

	slowErr := make(chan error, 1)
	go func() {
		_, err := f.ListInto(context.Background(), s, "tags", client.Query{Q: "slow"})
		slowErr <- err
	}()
	<-arrived

	_, err := f.ListInto(context.Background(), s, "tags", client.Query{Q: "fast"})
	require.NoError(t, err)
	close(release)

	assert.ErrorIs(t, <-slowErr, session.ErrStaleResponse)
	assert.Equal(t, []string{"2"}, s.Snapshot().Results("tags"))
	_, ok := s.Snapshot().Entity("tags", "1")
	assert.False(t, ok)
}

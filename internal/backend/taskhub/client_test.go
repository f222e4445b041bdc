package taskhub

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"taskhub/internal/service"
	"taskhub/internal/testutil"
	"taskhub/internal/transport"
)

func newTestClient(t *testing.T, b *testutil.FakeBackend, sessionPath string) *Client {
	t.Helper()
	c, err := NewWithOptions(Options{
		BaseURL:     b.URL(),
		Timeout:     2 * time.Second,
		RetryDelay:  time.Millisecond,
		SessionPath: sessionPath,
	})
	require.NoError(t, err)
	return c
}

func loggedInClient(t *testing.T, b *testutil.FakeBackend) *Client {
	t.Helper()
	c := newTestClient(t, b, "")
	require.NoError(t, c.Login(context.Background(), testutil.TestEmail, testutil.TestPassword))
	return c
}

func TestClient_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted credentials", func(t *testing.T) {
		b := testutil.NewFakeBackend(t)
		c := newTestClient(t, b, "")

		require.NoError(t, c.Login(ctx, testutil.TestEmail, testutil.TestPassword))

		user, err := c.Me(ctx)
		require.NoError(t, err)
		assert.Equal(t, testutil.TestUser, user)
	})

	t.Run("rejected credentials", func(t *testing.T) {
		b := testutil.NewFakeBackend(t)
		c := newTestClient(t, b, "")

		err := c.Login(ctx, testutil.TestEmail, "wrong")
		assert.True(t, errors.Is(err, service.ErrInvalidCredentials))
		assert.Equal(t, http.StatusNotFound, transport.StatusCode(err))

		_, err = c.Me(ctx)
		assert.True(t, errors.Is(err, service.ErrUnauthenticated))
	})
}

func TestClient_SessionPersistsAcrossClients(t *testing.T) {
	ctx := context.Background()
	b := testutil.NewFakeBackend(t)
	path := filepath.Join(t.TempDir(), "session.json")

	first := newTestClient(t, b, path)
	require.NoError(t, first.Login(ctx, testutil.TestEmail, testutil.TestPassword))

	second := newTestClient(t, b, path)
	user, err := second.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, testutil.TestEmail, user.Email)

	require.NoError(t, second.Logout(ctx))
	assert.NoFileExists(t, path)

	third := newTestClient(t, b, path)
	_, err = third.Me(ctx)
	assert.True(t, errors.Is(err, service.ErrUnauthenticated))
}

func TestClient_LogoutFailureKeepsSession(t *testing.T) {
	ctx := context.Background()
	b := testutil.NewFakeBackend(t)
	path := filepath.Join(t.TempDir(), "session.json")

	c := newTestClient(t, b, path)
	require.NoError(t, c.Login(ctx, testutil.TestEmail, testutil.TestPassword))

	b.FailNext(http.MethodPost, "/auth/logout", http.StatusInternalServerError)
	err := c.Logout(ctx)
	assert.Equal(t, http.StatusInternalServerError, transport.StatusCode(err))
	assert.FileExists(t, path)

	_, err = c.Me(ctx)
	assert.NoError(t, err)
}

func TestClient_ListTasks(t *testing.T) {
	ctx := context.Background()
	b := testutil.NewFakeBackend(t)
	c := loggedInClient(t, b)

	page, err := c.ListTasks(ctx, service.ListParams{Page: 2, Limit: 10, Search: "  ", Status: service.StatusAll})
	require.NoError(t, err)
	assert.Len(t, page.Tasks, 10)
	assert.Equal(t, "11", page.Tasks[0].ID)
	assert.Equal(t, service.NewPaginationInfo(2, 10, 25), page.Pagination)

	q := b.LastQuery()
	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "10", q.Get("limit"))
	assert.False(t, q.Has("search"), "blank search is omitted")
	assert.False(t, q.Has("status"), "the all filter is omitted")

	page, err = c.ListTasks(ctx, service.ListParams{Page: 1, Limit: 10, Search: " task 1 ", Status: service.StatusTodo})
	require.NoError(t, err)
	assert.Equal(t, "task 1", b.LastQuery().Get("search"))
	assert.Equal(t, "todo", b.LastQuery().Get("status"))
	for _, task := range page.Tasks {
		assert.Equal(t, service.StatusTodo, task.Status)
		assert.Contains(t, task.Title, "Task 1")
	}
}

func TestClient_ListTasksBareArray(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	b.SetBareArray(true)
	c := loggedInClient(t, b)

	page, err := c.ListTasks(context.Background(), service.ListParams{Page: 1, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, page.Tasks, 5)
	assert.Equal(t, service.NewPaginationInfo(1, 5, 5), page.Pagination)
	assert.False(t, page.Pagination.HasNext)
}

func TestClient_TaskLifecycle(t *testing.T) {
	ctx := context.Background()
	b := testutil.NewFakeBackend(t)
	c := loggedInClient(t, b)

	created, err := c.CreateTask(ctx, service.CreateTaskRequest{
		Title:    "Write release notes",
		Status:   service.StatusTodo,
		Priority: service.PriorityHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, "26", created.ID)
	assert.Equal(t, "Write release notes", created.Title)

	done := service.StatusDone
	updated, err := c.UpdateTask(ctx, created.ID, service.TaskPatch{Status: &done})
	require.NoError(t, err)
	assert.Equal(t, service.StatusDone, updated.Status)
	assert.Equal(t, created.Title, updated.Title)

	require.NoError(t, c.DeleteTask(ctx, created.ID))
	assert.Len(t, b.Store.Tasks(), 25)
}

func TestClient_UnknownTask(t *testing.T) {
	ctx := context.Background()
	b := testutil.NewFakeBackend(t)
	c := loggedInClient(t, b)

	title := "Renamed"
	_, err := c.UpdateTask(ctx, "999", service.TaskPatch{Title: &title})
	assert.True(t, errors.Is(err, service.ErrNotFound))

	err = c.DeleteTask(ctx, "999")
	assert.True(t, errors.Is(err, service.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, transport.StatusCode(err))
}

func TestClient_ExpiredSessionRefreshesOnce(t *testing.T) {
	const n = 6
	b := testutil.NewFakeBackend(t)
	b.SetRefreshDelay(20 * time.Millisecond)
	c := loggedInClient(t, b)
	b.ExpireSession()

	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := c.ListTasks(context.Background(), service.ListParams{Page: 1, Limit: 10})
			return err
		})
	}

	require.NoError(t, g.Wait())
	assert.Equal(t, 1, b.Hits(http.MethodPost, "/auth/refresh"))
	assert.Equal(t, Idle, c.RefreshState())
}

func TestClient_RevokedRefreshEndsSession(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	c := loggedInClient(t, b)
	b.RevokeRefresh()

	_, err := c.ListTasks(context.Background(), service.ListParams{Page: 1, Limit: 10})

	assert.True(t, errors.Is(err, service.ErrUnauthenticated))
	assert.Equal(t, 1, b.Hits(http.MethodPost, "/auth/refresh"))
	assert.Equal(t, 1, b.Hits(http.MethodGet, "/tasks"))
}

func TestClient_RefreshThenThrottle(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	c := loggedInClient(t, b)
	b.FailNext(http.MethodGet, "/tasks", http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusTooManyRequests)
	b.FailNext(http.MethodPost, "/auth/refresh", http.StatusTooManyRequests)

	page, err := c.ListTasks(context.Background(), service.ListParams{Page: 1, Limit: 10})

	require.NoError(t, err)
	assert.Len(t, page.Tasks, 10)
	assert.Equal(t, 4, b.Hits(http.MethodGet, "/tasks"))
	assert.Equal(t, 2, b.Hits(http.MethodPost, "/auth/refresh"), "throttled refresh is replayed, not restarted")
}

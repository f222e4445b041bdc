package testutil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taskhub/internal/service"
)

const (
	SessionCookie = "session"
	RefreshCookie = "refresh"
)

// FakeBackend serves the TaskHub REST API under /api from an httptest
// server. Data lives in a FakeService; the backend adds cookie sessions,
// status codes and fault injection.
type FakeBackend struct {
	Store  *FakeService
	server *httptest.Server

	mu           sync.Mutex
	sessions     map[string]bool
	refreshes    map[string]bool
	failures     map[string][]int
	hits         map[string]int
	lastQuery    url.Values
	refreshDelay time.Duration
	bareArray    bool
}

// NewFakeBackend starts a backend seeded with 25 tasks. It is closed when
// the test ends.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := &FakeBackend{
		Store:     NewFakeService(),
		sessions:  make(map[string]bool),
		refreshes: make(map[string]bool),
		failures:  make(map[string][]int),
		hits:      make(map[string]int),
	}
	b.Store.SeedTasks(25)

	router := gin.New()
	api := router.Group("/api", b.faults)
	api.POST("/auth/login", b.login)
	api.POST("/auth/logout", b.logout)
	api.POST("/auth/refresh", b.refresh)

	authed := api.Group("", b.requireSession)
	authed.GET("/auth/me", b.me)
	authed.GET("/tasks", b.listTasks)
	authed.POST("/tasks", b.createTask)
	authed.PUT("/tasks/:id", b.updateTask)
	authed.DELETE("/tasks/:id", b.deleteTask)

	b.server = httptest.NewServer(router)
	t.Cleanup(b.server.Close)
	return b
}

// URL is the API base URL.
func (b *FakeBackend) URL() string {
	return b.server.URL + "/api"
}

// FailNext makes the next len(statuses) requests to method and path
// (relative to /api) fail with the given statuses, in order.
func (b *FakeBackend) FailNext(method, path string, statuses ...int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := method + " " + path
	b.failures[key] = append(b.failures[key], statuses...)
}

// ExpireSession invalidates every session cookie. Refresh cookies stay valid.
func (b *FakeBackend) ExpireSession() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions = make(map[string]bool)
}

// RevokeRefresh invalidates every session and refresh cookie.
func (b *FakeBackend) RevokeRefresh() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions = make(map[string]bool)
	b.refreshes = make(map[string]bool)
}

// SetRefreshDelay delays every refresh response by d.
func (b *FakeBackend) SetRefreshDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshDelay = d
}

// SetBareArray makes GET /tasks answer with a plain array of tasks.
func (b *FakeBackend) SetBareArray(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bareArray = v
}

// Hits returns how many requests reached method and path, including
// injected failures.
func (b *FakeBackend) Hits(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[method+" "+path]
}

// LastQuery returns the query string of the most recent GET /tasks.
func (b *FakeBackend) LastQuery() url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastQuery
}

func (b *FakeBackend) faults(c *gin.Context) {
	key := c.Request.Method + " " + strings.TrimPrefix(c.Request.URL.Path, "/api")

	b.mu.Lock()
	b.hits[key]++
	var status int
	if queue := b.failures[key]; len(queue) > 0 {
		status = queue[0]
		b.failures[key] = queue[1:]
	}
	b.mu.Unlock()

	if status != 0 {
		c.AbortWithStatusJSON(status, gin.H{"error": http.StatusText(status)})
		return
	}
	c.Next()
}

func (b *FakeBackend) requireSession(c *gin.Context) {
	token, err := c.Cookie(SessionCookie)
	b.mu.Lock()
	ok := err == nil && b.sessions[token]
	b.mu.Unlock()
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func (b *FakeBackend) issue(c *gin.Context, refresh bool) {
	session := uuid.NewString()
	b.mu.Lock()
	b.sessions[session] = true
	var refreshToken string
	if refresh {
		refreshToken = uuid.NewString()
		b.refreshes[refreshToken] = true
	}
	b.mu.Unlock()

	c.SetCookie(SessionCookie, session, 0, "/", "", false, true)
	if refresh {
		c.SetCookie(RefreshCookie, refreshToken, 0, "/", "", false, true)
	}
}

func (b *FakeBackend) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := b.Store.Login(c.Request.Context(), req.Email, req.Password); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid credentials"})
		return
	}
	b.issue(c, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (b *FakeBackend) logout(c *gin.Context) {
	if token, err := c.Cookie(SessionCookie); err == nil {
		b.mu.Lock()
		delete(b.sessions, token)
		b.mu.Unlock()
	}
	if token, err := c.Cookie(RefreshCookie); err == nil {
		b.mu.Lock()
		delete(b.refreshes, token)
		b.mu.Unlock()
	}
	_ = b.Store.Logout(c.Request.Context())
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.SetCookie(RefreshCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (b *FakeBackend) refresh(c *gin.Context) {
	token, err := c.Cookie(RefreshCookie)
	b.mu.Lock()
	ok := err == nil && b.refreshes[token]
	delay := b.refreshDelay
	b.mu.Unlock()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no session"})
		return
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-c.Request.Context().Done():
			return
		}
	}
	b.issue(c, false)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (b *FakeBackend) me(c *gin.Context) {
	user, err := b.Store.Me(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (b *FakeBackend) listTasks(c *gin.Context) {
	q := c.Request.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	b.mu.Lock()
	b.lastQuery = q
	bare := b.bareArray
	b.mu.Unlock()

	result, err := b.Store.ListTasks(c.Request.Context(), service.ListParams{
		Page:   page,
		Limit:  limit,
		Search: q.Get("search"),
		Status: service.Status(q.Get("status")),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if bare {
		c.JSON(http.StatusOK, result.Tasks)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (b *FakeBackend) createTask(c *gin.Context) {
	var req service.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := req.Normalize()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := b.Store.CreateTask(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (b *FakeBackend) updateTask(c *gin.Context) {
	var patch service.TaskPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := b.Store.UpdateTask(c.Request.Context(), c.Param("id"), patch)
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (b *FakeBackend) deleteTask(c *gin.Context) {
	err := b.Store.DeleteTask(c.Request.Context(), c.Param("id"))
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

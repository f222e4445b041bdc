package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"taskhub/internal/logging"
)

// FileJar is a cookie jar persisted to a file, so the session survives
// between CLI invocations. Only cookies visible to the base URL are saved.
type FileJar struct {
	mu   sync.Mutex
	jar  *cookiejar.Jar
	path string
	base *url.URL
	log  logrus.FieldLogger
}

type savedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type jarFile struct {
	Cookies []savedCookie `json:"cookies"`
}

// NewFileJar creates a jar for baseURL backed by path, loading any cookies
// already stored there. An empty path keeps cookies in memory only.
func NewFileJar(path, baseURL string, logger logrus.FieldLogger) (*FileJar, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}
	j := &FileJar{jar: jar, path: path, base: base, log: logger}
	if err := j.load(); err != nil {
		return nil, err
	}
	return j, nil
}

// SetCookies implements http.CookieJar and persists the result.
func (j *FileJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar.SetCookies(u, cookies)
	if err := j.save(); err != nil {
		j.log.WithError(err).Warn("failed to persist session cookies")
	}
}

// Cookies implements http.CookieJar.
func (j *FileJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// HasSession reports whether any cookie is stored for the base URL.
func (j *FileJar) HasSession() bool {
	return len(j.Cookies(j.base)) > 0
}

// Clear drops every cookie and removes the backing file.
func (j *FileJar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	j.jar = jar
	if j.path == "" {
		return nil
	}
	if err := os.Remove(j.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (j *FileJar) load() error {
	if j.path == "" {
		return nil
	}
	data, err := os.ReadFile(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(j.path), err)
	}
	var f jarFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid %s: %w", filepath.Base(j.path), err)
	}
	cookies := make([]*http.Cookie, 0, len(f.Cookies))
	for _, c := range f.Cookies {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	j.jar.SetCookies(j.base, cookies)
	return nil
}

// save must be called with mu held.
func (j *FileJar) save() error {
	if j.path == "" {
		return nil
	}
	current := j.jar.Cookies(j.base)
	if len(current) == 0 {
		if err := os.Remove(j.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	f := jarFile{Cookies: make([]savedCookie, 0, len(current))}
	for _, c := range current {
		f.Cookies = append(f.Cookies, savedCookie{Name: c.Name, Value: c.Value})
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0700); err != nil {
		return err
	}
	return os.WriteFile(j.path, data, 0600)
}

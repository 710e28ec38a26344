package platform

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileJar is a cookie jar persisted to a JSON file so the server session
// survives between runs. Cookies are replayed into a net/http/cookiejar
// on load, which keeps domain and path matching standard.
type FileJar struct {
	mu      sync.Mutex
	path    string
	jar     *cookiejar.Jar
	origins map[string][]storedCookie
	now     func() time.Time
}

type storedCookie struct {
	Name     string        `json:"name"`
	Value    string        `json:"value"`
	Path     string        `json:"path,omitempty"`
	Domain   string        `json:"domain,omitempty"`
	Expires  time.Time     `json:"expires,omitempty"`
	Secure   bool          `json:"secure,omitempty"`
	HttpOnly bool          `json:"http_only,omitempty"`
	SameSite http.SameSite `json:"same_site,omitempty"`
}

// OpenFileJar loads the jar at path. A missing file yields an empty jar.
func OpenFileJar(path string) (*FileJar, error) {
	return openFileJar(path, time.Now)
}

func openFileJar(path string, now func() time.Time) (*FileJar, error) {
	j := &FileJar{
		path:    path,
		origins: make(map[string][]storedCookie),
		now:     now,
	}
	j.reset()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return j, nil
		}
		return nil, fmt.Errorf("failed to read cookie jar: %w", err)
	}
	if err := json.Unmarshal(data, &j.origins); err != nil {
		return nil, fmt.Errorf("failed to parse cookie jar %s: %w", path, err)
	}

	current := j.now()
	for origin, cookies := range j.origins {
		u, err := url.Parse(origin)
		if err != nil {
			delete(j.origins, origin)
			continue
		}
		live := cookies[:0]
		for _, sc := range cookies {
			if !sc.Expires.IsZero() && !sc.Expires.After(current) {
				continue
			}
			live = append(live, sc)
		}
		if len(live) == 0 {
			delete(j.origins, origin)
			continue
		}
		j.origins[origin] = live
		j.jar.SetCookies(u, toHTTP(live))
	}
	return j, nil
}

func (j *FileJar) reset() {
	// cookiejar.New only fails on a broken PublicSuffixList option.
	jar, _ := cookiejar.New(nil)
	j.jar = jar
}

// SetCookies implements http.CookieJar and persists the change.
func (j *FileJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)

	origin := u.Scheme + "://" + u.Host
	stored := j.origins[origin]
	now := j.now()
	for _, c := range cookies {
		stored = removeCookie(stored, c.Name, c.Path)
		if c.MaxAge < 0 || (!c.Expires.IsZero() && !c.Expires.After(now)) {
			continue
		}
		sc := storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
			SameSite: c.SameSite,
		}
		if c.MaxAge > 0 {
			sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		stored = append(stored, sc)
	}
	if len(stored) == 0 {
		delete(j.origins, origin)
	} else {
		j.origins[origin] = stored
	}

	// http.CookieJar has no error path; a failed write only loses persistence.
	_ = j.saveLocked()
}

// Cookies implements http.CookieJar.
func (j *FileJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// HasSession reports whether any cookie would be sent to rawURL.
func (j *FileJar) HasSession(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return len(j.Cookies(u)) > 0
}

// Clear drops every cookie and removes the file.
func (j *FileJar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.origins = make(map[string][]storedCookie)
	j.reset()
	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cookie jar: %w", err)
	}
	return nil
}

func (j *FileJar) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := json.MarshalIndent(j.origins, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookie jar: %w", err)
	}
	if err := os.WriteFile(j.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write cookie jar: %w", err)
	}
	return nil
}

func removeCookie(cookies []storedCookie, name, path string) []storedCookie {
	out := cookies[:0]
	for _, c := range cookies {
		if c.Name == name && c.Path == path {
			continue
		}
		out = append(out, c)
	}
	return out
}

func toHTTP(cookies []storedCookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, sc := range cookies {
		out = append(out, &http.Cookie{
			Name:     sc.Name,
			Value:    sc.Value,
			Path:     sc.Path,
			Domain:   sc.Domain,
			Expires:  sc.Expires,
			Secure:   sc.Secure,
			HttpOnly: sc.HttpOnly,
			SameSite: sc.SameSite,
		})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketSession = []byte("session")
	bucketCookies = []byte("cookies")

	accessTokenKey = []byte("access_token")
)

// BoltTokenStore persists the access token and the session cookies in a
// bbolt file so a CLI session survives restarts. It also serves as the
// http.CookieJar of the client that uses it.
type BoltTokenStore struct {
	db *bbolt.DB

	mu  sync.Mutex
	jar *cookiejar.Jar
}

var (
	_ TokenStore     = (*BoltTokenStore)(nil)
	_ http.CookieJar = (*BoltTokenStore)(nil)
)

type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires"`
	Secure   bool      `json:"secure"`
	HttpOnly bool      `json:"http_only"`
}

// OpenBoltTokenStore opens or creates the store at path.
func OpenBoltTokenStore(path string) (*BoltTokenStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketSession, bucketCookies} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltTokenStore{db: db, jar: jar}
	if err := s.restoreCookies(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database file.
func (s *BoltTokenStore) Close() error {
	return s.db.Close()
}

func (s *BoltTokenStore) Load(context.Context) (string, error) {
	var token string
	err := s.db.View(func(tx *bbolt.Tx) error {
		token = string(tx.Bucket(bucketSession).Get(accessTokenKey))
		return nil
	})

	return token, err
}

func (s *BoltTokenStore) Save(_ context.Context, token string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSession).Put(accessTokenKey, []byte(token))
	})
}

// Clear forgets the access token and every stored cookie.
func (s *BoltTokenStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketSession).Delete(accessTokenKey); err != nil {
			return err
		}
		if err := tx.DeleteBucket(bucketCookies); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketCookies)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	s.jar = jar

	return nil
}

// SetCookies implements http.CookieJar.
func (s *BoltTokenStore) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jar.SetCookies(u, cookies)

	// Persisting is best-effort; the in-memory jar already holds the cookies.
	_ = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCookies)
		key := []byte(originKey(u))

		stored := map[string]storedCookie{}
		if data := bucket.Get(key); data != nil {
			if err := json.Unmarshal(data, &stored); err != nil {
				stored = map[string]storedCookie{}
			}
		}

		now := time.Now()
		for _, c := range cookies {
			expires := c.Expires
			switch {
			case c.MaxAge < 0:
				delete(stored, c.Name)
				continue
			case c.MaxAge > 0:
				expires = now.Add(time.Duration(c.MaxAge) * time.Second)
			}
			if !expires.IsZero() && !expires.After(now) {
				delete(stored, c.Name)
				continue
			}

			stored[c.Name] = storedCookie{
				Name:     c.Name,
				Value:    c.Value,
				Path:     c.Path,
				Expires:  expires,
				Secure:   c.Secure,
				HttpOnly: c.HttpOnly,
			}
		}

		data, err := json.Marshal(stored)
		if err != nil {
			return err
		}

		return bucket.Put(key, data)
	})
}

// Cookies implements http.CookieJar.
func (s *BoltTokenStore) Cookies(u *url.URL) []*http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.jar.Cookies(u)
}

func (s *BoltTokenStore) restoreCookies() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCookies).ForEach(func(k, v []byte) error {
			u, err := url.Parse(string(k))
			if err != nil {
				return nil
			}

			var stored map[string]storedCookie
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil
			}

			cookies := make([]*http.Cookie, 0, len(stored))
			for _, c := range stored {
				cookies = append(cookies, &http.Cookie{
					Name:     c.Name,
					Value:    c.Value,
					Path:     c.Path,
					Expires:  c.Expires,
					Secure:   c.Secure,
					HttpOnly: c.HttpOnly,
				})
			}
			s.jar.SetCookies(u, cookies)

			return nil
		})
	})
}

func originKey(u *url.URL) string {
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String()
}

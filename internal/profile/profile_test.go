package profile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	alice = "0x1111111111111111111111111111111111111111"
	bob   = "0x2222222222222222222222222222222222222222"
)

func TestNormalize(t *testing.T) {
	in := []string{
		"0x1111111111111111111111111111111111111111",
		"0X1111111111111111111111111111111111111111",
		"",
		"not-an-address",
		"0x0000000000000000000000000000000000000000",
		" 2222222222222222222222222222222222222222 ",
	}
	want := []string{alice, bob}
	if got := Normalize(in); !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize = %v, want %v", got, want)
	}
}

func neynar(t *testing.T, hits *atomic.Int32, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("api_key") != "test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		if r.URL.Path != "/user/bulk-by-address" {
			http.NotFound(w, r)
			return
		}
		addrs := strings.Split(r.URL.Query().Get("addresses"), ",")
		w.Header().Set("Content-Type", "application/json")
		body := "{"
		for _, a := range addrs {
			if a == alice {
				body += `"` + alice + `":[{"fid":42,"username":"alice","display_name":"Alice","pfp_url":"https://img/a.png"}]`
			}
		}
		w.Write([]byte(body + "}"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProfiles_OmitsMissing(t *testing.T) {
	var hits atomic.Int32
	srv := neynar(t, &hits, http.StatusOK)
	c := NewClient(Config{HTTPClient: srv.Client(), BaseURL: srv.URL, APIKey: "test-key"})

	got := c.Profiles(context.Background(), []string{strings.ToUpper(alice[2:]), bob})
	want := map[string]Profile{
		alice: {FID: 42, Username: "alice", DisplayName: "Alice", AvatarURL: "https://img/a.png"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Profiles = %+v, want %+v", got, want)
	}
}

func TestProfiles_ErrorYieldsEmpty(t *testing.T) {
	var hits atomic.Int32
	srv := neynar(t, &hits, http.StatusInternalServerError)
	c := NewClient(Config{HTTPClient: srv.Client(), BaseURL: srv.URL, APIKey: "test-key"})

	if got := c.Profiles(context.Background(), []string{alice}); len(got) != 0 {
		t.Errorf("expected empty result on upstream error, got %+v", got)
	}
}

func TestProfiles_EmptyInputSkipsUpstream(t *testing.T) {
	var hits atomic.Int32
	srv := neynar(t, &hits, http.StatusOK)
	c := NewClient(Config{HTTPClient: srv.Client(), BaseURL: srv.URL, APIKey: "test-key"})

	if got := c.Profiles(context.Background(), []string{"", "0x0000000000000000000000000000000000000000"}); len(got) != 0 {
		t.Errorf("expected empty result, got %+v", got)
	}
	if hits.Load() != 0 {
		t.Errorf("expected no upstream calls, got %d", hits.Load())
	}
}

func TestProfiles_Cache(t *testing.T) {
	var hits atomic.Int32
	srv := neynar(t, &hits, http.StatusOK)
	clock := clockwork.NewFakeClock()
	c := NewClient(Config{
		Clock:      clock,
		HTTPClient: srv.Client(),
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		CacheTTL:   time.Minute,
	})

	c.Profiles(context.Background(), []string{alice, bob})
	got := c.Profiles(context.Background(), []string{alice, bob})
	if hits.Load() != 1 {
		t.Errorf("expected one upstream call within TTL, got %d", hits.Load())
	}
	if _, ok := got[alice]; !ok || len(got) != 1 {
		t.Errorf("cached result should contain only alice, got %+v", got)
	}

	clock.Advance(time.Minute)
	c.Profiles(context.Background(), []string{alice})
	if hits.Load() != 2 {
		t.Errorf("expected refetch after TTL, got %d calls", hits.Load())
	}
}

func cached(c *Client) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

func TestProfiles_CacheEvictsExpired(t *testing.T) {
	var hits atomic.Int32
	srv := neynar(t, &hits, http.StatusOK)
	clock := clockwork.NewFakeClock()
	c := NewClient(Config{
		Clock:      clock,
		HTTPClient: srv.Client(),
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		CacheTTL:   time.Minute,
	})

	c.Profiles(context.Background(), []string{alice, bob})
	if n := cached(c); n != 2 {
		t.Fatalf("expected 2 cached entries, got %d", n)
	}

	clock.Advance(time.Minute)
	carol := "0x3333333333333333333333333333333333333333"
	c.Profiles(context.Background(), []string{carol})
	if n := cached(c); n != 1 {
		t.Errorf("expired entries should be evicted, %d left", n)
	}
	if got := c.Profiles(context.Background(), []string{carol}); len(got) != 0 || hits.Load() != 2 {
		t.Errorf("carol should be served from cache, got %+v after %d calls", got, hits.Load())
	}
}

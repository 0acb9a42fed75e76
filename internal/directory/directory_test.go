package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/zulandar/crewradar/internal/kv/kvtest"
	"github.com/zulandar/crewradar/internal/presence"
)

// graphServer serves a token endpoint and a minimal Graph surface.
func graphServer(t *testing.T, graph http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse token form: %v", err)
		}
		if r.Form.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q", r.Form.Get("grant_type"))
		}
		if r.Form.Get("client_secret") != "secret" {
			http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok-123","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/v1.0/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		graph(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := New(Opts{
		ClientID:     "client",
		ClientSecret: "secret",
		TokenURL:     srv.URL + "/token",
		GraphURL:     srv.URL + "/v1.0",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, &tokenCalls
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{}); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := New(Opts{ClientID: "a", ClientSecret: "b"}); err == nil {
		t.Error("expected error without token URL")
	}
	if _, err := New(Opts{ClientID: "a", ClientSecret: "b", TokenURL: "http://x"}); err == nil {
		t.Error("expected error without graph URL")
	}
}

func TestCheck(t *testing.T) {
	c, calls := graphServer(t, func(w http.ResponseWriter, r *http.Request) {})
	if err := c.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Errorf("token calls = %d, want 1", *calls)
	}
}

func TestCheck_BadSecret(t *testing.T) {
	c, _ := graphServer(t, func(w http.ResponseWriter, r *http.Request) {})
	c2, err := New(Opts{ClientID: "client", ClientSecret: "wrong", TokenURL: strings.TrimSuffix(c.graphURL, "/v1.0") + "/token", GraphURL: c.graphURL})
	if err != nil {
		t.Fatal(err)
	}
	if err := c2.Check(context.Background()); err == nil {
		t.Fatal("expected token error for bad secret")
	}
}

func TestUserIDByEmail(t *testing.T) {
	c, _ := graphServer(t, func(w http.ResponseWriter, r *http.Request) {
		filter := r.URL.Query().Get("$filter")
		switch filter {
		case "mail eq 'alice@acme.test'":
			fmt.Fprint(w, `{"value":[{"id":"g-alice","mail":"alice@acme.test"}]}`)
		case "mail eq 'o''brien@acme.test'":
			fmt.Fprint(w, `{"value":[{"id":"g-ob"}]}`)
		default:
			fmt.Fprint(w, `{"value":[]}`)
		}
	})

	ctx := context.Background()
	id, err := c.UserIDByEmail(ctx, "alice@acme.test")
	if err != nil || id != "g-alice" {
		t.Errorf("UserIDByEmail = %q, %v", id, err)
	}
	id, err = c.UserIDByEmail(ctx, "o'brien@acme.test")
	if err != nil || id != "g-ob" {
		t.Errorf("quoted email = %q, %v", id, err)
	}
	if _, err := c.UserIDByEmail(ctx, "ghost@acme.test"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUsersByDisplayName(t *testing.T) {
	c, _ := graphServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("ConsistencyLevel") != "eventual" {
			t.Errorf("ConsistencyLevel = %q", r.Header.Get("ConsistencyLevel"))
		}
		if got := r.URL.Query().Get("$search"); got != `"displayName:Alice Smith"` {
			t.Errorf("$search = %q", got)
		}
		fmt.Fprint(w, `{"value":[{"id":"g-1","displayName":"Alice Smith"},{"id":"g-2","displayName":"Alice Smith"}]}`)
	})
	users, err := c.UsersByDisplayName(context.Background(), "Alice Smith")
	if err != nil {
		t.Fatalf("UsersByDisplayName: %v", err)
	}
	if len(users) != 2 || users[1].ID != "g-2" {
		t.Errorf("users = %+v", users)
	}
}

func TestPresence(t *testing.T) {
	c, _ := graphServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1.0/users/g-1/presence":
			fmt.Fprint(w, `{"availability":"Busy","activity":"InAMeeting","sequenceNumber":"C9","workLocation":{"workLocationType":"remote"},"outOfOfficeSettings":{"isOutOfOffice":true}}`)
		case "/v1.0/users/g-2/presence":
			fmt.Fprint(w, `{"availability":"Available","activity":"Available","workLocation":"office"}`)
		default:
			http.NotFound(w, r)
		}
	})

	ctx := context.Background()
	sig, err := c.Presence(ctx, "g-1")
	if err != nil {
		t.Fatalf("Presence: %v", err)
	}
	want := presence.Signal{Availability: "Busy", Activity: "InAMeeting", Sequence: "C9", WorkLocation: "remote", OutOfOffice: true}
	if sig != want {
		t.Errorf("Presence = %+v, want %+v", sig, want)
	}
	sig, _ = c.Presence(ctx, "g-2")
	if sig.WorkLocation != "office" {
		t.Errorf("WorkLocation = %q, want office", sig.WorkLocation)
	}
	if _, err := c.Presence(ctx, "g-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

type countingSource struct {
	emailCalls, nameCalls int
	users                 []User
}

func (s *countingSource) UserIDByEmail(ctx context.Context, email string) (string, error) {
	s.emailCalls++
	if email == "ghost@acme.test" {
		return "", ErrNotFound
	}
	return "g-" + email, nil
}

func (s *countingSource) UsersByDisplayName(ctx context.Context, name string) ([]User, error) {
	s.nameCalls++
	return s.users, nil
}

func (s *countingSource) Presence(ctx context.Context, userID string) (presence.Signal, error) {
	return presence.Signal{Availability: "Available"}, nil
}

func TestCached_EmailLookup(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{}
	c := NewCached(src, kvtest.Open(t))

	for i := 0; i < 2; i++ {
		id, err := c.UserIDByEmail(ctx, "Alice@Acme.test")
		if err != nil || id != "g-Alice@Acme.test" {
			t.Fatalf("UserIDByEmail = %q, %v", id, err)
		}
	}
	if _, err := c.UserIDByEmail(ctx, "alice@acme.test"); err != nil {
		t.Fatal(err)
	}
	if src.emailCalls != 1 {
		t.Errorf("source calls = %d, want 1 (case-insensitive cache)", src.emailCalls)
	}

	for i := 0; i < 2; i++ {
		c.UserIDByEmail(ctx, "ghost@acme.test")
	}
	if src.emailCalls != 3 {
		t.Errorf("source calls = %d, want 3 (misses are not cached)", src.emailCalls)
	}
}

func TestCached_DisplayNameLookup(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{}
	c := NewCached(src, kvtest.Open(t))

	users, _ := c.UsersByDisplayName(ctx, "Bob")
	if len(users) != 0 {
		t.Fatalf("users = %+v", users)
	}
	src.users = []User{{ID: "g-bob"}}
	c.UsersByDisplayName(ctx, "Bob")
	users, _ = c.UsersByDisplayName(ctx, "bob")
	if len(users) != 1 || users[0].ID != "g-bob" {
		t.Errorf("users = %+v", users)
	}
	if src.nameCalls != 2 {
		t.Errorf("source calls = %d, want 2 (empty results are not cached)", src.nameCalls)
	}
}

package auth

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func testWhitelist() []User {
	return []User{
		{ID: "100", DisplayName: "Alice", Roles: []Role{RoleUser, RoleAdmin}},
		{ID: "200", DisplayName: "Bob", Roles: []Role{RoleUser}},
	}
}

func newTestGate(ttl time.Duration) *Gate {
	return NewGate(testWhitelist(), ttl)
}

func TestAuthorize_NotWhitelisted(t *testing.T) {
	g := newTestGate(time.Hour)

	_, err := g.Authorize("999", "")
	if !errors.Is(err, ErrNotWhitelisted) {
		t.Fatalf("Authorize() error = %v, want ErrNotWhitelisted", err)
	}
	if got := g.GetStats().RejectedNotWhitelisted; got != 1 {
		t.Errorf("RejectedNotWhitelisted = %d, want 1", got)
	}
}

func TestAuthorize_IssuesAndExtendsSession(t *testing.T) {
	g := newTestGate(time.Hour)
	base := time.Now()
	g.now = func() time.Time { return base }

	first, err := g.Authorize("100", "")
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if first.Token == "" || len(first.Token) != sessionTokenBytes*2 {
		t.Errorf("token = %q, want %d hex chars", first.Token, sessionTokenBytes*2)
	}

	// Activity 30 minutes later slides the expiry forward.
	base = base.Add(30 * time.Minute)
	second, err := g.Authorize("100", first.Token)
	if err != nil {
		t.Fatalf("Authorize(token) error = %v", err)
	}
	if second.Token != first.Token {
		t.Error("token changed on renewal, want the same session")
	}
	if !second.ExpiresAt.Equal(base.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", second.ExpiresAt, base.Add(time.Hour))
	}
}

func TestAuthorize_ExpiredSession(t *testing.T) {
	g := newTestGate(time.Hour)
	base := time.Now()
	g.now = func() time.Time { return base }

	first, _ := g.Authorize("100", "")

	base = base.Add(2 * time.Hour)
	if _, err := g.Authorize("100", first.Token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("Authorize(stale token) error = %v, want ErrSessionExpired", err)
	}

	// Without a token the user simply gets a fresh session.
	second, err := g.Authorize("100", "")
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if second.Token == first.Token {
		t.Error("expired session token was reused")
	}
}

func TestAuthorize_WrongToken(t *testing.T) {
	g := newTestGate(time.Hour)
	g.Authorize("100", "")

	if _, err := g.Authorize("100", "deadbeef"); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Authorize(wrong token) error = %v, want ErrSessionExpired", err)
	}
}

func TestAuthorize_ConcurrentSingleSession(t *testing.T) {
	g := newTestGate(time.Hour)

	var wg sync.WaitGroup
	tokens := make([]string, 20)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := g.Authorize("100", "")
			if err != nil {
				t.Errorf("Authorize() error = %v", err)
				return
			}
			tokens[i] = s.Token
		}(i)
	}
	wg.Wait()

	for _, tok := range tokens[1:] {
		if tok != tokens[0] {
			t.Fatal("concurrent authorize created more than one session for a user")
		}
	}
	if issued := g.GetStats().SessionsIssued; issued != 1 {
		t.Errorf("SessionsIssued = %d, want 1", issued)
	}
}

func TestRevoke(t *testing.T) {
	g := newTestGate(time.Hour)
	s, _ := g.Authorize("100", "")

	if !g.Revoke("100") {
		t.Fatal("Revoke() = false, want true")
	}
	if _, err := g.Authorize("100", s.Token); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Authorize(revoked token) error = %v, want ErrSessionExpired", err)
	}
}

func TestRevokeAll(t *testing.T) {
	g := newTestGate(time.Hour)
	g.Authorize("100", "")
	g.Authorize("200", "")

	if n := g.RevokeAll(); n != 2 {
		t.Errorf("RevokeAll() = %d, want 2", n)
	}
	if active := g.GetStats().ActiveSessions; active != 0 {
		t.Errorf("ActiveSessions = %d, want 0", active)
	}
}

func TestSweepExpired(t *testing.T) {
	g := newTestGate(time.Hour)
	base := time.Now()
	g.now = func() time.Time { return base }

	g.Authorize("100", "")
	g.Authorize("200", "")

	base = base.Add(2 * time.Hour)
	if n := g.SweepExpired(); n != 2 {
		t.Errorf("SweepExpired() = %d, want 2", n)
	}
	if n := g.SweepExpired(); n != 0 {
		t.Errorf("second SweepExpired() = %d, want 0", n)
	}
}

func TestHasRole(t *testing.T) {
	g := newTestGate(time.Hour)

	u, ok := g.User("100")
	if !ok {
		t.Fatal("User(100) not found")
	}
	if !u.HasRole(RoleAdmin) {
		t.Error("Alice should hold the admin role")
	}

	u, _ = g.User("200")
	if u.HasRole(RoleAdmin) {
		t.Error("Bob should not hold the admin role")
	}
}

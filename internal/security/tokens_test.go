package security

import (
	"testing"
	"time"
)

func TestIssueAndValidateAccess(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	id := TokenIdentity{SessionID: "sess-1", UserID: "user-1", Email: "a@b.com", Name: "Ana"}
	token, jti, exp, err := p.IssueAccess(id)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if token == "" || jti == "" {
		t.Fatal("IssueAccess returned empty token or jti")
	}
	if !exp.After(time.Now()) {
		t.Errorf("expiry %v should be in the future", exp)
	}
	got, err := p.ValidateAccess(token)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if *got != id {
		t.Errorf("identity roundtrip: got %+v, want %+v", got, id)
	}
}

func TestIssueAndValidateRefresh(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, jti, _, err := p.IssueRefresh("sess-1", "user-1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	sessionID, gotJti, userID, err := p.ValidateRefresh(token)
	if err != nil {
		t.Fatalf("ValidateRefresh: %v", err)
	}
	if sessionID != "sess-1" || userID != "user-1" || gotJti != jti {
		t.Errorf("got session=%q jti=%q user=%q", sessionID, gotJti, userID)
	}
}

func TestValidateAccess_Garbage(t *testing.T) {
	p, _ := NewTestTokenProvider()
	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := p.ValidateAccess(tok); err == nil {
			t.Errorf("ValidateAccess(%q) should fail", tok)
		}
	}
}

func TestValidateRefresh_WrongIssuer(t *testing.T) {
	p, _ := NewTestTokenProvider()
	other := newTestProviderSharingKey(p, "other-issuer", TestAudience)
	token, _, _, err := other.IssueRefresh("sess-1", "user-1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if _, _, _, err := p.ValidateRefresh(token); err == nil {
		t.Fatal("ValidateRefresh should reject token with wrong issuer")
	}
}

func TestValidateAccess_WrongKey(t *testing.T) {
	p, _ := NewTestTokenProvider()
	stranger, _ := NewTestTokenProvider()
	token, _, _, err := stranger.IssueAccess(TokenIdentity{SessionID: "sess-1", UserID: "user-1"})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.ValidateAccess(token); err == nil {
		t.Fatal("ValidateAccess should reject a token signed with a different key")
	}
}

func TestRefreshTokenHash(t *testing.T) {
	h := HashRefreshToken("tok-1")
	if h == "" || h == HashRefreshToken("tok-2") {
		t.Fatal("hash should be non-empty and distinct per token")
	}
	if !RefreshTokenHashEqual("tok-1", h) {
		t.Error("RefreshTokenHashEqual should match the original token")
	}
	if RefreshTokenHashEqual("tok-2", h) {
		t.Error("RefreshTokenHashEqual should reject a different token")
	}
}

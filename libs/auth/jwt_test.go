package auth

import (
	"testing"
	"time"
)

func TestHS256RoundTrip(t *testing.T) {
	claims := Claims{
		Sub:         "user-1",
		Role:        "staff",
		Permissions: map[string]bool{"appointments": true},
		Iat:         time.Now().Unix(),
		Exp:         time.Now().Add(1 * time.Hour).Unix(),
	}
	secret := "test-secret"

	token, err := SignHS256(claims, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	parsed, err := ParseAndVerifyHS256(token, secret)
	if err != nil {
		t.Fatalf("ParseAndVerifyHS256 failed: %v", err)
	}
	if parsed.Sub != claims.Sub || parsed.Role != claims.Role {
		t.Fatalf("claims mismatch: got %+v", parsed)
	}
	if !parsed.Permissions["appointments"] {
		t.Fatal("expected appointments permission to survive the round trip")
	}
	if _, err := ParseAndVerifyHS256(token, "wrong-secret"); err == nil {
		t.Fatal("expected verification error with wrong secret")
	}
}

func TestHS256RejectsExpired(t *testing.T) {
	claims := Claims{
		Sub: "user-2",
		Exp: time.Now().Add(-1 * time.Minute).Unix(),
	}
	token, err := SignHS256(claims, "s")
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	if _, err := ParseAndVerifyHS256(token, "s"); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestAllowed(t *testing.T) {
	admin := Claims{Role: "admin"}
	if !admin.Allowed("sales") {
		t.Fatal("admin should bypass permission flags")
	}
	staff := Claims{Role: "staff", Permissions: map[string]bool{"appointments": true}}
	if !staff.Allowed("appointments") {
		t.Fatal("staff with flag should be allowed")
	}
	if staff.Allowed("sales") {
		t.Fatal("staff without flag should be denied")
	}
}

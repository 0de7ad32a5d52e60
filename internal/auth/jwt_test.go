package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestHashAndCheckAdminKey(t *testing.T) {
	key := "wipe-everything"
	hash, err := HashAdminKey(key)
	if err != nil {
		t.Fatalf("HashAdminKey failed: %v", err)
	}

	if err := CheckAdminKey(hash, key); err != nil {
		t.Fatalf("CheckAdminKey failed when key should match: %v", err)
	}

	if err := CheckAdminKey(hash, "wrong"); err == nil {
		t.Fatal("CheckAdminKey succeeded when it should have failed")
	}
}

func TestJWTManager_GenerateAndVerify(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute)

	token, exp, err := m.GenerateToken("user-1", " Joao ", "technical")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry should be in the future, got %v", exp)
	}

	claims, err := m.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}

	if claims.Name != "Joao" || claims.Role != "TECHNICAL" || claims.Subject != "user-1" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

func TestJWTManager_RejectsWrongSecret(t *testing.T) {
	token, _, err := NewJWTManager("secret-a", time.Minute).GenerateToken("u", "Ana", "CUSTOMER")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := NewJWTManager("secret-b", time.Minute).VerifyToken(token); err == nil {
		t.Fatal("expected verification to fail with a different secret")
	}
}

func TestJWTManager_RejectsExpired(t *testing.T) {
	m := NewJWTManager("test-secret", -time.Minute)
	token, _, err := m.GenerateToken("u", "Ana", "CUSTOMER")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := m.VerifyToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestJWTManager_RejectsNoneAlg(t *testing.T) {
	claims := &Claims{Name: "Mallory", Role: "ADMIN"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("building unsigned token failed: %v", err)
	}
	if _, err := NewJWTManager("test-secret", time.Minute).VerifyToken(token); err == nil {
		t.Fatal("expected unsigned token to be rejected")
	}
}

func TestJWTManager_Rotation(t *testing.T) {
	// create a manager with two keys and active kid "k2"
	keys := map[string]string{"k1": "secret-one", "k2": "secret-two"}
	m := NewJWTManagerFromKeys(keys, "k2", 5*time.Minute)

	// token created with active kid (k2)
	tkn2, _, err := m.GenerateToken("u", "Ana", "CUSTOMER")
	if err != nil {
		t.Fatalf("GenerateToken (k2) failed: %v", err)
	}

	// verify works (should pick k2 via kid header)
	if _, err := m.VerifyToken(tkn2); err != nil {
		t.Fatalf("VerifyToken (k2) failed: %v", err)
	}

	// A token signed by the older key emulates one issued before rotation.
	mOld := NewJWTManagerFromKeys(keys, "k1", 5*time.Minute)
	tkn1, _, err := mOld.GenerateToken("u", "Ana", "CUSTOMER")
	if err != nil {
		t.Fatalf("GenerateToken (k1) failed: %v", err)
	}

	// Current manager should still verify tokens signed with older key k1
	if _, err := m.VerifyToken(tkn1); err != nil {
		t.Fatalf("VerifyToken (old k1) failed: %v", err)
	}

	// Once k1 is retired its tokens stop verifying
	retired := NewJWTManagerFromKeys(map[string]string{"k2": "secret-two"}, "k2", 5*time.Minute)
	if _, err := retired.VerifyToken(tkn1); err == nil || !strings.Contains(err.Error(), "k1") {
		t.Fatalf("expected unknown key id error, got %v", err)
	}
}

func TestJWTManager_MissingActiveKey(t *testing.T) {
	m := NewJWTManagerFromKeys(map[string]string{"k1": "s"}, "k9", time.Minute)
	if _, _, err := m.GenerateToken("u", "Ana", "CUSTOMER"); err == nil {
		t.Fatal("expected error for missing active key")
	}
}

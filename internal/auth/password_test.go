package auth

import (
	"strings"
	"testing"
)

// Cost 4 is the bcrypt minimum — keeps the test suite fast.
const testCost = 4

func TestHashAndVerify(t *testing.T) {
	ps := NewPasswordServiceForTest(testCost)

	hash, err := ps.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "" {
		t.Fatal("Hash() returned empty string")
	}
	if hash == "correct horse battery staple" {
		t.Fatal("Hash() returned the plaintext")
	}

	if err := ps.Verify(hash, "correct horse battery staple"); err != nil {
		t.Errorf("Verify() with correct password: %v", err)
	}
	if err := ps.Verify(hash, "wrong password"); err == nil {
		t.Error("Verify() with wrong password should fail")
	}
}

func TestHashProducesDifferentOutputs(t *testing.T) {
	ps := NewPasswordServiceForTest(testCost)

	h1, err := ps.Hash("same password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	h2, err := ps.Hash("same password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	// bcrypt salts every hash, so two hashes of the same input must differ
	if h1 == h2 {
		t.Error("two hashes of the same password should not be equal")
	}
}

func TestHashRejectsOverlongPassword(t *testing.T) {
	ps := NewPasswordServiceForTest(testCost)

	_, err := ps.Hash(strings.Repeat("x", 73))
	if err == nil {
		t.Error("Hash() should reject passwords longer than 72 bytes")
	}
}

func TestVerifyGarbageHash(t *testing.T) {
	ps := NewPasswordServiceForTest(testCost)

	if err := ps.Verify("not-a-bcrypt-hash", "anything"); err == nil {
		t.Error("Verify() should fail for a malformed hash")
	}
}

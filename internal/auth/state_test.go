package auth

import (
	"strings"
	"testing"
)

const testStateSecret = "test-secret-at-least-16-chars!!"

func TestNewStateService_ShortSecret(t *testing.T) {
	if _, err := NewStateService("short"); err == nil {
		t.Error("NewStateService() should reject secrets shorter than 16 characters")
	}
}

func TestStateIssueAndVerify(t *testing.T) {
	ss, err := NewStateService(testStateSecret)
	if err != nil {
		t.Fatalf("NewStateService() error = %v", err)
	}

	state, err := ss.Issue()
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if state == "" {
		t.Fatal("Issue() returned empty state")
	}

	if err := ss.Verify(state); err != nil {
		t.Errorf("Verify() on freshly issued state: %v", err)
	}
}

func TestStateVerify_Tampered(t *testing.T) {
	ss, _ := NewStateService(testStateSecret)

	state, err := ss.Issue()
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	// Flip the signature segment
	parts := strings.Split(state, ".")
	if len(parts) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "." + "AAAA" + parts[2][4:]

	if err := ss.Verify(tampered); err == nil {
		t.Error("Verify() should reject a tampered state")
	}
}

func TestStateVerify_WrongSecret(t *testing.T) {
	ss1, _ := NewStateService(testStateSecret)
	ss2, _ := NewStateService("a-different-secret-16-chars-long")

	state, err := ss1.Issue()
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if err := ss2.Verify(state); err == nil {
		t.Error("Verify() should reject a state signed with a different secret")
	}
}

func TestStateVerify_Garbage(t *testing.T) {
	ss, _ := NewStateService(testStateSecret)

	if err := ss.Verify("this.is.garbage"); err == nil {
		t.Error("Verify() should reject garbage input")
	}
}

func TestStateValuesAreUnique(t *testing.T) {
	ss, _ := NewStateService(testStateSecret)

	s1, err := ss.Issue()
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	s2, err := ss.Issue()
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if s1 == s2 {
		t.Error("two issued states should carry different nonces")
	}
}

package encryption

import "testing"

func TestEncryptDecrypt(t *testing.T) {
	svc, err := NewService("test-key")
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ct, err := svc.Encrypt("access-token-1")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if ct == "access-token-1" {
		t.Fatalf("ciphertext equals plaintext")
	}
	pt, err := svc.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if pt != "access-token-1" {
		t.Fatalf("plaintext=%q want=access-token-1", pt)
	}

	other, _ := NewService("other-key")
	if _, err := other.Decrypt(ct); err == nil {
		t.Fatalf("expected decrypt with wrong key to fail")
	}
}

func TestNewServiceRequiresKey(t *testing.T) {
	if _, err := NewService(""); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

package security

import "testing"

func TestValidatePasswordPolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "valid", password: "Password!1", wantErr: false},
		{name: "valid_minimum_length", password: "Abcdef!g", wantErr: false},
		{name: "too_short", password: "Abc!d", wantErr: true},
		{name: "too_long", password: "Abcdefgh!Abcdefgh", wantErr: true},
		{name: "missing_uppercase", password: "password!1", wantErr: true},
		{name: "missing_symbol", password: "Password11", wantErr: true},
		{name: "empty", password: "", wantErr: true},
		{name: "symbol_from_full_set", password: `Abcdefg?`, wantErr: false},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePasswordPolicy(tt.password)

			if tt.wantErr && err == nil {
				t.Fatalf("expected error for %q, got nil", tt.password)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("expected no error for %q, got %v", tt.password, err)
			}
		})
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Password!1")

	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	if hash == "Password!1" {
		t.Fatal("hash must not equal the plaintext")
	}

	if err := CheckPassword(hash, "Password!1"); err != nil {
		t.Fatalf("check failed for correct password: %v", err)
	}

	if err := CheckPassword(hash, "Wrong!pass1"); err == nil {
		t.Fatal("check passed for wrong password")
	}
}

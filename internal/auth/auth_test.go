package auth

import (
	"errors"
	"testing"

	"github.com/danmuck/wardctl/internal/protocol"
)

func TestStaticTokenVerify(t *testing.T) {
	ident := Identity{Username: "ward1", Role: protocol.RoleAgent}
	tests := []struct {
		name    string
		stored  string
		input   string
		wantErr error
	}{
		{name: "empty token denied", stored: "", input: "abc", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "abc", input: "abc", wantErr: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := (StaticToken{Token: tc.stored, Identity: ident}).Verify(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
			if err == nil && got != ident {
				t.Fatalf("expected identity %+v, got %+v", ident, got)
			}
		})
	}
}

func TestFuncVerifier(t *testing.T) {
	verifier := FuncVerifier(func(token string) (Identity, error) {
		if token != "ok" {
			return Identity{}, ErrUnauthorized
		}
		return Identity{Username: "overseer", Role: protocol.RoleController}, nil
	})

	if _, err := verifier.Verify("bad"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for bad token, got %v", err)
	}
	ident, err := verifier.Verify("ok")
	if err != nil {
		t.Fatalf("expected success for ok token, got %v", err)
	}
	if ident.Role != protocol.RoleController {
		t.Fatalf("unexpected identity: %+v", ident)
	}
}

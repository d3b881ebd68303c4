package token

import (
	"encoding/base32"
	"strings"
	"testing"
)

func TestGenerate_Shape(t *testing.T) {
	t.Parallel()

	tok, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(tok) != EncodedLen {
		t.Fatalf("len(token)=%d want=%d", len(tok), EncodedLen)
	}
	if tok != strings.ToLower(tok) {
		t.Fatalf("token must be lowercase: %q", tok)
	}
	if strings.Contains(tok, "=") {
		t.Fatalf("token must be unpadded: %q", tok)
	}
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(tok))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raw) != Bytes {
		t.Fatalf("decoded %d bytes want=%d", len(raw), Bytes)
	}
	if !Valid(tok) {
		t.Fatalf("Valid(%q)=false", tok)
	}
}

func TestGenerate_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 512)
	for i := 0; i < 512; i++ {
		tok := MustGenerate()
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token after %d draws", i)
		}
		seen[tok] = struct{}{}
	}
}

func TestDeriveLookupID(t *testing.T) {
	t.Parallel()

	// sha256("abc")
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := DeriveLookupID("abc"); got != want {
		t.Fatalf("DeriveLookupID(abc)=%q want=%q", got, want)
	}

	tok := MustGenerate()
	a, b := DeriveLookupID(tok), DeriveLookupID(tok)
	if a != b {
		t.Fatalf("lookup id not deterministic: %q vs %q", a, b)
	}
	if len(a) != LookupIDLen {
		t.Fatalf("len(lookup)=%d want=%d", len(a), LookupIDLen)
	}
	if strings.Contains(a, tok) {
		t.Fatalf("lookup id must not contain the token")
	}
}

func TestValid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want bool
	}{
		{in: "", want: false},
		{in: strings.Repeat("a", 31), want: false},
		{in: strings.Repeat("a", 33), want: false},
		{in: strings.Repeat("A", 32), want: false},
		{in: strings.Repeat("1", 32), want: false},
		{in: strings.Repeat("a", 31) + "=", want: false},
		{in: strings.Repeat("a2", 16), want: true},
	}
	for _, tc := range cases {
		if got := Valid(tc.in); got != tc.want {
			t.Fatalf("Valid(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}

func TestShortID(t *testing.T) {
	t.Parallel()

	if got := ShortID("abcdef0123456789"); got != "abcdef01" {
		t.Fatalf("ShortID=%q", got)
	}
	if got := ShortID("abc"); got != "abc" {
		t.Fatalf("ShortID=%q", got)
	}
}

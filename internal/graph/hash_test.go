package graph

import (
	"fmt"
	"testing"
)

func TestComputeHash_Deterministic(t *testing.T) {
	h1 := ComputeHash("func Foo(x int) int", "return x + 1", "Foo adds one.")
	h2 := ComputeHash("func Foo(x int) int", "return x + 1", "Foo adds one.")
	if h1 != h2 {
		t.Fatalf("hash not deterministic: %s vs %s", h1, h2)
	}
}

func TestComputeHash_Length(t *testing.T) {
	cases := []struct {
		sig, body, doc string
	}{
		{"func Bar()", "", ""},
		{"", "", ""},
		{"def login(email: str, pw: str) -> Token", "return issue(email, pw)", "Log a user in."},
	}
	for _, tc := range cases {
		h := ComputeHash(tc.sig, tc.body, tc.doc)
		if len(h) != HashLen {
			t.Errorf("ComputeHash(%q, ...) = %q, want length %d", tc.sig, h, HashLen)
		}
	}
}

func TestComputeHash_EachInputMatters(t *testing.T) {
	base := ComputeHash("func Foo(x int) int", "return x + 1", "doc")
	if ComputeHash("func Foo(x int64) int64", "return x + 1", "doc") == base {
		t.Error("signature change did not change hash")
	}
	if ComputeHash("func Foo(x int) int", "return x + 2", "doc") == base {
		t.Error("body change did not change hash")
	}
	if ComputeHash("func Foo(x int) int", "return x + 1", "other doc") == base {
		t.Error("docstring change did not change hash")
	}
}

func TestComputeHash_SeparatorPreventsFieldBleed(t *testing.T) {
	// Without separators "ab"+"c" and "a"+"bc" would collide.
	h1 := ComputeHash("ab", "c", "")
	h2 := ComputeHash("a", "bc", "")
	if h1 == h2 {
		t.Fatal("field boundaries are not separated in the hash input")
	}
}

func TestComputeHashDisambiguated_Differs(t *testing.T) {
	plain := ComputeHash("func Foo()", "{}", "")
	disambiguated := ComputeHashDisambiguated("func Foo()", "{}", "", "src/a.go")
	if plain == disambiguated {
		t.Fatal("disambiguated hash equals plain hash")
	}
	if len(disambiguated) != HashLen {
		t.Fatalf("disambiguated hash length = %d, want %d", len(disambiguated), HashLen)
	}
}

func TestBase62Encode_ZeroPadding(t *testing.T) {
	if got := base62Encode(0); got != "00000000000" {
		t.Errorf("base62Encode(0) = %q", got)
	}
	if got := base62Encode(1); len(got) != HashLen {
		t.Errorf("base62Encode(1) length = %d", len(got))
	}
}

func TestNearDuplicateSignatures_AllDistinct(t *testing.T) {
	// Synthetic near-duplicates must remain pairwise distinct.
	seen := make(map[string]string)
	for i := 0; i < 200; i++ {
		sig := fmt.Sprintf("func Handle%03d(req Request) error", i)
		h := ComputeHash(sig, "return nil", "")
		if prior, dup := seen[h]; dup {
			t.Fatalf("hash %s shared by %q and %q", h, prior, sig)
		}
		seen[h] = sig
	}
}

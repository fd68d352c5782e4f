package graph

import (
	"github.com/cespare/xxhash/v2"
)

const base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// HashLen is the fixed length of every node content hash.
const HashLen = 11

// base62Encode renders a 64-bit value as an 11-character base62 string,
// zero-padded on the left.
func base62Encode(value uint64) string {
	if value == 0 {
		return "00000000000"
	}
	buf := make([]byte, 0, HashLen)
	for value > 0 {
		buf = append(buf, base62Chars[value%62])
		value /= 62
	}
	for len(buf) < HashLen {
		buf = append(buf, '0')
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

// ComputeHash derives the content address of a function/class node:
//
//	base62(xxhash64(canonicalSignature + body + docstring))
//
// The signature is the normalized declaration, the body is structurally
// normalized so reformatting alone never changes the hash, and the
// docstring is included so documentation edits do change it.
func ComputeHash(canonicalSignature, normalizedBody, docstring string) string {
	d := xxhash.New()
	_, _ = d.WriteString(canonicalSignature)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(normalizedBody)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(docstring)
	return base62Encode(d.Sum64())
}

// ComputeHashDisambiguated mixes the file path into the hash input. Used
// when a freshly computed hash collides with a different logical entity.
func ComputeHashDisambiguated(canonicalSignature, normalizedBody, docstring, filePath string) string {
	d := xxhash.New()
	_, _ = d.WriteString(canonicalSignature)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(normalizedBody)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(docstring)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(filePath)
	return base62Encode(d.Sum64())
}

// DisambiguateHash recomputes a colliding hash with a disambiguator
// derived from the owning file path. Used at store write time when the
// original hash inputs are no longer available.
func DisambiguateHash(hash, filePath string) string {
	d := xxhash.New()
	_, _ = d.WriteString(hash)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(filePath)
	return base62Encode(d.Sum64())
}

// ContentHash64 hashes raw file content for change detection and
// resolver-cache keys.
func ContentHash64(content []byte) uint64 {
	return xxhash.Sum64(content)
}

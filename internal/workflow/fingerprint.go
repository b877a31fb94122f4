package workflow

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// DomainGraph is the domain prefix for graph fingerprints.
// The version suffix allows a future algorithm change without silently
// matching old digests.
const DomainGraph = "flowsync/graph/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The NUL separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes the content digest of a graph: SHA-256 over the
// canonical JSON of its nodes and edges, hex encoded (64 characters).
//
// Object keys inside nodes are sorted, so map iteration order never
// matters. Node and edge order is preserved, so two graphs holding the
// same nodes in a different order have different fingerprints. Zoom is
// editor view state and is excluded.
func Fingerprint(g Graph) (string, error) {
	nodes := g.Nodes
	if nodes == nil {
		nodes = []Node{}
	}
	edges := g.Edges
	if edges == nil {
		edges = []Edge{}
	}

	data, err := json.Marshal(struct {
		Nodes []Node `json:"nodes"`
		Edges []Edge `json:"edges"`
	}{nodes, edges})
	if err != nil {
		return "", fmt.Errorf("fingerprint: marshal graph: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return "", fmt.Errorf("fingerprint: decode graph: %w", err)
	}

	canonical, err := MarshalCanonical(generic)
	if err != nil {
		return "", fmt.Errorf("fingerprint: canonicalize graph: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when the graph is known to be encodable.
func MustFingerprint(g Graph) string {
	fp, err := Fingerprint(g)
	if err != nil {
		panic(err)
	}
	return fp
}

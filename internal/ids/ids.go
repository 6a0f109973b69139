// Package ids centralizes id generation and canonical hashing for Kenny so
// every component derives ids and hashes the same way: random UUIDs for
// entities created fresh (plans, jobs), deterministic content hashes for
// anything that must be reproducible across re-ingestion (chunk ids,
// synthetic source ids, the plan operation hash).
package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// New returns a random v4 UUID string, used for Document, Plan and Job ids.
func New() string {
	return uuid.NewString()
}

// ChunkID derives a deterministic chunk id from its document and start
// offset: hash(document_id || offset). A pure function of
// (document_id, start_offset).
func ChunkID(documentID string, startOffset int) string {
	h := sha256.New()
	h.Write([]byte(documentID))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(startOffset)))
	return hex.EncodeToString(h.Sum(nil))
}

// SyntheticSourceID derives a stable source id when an extractor cannot
// supply one, hashing whatever fields the extractor considers normalizable
// for that record.
func SyntheticSourceID(sourceApp, kind, title, content string) string {
	h := sha256.New()
	h.Write([]byte(sourceApp))
	h.Write([]byte{0})
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return "synthetic:" + hex.EncodeToString(h.Sum(nil))
}

// MutatingStep is the minimal shape CanonicalHash needs from a plan step;
// internal/plan converts its richer Step values into this shape before
// hashing.
type MutatingStep struct {
	ToolName  string
	Arguments map[string]any
}

// CanonicalHash computes the plan operation hash: SHA-256 over
// join("|", for each mutating step: "{tool}:{k1}={v1}&{k2}={v2}...")
// with keys sorted ascending and values JSON-marshaled so nested structures
// canonicalize deterministically. Planner and verifier MUST call this same
// function so there is no drift between dry-run and confirm.
func CanonicalHash(steps []MutatingStep) string {
	parts := make([]string, 0, len(steps))
	for _, step := range steps {
		keys := make([]string, 0, len(step.Arguments))
		for k := range step.Arguments {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			v, err := json.Marshal(step.Arguments[k])
			if err != nil {
				v = []byte(fmt.Sprintf("%v", step.Arguments[k]))
			}
			pairs = append(pairs, k+"="+string(v))
		}
		parts = append(parts, step.ToolName+":"+strings.Join(pairs, "&"))
	}
	canonical := strings.Join(parts, "|")

	h := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(h[:])
}

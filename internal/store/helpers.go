package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// encodeJSONArray stores a []string as JSON text; nil encodes as "[]" so
// reads never have to special-case NULL vs empty.
func encodeJSONArray(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// decodeJSONArray decodes a JSON array column. A decode failure yields an
// empty slice (logged) rather than propagating — spec §4.1: "decoding
// failures yield an empty array (logged) — never a crash."
func decodeJSONArray(raw string, log *zap.Logger) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		if log != nil {
			log.Warn("store: corrupt JSON array column, returning empty", zap.Error(err))
		}
		return nil
	}
	return out
}

// encodeEmbedding / decodeEmbedding handle the TEXT column used by the
// in-process cosine fallback (spec §4.2): embeddings are stored as
// JSON-encoded []float32 alongside whatever native vector table exists.
func encodeEmbedding(v []float32) *string {
	if len(v) == 0 {
		return nil
	}
	b, _ := json.Marshal(v)
	s := string(b)
	return &s
}

func decodeEmbedding(raw *string, log *zap.Logger) []float32 {
	if raw == nil || *raw == "" {
		return nil
	}
	var out []float32
	if err := json.Unmarshal([]byte(*raw), &out); err != nil {
		if log != nil {
			log.Warn("store: corrupt embedding JSON, dropping", zap.Error(err))
		}
		return nil
	}
	return out
}

// hashNormalized fingerprints narrative text for duplicate detection —
// same idea as the predecessor's normalized-hash dedupe window, generalized
// by internal/processor into the graded similarity score SPEC_FULL.md §9
// describes. Nothing in the current code calls it.
func hashNormalized(content string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(content), " "))
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:])
}

func dedupeWindowExpression(window time.Duration) string {
	if window <= 0 {
		window = 15 * time.Minute
	}
	minutes := int(window.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return "-" + strconv.Itoa(minutes) + " minutes"
}

// privateTagRegex strips <private>...</private> spans before anything is
// persisted, so secrets captured in raw tool output never reach disk.
var privateTagRegex = regexp.MustCompile(`(?is)<private>.*?</private>`)

func stripPrivateTags(s string) string {
	return strings.TrimSpace(privateTagRegex.ReplaceAllString(s, "[REDACTED]"))
}

// sanitizeFTS wraps each word in quotes so FTS5 doesn't choke on operators
// or punctuation in free-text queries: "fix auth bug" -> `"fix" "auth" "bug"`.
func sanitizeFTS(query string) string {
	words := strings.Fields(query)
	if len(words) == 0 {
		return `""`
	}
	for i, w := range words {
		w = strings.Trim(w, `"`)
		words[i] = `"` + w + `"`
	}
	return strings.Join(words, " ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "... [truncated]"
}

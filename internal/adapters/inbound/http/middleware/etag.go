package middleware

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ETagGenerator derives strong validators from response bodies.
type ETagGenerator struct{}

func NewETagGenerator() *ETagGenerator {
	return &ETagGenerator{}
}

// Generate returns the quoted xxhash of content.
func (g *ETagGenerator) Generate(content []byte) string {
	return `"` + strconv.FormatUint(xxhash.Sum64(content), 16) + `"`
}

// Matches reports whether an If-None-Match header value names etag. Weak
// comparison is used, as RFC 9110 requires for If-None-Match.
func (g *ETagGenerator) Matches(ifNoneMatch, etag string) bool {
	if strings.TrimSpace(ifNoneMatch) == "*" {
		return true
	}

	for candidate := range strings.SplitSeq(ifNoneMatch, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == etag {
			return true
		}
	}

	return false
}

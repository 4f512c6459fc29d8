package cache

import (
	"encoding/hex"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// Key namespaces.
const (
	ChatPrefix    = "chat:"
	ArticlePrefix = "article:"
)

// digestLength is the number of hex characters kept from a key digest.
const digestLength = 16

const trailingPunctuation = "?!.,;:"

// Normalize canonicalizes a chat message for keying: lowercase, trimmed,
// trailing punctuation removed, internal whitespace runs collapsed.
func Normalize(message string) string {
	s := strings.ToLower(message)
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimRight(s, trailingPunctuation+" ")
}

// ChatKey derives the cache key for a chat turn.
func ChatKey(message, conversationContext string) string {
	return ChatPrefix + digest(Normalize(message)+"|"+conversationContext)
}

// ArticleKey derives the ingestion dedup key for a raw url.
func ArticleKey(url string) string {
	return ArticlePrefix + digest(url)
}

func digest(s string) string {
	h, _ := blake2b.New(32, nil)
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))[:digestLength]
}

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// RateLimitKey is the sliding-window request counter for one credential prefix.
func RateLimitKey(tokenPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", tokenPrefix)
}

// FrequencyKey addresses a cached word-frequency result.
func FrequencyKey(requestHash string) string {
	return fmt.Sprintf("wordfreq:%s", requestHash)
}

// FrequencyRequestHash derives a stable key from the inputs that determine a
// word-frequency result.
func FrequencyRequestHash(text string, maxWords int, stopwords []string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d\x00%s\x00%s", maxWords, text, strings.Join(stopwords, "\x00"))
	return hex.EncodeToString(h.Sum(nil))
}

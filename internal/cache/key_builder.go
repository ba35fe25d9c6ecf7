package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"chat-relay/internal/llm"
)

// BuildExactCacheKey hashes the model, the sampling options and the message
// into an ExactCacheKey. versionID lets an operator invalidate every entry by
// bumping RELAY_VERSION.
func BuildExactCacheKey(message, versionID string) (ExactCacheKey, error) {
	opts, err := json.Marshal(llm.DefaultOptions())
	if err != nil {
		return ExactCacheKey{}, err
	}

	normalized := "model:" + llm.DefaultModel + "|options:" + string(opts) + "|message:" + message

	sum := sha256.Sum256([]byte(normalized))

	return ExactCacheKey{
		ModelID:   llm.DefaultModel,
		VersionID: strings.TrimSpace(versionID),
		Hash:      hex.EncodeToString(sum[:]),
	}, nil
}

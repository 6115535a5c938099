package storage

import (
	"encoding/hex"
	"fmt"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/blake2b"

	"github.com/correlator-io/trackcheck/internal/taxonomy"
)

// ContentDigest returns the hex BLAKE2b-256 digest of a log's bytes.
func ContentDigest(data []byte) string {
	sum := blake2b.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// SchemaDigest returns the hex BLAKE2b-256 digest of the schema's normalized
// definition, so formatting differences in the source document do not change it.
func SchemaDigest(schema *taxonomy.Schema) (string, error) {
	data, err := json.Marshal(schema.Definition())
	if err != nil {
		return "", fmt.Errorf("failed to encode schema: %w", err)
	}

	return ContentDigest(data), nil
}

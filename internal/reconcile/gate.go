package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/MrSnakeDoc/confsync/internal/sources/schedule"
)

// Digest returns the hex SHA-256 of the tree's JSON encoding.
// Tree only holds structs and slices, so the encoding is stable.
func Digest(tree schedule.Tree) (string, error) {
	raw, err := json.Marshal(tree)
	if err != nil {
		return "", fmt.Errorf("encode schedule tree: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

package store

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"
)

// MergeFields applies fields to doc as a JSON merge patch (RFC 7386).
// Backends without native partial updates use it to implement Update.
func MergeFields(doc []byte, fields map[string]any) ([]byte, error) {
	if len(doc) == 0 {
		doc = []byte("{}")
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}
	out, err := jsonpatch.MergePatch(doc, patch)
	if err != nil {
		return nil, fmt.Errorf("merge document: %w", err)
	}
	return out, nil
}

package models

import (
	"encoding/hex"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// LayerIDDelimiter joins sorted layer ids before hashing
const LayerIDDelimiter = "|"

// NormalizeLayerIDs trims, drops empty and repeated ids and sorts the remainder
func NormalizeLayerIDs(layerIDs []string) []string {
	out := make([]string, 0, len(layerIDs))
	seen := make(map[string]struct{}, len(layerIDs))
	for _, id := range layerIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// AvatarHash is the content hash of a layer selection; order of input does not matter
func AvatarHash(layerIDs []string) string {
	return hashString(strings.Join(NormalizeLayerIDs(layerIDs), LayerIDDelimiter))
}

// TemplateHash is the content hash of a scene template's layer keys
func TemplateHash(backgroundKey string, foregroundKey *string) string {
	fg := ""
	if foregroundKey != nil {
		fg = *foregroundKey
	}
	return hashString("bg=" + backgroundKey + LayerIDDelimiter + "fg=" + fg)
}

func hashString(s string) string {
	sum := blake2b.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

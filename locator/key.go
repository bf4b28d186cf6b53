package locator

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/hazyhaar/relocator/snapshot"
)

// LogicalKey derives a cache key that stays stable across re-renders of the
// same logical element. The id prefix wins when an id exists; otherwise the
// key hashes role, accessible name and tag.
func (g *Generator) LogicalKey(snap *snapshot.ElementSnapshot) string {
	if p, ok := g.idPrefix(snap.ID); ok {
		return "id:" + p
	}
	if id := strings.TrimSpace(snap.ID); id != "" {
		return "id:" + id
	}

	name := strings.TrimSpace(snap.AriaLabel)
	if name == "" {
		name = strings.TrimSpace(snap.Title)
	}
	if name == "" {
		name = snapshot.NormalizeText(snap.Text)
	}
	sum := sha256.Sum256([]byte(strings.TrimSpace(snap.Role) + "|" + name + "|" + tagName(snap.Tag)))
	return fmt.Sprintf("h:%x", sum[:8])
}

// LogicalKey runs the default generator.
func LogicalKey(snap *snapshot.ElementSnapshot) string {
	return defaultGenerator.LogicalKey(snap)
}

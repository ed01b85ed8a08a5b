package dns

import (
	"fmt"
	"strings"
)

// splitBoxName splits the zone-relative part of an overlay query into
// its box and team labels.
//
// Supports the single overlay shape:
//   - web.team1 -> box="web", team="team1"
func splitBoxName(name string) (box, team string, err error) {
	parts := strings.Split(name, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("not a box name: %s", name)
	}
	return parts[0], parts[1], nil
}

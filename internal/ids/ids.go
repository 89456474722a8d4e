// Package ids generates the opaque identifiers used for sessions, entities,
// and entity relations.
package ids

import "github.com/google/uuid"

// New returns a new random (v4) identifier string.
func New() string {
	return uuid.NewString()
}

package util

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newID returns a prefixed, lowercase 12-character id, e.g. "actor_x0f3k2m9q1z7".
// Lowercase keeps the ids stable under the case-folded lookups used across
// the graph layers.
func newID(prefix string) string {
	id, err := gonanoid.Generate(idAlphabet, 12)
	if err != nil {
		// gonanoid only fails when the platform RNG is broken.
		panic(err)
	}
	return prefix + "_" + id
}

func NewNewsID() string     { return newID("news") }
func NewActorID() string    { return newID("actor") }
func NewStoryID() string    { return newID("story") }
func NewEventID() string    { return newID("event") }
func NewRelationID() string { return newID("rel") }

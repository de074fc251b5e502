package family

import (
	"fmt"
	"hash/fnv"
)

// DeriveKey computes the deterministic grouping key for a family.
//
// Exactly two inputs: category and theater. Actors are deliberately
// excluded; including them fragments semantically identical ongoing
// stories the moment the actor list shifts by one name. With actors out,
// the key stays stable across the life of a long-running story and the
// family keeps absorbing related evidence.
func DeriveKey(cat Category, th Theater) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s", cat, th)
	return fmt.Sprintf("ef:%016x", h.Sum64())
}

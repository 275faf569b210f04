package resource

import (
	"math/rand"

	"github.com/leanovate/gopter"
)

// Generates a random ResourceIdSet using the supplied Rand, holding whole
// units of a few well-known classes with ids drawn from a small range.
func GenRandomResourceIdSet(rng *rand.Rand) ResourceIdSet {
	classes := []string{CPU, "GPU", "MEM"}
	wholeIds := map[string][]int64{}
	for _, class := range classes {
		numIds := rng.Intn(5)
		seen := map[int64]bool{}
		for i := 0; i < numIds; i++ {
			id := int64(rng.Intn(64))
			if !seen[id] {
				seen[id] = true
				wholeIds[class] = append(wholeIds[class], id)
			}
		}
	}
	return NewResourceIdSetFromIds(wholeIds)
}

// Wrapper function that Generates a ResourceIdSet for Property Based Tests
func GopterGenResourceIdSet() gopter.Gen {
	return func(genParams *gopter.GenParameters) *gopter.GenResult {
		s := GenRandomResourceIdSet(genParams.Rng)
		return gopter.NewGenResult(s, gopter.NoShrinker)
	}
}

package testhelpers

import (
	"math/rand"
	"time"
)

// generates a new random number seeded with the current time
func NewRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Test Helpers that are useful for Generating random scheduler identifiers

// Generates a valid random TaskId
func GenTaskId(rng *rand.Rand) string {
	return GenRandomAlphaNumericString(rng)
}

// Generates a valid random DriverId
func GenDriverId(rng *rand.Rand) string {
	return GenRandomAlphaNumericString(rng)
}

// Generates a valid random ActorId
func GenActorId(rng *rand.Rand) string {
	return GenRandomAlphaNumericString(rng)
}

// Generates a random pid in the range real OSes hand out
func GenPid(rng *rand.Rand) int {
	return rng.Intn(1 << 15)
}

// Generates an AlphaNumericString of random length (0, 21]
func GenRandomAlphaNumericString(rng *rand.Rand) string {
	const chars = "abcdefghijklmnopqrstuvwxyz0123456789"
	length := rng.Intn(20) + 1
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		result[i] = chars[rng.Intn(len(chars))]
	}

	return string(result)
}

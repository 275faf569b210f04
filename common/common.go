package common

import (
	uuid "github.com/nu7hatch/gouuid"
)

// GenUUID generates a random v4 uuid string.
func GenUUID() string {
	// uuid.NewV4() reads from rand.Read, which per the golang docs
	// "always returns ... a nil error", so this loops at most once.
	for {
		if id, err := uuid.NewV4(); err == nil {
			return id.String()
		}
	}
}

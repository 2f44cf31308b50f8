package random

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const challengeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// LinkCode returns a 6-digit numeric code in [100000, 999999].
func LinkCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate link code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// ChallengeCode returns a 6-character alphanumeric code shown on the approval
// prompt so the user can match the message to the session they started.
func ChallengeCode() (string, error) {
	out := make([]byte, 6)
	max := big.NewInt(int64(len(challengeAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate challenge code: %w", err)
		}
		out[i] = challengeAlphabet[n.Int64()]
	}
	return string(out), nil
}

package domain

import (
	"fmt"
	"math/rand/v2"
)

const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// CodeGenerator produces human-facing order codes. Codes are not unique by
// construction; callers check them against the store and retry.
type CodeGenerator interface {
	Short() string
	Long() string
}

type RandomCodes struct{}

// Short returns a letter followed by a number in [100000, 999999].
func (RandomCodes) Short() string {
	return fmt.Sprintf("%c%06d", letters[rand.IntN(len(letters))], 100000+rand.IntN(900000))
}

// Long is the fallback after repeated collisions on Short.
func (RandomCodes) Long() string {
	return fmt.Sprintf("%c%c%08d",
		letters[rand.IntN(len(letters))],
		letters[rand.IntN(len(letters))],
		rand.IntN(100000000))
}

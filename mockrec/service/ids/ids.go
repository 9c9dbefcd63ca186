package ids

import (
	"crypto/rand"
)

const DefaultLength = 6

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// maxByte is the largest multiple of len(alphabet) that fits a byte; larger bytes are
// rejected so every character is equally likely.
const maxByte = 256 - (256 % len(alphabet))

// Generate returns a random base62 id of the given length, used to correlate the log lines
// of one intercepted call. Non-positive lengths use DefaultLength.
func Generate(length int) string {
	if length <= 0 {
		length = DefaultLength
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		for _, b := range buf {
			if int(b) >= maxByte {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out)
}

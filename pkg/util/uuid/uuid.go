package uuid

import (
	"crypto/rand"
	"fmt"
)

// Gen generates UUID.
func Gen() string {
	buf := make([]byte, 16)
	rand.Read(buf)

	// Version 4, variant 10.
	buf[6] = (buf[6] & 0x0f) | 0x40
	buf[8] = (buf[8] & 0x3f) | 0x80

	return fmt.Sprintf("%x-%x-%x-%x-%x", buf[0:4], buf[4:6], buf[6:8], buf[8:10], buf[10:])
}

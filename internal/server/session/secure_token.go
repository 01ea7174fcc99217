package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
)

// SecureToken returns a URL-safe token encoding n random bytes.
// It is used to generate session secrets.
func SecureToken(n int) string {
	if n <= 0 {
		panic("session: token length must be positive")
	}

	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// SecureCompare reports whether s1 and s2 are equal in constant time.
func SecureCompare(s1, s2 string) bool {
	return subtle.ConstantTimeCompare([]byte(s1), []byte(s2)) == 1
}

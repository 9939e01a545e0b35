// cmd/gensecret/main.go
// Generates a random SESSION_SECRET suitable for signing refresh cookies
// and sealing mobile session tokens (32 bytes minimum, we emit 48).
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
)

func main() {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("Failed to generate secret: %v", err)
	}
	fmt.Printf("SESSION_SECRET=%s\n", base64.RawStdEncoding.EncodeToString(buf))
}

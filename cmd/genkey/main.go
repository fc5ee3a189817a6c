package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

func main() {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic(err)
	}

	fmt.Printf("JWT_SECRET=%s\n", base64.StdEncoding.EncodeToString(secret))
}

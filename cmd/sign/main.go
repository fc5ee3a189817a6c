package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Addy-9595/northeasternconnect-backend/internal/crypto"
	"github.com/Addy-9595/northeasternconnect-backend/internal/models"
)

func main() {
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "Token signing secret (defaults to $JWT_SECRET)")
	userID := flag.String("user", "", "User UUID")
	email := flag.String("email", "", "User email")
	role := flag.String("role", string(models.RoleStudent), "Role: student, professor or admin")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	if *secret == "" || *userID == "" {
		fmt.Fprintln(os.Stderr, "Usage: sign -secret <secret> -user <user-uuid> [-email <email>] [-role <role>] [-ttl <duration>]")
		os.Exit(1)
	}

	id, err := uuid.Parse(*userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid user ID: %v\n", err)
		os.Exit(1)
	}
	r := models.Role(*role)
	if !r.Valid() {
		fmt.Fprintf(os.Stderr, "Invalid role: %s\n", *role)
		os.Exit(1)
	}

	tokens, err := crypto.NewTokenManager(*secret, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid secret: %v\n", err)
		os.Exit(1)
	}
	token, claims, err := tokens.Issue(id, *email, r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Authorization: Bearer %s\n", token)
	fmt.Printf("Expires: %s\n", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
}

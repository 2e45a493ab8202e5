package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/srgjo27/tour_booking/internal/adapter/handler"
	"github.com/srgjo27/tour_booking/internal/core/domain"
	"github.com/srgjo27/tour_booking/internal/platform/config"
)

// devtoken prints a signed access token for local testing against the API.
func main() {
	subject := flag.String("sub", "", "subject (customer or staff id)")
	role := flag.String("role", string(domain.RoleCustomer), "role: customer or admin")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if *subject == "" {
		flag.Usage()
		os.Exit(2)
	}
	switch domain.Role(*role) {
	case domain.RoleCustomer, domain.RoleAdmin:
	default:
		log.Fatalf("role %q cannot be issued", *role)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	auth := handler.NewAuthenticator(cfg.JWT.Secret, cfg.JWT.Issuer)
	tok, err := auth.IssueToken(*subject, domain.Role(*role), jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(*ttl)),
	})
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(tok)
}

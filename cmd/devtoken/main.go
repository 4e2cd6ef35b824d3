// Command devtoken prints a bearer token for local testing against the API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"eventrsvp/config"
	"eventrsvp/internal/adapters/auth"
	"eventrsvp/internal/domain"
)

func main() {
	sub := flag.String("sub", "", "caller id (host id or attendee id)")
	role := flag.String("role", string(domain.RoleAttendee), "host or attendee")
	mail := flag.String("email", "", "optional email claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	r, err := domain.ParseRole(*role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	token, err := auth.NewJWTIssuer(cfg.JWTSecret).Issue(domain.Caller{ID: *sub, Role: r}, *mail, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dealroom/backend/internal/auth"
	"github.com/dealroom/backend/internal/config"
	"github.com/google/uuid"
)

// token mints a bearer token for a party, signed with JWT_SECRET.
//
//	go run ./cmd/token -party <uuid> [-deal <uuid>]
func main() {
	partyFlag := flag.String("party", "", "party id the token acts as")
	dealFlag := flag.String("deal", "", "optional deal id to scope the token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	partyID, err := uuid.Parse(*partyFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "-party must be a uuid")
		os.Exit(2)
	}
	var dealID uuid.UUID
	if *dealFlag != "" {
		if dealID, err = uuid.Parse(*dealFlag); err != nil {
			fmt.Fprintln(os.Stderr, "-deal must be a uuid")
			os.Exit(2)
		}
	}

	token, err := auth.GenerateJWT(cfg.JWTSecret, partyID, dealID, cfg.JWTExpiration)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign token:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

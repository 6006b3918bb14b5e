// Package main generates the Ed25519 key pair used to sign relay join grants.
//
// With -sign it instead prints a grant for one project and user, signed with
// DESIGNO_JOIN_GRANT_PRIVATE_KEY.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/selight/designo/internal/scene/grant"
	"github.com/selight/designo/internal/tools/joingrant"
)

func main() {
	sign := flag.Bool("sign", false, "print a signed grant instead of a key pair")
	projectID := flag.String("project", "", "project id for -sign")
	userID := flag.String("user", "", "user id for -sign")
	displayName := flag.String("name", "", "display name for -sign")
	flag.Parse()
	log.SetFlags(0)
	log.SetPrefix("[JOIN-GRANT-KEY] ")

	if !*sign {
		if err := joingrant.Run(os.Stdout, nil); err != nil {
			log.Fatalf("generate join grant key: %v", err)
		}
		return
	}

	cfg, err := grant.LoadIssuerFromEnv(nil)
	if err != nil {
		log.Fatalf("load join grant config: %v", err)
	}
	subject := grant.Subject{ProjectID: *projectID, UserID: *userID, DisplayName: *displayName}
	if err := joingrant.Sign(os.Stdout, subject, cfg); err != nil {
		log.Fatalf("sign join grant: %v", err)
	}
}

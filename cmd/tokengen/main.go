// Command tokengen mints account and platform JWTs for local testing.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/safestake/registry/internal/auth"
	"github.com/safestake/registry/internal/domain"
	"github.com/safestake/registry/internal/infra"
)

func main() {
	realm := flag.String("realm", string(auth.RealmAccount), "token realm: account or platform")
	subject := flag.String("sub", "", "subject: hex account id for account tokens, operator id for platform tokens")
	flag.Parse()

	if err := run(auth.Realm(*realm), *subject); err != nil {
		fmt.Fprintln(os.Stderr, "tokengen:", err)
		os.Exit(1)
	}
}

func run(realm auth.Realm, subject string) error {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if realm == auth.RealmAccount {
		if _, err := domain.ParseAccountID(subject); err != nil {
			return fmt.Errorf("account subject: %w", err)
		}
	}

	mgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccountExpiry, cfg.JWTPlatformExpiry)
	token, err := mgr.GenerateToken(realm, subject)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// Command issue-token prints a bearer token acting as the given wallet.
// It reads the same configuration as the API so the secret and issuer match.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/walletsvc/wallet_service/internal/auth"
	"github.com/walletsvc/wallet_service/internal/config"
)

func main() {
	walletID := flag.String("wallet", "", "wallet id (uuid) the token acts as")
	walletName := flag.String("name", "", "optional wallet name claim")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *walletID == "" {
		fmt.Fprintln(os.Stderr, "usage: issue-token -wallet <uuid> [-name <wallet name>]")
		os.Exit(2)
	}

	token, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTTL).Issue(*walletID, *walletName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/artpar/fusion/adapters/hasher"
	"github.com/artpar/fusion/adapters/random"
	"github.com/artpar/fusion/domain/token"
	"github.com/spf13/cobra"
)

var (
	tokenExpires      string
	tokenDestinations []string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage bearer tokens",
}

var tokenNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Mint a bearer token",
	Long: `Mint a new bearer token and store its digest.

The cleartext is printed once and never stored; only its SHA-256
digest goes into the database. Link the token to destinations with
--destinations or via the configuration file.

Examples:
  fusion token new
  fusion token new --expires 2027-01-01T00:00:00Z --destinations orders,billing`,
	RunE: runTokenNew,
}

func init() {
	tokenCmd.AddCommand(tokenNewCmd)
	rootCmd.AddCommand(tokenCmd)

	tokenNewCmd.Flags().StringVar(&tokenExpires, "expires", "", "expiration as RFC 3339 timestamp (default never)")
	tokenNewCmd.Flags().StringSliceVar(&tokenDestinations, "destinations", nil, "destination codes to link, comma separated")
}

func runTokenNew(cmd *cobra.Command, args []string) error {
	var expiration *time.Time
	if tokenExpires != "" {
		ts, err := time.Parse(time.RFC3339, tokenExpires)
		if err != nil {
			return fmt.Errorf("parse --expires: %w", err)
		}
		if !ts.After(time.Now()) {
			return fmt.Errorf("--expires is already in the past")
		}
		expiration = &ts
	}

	cleartext, err := token.Mint(random.Real{})
	if err != nil {
		return fmt.Errorf("mint token: %w", err)
	}

	stores, db, err := openStores()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	stored, err := stores.Tokens.Insert(ctx, token.Token{
		Value:      hasher.NewSHA256().SumString(cleartext),
		Expiration: expiration,
	})
	if err != nil {
		return fmt.Errorf("store token: %w", err)
	}

	if len(tokenDestinations) > 0 {
		if err := stores.Tokens.LinkDestinations(ctx, stored.ID, tokenDestinations); err != nil {
			return fmt.Errorf("link destinations: %w", err)
		}
	}

	fmt.Printf("Token minted. The cleartext is shown once, store it now:\n\n")
	fmt.Printf("  %s\n\n", cleartext)
	if expiration != nil {
		fmt.Printf("  expires: %s\n", expiration.Format(time.RFC3339))
	}
	if len(tokenDestinations) > 0 {
		fmt.Printf("  destinations: %v\n", tokenDestinations)
	}
	return nil
}

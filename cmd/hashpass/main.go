// cmd/hashpass/main.go
//
// hashpass prints a bcrypt hash for a password, using the same cost and
// strength rules as the API. Useful for seeding admin accounts by hand.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/your-org/nutrition-store/internal/config"
	"github.com/your-org/nutrition-store/internal/pkg/auth"
)

func main() {
	cost := flag.Int("cost", 0, "bcrypt cost (defaults to BCRYPT_COST)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: hashpass [-cost N] <password>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	password := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if *cost > 0 {
		cfg.Security.BcryptCost = *cost
	}

	passwords := auth.NewPasswordManager(cfg)

	hash, err := passwords.HashPassword(password)
	if err != nil {
		logrus.WithError(err).Fatal("failed to hash password")
	}

	if err := passwords.VerifyPassword(password, hash); err != nil {
		logrus.WithError(err).Fatal("hash verification failed")
	}

	fmt.Println(hash)
}

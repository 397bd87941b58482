// Command createadmin seeds or updates an administrator account directly in
// the database. Run it once per deployment; admins cannot self-register.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/auth"
	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/identity"
	"github.com/iclaudiumihaila/pe-foc-de-lemne-sub002/internal/infra"
)

func main() {
	phone := flag.String("phone", "", "admin phone number in E.164 format")
	secret := flag.String("secret", "", "admin password (min 8 characters)")
	cost := flag.Int("bcrypt-cost", 12, "bcrypt work factor")
	flag.Parse()

	if err := run(*phone, *secret, *cost); err != nil {
		fmt.Fprintf(os.Stderr, "createadmin: %v\n", err)
		os.Exit(1)
	}
}

func run(phone, secret string, cost int) error {
	if !identity.ValidPhone(phone) {
		return fmt.Errorf("phone must be E.164 format, e.g. +40712345678")
	}

	hasher := auth.NewHasher(cost, 8)
	hash, err := hasher.Hash(secret)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := infra.NewPostgresPool(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		return err
	}
	defer db.Close()

	store := identity.NewPostgresStore(db)

	existing, err := store.FindByPhone(ctx, phone)
	switch {
	case err == nil:
		if err := store.UpdateSecretHash(ctx, existing.ID, hash); err != nil {
			return err
		}
		fmt.Printf("updated secret for admin %s (%s)\n", existing.ID, phone)
		return nil
	case !errors.Is(err, identity.ErrNotFound):
		return err
	}

	ident := identity.Identity{
		ID:         uuid.New().String(),
		Phone:      phone,
		Role:       identity.RoleAdmin,
		SecretHash: hash,
		Verified:   true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := store.Create(ctx, ident); err != nil {
		return err
	}
	fmt.Printf("created admin %s (%s)\n", ident.ID, phone)
	return nil
}

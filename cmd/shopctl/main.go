// Command shopctl runs one-off maintenance against the shop database:
// migrations, account creation and demo data.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fjod/go_shop/internal/config"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/fjod/go_shop/internal/service"
	"golang.org/x/crypto/bcrypt"
)

const usage = `usage: shopctl <command> [flags]

commands:
  migrate     apply database migrations
  add-user    create an account (-username, -email, -password, -admin)
  seed-demo   create the demo accounts (admin, john, alice, bob)`

var demoUsers = []struct {
	reg   domain.Registration
	admin bool
}{
	{domain.Registration{Username: "admin", Email: "admin@example.com", Password: "admin123", FirstName: "Shop", LastName: "Admin"}, true},
	{domain.Registration{Username: "john", Email: "john@example.com", Password: "password123", FirstName: "John", LastName: "Doe"}, false},
	{domain.Registration{Username: "alice", Email: "alice@example.com", Password: "password123", FirstName: "Alice", LastName: "Smith"}, false},
	{domain.Registration{Username: "bob", Email: "bob@example.com", Password: "password123", FirstName: "Bob", LastName: "Brown"}, false},
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch os.Args[1] {
	case "migrate":
		err = withRepository(cfg, func(*repository.Repository) error { return nil })
	case "add-user":
		err = addUser(ctx, cfg, os.Args[2:])
	case "seed-demo":
		err = withRepository(cfg, func(repo *repository.Repository) error {
			return seedDemo(ctx, service.NewAuthService(repo, bcrypt.DefaultCost))
		})
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "shopctl:", err)
		os.Exit(1)
	}
}

// withRepository opens the configured database, brings the schema up to date
// and hands the repository to fn.
func withRepository(cfg *config.Config, fn func(*repository.Repository) error) error {
	repo, err := repository.NewRepository(&cfg.DB)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.RunMigrations(); err != nil {
		return err
	}
	slog.Info("migrations applied", "driver", repo.Driver())
	return fn(repo)
}

func addUser(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("add-user", flag.ContinueOnError)
	username := fs.String("username", "", "username for the new account")
	email := fs.String("email", "", "email for the new account")
	password := fs.String("password", "", "password for the new account")
	admin := fs.Bool("admin", false, "grant administrator rights")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *email == "" || *password == "" {
		fs.PrintDefaults()
		return errors.New("username, email and password are required")
	}

	return withRepository(cfg, func(repo *repository.Repository) error {
		auth := service.NewAuthService(repo, bcrypt.DefaultCost)
		reg := domain.Registration{Username: *username, Email: *email, Password: *password}

		var (
			user *domain.User
			err  error
		)
		if *admin {
			user, err = auth.CreateAdmin(ctx, reg)
		} else {
			user, err = auth.Register(ctx, reg)
		}
		if err != nil {
			return err
		}
		fmt.Printf("user %q created with id %d (admin=%t)\n", user.Username, user.ID, user.IsAdmin)
		return nil
	})
}

type accountCreator interface {
	Register(ctx context.Context, reg domain.Registration) (*domain.User, error)
	CreateAdmin(ctx context.Context, reg domain.Registration) (*domain.User, error)
}

// seedDemo is safe to run repeatedly; accounts that already exist are skipped.
func seedDemo(ctx context.Context, auth accountCreator) error {
	for _, d := range demoUsers {
		create := auth.Register
		if d.admin {
			create = auth.CreateAdmin
		}
		user, err := create(ctx, d.reg)
		if errors.Is(err, domain.ErrDuplicateIdentity) {
			fmt.Printf("user %q exists, skipped\n", d.reg.Username)
			continue
		}
		if err != nil {
			return fmt.Errorf("seed %s: %w", d.reg.Username, err)
		}
		fmt.Printf("user %q created with id %d\n", user.Username, user.ID)
	}
	return nil
}

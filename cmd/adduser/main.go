// Command adduser provisions a user account from the terminal. There is no
// self-service signup; operators run this against the same database file the
// server uses.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"antspend/internal/auth"
	"antspend/internal/config"
	"antspend/internal/storage"
)

func main() {
	username := flag.String("username", "", "login name for the new user")
	email := flag.String("email", "", "email address for budget alerts")
	flag.Parse()

	if *username == "" || *email == "" {
		fmt.Fprintln(os.Stderr, "usage: adduser -username <name> -email <address>")
		os.Exit(2)
	}
	if !strings.Contains(*email, "@") {
		fmt.Fprintln(os.Stderr, "adduser: email address looks invalid")
		os.Exit(2)
	}

	password, err := promptPassword()
	if err != nil {
		fmt.Fprintf(os.Stderr, "adduser: %v\n", err)
		os.Exit(1)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "adduser: hash password: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Load()
	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "adduser: open database %s: %v\n", cfg.SQLiteDBPath, err)
		os.Exit(1)
	}
	defer repo.Close()

	user, err := repo.CreateUser(context.Background(), *username, *email, hash)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			fmt.Fprintf(os.Stderr, "adduser: username or email already taken\n")
		} else {
			fmt.Fprintf(os.Stderr, "adduser: create user: %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Printf("created user %s (id %d)\n", user.Username, user.ID)
}

// promptPassword reads the password twice without echo and requires the two
// entries to match.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Fprint(os.Stderr, "Repeat password: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	if len(first) < 8 {
		return "", errors.New("password must be at least 8 characters")
	}
	return string(first), nil
}

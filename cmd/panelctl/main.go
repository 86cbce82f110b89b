// panelctl is a terminal client for the identity service. It drives the
// same session lifecycle the panel UI uses: sign-up, sign-in, sign-out,
// session status and theme preference.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"painel-auth/pkg/identity"
	"painel-auth/pkg/keystore"
	"painel-auth/pkg/lifecycle"
	"painel-auth/pkg/notify"
	"painel-auth/pkg/theme"
)

const defaultServer = "http://localhost:8080"

type app struct {
	server string

	store  *keystore.Store
	client *identity.HTTPClient
	notes  *notify.Channel
	mgr    *lifecycle.Manager
}

func (a *app) init() error {
	path, err := keystore.DefaultPath("painel-auth")
	if err != nil {
		return err
	}
	a.store, err = keystore.Open(path)
	if err != nil {
		return err
	}
	a.client, err = identity.NewHTTPClient(a.server, a.store)
	if err != nil {
		return err
	}
	a.notes = notify.NewChannel(16)
	a.mgr, err = lifecycle.NewManager(lifecycle.Config{
		Client:   a.client,
		Notifier: a.notes,
		Store:    a.store,
	})
	if err != nil {
		return err
	}
	a.mgr.Start(context.Background())
	return nil
}

func (a *app) close() {
	if a.mgr != nil {
		a.mgr.Close()
	}
}

// flush prints any notifications the lifecycle produced.
func (a *app) flush() {
	for {
		select {
		case n := <-a.notes.C():
			if n.Description != "" {
				fmt.Printf("%s: %s %s\n", n.Type, n.Message, n.Description)
			} else {
				fmt.Printf("%s: %s\n", n.Type, n.Message)
			}
		default:
			return
		}
	}
}

func main() {
	a := &app{}

	root := &cobra.Command{
		Use:           "panelctl",
		Short:         "Terminal client for the painel identity service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.server, "server", envOr("PAINEL_AUTH_URL", defaultServer), "identity service base URL")

	var password, name string

	login := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in with email and password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}
			defer a.close()
			err := a.mgr.SignIn(cmd.Context(), args[0], password)
			a.flush()
			return err
		},
	}
	login.Flags().StringVarP(&password, "password", "p", "", "account password")

	signup := &cobra.Command{
		Use:   "signup <email>",
		Short: "Register a new account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}
			defer a.close()
			err := a.mgr.SignUp(cmd.Context(), args[0], password, name)
			a.flush()
			return err
		},
	}
	signup.Flags().StringVarP(&password, "password", "p", "", "account password (at least 6 characters)")
	signup.Flags().StringVarP(&name, "name", "n", "", "display name")

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and revoke the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}
			defer a.close()
			err := a.mgr.SignOut(cmd.Context())
			a.flush()
			return err
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the current session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}
			defer a.close()
			snap := a.mgr.Snapshot()
			fmt.Printf("state: %s\n", snap.State)
			if snap.Session == nil {
				return nil
			}
			fmt.Printf("email: %s\n", snap.Session.Email)
			if !snap.Session.ExpiresAt.IsZero() {
				fmt.Printf("expires: %s\n", snap.Session.ExpiresAt.Format(time.RFC3339))
			}
			user, err := a.client.GetUser(cmd.Context())
			if err != nil {
				fmt.Printf("server check failed: %v\n", err)
				return nil
			}
			fmt.Printf("user: %s (%s)\n", user.ID, user.Email)
			return nil
		},
	}

	themeCmd := &cobra.Command{
		Use:   "theme [light|dark|system]",
		Short: "Show or set the theme preference",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := keystore.DefaultPath("painel-auth")
			if err != nil {
				return err
			}
			store, err := keystore.Open(path)
			if err != nil {
				return err
			}
			mgr := theme.NewManager(store)
			if len(args) == 0 {
				fmt.Println(mgr.Get())
				return nil
			}
			p := theme.Preference(args[0])
			if !p.Valid() {
				return fmt.Errorf("unknown theme %q: use light, dark or system", args[0])
			}
			return mgr.Set(p)
		},
	}

	root.AddCommand(login, signup, logout, status, themeCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

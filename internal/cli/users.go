package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/dcgate/dcgate/internal/config"
	"github.com/dcgate/dcgate/internal/store"
)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage gateway accounts directly in the store",
	}
	cmd.AddCommand(newUsersAddCmd())
	cmd.AddCommand(newUsersRemoveCmd())
	cmd.AddCommand(newUsersListCmd())
	return cmd
}

func openStore(cmd *cobra.Command) (store.Store, error) {
	configPath := resolveConfigPath(cmd, nil, defaultConfigPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return store.New(cfg.Storage)
}

func newUsersAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Add an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			username := args[0]
			ctx := context.Background()

			existing, err := st.GetUser(ctx, username)
			if err != nil {
				return err
			}
			if existing != nil {
				return fmt.Errorf("user %s already exists", username)
			}

			admin, _ := cmd.Flags().GetBool("admin")
			password := defaultPrompter().askPassword("Password")
			if password == "" {
				return fmt.Errorf("password must not be empty")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}

			if err := st.CreateUser(ctx, &store.User{
				ID:           uuid.New().String(),
				Username:     username,
				PasswordHash: string(hash),
				Admin:        admin,
				CreatedAt:    time.Now(),
			}); err != nil {
				return fmt.Errorf("create user: %w", err)
			}

			fmt.Printf("Added user %s\n", username)
			return nil
		},
	}
	cmd.Flags().Bool("admin", false, "grant administrative access")
	return cmd
}

func newUsersRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <username>",
		Short: "Remove an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.DeleteUser(context.Background(), args[0]); err != nil {
				return fmt.Errorf("remove user: %w", err)
			}
			fmt.Printf("Removed user %s\n", args[0])
			return nil
		},
	}
}

func newUsersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			users, err := st.ListUsers(context.Background())
			if err != nil {
				return err
			}
			for _, u := range users {
				role := "user"
				if u.Admin {
					role = "admin"
				}
				fmt.Printf("%s\t%s\n", u.Username, role)
			}
			return nil
		},
	}
}

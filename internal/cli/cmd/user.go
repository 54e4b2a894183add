package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/twinlog/internal/db"
)

var (
	createUsername string
	createPassword string
	createAdmin    bool
)

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a login account",
	RunE:  runCreateUser,
}

func init() {
	rootCmd.AddCommand(createUserCmd)
	createUserCmd.Flags().StringVar(&createUsername, "username", "", "account name")
	createUserCmd.Flags().StringVar(&createPassword, "password", "", "account password")
	createUserCmd.Flags().BoolVar(&createAdmin, "admin", false, "allow the account to change AI settings")
	_ = createUserCmd.MarkFlagRequired("username")
	_ = createUserCmd.MarkFlagRequired("password")
}

func runCreateUser(cmd *cobra.Command, _ []string) error {
	application, _, err := loadRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close(cmd.Context())

	user, err := db.CreateUser(application.DB.WithContext(cmd.Context()), createUsername, createPassword)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if createAdmin {
		if err := db.SetAdmin(application.DB.WithContext(cmd.Context()), user.Username, true); err != nil {
			return fmt.Errorf("grant admin: %w", err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d, admin %t)\n", user.Username, user.ID, createAdmin)
	return nil
}

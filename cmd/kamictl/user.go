package main

import (
	"fmt"

	"github.com/lameck50/backend-kami/internal/db"
	"github.com/lameck50/backend-kami/internal/store/postgres"
	"github.com/lameck50/backend-kami/internal/users"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user account",
	Long: `Create an agent, supervisor or admin account.

Examples:
  kamictl user create --name "Amani K." --email amani@kami.local --role agent --password s3cretpass
  kamictl user create --name Neema --email neema@kami.local --role supervisor --post Gombe --password s3cretpass`,
	RunE: runUserCreate,
}

var (
	userName     string
	userEmail    string
	userPassword string
	userRole     string
	userPost     string
)

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)

	userCreateCmd.Flags().StringVar(&userName, "name", "", "Display name")
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "Login email")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "Initial password")
	userCreateCmd.Flags().StringVar(&userRole, "role", string(users.RoleAgent), "Role (agent, supervisor, admin)")
	userCreateCmd.Flags().StringVar(&userPost, "post", "", "Post or station name")
	_ = userCreateCmd.MarkFlagRequired("name")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	if err := requireDBURL(); err != nil {
		return err
	}
	ctx := cmd.Context()
	pool, err := db.InitDB(ctx, db.Config{Url: dbURL, Schema: dbSchema, MaxConns: 2})
	if err != nil {
		return err
	}
	defer pool.Close()

	u, err := users.NewService(postgres.New(pool)).CreateUser(ctx, users.CreateParams{
		Name:     userName,
		Email:    userEmail,
		Password: userPassword,
		Role:     userRole,
		PostName: userPost,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s (%s)\n", u.Role, u.Email, u.ID)
	return nil
}

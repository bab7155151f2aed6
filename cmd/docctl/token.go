package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docqr-backend/internal/shared/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign a JWT for calling the API",
	Long: `Signs an HS256 token with JWT_SECRET (dev-secret when unset outside production).`,
	Example: `  docctl token --sub user-1
  docctl token --sub ops --role admin --ttl 1h`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().String("sub", "", "Subject (user id)")
	tokenCmd.Flags().String("role", "", "Role claim, e.g. admin")
	tokenCmd.Flags().String("email", "", "Email claim")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("sub")
}

func runToken(cmd *cobra.Command, args []string) error {
	sub, _ := cmd.Flags().GetString("sub")
	role, _ := cmd.Flags().GetString("role")
	email, _ := cmd.Flags().GetString("email")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	now := time.Now()
	token, err := auth.SignJWT(auth.Claims{
		Sub:   sub,
		Role:  role,
		Email: email,
		Iat:   now.Unix(),
		Exp:   now.Add(ttl).Unix(),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

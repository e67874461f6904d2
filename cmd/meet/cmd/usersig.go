package cmd

import (
	"fmt"

	"github.com/dkeye/meetcore/internal/backend"
	"github.com/dkeye/meetcore/internal/domain"
	"github.com/spf13/cobra"
)

var usersigCmd = &cobra.Command{
	Use:   "usersig <user-id>",
	Short: "Sign a user signature with the backend secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		appID, _ := cmd.Flags().GetInt("app-id")
		user := domain.UserID(args[0])
		if err := domain.ValidateUserID(user); err != nil {
			return err
		}
		signer, err := backend.NewUserSigner(cfg.Secret, cfg.UserSigTTL)
		if err != nil {
			return err
		}
		sig, err := signer.Sign(appID, user)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), sig)
		return nil
	},
}

func init() {
	usersigCmd.Flags().Int("app-id", 1, "application id the signature is bound to")
	usersigCmd.Flags().String("secret", "", "signing secret")
	usersigCmd.Flags().Duration("ttl", 0, "signature lifetime")
	bind("secret", usersigCmd, "secret")
	bind("usersig_ttl", usersigCmd, "ttl")
	rootCmd.AddCommand(usersigCmd)
}

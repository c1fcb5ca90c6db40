package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dispatch-cms/dispatch/internal/config"
	"github.com/dispatch-cms/dispatch/internal/ui"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store an auth token",
	Long: `Exchange an email and password for an auth token and save it in the
config file. The password is read from stdin when --password is not given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := loginEmail
		if email == "" {
			email = cfg.Email
		}
		if email == "" {
			return errors.New("--email is required")
		}

		password := loginPassword
		if password == "" {
			if ui.IsTerminal(cmd.OutOrStdout()) {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
			}
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}

		token, err := api.Login(cmd.Context(), email, password)
		if err != nil {
			return err
		}
		cfg.Email = email
		cfg.Token = token
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("saving token: %w", err)
		}

		if jsonOutput {
			return ui.WriteJSON(cmd.OutOrStdout(), map[string]string{"email": email, "config": cfg.Path()})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", ui.Bold.Render(email))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored auth token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.Token = ""
		if err := config.Save(cfg); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (read from stdin when empty)")
	rootCmd.AddCommand(loginCmd, logoutCmd)
}

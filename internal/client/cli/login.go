package cli

import (
	"bufio"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/skillboard/portal/internal/client/login"
	"github.com/skillboard/portal/internal/core/domain"
)

func newLoginCmd(a *app) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		Long:  "Exchange email and password for a session stored on this machine.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := bufio.NewReader(cmd.InOrStdin())
			var err error
			if email == "" {
				if email, err = readLine(r, "Email: ", cmd.ErrOrStderr()); err != nil {
					return fmt.Errorf("read email: %w", err)
				}
			}
			password, err := promptPassword(r, cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			sess, err := a.flow.Login(cmd.Context(), login.Credentials{Email: email, Password: password})
			if err != nil {
				return loginError(err)
			}

			u := sess.CurrentUser
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s <%s> (%s)\n", u.Name, u.Email, u.Type)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted if omitted)")
	return cmd
}

func loginError(err error) error {
	var rl *domain.RateLimitError
	switch {
	case errors.As(err, &rl):
		return fmt.Errorf("too many failed attempts, try again in %s", rl.RetryAfter.Round(time.Second))
	case errors.Is(err, domain.ErrInvalidCredentials):
		return domain.ErrInvalidCredentials
	case errors.Is(err, domain.ErrTransport):
		return fmt.Errorf("could not reach the portal, please retry: %w", err)
	default:
		return err
	}
}

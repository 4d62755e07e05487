package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skillboard/portal/internal/core/domain"
)

var errNotLoggedIn = errors.New("not logged in, run `portal login`")

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.flow.Logout(cmd.Context()); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: server did not confirm logout:", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess := a.store.Snapshot()
			if !sess.Authenticated() {
				return errNotLoggedIn
			}
			if sess.InvalidSession {
				return fmt.Errorf("%w: run `portal refresh` or log in again", domain.ErrStaleSession)
			}

			u := sess.CurrentUser
			if remote {
				p, err := a.client.Me(cmd.Context(), sess.Token)
				if errors.Is(err, domain.ErrTokenInvalid) {
					a.store.SetInvalidSession(true)
					return fmt.Errorf("%w: run `portal refresh` or log in again", domain.ErrStaleSession)
				}
				if err != nil {
					return err
				}
				a.store.SetCurrentUser(p)
				u = p
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s <%s>\n", u.Name, u.Email)
			fmt.Fprintf(out, "id:   %s\n", u.ID)
			fmt.Fprintf(out, "type: %s\n", u.Type)
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Re-read the profile from the server")
	return cmd
}

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Rotate the session tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.store.Snapshot().Authenticated() {
				return errNotLoggedIn
			}
			if err := a.flow.Refresh(cmd.Context()); err != nil {
				if errors.Is(err, domain.ErrStaleSession) {
					return fmt.Errorf("session expired, log in again: %w", err)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session refreshed")
			return nil
		},
	}
}

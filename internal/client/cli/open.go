package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skillboard/portal/internal/core/access"
	"github.com/skillboard/portal/internal/core/domain"
)

func newOpenCmd(a *app) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "open <path>",
		Short: "Check whether the current session may open a portal page",
		Long: "Evaluate the route policy for <path> against the stored session and print\n" +
			"either the page or the redirect target.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			sess := a.store.Snapshot()

			var (
				d   access.Decision
				err error
			)
			if remote {
				token := sess.Token
				if sess.InvalidSession {
					token = ""
				}
				d, err = a.client.Navigate(cmd.Context(), token, path)
			} else {
				d, err = a.policy.Evaluate(path, access.ViewerFromSession(sess))
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if d.Allow {
				fmt.Fprintln(out, path)
				return nil
			}
			fmt.Fprintf(out, "%s -> %s\n", path, d.Redirect)
			if d.Redirect == access.LoginPath && sess.InvalidSession {
				fmt.Fprintln(cmd.ErrOrStderr(), domain.ErrStaleSession.Error())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Ask the server's route policy instead of the local one")
	return cmd
}

package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gwi.com/paper-assistant/internal/core"
)

func newSessionsCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			displaySessions(cmd.OutOrStdout(), svc.Sessions.List())
			return nil
		},
	}

	create := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			sess, err := svc.Sessions.Create(cmd.Context(), strings.Join(args, ""))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s\n", titleStyle.Render(sess.Name), idStyle.Render(sess.ID))
			return nil
		},
	}

	rename := &cobra.Command{
		Use:   "rename <session-id> <name>",
		Short: "Rename a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.Sessions.Rename(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", idStyle.Render(args[0]), titleStyle.Render(args[1]))
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session with its history and papers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.Sessions.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", idStyle.Render(args[0]))
			return nil
		},
	}

	cmd.AddCommand(list, create, rename, del)
	return cmd
}

func displaySessions(w io.Writer, sessions []core.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Sessions (%d)", len(sessions))))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMESSAGES\tFILES\tCHUNKS\tCREATED")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			idStyle.Render(s.ID),
			titleStyle.Render(s.Name),
			countStyle.Render(fmt.Sprint(s.MessageCount)),
			len(s.Files),
			countStyle.Render(fmt.Sprint(s.ChunkCount)),
			dateStyle.Render(s.CreatedAt.Format(time.DateTime)),
		)
	}
	tw.Flush()
}

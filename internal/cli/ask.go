package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gwi.com/paper-assistant/internal/store"
)

func newAskCmd(rt *runtime) *cobra.Command {
	var paperID string
	cmd := &cobra.Command{
		Use:   "ask <session-id> <question>",
		Short: "Ask a question about the session's papers",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			question := strings.Join(args[1:], " ")
			stream, err := svc.Chat.PostMessageStream(cmd.Context(), args[0], question, paperID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			first := true
			for fragment, err := range stream {
				if err != nil {
					fmt.Fprintln(out)
					fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render("answer interrupted: "+err.Error()))
					return err
				}
				if first {
					// The source header is always the first fragment.
					fmt.Fprint(out, sourceStyle.Render(strings.TrimRight(fragment, "\n"))+"\n\n")
					first = false
					continue
				}
				fmt.Fprint(out, fragment)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&paperID, "paper", "p", "", "Restrict the answer to one paper id")
	return cmd
}

func newHistoryCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "history <session-id>",
		Short: "Show the message history of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			if _, ok := svc.Sessions.Get(cmd.Context(), args[0]); !ok {
				return fmt.Errorf("session %s not found", args[0])
			}
			msgs, err := svc.Sessions.Messages(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			displayHistory(cmd.OutOrStdout(), msgs)
			return nil
		},
	}
}

func displayHistory(w io.Writer, msgs []store.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "No messages yet.")
		return
	}
	for _, m := range msgs {
		label := "assistant"
		style := titleStyle
		if m.Role == store.RoleUser {
			label, style = "you", userStyle
		}
		if m.Meta.Type == store.MessageTypeFile {
			label += " (file)"
		}
		fmt.Fprintf(w, "%s %s\n%s\n\n", style.Render(label), dateStyle.Render(m.Meta.Time), m.Content)
	}
}

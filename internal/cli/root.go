// Package cli implements paperctl, a terminal front end over the same services
// the HTTP server uses.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"
	"gwi.com/paper-assistant/internal/auth"
	"gwi.com/paper-assistant/internal/core"
)

// Services is what the commands need from a running application.
type Services struct {
	Sessions *core.SessionManager
	Chat     *core.ChatService
	Close    func()
}

// Opener builds Services on first use, so commands that never touch the
// database (token) don't need a model key.
type Opener func(ctx context.Context) (*Services, error)

type Options struct {
	Open      Opener
	JWTSecret string
}

type runtime struct {
	opts     Options
	services *Services
	verbose  bool
}

func (rt *runtime) open(ctx context.Context) (*Services, error) {
	if rt.services != nil {
		return rt.services, nil
	}
	if rt.opts.Open == nil {
		return nil, errors.New("no services configured")
	}
	s, err := rt.opts.Open(ctx)
	if err != nil {
		return nil, err
	}
	rt.services = s
	return s, nil
}

func (rt *runtime) close() {
	if rt.services != nil && rt.services.Close != nil {
		rt.services.Close()
	}
	rt.services = nil
}

// Run executes paperctl with args and releases any opened services before
// returning.
func Run(ctx context.Context, opts Options, args []string, out, errOut io.Writer) error {
	rt := &runtime{opts: opts}
	defer rt.close()

	root := newRootCmd(rt)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	return root.ExecuteContext(ctx)
}

func newRootCmd(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:   "paperctl",
		Short: "Chat with your research papers from the terminal",
		Long: `paperctl manages paper chat sessions, ingests papers and asks questions
answered from the papers of a session.

Quick Start:
  paperctl sessions create "Transformers"      # New session
  paperctl ingest <session-id> paper.pdf       # Upload a paper
  paperctl import <session-id> arXiv:1706.03762
  paperctl ask <session-id> "What is attention?"`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			core.SetDebug(rt.verbose)
			if rt.verbose {
				log.SetOutput(cmd.ErrOrStderr())
			}
		},
	}
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newSessionsCmd(rt),
		newPapersCmd(rt),
		newIngestCmd(rt),
		newImportCmd(rt),
		newAskCmd(rt),
		newHistoryCmd(rt),
		newTokenCmd(rt),
	)
	return root
}

func newTokenCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue an API bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.GenerateJWT(rt.opts.JWTSecret, args[0])
			if err != nil {
				return fmt.Errorf("failed to issue token (is JWT_SECRET set?): %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

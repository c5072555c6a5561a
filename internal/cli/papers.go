package cli

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gwi.com/paper-assistant/internal/core"
	"gwi.com/paper-assistant/internal/store"
)

func newPapersCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "papers <session-id>",
		Short: "List the papers of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			papers, err := svc.Chat.Papers(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			displayPapers(cmd.OutOrStdout(), papers)
			return nil
		},
	}
}

func newIngestCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <session-id> <file>",
		Short: "Upload a PDF or text file into a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			name := filepath.Base(args[1])
			res, err := svc.Chat.UploadPaper(cmd.Context(), args[0], f, name, contentTypeFor(name))
			if err != nil {
				return err
			}
			displayUpload(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newImportCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "import <session-id> <arxiv-id-or-url>",
		Short: "Download and ingest an arXiv paper or PDF URL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.Chat.ImportPaper(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			displayUpload(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

// contentTypeFor guesses the upload content type from the file extension.
func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".txt", ".md", "":
		return "text/plain"
	}
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		t, _, _ = strings.Cut(t, ";")
		return t
	}
	return "application/octet-stream"
}

func displayUpload(w io.Writer, res *core.UploadResult) {
	fmt.Fprintln(w, res.Message)
	fmt.Fprintf(w, "  %s %s\n", titleStyle.Render(res.Paper.Title), idStyle.Render(res.Paper.PaperID))
	if res.Paper.Summary != "" {
		fmt.Fprintf(w, "  %s\n", res.Paper.Summary)
	}
}

func displayPapers(w io.Writer, papers []store.Paper) {
	if len(papers) == 0 {
		fmt.Fprintln(w, "No papers in this session.")
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Papers (%d)", len(papers))))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tFILE\tPAGES")
	for _, p := range papers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			idStyle.Render(p.PaperID),
			titleStyle.Render(p.Title),
			sourceStyle.Render(p.FileName),
			countStyle.Render(fmt.Sprint(p.PageCount)),
		)
	}
	tw.Flush()
}

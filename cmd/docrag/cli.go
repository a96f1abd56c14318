package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xxxsen/docrag/internal/model"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.FgHiBlack)
)

func printOK(w io.Writer, format string, args ...interface{}) {
	_, _ = okColor.Fprint(w, "✓ ")
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}

func printFail(w io.Writer, format string, args ...interface{}) {
	_, _ = failColor.Fprint(w, "✗ ")
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}

type scopeFlags struct {
	userID    string
	projectID string
}

func (f *scopeFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.userID, "user", "cli", "user id of the scope")
	cmd.Flags().StringVar(&f.projectID, "project", "default", "project id of the scope")
}

func (f *scopeFlags) scope() model.Scope {
	return model.Scope{UserID: f.userID, ProjectID: f.projectID}
}

func newIngestCmd(configPath *string) *cobra.Command {
	var flags scopeFlags
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "index pdf, markdown or text files into a scope",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					failed++
					printFail(out, "%s: %v", path, err)
					continue
				}
				count, err := a.rag.Ingest(cmd.Context(), flags.scope(), filepath.Base(path), data)
				if err != nil {
					failed++
					printFail(out, "%s: %v", path, err)
					continue
				}
				printOK(out, "%s: %d chunks", path, count)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func newAskCmd(configPath *string) *cobra.Command {
	var flags scopeFlags
	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "answer a question from the indexed sources of a scope",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			result, err := a.qa.Ask(cmd.Context(), flags.scope(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, result.Answer)
			for i, src := range result.Sources {
				_, _ = dimColor.Fprintf(out, "[%d] %.3f %s\n", i+1, src.Similarity, preview(src.Content, 80))
			}
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func preview(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"bookdigest/internal/config"
	"bookdigest/internal/database"
	"bookdigest/internal/domain"
	"bookdigest/internal/langdetect"
	"bookdigest/internal/render"
	"bookdigest/internal/summary"

	"github.com/spf13/cobra"
)

func renderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <summary.json>",
		Short: "Render a summary file to stdout",
		Long: `Render a stored summary document in one of the output formats.

Formats: md, html, speech, highlights

Example:
  bookdigest render --format md --style executive --title "Deep Work" deep-work.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			style, _ := cmd.Flags().GetString("style")
			title, _ := cmd.Flags().GetString("title")
			registryPath, _ := cmd.Flags().GetString("registry")

			reg, err := loadRegistry(registryPath)
			if err != nil {
				return fmt.Errorf("load registry: %w", err)
			}

			doc, err := readDocument(args[0], style)
			if err != nil {
				return err
			}

			if title == "" {
				title = titleFromPath(args[0])
			}

			out, err := renderFormat(render.New(reg), doc, format, title)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().String("format", "md", "Output format (md, html, speech, highlights)")
	cmd.Flags().String("style", "executive", "Summary style")
	cmd.Flags().String("title", "", "Book title (defaults to the file name)")
	cmd.Flags().String("registry", "", "Path to a registry override YAML file")

	return cmd
}

func renderFormat(r *render.Renderer, doc *summary.Document, format, title string) (string, error) {
	switch strings.ToLower(format) {
	case "md", "markdown":
		return r.Markdown(doc, title)
	case "html", "print":
		return r.HTML(doc, title)
	case "speech":
		return r.Speech(doc, title)
	case "highlights":
		highlights, err := r.Highlights(doc, title)
		if err != nil {
			return "", err
		}

		data, err := json.MarshalIndent(highlights, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal highlights: %w", err)
		}

		return string(data), nil
	default:
		return "", fmt.Errorf("unknown format %q", format)
	}
}

func detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <summary.json>",
		Short: "Detect the language of a summary file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read summary: %w", err)
			}

			lang := langdetect.Detect(string(raw))
			reg, err := loadRegistry(os.Getenv("REGISTRY_PATH"))
			if err != nil {
				return fmt.Errorf("load registry: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", lang, reg.LanguageLabel(string(lang)))
			return err
		},
	}
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <summary.json>",
		Short: "Store a summary file for a user",
		Long: `Validate a summary document and store it in the database configured
by DB_PATH.

Example:
  bookdigest import --user 42 --style study --file-name deep-work.pdf deep-work.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			style, _ := cmd.Flags().GetString("style")
			fileName, _ := cmd.Flags().GetString("file-name")

			if strings.TrimSpace(userID) == "" {
				return fmt.Errorf("--user flag is required")
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read summary: %w", err)
			}

			if _, err = summary.Parse(style, string(raw)); err != nil {
				return fmt.Errorf("parse summary: %w", err)
			}

			if fileName == "" {
				fileName = filepath.Base(args[0])
			}

			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}

			log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
			db, err := database.New(cmd.Context(), cfg.DBPath, log)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			s, err := db.AddSummary(cmd.Context(), domain.Summary{
				UserID:   userID,
				FileName: fileName,
				Style:    style,
				Content:  string(raw),
			})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %s as %s\n", s.FileName, s.ID)
			return err
		},
	}

	cmd.Flags().String("user", "", "Owner user ID")
	cmd.Flags().String("style", "executive", "Summary style")
	cmd.Flags().String("file-name", "", "Book file name (defaults to the summary file name)")

	return cmd
}

func readDocument(path, style string) (*summary.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read summary: %w", err)
	}

	doc, err := summary.Parse(style, string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse summary: %w", err)
	}

	return doc, nil
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mpataki/codeplay/internal/chat"
	"github.com/mpataki/codeplay/internal/models"
	"github.com/mpataki/codeplay/internal/playground"
	"github.com/mpataki/codeplay/internal/preset"
	"github.com/mpataki/codeplay/internal/workspace"
)

func (c *cli) newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <file>...",
		Short: "Run snippet files and print their reports",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, _ := cmd.Flags().GetString("lang")
			asJSON, _ := cmd.Flags().GetBool("json")

			sources := make([]*workspace.Source, len(args))
			for i, path := range args {
				src, err := workspace.ReadSource(path, models.ParseLanguage(lang))
				if err != nil {
					return err
				}
				sources[i] = src
			}

			r := c.newRunner()
			reports := make([]models.Report, len(sources))
			g, ctx := errgroup.WithContext(cmd.Context())
			for i, src := range sources {
				g.Go(func() error {
					reports[i] = r.Run(ctx, src.Language, src.Text)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			failed := false
			for i, report := range reports {
				failed = failed || report.IsError
				if asJSON {
					line, err := json.Marshal(struct {
						Path string `json:"path"`
						models.Report
					}{sources[i].Path, report})
					if err != nil {
						return err
					}
					fmt.Println(string(line))
					continue
				}
				if len(reports) > 1 {
					pterm.DefaultSection.Println(sources[i].Path)
				}
				printReport(report)
			}

			if failed {
				return errReported
			}
			return nil
		},
	}

	cmd.Flags().StringP("lang", "l", "", "Language of the files (default: from the extension)")
	cmd.Flags().Bool("json", false, "Print one JSON report per line")
	return cmd
}

func printReport(report models.Report) {
	if report.IsError {
		fmt.Fprintln(os.Stderr, pterm.Red(report.Output))
		return
	}
	fmt.Println(report.Output)
}

func (c *cli) newFixCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix <file>",
		Short: "Suggest a fix for a failing snippet",
		Long:  "Runs the snippet and, when the run fails, asks the assistant for a corrected version.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, _ := cmd.Flags().GetString("lang")
			write, _ := cmd.Flags().GetBool("write")
			ctx := cmd.Context()

			src, err := workspace.ReadSource(args[0], models.ParseLanguage(lang))
			if err != nil {
				return err
			}

			session := playground.New(playground.Options{
				Runner:    c.newRunner(),
				Suggester: c.newAssistant(ctx),
				Notifier:  c.notifier,
				Logger:    c.logger.Named("playground"),
				Language:  src.Language,
				Source:    src.Text,
			})
			defer session.Close()

			report, err := session.Run(ctx)
			if err != nil {
				return err
			}
			if !report.IsError {
				pterm.Info.Println("The snippet runs without errors; nothing to fix")
				printReport(report)
				return nil
			}
			printReport(report)

			spinner, _ := pterm.DefaultSpinner.Start("Asking the assistant...")
			sug, err := session.RequestSuggestion(ctx)
			if err != nil {
				spinner.Stop()
				return err
			}
			if sug.IsError {
				// The session has already told the user
				spinner.Stop()
				return errReported
			}
			spinner.Success("Suggestion ready")

			if write {
				if err := session.ApplySuggestion(); err != nil {
					return err
				}
				if err := workspace.WriteFile(src.Path, session.Source()); err != nil {
					return err
				}
				pterm.Success.Printfln("Applied fix to %s", src.Path)
				return nil
			}
			fmt.Println(sug.FixedSource)
			return nil
		},
	}

	cmd.Flags().StringP("lang", "l", "", "Language of the file (default: from the extension)")
	cmd.Flags().BoolP("write", "w", false, "Overwrite the file with the suggested fix")
	return cmd
}

func (c *cli) newChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat <message>...",
		Short: "Ask the assistant a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, _ := cmd.Flags().GetString("lang")

			transcript := chat.New(c.newAssistant(cmd.Context()), chat.Options{
				Language: models.ParseLanguage(lang),
				Notifier: c.notifier,
				Logger:   c.logger.Named("chat"),
			})
			defer transcript.Close()

			spinner, _ := pterm.DefaultSpinner.Start("Thinking...")
			err := transcript.Send(cmd.Context(), strings.Join(args, " "))
			spinner.Stop()
			if errors.Is(err, chat.ErrEmptyMessage) {
				return err
			}
			if err != nil {
				return errReported
			}

			msgs := transcript.Messages()
			reply := msgs[len(msgs)-1].Content
			out, err := glamour.Render(reply, "auto")
			if err != nil {
				out = reply
			}
			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().StringP("lang", "l", "", "Language the assistant should answer in (default: typescript)")
	return cmd
}

func (c *cli) newPresetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets [name]",
		Short: "List presets, or print one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets, err := preset.LoadAll(c.cfg.PresetDirs())
			if err != nil {
				return fmt.Errorf("failed to load presets: %w", err)
			}

			if len(args) == 1 {
				p, ok := presets[args[0]]
				if !ok {
					return fmt.Errorf("preset %q not found", args[0])
				}
				fmt.Println(p.Source)
				return nil
			}

			data := pterm.TableData{{"NAME", "LANGUAGE", "DESCRIPTION"}}
			for _, p := range preset.Sorted(presets) {
				data = append(data, []string{p.Name, string(p.Language), p.Description})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}
	return cmd
}

func (c *cli) newDownloadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <file>",
		Short: "Write a snippet to code.<ext> in the download directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, _ := cmd.Flags().GetString("lang")
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = c.cfg.DownloadDir()
			}

			src, err := workspace.ReadSource(args[0], models.ParseLanguage(lang))
			if err != nil {
				return err
			}
			ws, err := workspace.Open(dir)
			if err != nil {
				return err
			}

			session := playground.New(playground.Options{
				Downloads: ws,
				Notifier:  c.notifier,
				Logger:    c.logger.Named("playground"),
				Language:  src.Language,
				Source:    src.Text,
			})
			defer session.Close()

			path, err := session.Download()
			if err != nil {
				return errReported
			}
			fmt.Println(path)
			return nil
		},
	}

	cmd.Flags().StringP("lang", "l", "", "Language of the file (default: from the extension)")
	cmd.Flags().StringP("dir", "d", "", "Download directory (default: from config)")
	return cmd
}

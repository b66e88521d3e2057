package main

import (
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/mpataki/codeplay/internal/models"
	"github.com/mpataki/codeplay/internal/playground"
	"github.com/mpataki/codeplay/internal/storage"
	"github.com/mpataki/codeplay/internal/workspace"
)

func (c *cli) newSnippetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snippet",
		Short: "Manage the snippet library",
	}

	cmd.AddCommand(c.newSnippetSaveCommand())
	cmd.AddCommand(c.newSnippetListCommand())
	cmd.AddCommand(c.newSnippetShowCommand())
	cmd.AddCommand(c.newSnippetDeleteCommand())
	return cmd
}

func (c *cli) newSnippetSaveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save <name> <file>",
		Short: "Save a file to the library, replacing any snippet with the same name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lang, _ := cmd.Flags().GetString("lang")

			src, err := workspace.ReadSource(args[1], models.ParseLanguage(lang))
			if err != nil {
				return err
			}

			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			session := playground.New(playground.Options{
				Store:    store,
				Notifier: c.notifier,
				Logger:   c.logger.Named("playground"),
				Language: src.Language,
				Source:   src.Text,
			})
			defer session.Close()

			if _, err := session.SaveSnippet(args[0]); err != nil {
				return errReported
			}
			return nil
		},
	}

	cmd.Flags().StringP("lang", "l", "", "Language of the file (default: from the extension)")
	return cmd
}

func (c *cli) newSnippetListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved snippets, most recently saved first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			snippets, err := store.ListSnippets(limit)
			if err != nil {
				return err
			}
			if len(snippets) == 0 {
				fmt.Println("No snippets saved yet.")
				return nil
			}

			data := pterm.TableData{{"NAME", "LANGUAGE", "UPDATED"}}
			for _, sn := range snippets {
				data = append(data, []string{sn.Name, string(sn.Language), storage.FormatTimeAgo(sn.UpdatedAt)})
			}
			return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
		},
	}

	cmd.Flags().IntP("limit", "n", 50, "Maximum number of snippets to show")
	return cmd
}

func (c *cli) newSnippetShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a saved snippet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			sn, err := store.GetSnippet(args[0])
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("snippet %q not found", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Println(sn.Source)
			return nil
		},
	}
}

func (c *cli) newSnippetDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved snippet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteSnippet(args[0]); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return fmt.Errorf("snippet %q not found", args[0])
				}
				return err
			}
			pterm.Success.Printfln("Deleted snippet %q", args[0])
			return nil
		},
	}
}

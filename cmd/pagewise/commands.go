package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/pagewise/internal/config"
	"github.com/kalambet/pagewise/internal/notebook"
)

// --- upload ---

var uploadCmd = &cobra.Command{
	Use:   "upload <file.pdf>",
	Short: "Create a notebook from a PDF",
	Long: `Create a notebook from a PDF.

Examples:
  pagewise upload ./paper.pdf --name "Attention paper"
  pagewise upload ./manual.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Uploading %s", path)
		res, err := uploadNotebook(cmd.Context(), client, name, path)
		if err != nil {
			return err
		}

		printSuccess("Notebook %s ready (%d chunks, %.2fs)", res.SessionID, res.ChunkCount, res.ProcessingTime)
		fmt.Fprintln(os.Stdout, res.SessionID)
		return nil
	},
}

func init() {
	uploadCmd.Flags().String("name", "", "notebook name (default: file name)")
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <notebook-id> <question>",
	Short: "Ask a notebook a question",
	Long: `Ask a notebook a question. When the PDF cannot answer it, the server
falls back to web search and says so.

Examples:
  pagewise ask 6f1c... "What dataset was used for evaluation?"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		res, err := askNotebook(cmd.Context(), client, args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		printAnswer(res)
		return nil
	},
}

func printAnswer(res answerResult) {
	fmt.Fprintln(os.Stdout, res.Answer)
	fmt.Fprintln(os.Stdout)

	switch res.Source {
	case notebook.SourcePDF:
		for _, s := range res.PDFSources {
			pages := fmt.Sprintf("p. %d", s.PageStart)
			if s.PageEnd != s.PageStart {
				pages = fmt.Sprintf("pp. %d-%d", s.PageStart, s.PageEnd)
			}
			printStatus("Source", "%s, %s", s.FileName, pages)
		}
	case notebook.SourceWeb:
		printWarning("answered from web search; the notebook did not cover this")
		for _, s := range res.WebSources {
			printStatus("Source", "%s %s", s.Title, colorize(cyan, s.URL))
		}
	}
	printStatus("Model", "%s (%.2fs, %d chunks)", res.Metadata.Model, res.ProcessingTime, res.ChunksUsed)
}

// --- notebooks ---

var notebooksCmd = &cobra.Command{
	Use:   "notebooks",
	Short: "Manage notebooks",
}

var notebooksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notebooks, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		list, err := listNotebooks(cmd.Context(), client)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			printWarning("no notebooks yet; create one with: pagewise upload <file.pdf>")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tFILE\tCHUNKS\tCREATED")
		for _, nb := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", nb.ID, nb.Name, nb.FileName, nb.ChunkCount, nb.CreatedAt)
		}
		return tw.Flush()
	},
}

var notebooksDeleteCmd = &cobra.Command{
	Use:   "delete <notebook-id>",
	Short: "Delete a notebook and its files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		if err := deleteNotebook(cmd.Context(), client, args[0]); err != nil {
			return err
		}
		printSuccess("Deleted notebook %s", args[0])
		return nil
	},
}

func init() {
	notebooksCmd.AddCommand(notebooksListCmd)
	notebooksCmd.AddCommand(notebooksDeleteCmd)
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the servers are up",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		nb, err := newAPIClient()
		if err != nil {
			return err
		}
		rs, err := newRestaurantClient()
		if err != nil {
			return err
		}

		printStatus("Notebook server", "%s", upDown(healthy(ctx, nb, "/api/v1/health"), nb.baseURL))
		printStatus("Restaurant server", "%s", upDown(healthy(ctx, rs, "/api/health"), rs.baseURL))
		printStatus("Data dir", "%s", cfg.Storage.DataDir)
		printStatus("Model", "%s/%s", cfg.LLM.Provider, cfg.LLM.Model)
		printStatus("Embeddings", "%s/%s", cfg.LLM.EmbedProvider, cfg.LLM.EmbedModel)

		if err := cfg.RequireNotebook(); err != nil {
			printWarning("notebook service: %v", err)
		}
		if err := cfg.RequireRestaurant(); err != nil {
			printWarning("restaurant service: %v", err)
		}
		return nil
	},
}

func upDown(ok bool, url string) string {
	if ok {
		return colorize(green, "running") + " at " + url
	}
	return colorize(red, "not running") + " at " + url
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(bold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: fmt.Sprintf(`Set a configuration value. API keys go to the secrets file, everything
else to the config file.

Valid keys:
  %s`, strings.Join(config.ValidKeys(), "\n  ")),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s", key)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.FilePath())
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}

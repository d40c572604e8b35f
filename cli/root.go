// Package cli wires the retrieval subsystem into the lessonsearch command
// tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/chansereyvath/lessonsearch/search"
	"github.com/chansereyvath/lessonsearch/server"
)

// NewRootCommand builds the lessonsearch command tree.
func NewRootCommand() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "lessonsearch",
		Short:         "Index lesson transcripts and search them semantically",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env is fine; explicit env always wins.
			if err := godotenv.Load(); err == nil {
				log.Printf("[cli] loaded environment from .env")
			}
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "Config file path")

	root.AddCommand(newServeCommand(&cfgPath))
	root.AddCommand(newIndexCommand(&cfgPath))
	root.AddCommand(newSearchCommand(&cfgPath))
	root.AddCommand(newAskCommand(&cfgPath))

	return root
}

func newServeCommand(cfgPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(*cfgPath)
			if err != nil {
				return err
			}
			defer app.Close()

			srv := server.New(server.Config{
				Indexer: app.indexer,
				Engine:  app.engine,
				Gateway: app.gateway,
				Metrics: app.metrics,
			})

			listen := addr
			if listen == "" {
				listen = app.cfg.ListenAddr
			}
			log.Printf("[cli] listening on %s", listen)
			return http.ListenAndServe(listen, srv.Handler())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

func newIndexCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "index <document-id> <file>",
		Short: "Chunk, embed and store a lesson transcript",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(*cfgPath)
			if err != nil {
				return err
			}
			defer app.Close()

			text, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read transcript: %w", err)
			}

			count, err := app.indexer.IndexDocument(context.Background(), args[0], string(text))
			if err != nil {
				return err
			}
			fmt.Printf("indexed %s: %d chunks\n", args[0], count)
			return nil
		},
	}
}

func newSearchCommand(cfgPath *string) *cobra.Command {
	var (
		subject    string
		documentID string
		limit      int
		threshold  float64
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a hybrid search over indexed lessons",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(*cfgPath)
			if err != nil {
				return err
			}
			defer app.Close()

			results := app.engine.Search(context.Background(), search.Query{
				Text:       args[0],
				Subject:    subject,
				DocumentID: documentID,
				Limit:      limit,
				Threshold:  threshold,
			})
			if len(results) == 0 {
				fmt.Println("no results")
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Restrict expansion to one subject")
	cmd.Flags().StringVar(&documentID, "document", "", "Restrict search to one document")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum results")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum semantic similarity")
	return cmd
}

func newAskCommand(cfgPath *string) *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "ask <document-id> <question>",
		Short: "Answer a question from one lesson's content",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(*cfgPath)
			if err != nil {
				return err
			}
			defer app.Close()

			answer, err := app.indexer.AnswerQuestion(context.Background(), args[0], args[1], topK)
			if err != nil {
				return err
			}
			fmt.Println(answer.Answer)
			for _, c := range answer.Citations {
				fmt.Printf("  [chunk %d, similarity %.3f]\n", c.Index, c.Similarity)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 0, "Chunks to retrieve as context")
	return cmd
}

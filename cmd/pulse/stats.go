package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	var summary bool

	cmd := &cobra.Command{
		Use:   "stats <project-id>",
		Short: "Print a project's rollup counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid project id: %w", err)
			}

			domain, err := connect()
			if err != nil {
				return err
			}

			if summary {
				s, err := domain.Stats.Summary(cmd.Context(), projectID)
				if err != nil {
					return err
				}
				return printJSON(s)
			}

			s, err := domain.Stats.ProjectStats(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			return printJSON(s)
		},
	}

	cmd.Flags().BoolVar(&summary, "summary", false, "print the sentiment and pain point summary instead")
	return cmd
}

func termsCmd() *cobra.Command {
	var (
		limit   int
		refresh bool
	)

	cmd := &cobra.Command{
		Use:   "terms <project-id>",
		Short: "Print a project's ranked terms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid project id: %w", err)
			}

			domain, err := connect()
			if err != nil {
				return err
			}

			if refresh {
				if _, err := domain.Frequency.Refresh(cmd.Context(), projectID); err != nil {
					return err
				}
			}

			ranked, err := domain.Stats.TopTerms(cmd.Context(), projectID, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tTERM\tFREQUENCY\tDOCUMENTS\tTF-IDF\tCATEGORY")
			for _, t := range ranked {
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%.4f\t%s\n",
					t.Rank, t.Term.Term, t.Frequency, t.DocumentCount, t.TFIDF, t.Category)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "number of terms (default from engine config)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "recompute the term table before reading")
	return cmd
}

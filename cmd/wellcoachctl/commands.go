package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wellcoach/internal/domain"
	"wellcoach/internal/recommend"
)

func clientsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clients",
		Short: "List clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			clients, err := a.client.Clients(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout(), "ID", "NAME", "STATUS", "PRACTITIONER")
			for _, c := range clients {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Status, c.Practitioner)
			}
			return tw.Flush()
		},
	}
}

func generateCmd(a *app) *cobra.Command {
	var (
		clientID string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate recommendations for one client or for every client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			out := cmd.OutOrStdout()
			if clientID != "" {
				recs, err := a.client.Generate(cmd.Context(), clientID, limit)
				if err != nil {
					return err
				}
				printRecommendations(out, recs)
				fmt.Fprintf(out, "%d recommendation(s) created\n", len(recs))
				return nil
			}
			results, err := a.client.GenerateAll(cmd.Context(), limit)
			if err != nil {
				return err
			}
			total, failed := 0, 0
			for _, res := range results {
				if res.Error != "" {
					failed++
					fmt.Fprintf(out, "%s (%s): failed: %s\n", res.ClientName, res.ClientID, res.Error)
					continue
				}
				total += len(res.Recommendations)
				fmt.Fprintf(out, "%s (%s): %d recommendation(s)\n", res.ClientName, res.ClientID, len(res.Recommendations))
			}
			fmt.Fprintf(out, "%d recommendation(s) created for %d client(s), %d failed\n", total, len(results)-failed, failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "client id; omit to generate for every client")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum recommendations per client (server default when 0)")
	return cmd
}

func listCmd(a *app) *cobra.Command {
	var f ListFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recommendations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.client.List(cmd.Context(), f)
			if err != nil {
				return err
			}
			printEntries(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.ClientID, "client", "", "only this client's recommendations")
	cmd.Flags().StringVar(&f.Status, "status", "", "all, pending, accepted or declined")
	cmd.Flags().StringVar(&f.Search, "search", "", "match client name or resource title")
	cmd.Flags().StringVar(&f.Sort, "sort", "", "date, score, client or resource")
	return cmd
}

func disposeCmd(a *app, action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " ID",
		Short: "Mark a recommendation as " + pastTense(action),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.client.Dispose(cmd.Context(), args[0], action)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", rec.ID, pastTense(action))
			return nil
		},
	}
}

func deleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a recommendation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s deleted\n", args[0])
			return nil
		},
	}
}

func bulkCmd(a *app) *cobra.Command {
	var clientID, search string
	cmd := &cobra.Command{
		Use:   "bulk accept|decline [IDs...]",
		Short: "Accept or decline many recommendations",
		Long: `Accept or decline the given recommendations. Without IDs, every pending
recommendation matching --client and --search is used.`,
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: []string{"accept", "decline"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := args[0]
			if action != "accept" && action != "decline" {
				return fmt.Errorf("unknown bulk action %q (use accept or decline)", action)
			}
			res, err := a.client.Bulk(cmd.Context(), action, args[1:], clientID, search)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, f := range res.Failed {
				fmt.Fprintf(out, "%s: %s\n", f.ID, f.Error)
			}
			fmt.Fprintf(out, "%d %s, %d failed\n", len(res.Succeeded), pastTense(action), len(res.Failed))
			if len(res.Failed) > 0 {
				return fmt.Errorf("%d of %d recommendation(s) failed", len(res.Failed), len(res.Failed)+len(res.Succeeded))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "restrict to this client when no IDs are given")
	cmd.Flags().StringVar(&search, "search", "", "match client name or resource title when no IDs are given")
	return cmd
}

func pastTense(action string) string {
	if action == "decline" {
		return "declined"
	}
	return action + "ed"
}

func newTable(w io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, h := range headers {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, h)
	}
	fmt.Fprintln(tw)
	return tw
}

func printRecommendations(w io.Writer, recs []domain.Recommendation) {
	tw := newTable(w, "ID", "RESOURCE", "GOAL", "SCORE")
	for _, r := range recs {
		goal := "-"
		if r.GoalID != nil {
			goal = *r.GoalID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.ID, r.ResourceID, goal, r.Score)
	}
	_ = tw.Flush()
}

func printEntries(w io.Writer, entries []recommend.Entry) {
	tw := newTable(w, "ID", "CLIENT", "RESOURCE", "TYPE", "SCORE", "STATUS", "DATE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			e.ID, e.ClientName, e.ResourceTitle, e.ResourceType, e.Score, e.Status,
			e.RecommendationDate.Format("2006-01-02"))
	}
	_ = tw.Flush()
}

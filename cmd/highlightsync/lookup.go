package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"highlightsync/internal/enrich"
	"highlightsync/internal/entity"
	"highlightsync/internal/platform/googlebooks"
)

func newLookupCmd(c *cli) *cobra.Command {
	var author string
	cmd := &cobra.Command{
		Use:   "lookup <title>",
		Short: "Search Google Books by title and author",
		Long: `Lookup is an ad-hoc title search. Trailing parenthetical qualifiers such as
"(Illustrated Edition)" are dropped before searching. Its results are never
written to the store.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			books := googlebooks.NewClient("highlightsync/1.0", c.cfg.GoogleBooksAPIKey, c.cfg.HTTPRPS, c.cfg.HTTPTimeout)
			key := entity.BookKey{Title: args[0], Author: author}
			md := enrich.LookupByTitle(cmd.Context(), books, key, c.logger)
			if md == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "no match for %q\n", enrich.CleanTitle(args[0]))
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(md)
		},
	}
	cmd.Flags().StringVar(&author, "author", "", "Author to narrow the search")
	return cmd
}

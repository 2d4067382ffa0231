// Command seed writes synthetic notebook pages into SNAPSHOT_DIR so the
// extract command and the API can be exercised without a real export.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"

	"highlightsync/internal/config"
	"highlightsync/internal/testutil"
)

func main() {
	config.LoadEnvFiles()
	var (
		dir     = flag.String("dir", config.GetEnv("SNAPSHOT_DIR", "snapshots"), "Directory to write pages into")
		books   = flag.Int("books", 25, "Number of books")
		perBook = flag.Int("highlights", 12, "Highlights per book")
		seed    = flag.Uint64("seed", 1, "Random seed; the same seed writes the same pages")
	)
	flag.Parse()

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		slog.Error("create snapshot dir failed", "dir", *dir, "error", err)
		os.Exit(1)
	}
	r := rand.New(rand.NewPCG(*seed, *seed))
	for i := range *books {
		page := generatePage(r, i, *perBook)
		if _, err := testutil.WriteSnapshot(*dir, page); err != nil {
			slog.Error("write page failed", "title", page.Title, "error", err)
			os.Exit(1)
		}
	}
	slog.Info("seeded notebook pages", "dir", *dir, "books", *books)
}

// generatePage builds one book. Roughly a third of highlights get a note,
// one book in ten has no vendor id and one in eight hits the export limit.
func generatePage(r *rand.Rand, i, highlights int) testutil.Page {
	p := testutil.Page{
		Title:         fmt.Sprintf("The %s of %s", randomWord(r), randomWord(r)),
		Author:        authors[r.IntN(len(authors))],
		ExportLimited: r.IntN(8) == 0,
	}
	if r.IntN(10) != 0 {
		p.VendorID = fmt.Sprintf("B%09d", 100000000+i)
	}
	for h := range highlights {
		id := fmt.Sprintf("S%03dH%03d", i, h)
		words := make([]string, 6+r.IntN(10))
		for w := range words {
			words[w] = strings.ToLower(randomWord(r))
		}
		p.Fragments = append(p.Fragments, testutil.Highlight(id, strings.Join(words, " ")+"."))
		if r.IntN(3) == 0 {
			p.Fragments = append(p.Fragments, testutil.Note(id+"N", "On "+strings.ToLower(randomWord(r))))
		}
	}
	return p
}

var authors = []string{"Ursula K. Le Guin", "Marcus Aurelius", "Octavia E. Butler", "Italo Calvino", "Mary Beard", "Unknown Author"}

func randomWord(r *rand.Rand) string {
	words := []string{
		"Adventure", "Mystery", "Journey", "Discovery", "Secrets", "Dreams", "Hope",
		"Love", "War", "Peace", "Science", "Nature", "Technology", "History", "Future",
		"Past", "Present", "Reality", "Imagination", "Wisdom", "Life", "Death",
		"Light", "Darkness", "World", "Universe", "Time", "Space", "Mind", "Soul",
	}
	return words[r.IntN(len(words))]
}

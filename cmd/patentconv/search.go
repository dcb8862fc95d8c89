package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/FACorreiaa/patentgrant/internal/domain/grant/export"
	"github.com/FACorreiaa/patentgrant/internal/domain/grant/search"
	"github.com/FACorreiaa/patentgrant/pkg/config"
)

func runIndex(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := newFlagSet("index")
	in := fs.String("in", "grants.csv", "converted CSV to index")
	indexPath := fs.String("index", cfg.Search.IndexPath, "index directory")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	rows, err := export.ReadRowsFile(*in)
	if err != nil {
		return err
	}

	idx, err := search.NewPatentIndex(*indexPath)
	if err != nil {
		return err
	}
	defer idx.Close()

	n, err := idx.IndexRows(rows)
	if err != nil {
		return err
	}
	total, err := idx.DocumentCount()
	if err != nil {
		return err
	}

	logger.Info("patents indexed",
		slog.String("index", *indexPath),
		slog.Int("indexed", n),
		slog.Uint64("total", total),
	)
	return nil
}

func runSearch(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := newFlagSet("search")
	indexPath := fs.String("index", cfg.Search.IndexPath, "index directory")
	text := fs.String("q", "", "query text")
	fuzziness := fs.Int("fuzzy", 0, "allowed edits per term (0-2)")
	advanced := fs.Bool("advanced", false, `treat -q as a query string ("+laser -diode title:beam")`)
	class := fs.String("class", "", "exact ICL class code")
	limit := fs.Int("limit", 10, "maximum hits")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *text == "" && *class == "" {
		fmt.Fprintln(fs.Output(), "search: -q or -class is required")
		return errUsage
	}

	idx, err := search.NewPatentIndex(*indexPath)
	if err != nil {
		return err
	}
	defer idx.Close()

	var hits []search.Hit
	switch {
	case *class != "":
		hits, err = idx.SearchByClass(*class, *limit)
	case *advanced:
		hits, err = idx.SearchAdvanced(*text, *limit)
	case *fuzziness > 0:
		hits, err = idx.SearchFuzzy(*text, *fuzziness, *limit)
	default:
		hits, err = idx.Search(*text, *limit)
	}
	if err != nil {
		return err
	}

	for _, h := range hits {
		fmt.Fprintf(os.Stdout, "%s\t%s\t%.3f\t%s\n", h.WKU, h.IssueDate, h.Score, h.Title)
	}
	logger.Debug("search completed", slog.Int("hits", len(hits)))
	return nil
}

func runMatch(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := newFlagSet("match")
	in := fs.String("in", "grants.csv", "converted CSV to scan")
	terms := fs.String("terms", "", "comma separated watch terms matched in titles and claims")
	assignee := fs.String("assignee", "", "suggest known assignees similar to this name")
	threshold := fs.Int("threshold", 80, "assignee similarity threshold (0-100)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *terms == "" && *assignee == "" {
		fmt.Fprintln(fs.Output(), "match: -terms or -assignee is required")
		return errUsage
	}

	rows, err := export.ReadRowsFile(*in)
	if err != nil {
		return err
	}

	if *terms != "" {
		watch := search.NewWatchlist(strings.Split(*terms, ","))
		tally := watch.Tally(rows)
		names := make([]string, 0, len(tally))
		for term := range tally {
			names = append(names, term)
		}
		sort.Strings(names)
		for _, term := range names {
			fmt.Fprintf(os.Stdout, "%s\t%d\t%s\n", term, len(tally[term]), strings.Join(tally[term], ";"))
		}
	}

	if *assignee != "" {
		matcher := search.NewAssigneeMatcher(rows)
		for _, m := range matcher.Suggest(*assignee, *threshold, 20) {
			fmt.Fprintf(os.Stdout, "%s\t%d\t%d\n", m.Name, m.Patents, m.Score)
		}
		logger.Debug("assignees compared", slog.Int("known", matcher.NameCount()))
	}
	return nil
}

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aluiziolira/go-scrape-venues/models"
	"github.com/aluiziolira/go-scrape-venues/pipeline"
	"github.com/aluiziolira/go-scrape-venues/scraper"
)

const separator = "--------------------------------------------------"

func printBanner(entity string) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Printf("SCRAPING %s\n", strings.ToUpper(strings.ReplaceAll(entity, "-", " ")))
	fmt.Println(strings.Repeat("=", 60))
}

func printSummary(summary models.RunSummary, stats scraper.Stats, paths pipeline.Paths, saved int) {
	fmt.Println("\n" + separator)
	fmt.Printf("Scrape complete: %s\n", summary.Entity)
	fmt.Printf("  Total URLs:    %d\n", summary.TotalURLs)
	fmt.Printf("  Attempted:     %d\n", summary.Attempted)
	fmt.Printf("  Succeeded:     %d\n", summary.Succeeded)
	fmt.Printf("  From cache:    %d\n", summary.Skipped)
	fmt.Printf("  Failed:        %d\n", summary.Failed)
	if summary.Duplicates > 0 {
		fmt.Printf("  Duplicates:    %d\n", summary.Duplicates)
	}
	if summary.Interrupted {
		fmt.Printf("  Interrupted:   rerun to resume from cache\n")
	}
	fmt.Printf("  Requests:      %d\n", stats.RequestCount)
	fmt.Printf("  Retries:       %d\n", stats.RetryCount)
	if len(stats.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", stats.ErrorsByType)
	}
	fmt.Printf("  Duration:      %v\n", summary.Duration())
	if saved > 0 {
		fmt.Printf("  Saved:         %d records\n", saved)
		fmt.Printf("    - %s\n", paths.JSON)
		fmt.Printf("    - %s\n", paths.CSV)
	}
	fmt.Println(separator)
}

type categoryCount struct {
	name  string
	count int
}

func topCategories(venues []*models.Venue, n int) []categoryCount {
	counts := make(map[string]int)
	for _, v := range venues {
		name := "Unknown"
		if v.Category != nil {
			name = *v.Category
		}
		counts[name]++
	}

	out := make([]categoryCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, categoryCount{name: name, count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func printCategories(venues []*models.Venue) {
	if len(venues) == 0 {
		return
	}
	fmt.Printf("\nTotal venues: %d\n", len(venues))
	fmt.Println("By category:")
	for _, c := range topCategories(venues, 10) {
		fmt.Printf("  %s: %d\n", c.name, c.count)
	}
}

func printPricingSample(rows []models.Pricing, paths pipeline.Paths) {
	fmt.Println("\n" + separator)
	fmt.Printf("Total vendors: %d\n", len(rows))
	if len(rows) > 0 {
		fmt.Printf("  Saved to %s and %s\n", paths.JSON, paths.CSV)
	}
	for i, row := range rows {
		if i == 5 {
			break
		}
		name := "N/A"
		if row.Name != nil {
			name = *row.Name
		}
		fmt.Printf("\n%d. %s\n", i+1, name)
		fmt.Printf("   Rating: %.1f/5\n", row.Rating)
		if row.LunchFrom != nil {
			fmt.Printf("   Lunch:  %s %s\n", *row.LunchFrom, deref(row.LunchDays))
		}
		if row.DinnerFrom != nil {
			fmt.Printf("   Dinner: %s %s\n", *row.DinnerFrom, deref(row.DinnerDays))
		}
		if row.TablesRange != nil {
			fmt.Printf("   Tables: %s %s\n", *row.TablesRange, deref(row.TablesDays))
		}
	}
	fmt.Println(separator)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"marketplace-scraper/models"
	"marketplace-scraper/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate computes the run report over the merged records.
func (s *InsightService) Generate(site, runID string, records []models.CombinedRecord) *models.RunReport {
	report := &models.RunReport{
		Site:     site,
		RunID:    runID,
		ByBrand:  make(map[string]int),
		ByFuel:   make(map[string]int),
		Coverage: make(map[string]float64),
	}

	if len(records) == 0 {
		return report
	}

	report.TotalListings = len(records)
	known := make(map[string]int)

	for _, r := range records {
		d := r.Detail
		if d.Resolved() {
			report.Enriched++
		} else {
			report.Failed++
		}
		report.ImagesWritten += len(d.Images)

		if d.Brand.Known {
			report.ByBrand[strings.ToUpper(d.Brand.Value)]++
		}
		if r.Basic.FuelType.Known {
			report.ByFuel[r.Basic.FuelType.Value]++
		}
		for _, key := range models.DetailFields {
			if d.Slot(key).Known {
				known[key]++
			}
		}
	}

	for _, key := range models.DetailFields {
		report.Coverage[key] = round2(100 * float64(known[key]) / float64(len(records)))
	}

	s.logger.Debug("[report] %d records, %d enriched, %d failed", report.TotalListings, report.Enriched, report.Failed)
	return report
}

func (s *InsightService) Print(w io.Writer, r *models.RunReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 %s RUN REPORT\033[0m\n", strings.ToUpper(r.Site))
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Run ID                 : %s\n", r.RunID)
	fmt.Fprintf(w, "  Listings written       : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Fprintf(w, "  Enriched               : \033[1m%d\033[0m\n", r.Enriched)
	fmt.Fprintf(w, "  Detail failures        : \033[1m%d\033[0m\n", r.Failed)
	fmt.Fprintf(w, "  Images written         : \033[1m%d\033[0m\n", r.ImagesWritten)
	fmt.Fprintln(w)

	printTop(w, "Top Brands", thin, r.ByBrand)
	printTop(w, "Fuel Types", thin, r.ByFuel)

	fmt.Fprintf(w, "\033[1;33m  Field Coverage\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.TotalListings == 0 {
		fmt.Fprintf(w, "  No records\n")
	} else {
		for _, key := range models.DetailFields {
			pct := r.Coverage[key]
			bar := strings.Repeat("█", int(pct/5))
			fmt.Fprintf(w, "  %-14s %-20s %5.1f%%\n", key, bar, pct)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

type labelCount struct {
	label string
	count int
}

// topCounts sorts by count descending, then label, and keeps at most n entries.
func topCounts(m map[string]int, n int) []labelCount {
	out := make([]labelCount, 0, len(m))
	for label, cnt := range m {
		out = append(out, labelCount{label, cnt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].label < out[j].label
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func printTop(w io.Writer, title, thin string, m map[string]int) {
	fmt.Fprintf(w, "\033[1;33m  %s\033[0m\n", title)
	fmt.Fprintf(w, "  %s\n", thin)
	top := topCounts(m, 5)
	if len(top) == 0 {
		fmt.Fprintf(w, "  No data\n")
	}
	for _, lc := range top {
		bar := strings.Repeat("█", min(lc.count, 40))
		fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(lc.label, 28), bar, lc.count)
	}
	fmt.Fprintln(w)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

package models

// RunReport summarises one pipeline run for the console.
type RunReport struct {
	Site          string
	RunID         string
	TotalListings int
	// Enriched counts listings whose detail visit resolved at least one field.
	Enriched      int
	Failed        int
	ImagesWritten int
	ByBrand       map[string]int
	ByFuel        map[string]int
	// Coverage is the percentage of rows with a known value, per detail field.
	Coverage map[string]float64
}

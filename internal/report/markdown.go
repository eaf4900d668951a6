package report

import (
	"fmt"
	"io"
	"sort"
)

// WriteMarkdown renders a duplicate-address analysis as a markdown
// document with a summary, a voters-per-address distribution table, and a
// per-address detail section.
func WriteMarkdown(w io.Writer, a *DuplicateAnalysis) error {
	var err error
	p := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	p("# Duplicate Address Analysis Report\n\n")
	p("## Summary\n\n")
	p("- Total unique addresses analyzed: %d\n", a.TotalAddresses)
	p("- Addresses with multiple voters: %d\n", a.AddressesWithDuplicates)
	p("- Total voters at duplicate addresses: %d\n\n", a.VotersAtDuplicates)

	p("## Distribution of Voters per Address\n\n")
	p("| Number of Voters | Number of Addresses |\n")
	p("|-----------------|-------------------|\n")
	counts := make([]int, 0, len(a.Distribution))
	for c := range a.Distribution {
		counts = append(counts, c)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(counts)))
	for _, c := range counts {
		p("| %d | %d |\n", c, a.Distribution[c])
	}
	p("\n")

	p("## Detailed Results\n\n")
	for _, g := range a.Groups {
		p("### %s, %s, %s\n", g.Address, g.City, g.ZipCode)
		p("**Number of Voters:** %d\n\n", g.VoterCount)
		p("| Voter ID | Name | Registration Date |\n")
		p("|----------|------|------------------|\n")
		for _, v := range g.Voters {
			p("| %s | %s | %s |\n", v.VoterID, v.Name, v.RegistrationDate)
		}
		p("\n")
	}
	return err
}

// WriteQualityMarkdown renders a table quality report.
func WriteQualityMarkdown(w io.Writer, q *QualityReport) error {
	var err error
	p := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	p("# Data Quality Report: %s\n\n", q.Table)
	p("- Rows: %d\n", q.RowCount)
	p("- Completeness: %.1f%%\n\n", q.Completeness*100)

	p("| Column | Null Count | Null %% | Distinct |\n")
	p("|--------|-----------|--------|----------|\n")
	for _, c := range q.Columns {
		p("| %s | %d | %.1f%% | %d |\n", c.Column, c.NullCount, c.NullPercent, c.DistinctCount)
	}
	return err
}

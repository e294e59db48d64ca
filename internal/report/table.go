package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/JakeFAU/topic-crawler/internal/crawler"
)

// RenderTable writes the crawl log as an aligned text table, followed by a
// totals line.
func RenderTable(out io.Writer, records []crawler.LinkRecord) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEPTH\tSTATUS\tSIZE\tTYPE\tURL\tPARENT")
	failures := 0
	for _, r := range records {
		if r.Failed() {
			failures++
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n",
			r.Depth, r.Status, sizeLabel(r.SizeBytes), orDash(r.ContentType), r.URL, orDash(r.ParentURL))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush table: %w", err)
	}
	_, err := fmt.Fprintf(out, "%d pages, %d failed\n", len(records), failures)
	return err
}

func sizeLabel(n int64) string {
	if n < 0 {
		return "-"
	}
	return fmt.Sprintf("%d", n)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package pkgaudit

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Mismatch flag letters, composed per row in this fixed order.
const (
	flagVersion  = "V"
	flagPath     = "P"
	flagChecksum = "D"
	flagRemoved  = "R"
)

var flagLegend = []struct {
	letter string
	text   string
}{
	{flagVersion, "Loaded and on-disk version mismatch."},
	{flagPath, "Loaded and on-disk path mismatch."},
	{flagChecksum, "DLL MD5 mismatch, broken installation."},
	{flagRemoved, "Package was removed from disk."},
}

// Report is the final audit output: normalized records plus the library-root
// list the records were classified against, in legend order.
type Report struct {
	Records []PackageRecord `json:"records"`
	Roots   []string        `json:"roots"`
}

// Flags returns the mismatch flag string for a record: any of "V", "P", "D",
// "R" concatenated in that fixed order, or "" when the row is clean.
func Flags(rec PackageRecord) string {
	removed := rec.OnDiskVersion == ""

	var b strings.Builder
	if rec.LoadedVersion != "" && rec.OnDiskVersion != "" && versionsDiffer(rec.LoadedVersion, rec.OnDiskVersion) {
		b.WriteString(flagVersion)
	}
	// A removed package's stale loaded path is covered by R, not P.
	if !removed && rec.LoadedPath != "" && rec.DiskPath != "" && rec.LoadedPath != rec.DiskPath {
		b.WriteString(flagPath)
	}
	if rec.Checksum == ChecksumMismatch {
		b.WriteString(flagChecksum)
	}
	if removed {
		b.WriteString(flagRemoved)
	}
	return b.String()
}

// HasMismatch reports whether any record carries at least one flag.
func (r *Report) HasMismatch() bool {
	for _, rec := range r.Records {
		if Flags(rec) != "" {
			return true
		}
	}
	return false
}

// Mismatches counts the records carrying at least one flag.
func (r *Report) Mismatches() int {
	n := 0
	for _, rec := range r.Records {
		if Flags(rec) != "" {
			n++
		}
	}
	return n
}

// Render writes the tabular report, the library-root legend, and (when any
// flags occur) the flag legend. Text produces byte-identical output.
func (r *Report) Render(out io.Writer) error {
	withFlags := r.HasMismatch()

	w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	header := "PACKAGE\t\tVERSION\tDATE\tLIB\tSOURCE"
	if withFlags {
		header = "!\t" + header
	}
	fmt.Fprintln(w, header)

	for _, rec := range r.Records {
		row := []string{
			rec.Name,
			attachedMarker(rec),
			rec.EffectiveVersion(),
			dateCell(rec),
			libCell(rec),
			sourceCell(rec),
		}
		if withFlags {
			row = append([]string{Flags(rec)}, row...)
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	for i, root := range r.Roots {
		fmt.Fprintf(out, "[%d] %s\n", i+1, root)
	}

	if withFlags {
		fmt.Fprintln(out)
		occurring := r.occurringFlags()
		for _, entry := range flagLegend {
			if occurring[entry.letter] {
				fmt.Fprintf(out, "%s: %s\n", entry.letter, entry.text)
			}
		}
	}
	return nil
}

// Text returns the rendered report as a plain-text block, exactly as Render
// would print it.
func (r *Report) Text() string {
	var b strings.Builder
	// Render on a strings.Builder cannot fail.
	_ = r.Render(&b)
	return b.String()
}

func (r *Report) occurringFlags() map[string]bool {
	occurring := make(map[string]bool)
	for _, rec := range r.Records {
		for _, letter := range Flags(rec) {
			occurring[string(letter)] = true
		}
	}
	return occurring
}

func attachedMarker(rec PackageRecord) string {
	if rec.Attached {
		return "*"
	}
	return ""
}

func dateCell(rec PackageRecord) string {
	if rec.InstallDate.IsZero() {
		return "-"
	}
	return rec.InstallDate.Format("2006-01-02")
}

func libCell(rec PackageRecord) string {
	if rec.LibraryRoot < 0 {
		return "?"
	}
	return fmt.Sprintf("[%d]", rec.LibraryRoot+1)
}

func sourceCell(rec PackageRecord) string {
	if rec.Source == "" {
		return "-"
	}
	return rec.Source
}

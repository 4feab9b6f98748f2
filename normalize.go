package pkgaudit

import (
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// Normalize merges loaded-session state with collected on-disk metadata into
// one PackageRecord per package, classified against the configured library
// roots. Base-distribution packages are dropped unless includeBase is set.
// Output is sorted by package name.
func Normalize(items []Collected, session Session, libRoots []string, includeBase bool) []PackageRecord {
	roots := NormalizeRoots(libRoots)

	records := make([]PackageRecord, 0, len(items))
	for _, item := range items {
		rec := PackageRecord{
			Name:     item.Name,
			Checksum: item.Checksum,
		}
		if item.Found {
			rec.OnDiskVersion = item.Desc.Version
			rec.DiskPath = item.Desc.Path
			rec.Base = item.Desc.Base
			rec.InstallDate = item.InstallDate
			rec.Source = item.Source
		}
		if info, ok := session.Info(item.Name); ok {
			rec.LoadedVersion = info.Version
			rec.LoadedPath = info.Path
			rec.Attached = info.Attached
		}

		if rec.Base && !includeBase {
			continue
		}

		rec.LibraryRoot = classifyRoot(effectivePath(rec), roots)
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})
	return records
}

// NormalizeRoots cleans the configured library roots, preserving their
// configured order. The same list must be used for classification and for
// the report legend so index numbering stays consistent.
func NormalizeRoots(libRoots []string) []string {
	roots := make([]string, 0, len(libRoots))
	for _, root := range libRoots {
		trimmed := strings.TrimSpace(root)
		if trimmed == "" {
			continue
		}
		roots = append(roots, filepath.Clean(trimmed))
	}
	return roots
}

// effectivePath prefers the path the session actually loaded from, falling
// back to the on-disk location.
func effectivePath(rec PackageRecord) string {
	if rec.LoadedPath != "" {
		return rec.LoadedPath
	}
	return rec.DiskPath
}

// classifyRoot maps a package path to the index of the library root its
// directory belongs to, or -1 when it matches no configured root.
func classifyRoot(path string, roots []string) int {
	if path == "" {
		return -1
	}
	dir := filepath.Clean(filepath.Dir(path))
	for i, root := range roots {
		if samePath(dir, root) {
			return i
		}
	}
	return -1
}

func samePath(a, b string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

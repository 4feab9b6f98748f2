package store

import (
	"sort"

	"github.com/quarry-labs/pkgaudit"
)

// DiffKind classifies one row of a snapshot diff.
type DiffKind string

const (
	DiffAdded   DiffKind = "added"
	DiffRemoved DiffKind = "removed"
	DiffChanged DiffKind = "changed"
)

// DiffEntry is one package whose state differs between two snapshots.
type DiffEntry struct {
	Name string   `json:"name"`
	Kind DiffKind `json:"kind"`

	// From and To summarize the package state (effective version plus any
	// mismatch flags) in the older and newer snapshot respectively. Added
	// entries have no From; removed entries have no To.
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// Diff compares two snapshots by package name and reports added, removed,
// and changed packages, sorted by name. A package counts as changed when its
// effective version or its mismatch flags differ.
func Diff(older, newer Snapshot) []DiffEntry {
	oldByName := recordsByName(older.Records)
	newByName := recordsByName(newer.Records)

	var entries []DiffEntry
	for name, oldRec := range oldByName {
		newRec, ok := newByName[name]
		if !ok {
			entries = append(entries, DiffEntry{
				Name: name,
				Kind: DiffRemoved,
				From: recordState(oldRec),
			})
			continue
		}
		from, to := recordState(oldRec), recordState(newRec)
		if from != to {
			entries = append(entries, DiffEntry{
				Name: name,
				Kind: DiffChanged,
				From: from,
				To:   to,
			})
		}
	}
	for name, newRec := range newByName {
		if _, ok := oldByName[name]; !ok {
			entries = append(entries, DiffEntry{
				Name: name,
				Kind: DiffAdded,
				To:   recordState(newRec),
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries
}

func recordsByName(records []pkgaudit.PackageRecord) map[string]pkgaudit.PackageRecord {
	byName := make(map[string]pkgaudit.PackageRecord, len(records))
	for _, rec := range records {
		byName[rec.Name] = rec
	}
	return byName
}

func recordState(rec pkgaudit.PackageRecord) string {
	state := rec.EffectiveVersion()
	if flags := pkgaudit.Flags(rec); flags != "" {
		state += " [" + flags + "]"
	}
	return state
}

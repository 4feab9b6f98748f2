package store

import (
	"reflect"
	"testing"

	"github.com/quarry-labs/pkgaudit"
)

func TestDiff(t *testing.T) {
	older := Snapshot{Records: []pkgaudit.PackageRecord{
		{Name: "alpha", OnDiskVersion: "1.0.0", LoadedVersion: "1.0.0"},
		{Name: "beta", OnDiskVersion: "1.0.0", LoadedVersion: "1.0.0"},
		{Name: "dropped", OnDiskVersion: "0.5.0"},
	}}
	newer := Snapshot{Records: []pkgaudit.PackageRecord{
		{Name: "alpha", OnDiskVersion: "1.0.0", LoadedVersion: "1.0.0"},
		{Name: "beta", OnDiskVersion: "1.1.0", LoadedVersion: "1.0.0"},
		{Name: "fresh", OnDiskVersion: "2.0.0"},
	}}

	entries := Diff(older, newer)
	want := []DiffEntry{
		{Name: "beta", Kind: DiffChanged, From: "1.0.0", To: "1.0.0 [V]"},
		{Name: "dropped", Kind: DiffRemoved, From: "0.5.0"},
		{Name: "fresh", Kind: DiffAdded, To: "2.0.0"},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Fatalf("Diff() = %+v, want %+v", entries, want)
	}
}

func TestDiffIdenticalSnapshots(t *testing.T) {
	snap := Snapshot{Records: []pkgaudit.PackageRecord{
		{Name: "alpha", OnDiskVersion: "1.0.0"},
	}}
	if entries := Diff(snap, snap); len(entries) != 0 {
		t.Fatalf("Diff() = %+v, want empty", entries)
	}
}

func TestDiffEmptySnapshots(t *testing.T) {
	if entries := Diff(Snapshot{}, Snapshot{}); len(entries) != 0 {
		t.Fatalf("Diff() = %+v, want empty", entries)
	}
}

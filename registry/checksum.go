package registry

import (
	"bufio"
	"crypto/md5" // #nosec G501 -- install manifests record MD5 sums.
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quarry-labs/pkgaudit"
)

// VerifyChecksum checks the package's native libraries against its
// install-time MD5 manifest. The check only applies on Windows-style
// platforms; everywhere else, and whenever the manifest cannot be read, the
// result is ChecksumNotApplicable. A package without a native-library
// subdirectory verifies clean.
func (r *FSRegistry) VerifyChecksum(name string) (pkgaudit.ChecksumStatus, error) {
	if !r.windowsStyle {
		return pkgaudit.ChecksumNotApplicable, nil
	}
	dir, ok := r.packageDir(name)
	if !ok {
		return pkgaudit.ChecksumNotApplicable, nil
	}

	libs := filepath.Join(dir, LibsDir)
	if info, err := os.Stat(libs); err != nil || !info.IsDir() {
		return pkgaudit.ChecksumOK, nil
	}

	want, err := readManifestHashes(filepath.Join(dir, ManifestName))
	if err != nil {
		return pkgaudit.ChecksumNotApplicable, nil
	}

	got, err := hashNativeLibs(libs)
	if err != nil {
		return pkgaudit.ChecksumNotApplicable, nil
	}

	if hashMapsEqual(want, got) {
		return pkgaudit.ChecksumOK, nil
	}
	return pkgaudit.ChecksumMismatch, nil
}

// readManifestHashes parses "<hash> *<filename>" manifest lines, keeping
// only native-library entries keyed by lowercased base filename.
func readManifestHashes(path string) (map[string]string, error) {
	// #nosec G304 -- path derived from configured library roots.
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	hashes := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		hash, file, ok := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		if !ok {
			continue
		}
		file = strings.TrimPrefix(strings.TrimSpace(file), "*")
		if !isNativeLib(file) {
			continue
		}
		hashes[strings.ToLower(filepath.Base(file))] = strings.ToLower(strings.TrimSpace(hash))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return hashes, nil
}

// hashNativeLibs computes MD5 sums for every native library under the libs
// directory, keyed by lowercased base filename. The working directory is
// switched into libs for the walk and restored on every exit path.
func hashNativeLibs(libs string) (map[string]string, error) {
	prev, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if err := os.Chdir(libs); err != nil {
		return nil, err
	}
	defer func() {
		_ = os.Chdir(prev)
	}()

	hashes := make(map[string]string)
	err = filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isNativeLib(path) {
			return nil
		}
		sum, err := md5File(path)
		if err != nil {
			return err
		}
		hashes[strings.ToLower(filepath.Base(path))] = sum
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hashes, nil
}

func md5File(path string) (string, error) {
	// #nosec G304 -- path comes from walking the package libs directory.
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New() // #nosec G401 -- matching the manifest's hash algorithm.
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func isNativeLib(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".dll")
}

// hashMapsEqual compares the manifest and on-disk hash maps entry by entry,
// in sorted filename order.
func hashMapsEqual(want, got map[string]string) bool {
	if len(want) != len(got) {
		return false
	}
	for _, file := range sortedKeys(want) {
		if got[file] != want[file] {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

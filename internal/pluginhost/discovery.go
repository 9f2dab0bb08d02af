package pluginhost

import (
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// libraryExtension is the platform's shared-library file suffix, per
// spec.md §6. Only ".so" is ever reachable past Open (see
// library_other.go), but the discovery filter itself stays
// platform-aware as the spec describes.
func libraryExtension() string {
	if runtime.GOOS == "windows" {
		return ".dll"
	}
	return ".so"
}

func isLibraryFile(fs afero.Fs, path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != libraryExtension() {
		return false
	}
	info, err := fs.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// collectCandidates lists every regular file directly under dir whose
// extension matches the platform's library suffix. A missing directory
// yields an empty, error-free result (spec.md §4.2: "Missing directories
// are skipped without error").
func collectCandidates(fs afero.Fs, dir string) []string {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if isLibraryFile(fs, p) {
			out = append(out, p)
		}
	}
	return out
}

// discoverAll scans every search directory in order, then sorts and
// de-duplicates the concatenated candidate list lexicographically by
// absolute path, exactly as spec.md §4.2 steps 1–2 describe.
func discoverAll(fs afero.Fs, searchDirs []string) []string {
	var candidates []string
	for _, dir := range searchDirs {
		candidates = append(candidates, collectCandidates(fs, dir)...)
	}

	abs := make([]string, len(candidates))
	for i, c := range candidates {
		a, err := filepath.Abs(c)
		if err != nil {
			a = c
		}
		abs[i] = a
	}
	sort.Strings(abs)

	out := abs[:0:0]
	var last string
	for i, p := range abs {
		if i == 0 || p != last {
			out = append(out, p)
			last = p
		}
	}
	return out
}

// stemName is the file's base name without its extension, e.g.
// "/lib/MyAddon2.so" -> "MyAddon2".
func stemName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

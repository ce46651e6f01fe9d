package pathutils

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

const (
	booleanLiteralTrueValueConstant  = "true"
	booleanLiteralFalseValueConstant = "false"
	metadataDirectoryNameConstant    = ".git"
)

// PathInspector is the filesystem access needed to locate repository metadata directories.
type PathInspector interface {
	Abs(path string) (string, error)
	Stat(path string) (fs.FileInfo, error)
}

// PathListSanitizerConfiguration selects the clean-up steps applied to a path list.
type PathListSanitizerConfiguration struct {
	// ExcludeBooleanLiteralCandidates drops "true" and "false", which appear when a toggle value is split from its flag.
	ExcludeBooleanLiteralCandidates bool
	// PruneNestedPaths drops paths that lie below another path of the list.
	PruneNestedPaths bool
	// ResolveMetadataDirectories makes every path absolute and replaces a working tree holding a .git directory with that directory.
	ResolveMetadataDirectories bool
	// DropDuplicates keeps only the first occurrence of each resulting path.
	DropDuplicates bool
}

// PathListSanitizer normalizes user supplied repository and exclusion path lists.
type PathListSanitizer struct {
	homeExpander  *HomeExpander
	inspector     PathInspector
	configuration PathListSanitizerConfiguration
}

// NewPathListSanitizer constructs a sanitizer. A nil expander uses the operating system home directory.
// inspector is only consulted when ResolveMetadataDirectories is set.
func NewPathListSanitizer(homeExpander *HomeExpander, inspector PathInspector, configuration PathListSanitizerConfiguration) *PathListSanitizer {
	if homeExpander == nil {
		homeExpander = NewHomeExpander()
	}
	return &PathListSanitizer{homeExpander: homeExpander, inspector: inspector, configuration: configuration}
}

// WithInspector returns a copy of the sanitizer that inspects paths through inspector.
func (sanitizer *PathListSanitizer) WithInspector(inspector PathInspector) *PathListSanitizer {
	duplicated := *sanitizer
	duplicated.inspector = inspector
	return &duplicated
}

// Sanitize trims, expands and filters candidatePaths, keeping their order. It returns nil when nothing remains.
func (sanitizer *PathListSanitizer) Sanitize(candidatePaths []string) []string {
	sanitizedPaths := make([]string, 0, len(candidatePaths))
	for _, candidatePath := range candidatePaths {
		trimmedCandidate := strings.TrimSpace(candidatePath)
		if len(trimmedCandidate) == 0 {
			continue
		}
		if sanitizer.configuration.ExcludeBooleanLiteralCandidates && isBooleanLiteral(trimmedCandidate) {
			continue
		}

		expandedPath := sanitizer.homeExpander.Expand(trimmedCandidate)
		if sanitizer.configuration.ResolveMetadataDirectories && sanitizer.inspector != nil {
			expandedPath = metadataDirectoryFor(expandedPath, sanitizer.inspector)
		}
		sanitizedPaths = append(sanitizedPaths, expandedPath)
	}

	if sanitizer.configuration.DropDuplicates {
		sanitizedPaths = dropDuplicatePaths(sanitizedPaths)
	}
	if sanitizer.configuration.PruneNestedPaths {
		sanitizedPaths = pruneNestedPaths(sanitizedPaths)
	}
	if len(sanitizedPaths) == 0 {
		return nil
	}
	return sanitizedPaths
}

func metadataDirectoryFor(candidatePath string, inspector PathInspector) string {
	if absolutePath, absoluteError := inspector.Abs(candidatePath); absoluteError == nil {
		candidatePath = absolutePath
	}
	if filepath.Base(candidatePath) == metadataDirectoryNameConstant {
		return candidatePath
	}
	metadataCandidate := filepath.Join(candidatePath, metadataDirectoryNameConstant)
	if info, statError := inspector.Stat(metadataCandidate); statError == nil && info.IsDir() {
		return metadataCandidate
	}
	return candidatePath
}

func isBooleanLiteral(candidate string) bool {
	loweredCandidate := strings.ToLower(candidate)
	return loweredCandidate == booleanLiteralTrueValueConstant || loweredCandidate == booleanLiteralFalseValueConstant
}

func dropDuplicatePaths(candidatePaths []string) []string {
	seen := make(map[string]struct{}, len(candidatePaths))
	unique := make([]string, 0, len(candidatePaths))
	for _, candidatePath := range candidatePaths {
		key := comparisonPath(candidatePath)
		if _, duplicate := seen[key]; duplicate {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, candidatePath)
	}
	return unique
}

// pruneNestedPaths keeps the outermost paths, visiting shorter paths first and restoring input order afterwards.
func pruneNestedPaths(candidatePaths []string) []string {
	type indexedPath struct {
		position  int
		value     string
		canonical string
	}

	ordered := make([]indexedPath, 0, len(candidatePaths))
	for position, candidatePath := range candidatePaths {
		ordered = append(ordered, indexedPath{position: position, value: candidatePath, canonical: canonicalizePath(candidatePath)})
	}
	sort.SliceStable(ordered, func(first int, second int) bool {
		return len(ordered[first].canonical) < len(ordered[second].canonical)
	})

	kept := make([]indexedPath, 0, len(ordered))
	for _, candidate := range ordered {
		covered := false
		for _, existing := range kept {
			if isNestedPath(existing.canonical, candidate.canonical) {
				covered = true
				break
			}
		}
		if !covered {
			kept = append(kept, candidate)
		}
	}
	sort.SliceStable(kept, func(first int, second int) bool {
		return kept[first].position < kept[second].position
	})

	pruned := make([]string, 0, len(kept))
	for _, candidate := range kept {
		pruned = append(pruned, candidate.value)
	}
	return pruned
}

func canonicalizePath(path string) string {
	absolutePath, absoluteError := filepath.Abs(path)
	if absoluteError != nil {
		return comparisonPath(path)
	}
	return comparisonPath(absolutePath)
}

func comparisonPath(path string) string {
	comparison := filepath.Clean(path)
	if runtime.GOOS == "windows" {
		comparison = strings.ToLower(comparison)
	}
	return comparison
}

// isNestedPath reports whether candidate equals parent or lies below it.
func isNestedPath(parent string, candidate string) bool {
	if candidate == parent {
		return true
	}
	if !strings.HasPrefix(candidate, parent) {
		return false
	}
	if strings.HasSuffix(parent, string(os.PathSeparator)) {
		return true
	}
	return len(candidate) > len(parent) && candidate[len(parent)] == os.PathSeparator
}

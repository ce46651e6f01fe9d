package pathutils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	pathutils "github.com/temirov/gitscan/internal/utils/path"
)

type osInspector struct{}

func (osInspector) Abs(path string) (string, error) {
	return filepath.Abs(path)
}

func (osInspector) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

func fixedHome(homeDirectory string) *pathutils.HomeExpander {
	return pathutils.NewHomeExpanderWithProvider(func() (string, error) {
		return homeDirectory, nil
	})
}

func TestHomeExpanderExpand(testInstance *testing.T) {
	expander := fixedHome("/home/dev")

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "bare_tilde", input: "~", expected: "/home/dev"},
		{name: "tilde_slash", input: "~/src/gitscan", expected: "/home/dev/src/gitscan"},
		{name: "other_user", input: "~alice/src", expected: "~alice/src"},
		{name: "absolute", input: "/srv/git", expected: "/srv/git"},
		{name: "relative", input: "src", expected: "src"},
		{name: "empty", input: "", expected: ""},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, expander.Expand(testCase.input))
		})
	}
}

func TestHomeExpanderLeavesPathsWhenLookupFails(testInstance *testing.T) {
	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) {
		return "", os.ErrNotExist
	})
	require.Equal(testInstance, "~/src", expander.Expand("~/src"))
}

func TestPathListSanitizerConfigurations(testInstance *testing.T) {
	temporaryDirectory := testInstance.TempDir()
	workingTree := filepath.Join(temporaryDirectory, "service")
	require.NoError(testInstance, os.MkdirAll(filepath.Join(workingTree, ".git"), 0o755))
	bareRepository := filepath.Join(temporaryDirectory, "archive.git")
	require.NoError(testInstance, os.MkdirAll(bareRepository, 0o755))

	testCases := []struct {
		name          string
		configuration pathutils.PathListSanitizerConfiguration
		inputs        []string
		expected      []string
	}{
		{
			name:          "trims_and_expands",
			configuration: pathutils.PathListSanitizerConfiguration{},
			inputs:        []string{"", "  ~/projects\t", " /srv/git "},
			expected:      []string{"/home/dev/projects", "/srv/git"},
		},
		{
			name:          "drops_boolean_literals",
			configuration: pathutils.PathListSanitizerConfiguration{ExcludeBooleanLiteralCandidates: true},
			inputs:        []string{"TRUE", "False", "~/projects"},
			expected:      []string{"/home/dev/projects"},
		},
		{
			name:          "prunes_nested_paths",
			configuration: pathutils.PathListSanitizerConfiguration{PruneNestedPaths: true},
			inputs:        []string{"/srv/git/vendor/cache", "/srv/git", "/srv/gitea", "/srv/git/"},
			expected:      []string{"/srv/git", "/srv/gitea"},
		},
		{
			name:          "resolves_metadata_directories",
			configuration: pathutils.PathListSanitizerConfiguration{ResolveMetadataDirectories: true, DropDuplicates: true},
			inputs:        []string{workingTree, bareRepository, filepath.Join(workingTree, ".git")},
			expected:      []string{filepath.Join(workingTree, ".git"), bareRepository},
		},
		{
			name:          "nothing_left",
			configuration: pathutils.PathListSanitizerConfiguration{ExcludeBooleanLiteralCandidates: true},
			inputs:        []string{"  ", "true"},
			expected:      nil,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			sanitizer := pathutils.NewPathListSanitizer(fixedHome("/home/dev"), osInspector{}, testCase.configuration)
			require.Equal(testInstance, testCase.expected, sanitizer.Sanitize(testCase.inputs))
		})
	}
}

func TestPathListSanitizerWithoutInspectorKeepsPaths(testInstance *testing.T) {
	sanitizer := pathutils.NewPathListSanitizer(fixedHome("/home/dev"), nil, pathutils.PathListSanitizerConfiguration{ResolveMetadataDirectories: true})
	require.Equal(testInstance, []string{"relative/repo"}, sanitizer.Sanitize([]string{"relative/repo"}))

	inspecting := sanitizer.WithInspector(osInspector{})
	absolutePath, absoluteError := filepath.Abs("relative/repo")
	require.NoError(testInstance, absoluteError)
	require.Equal(testInstance, []string{absolutePath}, inspecting.Sanitize([]string{"relative/repo"}))
}

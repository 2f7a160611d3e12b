package sourcemap

import (
	"fmt"
	"regexp"
	"strconv"
)

// sourceMapFile matches FilenameForFragment output.
var sourceMapFile = regexp.MustCompile(`sourceMap([0-9]+)\.json$`)

// Artifact is a fragment's source map as produced by the compiler, before
// any link-time edits were accounted for.
type Artifact struct {
	PermutationID int
	Fragment      int
	Contents      []byte
	// SourceRoot is re-applied after merging, which does not keep it.
	SourceRoot string
}

func (a *Artifact) ArtifactKey() string {
	return "sourcemap:" + a.PartialPath()
}

// PartialPath is where the compiler wrote the map: <permutation>/sourceMap<fragment>.json.
func (a *Artifact) PartialPath() string {
	return strconv.Itoa(a.PermutationID) + "/" + FilenameForFragment(a.Fragment)
}

func FilenameForFragment(fragment int) string {
	return "sourceMap" + strconv.Itoa(fragment) + ".json"
}

// IsSourceMapFile reports whether name looks like a compiler-written source map.
func IsSourceMapFile(name string) bool {
	return sourceMapFile.MatchString(name)
}

// FragmentFromFilename extracts the fragment number from a source map file name.
func FragmentFromFilename(name string) (int, bool) {
	match := sourceMapFile.FindStringSubmatch(name)
	if match == nil {
		return 0, false
	}
	fragment, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return fragment, true
}

// OutputPath names the linked map of a strong name's fragment.
func OutputPath(strongName string, fragment int) string {
	return fmt.Sprintf("%s_sourceMap%d.json", strongName, fragment)
}

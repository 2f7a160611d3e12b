package artifact

import "strings"

// Visibility controls where an emitted artifact ends up once persisted.
type Visibility int

const (
	Public Visibility = iota
	Private
	Deploy
	// LegacyDeploy is deploy-only output that is never served to clients.
	LegacyDeploy
	// Source marks generated sources that are visible to source-map consumers.
	Source
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Private:
		return "private"
	case Deploy:
		return "deploy"
	case LegacyDeploy:
		return "legacy-deploy"
	case Source:
		return "source"
	default:
		return "unknown"
	}
}

// Artifact is anything that can live in a Set.
type Artifact interface {
	ArtifactKey() string
}

// Emitted is a named blob produced by a link pass (or handed to it).
type Emitted struct {
	PartialPath string
	Visibility  Visibility
	Contents    []byte
}

func (e *Emitted) ArtifactKey() string {
	return EmittedKey(e.PartialPath)
}

// EmittedKey returns the set key of the emitted artifact stored at partialPath.
func EmittedKey(partialPath string) string {
	return "emitted:" + strings.TrimPrefix(partialPath, "/")
}

// NewEmitted copies contents so callers can reuse their buffers.
func NewEmitted(partialPath string, contents []byte, visibility Visibility) *Emitted {
	data := make([]byte, len(contents))
	copy(data, contents)
	return &Emitted{
		PartialPath: strings.TrimPrefix(partialPath, "/"),
		Visibility:  visibility,
		Contents:    data,
	}
}

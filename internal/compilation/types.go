package compilation

import (
	"strconv"
	"strings"
)

// SymbolMapsProperty is the soft-permutation property that switches symbol
// map emission off for a permutation.
const SymbolMapsProperty = "compiler.useSymbolMaps"

// SymbolEntry maps one obfuscated JavaScript name back to its origin.
// Optional fields are empty strings when absent.
type SymbolEntry struct {
	SymbolName     string `json:"symbol_name"`
	JsniIdent      string `json:"jsni_ident,omitempty"`
	ClassName      string `json:"class_name"`
	MemberName     string `json:"member_name,omitempty"`
	SourceURI      string `json:"source_uri,omitempty"`
	SourceLine     int    `json:"source_line"`
	FragmentNumber int    `json:"fragment_number"`
}

// SoftPermutation is a permutation that shares generated code with its
// siblings and differs only by runtime-checked properties.
type SoftPermutation struct {
	ID         int               `json:"id"`
	Properties map[string]string `json:"properties"`
}

// Record is one compiled permutation as handed over by the compiler.
type Record struct {
	PermutationID    int                 `json:"permutation_id"`
	StrongName       string              `json:"strong_name"`
	PropertyMaps     []map[string]string `json:"property_maps,omitempty"`
	SoftPermutations []SoftPermutation   `json:"soft_permutations,omitempty"`
	Symbols          []SymbolEntry       `json:"symbols,omitempty"`
}

func (r *Record) ArtifactKey() string {
	return "compilation:" + strconv.Itoa(r.PermutationID)
}

// SymbolMapsEnabled folds over every soft-permutation property in order.
// Several soft permutations may carry the switch, so the last one wins;
// the default is enabled.
func (r *Record) SymbolMapsEnabled() bool {
	enabled := true
	for _, perm := range r.SoftPermutations {
		for name, value := range perm.Properties {
			if name == SymbolMapsProperty {
				enabled = parseBool(value)
			}
		}
	}
	return enabled
}

// parseBool treats only a case-insensitive "true" as true. Surrounding
// whitespace makes the value false.
func parseBool(value string) bool {
	return strings.EqualFold(value, "true")
}

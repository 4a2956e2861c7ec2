// Package filter implements cascading facet filters over piece groups.
//
// Two filter states are kept side by side: Staged is what the user is
// editing and drives the available facet options, Applied drives the
// visible piece set. Every operation returns a new Session value.
package filter

import (
	"slices"
	"sort"
	"strings"

	"github.com/ekaya-inc/precast-engine/pkg/models"
	"github.com/ekaya-inc/precast-engine/pkg/pieces"
)

// Dimension identifies a facet.
type Dimension string

const (
	DimensionType          Dimension = "type"
	DimensionSection       Dimension = "section"
	DimensionMaterialClass Dimension = "material_class"
)

// State is a name fragment plus one selection set per facet. An empty
// selection matches every value.
type State struct {
	Name            string   `json:"name"`
	Types           []string `json:"types"`
	Sections        []string `json:"sections"`
	MaterialClasses []string `json:"material_classes"`
}

// IsEmpty reports whether the state selects everything.
func (s State) IsEmpty() bool {
	return strings.TrimSpace(s.Name) == "" && len(s.Types) == 0 && len(s.Sections) == 0 && len(s.MaterialClasses) == 0
}

// With returns a copy of s with the selection for dim replaced.
func (s State) With(dim Dimension, values ...string) State {
	out := s.clone()
	selected := normalizeSelection(values)
	switch dim {
	case DimensionType:
		out.Types = selected
	case DimensionSection:
		out.Sections = selected
	case DimensionMaterialClass:
		out.MaterialClasses = selected
	}
	return out
}

// WithName returns a copy of s with the name fragment replaced.
func (s State) WithName(name string) State {
	out := s.clone()
	out.Name = name
	return out
}

// Matches reports whether the piece passes every criterion of the state.
func (s State) Matches(p models.Piece) bool {
	return s.matches(p, "")
}

// matches evaluates the state ignoring the given dimension.
func (s State) matches(p models.Piece, ignore Dimension) bool {
	a := p.Attributes()
	if name := strings.TrimSpace(s.Name); name != "" &&
		!strings.Contains(strings.ToLower(a.Name), strings.ToLower(name)) {
		return false
	}
	if ignore != DimensionType && !selected(s.Types, a.Type) {
		return false
	}
	if ignore != DimensionSection && !selected(s.Sections, a.Section) {
		return false
	}
	if ignore != DimensionMaterialClass && !selected(s.MaterialClasses, a.MaterialClass) {
		return false
	}
	return true
}

func (s State) clone() State {
	return State{
		Name:            s.Name,
		Types:           slices.Clone(s.Types),
		Sections:        slices.Clone(s.Sections),
		MaterialClasses: slices.Clone(s.MaterialClasses),
	}
}

func selected(selection []string, value string) bool {
	return len(selection) == 0 || slices.Contains(selection, value)
}

func normalizeSelection(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := slices.Clone(values)
	sort.Strings(out)
	return slices.Compact(out)
}

// Options are the facet values still reachable from a filter state.
type Options struct {
	Types           []string `json:"types"`
	Sections        []string `json:"sections"`
	MaterialClasses []string `json:"material_classes"`
}

// Visible returns the groups of dataset matching state, in dataset order.
func Visible(dataset []models.PieceGroup, state State) []models.PieceGroup {
	out := make([]models.PieceGroup, 0, len(dataset))
	for _, g := range dataset {
		if state.Matches(g) {
			out = append(out, g)
		}
	}
	return out
}

// AvailableOptions computes each facet's options from the groups matching
// the name fragment and the other two facets' selections. A facet's own
// selection never narrows its option list.
func AvailableOptions(dataset []models.PieceGroup, state State) Options {
	return Options{
		Types: optionValues(dataset, state, DimensionType, func(a models.PieceAttributes) string { return a.Type }),
		Sections: optionValues(dataset, state, DimensionSection, func(a models.PieceAttributes) string {
			return a.Section
		}),
		MaterialClasses: optionValues(dataset, state, DimensionMaterialClass, func(a models.PieceAttributes) string {
			return a.MaterialClass
		}),
	}
}

func optionValues(dataset []models.PieceGroup, state State, dim Dimension, value func(models.PieceAttributes) string) []string {
	set := make(map[string]struct{})
	for _, g := range dataset {
		if !state.matches(g, dim) {
			continue
		}
		if v := value(g.PieceAttributes); v != "" {
			set[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Session is the working state of a piece list: the unfiltered dataset and
// the applied and staged filter states.
type Session struct {
	Dataset []models.PieceGroup `json:"dataset"`
	Applied State               `json:"applied"`
	Staged  State               `json:"staged"`
}

// NewSession starts a session with no filters.
func NewSession(dataset []models.PieceGroup) Session {
	return Session{Dataset: dataset}
}

// WithStaged replaces the staged state.
func (s Session) WithStaged(staged State) Session {
	s.Staged = staged.clone()
	return s
}

// Apply copies the staged state into the applied state.
func (s Session) Apply() Session {
	s.Applied = s.Staged.clone()
	return s
}

// Clear resets both states.
func (s Session) Clear() Session {
	s.Applied = State{}
	s.Staged = State{}
	return s
}

// Visible returns the groups matching the applied state.
func (s Session) Visible() []models.PieceGroup {
	return Visible(s.Dataset, s.Applied)
}

// Options returns the facet options for the staged state.
func (s Session) Options() Options {
	return AvailableOptions(s.Dataset, s.Staged)
}

// Summary returns aggregate metrics over the visible groups.
func (s Session) Summary() pieces.Summary {
	return pieces.Summarize(s.Visible())
}

package repository

import (
	"maps"
	"strings"

	"github.com/forbearing/docrepo/types"
)

// Specification pairs an equality filter with a human-readable description.
// Specifications compose by field-level merge; the description records the
// conjunction.
type Specification interface {
	Filter() types.Filter
	Description() string
}

type spec struct {
	filter      types.Filter
	description string
}

func (s *spec) Filter() types.Filter { return s.filter }
func (s *spec) Description() string  { return s.description }

// Where builds a specification from a description and an equality filter.
func Where(description string, filter types.Filter) Specification {
	return &spec{filter: filter, description: description}
}

// Combine merges specifications by field-level right-fold: on key collision
// the last specification wins. Descriptions are joined with " AND ".
// Combine() of a single specification is that specification in effect.
func Combine(specs ...Specification) Specification {
	filter := make(types.Filter)
	descs := make([]string, 0, len(specs))
	for _, s := range specs {
		if s == nil {
			continue
		}
		maps.Copy(filter, s.Filter())
		if d := s.Description(); len(d) > 0 {
			descs = append(descs, d)
		}
	}
	return &spec{filter: filter, description: strings.Join(descs, " AND ")}
}

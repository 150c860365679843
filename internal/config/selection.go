package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/mdlfix/internal/repair"
)

// Selection is the YAML form of a per-mesh pass filter. It accepts:
//
//	fix_winding: all        # every mesh
//	fix_winding: [0, 2, 5]  # only these mesh indices
//	fix_winding: none       # pass disabled (also: absent, false)
//	fix_winding: true       # same as all
type Selection struct {
	Enabled bool
	Indices []int
}

// MeshSelection converts to the engine's selection type.
func (s Selection) MeshSelection() repair.MeshSelection {
	return repair.MeshSelection{Enabled: s.Enabled, Indices: s.Indices}
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Selection) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		switch value.Tag {
		case "!!bool":
			var enabled bool
			if err := value.Decode(&enabled); err != nil {
				return err
			}
			*s = Selection{Enabled: enabled}
			return nil
		case "!!str":
			switch value.Value {
			case "all":
				*s = Selection{Enabled: true}
				return nil
			case "none", "":
				*s = Selection{}
				return nil
			}
			return fmt.Errorf("invalid mesh selection %q (want all, none, or an index list)", value.Value)
		case "!!null":
			*s = Selection{}
			return nil
		}
		return fmt.Errorf("invalid mesh selection scalar %q", value.Value)
	case yaml.SequenceNode:
		var indices []int
		if err := value.Decode(&indices); err != nil {
			return err
		}
		for _, idx := range indices {
			if idx < 0 {
				return fmt.Errorf("mesh selection index %d is negative", idx)
			}
		}
		*s = Selection{Enabled: true, Indices: indices}
		return nil
	}
	return fmt.Errorf("invalid mesh selection node kind %d", value.Kind)
}

// MarshalYAML implements yaml.Marshaler.
func (s Selection) MarshalYAML() (any, error) {
	if !s.Enabled {
		return "none", nil
	}
	if len(s.Indices) == 0 {
		return "all", nil
	}
	return s.Indices, nil
}

// ParseSelection parses the command-line form of a mesh filter: "all",
// "none", or a comma-separated index list such as "0,2,5".
func ParseSelection(raw string) (Selection, error) {
	switch raw {
	case "", "none":
		return Selection{}, nil
	case "all":
		return Selection{Enabled: true}, nil
	}

	parts := strings.Split(raw, ",")
	indices := make([]int, 0, len(parts))
	for _, part := range parts {
		idx, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || idx < 0 {
			return Selection{}, fmt.Errorf("invalid mesh index %q", part)
		}
		indices = append(indices, idx)
	}
	return Selection{Enabled: true, Indices: indices}, nil
}

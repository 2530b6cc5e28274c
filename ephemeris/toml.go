package ephemeris

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// Named pairs a name with its parameters for import/export. The embedded
// Params fields are written next to name in the same table.
type Named struct {
	Name string `toml:"name"`
	Params
}

type tomlFile struct {
	Ephemeris []Named `toml:"ephemeris"`
}

// MarshalTOML writes entries as an array of [[ephemeris]] tables, in order.
func MarshalTOML(entries []Entry) ([]byte, error) {
	var file tomlFile
	for _, e := range entries {
		file.Ephemeris = append(file.Ephemeris, Named{Name: e.Name, Params: e.Params})
	}
	data, err := toml.Marshal(file)
	if err != nil {
		return nil, fmt.Errorf("marshal ephemerides: %w", err)
	}
	return data, nil
}

// UnmarshalTOML parses a file written by MarshalTOML. A missing wrap_at
// defaults to 1 and a missing period to 1; every entry is validated.
func UnmarshalTOML(data []byte) ([]Named, error) {
	var raw struct {
		Ephemeris []map[string]any `toml:"ephemeris"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ephemerides: %w", err)
	}

	out := make([]Named, 0, len(raw.Ephemeris))
	seen := make(map[string]bool)
	for i, table := range raw.Ephemeris {
		name, _ := table["name"].(string)
		if err := ValidateName(name); err != nil {
			return nil, fmt.Errorf("ephemeris #%d: %w", i+1, err)
		}
		if seen[name] {
			return nil, fmt.Errorf("ephemeris #%d: %w", i+1, opError("import", name, ErrDuplicateName))
		}
		seen[name] = true

		p := DefaultParams()
		for key, dst := range map[string]*float64{
			"t0": &p.T0, "period": &p.Period, "dpdt": &p.Dpdt, "wrap_at": &p.WrapAt,
		} {
			v, ok := table[key]
			if !ok {
				continue
			}
			f, ok := tomlNumber(v)
			if !ok {
				return nil, opError("import", name, fmt.Errorf("%w: %s is not a number", ErrInvalidParameter, key))
			}
			*dst = f
		}
		if err := p.Validate(); err != nil {
			return nil, opError("import", name, err)
		}
		out = append(out, Named{Name: name, Params: p})
	}
	return out, nil
}

func tomlNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	}
	return 0, false
}

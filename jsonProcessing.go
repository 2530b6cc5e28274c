package main

import (
	"fmt"
	"os"
	"sort"

	json "github.com/KevinWang15/go-json5"

	"github.com/bob-anderson-ok/lcviz/ephemeris"
)

// DatasetSpec names one light curve: a file, or an inline table.
type DatasetSpec struct {
	Label  string
	Path   string
	Inline map[string]interface{}
}

// BinningSpec is the optional "binning" block.
type BinningSpec struct {
	Dataset   string
	NBins     int
	Ephemeris string
}

// PeriodogramSpec is the optional "periodogram" block.
type PeriodogramSpec struct {
	Dataset      string
	MinFrequency float64
	MaxFrequency float64
	NFrequencies int
}

// SessionParams is the content of a parameter file.
type SessionParams struct {
	ShowInput        bool
	Title            string
	WindowSizePixels int
	Datasets         []DatasetSpec
	Ephemerides      []ephemeris.Named
	PhaseViewers     []string
	Binning          *BinningSpec
	Periodogram      *PeriodogramSpec
}

// readParameterFile reads, parses and validates a parameter file. The raw
// bytes are returned for show_input_bool.
func readParameterFile(path string) (SessionParams, []byte, error) {
	var params SessionParams

	// Read the Json5 (or Json) parameter file
	data, err := os.ReadFile(path)
	if err != nil {
		return params, nil, exitWith(2, fmt.Errorf("\n\tAttempt to read input file %q failed: %w\n", path, err))
	}

	// Parse json(5) data into a generic container
	var jsonTable map[string]interface{}
	err = json.Unmarshal(data, &jsonTable)
	if err != nil {
		return params, nil, exitWith(3, fmt.Errorf("\n\tFormat error in file %q: %w\n", path, err))
	}

	msg, ok := validateJsonFileAndFillParams(jsonTable, &params)
	if !ok {
		return params, nil, exitWith(4, fmt.Errorf("%s", msg))
	}
	return params, data, nil
}

func getLeafValue(jsonTable map[string]interface{}, path ...string) (interface{}, bool) {
	var cur interface{} = jsonTable
	for _, p := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func validateJsonFileAndFillParams(jsonTable map[string]interface{}, params *SessionParams) (string, bool) {
	msg := "No problem found in json file" // Initialize msg to presumed success.

	showInput, ok := getLeafValue(jsonTable, "show_input_bool")
	if !ok {
		params.ShowInput = false // default to false if this field is missing
	} else {
		params.ShowInput, ok = showInput.(bool)
		if !ok {
			msg = "show_input_bool: is not a bool"
			return msg, false
		}
	}

	windowSize, ok := getLeafValue(jsonTable, "window_size_pixels")
	if ok {
		wSize, ok := windowSize.(float64)
		if !ok {
			msg = "window_size_pixels: is not a float64"
			return msg, false
		}
		params.WindowSizePixels = int(wSize)
	}

	title, ok := getLeafValue(jsonTable, "title")
	if ok {
		params.Title, ok = title.(string)
		if !ok {
			msg = "title: is not a string"
			return msg, false
		}
	}

	datasets, ok := getLeafValue(jsonTable, "datasets")
	if !ok {
		msg = "datasets: not found"
		return msg, false
	}
	list, ok := datasets.([]interface{})
	if !ok {
		msg = "datasets: is not an array"
		return msg, false
	}
	if len(list) == 0 {
		msg = "datasets: is empty"
		return msg, false
	}
	for i, item := range list {
		spec, msg, ok := parseDatasetSpec(i, item)
		if !ok {
			return msg, false
		}
		params.Datasets = append(params.Datasets, spec)
	}

	ephemerides, ok := getLeafValue(jsonTable, "ephemerides")
	if ok {
		table, ok := ephemerides.(map[string]interface{})
		if !ok {
			msg = "ephemerides: is not an object"
			return msg, false
		}
		// Object key order is lost in parsing; apply entries in name order.
		names := make([]string, 0, len(table))
		for name := range table {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			named, msg, ok := parseEphemeris(jsonTable, name)
			if !ok {
				return msg, false
			}
			params.Ephemerides = append(params.Ephemerides, named)
		}
	}

	viewers, ok := getLeafValue(jsonTable, "phase_viewers")
	if ok {
		list, ok := viewers.([]interface{})
		if !ok {
			msg = "phase_viewers: is not an array"
			return msg, false
		}
		for i, item := range list {
			name, ok := item.(string)
			if !ok {
				msg = fmt.Sprintf("phase_viewers[%d]: is not a string", i)
				return msg, false
			}
			params.PhaseViewers = append(params.PhaseViewers, name)
		}
	}

	if _, ok := getLeafValue(jsonTable, "binning"); ok {
		spec := &BinningSpec{}
		nBins, ok := getLeafValue(jsonTable, "binning", "n_bins")
		if !ok {
			msg = "binning.n_bins: not found"
			return msg, false
		}
		n, ok := nBins.(float64)
		if !ok {
			msg = "binning.n_bins: is not a float64"
			return msg, false
		}
		if n < 1 {
			msg = "binning.n_bins: must be at least 1"
			return msg, false
		}
		spec.NBins = int(n)
		if spec.Dataset, msg, ok = optionalString(jsonTable, "binning", "dataset"); !ok {
			return msg, false
		}
		if spec.Ephemeris, msg, ok = optionalString(jsonTable, "binning", "ephemeris"); !ok {
			return msg, false
		}
		params.Binning = spec
	}

	if _, ok := getLeafValue(jsonTable, "periodogram"); ok {
		spec := &PeriodogramSpec{}
		if spec.Dataset, msg, ok = optionalString(jsonTable, "periodogram", "dataset"); !ok {
			return msg, false
		}
		if spec.MinFrequency, msg, ok = optionalFloat(jsonTable, "periodogram", "min_frequency"); !ok {
			return msg, false
		}
		if spec.MaxFrequency, msg, ok = optionalFloat(jsonTable, "periodogram", "max_frequency"); !ok {
			return msg, false
		}
		var n float64
		if n, msg, ok = optionalFloat(jsonTable, "periodogram", "n_frequencies"); !ok {
			return msg, false
		}
		if n < 0 {
			msg = "periodogram.n_frequencies: must not be negative"
			return msg, false
		}
		spec.NFrequencies = int(n)
		params.Periodogram = spec
	}

	return msg, true
}

func parseDatasetSpec(i int, item interface{}) (DatasetSpec, string, bool) {
	var spec DatasetSpec
	entry, ok := item.(map[string]interface{})
	if !ok {
		return spec, fmt.Sprintf("datasets[%d]: is not an object", i), false
	}
	if v, ok := entry["label"]; ok {
		spec.Label, ok = v.(string)
		if !ok {
			return spec, fmt.Sprintf("datasets[%d].label: is not a string", i), false
		}
	}
	if v, ok := entry["path"]; ok {
		spec.Path, ok = v.(string)
		if !ok {
			return spec, fmt.Sprintf("datasets[%d].path: is not a string", i), false
		}
		return spec, "", true
	}
	if _, ok := entry["time"]; ok {
		spec.Inline = entry
		if spec.Label == "" {
			spec.Label = fmt.Sprintf("dataset-%d", i+1)
		}
		return spec, "", true
	}
	return spec, fmt.Sprintf("datasets[%d]: needs either path or time/flux arrays", i), false
}

func parseEphemeris(jsonTable map[string]interface{}, name string) (ephemeris.Named, string, bool) {
	defaults := ephemeris.DefaultParams()
	named := ephemeris.Named{Name: name}
	if err := ephemeris.ValidateName(name); err != nil {
		return named, fmt.Sprintf("ephemerides.%s: %v", name, err), false
	}
	v, _ := getLeafValue(jsonTable, "ephemerides", name)
	if _, ok := v.(map[string]interface{}); !ok {
		return named, fmt.Sprintf("ephemerides.%s: is not an object", name), false
	}

	fields := []struct {
		key string
		dst *float64
		def float64
	}{
		{"t0", &named.T0, defaults.T0},
		{"period", &named.Period, defaults.Period},
		{"dpdt", &named.Dpdt, defaults.Dpdt},
		{"wrap_at", &named.WrapAt, defaults.WrapAt},
	}
	for _, f := range fields {
		*f.dst = f.def
		v, ok := getLeafValue(jsonTable, "ephemerides", name, f.key)
		if !ok {
			continue
		}
		*f.dst, ok = v.(float64)
		if !ok {
			return named, fmt.Sprintf("ephemerides.%s.%s: is not a float64", name, f.key), false
		}
	}
	if err := named.Params.Validate(); err != nil {
		return named, fmt.Sprintf("ephemerides.%s: %v", name, err), false
	}
	return named, "", true
}

func optionalString(jsonTable map[string]interface{}, path ...string) (string, string, bool) {
	v, ok := getLeafValue(jsonTable, path...)
	if !ok {
		return "", "", true
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Sprintf("%s.%s: is not a string", path[0], path[len(path)-1]), false
	}
	return s, "", true
}

func optionalFloat(jsonTable map[string]interface{}, path ...string) (float64, string, bool) {
	v, ok := getLeafValue(jsonTable, path...)
	if !ok {
		return 0, "", true
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Sprintf("%s.%s: is not a float64", path[0], path[len(path)-1]), false
	}
	return f, "", true
}

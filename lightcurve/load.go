package lightcurve

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json5 "github.com/KevinWang15/go-json5"
)

// LoadJSON5 reads a light curve from a JSON5 (or JSON) file. Two layouts are
// accepted:
//
//	{label: "KIC 1234", time: [...], flux: [...], flux_err: [...], meta: {...}}
//	[[t0, f0], [t1, f1], ...]
//
// The label defaults to the file name without its extension.
func LoadJSON5(filename string) (*Dataset, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	base := filepath.Base(filename)
	d, err := ParseJSON5(data, strings.TrimSuffix(base, filepath.Ext(base)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	d.Meta["source"] = filename
	return d, nil
}

// ParseJSON5 decodes a light curve in either layout accepted by LoadJSON5.
func ParseJSON5(data []byte, defaultLabel string) (*Dataset, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		pairs, err := parsePairs(data)
		if err != nil {
			return nil, err
		}
		time := make([]float64, len(pairs))
		flux := make([]float64, len(pairs))
		for i, p := range pairs {
			time[i], flux[i] = p[0], p[1]
		}
		return New(defaultLabel, time, flux, nil)
	}

	var table map[string]interface{}
	if err := json5.Unmarshal(data, &table); err != nil {
		return nil, err
	}
	return FromTable(table, defaultLabel)
}

func parsePairs(data []byte) ([][2]float64, error) {
	var pairs [][2]float64
	err := json5.Unmarshal(data, &pairs)
	return pairs, err
}

// FromTable builds a dataset from an already decoded JSON5 object. It is
// used for light curves given inline in a session parameter file.
func FromTable(table map[string]interface{}, defaultLabel string) (*Dataset, error) {
	label := defaultLabel
	if v, ok := table["label"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("label: is not a string")
		}
		label = s
	}

	time, err := floatArray(table, "time", true)
	if err != nil {
		return nil, err
	}
	flux, err := floatArray(table, "flux", true)
	if err != nil {
		return nil, err
	}
	fluxErr, err := floatArray(table, "flux_err", false)
	if err != nil {
		return nil, err
	}

	d, err := New(label, time, flux, fluxErr)
	if err != nil {
		return nil, err
	}
	if meta, ok := table["meta"]; ok {
		m, ok := meta.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("meta: is not an object")
		}
		for k, v := range m {
			d.Meta[k] = v
		}
	}
	return d, nil
}

func floatArray(table map[string]interface{}, key string, required bool) ([]float64, error) {
	v, ok := table[key]
	if !ok {
		if required {
			return nil, fmt.Errorf("%s: not found", key)
		}
		return nil, nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%s: is not an array", key)
	}
	out := make([]float64, len(raw))
	for i, item := range raw {
		f, ok := item.(float64)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: is not a float64", key, i)
		}
		out[i] = f
	}
	return out, nil
}

// WriteColumnsJSON writes time, flux and every derived column of d to a
// plain JSON object, one array per column.
func WriteColumnsJSON(filename string, d *Dataset) (err error) {
	out := map[string]any{
		"label":      d.Label,
		"provenance": d.Provenance.String(),
		"time":       d.Time,
		"flux":       d.Flux,
	}
	if d.FluxErr != nil {
		out["flux_err"] = d.FluxErr
	}
	for _, name := range d.colOrder {
		out[name] = d.columns[name]
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// Package export renders query results to files: a JSON array, a flat CSV
// with one column per metadata key, or a self-contained Leaflet map page.
package export

import (
	"github.com/rotisserie/eris"

	"github.com/samplegeo/atlas-cli/internal/model"
)

// Format selects an output sink for query results.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatMap  Format = "map"
)

// ParseFormat maps a --format flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatMap:
		return FormatMap, nil
	default:
		return "", eris.Errorf("export: unknown format %q", s)
	}
}

// Write renders results through the sink selected by format. The output file
// is named prefix plus the sink's extension and the written path is
// returned. The CSV and map sinks produce no file for an empty result set
// and return an empty path; the JSON sink writes an empty array.
func Write(format Format, prefix string, results []model.Result) (string, error) {
	switch format {
	case FormatJSON:
		return writeJSON(prefix+".json", results)
	case FormatCSV:
		return writeCSV(prefix+".csv", results)
	case FormatMap:
		return writeMap(prefix+".html", results)
	default:
		return "", eris.Errorf("export: unknown format %q", format)
	}
}

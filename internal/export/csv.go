package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/samplegeo/atlas-cli/internal/model"
)

// baseColumns lead every CSV export; one metadata_<key> column per distinct
// metadata key follows, in sorted order.
var baseColumns = []string{"dataset_id", "system_name", "longitude", "latitude"}

func writeCSV(path string, results []model.Result) (string, error) {
	log := zap.L().With(zap.String("component", "export"))
	if len(results) == 0 {
		log.Warn("no points to export")
		return "", nil
	}

	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "export: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	defer w.Flush()

	metaKeys := metadataKeys(results)
	header := make([]string, 0, len(baseColumns)+len(metaKeys))
	header = append(header, baseColumns...)
	for _, k := range metaKeys {
		header = append(header, "metadata_"+k)
	}
	if err := w.Write(header); err != nil {
		return "", eris.Wrap(err, "export: write csv header")
	}

	for i := range results {
		if err := w.Write(csvRow(&results[i], metaKeys)); err != nil {
			return "", eris.Wrap(err, "export: write csv row")
		}
	}

	log.Info("csv exported", zap.String("path", path), zap.Int("rows", len(results)))
	return path, nil
}

// metadataKeys returns the sorted union of metadata keys across results.
// Rows missing a key get an empty cell in that column.
func metadataKeys(results []model.Result) []string {
	seen := make(map[string]struct{})
	var keys []string
	for i := range results {
		for k := range results[i].Metadata {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func csvRow(r *model.Result, metaKeys []string) []string {
	row := make([]string, 0, len(baseColumns)+len(metaKeys))
	row = append(row,
		r.DatasetID,
		string(r.SystemName),
		strconv.FormatFloat(r.Longitude, 'f', -1, 64),
		strconv.FormatFloat(r.Latitude, 'f', -1, 64),
	)
	for _, k := range metaKeys {
		v, ok := r.Metadata[k]
		if !ok {
			row = append(row, "")
			continue
		}
		row = append(row, cellString(v))
	}
	return row
}

// cellString renders a metadata value for a CSV cell or popup line.
func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

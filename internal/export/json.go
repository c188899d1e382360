package export

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/samplegeo/atlas-cli/internal/model"
)

// EncodeJSON writes v to path as two-space indented JSON. Statistics and
// result files share this encoding.
func EncodeJSON(path string, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: marshal json")
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

func writeJSON(path string, results []model.Result) (string, error) {
	// Encode nil as an empty array, not null.
	if results == nil {
		results = []model.Result{}
	}
	if err := EncodeJSON(path, results); err != nil {
		return "", err
	}
	zap.L().With(zap.String("component", "export")).
		Info("results saved", zap.String("path", path), zap.Int("count", len(results)))
	return path, nil
}

package fetcher

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultGeofenceBase is the EMSL endpoint that lists proposal locations
// around a point.
const DefaultGeofenceBase = "https://sc-data.emsl.pnnl.gov/ber/geofence"

// GeofenceURL builds the geofence query for a point and a fence radius in
// meters. The endpoint spells longitude "lon".
func GeofenceURL(base string, lat, lng, fence float64) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: parse base url %s", base)
	}
	q := u.Query()
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("fence", strconv.FormatFloat(fence, 'f', -1, 64))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchGeofence downloads the proposal locations within fence meters of the
// point and writes them to path as indented JSON, returning how many items
// arrived. The body is decoded before writing so a bad payload never lands
// on disk.
func (c *Client) FetchGeofence(ctx context.Context, base string, lat, lng, fence float64, path string) (int, error) {
	rawURL, err := GeofenceURL(base, lat, lng, fence)
	if err != nil {
		return 0, err
	}

	log := zap.L().With(zap.String("component", "fetcher"))
	log.Info("fetching geofence",
		zap.Float64("lat", lat), zap.Float64("lng", lng), zap.Float64("fence", fence))

	body, err := c.Fetch(ctx, rawURL)
	if err != nil {
		return 0, err
	}

	var items []map[string]any
	if err := json.Unmarshal(body, &items); err != nil {
		return 0, eris.Wrap(err, "fetcher: decode geofence response")
	}

	out, err := json.MarshalIndent(items, "", "    ")
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: marshal geofence response")
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return 0, eris.Wrapf(err, "fetcher: write %s", path)
	}

	log.Info("geofence saved", zap.String("path", path), zap.Int("items", len(items)))
	return len(items), nil
}

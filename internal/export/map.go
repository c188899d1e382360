package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"html/template"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/samplegeo/atlas-cli/internal/geo"
	"github.com/samplegeo/atlas-cli/internal/model"
)

const defaultZoom = 4

const mapHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Sample Locations</title>
  <link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
  <link rel="stylesheet" href="https://unpkg.com/leaflet.markercluster@1.5.3/dist/MarkerCluster.css">
  <link rel="stylesheet" href="https://unpkg.com/leaflet.markercluster@1.5.3/dist/MarkerCluster.Default.css">
  <script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
  <script src="https://unpkg.com/leaflet.markercluster@1.5.3/dist/leaflet.markercluster.js"></script>
  <style>html, body, #map { height: 100%; margin: 0; }</style>
</head>
<body>
  <div id="map"></div>
  <script>
    var page = {{.PageJSON}};
    var map = L.map('map').setView([page.center.lat, page.center.lng], page.zoom);
    L.tileLayer('https://tile.openstreetmap.org/{z}/{x}/{y}.png', {
      maxZoom: 19,
      attribution: '&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors'
    }).addTo(map);
    var cluster = L.markerClusterGroup();
    page.markers.forEach(function (m) {
      var marker = L.marker([m.lat, m.lng]);
      marker.bindPopup(m.popup, {maxWidth: 300});
      if (m.tooltip) {
        marker.bindTooltip(m.tooltip);
      }
      cluster.addLayer(marker);
    });
    map.addLayer(cluster);
  </script>
</body>
</html>
`

var mapTemplate = template.Must(template.New("map").Parse(mapHTML))

// mapPage is the JSON payload embedded in the rendered page script.
type mapPage struct {
	Center  mapPoint    `json:"center"`
	Zoom    int         `json:"zoom"`
	Markers []mapMarker `json:"markers"`
}

type mapPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type mapMarker struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Popup   string  `json:"popup"`
	Tooltip string  `json:"tooltip"`
}

// marshalTemplateJS encodes v as JSON and marks it safe to embed in the page
// script, so html/template leaves the literal alone.
func marshalTemplateJS(v any) (template.JS, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return template.JS(payload), nil
}

func writeMap(path string, results []model.Result) (string, error) {
	log := zap.L().With(zap.String("component", "export"))
	if len(results) == 0 {
		log.Warn("no points to visualize")
		return "", nil
	}

	lats := make([]float64, len(results))
	lngs := make([]float64, len(results))
	markers := make([]mapMarker, len(results))
	for i := range results {
		r := &results[i]
		lats[i] = r.Latitude
		lngs[i] = r.Longitude
		markers[i] = mapMarker{
			Lat:     r.Latitude,
			Lng:     r.Longitude,
			Popup:   popupHTML(r),
			Tooltip: string(r.SystemName),
		}
	}
	centerLat, centerLng, _ := geo.MeanCenter(lats, lngs)

	pageJSON, err := marshalTemplateJS(mapPage{
		Center:  mapPoint{Lat: centerLat, Lng: centerLng},
		Zoom:    defaultZoom,
		Markers: markers,
	})
	if err != nil {
		return "", eris.Wrap(err, "export: marshal map page")
	}

	var buf bytes.Buffer
	if err := mapTemplate.Execute(&buf, struct{ PageJSON template.JS }{pageJSON}); err != nil {
		return "", eris.Wrap(err, "export: render map")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", eris.Wrapf(err, "export: write %s", path)
	}

	log.Info("map saved", zap.String("path", path), zap.Int("points", len(markers)))
	return path, nil
}

// popupHTML builds the marker popup body. Field values are HTML-escaped;
// the metadata source line falls back to "Unknown source" only when the key
// is absent, and the description line is omitted when empty.
func popupHTML(r *model.Result) string {
	datasetID := r.DatasetID
	if datasetID == "" {
		datasetID = "Unknown"
	}
	system := string(r.SystemName)
	if system == "" {
		system = "Unknown"
	}
	source := "Unknown source"
	if v, ok := r.Metadata["source"]; ok {
		source = cellString(v)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<strong>Dataset:</strong> %s<br>", html.EscapeString(datasetID))
	fmt.Fprintf(&b, "<strong>System:</strong> %s<br>", html.EscapeString(system))
	fmt.Fprintf(&b, "<strong>Coordinates:</strong> %s, %s<br>",
		strconv.FormatFloat(r.Latitude, 'f', -1, 64),
		strconv.FormatFloat(r.Longitude, 'f', -1, 64))
	fmt.Fprintf(&b, "<strong>Source:</strong> %s<br>", html.EscapeString(source))
	if v, ok := r.Metadata["description"]; ok {
		if desc := cellString(v); desc != "" {
			fmt.Fprintf(&b, "<strong>Description:</strong> %s<br>", html.EscapeString(desc))
		}
	}
	return b.String()
}

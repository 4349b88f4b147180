package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"weathergen/internal/common"
	"weathergen/internal/domain/model"
	"weathergen/internal/platform/config"
)

// BuienradarClient fetches the current station measurements from the public
// Buienradar feed. It is the work-item source for fan-out: one station, one
// unit of work.
type BuienradarClient struct {
	httpClient *http.Client
	apiURL     string
	limit      int
}

func NewBuienradarClient(cfg *config.Config) *BuienradarClient {
	return &BuienradarClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiURL:     cfg.BuienradarAPIURL,
		limit:      cfg.StationLimit,
	}
}

// flexNumber tolerates the feed's habit of mixing numeric and quoted values
// for the same field.
type flexNumber struct {
	value *float64
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 1 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if parsed, err := strconv.ParseFloat(s, 64); err == nil {
			n.value = &parsed
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}
	n.value = &f
	return nil
}

type feedStation struct {
	StationID          flexNumber `json:"stationid"`
	StationName        string     `json:"stationname"`
	Lat                flexNumber `json:"lat"`
	Lon                flexNumber `json:"lon"`
	Regio              string     `json:"regio"`
	Temperature        flexNumber `json:"temperature"`
	WeatherDescription string     `json:"weatherdescription"`
	Humidity           flexNumber `json:"humidity"`
	WindSpeed          flexNumber `json:"windspeed"`
	WindDirection      string     `json:"winddirection"`
}

type feedDocument struct {
	Actual struct {
		StationMeasurements []feedStation `json:"stationmeasurements"`
	} `json:"actual"`
}

func (c *BuienradarClient) ListStations(ctx context.Context) ([]model.WeatherStation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building feed request: %v", common.ErrUpstreamUnavailable, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching feed: %v", common.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: feed returned status %d", common.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var doc feedDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decoding feed: %v", common.ErrUpstreamUnavailable, err)
	}

	measurements := doc.Actual.StationMeasurements
	if c.limit > 0 && len(measurements) > c.limit {
		measurements = measurements[:c.limit]
	}

	stations := make([]model.WeatherStation, 0, len(measurements))
	for _, m := range measurements {
		stations = append(stations, model.WeatherStation{
			StationID:          intFrom(m.StationID),
			StationName:        m.StationName,
			RegionName:         m.Regio,
			Lat:                m.Lat.value,
			Lon:                m.Lon.value,
			Temperature:        m.Temperature.value,
			WeatherDescription: m.WeatherDescription,
			Humidity:           intPtrFrom(m.Humidity),
			WindSpeed:          m.WindSpeed.value,
			WindDirection:      m.WindDirection,
		})
	}
	return stations, nil
}

func intFrom(n flexNumber) int {
	if n.value == nil {
		return 0
	}
	return int(*n.value)
}

func intPtrFrom(n flexNumber) *int {
	if n.value == nil {
		return nil
	}
	v := int(*n.value)
	return &v
}

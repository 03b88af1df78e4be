// services/weather_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/hikingtw/trailguard/config"
	"github.com/hikingtw/trailguard/scraper"
)

// cwaSentinels are the CWA marker values meaning "missing or invalid
// observation"; they are substituted with missingValue at the extraction
// boundary so downstream consumers never see them.
var cwaSentinels = map[string]struct{}{
	"-99":  {},
	"-999": {},
	"T":    {},
}

const missingValue = "N/A"

// StationPair maps a trail to its nearest weather and rainfall stations.
type StationPair struct {
	Observation string
	Rainfall    string
}

// WeatherService fetches CWA observations and renders them as prose summaries
// for the recommendation prompt. Summaries are cached per station with a TTL
// so repeated recommendation calls do not hammer the CWA API.
type WeatherService struct {
	cfg     config.CWAConfig
	client  *http.Client
	cache   *expirable.LRU[string, string]
	metrics *scraper.Metrics
}

// NewWeatherService builds the service; metrics may be nil.
func NewWeatherService(cfg config.CWAConfig, metrics *scraper.Metrics) *WeatherService {
	return &WeatherService{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   expirable.NewLRU[string, string](128, nil, cfg.CacheTTL),
		metrics: metrics,
	}
}

// StationsForTrail resolves the stations observing a trail.
// TODO: replace the fixed pair with a per-trail lookup table once station
// coverage data is collected.
func (s *WeatherService) StationsForTrail(trailID int) StationPair {
	return StationPair{
		Observation: "C0AK30",
		Rainfall:    "C1I230",
	}
}

// SummaryForTrail returns the combined weather and rainfall summary for a
// trail. Upstream failures degrade to an explanatory line; this method never
// returns an error.
func (s *WeatherService) SummaryForTrail(ctx context.Context, trailID int) string {
	stations := s.StationsForTrail(trailID)

	observation := s.stationSummary(ctx, "obs", s.cfg.ObservationURL, stations.Observation, transformObservation)
	rainfall := s.stationSummary(ctx, "rain", s.cfg.RainfallURL, stations.Rainfall, transformRainfall)

	return observation + "\n\n" + rainfall
}

func (s *WeatherService) stationSummary(
	ctx context.Context,
	kind, endpoint, stationID string,
	transform func(map[string]any, string) string,
) string {
	cacheKey := kind + ":" + stationID
	if cached, ok := s.cache.Get(cacheKey); ok {
		slog.Debug("weather summary served from cache", "station", stationID)
		return cached
	}

	data, err := s.fetchStationData(ctx, endpoint, stationID)
	if err != nil {
		slog.Error("CWA request failed", "station", stationID, "error", err)
		return fmt.Sprintf("CWA data unavailable for station %s.", stationID)
	}

	summary := transform(data, stationID)
	s.cache.Add(cacheKey, summary)
	return summary
}

func (s *WeatherService) fetchStationData(ctx context.Context, endpoint, stationID string) (map[string]any, error) {
	params := url.Values{}
	params.Set("Authorization", s.cfg.APIKey)
	params.Set("locationName", stationID)
	params.Set("format", "JSON")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build CWA request: %w", err)
	}

	s.metrics.IncRequest("weather")
	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("CWA request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("CWA returned status %d", res.StatusCode)
	}

	var data map[string]any
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode CWA payload: %w", err)
	}
	return data, nil
}

// transformObservation renders an O-A0001-001 weather-station payload as an
// AI-readable summary.
func transformObservation(data map[string]any, stationID string) string {
	station := findStation(data, stationID)
	if station == nil {
		return fmt.Sprintf("No weather observation found for station %s.", stationID)
	}

	name := weatherValue(station, "StationName")
	obsTime := weatherValue(station, "ObsTime", "DateTime")
	weather := weatherValue(station, "WeatherElement", "Weather")
	temp := weatherValue(station, "WeatherElement", "AirTemperature")
	humidity := weatherValue(station, "WeatherElement", "RelativeHumidity")
	windSpeed := weatherValue(station, "WeatherElement", "WindSpeed")
	dailyHigh := weatherValue(station, "WeatherElement", "DailyExtreme", "DailyHigh", "TemperatureInfo", "AirTemperature")
	dailyLow := weatherValue(station, "WeatherElement", "DailyExtreme", "DailyLow", "TemperatureInfo", "AirTemperature")

	return fmt.Sprintf(`Current weather observation - station %s (%s)
Observed at: %s
Conditions: %s
Temperature: %s C, relative humidity %s%%
Wind speed: %s m/s (above 5 m/s is noticeable on exposed ridges)
Daily range: high %s C / low %s C`,
		name, stationID, obsTime, weather, temp, humidity, windSpeed, dailyHigh, dailyLow)
}

// transformRainfall renders an O-A0002-001 rainfall-station payload.
// The 24-hour accumulation is the primary mud/flood risk signal.
func transformRainfall(data map[string]any, stationID string) string {
	station := findStation(data, stationID)
	if station == nil {
		return fmt.Sprintf("No rainfall data found for station %s.", stationID)
	}

	name := weatherValue(station, "StationName")
	obsTime := weatherValue(station, "ObsTime", "DateTime")
	now := weatherValue(station, "RainfallElement", "Now", "Precipitation")
	past1h := weatherValue(station, "RainfallElement", "Past1hr", "Precipitation")
	past3h := weatherValue(station, "RainfallElement", "Past3hr", "Precipitation")
	past24h := weatherValue(station, "RainfallElement", "Past24hr", "Precipitation")

	return fmt.Sprintf(`Current rainfall observation - station %s (%s)
Observed at: %s
Current rain: %s mm
Past 1h accumulation: %s mm (short-term slipperiness indicator)
Past 3h accumulation: %s mm
Past 24h accumulation: %s mm (mud and flooding risk indicator)`,
		name, stationID, obsTime, now, past1h, past3h, past24h)
}

// findStation locates the record for stationID under records.Station.
func findStation(data map[string]any, stationID string) map[string]any {
	records, ok := data["records"].(map[string]any)
	if !ok {
		return nil
	}
	stations, ok := records["Station"].([]any)
	if !ok {
		return nil
	}
	for _, entry := range stations {
		station, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if id, _ := station["StationId"].(string); id == stationID {
			return station
		}
	}
	return nil
}

// weatherValue walks a nested CWA payload along keys and returns the value as
// a string, substituting missingValue for absent fields, blanks, and the CWA
// sentinel markers.
func weatherValue(data map[string]any, keys ...string) string {
	var current any = data
	for _, key := range keys {
		m, ok := current.(map[string]any)
		if !ok {
			return missingValue
		}
		if current, ok = m[key]; !ok {
			return missingValue
		}
	}

	var value string
	switch v := current.(type) {
	case string:
		value = strings.TrimSpace(v)
	case float64:
		value = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		value = strings.TrimSpace(fmt.Sprint(v))
	}

	if value == "" {
		return missingValue
	}
	if _, invalid := cwaSentinels[value]; invalid {
		return missingValue
	}
	return value
}

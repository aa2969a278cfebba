package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/swelljoe/devotional/internal/logger"
	"github.com/swelljoe/devotional/internal/metrics"
)

const (
	defaultTTL  = time.Hour
	geocodeTTL  = 24 * time.Hour
	forecastLen = 5
)

// ErrInvalidCoordinates is returned for missing or out-of-range coordinates.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Store is the expiring key/value storage the service caches into.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetTTL(ctx context.Context, key, value string, ttl time.Duration) error
}

// Service handles weather business logic and caching
type Service struct {
	client *Client
	store  Store
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger
}

// NewService creates a weather service. A nil store disables caching.
func NewService(client *Client, store Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Service{
		client: client,
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		log:    logger.WithModule("weather"),
	}
}

// ValidCoordinates reports whether lat/lon are usable.
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// GetWeather returns weather data for a given location, utilizing caching
func (s *Service) GetWeather(ctx context.Context, lat, lon float64) (*WeatherData, error) {
	if !ValidCoordinates(lat, lon) {
		return nil, ErrInvalidCoordinates
	}

	// Round to 2 decimal places (about 1.1km) so nearby readers share an entry.
	const precision = 100.0
	rLat := math.Round(lat*precision) / precision
	rLon := math.Round(lon*precision) / precision
	key := cacheKey(rLat, rLon)

	if wd := s.cached(ctx, key); wd != nil {
		metrics.WeatherLookups.WithLabelValues("hit").Inc()
		return wd, nil
	}
	metrics.WeatherLookups.WithLabelValues("miss").Inc()

	fc, err := s.client.GetForecast(ctx, rLat, rLon)
	if err != nil {
		return nil, fmt.Errorf("failed to get forecast: %w", err)
	}

	now := s.now()
	wd := transform(fc, now, s.ttl)

	if name, err := s.client.ReverseGeocode(ctx, rLat, rLon); err == nil {
		wd.Location = name
	} else {
		s.log.Debug("reverse geocode failed", zap.Error(err))
	}

	if s.store != nil {
		if data, err := json.Marshal(wd); err == nil {
			if err := s.store.SetTTL(ctx, key, string(data), s.ttl); err != nil {
				s.log.Warn("failed to update weather cache", zap.String("key", key), zap.Error(err))
			}
		}
	}

	return wd, nil
}

func (s *Service) cached(ctx context.Context, key string) *WeatherData {
	if s.store == nil {
		return nil
	}
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.log.Warn("weather cache error", zap.String("key", key), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var wd WeatherData
	if err := json.Unmarshal([]byte(raw), &wd); err != nil {
		s.log.Warn("weather cache unmarshal error", zap.String("key", key), zap.Error(err))
		return nil
	}
	return &wd
}

// Geocode resolves a location string to coordinates, caching answers for a day
func (s *Service) Geocode(ctx context.Context, query string) (float64, float64, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return 0, 0, ErrLocationNotFound
	}
	key := "geocode_" + strings.ToLower(query)

	if s.store != nil {
		if raw, ok, err := s.store.Get(ctx, key); err == nil && ok {
			if lat, lon, ok := parseCoordinates(raw); ok {
				return lat, lon, nil
			}
		}
	}

	lat, lon, err := s.client.Geocode(ctx, query)
	if err != nil {
		return 0, 0, err
	}

	if s.store != nil {
		value := strconv.FormatFloat(lat, 'g', -1, 64) + "," + strconv.FormatFloat(lon, 'g', -1, 64)
		if err := s.store.SetTTL(ctx, key, value, geocodeTTL); err != nil {
			s.log.Warn("failed to cache geocode", zap.String("query", query), zap.Error(err))
		}
	}
	return lat, lon, nil
}

func parseCoordinates(raw string) (float64, float64, bool) {
	latStr, lonStr, ok := strings.Cut(raw, ",")
	if !ok {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("weather_%.2f_%.2f", lat, lon)
}

func transform(fc *ForecastResponse, now time.Time, ttl time.Duration) *WeatherData {
	cw := fc.CurrentWeather
	isDay := cw.IsDay != 0

	wd := &WeatherData{
		Current: CurrentCondition{
			Temperature:     roundTemp(cw.Temperature),
			TemperatureUnit: "F",
			WeatherCode:     cw.WeatherCode,
			IsDay:           isDay,
			Description:     describeWeatherCode(cw.WeatherCode),
			Icon:            mapWeatherCode(cw.WeatherCode, isDay),
		},
		Forecast:  make([]DailyForecast, 0, forecastLen),
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	d := fc.Daily
	days := min(len(d.MaxTemp), len(d.MinTemp))
	for i := 0; i < days && i < forecastLen; i++ {
		day := DailyForecast{
			HighTemp: roundTemp(d.MaxTemp[i]),
			LowTemp:  roundTemp(d.MinTemp[i]),
		}
		if i < len(d.Time) {
			day.Date = d.Time[i]
		}
		if i < len(d.WeatherCode) {
			day.WeatherCode = d.WeatherCode[i]
			day.Description = describeWeatherCode(day.WeatherCode)
			day.Icon = mapWeatherCode(day.WeatherCode, true)
		}
		wd.Forecast = append(wd.Forecast, day)
	}

	if len(wd.Forecast) > 0 {
		wd.Current.HighTemp = wd.Forecast[0].HighTemp
		wd.Current.LowTemp = wd.Forecast[0].LowTemp
	} else {
		wd.Current.HighTemp = wd.Current.Temperature
		wd.Current.LowTemp = wd.Current.Temperature
	}

	return wd
}

func roundTemp(f float64) int {
	return int(math.Round(f))
}

// mapWeatherCode maps a WMO weather code to a Material Symbol name
func mapWeatherCode(code int, isDay bool) string {
	switch {
	case code == 0 || code == 1:
		if !isDay {
			return "clear_night"
		}
		return "sunny"
	case code == 2 || code == 3 || code == 45 || code == 48:
		return "cloud"
	case (code >= 51 && code <= 65) || (code >= 80 && code <= 82) || code == 95 || code == 96 || code == 99:
		return "rainy"
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return "weather_snowy"
	}
	return "cloud"
}

func describeWeatherCode(code int) string {
	switch {
	case code == 0:
		return "Clear sky"
	case code == 1:
		return "Mainly clear"
	case code == 2:
		return "Partly cloudy"
	case code == 3:
		return "Overcast"
	case code == 45 || code == 48:
		return "Fog"
	case code >= 51 && code <= 57:
		return "Drizzle"
	case code >= 61 && code <= 67:
		return "Rain"
	case code >= 71 && code <= 77:
		return "Snow"
	case code >= 80 && code <= 82:
		return "Rain showers"
	case code == 85 || code == 86:
		return "Snow showers"
	case code == 95:
		return "Thunderstorm"
	case code == 96 || code == 99:
		return "Thunderstorm with hail"
	}
	return "Unknown"
}

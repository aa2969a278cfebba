package weather

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/swelljoe/devotional/internal/db"
)

type countingHandler struct {
	forecasts atomic.Int32
	geocodes  atomic.Int32
	fail      bool
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/v1/forecast":
		h.forecasts.Add(1)
		if h.fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(forecastJSON))
	case "/search":
		h.geocodes.Add(1)
		w.Write([]byte(`[{"lat":"33.749","lon":"-84.388"}]`))
	case "/reverse":
		w.Write([]byte(`{"address":{"city":"New York","state":"New York"}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestService(t *testing.T, h http.Handler, store Store) *Service {
	t.Helper()
	return NewService(newTestClient(h), store, time.Hour)
}

func newTestStore(t *testing.T) *db.DB {
	t.Helper()
	store, err := db.NewDB(":memory:")
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("store unavailable")
}

func (brokenStore) SetTTL(context.Context, string, string, time.Duration) error {
	return errors.New("store unavailable")
}

// TestGetWeather_Transforms tests the card payload built from a forecast
func TestGetWeather_Transforms(t *testing.T) {
	svc := newTestService(t, &countingHandler{}, nil)

	wd, err := svc.GetWeather(context.Background(), 40.7128, -74.006)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if wd.Current.Temperature != 72 || wd.Current.TemperatureUnit != "F" {
		t.Errorf("unexpected current temperature %d%s", wd.Current.Temperature, wd.Current.TemperatureUnit)
	}
	if wd.Current.HighTemp != 75 || wd.Current.LowTemp != 55 {
		t.Errorf("expected 75/55, got %d/%d", wd.Current.HighTemp, wd.Current.LowTemp)
	}
	if wd.Current.Icon != "cloud" || wd.Current.Description != "Partly cloudy" || !wd.Current.IsDay {
		t.Errorf("unexpected current condition %+v", wd.Current)
	}
	if len(wd.Forecast) != 2 {
		t.Fatalf("expected 2 forecast days, got %d", len(wd.Forecast))
	}
	if wd.Forecast[1].Date != "2024-01-16" || wd.Forecast[1].Icon != "rainy" || wd.Forecast[1].LowTemp != 50 {
		t.Errorf("unexpected second day %+v", wd.Forecast[1])
	}
	if wd.Location != "New York, New York" {
		t.Errorf("expected location New York, New York, got %q", wd.Location)
	}
	if !wd.ExpiresAt.Equal(wd.CachedAt.Add(time.Hour)) {
		t.Errorf("expected one hour expiry, got %v -> %v", wd.CachedAt, wd.ExpiresAt)
	}
}

// TestGetWeather_CachesRoundedCoordinates tests that nearby lookups share a cache entry
func TestGetWeather_CachesRoundedCoordinates(t *testing.T) {
	h := &countingHandler{}
	store := newTestStore(t)
	svc := newTestService(t, h, store)
	ctx := context.Background()

	if _, err := svc.GetWeather(ctx, 40.7128, -74.006); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.GetWeather(ctx, 40.7131, -74.0062); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := h.forecasts.Load(); got != 1 {
		t.Errorf("expected 1 forecast request, got %d", got)
	}

	if _, ok, _ := store.Get(ctx, "weather_40.71_-74.01"); !ok {
		t.Error("expected cache entry weather_40.71_-74.01")
	}

	if _, err := svc.GetWeather(ctx, 41.5, -74.006); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := h.forecasts.Load(); got != 2 {
		t.Errorf("expected 2 forecast requests, got %d", got)
	}
}

// TestGetWeather_StoreUnavailable tests that a broken store does not block weather
func TestGetWeather_StoreUnavailable(t *testing.T) {
	h := &countingHandler{}
	svc := newTestService(t, h, brokenStore{})

	wd, err := svc.GetWeather(context.Background(), 40.7128, -74.006)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wd.Current.Temperature != 72 {
		t.Errorf("expected 72, got %d", wd.Current.Temperature)
	}
}

// TestGetWeather_InvalidCoordinates tests that bad coordinates never reach the API
func TestGetWeather_InvalidCoordinates(t *testing.T) {
	h := &countingHandler{}
	svc := newTestService(t, h, nil)

	for _, c := range [][2]float64{{91, 0}, {0, -181}, {math.NaN(), 0}, {0, math.Inf(1)}} {
		if _, err := svc.GetWeather(context.Background(), c[0], c[1]); !errors.Is(err, ErrInvalidCoordinates) {
			t.Errorf("GetWeather(%v, %v) error = %v, want ErrInvalidCoordinates", c[0], c[1], err)
		}
	}
	if got := h.forecasts.Load(); got != 0 {
		t.Errorf("expected no forecast requests, got %d", got)
	}
}

// TestGetWeather_UpstreamFailure tests that API errors are wrapped
func TestGetWeather_UpstreamFailure(t *testing.T) {
	svc := newTestService(t, &countingHandler{fail: true}, nil)

	_, err := svc.GetWeather(context.Background(), 40, -74)
	if err == nil {
		t.Fatal("expected error")
	}
}

// TestGeocode_Cached tests that place names are geocoded once
func TestGeocode_Cached(t *testing.T) {
	h := &countingHandler{}
	svc := newTestService(t, h, newTestStore(t))
	ctx := context.Background()

	for _, q := range []string{"Atlanta", " atlanta "} {
		lat, lon, err := svc.Geocode(ctx, q)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if lat != 33.749 || lon != -84.388 {
			t.Errorf("expected 33.749,-84.388 got %v,%v", lat, lon)
		}
	}
	if got := h.geocodes.Load(); got != 1 {
		t.Errorf("expected 1 geocode request, got %d", got)
	}

	if _, _, err := svc.Geocode(ctx, "   "); !errors.Is(err, ErrLocationNotFound) {
		t.Errorf("expected ErrLocationNotFound for blank query, got %v", err)
	}
}

// TestMapWeatherCode tests the WMO code to icon mapping
func TestMapWeatherCode(t *testing.T) {
	tests := []struct {
		code     int
		isDay    bool
		expected string
	}{
		{0, true, "sunny"},
		{1, false, "clear_night"},
		{2, true, "cloud"},
		{48, false, "cloud"},
		{53, true, "rainy"},
		{65, true, "rainy"},
		{81, true, "rainy"},
		{95, true, "rainy"},
		{99, false, "rainy"},
		{71, true, "weather_snowy"},
		{77, true, "weather_snowy"},
		{86, true, "weather_snowy"},
		{42, true, "cloud"},
	}

	for _, tt := range tests {
		if got := mapWeatherCode(tt.code, tt.isDay); got != tt.expected {
			t.Errorf("mapWeatherCode(%d, %v) = %q, want %q", tt.code, tt.isDay, got, tt.expected)
		}
	}
}

// TestTransform_NoDaily tests that high/low fall back to the current reading
func TestTransform_NoDaily(t *testing.T) {
	fc := &ForecastResponse{}
	fc.CurrentWeather.Temperature = 31.4
	fc.CurrentWeather.WeatherCode = 73

	wd := transform(fc, time.Now(), time.Hour)
	if wd.Current.HighTemp != 31 || wd.Current.LowTemp != 31 {
		t.Errorf("expected 31/31, got %d/%d", wd.Current.HighTemp, wd.Current.LowTemp)
	}
	if wd.Current.Icon != "weather_snowy" || wd.Current.IsDay {
		t.Errorf("unexpected current %+v", wd.Current)
	}
	if len(wd.Forecast) != 0 {
		t.Errorf("expected empty forecast, got %d", len(wd.Forecast))
	}
}

// TestValidCoordinates tests coordinate range checks
func TestValidCoordinates(t *testing.T) {
	if !ValidCoordinates(-90, 180) || !ValidCoordinates(0, 0) {
		t.Error("expected boundary coordinates to be valid")
	}
	if ValidCoordinates(-90.01, 0) || ValidCoordinates(0, 180.5) {
		t.Error("expected out-of-range coordinates to be invalid")
	}
}

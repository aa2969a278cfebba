package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	defaultGeocodeURL  = "https://nominatim.openstreetmap.org/search"
)

// ErrLocationNotFound is returned when geocoding finds no match.
var ErrLocationNotFound = errors.New("location not found")

// Client handles Open-Meteo and Nominatim interactions
type Client struct {
	ForecastURL string
	GeocodeURL  string
	UserAgent   string
	HTTPClient  *http.Client
}

// NewClient creates a weather client. Empty URLs fall back to the public endpoints.
func NewClient(forecastURL, geocodeURL, userAgent string, timeout time.Duration) *Client {
	if forecastURL == "" {
		forecastURL = defaultForecastURL
	}
	if geocodeURL == "" {
		geocodeURL = defaultGeocodeURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		ForecastURL: forecastURL,
		GeocodeURL:  geocodeURL,
		UserAgent:   userAgent,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		// Open-Meteo explains bad requests as {"error":true,"reason":"..."}
		var apiErr struct {
			Reason string `json:"reason"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Reason != "" {
			return nil, fmt.Errorf("weather API error: %d %s: %s", resp.StatusCode, resp.Status, apiErr.Reason)
		}
		return nil, fmt.Errorf("weather API error: %d %s", resp.StatusCode, resp.Status)
	}

	return body, nil
}

// ForecastResponse represents the Open-Meteo /v1/forecast response
type ForecastResponse struct {
	Timezone       string `json:"timezone"`
	CurrentWeather struct {
		Temperature float64 `json:"temperature"`
		WindSpeed   float64 `json:"windspeed"`
		WeatherCode int     `json:"weathercode"`
		IsDay       int     `json:"is_day"`
		Time        string  `json:"time"`
	} `json:"current_weather"`
	Daily struct {
		Time        []string  `json:"time"`
		MaxTemp     []float64 `json:"temperature_2m_max"`
		MinTemp     []float64 `json:"temperature_2m_min"`
		WeatherCode []int     `json:"weathercode"`
	} `json:"daily"`
}

// GetForecast fetches current conditions and the daily outlook in Fahrenheit
func (c *Client) GetForecast(ctx context.Context, lat, lon float64) (*ForecastResponse, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	params.Set("current_weather", "true")
	params.Set("daily", "temperature_2m_max,temperature_2m_min,weathercode")
	params.Set("temperature_unit", "fahrenheit")
	params.Set("timezone", "auto")

	data, err := c.get(ctx, c.ForecastURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var fc ForecastResponse
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

// GeocodeResponse represents Nominatim response
type GeocodeResponse []struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode fetches coordinates for a location string using OpenStreetMap
func (c *Client) Geocode(ctx context.Context, query string) (float64, float64, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	data, err := c.get(ctx, c.GeocodeURL+"?"+params.Encode())
	if err != nil {
		return 0, 0, err
	}

	var resp GeocodeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, 0, err
	}

	if len(resp) == 0 {
		return 0, 0, ErrLocationNotFound
	}

	lat, err := strconv.ParseFloat(resp[0].Lat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad latitude %q: %w", resp[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(resp[0].Lon, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad longitude %q: %w", resp[0].Lon, err)
	}

	return lat, lon, nil
}

// ReverseResponse represents Nominatim reverse response
type ReverseResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		State   string `json:"state"`
		County  string `json:"county"`
	} `json:"address"`
}

// reverseURL derives the Nominatim /reverse endpoint from the /search one.
func (c *Client) reverseURL() string {
	base := strings.TrimRight(c.GeocodeURL, "/")
	if strings.HasSuffix(base, "/search") {
		return strings.TrimSuffix(base, "/search") + "/reverse"
	}
	return base + "/reverse"
}

// ReverseGeocode fetches a human-friendly location name for given coords using OpenStreetMap
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("lat", fmt.Sprintf("%.6f", lat))
	params.Set("lon", fmt.Sprintf("%.6f", lon))
	params.Set("zoom", "10")
	params.Set("addressdetails", "1")

	data, err := c.get(ctx, c.reverseURL()+"?"+params.Encode())
	if err != nil {
		return "", err
	}

	var resp ReverseResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", err
	}

	// Prefer city/town/village and append state if available
	place := resp.Address.City
	if place == "" {
		place = resp.Address.Town
	}
	if place == "" {
		place = resp.Address.Village
	}
	if place == "" {
		place = resp.Address.County
	}
	if place != "" {
		if resp.Address.State != "" {
			return place + ", " + resp.Address.State, nil
		}
		return place, nil
	}

	if resp.DisplayName != "" {
		return resp.DisplayName, nil
	}

	return "", ErrLocationNotFound
}

package weather

import "time"

// WeatherData is the header card payload: today's conditions plus the daily outlook.
type WeatherData struct {
	Current   CurrentCondition `json:"current"`
	Forecast  []DailyForecast  `json:"forecast"`
	CachedAt  time.Time        `json:"cached_at"`
	ExpiresAt time.Time        `json:"expires_at"`
	Location  string           `json:"location,omitempty"`
}

type CurrentCondition struct {
	Temperature     int    `json:"temperature"`
	TemperatureUnit string `json:"temperature_unit"`
	WeatherCode     int    `json:"weathercode"`
	IsDay           bool   `json:"is_day"`
	Description     string `json:"description"`
	Icon            string `json:"icon"`
	HighTemp        int    `json:"high_temp"`
	LowTemp         int    `json:"low_temp"`
}

type DailyForecast struct {
	Date        string `json:"date"` // YYYY-MM-DD in the location's timezone
	HighTemp    int    `json:"high_temp"`
	LowTemp     int    `json:"low_temp"`
	WeatherCode int    `json:"weathercode"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/config"
)

// WeatherSource fetches current conditions from an OpenWeatherMap-compatible API.
type WeatherSource struct {
	base
	cfg config.WeatherConfig
}

// NewWeather creates the weather fetcher.
func NewWeather(cfg config.WeatherConfig, opts Options) *WeatherSource {
	return &WeatherSource{base: newBase("weather", opts), cfg: cfg}
}

type owmResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

// Fetch returns at most one Weather. Without an API key it returns Empty.
func (w *WeatherSource) Fetch(ctx context.Context) Result[Weather] {
	if w.cfg.APIKey == "" {
		w.logger.Debug("weather API key not configured, skipping", "source", w.name)
		return Empty[Weather](w.name)
	}

	q := url.Values{}
	q.Set("q", w.cfg.City)
	q.Set("appid", w.cfg.APIKey)
	q.Set("units", "metric")
	if w.cfg.Lang != "" {
		q.Set("lang", w.cfg.Lang)
	}
	endpoint := strings.TrimRight(w.cfg.BaseURL, "/") + "/data/2.5/weather?" + q.Encode()

	var resp owmResponse
	if err := w.getJSON(ctx, endpoint, nil, &resp); err != nil {
		return failed[Weather](w.logger, w.name, err)
	}
	if len(resp.Weather) == 0 {
		return failed[Weather](w.logger, w.name, fmt.Errorf("weather response has no conditions"))
	}

	city := resp.Name
	if city == "" {
		city = w.cfg.City
	}
	return OK(w.name, []Weather{{
		City:        city,
		Description: resp.Weather[0].Description,
		TempC:       resp.Main.Temp,
		Humidity:    resp.Main.Humidity,
	}})
}

var _ Fetcher[Weather] = (*WeatherSource)(nil)

package agent

import (
	"context"
	"errors"
	"log/slog"

	"github.com/berkucuk/archchan/extract"
	"github.com/berkucuk/archchan/weather"
)

const (
	weatherFallback      = "Sorry, I couldn't figure out the city for the weather right now!"
	weatherNotConfigured = "The weather service is not configured on this server (WEATHER_API_KEY is missing)."
)

type weatherAgent struct {
	deps Deps
}

func (a *weatherAgent) Handle(ctx context.Context, req *Request) (Reply, error) {
	raw, err := a.deps.Completer.Complete(ctx, a.deps.Prompts.Render("weather", PromptData{Language: req.Language}), req.Text)
	if err != nil {
		slog.Warn("no reply for weather", "error", err)
		return Reply{Content: weatherFallback}, nil
	}

	f, err := extract.Extract(raw, "weather_request")
	if err != nil {
		return Reply{}, err
	}
	if msg := f.Err(); msg != "" {
		return Reply{Content: "Weather Assistant Error: " + msg}, nil
	}
	city, err := f.Require("city")
	if err != nil {
		return Reply{}, err
	}
	days := weather.ParseDays(f.Get("days"))
	unit := weather.ParseUnit(f.Get("unit"))

	if a.deps.Weather == nil {
		return Reply{Content: weatherNotConfigured}, nil
	}
	forecast, err := a.deps.Weather.Forecast(ctx, city, days)
	if err != nil {
		if errors.Is(err, weather.ErrNotConfigured) {
			return Reply{Content: weatherNotConfigured}, nil
		}
		slog.Warn("weather lookup failed", "city", city, "error", err)
		var werr *weather.Error
		if errors.As(err, &werr) {
			return Reply{Content: werr.Error()}, nil
		}
		return Reply{Content: "Error with weather service for " + city + ": " + err.Error()}, nil
	}
	return Reply{Content: weather.Render(forecast, unit)}, nil
}

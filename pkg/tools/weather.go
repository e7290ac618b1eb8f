package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// ForecastDay is one day of a weather forecast.
type ForecastDay struct {
	Date            string `json:"date"`
	DayOfWeek       string `json:"dayOfWeek"`
	HighTemperature string `json:"highTemperature"`
	LowTemperature  string `json:"lowTemperature"`
	Condition       string `json:"condition"`
	Humidity        string `json:"humidity"`
	WindSpeed       string `json:"windSpeed"`
}

// Forecast is the structured response of a weather lookup.
type Forecast struct {
	Forecast []ForecastDay `json:"forecast"`
}

// WeatherService provides a forecast for a location.
type WeatherService interface {
	Forecast(ctx context.Context, location string, days int) (*Forecast, error)
}

// MockWeatherService fabricates plausible forecasts from a per-city baseline.
type MockWeatherService struct {
	mu  sync.Mutex
	now func() time.Time
	rng *rand.Rand
}

type MockWeatherOption func(*MockWeatherService)

func WithWeatherClock(now func() time.Time) MockWeatherOption {
	return func(s *MockWeatherService) { s.now = now }
}

func WithWeatherSeed(seed int64) MockWeatherOption {
	return func(s *MockWeatherService) { s.rng = rand.New(rand.NewSource(seed)) }
}

func NewMockWeatherService(opts ...MockWeatherOption) *MockWeatherService {
	s := &MockWeatherService{
		now: time.Now,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cityBaseline(location string) (int, string) {
	lower := strings.ToLower(location)
	switch {
	case strings.Contains(lower, "dubai") || strings.Contains(lower, "cairo"):
		return 38, "Sunny"
	case strings.Contains(lower, "london") || strings.Contains(lower, "berlin"):
		return 15, "Cloudy"
	case strings.Contains(lower, "moscow") || strings.Contains(lower, "oslo"):
		return -2, "Snowing"
	case strings.Contains(lower, "sydney"):
		return 22, "Showers"
	case strings.Contains(lower, "tokyo"):
		return 28, "Humid"
	default:
		return 20, "Partly Cloudy"
	}
}

var variableConditions = []string{"Sunny", "Partly Cloudy", "Cloudy", "Showers", "Thunderstorms"}

func (s *MockWeatherService) Forecast(_ context.Context, location string, days int) (*Forecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if days < 1 {
		days = 1
	}
	baseTemp, baseCondition := cityBaseline(location)
	today := s.now()

	forecast := make([]ForecastDay, 0, days)
	for i := 0; i < days; i++ {
		date := today.AddDate(0, 0, i)
		high := baseTemp + s.rng.Intn(4) - 2 + i
		low := high - (5 + s.rng.Intn(3))
		condition := baseCondition
		if i > 1 && s.rng.Float64() > 0.6 {
			condition = variableConditions[s.rng.Intn(len(variableConditions))]
		}
		forecast = append(forecast, ForecastDay{
			Date:            date.Format("2006-01-02"),
			DayOfWeek:       date.Weekday().String(),
			HighTemperature: fmt.Sprintf("%d°C", high),
			LowTemperature:  fmt.Sprintf("%d°C", low),
			Condition:       condition,
			Humidity:        fmt.Sprintf("%d%%", 40+s.rng.Intn(30)),
			WindSpeed:       fmt.Sprintf("%d km/h", 5+s.rng.Intn(15)),
		})
	}
	return &Forecast{Forecast: forecast}, nil
}

type weatherInput struct {
	Location string `json:"location" jsonschema:"description=The city and state\\, e.g. San Francisco\\, CA"`
	Days     int    `json:"days,omitempty" jsonschema:"description=The number of days to forecast\\, e.g. 5 for a 5-day forecast."`
}

// NewWeatherTool declares the weather forecast tool backed by the given
// service.
func NewWeatherTool(svc WeatherService) Definition {
	return Definition{
		Name:        "getWeatherForecast",
		Description: "Get the weather forecast for a given location for a number of days.",
		Parameters:  reflectSchema(weatherInput{}),
		Handler: func(ctx context.Context, args json.RawMessage) (interface{}, error) {
			var in weatherInput
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			if in.Days == 0 {
				in.Days = 1
			}
			return svc.Forecast(ctx, in.Location, in.Days)
		},
	}
}

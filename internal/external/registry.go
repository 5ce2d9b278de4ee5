package external

import (
	"log/slog"
	"net/http"

	"ridecast/internal/config"
	"ridecast/internal/forecast"
	"ridecast/internal/types"
)

// ---------------------------------------------------------------------------
// Client Registry
//
// Central factory that instantiates all external service clients based on
// configuration. In test/local mode, returns stub implementations that
// produce deterministic data without requiring real credentials. In
// production mode, returns real clients with shared timeouts and resilience.
// ---------------------------------------------------------------------------

// ClientRegistry holds all external service client interfaces. It is the
// single point of access for the rest of the application to interact with
// third-party services (weather providers, email delivery).
type ClientRegistry struct {
	// Providers holds one ForecastProvider per known source in canonical
	// order. Disabled providers stay in the slice: they short-circuit to
	// no-forecast without a network call, so the failed-source set still
	// names them.
	Providers []types.ForecastProvider

	Email EmailProvider
}

// NewClientRegistry initializes all external service clients.
// If cfg.IsTestMode is true or cfg.Environment is "local", the registry is
// populated with stub implementations. Otherwise, real client
// implementations are initialized with the configured timeouts, retry
// policy, and fallback policy.
func NewClientRegistry(cfg *config.Config, logger *slog.Logger) *ClientRegistry {
	if logger == nil {
		logger = slog.Default()
	}

	useStubs := cfg.IsTestMode || cfg.Environment == "local"

	if useStubs {
		logger.Info("initializing external clients in STUB mode",
			"is_test_mode", cfg.IsTestMode,
			"environment", cfg.Environment,
		)
		return newStubRegistry(logger)
	}

	logger.Info("initializing external clients in PRODUCTION mode",
		"environment", cfg.Environment,
		"enabled_providers", cfg.Resilience.EnabledProviders,
	)
	return newProductionRegistry(cfg, logger)
}

// newStubRegistry creates a ClientRegistry populated entirely with stub
// implementations. This allows the application to boot locally without any
// external service credentials.
func newStubRegistry(logger *slog.Logger) *ClientRegistry {
	stubLogger := logger.With("mode", "stub")

	providers := make([]types.ForecastProvider, 0, len(types.AllProviderIDs))
	for _, id := range types.AllProviderIDs {
		providers = append(providers, NewStubForecastProvider(id, stubLogger))
	}

	return &ClientRegistry{
		Providers: providers,
		Email:     NewStubEmailProvider(stubLogger),
	}
}

// newProductionRegistry creates a ClientRegistry with real client
// implementations. Every provider shares the same retry and fallback policy
// but owns its HTTP client and circuit breaker, so one flapping upstream
// never opens another's breaker or starves its connection pool.
func newProductionRegistry(cfg *config.Config, logger *slog.Logger) *ClientRegistry {
	retry := RetryPolicy{
		Enabled:    cfg.Resilience.EnableRetries,
		MaxRetries: cfg.Resilience.MaxRetries,
		BaseDelay:  cfg.Resilience.BaseDelay,
		MaxDelay:   cfg.Resilience.MaxDelay,
	}

	fallback := forecast.ResolverPolicy{
		EnableFallback:      cfg.Resilience.EnableFallback,
		FallbackWindowHours: cfg.Resilience.FallbackWindowHours,
	}

	newBase := func(name string) *BaseClient {
		return NewBaseClient(
			&http.Client{Timeout: cfg.Resilience.RequestTimeout},
			name,
			retry,
			cfg.Providers.UserAgent,
			WithLogger(logger.With("client", name)),
		)
	}

	openWeather := NewOpenWeatherClient(newBase("openweather"), OpenWeatherConfig{
		APIKey:   cfg.Providers.OpenWeatherAPIKey,
		BaseURL:  cfg.Providers.OpenWeatherBaseURL,
		Enabled:  cfg.Resilience.ProviderEnabled(types.ProviderOpenWeather),
		Fallback: fallback,
		Logger:   logger.With("client", "openweather"),
	})

	weatherAPI := NewWeatherAPIClient(newBase("weatherapi"), WeatherAPIConfig{
		APIKey:   cfg.Providers.WeatherAPIKey,
		BaseURL:  cfg.Providers.WeatherAPIBaseURL,
		Enabled:  cfg.Resilience.ProviderEnabled(types.ProviderWeatherAPI),
		Fallback: fallback,
		Logger:   logger.With("client", "weatherapi"),
	})

	tomorrowIO := NewTomorrowIOClient(newBase("tomorrowio"), TomorrowIOConfig{
		APIKey:   cfg.Providers.TomorrowAPIKey,
		BaseURL:  cfg.Providers.TomorrowBaseURL,
		Enabled:  cfg.Resilience.ProviderEnabled(types.ProviderTomorrowIO),
		Fallback: fallback,
		Logger:   logger.With("client", "tomorrowio"),
	})

	noaa := NewNOAAClient(newBase("noaa"), NOAAConfig{
		BaseURL:  cfg.Providers.NOAABaseURL,
		Enabled:  cfg.Resilience.ProviderEnabled(types.ProviderNOAA),
		Fallback: fallback,
		Logger:   logger.With("client", "noaa"),
	})

	email := NewSMTPClient(SMTPClientConfig{
		Host:        cfg.Email.SMTPHost,
		Port:        cfg.Email.SMTPPort,
		Username:    cfg.Email.SMTPUsername,
		Password:    cfg.Email.SMTPPassword,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		UseStartTLS: cfg.Email.UseStartTLS,
		DialTimeout: cfg.Email.DialTimeout,
		Logger:      logger.With("client", "smtp"),
	})

	return &ClientRegistry{
		Providers: []types.ForecastProvider{openWeather, weatherAPI, tomorrowIO, noaa},
		Email:     email,
	}
}

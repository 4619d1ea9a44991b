package config

import (
	"time"

	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("region.code", 76)
	v.SetDefault("region.aggregation_step", time.Hour)

	v.SetDefault("production.url", "https://odre.opendatasoft.com/api/explore/v2.1/catalog/datasets/eco2mix-regional-tr/records")
	v.SetDefault("production.n_hours", 99)
	v.SetDefault("production.batch_limit", 96)

	v.SetDefault("capacity.registry_url", "https://odre.opendatasoft.com/api/explore/v2.1/catalog/datasets/registre-national-installation-production-stockage-electricite-agrege/exports/parquet")

	v.SetDefault("weather.historical_url", "https://historical-forecast-api.open-meteo.com/v1/forecast")
	v.SetDefault("weather.forecast_url", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("weather.variables", []string{
		"temperature_2m",
		"relative_humidity_2m",
		"precipitation",
		"surface_pressure",
		"cloud_cover",
		"wind_speed_10m",
		"wind_direction_10m",
		"global_tilted_irradiance",
	})
	v.SetDefault("weather.call_delay", 10*time.Second)
	v.SetDefault("weather.len_prev", 24)

	v.SetDefault("features.central_scenario", 13)
	v.SetDefault("features.lags", []int{1, 6, 24, 48})
	v.SetDefault("features.lagged_features", []string{"solaire", "global_tilted_irradiance", "temperature_2m", "wind_speed_10m"})
	v.SetDefault("features.timeframes", []map[string]any{
		{"unit": "month", "period": 12},
		{"unit": "hour", "period": 24},
	})
	v.SetDefault("features.target", "solaire")
	v.SetDefault("features.index_name", "date_heure")

	v.SetDefault("retry.max_attempts", 10)
	v.SetDefault("retry.multiplier", 2*time.Second)
	v.SetDefault("retry.min_wait", 10*time.Second)
	v.SetDefault("retry.max_wait", 120*time.Second)
	v.SetDefault("retry.request_timeout", 30*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "solarcast.db")
	v.SetDefault("database.coordinate_table", "coordinates")
	v.SetDefault("database.inference_table", "inference_dataset")

	v.SetDefault("mqtt.client_id", "solarcast-etl")

	v.SetDefault("schedule.etl", "5 * * * *")
	v.SetDefault("schedule.maintenance", "30 3 * * *")
}

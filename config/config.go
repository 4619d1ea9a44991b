package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/icodeforyou/solarcast-etl/etlerr"
	"github.com/icodeforyou/solarcast-etl/features"
	"github.com/icodeforyou/solarcast-etl/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppConfigRegion struct {
	Code int `validate:"gt=0"`
	// IANA zone every series is normalized to, default: "Europe/Paris"
	Timezone        *string
	AggregationStep time.Duration `mapstructure:"aggregation_step" validate:"gt=0"`
}

func (r AppConfigRegion) GetTimezone() string {
	if r.Timezone == nil {
		return "Europe/Paris"
	}
	return *r.Timezone
}

type AppConfigProduction struct {
	URL        string `validate:"required,url"`
	NHours     int    `mapstructure:"n_hours" validate:"gt=0"`
	BatchLimit int    `mapstructure:"batch_limit" validate:"gt=0,lte=96"`
	Select     string
}

type AppConfigCapacity struct {
	RegistryURL string `mapstructure:"registry_url" validate:"required,url"`
}

type AppConfigWeather struct {
	HistoricalURL string        `mapstructure:"historical_url" validate:"required,url"`
	ForecastURL   string        `mapstructure:"forecast_url" validate:"required,url"`
	Variables     []string      `validate:"required,min=1,dive,required"`
	CallDelay     time.Duration `mapstructure:"call_delay" validate:"gte=0"`
	// Number of forecast hours appended after the last production hour
	LenPrev int `mapstructure:"len_prev" validate:"gt=0"`
}

type AppConfigFeatures struct {
	CentralScenario int                  `mapstructure:"central_scenario" validate:"gt=0"`
	Lags            []int                `validate:"required,min=1,dive,gt=0"`
	LaggedFeatures  []string             `mapstructure:"lagged_features" validate:"dive,required"`
	Timeframes      []features.Timeframe `validate:"dive"`
	Target          string               `validate:"required"`
	IndexName       string               `mapstructure:"index_name" validate:"required"`
}

func (f AppConfigFeatures) Options() features.Options {
	return features.Options{
		CentralScenario: f.CentralScenario,
		Timeframes:      f.Timeframes,
		Lags:            f.Lags,
		LaggedFeatures:  f.LaggedFeatures,
		Target:          f.Target,
		IndexName:       f.IndexName,
	}
}

type AppConfigRetry struct {
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"gt=0"`
	Multiplier     time.Duration `validate:"gt=0"`
	MinWait        time.Duration `mapstructure:"min_wait" validate:"gte=0"`
	MaxWait        time.Duration `mapstructure:"max_wait" validate:"gtefield=MinWait"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
}

type AppConfigDatabase struct {
	Driver          string `validate:"oneof=sqlite postgres"`
	DSN             string `validate:"required"`
	CoordinateTable string `mapstructure:"coordinate_table" validate:"required"`
	InferenceTable  string `mapstructure:"inference_table" validate:"required"`
	// How many days run history is kept before it gets purged
	RunRetentionDays *int `mapstructure:"run_retention_days"`
	// How many days sqlite backup files are kept before they get deleted
	BackupRetentionDays *int `mapstructure:"backup_retention_days"`
}

func (d AppConfigDatabase) GetRunRetentionDays() int {
	if d.RunRetentionDays == nil {
		return 90
	}
	return *d.RunRetentionDays
}

func (d AppConfigDatabase) GetBackupRetentionDays() int {
	if d.BackupRetentionDays == nil {
		return 30
	}
	return *d.BackupRetentionDays
}

// AppConfigMqtt is optional, no broker means no refresh notification.
type AppConfigMqtt struct {
	Broker   string
	ClientID string `mapstructure:"client_id"`
	Username string
	Password string
	Topic    string `validate:"required_with=Broker"`
}

type AppConfigSchedule struct {
	Etl         string `validate:"required"`
	Maintenance string `validate:"required"`
}

type AppConfigLogging struct {
	// Min log level for database : "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	DbLevel *string `mapstructure:"db_level"`
	// Log attributes format: "TEXT", "JSON", default: "JSON"
	DbAttrsFormat *string `mapstructure:"db_attrs_format"`
	// Maximum number of log entries in the database, default: 10000
	DbMaxEntries *int `mapstructure:"db_max_entries"`
	// Min log level for database console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetDbLevel() slog.Level {
	return logging.LevelFromString(l.DbLevel)
}

func (l AppConfigLogging) GetDbAttrsFormat() logging.LogAttrFormat {
	if l.DbAttrsFormat != nil && strings.EqualFold(*l.DbAttrsFormat, "text") {
		return logging.LogAttrFormatText
	}
	return logging.LogAttrFormatJSON
}

func (l AppConfigLogging) GetDbMaxEntries() int {
	if l.DbMaxEntries == nil {
		return 10000
	}
	return *l.DbMaxEntries
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

type AppConfig struct {
	Region     AppConfigRegion
	Production AppConfigProduction
	Capacity   AppConfigCapacity
	Weather    AppConfigWeather
	Features   AppConfigFeatures
	Retry      AppConfigRetry
	Database   AppConfigDatabase
	Mqtt       AppConfigMqtt
	Schedule   AppConfigSchedule
	Logging    AppConfigLogging
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return v
}

// Load reads the config file, a .env file in the working directory if there is one, and
// the environment, then validates the result.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("unable to read .env file: %w", err)
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var c AppConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}
	if err := Validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

var validate = validator.New()

// Validate checks every field and reports all violations at once.
func Validate(c *AppConfig) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return etlerr.Configuration("validate config", "%v", err)
	}
	problems := make([]string, len(verrs))
	for i, fe := range verrs {
		problems[i] = fmt.Sprintf("%s (%s)", strings.TrimPrefix(fe.Namespace(), "AppConfig."), fe.Tag())
	}
	return etlerr.Configuration("validate config", "invalid fields: %s", strings.Join(problems, ", "))
}

// Watch reloads the config file on every change and hands over the new config once it is
// valid. An invalid file is logged and ignored.
func Watch(path string, logger *slog.Logger, apply func(*AppConfig)) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		logger.Error("can't watch config file", slog.Any("error", err))
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		c, err := decode(v)
		if err != nil {
			logger.Error("ignoring invalid config change", slog.String("file", e.Name), slog.Any("error", err))
			return
		}
		logger.Info("config reloaded", slog.String("file", e.Name))
		apply(c)
	})
	v.WatchConfig()
}

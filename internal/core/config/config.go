package config

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/spf13/viper"
)

// AppConfig holds the configuration for the application.
// Tags used:
// - mapstructure: used by viper to unmarshal
// - default: default value to set if missing
// - required: if "true", error if missing
type AppConfig struct {
	// Environment specifies the runtime environment (e.g., development, production).
	Environment string `mapstructure:"APP_ENV" default:"development"`
	// LogLevel defines the logging verbosity (e.g., debug, info, error).
	LogLevel string `mapstructure:"LOG_LEVEL" default:"info"`
	// ServerPort is the port where the server will listen.
	ServerPort int `mapstructure:"SERVER_PORT" default:"8080"`

	// Database holds the MySQL connection configuration.
	Database DatabaseConfig `mapstructure:",squash"`

	// Redis holds the tracking-point store configuration.
	Redis RedisConfig `mapstructure:",squash"`

	// Detection holds the thresholds used by the alert and exception detectors.
	Detection DetectionConfig `mapstructure:",squash"`
}

// DatabaseConfig holds the MySQL connection details.
type DatabaseConfig struct {
	// DSN is the MySQL data source name, e.g. user:pass@tcp(host:3306)/console?parseTime=true
	DSN string `mapstructure:"MYSQL_DSN" required:"true"`
}

// RedisConfig holds the Redis connection details for the tracking-point store.
type RedisConfig struct {
	// URL is the Redis connection URL, e.g. redis://localhost:6379/0
	URL string `mapstructure:"REDIS_URL" required:"true"`
}

// DetectionConfig holds tunable thresholds for the detection engine.
type DetectionConfig struct {
	// RouteDeviationMeters is the distance from the planned route that raises a deviation alert.
	RouteDeviationMeters float64 `mapstructure:"ROUTE_DEVIATION_METERS" default:"500"`
	// StoppageMinutes is the stationary duration that raises a stoppage alert.
	StoppageMinutes int `mapstructure:"STOPPAGE_MINUTES" default:"30"`
	// ExpectedPingIntervalSeconds is the expected gap between tracking pings.
	ExpectedPingIntervalSeconds int `mapstructure:"EXPECTED_PING_INTERVAL_SECONDS" default:"300"`
	// MissedPingIntervals is how many expected intervals may elapse before tracking is considered lost.
	MissedPingIntervals float64 `mapstructure:"MISSED_PING_INTERVALS" default:"2"`
	// DelayPercent is the ETA slippage percentage that raises a delay warning.
	DelayPercent float64 `mapstructure:"DELAY_PERCENT" default:"15"`
	// ClusterProximityMeters is the proximity threshold for tracking-point clustering.
	ClusterProximityMeters float64 `mapstructure:"CLUSTER_PROXIMITY_METERS" default:"100"`
	// VehicleArrivalGraceMinutes is how late a vehicle may be at pickup before an exception is logged.
	VehicleArrivalGraceMinutes int `mapstructure:"VEHICLE_ARRIVAL_GRACE_MINUTES" default:"60"`
}

// Load loads configuration from .env files and environment variables.
func Load(path string) (*AppConfig, error) {
	v := viper.New()

	v.AutomaticEnv()

	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config AppConfig

	if err := processTags(v, &config); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := validateRequired(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// processTags iterates over the struct fields and sets default values in Viper.
func processTags(v *viper.Viper, config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := processTags(v, val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		key := field.Tag.Get("mapstructure")
		defaultValue := field.Tag.Get("default")

		if key != "" {
			v.BindEnv(key)
		}

		if key != "" && defaultValue != "" {
			v.SetDefault(key, defaultValue)
		}
	}
	return nil
}

// validateRequired checks if fields marked as required have non-zero values.
func validateRequired(config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := validateRequired(val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		required := field.Tag.Get("required")
		if required == "true" {
			value := val.Field(i)
			if isZero(value) {
				key := field.Tag.Get("mapstructure")
				return fmt.Errorf("missing required configuration: %s", key)
			}
		}
	}
	return nil
}

// isZero checks if a reflect.Value is the zero value for its type.
func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}

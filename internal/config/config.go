// Package config loads the service configuration from, in increasing order
// of priority: built-in defaults, a JSON file, environment variables (and a
// .env file), and command line flags.
package config

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/patric-chuzhbe/journalapp/internal/password"
)

type Config struct {
	RunAddr             string        `env:"SERVER_ADDRESS" json:"server_address" validate:"hostname_port"`
	GRPCRunAddr         string        `env:"GRPC_SERVER_ADDRESS" json:"grpc_server_address" validate:"omitempty,hostname_port"`
	LogLevel            string        `env:"LOG_LEVEL" json:"log_level" validate:"loglevel"`
	DatabaseDSN         string        `env:"DATABASE_DSN" json:"database_dsn"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT" json:"db_connection_timeout" validate:"gt=0"`
	MigrationsDir       string        `env:"MIGRATIONS_DIR" json:"migrations_dir"`
	MongoURI            string        `env:"MONGO_URI" json:"mongo_uri" validate:"omitempty,uri"`
	MongoDatabase       string        `env:"MONGO_DATABASE" json:"mongo_database"`
	RedisAddress        string        `env:"REDIS_ADDRESS" json:"redis_address" validate:"omitempty,hostname_port"`
	RedisPassword       string        `env:"REDIS_PASSWORD" json:"redis_password"`
	SQLitePath          string        `env:"SQLITE_PATH" json:"sqlite_path" validate:"filepath"`
	DBFileName          string        `env:"FILE_STORAGE_PATH" json:"file_storage_path" validate:"filepath"`
	AuthCookieName      string        `env:"AUTH_COOKIE_NAME" json:"auth_cookie_name" validate:"required"`
	AuthSigningKey      string        `env:"AUTH_SIGNING_SECRET_KEY" json:"auth_signing_secret_key" validate:"required,base64url"`
	AuthTokenTTL        time.Duration `env:"AUTH_TOKEN_TTL" json:"auth_token_ttl" validate:"gte=0"`
	PasswordHasher      string        `env:"PASSWORD_HASHER" json:"password_hasher" validate:"hasher"`
	TrustedSubnet       string        `env:"TRUSTED_SUBNET" json:"trusted_subnet" validate:"omitempty,cidr"`
	CORSAllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," json:"cors_allowed_origins"`
}

// jsonConfig mirrors Config for the JSON file, where durations are written
// as strings such as "10s".
type jsonConfig struct {
	Config
	DBConnectionTimeout string `json:"db_connection_timeout"`
	AuthTokenTTL        string `json:"auth_token_ttl"`
}

// defaultConfig has no AuthSigningKey: the key must come from the
// environment or the JSON file, otherwise validation fails.
var defaultConfig = Config{
	RunAddr:             ":8080",
	GRPCRunAddr:         ":3200",
	LogLevel:            "info",
	DBConnectionTimeout: 10 * time.Second,
	MigrationsDir:       "migrations",
	MongoDatabase:       "journal",
	AuthCookieName:      "auth",
	AuthTokenTTL:        24 * time.Hour,
	PasswordHasher:      password.KindBcrypt,
	CORSAllowedOrigins:  []string{"*"},
}

type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// SigningKey decodes AuthSigningKey.
func (c *Config) SigningKey() ([]byte, error) {
	return base64.URLEncoding.DecodeString(c.AuthSigningKey)
}

func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	err := godotenv.Load()
	if err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := &Config{}

	var configPath string
	var flagValues Config
	var flagTimeout, flagTTL string
	var flagOrigins string
	var flagSet *flag.FlagSet
	if !options.disableFlagsParsing {
		flagSet = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
		flagSet.StringVar(&configPath, "c", "", "path to the JSON config file")
		flagSet.StringVar(&flagValues.RunAddr, "a", "", "address and port to run the HTTP server")
		flagSet.StringVar(&flagValues.GRPCRunAddr, "g", "", "address and port to run the gRPC server")
		flagSet.StringVar(&flagValues.LogLevel, "l", "", "logger level")
		flagSet.StringVar(&flagValues.DatabaseDSN, "d", "", "PostgreSQL connection string")
		flagSet.StringVar(&flagTimeout, "dt", "", "database connection timeout, e.g. 10s")
		flagSet.StringVar(&flagValues.MigrationsDir, "m", "", "directory with goose migrations")
		flagSet.StringVar(&flagValues.MongoURI, "mongo", "", "MongoDB connection URI")
		flagSet.StringVar(&flagValues.MongoDatabase, "mongo-db", "", "MongoDB database name")
		flagSet.StringVar(&flagValues.RedisAddress, "redis", "", "Redis address")
		flagSet.StringVar(&flagValues.SQLitePath, "sqlite", "", "SQLite database file")
		flagSet.StringVar(&flagValues.DBFileName, "f", "", "JSON file name with database")
		flagSet.StringVar(&flagValues.AuthCookieName, "cookie", "", "name of the auth cookie")
		flagSet.StringVar(&flagTTL, "ttl", "", "lifetime of issued tokens, e.g. 24h")
		flagSet.StringVar(&flagValues.PasswordHasher, "hasher", "", "password hasher: bcrypt or argon2id")
		flagSet.StringVar(&flagValues.TrustedSubnet, "t", "", "trusted subnet in CIDR notation")
		flagSet.StringVar(&flagOrigins, "cors", "", "comma separated list of allowed CORS origins")
		if err := flagSet.Parse(os.Args[1:]); err != nil {
			return nil, err
		}
	}

	if configPath == "" {
		configPath = os.Getenv("CONFIG")
	}
	if configPath != "" {
		if err := values.loadJSON(configPath); err != nil {
			return nil, err
		}
	}

	var valuesFromEnv Config
	if err := env.Parse(&valuesFromEnv); err != nil {
		return nil, err
	}
	overrideNonEmpty(values, &valuesFromEnv)

	if flagSet != nil {
		if flagTimeout != "" {
			if flagValues.DBConnectionTimeout, err = time.ParseDuration(flagTimeout); err != nil {
				return nil, fmt.Errorf("parse -dt flag: %w", err)
			}
		}
		if flagTTL != "" {
			if flagValues.AuthTokenTTL, err = time.ParseDuration(flagTTL); err != nil {
				return nil, fmt.Errorf("parse -ttl flag: %w", err)
			}
		}
		if flagOrigins != "" {
			flagValues.CORSAllowedOrigins = strings.Split(flagOrigins, ",")
		}
		overrideNonEmpty(values, &flagValues)
	}

	applyDefaults(values, defaultConfig)

	if err := validate(values); err != nil {
		return nil, err
	}

	return values, nil
}

func (c *Config) loadJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fromFile jsonConfig
	if err := json.Unmarshal(data, &fromFile); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if fromFile.DBConnectionTimeout != "" {
		if fromFile.Config.DBConnectionTimeout, err = time.ParseDuration(fromFile.DBConnectionTimeout); err != nil {
			return fmt.Errorf("parse db_connection_timeout: %w", err)
		}
	}
	if fromFile.AuthTokenTTL != "" {
		if fromFile.Config.AuthTokenTTL, err = time.ParseDuration(fromFile.AuthTokenTTL); err != nil {
			return fmt.Errorf("parse auth_token_ttl: %w", err)
		}
	}

	overrideNonEmpty(c, &fromFile.Config)

	return nil
}

func overrideNonEmpty(dst, src *Config) {
	setString(&dst.RunAddr, src.RunAddr)
	setString(&dst.GRPCRunAddr, src.GRPCRunAddr)
	setString(&dst.LogLevel, src.LogLevel)
	setString(&dst.DatabaseDSN, src.DatabaseDSN)
	setString(&dst.MigrationsDir, src.MigrationsDir)
	setString(&dst.MongoURI, src.MongoURI)
	setString(&dst.MongoDatabase, src.MongoDatabase)
	setString(&dst.RedisAddress, src.RedisAddress)
	setString(&dst.RedisPassword, src.RedisPassword)
	setString(&dst.SQLitePath, src.SQLitePath)
	setString(&dst.DBFileName, src.DBFileName)
	setString(&dst.AuthCookieName, src.AuthCookieName)
	setString(&dst.AuthSigningKey, src.AuthSigningKey)
	setString(&dst.PasswordHasher, src.PasswordHasher)
	setString(&dst.TrustedSubnet, src.TrustedSubnet)

	if src.DBConnectionTimeout != 0 {
		dst.DBConnectionTimeout = src.DBConnectionTimeout
	}
	if src.AuthTokenTTL != 0 {
		dst.AuthTokenTTL = src.AuthTokenTTL
	}
	if len(src.CORSAllowedOrigins) > 0 {
		dst.CORSAllowedOrigins = src.CORSAllowedOrigins
	}
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// applyDefaults fills every unset field of values from defaults.
func applyDefaults(values *Config, defaults Config) {
	setDefault := func(dst *string, value string) {
		if *dst == "" {
			*dst = value
		}
	}
	setDefault(&values.RunAddr, defaults.RunAddr)
	setDefault(&values.GRPCRunAddr, defaults.GRPCRunAddr)
	setDefault(&values.LogLevel, defaults.LogLevel)
	setDefault(&values.DatabaseDSN, defaults.DatabaseDSN)
	setDefault(&values.MigrationsDir, defaults.MigrationsDir)
	setDefault(&values.MongoURI, defaults.MongoURI)
	setDefault(&values.MongoDatabase, defaults.MongoDatabase)
	setDefault(&values.RedisAddress, defaults.RedisAddress)
	setDefault(&values.SQLitePath, defaults.SQLitePath)
	setDefault(&values.DBFileName, defaults.DBFileName)
	setDefault(&values.AuthCookieName, defaults.AuthCookieName)
	setDefault(&values.PasswordHasher, defaults.PasswordHasher)
	setDefault(&values.TrustedSubnet, defaults.TrustedSubnet)

	if values.DBConnectionTimeout == 0 {
		values.DBConnectionTimeout = defaults.DBConnectionTimeout
	}
	if values.AuthTokenTTL == 0 {
		values.AuthTokenTTL = defaults.AuthTokenTTL
	}
	if len(values.CORSAllowedOrigins) == 0 {
		values.CORSAllowedOrigins = append([]string(nil), defaults.CORSAllowedOrigins...)
	}
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	if path == "" {
		return true
	}
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	return allowedLogLevels[value]
}

func validateHasher(fieldLevel validator.FieldLevel) bool {
	return password.IsKnownKind(fieldLevel.Field().String())
}

func validate(values *Config) error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("hasher", validateHasher)
	if err != nil {
		return err
	}

	return validate.Struct(values)
}

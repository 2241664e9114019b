package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/sketchin/redforecast/internal/db"
)

// ServerConfig holds the HTTP and MCP surface settings.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	MCPEnabled     bool
}

// ForecastConfig locates the forecast workbook.
type ForecastConfig struct {
	WorkbookPath string
	SheetName    string
}

// Config aggregates every runtime setting of the service.
type Config struct {
	Database       db.Config
	Server         ServerConfig
	Forecast       ForecastConfig
	MigrationsPath string
}

// DefaultConfig mirrors a local development setup.
func DefaultConfig() Config {
	return Config{
		Database: db.DefaultConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Forecast: ForecastConfig{
			WorkbookPath: "./forecast.xlsx",
			SheetName:    "All opportunities",
		},
		MigrationsPath: "./migrations",
	}
}

// Load reads config.yaml from the given path, with environment overrides
// prefixed RF (RF_DATABASE_HOST, RF_SERVER_ADDR, ...). Missing files fall
// back to defaults plus env.
func Load(configPath string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("RF")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")
	v.BindEnv("server.mcp")
	v.BindEnv("forecast.workbook")
	v.BindEnv("forecast.sheet")
	v.BindEnv("migrations.path")

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("server.mcp") {
		cfg.Server.MCPEnabled = v.GetBool("server.mcp")
	}
	if v.IsSet("forecast.workbook") {
		cfg.Forecast.WorkbookPath = v.GetString("forecast.workbook")
	}
	if v.IsSet("forecast.sheet") {
		cfg.Forecast.SheetName = v.GetString("forecast.sheet")
	}
	if v.IsSet("migrations.path") {
		cfg.MigrationsPath = v.GetString("migrations.path")
	}

	return cfg, nil
}

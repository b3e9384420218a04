package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port        string `mapstructure:"port"`
		MetricsPort string `mapstructure:"metrics_port"`
		JWTSecret   string `mapstructure:"jwt_secret"`
		LogLevel    string `mapstructure:"log_level"`
	} `mapstructure:"server"`
	Storage struct {
		Provider   string `mapstructure:"provider"` // "sqlite" or "file"
		SqlitePath string `mapstructure:"sqlite_path"`
		FileRoot   string `mapstructure:"file_root"`
	} `mapstructure:"storage"`
	Save struct {
		DebounceMs     int  `mapstructure:"debounce_ms"`
		RetryAttempts  int  `mapstructure:"retry_attempts"`
		RetryBackoffMs int  `mapstructure:"retry_backoff_ms"`
		BackupKeep     int  `mapstructure:"backup_keep"`
		PendingCap     int  `mapstructure:"pending_cap"`
		RemotePush     bool `mapstructure:"remote_push"`
	} `mapstructure:"save"`
	Clock struct {
		Mode   string  `mapstructure:"mode"`  // "manual" or "auto"
		Speed  float64 `mapstructure:"speed"` // simulated seconds per real second (auto mode)
		TickMs int     `mapstructure:"tick_ms"`
	} `mapstructure:"clock"`
	Sim struct {
		Seed        int64   `mapstructure:"seed"` // 0 = time-seeded
		EventChance float64 `mapstructure:"event_chance"`
	} `mapstructure:"sim"`
	Remote struct {
		Enabled  bool   `mapstructure:"enabled"`
		KeyID    string `mapstructure:"key_id"`
		AppKey   string `mapstructure:"app_key"`
		Endpoint string `mapstructure:"endpoint"`
		Region   string `mapstructure:"region"`
		Bucket   string `mapstructure:"bucket"`
		UserID   string `mapstructure:"user_id"` // anonymous cloud identity
	} `mapstructure:"remote"`
}

func Load() *Config {
	viper.SetEnvPrefix("BACKSTAGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Register keys
	viper.BindEnv("server.port")
	viper.BindEnv("server.metrics_port")
	viper.BindEnv("server.jwt_secret")
	viper.BindEnv("server.log_level")

	viper.BindEnv("storage.provider")
	viper.BindEnv("storage.sqlite_path")
	viper.BindEnv("storage.file_root")

	viper.BindEnv("save.debounce_ms")
	viper.BindEnv("save.retry_attempts")
	viper.BindEnv("save.retry_backoff_ms")
	viper.BindEnv("save.backup_keep")
	viper.BindEnv("save.pending_cap")
	viper.BindEnv("save.remote_push")

	viper.BindEnv("clock.mode")
	viper.BindEnv("clock.speed")
	viper.BindEnv("clock.tick_ms")

	viper.BindEnv("sim.seed")
	viper.BindEnv("sim.event_chance")

	viper.BindEnv("remote.enabled")
	viper.BindEnv("remote.key_id")
	viper.BindEnv("remote.app_key")
	viper.BindEnv("remote.endpoint")
	viper.BindEnv("remote.region")
	viper.BindEnv("remote.bucket")
	viper.BindEnv("remote.user_id")

	// Defaults
	viper.SetDefault("server.port", ":8080")
	viper.SetDefault("server.metrics_port", ":9091")
	viper.SetDefault("server.log_level", "info")

	viper.SetDefault("storage.provider", "sqlite")
	viper.SetDefault("storage.sqlite_path", "./backstage.db")
	viper.SetDefault("storage.file_root", "./savedata")

	// Save tuning. The debounce window is deliberately short: it only needs to
	// swallow bursts (creating a song fires 3-4 events back to back), not to
	// batch across real gameplay pauses.
	viper.SetDefault("save.debounce_ms", 350)
	viper.SetDefault("save.retry_attempts", 3)
	viper.SetDefault("save.retry_backoff_ms", 100)
	viper.SetDefault("save.backup_keep", 5)
	viper.SetDefault("save.pending_cap", 50)
	viper.SetDefault("save.remote_push", false)

	viper.SetDefault("clock.mode", "manual")
	viper.SetDefault("clock.speed", 86400.0) // 1 real second = 1 simulated day
	viper.SetDefault("clock.tick_ms", 250)

	viper.SetDefault("sim.seed", 0)
	viper.SetDefault("sim.event_chance", 0.08)

	viper.SetDefault("remote.enabled", false)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Warning: Config error: %s", err)
		} else {
			log.Println("Info: config.yaml not found, using Environment Variables only.")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}

	if cfg.Remote.Enabled && cfg.Remote.KeyID == "" {
		log.Fatal("Critical: remote sync enabled but KeyID is missing (BACKSTAGE_REMOTE_KEY_ID)")
	}

	return &cfg
}

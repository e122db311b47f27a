package utils

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Escrow    EscrowConfig
	Scheduler SchedulerConfig
	Gateway   GatewayConfig
	AMQP      AMQPConfig
}

type AppConfig struct {
	Name        string
	Port        string
	Debug       bool
	LogPath     string
	AdminAPIKey string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

// EscrowConfig holds the timing and retry policy for fund releases.
type EscrowConfig struct {
	RoomFeeReleaseOffset    time.Duration
	DepositReleaseOffset    time.Duration
	CheckInGracePeriod      time.Duration
	DisputeResponseWindow   time.Duration
	DisputeEscalationWindow time.Duration
	MaxReleaseAttempts      int
}

type SchedulerConfig struct {
	SweepInterval time.Duration
	LockTTL       time.Duration
	WorkerID      string
	BatchSize     int
}

type GatewayConfig struct {
	DefaultProvider      string
	PaystackBaseURL      string
	PaystackSecretKey    string
	FlutterwaveBaseURL   string
	FlutterwaveSecretKey string
}

type AMQPConfig struct {
	URL      string
	Exchange string
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("ROOM_FEE_RELEASE_OFFSET", "24h")
	viper.SetDefault("DEPOSIT_RELEASE_OFFSET", "48h")
	viper.SetDefault("CHECK_IN_GRACE_PERIOD", "6h")
	viper.SetDefault("DISPUTE_RESPONSE_WINDOW", "72h")
	viper.SetDefault("DISPUTE_ESCALATION_WINDOW", "168h")
	viper.SetDefault("MAX_RELEASE_ATTEMPTS", 3)
	viper.SetDefault("SWEEP_INTERVAL", "1m")
	viper.SetDefault("JOB_LOCK_TTL", "5m")
	viper.SetDefault("SWEEP_BATCH_SIZE", 100)
	viper.SetDefault("GATEWAY_DEFAULT_PROVIDER", "paystack")
	viper.SetDefault("PAYSTACK_BASE_URL", "https://api.paystack.co")
	viper.SetDefault("FLUTTERWAVE_BASE_URL", "https://api.flutterwave.com")
	viper.SetDefault("AMQP_EXCHANGE", "escrow.events")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:        viper.GetString("APP_NAME"),
			Port:        viper.GetString("PORT"),
			Debug:       viper.GetBool("DEBUG"),
			LogPath:     viper.GetString("LOG_PATH"),
			AdminAPIKey: viper.GetString("ADMIN_API_KEY"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
		},
		Escrow: EscrowConfig{
			RoomFeeReleaseOffset:    viper.GetDuration("ROOM_FEE_RELEASE_OFFSET"),
			DepositReleaseOffset:    viper.GetDuration("DEPOSIT_RELEASE_OFFSET"),
			CheckInGracePeriod:      viper.GetDuration("CHECK_IN_GRACE_PERIOD"),
			DisputeResponseWindow:   viper.GetDuration("DISPUTE_RESPONSE_WINDOW"),
			DisputeEscalationWindow: viper.GetDuration("DISPUTE_ESCALATION_WINDOW"),
			MaxReleaseAttempts:      viper.GetInt("MAX_RELEASE_ATTEMPTS"),
		},
		Scheduler: SchedulerConfig{
			SweepInterval: viper.GetDuration("SWEEP_INTERVAL"),
			LockTTL:       viper.GetDuration("JOB_LOCK_TTL"),
			WorkerID:      viper.GetString("WORKER_ID"),
			BatchSize:     viper.GetInt("SWEEP_BATCH_SIZE"),
		},
		Gateway: GatewayConfig{
			DefaultProvider:      viper.GetString("GATEWAY_DEFAULT_PROVIDER"),
			PaystackBaseURL:      viper.GetString("PAYSTACK_BASE_URL"),
			PaystackSecretKey:    viper.GetString("PAYSTACK_SECRET_KEY"),
			FlutterwaveBaseURL:   viper.GetString("FLUTTERWAVE_BASE_URL"),
			FlutterwaveSecretKey: viper.GetString("FLUTTERWAVE_SECRET_KEY"),
		},
		AMQP: AMQPConfig{
			URL:      viper.GetString("AMQP_URL"),
			Exchange: viper.GetString("AMQP_EXCHANGE"),
		},
	}

	return config, nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendDDB      = "ddb"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	Gateway     GatewayConfig
	Admin       AdminConfig
	MQTT        MQTTConfig
	Proxy       ProxyConfig
	Credentials CredentialsConfig
	Records     RecordsConfig
	Redis       RedisConfig
	DDB         DDBConfig
	SNSEndpoint string
	Log         LogConfig
}

type GatewayConfig struct {
	Addr            string
	UpdateAddr      string
	UpstreamTimeout time.Duration
	RegistryFile    string
	SalesSNSArn     string
}

type AdminConfig struct {
	Host string
	Port int
}

type MQTTConfig struct {
	Broker   string
	ClientID string
	NodeID   string
}

type ProxyConfig struct {
	Addr    string
	Timeout time.Duration
}

type CredentialsConfig struct {
	Backend    string
	ClientsDir string
}

type RecordsConfig struct {
	Backend     string
	DBPath      string
	PostgresDSN string
}

type RedisConfig struct {
	Host string
	Port string
	User string
	Pass string
	TLS  bool
	DB   int
}

type DDBConfig struct {
	Endpoint string
	Table    string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads the optional env file (ENV_FILE, default .env) and then the process
// environment.
func Load() (Config, error) {
	loadEnvFile()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("wolff_gateway_addr", "127.0.0.1:5555")
	v.SetDefault("wolff_update_addr", "127.0.0.1:5556")
	v.SetDefault("wolff_admin_host", "127.0.0.1")
	v.SetDefault("wolff_admin_port", 9090)
	v.SetDefault("wolff_mqtt_broker", "tcp://127.0.0.1:1883")
	v.SetDefault("wolff_mqtt_client_id", "")
	v.SetDefault("wolff_node_id", defaultNodeID())
	v.SetDefault("wolff_proxy_addr", "127.0.0.1:5557")
	v.SetDefault("wolff_proxy_timeout", "30s")
	v.SetDefault("wolff_upstream_timeout", "20s")
	v.SetDefault("wolff_credential_backend", BackendFile)
	v.SetDefault("wolff_clients_dir", "clients")
	v.SetDefault("wolff_record_backend", BackendSQLite)
	v.SetDefault("wolff_db_path", "data/wolff")
	v.SetDefault("wolff_postgres_dsn", "")
	v.SetDefault("wolff_registry_file", "")
	v.SetDefault("wolff_sales_sns_arn", "")
	v.SetDefault("wolff_log_level", "info")
	v.SetDefault("wolff_log_format", "text")
	v.SetDefault("redis_host", "localhost")
	v.SetDefault("redis_port", "6379")
	v.SetDefault("redis_user", "")
	v.SetDefault("redis_pass", "")
	v.SetDefault("redis_ssl", false)
	v.SetDefault("redis_db_num", 0)
	v.SetDefault("ddb_endpoint", "")
	v.SetDefault("ddb_table", "wolff_clients")
	v.SetDefault("sns_endpoint", "")

	port := v.GetInt("wolff_admin_port")
	if port < 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid WOLFF_ADMIN_PORT: %d", port)
	}
	proxyTimeout, err := positiveDuration(v, "wolff_proxy_timeout")
	if err != nil {
		return Config{}, err
	}
	upstreamTimeout, err := positiveDuration(v, "wolff_upstream_timeout")
	if err != nil {
		return Config{}, err
	}

	credBackend := strings.ToLower(strings.TrimSpace(v.GetString("wolff_credential_backend")))
	switch credBackend {
	case BackendFile, BackendRedis, BackendDDB:
	default:
		return Config{}, fmt.Errorf("invalid WOLFF_CREDENTIAL_BACKEND: %q", credBackend)
	}
	recordBackend := strings.ToLower(strings.TrimSpace(v.GetString("wolff_record_backend")))
	switch recordBackend {
	case BackendSQLite, BackendPostgres:
	default:
		return Config{}, fmt.Errorf("invalid WOLFF_RECORD_BACKEND: %q", recordBackend)
	}
	if recordBackend == BackendPostgres && v.GetString("wolff_postgres_dsn") == "" {
		return Config{}, fmt.Errorf("WOLFF_POSTGRES_DSN is required for the postgres record backend")
	}

	return Config{
		Gateway: GatewayConfig{
			Addr:            v.GetString("wolff_gateway_addr"),
			UpdateAddr:      v.GetString("wolff_update_addr"),
			UpstreamTimeout: upstreamTimeout,
			RegistryFile:    v.GetString("wolff_registry_file"),
			SalesSNSArn:     v.GetString("wolff_sales_sns_arn"),
		},
		Admin: AdminConfig{Host: v.GetString("wolff_admin_host"), Port: port},
		MQTT: MQTTConfig{
			Broker:   v.GetString("wolff_mqtt_broker"),
			ClientID: v.GetString("wolff_mqtt_client_id"),
			NodeID:   v.GetString("wolff_node_id"),
		},
		Proxy: ProxyConfig{
			Addr:    v.GetString("wolff_proxy_addr"),
			Timeout: proxyTimeout,
		},
		Credentials: CredentialsConfig{
			Backend:    credBackend,
			ClientsDir: v.GetString("wolff_clients_dir"),
		},
		Records: RecordsConfig{
			Backend:     recordBackend,
			DBPath:      v.GetString("wolff_db_path"),
			PostgresDSN: v.GetString("wolff_postgres_dsn"),
		},
		Redis: RedisConfig{
			Host: v.GetString("redis_host"),
			Port: v.GetString("redis_port"),
			User: v.GetString("redis_user"),
			Pass: v.GetString("redis_pass"),
			TLS:  v.GetBool("redis_ssl"),
			DB:   v.GetInt("redis_db_num"),
		},
		DDB: DDBConfig{
			Endpoint: v.GetString("ddb_endpoint"),
			Table:    v.GetString("ddb_table"),
		},
		SNSEndpoint: v.GetString("sns_endpoint"),
		Log: LogConfig{
			Level:  v.GetString("wolff_log_level"),
			Format: v.GetString("wolff_log_format"),
		},
	}, nil
}

func loadEnvFile() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debugf("env file %s not found", envFile)
			return
		}
		log.WithError(err).Warnf("failed to load env file %s", envFile)
	}
}

func positiveDuration(v *viper.Viper, key string) (time.Duration, error) {
	d := v.GetDuration(key)
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", strings.ToUpper(key), v.GetString(key))
	}
	return d, nil
}

func defaultNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "node"
	}
	return host
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (s *ConfigTestSuite) SetupTest() {
	s.T().Setenv("ENV_FILE", filepath.Join(s.T().TempDir(), "missing.env"))
}

func (s *ConfigTestSuite) TestDefaults() {
	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal("127.0.0.1:5555", cfg.Gateway.Addr)
	s.Equal("127.0.0.1:5556", cfg.Gateway.UpdateAddr)
	s.Equal(20*time.Second, cfg.Gateway.UpstreamTimeout)
	s.Equal("127.0.0.1", cfg.Admin.Host)
	s.Equal(9090, cfg.Admin.Port)
	s.Equal(30*time.Second, cfg.Proxy.Timeout)
	s.Equal(BackendFile, cfg.Credentials.Backend)
	s.Equal("clients", cfg.Credentials.ClientsDir)
	s.Equal(BackendSQLite, cfg.Records.Backend)
	s.Equal("data/wolff", cfg.Records.DBPath)
	s.Equal("tcp://127.0.0.1:1883", cfg.MQTT.Broker)
	s.NotEmpty(cfg.MQTT.NodeID)
}

func (s *ConfigTestSuite) TestEnvironmentOverrides() {
	s.T().Setenv("WOLFF_GATEWAY_ADDR", "0.0.0.0:6000")
	s.T().Setenv("WOLFF_PROXY_TIMEOUT", "250ms")
	s.T().Setenv("WOLFF_CREDENTIAL_BACKEND", "Redis")
	s.T().Setenv("REDIS_DB_NUM", "3")
	s.T().Setenv("WOLFF_ADMIN_HOST", "0.0.0.0")

	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal("0.0.0.0:6000", cfg.Gateway.Addr)
	s.Equal(250*time.Millisecond, cfg.Proxy.Timeout)
	s.Equal(BackendRedis, cfg.Credentials.Backend)
	s.Equal(3, cfg.Redis.DB)
	s.Equal("0.0.0.0", cfg.Admin.Host)
}

func (s *ConfigTestSuite) TestEnvFile() {
	envFile := filepath.Join(s.T().TempDir(), "test.env")
	s.Require().NoError(os.WriteFile(envFile, []byte("WOLFF_NODE_ID=node-from-file\n"), 0o600))
	s.T().Setenv("ENV_FILE", envFile)
	// godotenv does not override variables that are already set; make sure ours is unset
	s.T().Setenv("WOLFF_NODE_ID", "")
	s.Require().NoError(os.Unsetenv("WOLFF_NODE_ID"))
	defer os.Unsetenv("WOLFF_NODE_ID")

	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal("node-from-file", cfg.MQTT.NodeID)
}

func (s *ConfigTestSuite) TestInvalidValues() {
	s.T().Setenv("WOLFF_RECORD_BACKEND", "mysql")
	_, err := Load()
	s.Error(err)

	s.T().Setenv("WOLFF_RECORD_BACKEND", "postgres")
	_, err = Load()
	s.ErrorContains(err, "WOLFF_POSTGRES_DSN")

	s.T().Setenv("WOLFF_RECORD_BACKEND", "sqlite")
	s.T().Setenv("WOLFF_PROXY_TIMEOUT", "0s")
	_, err = Load()
	s.ErrorContains(err, "WOLFF_PROXY_TIMEOUT")
}

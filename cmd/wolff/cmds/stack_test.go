package cmds

import (
	"context"
	"path/filepath"
	"time"
	"wolff/internal/config"

	"github.com/alicebob/miniredis/v2"
)

func (s *CmdsTestSuite) redisConfig(mr *miniredis.Miniredis) config.Config {
	return config.Config{
		Credentials: config.CredentialsConfig{Backend: config.BackendRedis},
		Redis:       config.RedisConfig{Host: mr.Host(), Port: mr.Port()},
		Records: config.RecordsConfig{
			Backend: config.BackendSQLite,
			DBPath:  filepath.Join(s.dir, "db", "wolff"),
		},
		Gateway: config.GatewayConfig{UpstreamTimeout: time.Second},
	}
}

func (s *CmdsTestSuite) TestStackCloseReleasesCredentialBackend() {
	mr := miniredis.RunT(s.T())
	st, err := openStack(context.Background(), s.redisConfig(mr))
	s.Require().NoError(err)
	s.Eventually(func() bool { return mr.CurrentConnectionCount() > 0 }, time.Second, 10*time.Millisecond)

	st.Close()
	s.Eventually(func() bool { return mr.CurrentConnectionCount() == 0 }, time.Second, 10*time.Millisecond)
}

func (s *CmdsTestSuite) TestOpenStackReleasesCredentialBackendOnError() {
	mr := miniredis.RunT(s.T())
	cfg := s.redisConfig(mr)
	// the record store cannot be created below a regular file
	blocker := s.writeFile("blocker", "")
	cfg.Records.DBPath = filepath.Join(blocker, "db", "wolff")

	st, err := openStack(context.Background(), cfg)
	s.Error(err)
	s.Nil(st)
	s.Eventually(func() bool { return mr.CurrentConnectionCount() == 0 }, time.Second, 10*time.Millisecond)
}

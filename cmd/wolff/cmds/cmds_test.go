package cmds

import (
	"context"
	"errors"
	"time"
	"wolff/internal/config"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const onboarding = `service: etsy
oauth1:
  client_key: ck-123456
  client_secret: cs-abcdef
  resource_owner_key: rok-1
  resource_owner_secret: ros-abcdef
resources:
  shipping_template_id: ["111", "222"]
`

func (s *CmdsTestSuite) TestUsage() {
	code, out, _ := s.run()
	s.Equal(0, code)
	s.Contains(out, "usage: wolff")

	code, _, errOut := s.run("frobnicate")
	s.Equal(2, code)
	s.Contains(errOut, "unknown command: frobnicate")
}

func (s *CmdsTestSuite) TestInvalidConfig() {
	s.T().Setenv("WOLFF_RECORD_BACKEND", "mysql")
	code, _, errOut := s.run("gateway")
	s.Equal(1, code)
	s.Contains(errOut, "WOLFF_RECORD_BACKEND")
}

func (s *CmdsTestSuite) TestClientPutAndGet() {
	path := s.writeFile("client.yml", onboarding)

	code, out, _ := s.run("client", "put", path)
	s.Require().Equal(0, code)
	s.Equal("client_1\n", out)

	code, out, _ = s.run("client", "put", path)
	s.Require().Equal(0, code)
	s.Equal("client_2\n", out)

	code, out, _ = s.run("client", "get", "client_1", "etsy")
	s.Require().Equal(0, code)
	var got struct {
		ClientID  string              `json:"client_id"`
		OAuth1    map[string]string   `json:"oauth1"`
		Resources map[string][]string `json:"resources"`
	}
	s.Require().NoError(json.Unmarshal([]byte(out), &got))
	s.Equal("client_1", got.ClientID)
	s.Equal("ck-123456", got.OAuth1["client_key"])
	s.Equal("cs-a****", got.OAuth1["client_secret"])
	s.Equal("ros-****", got.OAuth1["resource_owner_secret"])
	s.Equal([]string{"111", "222"}, got.Resources["shipping_template_id"])

	code, out, _ = s.run("client", "get", "-reveal", "client_1", "etsy")
	s.Require().Equal(0, code)
	s.Contains(out, "cs-abcdef")
}

func (s *CmdsTestSuite) TestClientPutNeverOverwrites() {
	path := s.writeFile("client.yml", "client_id: client_7\n"+onboarding)
	code, out, _ := s.run("client", "put", path)
	s.Require().Equal(0, code)
	s.Equal("client_7\n", out)

	code, _, _ = s.run("client", "put", path)
	s.Equal(1, code)
}

func (s *CmdsTestSuite) TestClientErrors() {
	code, _, _ := s.run("client")
	s.Equal(2, code)

	code, _, _ = s.run("client", "put")
	s.Equal(2, code)

	code, _, _ = s.run("client", "get", "client_1")
	s.Equal(2, code)

	code, _, _ = s.run("client", "get", "client_9", "etsy")
	s.Equal(1, code)

	bad := s.writeFile("bad.yml", "service: etsy\noauth1:\n  client_key: only\n")
	code, _, _ = s.run("client", "put", bad)
	s.Equal(1, code)
}

func (s *CmdsTestSuite) TestSetupLogging() {
	s.NoError(SetupLogging(config.LogConfig{Level: "debug", Format: "json"}))
	s.Equal(log.DebugLevel, log.GetLevel())
	_, isJSON := log.StandardLogger().Formatter.(*log.JSONFormatter)
	s.True(isJSON)

	s.Error(SetupLogging(config.LogConfig{Level: "loud", Format: "text"}))
	s.Error(SetupLogging(config.LogConfig{Level: "info", Format: "xml"}))
}

func fakeService(name string) (service, chan struct{}, chan error) {
	stop := make(chan struct{})
	done := make(chan error, 1)
	return service{name: name, stop: stop, done: done}, stop, done
}

func (s *CmdsTestSuite) TestWaitServicesStopsAllOnFailure() {
	a, _, aDone := fakeService("a")
	b, bStop, bDone := fakeService("b")
	// b exits once stopped
	go func() {
		<-bStop
		bDone <- nil
	}()
	aDone <- errors.New("listener died")

	err := waitServices(context.Background(), []service{a, b})
	s.ErrorContains(err, "a: listener died")
}

func (s *CmdsTestSuite) TestWaitServicesStopsOnContext() {
	a, aStop, aDone := fakeService("a")
	go func() {
		<-aStop
		aDone <- nil
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.NoError(waitServices(ctx, []service{a}))
}

package api

import (
	"net"
	"net/http"
	"strconv"
	"time"
)

func (s *APITestSuite) TestAddrDefaultsToLoopback() {
	s.Equal("127.0.0.1:9090", Addr("", 9090))
	s.Equal("0.0.0.0:9090", Addr("0.0.0.0", 9090))
	s.Equal("[::1]:9090", Addr("::1", 9090))
}

func (s *APITestSuite) TestRunServerInterruptibleOnLoopback() {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	port := ln.Addr().(*net.TCPAddr).Port
	s.Require().NoError(ln.Close())

	stop, done := RunServerInterruptible("", port, &fakeReloader{})
	url := "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(port)) + "/health"
	s.Eventually(func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	close(stop)
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.Fail("admin server did not stop")
	}
}

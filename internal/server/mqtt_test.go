package server

import (
	"context"
	"sync"
	"time"
	"wolff/internal/broker"
	"wolff/internal/types"
)

func (s *ServerTestSuite) TestReplyTopic() {
	t, ok := ReplyTopic("posts/node-1/abc")
	s.True(ok)
	s.Equal("responses/node-1/abc", t)

	_, ok = ReplyTopic("posts/node-1")
	s.False(ok)
	_, ok = ReplyTopic("other/node-1/abc")
	s.False(ok)
	_, ok = ReplyTopic("posts/node-1/abc/extra")
	s.False(ok)

	s.Equal("posts/n/r", RequestTopic("n", "r"))
}

func (s *ServerTestSuite) startRelay(timeout time.Duration) (*broker.Memory, *NodeProxy) {
	b := broker.NewMemory()
	s.T().Cleanup(b.Close)
	gw := NewMQTTGateway(b, echoHandler{})
	s.Require().NoError(gw.Start(context.Background()))
	s.T().Cleanup(gw.Stop)
	p := NewNodeProxy(b, "node-1", timeout)
	s.Require().NoError(p.Start(context.Background()))
	return b, p
}

func (s *ServerTestSuite) TestProxyOutOfOrderReplies() {
	_, p := s.startRelay(2 * time.Second)

	var wg sync.WaitGroup
	results := make([][]byte, 2)
	errs := make([]error, 2)
	delays := []byte{20, 1} // the first request is answered last
	for i := range delays {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.Request(context.Background(), frameOf(0x01, delays[i]))
		}(i)
	}
	wg.Wait()
	for i := range delays {
		s.NoError(errs[i])
		s.Equal(reversed(frameOf(0x01, delays[i])), results[i])
	}
	s.Equal(0, p.Pending())
}

func (s *ServerTestSuite) TestProxyEmptyReplyFails() {
	_, p := s.startRelay(2 * time.Second)
	_, err := p.Request(context.Background(), frameOf(0xFF, 0))
	s.ErrorIs(err, types.ErrUpstream)
	s.Equal(0, p.Pending())
}

func (s *ServerTestSuite) TestProxyTimeout() {
	b := broker.NewMemory()
	defer b.Close()
	p := NewNodeProxy(b, "node-1", 50*time.Millisecond)
	s.Require().NoError(p.Start(context.Background()))

	start := time.Now()
	_, err := p.Request(context.Background(), frameOf(0x01, 0))
	s.ErrorIs(err, types.ErrTimeout)
	s.Less(time.Since(start), time.Second)
	s.Equal(0, p.Pending())

	// a late reply finds no waiter and is dropped
	s.NoError(b.Publish(context.Background(), "responses/node-1/late", []byte{1}))
}

func (s *ServerTestSuite) TestProxyCancelOnlyOwnWaiter() {
	_, p := s.startRelay(2 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	var slowErr, fastErr error
	var fast []byte
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, slowErr = p.Request(ctx, frameOf(0x01, 50))
	}()
	go func() {
		defer wg.Done()
		fast, fastErr = p.Request(context.Background(), frameOf(0x01, 10))
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	wg.Wait()

	s.ErrorIs(slowErr, context.Canceled)
	s.NoError(fastErr)
	s.Equal(reversed(frameOf(0x01, 10)), fast)
}

func (s *ServerTestSuite) TestProxyOverTCP() {
	_, p := s.startRelay(2 * time.Second)
	addr := s.start(p)

	conn := s.dial(addr)
	_, err := conn.Write(frameOf(0x01, 0))
	s.Require().NoError(err)
	got, err := readN(conn, 13)
	s.NoError(err)
	s.Equal(reversed(frameOf(0x01, 0)), got)

	_, err = conn.Write(frameOf(0xFF, 0))
	s.Require().NoError(err)
	got, err = readN(conn, 1)
	s.Error(err)
	s.Empty(got)
}

func (s *ServerTestSuite) TestProxyDropsWaiterWhenClientHangsUp() {
	_, p := s.startRelay(10 * time.Second)
	addr := s.start(p)

	conn := s.dial(addr)
	// the gateway takes 2s to answer this frame
	_, err := conn.Write(frameOf(0x01, 200))
	s.Require().NoError(err)
	s.Eventually(func() bool { return p.Pending() == 1 }, time.Second, 10*time.Millisecond)

	s.Require().NoError(conn.Close())
	s.Eventually(func() bool { return p.Pending() == 0 }, 500*time.Millisecond, 10*time.Millisecond)
}

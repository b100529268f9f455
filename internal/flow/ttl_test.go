package flow

import "time"

func (s *UnitTestSuite) TestTTLCache() {
	now := time.Unix(1_700_000_000, 0)
	SetTimNowFn(func() time.Time { return now })
	defer RestoreTimeNow()

	c := NewTTL[string, string]()
	c.Set("key1", "value1", 200*time.Millisecond)
	c.Set("key2", "value2", 200*time.Millisecond)
	v, ok := c.Get("key1")
	s.True(ok)
	s.Equal("value1", v)

	now = now.Add(250 * time.Millisecond)
	v, ok = c.Get("key1")
	s.False(ok)
	s.Equal("", v)
	// the expired read is evicted, the unread one waits for a purge
	s.Equal(1, c.Len())
	s.Equal(1, c.Purge())
	s.Equal(0, c.Len())
}

func (s *UnitTestSuite) TestTTLCacheSweepsOnSet() {
	now := time.Unix(1_700_000_000, 0)
	SetTimNowFn(func() time.Time { return now })
	defer RestoreTimeNow()

	c := NewTTL[int, int]()
	for i := 0; i < 100; i++ {
		c.Set(i, i, time.Second)
	}
	s.Equal(100, c.Len())

	// entries never read again are dropped by the next sweep
	now = now.Add(SweepInterval)
	c.Set(1000, 1000, time.Second)
	s.Equal(1, c.Len())

	// no sweep before the interval has passed
	now = now.Add(2 * time.Second)
	c.Set(1001, 1001, time.Second)
	s.Equal(2, c.Len())
}

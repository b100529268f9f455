package flow

import (
	"context"
	"time"
	"wolff/internal/types"
)

func (s *UnitTestSuite) TestResolverByShippingTemplate() {
	first := s.onboard("100", "101")
	second := s.onboard("200")
	s.Equal("client_1", first)
	s.Equal("client_2", second)

	c, err := s.resolver.FindClientBy(context.Background(), types.ServiceEtsy, "shipping_template_id", "101")
	s.NoError(err)
	s.Equal(first, c.ID)

	c, err = s.resolver.FindClientBy(context.Background(), types.ServiceEtsy, "shipping_template_id", "200")
	s.NoError(err)
	s.Equal(second, c.ID)

	_, err = s.resolver.FindClientBy(context.Background(), types.ServiceEtsy, "shipping_template_id", "300")
	s.ErrorIs(err, types.ErrClientNotFound)

	_, err = s.resolver.FindClientBy(context.Background(), types.ServiceEtsy, "shipping_template_id", "")
	s.ErrorIs(err, types.ErrMissingIdentifier)
}

func (s *UnitTestSuite) TestResolverByListing() {
	ctx := context.Background()
	client := s.onboard("100")
	_, err := s.records.RecordListing(ctx, "4242", client, 1)
	s.Require().NoError(err)

	c, err := s.resolver.FindClientBy(ctx, types.ServiceEtsy, "listing_id", "4242")
	s.NoError(err)
	s.Equal(client, c.ID)
	s.True(c.Owns(types.ServiceEtsy, "shipping_template_id", "100"))

	_, err = s.resolver.FindClientBy(ctx, types.ServiceEtsy, "listing_id", "4343")
	s.ErrorIs(err, types.ErrClientNotFound)
}

func (s *UnitTestSuite) TestResolverReloadDropsExpiredOwners() {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	SetTimNowFn(func() time.Time { return now })
	defer RestoreTimeNow()

	client := s.onboard("100")
	for _, listing := range []string{"1", "2", "3"} {
		_, err := s.records.RecordListing(ctx, listing, client, 1)
		s.Require().NoError(err)
		_, err = s.resolver.FindClientBy(ctx, types.ServiceEtsy, "listing_id", listing)
		s.Require().NoError(err)
	}
	s.Equal(3, s.resolver.owners.Len())

	now = now.Add(OwnerCacheTTL + time.Second)
	_, err := s.resolver.Reload(ctx)
	s.Require().NoError(err)
	s.Equal(0, s.resolver.owners.Len())
}

func (s *UnitTestSuite) TestResolverReloadSeesExternalWrites() {
	ctx := context.Background()
	s.Require().NoError(s.creds.Put(ctx, "client_5", types.ServiceEtsy, testBundle("5"), false))
	s.Require().NoError(s.creds.PutResource(ctx, "client_5", types.ServiceEtsy, "shipping_template_id", []string{"555"}))

	_, err := s.resolver.FindClientBy(ctx, types.ServiceEtsy, "shipping_template_id", "555")
	s.ErrorIs(err, types.ErrClientNotFound)

	n, err := s.resolver.Reload(ctx)
	s.NoError(err)
	s.Equal(1, n)

	c, err := s.resolver.FindClientBy(ctx, types.ServiceEtsy, "shipping_template_id", "555")
	s.NoError(err)
	s.Equal("client_5", c.ID)

	// ids continue after the highest existing one
	next := s.onboard("600")
	s.Equal("client_6", next)
	s.Len(s.resolver.Clients(), 2)
}

func (s *UnitTestSuite) TestRegisterClientRejects() {
	ctx := context.Background()
	_, err := s.resolver.RegisterClient(ctx, types.ClientConfig{Service: types.ServiceEtsy})
	s.ErrorIs(err, types.ErrInvalidParameter)

	cfg := types.ClientConfig{ClientID: "client_9", Service: types.ServiceEtsy, OAuth1: testBundle("9")}
	id, err := s.resolver.RegisterClient(ctx, cfg)
	s.NoError(err)
	s.Equal("client_9", id)

	_, err = s.resolver.RegisterClient(ctx, cfg)
	s.ErrorIs(err, types.ErrAlreadyExists)
}

func (s *UnitTestSuite) TestNextClientNumber() {
	s.Equal(1, nextClientNumber(nil))
	s.Equal(4, nextClientNumber([]string{"client_1", "client_3", "other", "client_x"}))
}

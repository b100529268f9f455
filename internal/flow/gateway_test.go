package flow

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"wolff/internal/codec"
	"wolff/internal/types"

	"github.com/goccy/go-json"
)

func mustHex(h string) []byte {
	b, err := hex.DecodeString(strings.ReplaceAll(h, " ", ""))
	if err != nil {
		panic(err)
	}
	return b
}

// seedRecord creates filler records so the next listing gets recordID.
func (s *UnitTestSuite) seedRecord(recordID int64, listingID, clientID string, quantity int) {
	ctx := context.Background()
	for i := int64(1); i < recordID; i++ {
		_, err := s.records.CreateListing(ctx, fmt.Sprintf("filler-%d", i))
		s.Require().NoError(err)
	}
	id, err := s.records.RecordListing(ctx, listingID, clientID, quantity)
	s.Require().NoError(err)
	s.Require().Equal(recordID, id)
}

func (s *UnitTestSuite) TestCreateListingFrame() {
	client := s.onboard("84634415230")
	s.upstream.respond = reply(http.StatusCreated, `{"count":1,"results":[{"listing_id":1001,"quantity":2}]}`)

	out, err := s.gateway.HandleFrame(context.Background(), mustHex("01 01 01 02 02 00 1B 91 13 B4 9A B0 7E"))
	s.Require().NoError(err)

	recordID, err := codec.DecodeRecordReply(out)
	s.NoError(err)
	s.Equal(uint32(1), recordID)

	calls := s.upstream.Calls()
	s.Require().Len(calls, 1)
	call := calls[0]
	s.Equal(http.MethodPost, call.Verb)
	s.Equal("https://openapi.etsy.com/v2/listings", call.URL)
	s.Equal("title_1", call.Params["title"])
	s.Equal("2", call.Params["quantity"])
	s.Equal("84634415230", call.Params["shipping_template_id"])
	s.Equal("1", call.Params["taxonomy_id"])
	s.Equal("made_to_order", call.Params["when_made"])
	s.Equal(testBundle("84634415230"), call.Credentials)

	owner, err := s.records.ClientForListing(context.Background(), "1001")
	s.NoError(err)
	s.Equal(client, owner)
	stock, err := s.records.GetStock(context.Background(), 1)
	s.NoError(err)
	s.Equal(2, stock)
}

func (s *UnitTestSuite) TestCreateListingUpstreamRejects() {
	s.onboard("84634415230")
	s.upstream.respond = reply(http.StatusBadRequest, `bad title`)

	_, err := s.gateway.HandleFrame(context.Background(), mustHex("01 01 01 02 02 00 1B 91 13 B4 9A B0 7E"))
	s.ErrorIs(err, types.ErrUpstream)
	var ue *types.UpstreamError
	s.Require().ErrorAs(err, &ue)
	s.Equal(http.StatusBadRequest, ue.Status)

	_, err = s.records.RecordIDForListing(context.Background(), "1001")
	s.ErrorIs(err, types.ErrNotFound)
}

func (s *UnitTestSuite) TestUnknownShippingTemplate() {
	s.onboard("1")
	_, err := s.gateway.HandleFrame(context.Background(), mustHex("01 01 01 02 02 00 1B 91 13 B4 9A B0 7E"))
	s.ErrorIs(err, types.ErrClientNotFound)
	s.Empty(s.upstream.Calls())
	s.Equal("client_not_found", FailureKind(err))
}

func (s *UnitTestSuite) TestMalformedFrames() {
	_, err := s.gateway.HandleFrame(context.Background(), []byte{0x01, 0x01})
	s.ErrorIs(err, types.ErrMalformedFrame)

	_, err = s.gateway.HandleFrame(context.Background(), mustHex("02 01 01 02 02 00 1B 91 13 B4 9A B0 7E"))
	s.ErrorIs(err, types.ErrMalformedFrame)

	// title code 0x09 is not in the table
	_, err = s.gateway.HandleFrame(context.Background(), mustHex("01 01 09 02 02 00 1B 91 13 B4 9A B0 7E"))
	s.ErrorIs(err, types.ErrUnknownEnumerationValue)
	s.Empty(s.upstream.Calls())
}

func (s *UnitTestSuite) TestStockCheckReportsSold() {
	client := s.onboard("84634415230")
	s.seedRecord(7, "5005", client, 10)
	s.upstream.respond = reply(http.StatusOK, `{"count":1,"results":[{"listing_id":5005,"quantity":6}]}`)

	out, err := s.gateway.HandleFrame(context.Background(), codec.EncodeStockRequest(7))
	s.Require().NoError(err)
	s.Equal(mustHex("01 02 00 00 00 04 00 00 00 00 00 00 00"), out)

	calls := s.upstream.Calls()
	s.Require().Len(calls, 1)
	s.Equal(http.MethodGet, calls[0].Verb)
	s.Equal("https://openapi.etsy.com/v2/listings/5005", calls[0].URL)
	s.NotContains(calls[0].Params, "listing_id")

	stock, err := s.records.GetStock(context.Background(), 7)
	s.NoError(err)
	s.Equal(6, stock)

	msgs := s.publisher.Messages()
	s.Require().Len(msgs, 1)
	s.Equal(salesArn, msgs[0].arn)
	var ev types.SaleEvent
	s.Require().NoError(json.Unmarshal(msgs[0].payload, &ev))
	s.Equal(client, ev.ClientID)
	s.Equal(int64(7), ev.RecordID)
	s.Equal("5005", ev.ListingID)
	s.Equal(4, ev.Sold)
	s.Equal(6, ev.Quantity)
}

func (s *UnitTestSuite) TestStockCheckRestockRepliesZero() {
	client := s.onboard("84634415230")
	s.seedRecord(1, "6006", client, 3)
	s.upstream.respond = reply(http.StatusOK, `{"results":[{"listing_id":6006,"quantity":9}]}`)

	out, err := s.gateway.HandleFrame(context.Background(), codec.EncodeStockRequest(1))
	s.Require().NoError(err)
	sold, err := codec.DecodeStockReply(out)
	s.NoError(err)
	s.Equal(uint32(0), sold)

	stock, err := s.records.GetStock(context.Background(), 1)
	s.NoError(err)
	s.Equal(9, stock)
	s.Empty(s.publisher.Messages())
}

func (s *UnitTestSuite) TestStockCheckUnknownRecord() {
	s.onboard("84634415230")
	_, err := s.gateway.HandleFrame(context.Background(), codec.EncodeStockRequest(42))
	s.ErrorIs(err, types.ErrMissingSubstitution)
	s.Empty(s.upstream.Calls())

	_, err = s.gateway.HandleFrame(context.Background(), codec.EncodeStockRequest(0))
	s.ErrorIs(err, types.ErrMissingIdentifier)
}

func (s *UnitTestSuite) TestStockCheckUnownedListing() {
	_, err := s.records.CreateListing(context.Background(), "7007")
	s.Require().NoError(err)

	_, err = s.gateway.HandleFrame(context.Background(), codec.EncodeStockRequest(1))
	s.ErrorIs(err, types.ErrClientNotFound)
}

func (s *UnitTestSuite) TestStockCheckMissingCredentials() {
	s.seedRecord(1, "8008", "client_77", 1)
	_, err := s.gateway.HandleFrame(context.Background(), codec.EncodeStockRequest(1))
	s.ErrorIs(err, types.ErrNoSuchCredential)
}

func (s *UnitTestSuite) TestStockCheckUpstreamTransportError() {
	client := s.onboard("84634415230")
	s.seedRecord(1, "9009", client, 1)
	s.upstream.respond = func(types.UpstreamRequest) (types.UpstreamResponse, error) {
		return types.UpstreamResponse{}, fmt.Errorf("connection reset")
	}
	_, err := s.gateway.HandleFrame(context.Background(), codec.EncodeStockRequest(1))
	s.ErrorIs(err, types.ErrUpstream)
}

func (s *UnitTestSuite) TestUpdateListing() {
	client := s.onboard("84634415230")
	s.seedRecord(3, "3003", client, 5)
	s.upstream.respond = reply(http.StatusOK, `{"results":[{"listing_id":3003,"quantity":12}]}`)

	var u types.UpdateRequest
	s.Require().NoError(json.Unmarshal([]byte(`{"listing_id":3,"update":{"quantity":12,"price":9.5,"listing_id":"999"}}`), &u))
	out, err := s.gateway.HandleUpdate(context.Background(), u)
	s.Require().NoError(err)
	s.Equal(UpdateSuccess, string(out))

	calls := s.upstream.Calls()
	s.Require().Len(calls, 1)
	s.Equal(http.MethodPut, calls[0].Verb)
	s.Equal("https://openapi.etsy.com/v2/listings/3003", calls[0].URL)
	s.Equal("12", calls[0].Params["quantity"])
	s.Equal("9.50", calls[0].Params["price"])
	s.NotContains(calls[0].Params, "listing_id")

	stock, err := s.records.GetStock(context.Background(), 3)
	s.NoError(err)
	s.Equal(12, stock)
}

func (s *UnitTestSuite) TestUpdateListingRejected() {
	client := s.onboard("84634415230")
	s.seedRecord(1, "1101", client, 5)
	s.upstream.respond = reply(http.StatusForbidden, `nope`)

	out, err := s.gateway.HandleUpdate(context.Background(), types.UpdateRequest{
		ListingID: 1,
		Update:    map[string]any{"quantity": float64(1)},
	})
	s.NoError(err)
	s.Equal(UpdateFailure, string(out))

	stock, err := s.records.GetStock(context.Background(), 1)
	s.NoError(err)
	s.Equal(5, stock)
}

func (s *UnitTestSuite) TestUpdateListingInvalid() {
	_, err := s.gateway.HandleUpdate(context.Background(), types.UpdateRequest{ListingID: 0, Update: map[string]any{"a": 1}})
	s.ErrorIs(err, types.ErrInvalidParameter)

	_, err = s.gateway.HandleUpdate(context.Background(), types.UpdateRequest{ListingID: 1})
	s.ErrorIs(err, types.ErrInvalidParameter)
}

func (s *UnitTestSuite) TestFailureKind() {
	s.Equal("malformed_frame", FailureKind(types.Err(types.ErrMalformedFrame, nil, "x")))
	s.Equal("upstream", FailureKind(&types.UpstreamError{Status: 500}))
	s.Equal("internal", FailureKind(fmt.Errorf("boom")))
}

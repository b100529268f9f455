package codec

import (
	"encoding/hex"
	"strings"
	"wolff/internal/types"
)

func scenarioListing() CreateListing {
	return CreateListing{
		Title:              "title_1",
		Description:        "desc_1",
		Quantity:           2,
		Price:              1.11,
		WhoMade:            "i_did",
		IsSupply:           true,
		WhenMade:           "made_to_order",
		ShippingTemplateID: 84634415230,
	}
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		panic(err)
	}
	return b
}

func (s *CodecTestSuite) TestEncodeCreateListingScenario() {
	frame, err := EncodeCreateListing(scenarioListing())
	s.NoError(err)
	s.Equal(mustHex("01 01 01 02 02 00 1B 91 13 B4 9A B0 7E"), frame)

	decoded, err := Decode(frame)
	s.NoError(err)
	s.Equal(types.APIDetails{Service: types.ServiceEtsy, Method: types.MethodCreateListing}, decoded.API)
	s.Equal(scenarioListing().Params(), decoded.Params)
	s.InDelta(1.1, decoded.Params[ParamPrice].(float64), 0.05)
}

func (s *CodecTestSuite) TestEncodeViaParams() {
	params := types.Params{
		ParamTitle:              "title_1",
		ParamDescription:        "desc_1",
		ParamQuantity:           float64(2),
		ParamPrice:              1.11,
		ParamWhoMade:            "i_did",
		ParamIsSupply:           true,
		ParamWhenMade:           "made_to_order",
		ParamShippingTemplateID: float64(84634415230),
	}
	frame, err := Encode(types.MethodCreateListing, params)
	s.NoError(err)
	s.Equal(mustHex("01 01 01 02 02 00 1B 91 13 B4 9A B0 7E"), frame)

	_, err = Encode(types.MethodUpdateListing, params)
	s.ErrorIs(err, types.ErrUnknownOperation)
}

func (s *CodecTestSuite) TestRoundTripInRange() {
	for _, who := range []string{"i_did", "collective", "someone_else"} {
		for _, when := range []string{"made_to_order", "2010_2019", "2000_2009", "before_2000", "1990s", "1980s", "1970s"} {
			for _, supply := range []bool{true, false} {
				in := CreateListing{
					Title:              "title_1",
					Description:        "desc_1",
					Quantity:           255,
					Price:              4095.15,
					WhoMade:            who,
					IsSupply:           supply,
					WhenMade:           when,
					ShippingTemplateID: MaxShippingTemplateID,
				}
				frame, err := EncodeCreateListing(in)
				s.NoError(err)
				out, err := DecodeCreateListing(frame)
				s.NoError(err)
				s.Equal(in, out)
			}
		}
	}
}

func (s *CodecTestSuite) TestPriceCentsNibbleLoss() {
	in := scenarioListing()
	in.Price = 16.99
	frame, err := EncodeCreateListing(in)
	s.NoError(err)
	out, err := DecodeCreateListing(frame)
	s.NoError(err)
	// 16.99*100 is 1698.999..., truncated to 98 cents, of which the low nibble is 2.
	s.Equal(16.02, out.Price)
	s.NotEqual(in.Price, out.Price)

	in.Price = 0.29
	frame, err = EncodeCreateListing(in)
	s.NoError(err)
	s.Equal(byte(28&0x0F), frame[6]&0x0F)

	in.Price = 3.999
	frame, err = EncodeCreateListing(in)
	s.NoError(err)
	out, err = DecodeCreateListing(frame)
	s.NoError(err)
	// never rounded up into the next dollar
	s.Equal(3.03, out.Price)

	in.Price = 7.00
	frame, err = EncodeCreateListing(in)
	s.NoError(err)
	out, err = DecodeCreateListing(frame)
	s.NoError(err)
	s.Equal(7.0, out.Price)
}

func (s *CodecTestSuite) TestWhenMadeTruncation() {
	in := scenarioListing()
	in.WhenMade = "1960s"
	frame, err := EncodeCreateListing(in)
	s.NoError(err)
	s.Equal(byte(0), frame[7]&whenMadeMask)

	_, err = Decode(frame)
	s.ErrorIs(err, types.ErrUnknownEnumerationValue)
}

func (s *CodecTestSuite) TestQuantityBounds() {
	in := scenarioListing()
	for _, q := range []int{0, 256, -1} {
		in.Quantity = q
		_, err := EncodeCreateListing(in)
		s.ErrorIs(err, types.ErrInvalidParameter, "quantity %d", q)
	}
	in.Quantity = 1
	_, err := EncodeCreateListing(in)
	s.NoError(err)
}

func (s *CodecTestSuite) TestShippingTemplateBounds() {
	in := scenarioListing()
	in.ShippingTemplateID = int64(1) << 40
	_, err := EncodeCreateListing(in)
	s.ErrorIs(err, types.ErrInvalidParameter)

	in.ShippingTemplateID = -5
	_, err = EncodeCreateListing(in)
	s.ErrorIs(err, types.ErrInvalidParameter)
}

func (s *CodecTestSuite) TestPriceBounds() {
	in := scenarioListing()
	in.Price = 4096
	_, err := EncodeCreateListing(in)
	s.ErrorIs(err, types.ErrInvalidParameter)

	in.Price = -1
	_, err = EncodeCreateListing(in)
	s.ErrorIs(err, types.ErrInvalidParameter)
}

func (s *CodecTestSuite) TestUnknownEnumerationOnEncode() {
	in := scenarioListing()
	in.Title = "title_9"
	_, err := EncodeCreateListing(in)
	s.ErrorIs(err, types.ErrUnknownEnumerationValue)
}

func (s *CodecTestSuite) TestUnknownEnumerationOnDecode() {
	base, err := EncodeCreateListing(scenarioListing())
	s.NoError(err)

	cases := map[string]func(f []byte){
		"title":       func(f []byte) { f[2] = 0x7F },
		"description": func(f []byte) { f[3] = 0x01 },
		"who_made":    func(f []byte) { f[7] = f[7]&^whoMadeMask | 0x0E },
		"when_made":   func(f []byte) { f[7] &^= whenMadeMask },
	}
	for name, mutate := range cases {
		frame := append([]byte(nil), base...)
		mutate(frame)
		_, err := Decode(frame)
		s.ErrorIs(err, types.ErrUnknownEnumerationValue, name)
		s.Contains(err.Error(), name)
	}
}

func (s *CodecTestSuite) TestMalformedFrames() {
	_, err := Decode(make([]byte, 12))
	s.ErrorIs(err, types.ErrMalformedFrame)

	_, err = Decode(make([]byte, 14))
	s.ErrorIs(err, types.ErrMalformedFrame)

	frame := EncodeStockRequest(7)
	frame[0] = 0x02
	_, err = Decode(frame)
	s.ErrorIs(err, types.ErrMalformedFrame)

	frame = EncodeStockRequest(7)
	frame[1] = 0x09
	_, err = Decode(frame)
	s.ErrorIs(err, types.ErrMalformedFrame)
}

func (s *CodecTestSuite) TestStockRequest() {
	frame := EncodeStockRequest(7)
	s.Equal(mustHex("01 02 00 00 00 07 00 00 00 00 00 00 00"), frame)

	req, err := Decode(frame)
	s.NoError(err)
	s.Equal(types.MethodCheckListingStock, req.API.Method)
	s.Equal(int64(7), req.RecordID)
}

func (s *CodecTestSuite) TestStockReply() {
	reply := EncodeStockReply(4)
	s.Equal(mustHex("01 02 00 00 00 04 00 00 00 00 00 00 00"), reply)

	sold, err := DecodeStockReply(reply)
	s.NoError(err)
	s.Equal(uint32(4), sold)

	_, err = DecodeStockReply(reply[:4])
	s.ErrorIs(err, types.ErrMalformedFrame)
}

func (s *CodecTestSuite) TestRecordReply() {
	reply := EncodeRecordReply(0x01020304)
	s.Equal([]byte{1, 2, 3, 4}, reply)
	id, err := DecodeRecordReply(reply)
	s.NoError(err)
	s.Equal(uint32(0x01020304), id)
}

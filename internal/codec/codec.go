package codec

import (
	"encoding/binary"
	"math"
	"wolff/internal/types"

	log "github.com/sirupsen/logrus"
)

const (
	FrameSize       = 13
	RecordReplySize = 4

	AppEtsy byte = 0x01

	OpCreateListing byte = 0x01
	OpListingStock  byte = 0x02

	// Stock replies reuse the stock request header.
	ReplyHeader0 = AppEtsy
	ReplyHeader1 = OpListingStock

	MaxQuantity           = 255
	MaxPriceIntegral      = 4095
	MaxShippingTemplateID = int64(1)<<40 - 1

	isSupplyMask = 0b1000_0000
	whenMadeMask = 0b0111_0000
	whoMadeMask  = 0b0000_1111
)

// create_listing parameter names.
const (
	ParamTitle              = "title"
	ParamDescription        = "description"
	ParamQuantity           = "quantity"
	ParamPrice              = "price"
	ParamWhoMade            = "who_made"
	ParamIsSupply           = "is_supply"
	ParamWhenMade           = "when_made"
	ParamShippingTemplateID = "shipping_template_id"
	ParamListingID          = "listing_id"
)

// CreateListing is the typed form of a create_listing request.
type CreateListing struct {
	Title              string
	Description        string
	Quantity           int
	Price              float64
	WhoMade            string
	IsSupply           bool
	WhenMade           string
	ShippingTemplateID int64
}

func (c CreateListing) Params() types.Params {
	return types.Params{
		ParamTitle:              c.Title,
		ParamDescription:        c.Description,
		ParamQuantity:           c.Quantity,
		ParamPrice:              c.Price,
		ParamWhoMade:            c.WhoMade,
		ParamIsSupply:           c.IsSupply,
		ParamWhenMade:           c.WhenMade,
		ParamShippingTemplateID: c.ShippingTemplateID,
	}
}

// CreateListingFromParams converts loosely typed parameters (e.g. decoded from JSON or
// YAML, where numbers arrive as float64) into a CreateListing.
func CreateListingFromParams(p types.Params) (CreateListing, error) {
	var c CreateListing
	var err error
	if c.Title, err = stringParam(p, ParamTitle); err != nil {
		return c, err
	}
	if c.Description, err = stringParam(p, ParamDescription); err != nil {
		return c, err
	}
	if c.WhoMade, err = stringParam(p, ParamWhoMade); err != nil {
		return c, err
	}
	if c.WhenMade, err = stringParam(p, ParamWhenMade); err != nil {
		return c, err
	}
	quantity, err := intParam(p, ParamQuantity)
	if err != nil {
		return c, err
	}
	c.Quantity = int(quantity)
	if c.ShippingTemplateID, err = intParam(p, ParamShippingTemplateID); err != nil {
		return c, err
	}
	switch v := p[ParamPrice].(type) {
	case float64:
		c.Price = v
	case int:
		c.Price = float64(v)
	case int64:
		c.Price = float64(v)
	default:
		return c, types.Err(types.ErrInvalidParameter, nil, "%s must be a number", ParamPrice)
	}
	switch v := p[ParamIsSupply].(type) {
	case bool:
		c.IsSupply = v
	case int:
		c.IsSupply = v != 0
	default:
		return c, types.Err(types.ErrInvalidParameter, nil, "%s must be a boolean", ParamIsSupply)
	}
	return c, nil
}

// Encode encodes the named operation. Only create_listing is an encoder operation; stock
// requests are built with EncodeStockRequest.
func Encode(method string, params types.Params) ([]byte, error) {
	switch method {
	case types.MethodCreateListing:
		c, err := CreateListingFromParams(params)
		if err != nil {
			return nil, err
		}
		return EncodeCreateListing(c)
	default:
		return nil, types.Err(types.ErrUnknownOperation, nil, "cannot encode %q", method)
	}
}

// EncodeCreateListing builds the 13-byte create_listing frame.
//
// Price layout: byte 5 holds integral/16, byte 6 holds integral%16 in the high nibble and
// the cents in the low nibble. Only cents 0..15 survive; anything larger is reduced mod 16.
func EncodeCreateListing(c CreateListing) ([]byte, error) {
	frame := make([]byte, FrameSize)
	frame[0] = AppEtsy
	frame[1] = OpCreateListing

	title, err := Titles.Code(c.Title)
	if err != nil {
		return nil, err
	}
	frame[2] = title

	description, err := Descriptions.Code(c.Description)
	if err != nil {
		return nil, err
	}
	frame[3] = description

	if c.Quantity < 1 || c.Quantity > MaxQuantity {
		return nil, types.Err(types.ErrInvalidParameter, nil, "quantity %d out of range 1..%d", c.Quantity, MaxQuantity)
	}
	frame[4] = byte(c.Quantity)

	if err := encodePrice(frame[5:7], c.Price); err != nil {
		return nil, err
	}

	flags, err := encodeFlags(c)
	if err != nil {
		return nil, err
	}
	frame[7] = flags

	if c.ShippingTemplateID < 0 || c.ShippingTemplateID > MaxShippingTemplateID {
		return nil, types.Err(types.ErrInvalidParameter, nil, "shipping_template_id %d does not fit in 40 bits", c.ShippingTemplateID)
	}
	putUint40(frame[8:13], uint64(c.ShippingTemplateID))

	return frame, nil
}

func encodePrice(dst []byte, price float64) error {
	if math.IsNaN(price) || price < 0 {
		return types.Err(types.ErrInvalidParameter, nil, "price %v must be non-negative", price)
	}
	// both parts truncate, so binary float error can drop a cent (0.29 carries 28)
	integral := int64(math.Floor(price))
	fraction := int64(math.Floor(math.Mod(price*100, 100)))
	if integral > MaxPriceIntegral {
		return types.Err(types.ErrInvalidParameter, nil, "price %v exceeds %d", price, MaxPriceIntegral)
	}
	if fraction > 0x0F {
		log.WithFields(log.Fields{"price": price, "cents": fraction}).
			Debug("price cents do not fit in 4 bits, truncating")
	}
	dst[0] = byte(integral >> 4)
	dst[1] = byte(integral&0x0F)<<4 | byte(fraction&0x0F)
	return nil
}

func decodePrice(src []byte) float64 {
	integral := int(src[0])*16 + int(src[1]>>4)
	fraction := int(src[1] & 0x0F)
	return float64(integral*100+fraction) / 100
}

// encodeFlags packs is_supply, when_made and who_made into one byte. when_made gets three
// bits, so code 8 (1960s) is truncated to 0 and will not decode. Existing frames depend on
// this layout, so the truncation is reported rather than corrected.
func encodeFlags(c CreateListing) (byte, error) {
	var b byte
	if c.IsSupply {
		b |= isSupplyMask
	}
	whenMade, err := WhenMade.Code(c.WhenMade)
	if err != nil {
		return 0, err
	}
	if whenMade > whenMadeMask>>4 {
		log.WithFields(log.Fields{"when_made": c.WhenMade, "code": whenMade}).
			Warn("when_made code does not fit in 3 bits and will be truncated")
	}
	b |= (whenMade << 4) & whenMadeMask

	whoMade, err := WhoMade.Code(c.WhoMade)
	if err != nil {
		return 0, err
	}
	b |= whoMade & whoMadeMask
	return b, nil
}

// Decode parses a request frame.
func Decode(frame []byte) (types.DecodedRequest, error) {
	if len(frame) != FrameSize {
		return types.DecodedRequest{}, types.Err(types.ErrMalformedFrame, nil, "frame length %d, want %d", len(frame), FrameSize)
	}
	if frame[0] != AppEtsy {
		return types.DecodedRequest{}, types.Err(types.ErrMalformedFrame, nil, "unknown application 0x%02X", frame[0])
	}
	switch frame[1] {
	case OpCreateListing:
		return decodeCreateListing(frame)
	case OpListingStock:
		return decodeStockRequest(frame), nil
	default:
		return types.DecodedRequest{}, types.Err(types.ErrMalformedFrame, nil, "unknown operation 0x%02X for application 0x%02X", frame[1], frame[0])
	}
}

func decodeCreateListing(frame []byte) (types.DecodedRequest, error) {
	c, err := DecodeCreateListing(frame)
	if err != nil {
		return types.DecodedRequest{}, err
	}
	return types.DecodedRequest{
		API:    types.APIDetails{Service: types.ServiceEtsy, Method: types.MethodCreateListing},
		Params: c.Params(),
	}, nil
}

// DecodeCreateListing is the typed inverse of EncodeCreateListing. The caller is
// responsible for having checked the frame header.
func DecodeCreateListing(frame []byte) (CreateListing, error) {
	var c CreateListing
	if len(frame) != FrameSize {
		return c, types.Err(types.ErrMalformedFrame, nil, "frame length %d, want %d", len(frame), FrameSize)
	}
	var err error
	if c.Title, err = Titles.Name(frame[2]); err != nil {
		return c, err
	}
	if c.Description, err = Descriptions.Name(frame[3]); err != nil {
		return c, err
	}
	c.Quantity = int(frame[4])
	c.Price = decodePrice(frame[5:7])
	c.IsSupply = frame[7]&isSupplyMask != 0
	if c.WhenMade, err = WhenMade.Name((frame[7] & whenMadeMask) >> 4); err != nil {
		return c, err
	}
	if c.WhoMade, err = WhoMade.Name(frame[7] & whoMadeMask); err != nil {
		return c, err
	}
	c.ShippingTemplateID = int64(uint40(frame[8:13]))
	return c, nil
}

// EncodeStockRequest builds the check_listing_stock frame for a record id.
func EncodeStockRequest(recordID uint32) []byte {
	frame := make([]byte, FrameSize)
	frame[0] = AppEtsy
	frame[1] = OpListingStock
	binary.BigEndian.PutUint32(frame[2:6], recordID)
	return frame
}

func decodeStockRequest(frame []byte) types.DecodedRequest {
	return types.DecodedRequest{
		API:      types.APIDetails{Service: types.ServiceEtsy, Method: types.MethodCheckListingStock},
		Params:   types.Params{},
		RecordID: int64(binary.BigEndian.Uint32(frame[2:6])),
	}
}

// EncodeStockReply builds the 13-byte reply carrying the number of units sold.
func EncodeStockReply(quantity uint32) []byte {
	reply := make([]byte, FrameSize)
	reply[0] = ReplyHeader0
	reply[1] = ReplyHeader1
	binary.BigEndian.PutUint32(reply[2:6], quantity)
	return reply
}

func DecodeStockReply(reply []byte) (uint32, error) {
	if len(reply) != FrameSize {
		return 0, types.Err(types.ErrMalformedFrame, nil, "stock reply length %d, want %d", len(reply), FrameSize)
	}
	if reply[0] != ReplyHeader0 || reply[1] != ReplyHeader1 {
		return 0, types.Err(types.ErrMalformedFrame, nil, "stock reply header %02X %02X", reply[0], reply[1])
	}
	return binary.BigEndian.Uint32(reply[2:6]), nil
}

// EncodeRecordReply encodes the record id returned for a created listing.
func EncodeRecordReply(recordID uint32) []byte {
	reply := make([]byte, RecordReplySize)
	binary.BigEndian.PutUint32(reply, recordID)
	return reply
}

func DecodeRecordReply(reply []byte) (uint32, error) {
	if len(reply) != RecordReplySize {
		return 0, types.Err(types.ErrMalformedFrame, nil, "record reply length %d, want %d", len(reply), RecordReplySize)
	}
	return binary.BigEndian.Uint32(reply), nil
}

func putUint40(dst []byte, v uint64) {
	for i := 4; i >= 0; i-- {
		dst[i] = byte(v)
		v >>= 8
	}
}

func uint40(src []byte) uint64 {
	var v uint64
	for _, b := range src[:5] {
		v = v<<8 | uint64(b)
	}
	return v
}

func stringParam(p types.Params, name string) (string, error) {
	v, ok := p[name].(string)
	if !ok {
		return "", types.Err(types.ErrInvalidParameter, nil, "%s must be a string", name)
	}
	return v, nil
}

func intParam(p types.Params, name string) (int64, error) {
	switch v := p[name].(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case uint32:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, types.Err(types.ErrInvalidParameter, nil, "%s must be an integer", name)
		}
		return int64(v), nil
	default:
		return 0, types.Err(types.ErrInvalidParameter, nil, "%s must be an integer", name)
	}
}

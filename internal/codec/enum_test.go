package codec

import "wolff/internal/types"

func (s *CodecTestSuite) TestEnumSymmetry() {
	for _, e := range []*Enum{Titles, Descriptions, WhoMade, WhenMade} {
		for name, code := range e.codes {
			back, err := e.Name(code)
			s.NoError(err)
			s.Equal(name, back)
		}
		s.Equal(len(e.codes), len(e.names))
	}
	s.Equal(8, WhenMade.Len())
}

func (s *CodecTestSuite) TestEnumDuplicatePanics() {
	s.Panics(func() {
		NewEnum("dup", EnumEntry{"a", 1}, EnumEntry{"b", 1})
	})
	s.Panics(func() {
		NewEnum("dup", EnumEntry{"a", 1}, EnumEntry{"a", 2})
	})
}

func (s *CodecTestSuite) TestEnumMiss() {
	_, err := WhoMade.Code("nobody")
	s.ErrorIs(err, types.ErrUnknownEnumerationValue)
	_, err = WhoMade.Name(0x00)
	s.ErrorIs(err, types.ErrUnknownEnumerationValue)
}

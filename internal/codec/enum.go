package codec

import (
	"fmt"
	"wolff/internal/types"
)

// EnumEntry binds a parameter value to its one-byte wire code.
type EnumEntry struct {
	Name string
	Code byte
}

// Enum is a bidirectional name <-> code table. The encoder and decoder share the same
// instance so the two directions cannot drift apart.
type Enum struct {
	field string
	codes map[string]byte
	names map[byte]string
}

// NewEnum builds a table from entries. Duplicate names or codes are programming errors.
func NewEnum(field string, entries ...EnumEntry) *Enum {
	e := &Enum{
		field: field,
		codes: make(map[string]byte, len(entries)),
		names: make(map[byte]string, len(entries)),
	}
	for _, entry := range entries {
		if _, dup := e.codes[entry.Name]; dup {
			panic(fmt.Sprintf("codec: duplicate %s name %q", field, entry.Name))
		}
		if _, dup := e.names[entry.Code]; dup {
			panic(fmt.Sprintf("codec: duplicate %s code 0x%02X", field, entry.Code))
		}
		e.codes[entry.Name] = entry.Code
		e.names[entry.Code] = entry.Name
	}
	return e
}

func (e *Enum) Code(name string) (byte, error) {
	c, ok := e.codes[name]
	if !ok {
		return 0, types.Err(types.ErrUnknownEnumerationValue, nil, "%s %q", e.field, name)
	}
	return c, nil
}

func (e *Enum) Name(code byte) (string, error) {
	n, ok := e.names[code]
	if !ok {
		return "", types.Err(types.ErrUnknownEnumerationValue, nil, "%s code 0x%02X", e.field, code)
	}
	return n, nil
}

func (e *Enum) Len() int { return len(e.codes) }

// Etsy create_listing enumerations. Titles and descriptions can grow up to 0xFF entries.
var (
	Titles = NewEnum("title",
		EnumEntry{"title_1", 0x01},
	)
	Descriptions = NewEnum("description",
		EnumEntry{"desc_1", 0x02},
	)
	WhoMade = NewEnum("who_made",
		EnumEntry{"i_did", 0x01},
		EnumEntry{"collective", 0x02},
		EnumEntry{"someone_else", 0x03},
	)
	// WhenMade has 8 codes but the frame reserves only 3 bits for it; see encodeFlags.
	WhenMade = NewEnum("when_made",
		EnumEntry{"made_to_order", 0x01},
		EnumEntry{"2010_2019", 0x02},
		EnumEntry{"2000_2009", 0x03},
		EnumEntry{"before_2000", 0x04},
		EnumEntry{"1990s", 0x05},
		EnumEntry{"1980s", 0x06},
		EnumEntry{"1970s", 0x07},
		EnumEntry{"1960s", 0x08},
	)
)

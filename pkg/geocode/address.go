package geocode

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// AddressKind tags the shape of an item's address field.
type AddressKind int

const (
	// AddressMissing covers an absent or null field, or any unexpected type.
	AddressMissing AddressKind = iota
	// AddressPlain is a bare string.
	AddressPlain
	// AddressNested is an object with road and parcel parts.
	AddressNested
)

// PartKind tags the shape of a road or parcel part.
type PartKind int

const (
	PartMissing PartKind = iota
	PartPlain            // "서울특별시 ..."
	PartObject           // {"text": "서울특별시 ..."}
)

// AddressPart is one of the road/parcel entries of a nested address.
type AddressPart struct {
	Kind PartKind
	Text string
}

// AddressField is the address of a search item. VWorld returns it as a plain
// string, as {"road": ..., "parcel": ...} with each part either a string or
// {"text": ...}, or not at all.
type AddressField struct {
	Kind   AddressKind
	Text   string
	Road   AddressPart
	Parcel AddressPart
}

// UnmarshalJSON classifies the raw value; it never fails on an unexpected
// shape, which decodes as AddressMissing.
func (a *AddressField) UnmarshalJSON(data []byte) error {
	v := gjson.ParseBytes(data)
	switch {
	case v.Type == gjson.String:
		*a = AddressField{Kind: AddressPlain, Text: v.Str}
	case v.IsObject():
		*a = AddressField{
			Kind:   AddressNested,
			Road:   partOf(v.Get("road")),
			Parcel: partOf(v.Get("parcel")),
		}
	default:
		*a = AddressField{}
	}
	return nil
}

func partOf(v gjson.Result) AddressPart {
	switch {
	case v.Type == gjson.String:
		return AddressPart{Kind: PartPlain, Text: v.Str}
	case v.IsObject():
		text := v.Get("text")
		if text.Type != gjson.String {
			return AddressPart{Kind: PartObject}
		}
		return AddressPart{Kind: PartObject, Text: text.Str}
	default:
		return AddressPart{}
	}
}

// Normalize returns the display address: the plain text, else the road part,
// else the parcel part. Empty text counts as missing.
func (a AddressField) Normalize() (string, bool) {
	switch a.Kind {
	case AddressPlain:
		return nonEmpty(a.Text)
	case AddressNested:
		if s, ok := a.Road.text(); ok {
			return s, true
		}
		return a.Parcel.text()
	default:
		return "", false
	}
}

func (p AddressPart) text() (string, bool) {
	switch p.Kind {
	case PartPlain, PartObject:
		return nonEmpty(p.Text)
	default:
		return "", false
	}
}

func nonEmpty(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}

// coordinate accepts "127.0012" as well as 127.0012.
type coordinate struct {
	value float64
	valid bool
}

func (c *coordinate) UnmarshalJSON(data []byte) error {
	v := gjson.ParseBytes(data)
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Num
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			*c = coordinate{}
			return nil
		}
		f = parsed
	default:
		*c = coordinate{}
		return nil
	}
	*c = coordinate{value: f, valid: !math.IsNaN(f) && !math.IsInf(f, 0)}
	return nil
}

// Package tfs builds the opaque "tfs" search token understood by the Google
// Flights explore page, plus the human-followable deep links used in alerts.
//
// The token is a protobuf message serialised by hand with protowire, so the
// output is byte-for-byte stable for the same inputs.
package tfs

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrInvalidParams is returned for inputs the encoder cannot represent.
var ErrInvalidParams = errors.New("tfs: invalid params")

// Cabin enum values on the wire.
const (
	CabinEconomy uint64 = 1
	CabinPremium uint64 = 3
)

// Passengers is the fixed passenger count written into every token.
const Passengers uint64 = 1

// Top-level field numbers, in serialisation order.
const (
	fieldVersion     protowire.Number = 1
	fieldTripKind    protowire.Number = 2
	fieldLeg         protowire.Number = 3
	fieldPassengers  protowire.Number = 8
	fieldCabin       protowire.Number = 9
	fieldExplore     protowire.Number = 14
	fieldFilter      protowire.Number = 16
	fieldSort        protowire.Number = 19
	fieldDestination protowire.Number = 22

	legFieldDate         protowire.Number = 2
	legFieldOutboundFrom protowire.Number = 13
	legFieldInboundTo    protowire.Number = 14

	placeFieldKind protowire.Number = 1
	placeFieldGeo  protowire.Number = 2
)

const (
	versionValue  uint64 = 28
	roundTrip     uint64 = 3
	placeKindCity uint64 = 2
)

// filterBlob is copied verbatim into field 16.
var filterBlob = []byte{0x08, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}

// Params are the inputs of one explore search.
type Params struct {
	OriginGeo      string
	DestinationGeo string
	Depart         string // YYYY-MM-DD
	Return         string // YYYY-MM-DD
	Cabin          string
}

// CabinValue maps a cabin name to its wire enum: economy is 1, anything else 3.
func CabinValue(cabin string) uint64 {
	if strings.EqualFold(strings.TrimSpace(cabin), "economy") {
		return CabinEconomy
	}
	return CabinPremium
}

func (p Params) validate() error {
	switch {
	case strings.TrimSpace(p.OriginGeo) == "":
		return fmt.Errorf("%w: empty origin geo token", ErrInvalidParams)
	case strings.TrimSpace(p.DestinationGeo) == "":
		return fmt.Errorf("%w: empty destination geo token", ErrInvalidParams)
	case strings.TrimSpace(p.Cabin) == "":
		return fmt.Errorf("%w: empty cabin", ErrInvalidParams)
	}
	for _, d := range []string{p.Depart, p.Return} {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("%w: date %q: %v", ErrInvalidParams, d, err)
		}
	}
	return nil
}

// Raw returns the serialised message before base64 encoding.
func Raw(p Params) ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	var origin []byte
	origin = protowire.AppendTag(origin, placeFieldKind, protowire.VarintType)
	origin = protowire.AppendVarint(origin, placeKindCity)
	origin = appendString(origin, placeFieldGeo, p.OriginGeo)

	var out []byte
	out = appendString(out, legFieldDate, p.Depart)
	out = appendBytes(out, legFieldOutboundFrom, origin)

	var in []byte
	in = appendString(in, legFieldDate, p.Return)
	in = appendBytes(in, legFieldInboundTo, origin)

	var dest []byte
	dest = appendString(dest, placeFieldGeo, p.DestinationGeo)

	var b []byte
	b = appendVarint(b, fieldVersion, versionValue)
	b = appendVarint(b, fieldTripKind, roundTrip)
	b = appendBytes(b, fieldLeg, out)
	b = appendBytes(b, fieldLeg, in)
	b = appendVarint(b, fieldPassengers, Passengers)
	b = appendVarint(b, fieldCabin, CabinValue(p.Cabin))
	b = appendVarint(b, fieldExplore, 1)
	b = appendBytes(b, fieldFilter, filterBlob)
	b = appendVarint(b, fieldSort, 1)
	b = appendBytes(b, fieldDestination, dest)
	return b, nil
}

// Encode returns the URL-safe, unpadded base64 token for p.
func Encode(p Params) (string, error) {
	raw, err := Raw(p)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// MustEncode is Encode for callers that validated their input already.
func MustEncode(p Params) string {
	s, err := Encode(p)
	if err != nil {
		panic(err)
	}
	return s
}

// ExploreURL is the explore page for p, rendered in language hl and priced in
// currency.
func ExploreURL(p Params, hl, currency string) (string, error) {
	token, err := Encode(p)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("tfs", token)
	q.Set("tfu", "GgA")
	q.Set("hl", hl)
	q.Set("curr", currency)
	return "https://www.google.com/travel/explore?" + q.Encode(), nil
}

// FlightsDeepLink is a plain search link a person can follow from an alert.
func FlightsDeepLink(origin, destination, depart, ret, cabin string) string {
	tt := "1"
	if CabinValue(cabin) != CabinEconomy {
		tt = "3"
	}
	return fmt.Sprintf(
		"https://www.google.com/travel/flights#flt=%s.%s.%s*%s.%s.%s;c:EUR;e:%s;s:1;sd:1;t:f",
		origin, destination, depart, destination, origin, ret, tt,
	)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

package domain

import (
	"crypto/md5"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	EmergencyDefibrillator = "defibrillator"

	DefaultName                  = "Unknown"
	DefaultOperator              = "Unknown"
	DefaultAddress               = "unknown"
	DefaultAccess                = "unknown"
	DefaultDefibrillatorLocation = "Not specified"
	DefaultLevel                 = "unknown"
	DefaultOpeningHours          = "unknown"
	DefaultPhone                 = "unknown"
	DefaultWheelchair            = "unknown"

	fallbackIDModulus = 1_000_000_000
)

// AED is the canonical defibrillator record every source normalizes into.
// ID == 0 means "no id yet".
type AED struct {
	ID                    int64   `json:"id" db:"id" validate:"gt=0"`
	Latitude              float64 `json:"latitude" db:"latitude" validate:"latitude"`
	Longitude             float64 `json:"longitude" db:"longitude" validate:"longitude"`
	Name                  string  `json:"name" db:"name"`
	Address               string  `json:"address" db:"address"`
	Emergency             string  `json:"emergency" db:"emergency"`
	Operator              string  `json:"operator" db:"operator"`
	Indoor                bool    `json:"indoor" db:"indoor"`
	Access                string  `json:"access" db:"access"`
	DefibrillatorLocation string  `json:"defibrillator_location" db:"defibrillator_location"`
	Level                 string  `json:"level" db:"level"`
	OpeningHours          string  `json:"opening_hours" db:"opening_hours"`
	Phone                 string  `json:"phone" db:"phone"`
	Wheelchair            string  `json:"wheelchair" db:"wheelchair"`
	Source                string  `json:"source" db:"source"`

	// Only the iSaveLives registry fills these; Availability is the free
	// text the extraction batch reads.
	Foundation   string `json:"foundation,omitempty" db:"foundation"`
	Availability string `json:"availability,omitempty" db:"availability"`
	AEDWebpage   string `json:"aed_webpage,omitempty" db:"aed_webpage"`
}

// MergeKey is the exact-coordinate key records are deduplicated on.
func (a AED) MergeKey() string {
	return MergeKey(a.Latitude, a.Longitude)
}

func MergeKey(lat, lon float64) string {
	return formatCoordinate(lat) + "," + formatCoordinate(lon)
}

// formatCoordinate renders the shortest decimal that round-trips to v and
// keeps a trailing ".0" on integral values (38 -> "38.0"), the spelling the
// already published fallback ids were derived from.
func formatCoordinate(v float64) string {
	s := decimal.NewFromFloat(v).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// FallbackID derives a stable id from the merge key: MD5 of the key read as a
// big-endian unsigned integer, reduced modulo 10^9. Distinct keys can collide;
// that is accepted and not corrected.
func FallbackID(key string) int64 {
	sum := md5.Sum([]byte(key))
	n := new(big.Int).SetBytes(sum[:])
	return n.Mod(n, big.NewInt(fallbackIDModulus)).Int64()
}

// Tags is a loosely typed provider attribute map (OSM tags, GeoJSON properties).
type Tags map[string]interface{}

// NewAED builds a canonical record from provider attributes, substituting the
// per-field default for every missing attribute. Providers disagree on where
// the address lives, hence addressKey.
func NewAED(id int64, lat, lon float64, tags Tags, addressKey, source string) AED {
	return AED{
		ID:                    id,
		Latitude:              lat,
		Longitude:             lon,
		Name:                  tags.String("name", DefaultName),
		Address:               tags.String(addressKey, DefaultAddress),
		Emergency:             EmergencyDefibrillator,
		Operator:              tags.String("operator", DefaultOperator),
		Indoor:                tags.String("indoor", "no") == "yes",
		Access:                tags.String("access", DefaultAccess),
		DefibrillatorLocation: tags.String("defibrillator:location", DefaultDefibrillatorLocation),
		Level:                 tags.String("level", DefaultLevel),
		OpeningHours:          tags.String("opening_hours", DefaultOpeningHours),
		Phone:                 tags.String("phone", DefaultPhone),
		Wheelchair:            tags.String("wheelchair", DefaultWheelchair),
		Source:                source,
	}
}

// String returns the attribute as text, or def when the key is absent or null.
func (t Tags) String(key, def string) string {
	v, ok := t[key]
	if !ok || v == nil {
		return def
	}
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "yes"
		}
		return "no"
	case float64:
		return decimal.NewFromFloat(val).String()
	default:
		return def
	}
}

type ErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

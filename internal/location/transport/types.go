// Package transport defines the canonical location shapes shared by the
// location resolution engine and its HTTP surface. Upstream provider payloads
// are normalized into these types by internal/location/client; nothing outside
// that package ever sees a raw provider response.
package transport

import "strings"

// Coordinates is a WGS84 pair. The zero value means "unset": call sites must
// never issue network requests for (0,0).
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsZero reports whether the coordinates are unset.
func (c Coordinates) IsZero() bool {
	return c.Latitude == 0 && c.Longitude == 0
}

// LocationSuggestion is a single autocomplete candidate. Ephemeral, never
// persisted.
type LocationSuggestion struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Relevance int    `json:"relevance,omitempty"`
}

// AddressComponents is a normalized reverse-geocode result.
type AddressComponents struct {
	FormattedAddress string `json:"formattedAddress"`
	City             string `json:"city"`
	Province         string `json:"province,omitempty"`
	Country          string `json:"country"`
	PostalCode       string `json:"postalCode"`
	CountryCode      string `json:"countryCode,omitempty"`
	PlaceID          string `json:"placeId,omitempty"`
}

// PostalCode is one postal code entry inside a district.
type PostalCode struct {
	PostalCode  string `json:"postalCode"`
	Description string `json:"description"`
}

// DistrictData is the enrichment payload the District/PostalCode selectors
// index into.
type DistrictData struct {
	DistrictID   string       `json:"districtId"`
	DistrictName string       `json:"districtName"`
	CityID       string       `json:"cityId"`
	CityName     string       `json:"cityName"`
	ProvinceID   string       `json:"provinceId"`
	ProvinceName string       `json:"provinceName"`
	PostalCodes  []PostalCode `json:"postalCodes"`
}

// CityOption is one city entry for the international variant's city select.
type CityOption struct {
	CityID   string `json:"cityId"`
	CityName string `json:"cityName"`
}

// PostalCodeOption is a select option from the postal-code lookup endpoints.
type PostalCodeOption struct {
	ID          string `json:"id"`
	PostalCode  string `json:"postalCode"`
	Description string `json:"description"`
}

// LocationInfo is the enriched address block of a resolved place.
type LocationInfo struct {
	AddressComponents
	District      string         `json:"district,omitempty"`
	CityList      []CityOption   `json:"cityList,omitempty"`
	DistrictsData []DistrictData `json:"districtsData,omitempty"`
}

// LocationDetails is the enriched "place" record produced by place-detail
// lookups and by reverse-geocode chains.
type LocationDetails struct {
	Coordinates Coordinates  `json:"coordinates"`
	Info        LocationInfo `json:"info"`
}

// SelectedLocation is the committed, form-visible location state. Every field
// must originate from the same resolution event; the engine never splices
// fields from different sources.
type SelectedLocation struct {
	Address     string      `json:"address"`
	City        string      `json:"city"`
	Province    string      `json:"province"`
	District    string      `json:"district"`
	PostalCode  string      `json:"postalCode"`
	Country     string      `json:"country"`
	CountryCode string      `json:"countryCode"`
	Coordinates Coordinates `json:"coordinates"`
	PlaceID     string      `json:"placeId"`
}

// Source identifies which resolution path produced a committed location.
type Source string

const (
	// SourceSearch is an explicit autocomplete suggestion pick.
	SourceSearch Source = "search"
	// SourceDrag is a pin-drag chain that reached place details.
	SourceDrag Source = "drag"
	// SourceGeocode is a raw reverse-geocode address without enrichment.
	SourceGeocode Source = "geocode"
	// SourceCoordinates is the coordinates-only synthetic fallback.
	SourceCoordinates Source = "coordinates"
)

// FromDetails builds a SelectedLocation from a single LocationDetails record.
// This is the only constructor used on commit paths, which keeps the
// one-source invariant structural rather than a matter of call-site
// discipline.
func FromDetails(d LocationDetails) SelectedLocation {
	return SelectedLocation{
		Address:     d.Info.FormattedAddress,
		City:        d.Info.City,
		Province:    d.Info.Province,
		District:    d.Info.District,
		PostalCode:  d.Info.PostalCode,
		Country:     d.Info.Country,
		CountryCode: d.Info.CountryCode,
		Coordinates: d.Coordinates,
		PlaceID:     d.Info.PlaceID,
	}
}

// MatchDistrict returns the district entry matching name case-insensitively.
// When no exact match exists it falls back to the first entry so a resolved
// place never leaves the dependent selector looking unset. The fallback is
// deliberate UX policy, not an oversight.
func MatchDistrict(districts []DistrictData, name string) *DistrictData {
	if len(districts) == 0 {
		return nil
	}
	for i := range districts {
		if strings.EqualFold(districts[i].DistrictName, name) {
			return &districts[i]
		}
	}
	return &districts[0]
}

// MatchPostalCode returns the postal code matching value, falling back to the
// first available code. Same policy as MatchDistrict.
func MatchPostalCode(codes []PostalCode, value string) *PostalCode {
	if len(codes) == 0 {
		return nil
	}
	for i := range codes {
		if strings.EqualFold(codes[i].PostalCode, value) {
			return &codes[i]
		}
	}
	return &codes[0]
}

package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"backoffice_portal_backend/internal/location/transport"
)

// The provider's endpoints disagree on casing and field names (Lat/lat,
// lng/long, DistrictID/districtId) and on envelope shape (bare array vs
// {"results": [...]}). Each endpoint gets its own decoder struct with
// exhaustive optional-field defaulting; missing fields normalize to zero
// values, never an error.

// flexID accepts both string and numeric identifiers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*f = ""
		return nil
	}

	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*f = flexID(asString)
		return nil
	}

	var asNumber json.Number
	if err := json.Unmarshal(data, &asNumber); err == nil {
		*f = flexID(asNumber.String())
		return nil
	}

	return fmt.Errorf("identifier is neither string nor number: %s", trimmed)
}

type rawSuggestion struct {
	ID        flexID `json:"id"`
	PlaceID   flexID `json:"placeId"`
	Title     string `json:"title"`
	Name      string `json:"name"`
	Relevance int    `json:"relevance"`
}

type suggestionEnvelope struct {
	Results []rawSuggestion `json:"results"`
}

func decodeSuggestions(body []byte) ([]transport.LocationSuggestion, error) {
	var raws []rawSuggestion
	if err := json.Unmarshal(body, &raws); err != nil {
		var envelope suggestionEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("decode suggestions: %w", err)
		}
		raws = envelope.Results
	}

	suggestions := make([]transport.LocationSuggestion, 0, len(raws))
	for _, raw := range raws {
		id := string(raw.ID)
		if id == "" {
			id = string(raw.PlaceID)
		}
		title := raw.Title
		if title == "" {
			title = raw.Name
		}
		if id == "" || title == "" {
			continue
		}

		suggestions = append(suggestions, transport.LocationSuggestion{
			ID:        id,
			Title:     title,
			Relevance: raw.Relevance,
		})
	}

	return suggestions, nil
}

type rawAddress struct {
	FormattedAddress string `json:"formattedAddress"`
	DisplayName      string `json:"displayName"`
	Address          string `json:"address"`
	City             string `json:"city"`
	Town             string `json:"town"`
	Municipality     string `json:"municipality"`
	Province         string `json:"province"`
	State            string `json:"state"`
	District         string `json:"district"`
	Country          string `json:"country"`
	PostalCode       string `json:"postalCode"`
	Postcode         string `json:"postcode"`
	CountryCode      string `json:"countryCode"`
	PlaceID          flexID `json:"placeId"`
}

func (r rawAddress) normalize() transport.AddressComponents {
	return transport.AddressComponents{
		FormattedAddress: firstNonEmpty(r.FormattedAddress, r.DisplayName, r.Address),
		City:             firstNonEmpty(r.City, r.Town, r.Municipality),
		Province:         firstNonEmpty(r.Province, r.State),
		Country:          r.Country,
		PostalCode:       firstNonEmpty(r.PostalCode, r.Postcode),
		CountryCode:      strings.ToUpper(r.CountryCode),
		PlaceID:          string(r.PlaceID),
	}
}

func decodeAddress(body []byte) (transport.AddressComponents, error) {
	var raw rawAddress
	if err := json.Unmarshal(body, &raw); err != nil {
		return transport.AddressComponents{}, fmt.Errorf("decode address: %w", err)
	}
	return raw.normalize(), nil
}

type rawPostalCode struct {
	ID          flexID `json:"id"`
	PostalCode  string `json:"postalCode"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

type rawDistrict struct {
	DistrictID   flexID          `json:"districtId"`
	DistrictName string          `json:"districtName"`
	CityID       flexID          `json:"cityId"`
	CityName     string          `json:"cityName"`
	ProvinceID   flexID          `json:"provinceId"`
	ProvinceName string          `json:"provinceName"`
	PostalCodes  []rawPostalCode `json:"postalCodes"`
}

func (r rawDistrict) normalize() transport.DistrictData {
	codes := make([]transport.PostalCode, 0, len(r.PostalCodes))
	for _, raw := range r.PostalCodes {
		code := firstNonEmpty(raw.PostalCode, raw.Code)
		if code == "" {
			continue
		}
		codes = append(codes, transport.PostalCode{
			PostalCode:  code,
			Description: raw.Description,
		})
	}

	return transport.DistrictData{
		DistrictID:   string(r.DistrictID),
		DistrictName: r.DistrictName,
		CityID:       string(r.CityID),
		CityName:     r.CityName,
		ProvinceID:   string(r.ProvinceID),
		ProvinceName: r.ProvinceName,
		PostalCodes:  codes,
	}
}

type rawCity struct {
	CityID   flexID `json:"cityId"`
	CityName string `json:"cityName"`
	Name     string `json:"name"`
}

// rawPlaceDetails covers both payload shapes: the domestic deployment returns
// districts + completeLocation, the international one locationInfo + cityList.
type rawPlaceDetails struct {
	Lat              *float64      `json:"lat"`
	Long             *float64      `json:"long"`
	Lng              *float64      `json:"lng"`
	Districts        []rawDistrict `json:"districts"`
	CompleteLocation *rawAddress   `json:"completeLocation"`
	LocationInfo     *rawAddress   `json:"locationInfo"`
	CityList         []rawCity     `json:"cityList"`
}

func decodePlaceDetails(body []byte, variant Variant) (transport.LocationDetails, error) {
	var raw rawPlaceDetails
	if err := json.Unmarshal(body, &raw); err != nil {
		return transport.LocationDetails{}, fmt.Errorf("decode place details: %w", err)
	}

	details := transport.LocationDetails{
		Coordinates: transport.Coordinates{
			Latitude:  deref(raw.Lat),
			Longitude: firstNonZero(deref(raw.Long), deref(raw.Lng)),
		},
	}

	var address *rawAddress
	switch variant {
	case VariantInternational:
		address = firstAddress(raw.LocationInfo, raw.CompleteLocation)
	default:
		address = firstAddress(raw.CompleteLocation, raw.LocationInfo)
	}

	if address != nil {
		details.Info.AddressComponents = address.normalize()
		details.Info.District = address.District
	}

	for _, rawDist := range raw.Districts {
		details.Info.DistrictsData = append(details.Info.DistrictsData, rawDist.normalize())
	}
	if details.Info.District == "" && len(details.Info.DistrictsData) > 0 {
		details.Info.District = details.Info.DistrictsData[0].DistrictName
	}

	for _, city := range raw.CityList {
		name := firstNonEmpty(city.CityName, city.Name)
		if name == "" {
			continue
		}
		details.Info.CityList = append(details.Info.CityList, transport.CityOption{
			CityID:   string(city.CityID),
			CityName: name,
		})
	}

	return details, nil
}

type postalEnvelope struct {
	Results []rawPostalCode `json:"results"`
}

func decodePostalOptions(body []byte) ([]transport.PostalCodeOption, error) {
	var raws []rawPostalCode
	if err := json.Unmarshal(body, &raws); err != nil {
		var envelope postalEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("decode postal codes: %w", err)
		}
		raws = envelope.Results
	}

	options := make([]transport.PostalCodeOption, 0, len(raws))
	for _, raw := range raws {
		code := firstNonEmpty(raw.PostalCode, raw.Code)
		if code == "" {
			continue
		}
		options = append(options, transport.PostalCodeOption{
			ID:          string(raw.ID),
			PostalCode:  code,
			Description: raw.Description,
		})
	}

	return options, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func firstNonZero(values ...float64) float64 {
	for _, value := range values {
		if value != 0 {
			return value
		}
	}
	return 0
}

func firstAddress(addresses ...*rawAddress) *rawAddress {
	for _, address := range addresses {
		if address != nil {
			return address
		}
	}
	return nil
}

func deref(value *float64) float64 {
	if value == nil {
		return 0
	}
	return *value
}

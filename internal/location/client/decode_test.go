package client

import (
	"encoding/json"
	"testing"
)

func TestFlexIDAcceptsStringAndNumber(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"string", `"p-123"`, "p-123"},
		{"integer", `42`, "42"},
		{"large integer keeps digits", `9007199254740993`, "9007199254740993"},
		{"null", `null`, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var id flexID
			if err := json.Unmarshal([]byte(tc.in), &id); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if string(id) != tc.want {
				t.Fatalf("id = %q, want %q", id, tc.want)
			}
		})
	}

	var id flexID
	if err := json.Unmarshal([]byte(`{"nested":true}`), &id); err == nil {
		t.Fatal("object must not decode as identifier")
	}
}

func TestDecodeSuggestionsEnvelopes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
	}{
		{"bare array", `[{"id":"p1","title":"Jalan Sudirman No.1"}]`, 1},
		{"results envelope", `{"results":[{"id":"p1","title":"A"},{"placeId":7,"name":"B"}]}`, 2},
		{"entries missing id or title dropped", `[{"id":"p1"},{"title":"no id"},{"id":"p2","title":"ok"}]`, 1},
		{"empty array", `[]`, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeSuggestions([]byte(tc.body))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(got) != tc.want {
				t.Fatalf("len = %d, want %d", len(got), tc.want)
			}
		})
	}

	got, err := decodeSuggestions([]byte(`{"results":[{"placeId":7,"name":"B"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if got[0].ID != "7" || got[0].Title != "B" {
		t.Fatalf("alias fields not normalized: %+v", got[0])
	}
}

func TestDecodeAddressAliases(t *testing.T) {
	body := `{"displayName":"Jl. Thamrin 9","town":"Jakarta","state":"DKI Jakarta","postcode":"10350","countryCode":"id","placeId":99}`

	got, err := decodeAddress([]byte(body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.FormattedAddress != "Jl. Thamrin 9" {
		t.Errorf("formattedAddress = %q", got.FormattedAddress)
	}
	if got.City != "Jakarta" || got.Province != "DKI Jakarta" || got.PostalCode != "10350" {
		t.Errorf("aliases not normalized: %+v", got)
	}
	if got.CountryCode != "ID" {
		t.Errorf("countryCode = %q, want ID", got.CountryCode)
	}
	if got.PlaceID != "99" {
		t.Errorf("placeId = %q", got.PlaceID)
	}
}

func TestDecodeAddressMissingOptionals(t *testing.T) {
	got, err := decodeAddress([]byte(`{}`))
	if err != nil {
		t.Fatalf("partial data must not error: %v", err)
	}
	if got.FormattedAddress != "" || got.City != "" || got.PostalCode != "" {
		t.Fatalf("missing fields must normalize to zero values: %+v", got)
	}
}

func TestDecodePlaceDetailsDomestic(t *testing.T) {
	body := `{
		"Lat": -6.2,
		"long": 106.8,
		"completeLocation": {"formattedAddress":"Jalan Sudirman No.1","city":"Jakarta","postalCode":"10220","district":"Tanah Abang"},
		"districts": [
			{"DistrictID": 11, "districtName":"Tanah Abang", "cityId":"c1", "cityName":"Jakarta Pusat",
			 "provinceId":"p1","provinceName":"DKI Jakarta",
			 "postalCodes":[{"postalCode":"10220","description":"Bend. Hilir"},{"code":"10230"}]}
		]
	}`

	got, err := decodePlaceDetails([]byte(body), VariantDomestic)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.Coordinates.Latitude != -6.2 || got.Coordinates.Longitude != 106.8 {
		t.Fatalf("coordinates = %+v", got.Coordinates)
	}
	if got.Info.City != "Jakarta" || got.Info.District != "Tanah Abang" {
		t.Fatalf("info = %+v", got.Info)
	}
	if len(got.Info.DistrictsData) != 1 {
		t.Fatalf("districtsData len = %d", len(got.Info.DistrictsData))
	}
	district := got.Info.DistrictsData[0]
	if district.DistrictID != "11" {
		t.Errorf("numeric DistrictID not normalized: %q", district.DistrictID)
	}
	if len(district.PostalCodes) != 2 || district.PostalCodes[1].PostalCode != "10230" {
		t.Errorf("postal codes = %+v", district.PostalCodes)
	}
}

func TestDecodePlaceDetailsInternational(t *testing.T) {
	body := `{
		"lat": 1.35,
		"lng": 103.8,
		"locationInfo": {"address":"10 Bayfront Ave","city":"Singapore","countryCode":"SG"},
		"cityList": [{"cityId":"sg1","cityName":"Singapore"},{"name":"Jurong"}]
	}`

	got, err := decodePlaceDetails([]byte(body), VariantInternational)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.Coordinates.Longitude != 103.8 {
		t.Fatalf("lng alias not coalesced: %+v", got.Coordinates)
	}
	if got.Info.FormattedAddress != "10 Bayfront Ave" {
		t.Fatalf("address alias not used: %q", got.Info.FormattedAddress)
	}
	if len(got.Info.CityList) != 2 || got.Info.CityList[1].CityName != "Jurong" {
		t.Fatalf("cityList = %+v", got.Info.CityList)
	}
}

func TestDecodePlaceDetailsDistrictFallback(t *testing.T) {
	body := `{
		"lat": -6.2, "long": 106.8,
		"completeLocation": {"formattedAddress":"Somewhere"},
		"districts": [{"districtId":"d9","districtName":"Setiabudi"}]
	}`

	got, err := decodePlaceDetails([]byte(body), VariantDomestic)
	if err != nil {
		t.Fatal(err)
	}
	if got.Info.District != "Setiabudi" {
		t.Fatalf("district must default from first entry, got %q", got.Info.District)
	}
}

func TestDecodePostalOptions(t *testing.T) {
	got, err := decodePostalOptions([]byte(`{"results":[{"id":3,"code":"10110","description":"Gambir"},{"description":"no code"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].ID != "3" || got[0].PostalCode != "10110" {
		t.Fatalf("option = %+v", got[0])
	}
}

package transport

import "testing"

func TestMatchDistrict(t *testing.T) {
	districts := []DistrictData{
		{DistrictID: "d1", DistrictName: "Tanah Abang", CityID: "c1", CityName: "Jakarta Pusat"},
		{DistrictID: "d2", DistrictName: "Menteng", CityID: "c1", CityName: "Jakarta Pusat"},
	}

	cases := []struct {
		name   string
		query  string
		wantID string
	}{
		{"exact match", "Menteng", "d2"},
		{"case-insensitive match", "tanah abang", "d1"},
		// No exact match falls back to the first entry so the selector
		// never looks unset once a place resolved.
		{"fallback to first", "Kemayoran", "d1"},
		{"empty query falls back", "", "d1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MatchDistrict(districts, tc.query)
			if got == nil {
				t.Fatal("expected a district, got nil")
			}
			if got.DistrictID != tc.wantID {
				t.Fatalf("district = %s, want %s", got.DistrictID, tc.wantID)
			}
		})
	}

	if MatchDistrict(nil, "anything") != nil {
		t.Fatal("empty district list must return nil")
	}
}

func TestMatchPostalCode(t *testing.T) {
	codes := []PostalCode{
		{PostalCode: "10220"},
		{PostalCode: "10230"},
	}

	if got := MatchPostalCode(codes, "10230"); got == nil || got.PostalCode != "10230" {
		t.Fatalf("exact match failed: %+v", got)
	}
	if got := MatchPostalCode(codes, "99999"); got == nil || got.PostalCode != "10220" {
		t.Fatalf("fallback to first failed: %+v", got)
	}
	if MatchPostalCode(nil, "10220") != nil {
		t.Fatal("empty code list must return nil")
	}
}

func TestFromDetailsUsesSingleSource(t *testing.T) {
	details := LocationDetails{
		Coordinates: Coordinates{Latitude: -6.2, Longitude: 106.8},
		Info: LocationInfo{
			AddressComponents: AddressComponents{
				FormattedAddress: "Jalan Sudirman No.1",
				City:             "Jakarta",
				Province:         "DKI Jakarta",
				Country:          "Indonesia",
				PostalCode:       "10220",
				CountryCode:      "ID",
				PlaceID:          "p1",
			},
			District: "Tanah Abang",
		},
	}

	sel := FromDetails(details)

	if sel.Address != "Jalan Sudirman No.1" || sel.City != "Jakarta" ||
		sel.District != "Tanah Abang" || sel.PostalCode != "10220" ||
		sel.Coordinates != details.Coordinates || sel.PlaceID != "p1" {
		t.Fatalf("unexpected committed record: %+v", sel)
	}
}

func TestFormFieldsContract(t *testing.T) {
	details := LocationDetails{
		Coordinates: Coordinates{Latitude: -6.2, Longitude: 106.8},
		Info: LocationInfo{
			AddressComponents: AddressComponents{
				FormattedAddress: "Jalan Sudirman No.1",
				City:             "Jakarta",
				PostalCode:       "10220",
			},
			District: "Tanah Abang",
			DistrictsData: []DistrictData{
				{
					DistrictID:   "d1",
					DistrictName: "Tanah Abang",
					CityID:       "c1",
					CityName:     "Jakarta Pusat",
					ProvinceID:   "p1",
					ProvinceName: "DKI Jakarta",
					PostalCodes:  []PostalCode{{PostalCode: "10220"}},
				},
			},
		},
	}
	sel := FromDetails(details)

	fields := FormFields(sel, &details)

	want := map[string]string{
		FieldAddressDetail:    "Jalan Sudirman No.1",
		FieldAddressFormatted: "Jalan Sudirman No.1",
		FieldLatitude:         "-6.2",
		FieldLongitude:        "106.8",
		FieldCityID:           "c1",
		FieldCityName:         "Jakarta Pusat",
		FieldProvinceID:       "p1",
		FieldProvinceName:     "DKI Jakarta",
		FieldDistrictID:       "d1",
		FieldDistrictName:     "Tanah Abang",
		FieldPostalCode:       "10220",
	}
	for key, value := range want {
		if fields[key] != value {
			t.Errorf("%s = %q, want %q", key, fields[key], value)
		}
	}
	if len(fields) != len(want) {
		t.Fatalf("field count = %d, want %d", len(fields), len(want))
	}
}

func TestFormFieldsWithoutDetail(t *testing.T) {
	sel := SelectedLocation{
		Address:     "-6.2000, 106.8000",
		Coordinates: Coordinates{Latitude: -6.2, Longitude: 106.8},
	}

	fields := FormFields(sel, nil)

	if fields[FieldDistrictID] != "" || fields[FieldCityID] != "" || fields[FieldProvinceID] != "" {
		t.Fatal("coordinates-only commits must leave ID fields empty")
	}
	if fields[FieldAddressDetail] != sel.Address {
		t.Fatalf("address = %q", fields[FieldAddressDetail])
	}
}

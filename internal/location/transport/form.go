package transport

import "strconv"

// Fixed hidden-field names consumed by the surrounding CRUD forms. This
// contract is the integration surface with those forms and must not change.
const (
	FieldAddressDetail    = "location.addressDetail"
	FieldAddressFormatted = "location.addressFormatted"
	FieldLatitude         = "location.coordinates.latitude"
	FieldLongitude        = "location.coordinates.longitude"
	FieldCityID           = "location.city.cityId"
	FieldCityName         = "location.city.cityName"
	FieldProvinceID       = "location.province.provinceId"
	FieldProvinceName     = "location.province.provinceName"
	FieldDistrictID       = "location.district.districtId"
	FieldDistrictName     = "location.district.districtName"
	FieldPostalCode       = "location.postalCode"
)

// FormFields flattens the committed location into the hidden-field map bound
// to the enclosing form. City/province/district IDs are derived from the
// place detail's district data via the auto-select match; when no detail is
// available (coordinates-only commits) the ID fields stay empty and the name
// fields carry whatever the committed record holds.
func FormFields(sel SelectedLocation, detail *LocationDetails) map[string]string {
	fields := map[string]string{
		FieldAddressDetail:    sel.Address,
		FieldAddressFormatted: sel.Address,
		FieldLatitude:         formatCoordinate(sel.Coordinates.Latitude),
		FieldLongitude:        formatCoordinate(sel.Coordinates.Longitude),
		FieldCityID:           "",
		FieldCityName:         sel.City,
		FieldProvinceID:       "",
		FieldProvinceName:     sel.Province,
		FieldDistrictID:       "",
		FieldDistrictName:     sel.District,
		FieldPostalCode:       sel.PostalCode,
	}

	if detail == nil {
		return fields
	}

	if match := MatchDistrict(detail.Info.DistrictsData, sel.District); match != nil {
		fields[FieldDistrictID] = match.DistrictID
		fields[FieldDistrictName] = match.DistrictName
		fields[FieldCityID] = match.CityID
		if match.CityName != "" {
			fields[FieldCityName] = match.CityName
		}
		fields[FieldProvinceID] = match.ProvinceID
		if match.ProvinceName != "" {
			fields[FieldProvinceName] = match.ProvinceName
		}
		if fields[FieldPostalCode] == "" {
			if code := MatchPostalCode(match.PostalCodes, sel.PostalCode); code != nil {
				fields[FieldPostalCode] = code.PostalCode
			}
		}
	}

	return fields
}

func formatCoordinate(value float64) string {
	if value == 0 {
		return ""
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

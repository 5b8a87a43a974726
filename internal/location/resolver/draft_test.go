package resolver

import (
	"context"
	"errors"
	"testing"

	"backoffice_portal_backend/internal/location/transport"
)

func modalProvider() *fakeProvider {
	return &fakeProvider{
		reverseFn: func(ctx context.Context, lat, lng float64) (transport.AddressComponents, error) {
			return transport.AddressComponents{FormattedAddress: "Jalan Hasil Drag", City: "Jakarta", PlaceID: "drag-place"}, nil
		},
		detailsFn: func(ctx context.Context, placeID string) (transport.LocationDetails, error) {
			switch placeID {
			case "drag-place":
				return transport.LocationDetails{
					Coordinates: transport.Coordinates{Latitude: -6.21, Longitude: 106.81},
					Info: transport.LocationInfo{
						AddressComponents: transport.AddressComponents{FormattedAddress: "Jalan Hasil Drag", City: "Jakarta", PlaceID: placeID},
						District:          "Tanah Abang",
						DistrictsData:     sampleDetails.Info.DistrictsData,
					},
				}, nil
			case "sel-place":
				return transport.LocationDetails{
					Coordinates: transport.Coordinates{Latitude: -6.3, Longitude: 106.9},
					Info: transport.LocationInfo{
						AddressComponents: transport.AddressComponents{FormattedAddress: "Jalan Hasil Pilihan", City: "Jakarta", PlaceID: placeID},
						District:          "Tanah Abang",
						DistrictsData:     sampleDetails.Info.DistrictsData,
					},
				}, nil
			default:
				return transport.LocationDetails{}, errors.New("unknown place")
			}
		},
		searchFn: func(ctx context.Context, query string) ([]transport.LocationSuggestion, error) {
			return []transport.LocationSuggestion{{ID: "sel-place", Title: "Jalan Hasil Pilihan"}}, nil
		},
	}
}

// Closing the modal without committing must leave the outer state exactly as
// it was, no matter what happened inside the draft.
func TestModalDiscardLeavesCommittedStateUntouched(t *testing.T) {
	initial := transport.SelectedLocation{
		Address:     "Jalan Asli 1",
		City:        "Bandung",
		PostalCode:  "40111",
		Coordinates: transport.Coordinates{Latitude: -6.9, Longitude: 107.6},
	}
	s := newTestSession(modalProvider(), SessionOptions{Initial: &initial})
	defer s.Close()

	before := s.Snapshot()

	if err := s.OpenModal(ModalDetail, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.ModalDrag(transport.Coordinates{Latitude: -6.2, Longitude: 106.8}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		snap := s.Snapshot()
		return snap.Modal != nil && snap.Modal.Geocode.ReverseGeocodedData != nil
	})

	s.CloseModal()

	after := s.Snapshot()
	if *after.Context.SelectedLocation != *before.Context.SelectedLocation {
		t.Fatalf("committed location changed:\n before %+v\n after  %+v",
			*before.Context.SelectedLocation, *after.Context.SelectedLocation)
	}
	if after.Context.Coordinates != before.Context.Coordinates {
		t.Fatalf("coordinates changed: %+v", after.Context.Coordinates)
	}
	if after.Context.ActiveModal != ModalNone || after.Modal != nil {
		t.Fatal("modal state must be fully torn down")
	}
}

// Drag first, then pick a search result: the explicit selection outranks the
// drag chain on commit.
func TestSearchSelectionOutranksDragOnCommit(t *testing.T) {
	bus := &recordingBus{}
	s := newTestSession(modalProvider(), SessionOptions{Bus: bus})
	defer s.Close()

	if err := s.OpenModal(ModalDetail, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.ModalDrag(transport.Coordinates{Latitude: -6.2, Longitude: 106.8}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		snap := s.Snapshot()
		return snap.Modal != nil && snap.Modal.Geocode.PlaceDetails != nil
	})

	if err := s.ModalSelect(context.Background(), transport.LocationSuggestion{ID: "sel-place", Title: "Jalan Hasil Pilihan"}); err != nil {
		t.Fatal(err)
	}
	if err := s.ModalCommit(); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	sel := snap.Context.SelectedLocation
	if sel == nil || sel.Address != "Jalan Hasil Pilihan" {
		t.Fatalf("commit must use the search selection, got %+v", sel)
	}
	if len(snap.Context.PostalOptions) == 0 {
		t.Fatal("a search-selection commit carries postal options")
	}

	commits := bus.commits()
	if len(commits) != 1 || commits[0].Source != string(transport.SourceSearch) {
		t.Fatalf("commit source = %+v", commits)
	}
}

// The inverse order: a drag after a selection invalidates the selection, so
// the drag chain's enrichment wins.
func TestDragInvalidatesEarlierSelection(t *testing.T) {
	bus := &recordingBus{}
	s := newTestSession(modalProvider(), SessionOptions{Bus: bus})
	defer s.Close()

	if err := s.OpenModal(ModalDetail, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.ModalSelect(context.Background(), transport.LocationSuggestion{ID: "sel-place", Title: "Jalan Hasil Pilihan"}); err != nil {
		t.Fatal(err)
	}
	if err := s.ModalDrag(transport.Coordinates{Latitude: -6.2, Longitude: 106.8}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		snap := s.Snapshot()
		return snap.Modal != nil && snap.Modal.Geocode.PlaceDetails != nil && !snap.Modal.HasSearchSelection
	})

	if err := s.ModalCommit(); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	if got := snap.Context.SelectedLocation.Address; got != "Jalan Hasil Drag" {
		t.Fatalf("commit must use the drag chain, got %q", got)
	}
	commits := bus.commits()
	if len(commits) != 1 || commits[0].Source != string(transport.SourceDrag) {
		t.Fatalf("commit source = %+v", commits)
	}
}

// A drag whose reverse geocode has no place identifier stops at the coarse
// address: the commit uses it as-is and carries no postal options.
func TestRawReverseGeocodeCommit(t *testing.T) {
	provider := modalProvider()
	provider.reverseFn = func(ctx context.Context, lat, lng float64) (transport.AddressComponents, error) {
		return transport.AddressComponents{FormattedAddress: "Jalan Tanpa Place ID", City: "Depok"}, nil
	}
	bus := &recordingBus{}
	s := newTestSession(provider, SessionOptions{Bus: bus})
	defer s.Close()

	if err := s.OpenModal(ModalDetail, nil); err != nil {
		t.Fatal(err)
	}
	dragTo := transport.Coordinates{Latitude: -6.4, Longitude: 106.82}
	if err := s.ModalDrag(dragTo); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		snap := s.Snapshot()
		return snap.Modal != nil && snap.Modal.Geocode.ReverseGeocodedData != nil
	})

	if err := s.ModalCommit(); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	sel := snap.Context.SelectedLocation
	if sel.Address != "Jalan Tanpa Place ID" || sel.Coordinates != dragTo {
		t.Fatalf("selected = %+v", sel)
	}
	if len(snap.Context.PostalOptions) != 0 {
		t.Fatal("raw reverse-geocode commits never carry postal options")
	}
	commits := bus.commits()
	if len(commits) != 1 || commits[0].Source != string(transport.SourceGeocode) {
		t.Fatalf("commit source = %+v", commits)
	}
}

// With no drag and no selection the commit falls back to a synthetic
// coordinates-only record.
func TestCoordinatesOnlyFallbackCommit(t *testing.T) {
	bus := &recordingBus{}
	s := newTestSession(modalProvider(), SessionOptions{Bus: bus})
	defer s.Close()

	override := transport.Coordinates{Latitude: -6.175392, Longitude: 106.827153}
	if err := s.OpenModal(ModalDetail, &override); err != nil {
		t.Fatal(err)
	}
	if err := s.ModalCommit(); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	sel := snap.Context.SelectedLocation
	if sel.Address != "-6.1754, 106.8272" {
		t.Fatalf("synthetic address = %q", sel.Address)
	}
	if sel.Coordinates != override {
		t.Fatalf("coordinates = %+v", sel.Coordinates)
	}
	if len(snap.Context.PostalOptions) != 0 {
		t.Fatal("coordinates-only commits never carry postal options")
	}
	commits := bus.commits()
	if len(commits) != 1 || commits[0].Source != string(transport.SourceCoordinates) {
		t.Fatalf("commit source = %+v", commits)
	}
}

func TestModalSearchScopedToDraft(t *testing.T) {
	s := newTestSession(modalProvider(), SessionOptions{})
	defer s.Close()

	if err := s.OpenModal(ModalDetail, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.ModalSearch(context.Background(), "jalan"); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	if snap.Modal == nil || len(snap.Modal.SearchResults) != 1 {
		t.Fatalf("draft results = %+v", snap.Modal)
	}
	if len(snap.Context.SearchResults) != 0 {
		t.Fatal("modal search must not leak into the outer search results")
	}

	// Short queries clear the draft results without a provider call.
	if err := s.ModalSearch(context.Background(), "ja"); err != nil {
		t.Fatal(err)
	}
	if got := s.Snapshot().Modal.SearchResults; len(got) != 0 {
		t.Fatalf("short query must clear draft results, got %+v", got)
	}
}

func TestModalOperationsRequireOpenModal(t *testing.T) {
	s := newTestSession(modalProvider(), SessionOptions{})
	defer s.Close()

	if err := s.ModalDrag(transport.Coordinates{Latitude: 1, Longitude: 1}); err == nil {
		t.Fatal("drag without an open modal must fail")
	}
	if err := s.ModalCommit(); err == nil {
		t.Fatal("commit without an open modal must fail")
	}
	if err := s.OpenModal(ModalKind("bogus"), nil); err == nil {
		t.Fatal("unknown modal kind must be rejected")
	}

	// The postal modal opens without creating a pin-point draft.
	if err := s.OpenModal(ModalPostal, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.ModalDrag(transport.Coordinates{Latitude: 1, Longitude: 1}); err == nil {
		t.Fatal("postal modal has no draft to drag")
	}
	snap := s.Snapshot()
	if snap.Context.ActiveModal != ModalPostal || snap.Modal != nil {
		t.Fatalf("modal state = %q / %+v", snap.Context.ActiveModal, snap.Modal)
	}
}

// A commit closes whichever modal is open as part of the same atomic step.
func TestCommitClosesModalAtomically(t *testing.T) {
	s := newTestSession(modalProvider(), SessionOptions{})
	defer s.Close()

	if err := s.OpenModal(ModalDetail, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.ModalSelect(context.Background(), transport.LocationSuggestion{ID: "sel-place", Title: "Jalan Hasil Pilihan"}); err != nil {
		t.Fatal(err)
	}
	if err := s.ModalCommit(); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	if snap.Context.ActiveModal != ModalNone || snap.Modal != nil {
		t.Fatal("commit must close the modal")
	}
	if err := s.ModalCommit(); err == nil {
		t.Fatal("second commit must find no open modal")
	}
}

package bedlayout

import "strconv"

// Zone labels from the vendor bed layout. Zones address the same physical
// space as racks but along the vendor's axis; the wire format speaks zones
// while the layout speaks racks.
type Zone string

const (
	ZoneSolvent Zone = "Solvent Zone"
	ZoneSample  Zone = "Sample Zone"
	ZoneStock   Zone = "Stock Zone"
	ZoneMix     Zone = "Mix Zone"
	ZoneInject  Zone = "Injection Zone"
)

// Rack ids of the physical racks present on the bed.
const (
	RackCarrier = "Carrier"
	RackRinse   = "Rinse"
	RackSolvent = "Solvent"
	RackSamples = "Samples"
	RackStock   = "Stock"
	RackMix     = "Mix"
	RackInject  = "Inject"
)

var zoneToRack = map[Zone]string{
	ZoneSolvent: RackSolvent,
	ZoneSample:  RackSamples,
	ZoneStock:   RackStock,
	ZoneMix:     RackMix,
	ZoneInject:  RackInject,
}

var rackToZone = func() map[string]Zone {
	m := make(map[string]Zone, len(zoneToRack))
	for z, r := range zoneToRack {
		m[r] = z
	}
	return m
}()

// ZoneWellToLayoutWell translates a vendor (zone, well) address to the layout
// (rack, well number) address. Unknown zones pass through as rack ids.
func ZoneWellToLayoutWell(zone Zone, wellNumber string) (string, int, error) {
	n, err := strconv.Atoi(wellNumber)
	if err != nil {
		return "", 0, err
	}
	if rack, ok := zoneToRack[zone]; ok {
		return rack, n, nil
	}
	return string(zone), n, nil
}

// LayoutWellToZoneWell translates a layout (rack, well number) address to the
// vendor (zone, well) address. Unknown racks pass through unchanged.
func LayoutWellToZoneWell(rackID string, wellNumber int) (Zone, string) {
	if zone, ok := rackToZone[rackID]; ok {
		return zone, strconv.Itoa(wellNumber)
	}
	return Zone(rackID), strconv.Itoa(wellNumber)
}

// DefaultLayout builds the production bed geometry, used when no layout
// snapshot exists yet.
func DefaultLayout() *LHBedLayout {
	layout := &LHBedLayout{}
	layout.AddRack(RackCarrier, Rack{Columns: 1, Rows: 1, MaxVolume: 2000.0, MinVolume: 300.0, Style: "grid", Height: 200, Width: 200, YTranslate: 100, Shape: "rect", Editable: true})
	layout.AddRack(RackRinse, Rack{Columns: 1, Rows: 1, MaxVolume: 1000.0, MinVolume: 300.0, Style: "grid", Height: 200, Width: 200, YTranslate: 300, Shape: "rect", Editable: true})
	layout.AddRack(RackSolvent, Rack{Columns: 3, Rows: 1, MaxVolume: 700.0, MinVolume: 10.0, Style: "grid", Height: 200, Width: 900, XTranslate: 200, Shape: "rect", Editable: true})
	layout.AddRack(RackSamples, Rack{Columns: 4, Rows: 15, MaxVolume: 2, MinVolume: 0.1, Style: "grid", Height: 800, Width: 300, XTranslate: 200, YTranslate: 200, Shape: "circle", Editable: true})
	layout.AddRack(RackStock, Rack{Columns: 2, Rows: 7, MaxVolume: 40, MinVolume: 0.5, Style: "grid", Height: 800, Width: 300, XTranslate: 500, YTranslate: 200, Shape: "circle", Editable: true})
	layout.AddRack(RackMix, Rack{Columns: 4, Rows: 20, MaxVolume: 8.5, MinVolume: 0.2, Style: "staggered", Height: 800, Width: 300, XTranslate: 800, YTranslate: 200, Shape: "circle", Editable: true})
	return layout
}

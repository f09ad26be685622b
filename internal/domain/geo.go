package domain

// cityCoordinates maps classifier location labels to fixed coordinates for the
// covered coastal cities. A static table keeps coordinate extraction free of
// network calls on the ingestion path.
var cityCoordinates = map[string]Geo{
	"mumbai":        {Lat: 19.0760, Lon: 72.8777},
	"chennai":       {Lat: 13.0827, Lon: 80.2707},
	"kolkata":       {Lat: 22.5726, Lon: 88.3639},
	"kochi":         {Lat: 9.9312, Lon: 76.2673},
	"visakhapatnam": {Lat: 17.6868, Lon: 83.2185},
	"goa":           {Lat: 15.2993, Lon: 74.1240},
}

// ExtractCoordinates resolves a recognized location label to its coordinates.
// Returns false when the location is empty or not in the table.
func ExtractCoordinates(location string) (Geo, bool) {
	geo, ok := cityCoordinates[location]
	return geo, ok
}

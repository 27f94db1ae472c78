package fake

import "github.com/breatheroute/takeoutfaker/internal/geo"

// anchors are representative coordinates per country code. A place pool is
// clustered around one of them.
var anchors = map[string][]geo.LatLng{
	"NL": {
		{Lat: 52.3676, Lon: 4.9041}, // Amsterdam Centraal
		{Lat: 52.3386, Lon: 4.8919}, // Amsterdam Zuid
		{Lat: 51.9244, Lon: 4.4777}, // Rotterdam Centraal
		{Lat: 52.0705, Lon: 4.3007}, // Den Haag Centraal
		{Lat: 52.0894, Lon: 5.1102}, // Utrecht Centraal
		{Lat: 51.4416, Lon: 5.4697}, // Eindhoven Centraal
		{Lat: 52.1664, Lon: 4.4819}, // Leiden Centraal
		{Lat: 52.3874, Lon: 4.6462}, // Haarlem
		{Lat: 52.0116, Lon: 4.3571}, // Delft
		{Lat: 52.1530, Lon: 5.3711}, // Amersfoort Centraal
		{Lat: 53.2194, Lon: 6.5665}, // Groningen
		{Lat: 51.8126, Lon: 5.8372}, // Nijmegen
	},
	"BE": {
		{Lat: 50.8503, Lon: 4.3517}, // Brussel
		{Lat: 51.2194, Lon: 4.4025}, // Antwerpen
		{Lat: 51.0543, Lon: 3.7174}, // Gent
	},
	"DE": {
		{Lat: 52.5200, Lon: 13.4050}, // Berlin
		{Lat: 50.9375, Lon: 6.9603},  // Köln
		{Lat: 53.5511, Lon: 9.9937},  // Hamburg
	},
}

var lastNames = []string{
	"de Jong", "Jansen", "de Vries", "van den Berg", "van Dijk", "Bakker",
	"Janssen", "Visser", "Smit", "Meijer", "de Boer", "Mulder", "de Groot",
	"Bos", "Vos", "Peters", "Hendriks", "van Leeuwen", "Dekker", "Brouwer",
	"de Wit", "Dijkstra", "Smits", "de Graaf", "van der Meer", "van der Linden",
	"Kok", "Jacobs", "de Haan", "Vermeulen", "van den Heuvel", "van der Veen",
	"van den Broek", "de Bruijn", "de Bruin", "van der Heijden", "Schouten",
	"van Beek", "Willems", "van Vliet", "van de Ven", "Hoekstra", "Maas",
	"Verhoeven", "Koster", "van Dam", "van der Wal", "Prins", "Blom", "Huisman",
}

var companySuffixes = []string{
	"BV", "V.O.F.", "Groep", "NV", "Bedrijf", "en Zonen", "Holding",
}

var companyPrefixes = []string{
	"Stichting", "Koninklijke", "Royal", "Coöperatie",
}

var streetSuffixes = []string{
	"straat", "weg", "laan", "plein", "dijk", "gracht", "singel", "kade",
	"steeg", "pad", "hof", "park",
}

var cities = []string{
	"Amsterdam", "Rotterdam", "Den Haag", "Utrecht", "Eindhoven", "Groningen",
	"Tilburg", "Almere", "Breda", "Nijmegen", "Apeldoorn", "Haarlem",
	"Arnhem", "Enschede", "Amersfoort", "Zaanstad", "Haarlemmermeer",
	"Zwolle", "Leiden", "Maastricht", "Dordrecht", "Delft", "Alkmaar",
	"Hilversum", "Purmerend", "Amstelveen", "Diemen", "Zandvoort",
}

const (
	lowerLetters = "abcdefghijklmnopqrstuvwxyz"
	upperLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	letters      = lowerLetters + upperLetters
	digits       = "0123456789"
)

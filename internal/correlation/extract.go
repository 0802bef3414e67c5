package correlation

import (
	"sort"
	"strings"
)

// Cheap extraction functions - no network, instant processing.
// Used to place news items on the map so they can be matched against job
// and organization locations.

// cityNames maps lower-case mentions to a canonical city and its state.
var cityNames = map[string]place{
	"dallas": {"Dallas", "TX"}, "houston": {"Houston", "TX"}, "austin": {"Austin", "TX"}, "san antonio": {"San Antonio", "TX"},
	"los angeles": {"Los Angeles", "CA"}, "la": {"Los Angeles", "CA"}, "san diego": {"San Diego", "CA"},
	"new york": {"New York", "NY"}, "nyc": {"New York", "NY"},
	"chicago": {"Chicago", "IL"},
	"phoenix": {"Phoenix", "AZ"},
	"philadelphia": {"Philadelphia", "PA"},
	"portland": {"Portland", "OR"},
	"seattle": {"Seattle", "WA"},
	"minneapolis": {"Minneapolis", "MN"},
	"denver": {"Denver", "CO"},
	"atlanta": {"Atlanta", "GA"},
	"miami": {"Miami", "FL"},
	"detroit": {"Detroit", "MI"},
	"boston": {"Boston", "MA"},
	"new orleans": {"New Orleans", "LA"},
}

// stateNames maps lower-case state names to postal codes.
var stateNames = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR", "california": "CA",
	"colorado": "CO", "connecticut": "CT", "delaware": "DE", "florida": "FL", "georgia": "GA",
	"hawaii": "HI", "idaho": "ID", "illinois": "IL", "indiana": "IN", "iowa": "IA",
	"kansas": "KS", "kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS", "missouri": "MO",
	"montana": "MT", "nebraska": "NE", "nevada": "NV", "new hampshire": "NH", "new jersey": "NJ",
	"new mexico": "NM", "north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC", "south dakota": "SD",
	"tennessee": "TN", "texas": "TX", "utah": "UT", "vermont": "VT", "virginia": "VA",
	"west virginia": "WV", "wisconsin": "WI", "wyoming": "WY",
	// "washington" is ambiguous with the capital; only the explicit form counts
	"washington state": "WA",
}

type place struct {
	City  string
	State string
}

// ExtractCities returns canonical city names mentioned in text, sorted.
func ExtractCities(text string) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]bool)
	var result []string
	for name, p := range cityNames {
		if containsWord(lower, name) && !seen[p.City] {
			seen[p.City] = true
			result = append(result, p.City)
		}
	}
	sort.Strings(result)
	return result
}

// ExtractStates returns postal codes for states mentioned by name in text,
// plus the states of any mentioned cities, sorted.
func ExtractStates(text string) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]bool)
	var result []string
	add := func(code string) {
		if !seen[code] {
			seen[code] = true
			result = append(result, code)
		}
	}
	for name, code := range stateNames {
		if containsWord(lower, name) {
			add(code)
		}
	}
	for name, p := range cityNames {
		if containsWord(lower, name) {
			add(p.State)
		}
	}
	sort.Strings(result)
	return result
}

// CityState returns the first city mentioned in text and its state. When no
// city is mentioned the first state mentioned is returned with an empty city.
func CityState(text string) (city, state string) {
	if cs := ExtractCities(text); len(cs) > 0 {
		for _, p := range cityNames {
			if p.City == cs[0] {
				return p.City, p.State
			}
		}
	}
	if ss := ExtractStates(text); len(ss) > 0 {
		return "", ss[0]
	}
	return "", ""
}

// containsWord checks if text contains word as a whole word (not substring)
func containsWord(text, word string) bool {
	idx := strings.Index(text, word)
	if idx < 0 {
		return false
	}

	// Check left boundary
	if idx > 0 && isAlphaNum(text[idx-1]) {
		return containsWord(text[idx+len(word):], word)
	}

	// Check right boundary
	end := idx + len(word)
	if end < len(text) && isAlphaNum(text[end]) {
		return containsWord(text[end:], word)
	}

	return true
}

func isAlphaNum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

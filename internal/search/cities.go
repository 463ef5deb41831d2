package search

import "strings"

// Cities the assistant recognizes in free text. Pattern matching keeps the
// extraction cheap; a proper NER pass can replace this later.
var knownCities = []string{
	"mumbai", "delhi", "bangalore", "bengaluru", "hyderabad", "chennai",
	"kolkata", "pune", "ahmedabad", "surat", "jaipur", "lucknow", "kanpur",
	"nagpur", "indore", "thane", "bhopal", "visakhapatnam", "patna",
	"vadodara", "ghaziabad", "ludhiana", "agra", "nashik", "faridabad",
	"meerut", "rajkot", "varanasi", "srinagar", "aurangabad", "amritsar",
	"navi mumbai", "prayagraj", "ranchi", "coimbatore", "gwalior",
	"jodhpur", "madurai", "raipur", "kota", "chandigarh", "guwahati",
	"mysore", "mysuru", "noida", "jamshedpur", "cuttack", "kochi",
	"dehradun", "kolhapur", "ajmer", "udaipur", "jammu", "mangalore",
	"thiruvananthapuram", "kozhikode",
}

// ExtractCities returns the known city names found in text, title-cased, in
// order of first appearance, without duplicates. Matching is whole-word and
// case-insensitive.
func ExtractCities(text string) []string {
	lower := strings.ToLower(text)

	type match struct {
		pos  int
		city string
	}
	var matches []match
	for _, city := range knownCities {
		if pos := indexWord(lower, city); pos >= 0 {
			matches = append(matches, match{pos: pos, city: city})
		}
	}

	// Order by position in the utterance.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].pos < matches[j-1].pos; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}

	seen := make(map[string]bool)
	var cities []string
	for _, m := range matches {
		if seen[m.city] {
			continue
		}
		seen[m.city] = true
		cities = append(cities, cityTitle(m.city))
	}
	return cities
}

// indexWord finds city in text at a word boundary, or -1.
func indexWord(text, city string) int {
	for from := 0; ; {
		pos := strings.Index(text[from:], city)
		if pos < 0 {
			return -1
		}
		pos += from
		end := pos + len(city)
		startOK := pos == 0 || !isWordByte(text[pos-1])
		endOK := end == len(text) || !isWordByte(text[end])
		if startOK && endOK {
			return pos
		}
		from = pos + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func cityTitle(city string) string {
	words := strings.Fields(city)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

package restaurant

import (
	"bytes"
	"encoding/json"
	"strings"
)

const suggestTemperature = 0.7

const suggestPrompt = `You are a restaurant recommendation expert. Find restaurants for: %s

Return restaurant data in JSON format with an array of restaurants, each having these fields:
- name (string)
- address (string)
- cuisine (string)
- rating (string or null)
- description (string)
- hours (string or null)
- price (string or null)
- phone (string or null)
- website (string or null)

Return at least 3-5 restaurants if available. Return ONLY the JSON array, no other text.`

// looseString accepts a JSON string, number or null. Models frequently
// return ratings as numbers despite being asked for strings.
type looseString struct {
	v *string
}

func (l *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		l.v = &s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	s = n.String()
	l.v = &s
	return nil
}

func (l looseString) or(def string) string {
	if l.v == nil || strings.TrimSpace(*l.v) == "" {
		return def
	}
	return *l.v
}

type suggestion struct {
	Name        looseString `json:"name"`
	Address     looseString `json:"address"`
	Cuisine     looseString `json:"cuisine"`
	Rating      looseString `json:"rating"`
	Description looseString `json:"description"`
	Hours       looseString `json:"hours"`
	Price       looseString `json:"price"`
	Phone       looseString `json:"phone"`
	Website     looseString `json:"website"`
}

// parseRestaurants extracts the JSON array between the first '[' and the
// last ']' of resp. Anything unparseable becomes a single entry carrying the
// raw text.
func parseRestaurants(resp, cuisine string) []Restaurant {
	start := strings.Index(resp, "[")
	end := strings.LastIndex(resp, "]")
	if start != -1 && end > start {
		var items []suggestion
		if err := json.Unmarshal([]byte(resp[start:end+1]), &items); err == nil {
			out := make([]Restaurant, 0, len(items))
			for _, it := range items {
				out = append(out, Restaurant{
					Name:        it.Name.or("Unknown Restaurant"),
					Address:     it.Address.or("Address not available"),
					Cuisine:     it.Cuisine.or(cuisine),
					Rating:      it.Rating.v,
					Description: it.Description.or("No description available"),
					Hours:       it.Hours.v,
					Price:       it.Price.v,
					Phone:       it.Phone.v,
					Website:     it.Website.v,
				})
			}
			return out
		}
	}

	return []Restaurant{{
		Name:        "Restaurant suggestions",
		Address:     "See description",
		Cuisine:     cuisine,
		Description: truncate(resp, 500),
	}}
}


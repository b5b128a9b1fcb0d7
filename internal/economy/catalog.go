package economy

import (
	"sort"
	"strconv"
	"strings"
)

// IsOpen reports whether city accepts trades.
func (s *GameState) IsOpen(city string) bool {
	for _, closed := range s.ClosedCities {
		if closed == city {
			return false
		}
	}
	return true
}

// SetPrices replaces the prices of the given items in city and leaves the
// others alone. Nothing is applied unless every entry is valid.
func (s *GameState) SetPrices(city string, prices map[string]int) error {
	items, ok := s.Market[city]
	if !ok {
		return notFound(ErrCityNotFound, city)
	}
	names := make([]string, 0, len(prices))
	for item := range prices {
		names = append(names, item)
	}
	sort.Strings(names)
	for _, item := range names {
		if _, known := items[item]; !known {
			return invalid(item, "%s does not trade %s", city, item)
		}
		if prices[item] < 0 {
			return invalid(item, "price must be a non-negative whole number, got %d", prices[item])
		}
	}
	for item, price := range prices {
		items[item] = price
	}
	return nil
}

// ParsePrices converts raw admin form values into prices.
func ParsePrices(raw map[string]string) (map[string]int, error) {
	names := make([]string, 0, len(raw))
	for item := range raw {
		names = append(names, item)
	}
	sort.Strings(names)

	out := make(map[string]int, len(raw))
	for _, item := range names {
		v, err := strconv.Atoi(strings.TrimSpace(raw[item]))
		if err != nil {
			return nil, invalid(item, "invalid input for item %s: please enter a valid number", item)
		}
		out[item] = v
	}
	return out, nil
}

// SetClosedCities replaces the closed set. Any city not listed is open. The
// depot can never be closed and unknown names are dropped.
func (s *GameState) SetClosedCities(cities []string) {
	seen := make(map[string]bool, len(cities))
	closed := make([]string, 0, len(cities))
	for _, city := range cities {
		if city == s.Rules.DepotCity || seen[city] {
			continue
		}
		if _, ok := s.Market[city]; !ok {
			continue
		}
		seen[city] = true
		closed = append(closed, city)
	}
	sort.Strings(closed)
	s.ClosedCities = closed
}

// PushNews replaces the broadcast message. No history is kept.
func (s *GameState) PushNews(message string) {
	s.BreakingNews = message
}

// SetSelectedCity moves the shared session to city.
func (s *GameState) SetSelectedCity(city string) error {
	if _, ok := s.Market[city]; !ok {
		return notFound(ErrCityNotFound, city)
	}
	s.SelectedCity = city
	return nil
}

// SetUpgradePricing replaces the upgrade cost parameters.
func (s *GameState) SetUpgradePricing(startCost, upgradeStep int) error {
	if startCost < 0 {
		return invalid("start_cost", "must not be negative, got %d", startCost)
	}
	if upgradeStep < 0 {
		return invalid("upgrade_step", "must not be negative, got %d", upgradeStep)
	}
	s.UpgradePricing = UpgradePricing{StartCost: startCost, UpgradeStep: upgradeStep}
	return nil
}

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"cargo-market/internal/economy"
)

//go:embed economy.yaml
var defaultEconomy []byte

// economyFile is the YAML shape. Nil fields are absent and leave the
// built-in value in place.
type economyFile struct {
	DepotCity       *string                 `yaml:"depot_city"`
	StartingBalance *int                    `yaml:"starting_balance"`
	SelectedCity    *string                 `yaml:"selected_city"`
	SelectedPlayer  *string                 `yaml:"selected_player"`
	Players         []string                `yaml:"players"`
	UpgradePricing  *economy.UpgradePricing `yaml:"upgrade_pricing"`
	Market          economy.Market          `yaml:"market"`
}

func (f economyFile) apply(d *economy.Defaults) {
	if f.DepotCity != nil {
		d.DepotCity = *f.DepotCity
	}
	if f.StartingBalance != nil {
		d.StartingBalance = *f.StartingBalance
	}
	if f.SelectedCity != nil {
		d.SelectedCity = *f.SelectedCity
	}
	if f.SelectedPlayer != nil {
		d.SelectedPlayer = *f.SelectedPlayer
	}
	if f.Players != nil {
		d.Players = f.Players
	}
	if f.UpgradePricing != nil {
		d.UpgradePricing = *f.UpgradePricing
	}
	if f.Market != nil {
		d.Market = f.Market
	}
}

// LoadEconomy returns the built-in economy, overridden field by field by the
// YAML file at path when path is set.
func LoadEconomy(path string) (economy.Defaults, error) {
	var d economy.Defaults
	var builtin economyFile
	if err := yaml.Unmarshal(defaultEconomy, &builtin); err != nil {
		return d, fmt.Errorf("economy.yaml: %w", err)
	}
	builtin.apply(&d)

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return d, fmt.Errorf("read economy file: %w", err)
		}
		var override economyFile
		if err := yaml.Unmarshal(raw, &override); err != nil {
			return d, fmt.Errorf("%s: %w", path, err)
		}
		override.apply(&d)
	}

	if err := validateEconomy(d); err != nil {
		return d, err
	}
	return d, nil
}

func validateEconomy(d economy.Defaults) error {
	var errs []error
	if strings.TrimSpace(d.DepotCity) == "" {
		errs = append(errs, errors.New("depot_city must not be empty"))
	}
	if d.UpgradePricing.StartCost < 0 || d.UpgradePricing.UpgradeStep < 0 {
		errs = append(errs, errors.New("upgrade_pricing must not be negative"))
	}
	for city, items := range d.Market {
		for item, price := range items {
			if price < 0 {
				errs = append(errs, fmt.Errorf("market %s/%s: negative price %d", city, item, price))
			}
		}
	}
	if _, ok := d.Market[d.SelectedCity]; !ok && d.SelectedCity != d.DepotCity {
		errs = append(errs, fmt.Errorf("selected_city %q is not in the market", d.SelectedCity))
	}
	seen := make(map[string]bool, len(d.Players))
	for _, name := range d.Players {
		if strings.TrimSpace(name) == "" || seen[name] {
			errs = append(errs, fmt.Errorf("players: blank or duplicate name %q", name))
		}
		seen[name] = true
	}
	if len(d.Players) > 0 && !seen[d.SelectedPlayer] {
		errs = append(errs, fmt.Errorf("selected_player %q is not a default player", d.SelectedPlayer))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid economy: %w", errors.Join(errs...))
	}
	return nil
}

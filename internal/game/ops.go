package game

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"cargo-market/internal/analytics"
	"cargo-market/internal/economy"
)

// Buy buys item for player in the selected city. An empty player acts as the
// selected player.
func (e *Engine) Buy(ctx context.Context, player, item string) (int, error) {
	var balance int
	err := e.mutate(ctx, "buy", logrus.Fields{"player": player, "item": item}, func(s *economy.GameState, now time.Time) error {
		var err error
		balance, err = s.Buy(actor(s, player), s.SelectedCity, item, now)
		return err
	})
	return balance, err
}

// Sell sells the item in 1-based cargo slot in the selected city.
func (e *Engine) Sell(ctx context.Context, player string, slot int) (int, error) {
	var balance int
	err := e.mutate(ctx, "sell", logrus.Fields{"player": player, "slot": slot}, func(s *economy.GameState, now time.Time) error {
		var err error
		balance, err = s.Sell(actor(s, player), s.SelectedCity, slot, now)
		return err
	})
	return balance, err
}

func (e *Engine) ClearSlot(ctx context.Context, player string, slot int) error {
	return e.mutate(ctx, "clear_slot", logrus.Fields{"player": player, "slot": slot}, func(s *economy.GameState, _ time.Time) error {
		return s.ClearSlot(actor(s, player), slot)
	})
}

// UpgradeCapacity buys one more cargo slot; the selected city must be the
// depot.
func (e *Engine) UpgradeCapacity(ctx context.Context, player string) (economy.Upgrade, error) {
	var up economy.Upgrade
	err := e.mutate(ctx, "upgrade_capacity", logrus.Fields{"player": player}, func(s *economy.GameState, now time.Time) error {
		var err error
		up, err = s.UpgradeCapacity(actor(s, player), s.SelectedCity, now)
		return err
	})
	return up, err
}

func (e *Engine) SetSelectedCity(ctx context.Context, city string) error {
	return e.mutate(ctx, "set_city", logrus.Fields{"city": city}, func(s *economy.GameState, _ time.Time) error {
		return s.SetSelectedCity(city)
	})
}

func (e *Engine) SetSelectedPlayer(ctx context.Context, name string) error {
	return e.mutate(ctx, "set_player", logrus.Fields{"player": name}, func(s *economy.GameState, _ time.Time) error {
		return s.SetSelectedPlayer(name)
	})
}

func (e *Engine) SetPrices(ctx context.Context, city string, prices map[string]int) error {
	return e.mutate(ctx, "set_prices", logrus.Fields{"city": city}, func(s *economy.GameState, _ time.Time) error {
		return s.SetPrices(city, prices)
	})
}

// SetClosedCities replaces the closed set and returns it as stored.
func (e *Engine) SetClosedCities(ctx context.Context, cities []string) ([]string, error) {
	var closed []string
	err := e.mutate(ctx, "set_closed_cities", nil, func(s *economy.GameState, _ time.Time) error {
		s.SetClosedCities(cities)
		closed = append([]string{}, s.ClosedCities...)
		return nil
	})
	return closed, err
}

func (e *Engine) PushNews(ctx context.Context, message string) error {
	return e.mutate(ctx, "push_news", nil, func(s *economy.GameState, _ time.Time) error {
		s.PushNews(message)
		return nil
	})
}

func (e *Engine) SetUpgradePricing(ctx context.Context, startCost, upgradeStep int) error {
	fields := logrus.Fields{"start_cost": startCost, "upgrade_step": upgradeStep}
	return e.mutate(ctx, "set_upgrade_pricing", fields, func(s *economy.GameState, _ time.Time) error {
		return s.SetUpgradePricing(startCost, upgradeStep)
	})
}

// AddPlayer reports false, without error, when name is blank or taken.
func (e *Engine) AddPlayer(ctx context.Context, name string) (bool, error) {
	added := false
	err := e.mutate(ctx, "add_player", logrus.Fields{"player": name}, func(s *economy.GameState, now time.Time) error {
		if !s.AddPlayer(name, now) {
			return errNoChange
		}
		added = true
		return nil
	})
	return added && err == nil, err
}

func (e *Engine) RenamePlayer(ctx context.Context, oldName, newName string) (bool, error) {
	renamed := false
	err := e.mutate(ctx, "rename_player", logrus.Fields{"player": oldName, "new_name": newName}, func(s *economy.GameState, _ time.Time) error {
		if !s.RenamePlayer(oldName, newName) {
			return errNoChange
		}
		renamed = true
		return nil
	})
	return renamed && err == nil, err
}

func (e *Engine) DeletePlayer(ctx context.Context, name string) (bool, error) {
	deleted := false
	err := e.mutate(ctx, "delete_player", logrus.Fields{"player": name}, func(s *economy.GameState, _ time.Time) error {
		if !s.DeletePlayer(name) {
			return errNoChange
		}
		deleted = true
		return nil
	})
	return deleted && err == nil, err
}

func (e *Engine) AdjustBalance(ctx context.Context, player string, delta int) (int, error) {
	var balance int
	err := e.mutate(ctx, "adjust_balance", logrus.Fields{"player": player, "delta": delta}, func(s *economy.GameState, now time.Time) error {
		var err error
		balance, err = s.AdjustBalance(actor(s, player), delta, now)
		return err
	})
	return balance, err
}

// AdjustBalances applies several adjustments as one operation. Zero deltas
// are skipped. Either every adjustment lands or none does.
func (e *Engine) AdjustBalances(ctx context.Context, deltas map[string]int) (map[string]int, error) {
	balances := make(map[string]int, len(deltas))
	err := e.mutate(ctx, "adjust_balances", logrus.Fields{"players": len(deltas)}, func(s *economy.GameState, now time.Time) error {
		names := make([]string, 0, len(deltas))
		for name, delta := range deltas {
			if delta != 0 {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			return errNoChange
		}
		sort.Strings(names)
		for _, name := range names {
			bal, err := s.AdjustBalance(name, deltas[name], now)
			if err != nil {
				return err
			}
			balances[name] = bal
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return balances, nil
}

// ResetGame replaces everything with a fresh default game.
func (e *Engine) ResetGame(ctx context.Context) error {
	return e.mutate(ctx, "reset", nil, func(s *economy.GameState, _ time.Time) error {
		*s = *e.defaults.NewGameState()
		return nil
	})
}

// MoneySeries resamples every player's balance over the last hours.
func (e *Engine) MoneySeries(hours int) analytics.Series {
	view := e.View()
	return analytics.MoneySeries(view, hours, e.now())
}

func (e *Engine) Popularity(hours int) analytics.Report {
	view := e.View()
	return analytics.Popularity(view, hours, e.now())
}

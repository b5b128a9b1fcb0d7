package economy

import (
	"fmt"
	"time"
)

// Buy places item in the player's first empty cargo slot and debits its
// price in city. It returns the new balance.
func (s *GameState) Buy(name, city, item string, now time.Time) (int, error) {
	p, err := s.Player(name)
	if err != nil {
		return 0, err
	}
	if !s.IsOpen(city) {
		return p.Balance, reject(ErrCityClosed, "%s is currently closed.", city)
	}
	if p.firstEmptySlot() < 0 {
		return p.Balance, reject(ErrCargoFull, "All cargo spaces full. Consider a truck upgrade.")
	}
	price, ok := s.Market.Price(city, item)
	if !ok {
		return p.Balance, reject(ErrItemNotFound, "%s is not sold in %s.", item, city)
	}

	// Lowest index first; price does not depend on the slot.
	slot := p.firstEmptySlot()
	if p.Balance < price {
		return p.Balance, reject(ErrInsufficientFunds, "Insufficient funds: %s costs €%d, you have €%d.", item, price, p.Balance)
	}

	p.Cargo[slot] = item
	p.Balance -= price
	p.record(fmt.Sprintf("Bought %s for €%d in %s.", item, price, city), now)
	return p.Balance, nil
}

// Sell sells the item held in 1-based cargo space at city's price.
func (s *GameState) Sell(name, city string, space int, now time.Time) (int, error) {
	p, err := s.Player(name)
	if err != nil {
		return 0, err
	}
	if !s.IsOpen(city) {
		return p.Balance, reject(ErrCityClosed, "%s is currently closed.", city)
	}
	idx, ok := p.slotIndex(space)
	if !ok {
		return p.Balance, reject(ErrInvalidSlot, "Invalid cargo space %d.", space)
	}
	item := p.Cargo[idx]
	if item == "" {
		return p.Balance, reject(ErrEmptySlot, "Cargo space %d is empty.", space)
	}
	price, ok := s.Market.Price(city, item)
	if !ok {
		return p.Balance, reject(ErrUnsoldHere, "%s does not demand %s.", city, item)
	}

	p.Cargo[idx] = ""
	p.Balance += price
	p.record(fmt.Sprintf("Sold %s for €%d in %s.", item, price, city), now)
	return p.Balance, nil
}

// ClearSlot dumps whatever is in 1-based cargo space. It has no economic
// effect and leaves no log entry.
func (s *GameState) ClearSlot(name string, space int) error {
	p, err := s.Player(name)
	if err != nil {
		return err
	}
	idx, ok := p.slotIndex(space)
	if !ok {
		return reject(ErrInvalidSlot, "Invalid cargo space %d.", space)
	}
	p.Cargo[idx] = ""
	return nil
}

// Upgrade is the result of a truck upgrade.
type Upgrade struct {
	Balance  int `json:"balance"`
	Capacity int `json:"capacity"`
	Cost     int `json:"cost"`
}

// UpgradeCapacity adds one empty cargo slot at the end when the player is at
// the depot and can pay for it.
func (s *GameState) UpgradeCapacity(name, city string, now time.Time) (Upgrade, error) {
	p, err := s.Player(name)
	if err != nil {
		return Upgrade{}, err
	}
	current := Upgrade{Balance: p.Balance, Capacity: p.Capacity}
	if city != s.Rules.DepotCity {
		return current, reject(ErrWrongLocation, "Upgrades only available in the %s.", s.Rules.DepotCity)
	}
	cost := s.UpgradePricing.Cost(p.Capacity)
	current.Cost = cost
	if p.Balance < cost {
		return current, reject(ErrInsufficientFunds, "Not enough cash for that upgrade: it costs €%d, you have €%d.", cost, p.Balance)
	}

	p.Balance -= cost
	p.Capacity++
	p.Cargo = append(p.Cargo, "")
	p.record(fmt.Sprintf("Upgraded truck to %d pallets for €%d.", p.Capacity, cost), now)
	return Upgrade{Balance: p.Balance, Capacity: p.Capacity, Cost: cost}, nil
}

// AdjustBalance applies an administrative credit or debit. The balance may
// go negative.
func (s *GameState) AdjustBalance(name string, delta int, now time.Time) (int, error) {
	p, err := s.Player(name)
	if err != nil {
		return 0, err
	}
	p.Balance += delta
	p.record(fmt.Sprintf("Admin adjustment: €%+d", delta), now)
	return p.Balance, nil
}

package economy

import (
	"strings"
	"time"
)

// AddPlayer creates a player with the configured starting balance and seeds
// the ledger with one balance snapshot so analytics have a starting point.
// Blank or taken names are ignored; the result reports whether a player was
// created.
func (s *GameState) AddPlayer(name string, now time.Time) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	if _, taken := s.Players[name]; taken {
		return false
	}
	p := NewPlayer(s.Rules.StartingBalance)
	p.recordBalance(now)
	s.Players[name] = p
	return true
}

// RenamePlayer moves a player to a new key. Selection follows the player.
func (s *GameState) RenamePlayer(oldName, newName string) bool {
	newName = strings.TrimSpace(newName)
	p, ok := s.Players[oldName]
	if !ok || newName == "" {
		return false
	}
	if _, taken := s.Players[newName]; taken {
		return false
	}
	delete(s.Players, oldName)
	s.Players[newName] = p
	if s.SelectedPlayer == oldName {
		s.SelectedPlayer = newName
	}
	return true
}

// DeletePlayer removes a player entirely. If it was selected, selection falls
// back to the first remaining name in sorted order, or to none.
func (s *GameState) DeletePlayer(name string) bool {
	if _, ok := s.Players[name]; !ok {
		return false
	}
	delete(s.Players, name)
	if s.SelectedPlayer == name {
		s.SelectedPlayer = ""
		if names := s.PlayerNames(); len(names) > 0 {
			s.SelectedPlayer = names[0]
		}
	}
	return true
}

// SetSelectedPlayer changes which player the shared session acts as.
func (s *GameState) SetSelectedPlayer(name string) error {
	if _, err := s.Player(name); err != nil {
		return err
	}
	s.SelectedPlayer = name
	return nil
}

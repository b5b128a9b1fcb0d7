package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"cargo-market/internal/economy"
	"cargo-market/internal/game"
	"cargo-market/internal/metrics"
)

const defaultHours = 24

type server struct {
	engine *game.Engine
	log    logrus.FieldLogger
}

func newRouter(engine *game.Engine, log logrus.FieldLogger, rps float64, burst int) http.Handler {
	s := &server{engine: engine, log: log}
	limiter := newRateLimiter(rps, burst, log)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(withRequestID)
	r.Use(requestLogger(log))
	r.Use(metrics.InstrumentHandler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(limiter.Handler)

		r.Get("/state", s.handleState)
		r.Get("/breaking_news", s.handleNews)
		r.Get("/money_series", s.handleMoneySeries)
		r.Get("/popularity", s.handlePopularity)

		r.Post("/buy", s.handleBuy)
		r.Post("/sell", s.handleSell)
		r.Post("/clear", s.handleClear)
		r.Post("/upgrade_truck", s.handleUpgrade)
		r.Post("/set_city", s.handleSetCity)
		r.Post("/set_player", s.handleSetPlayer)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/prices", s.handlePrices)
			r.Post("/closed_cities", s.handleClosedCities)
			r.Post("/news", s.handlePushNews)
			r.Post("/upgrade_pricing", s.handleUpgradePricing)
			r.Post("/adjust_money", s.handleAdjustMoney)
			r.Post("/players", s.handleAddPlayer)
			r.Post("/players/rename", s.handleRenamePlayer)
			r.Post("/players/delete", s.handleDeletePlayer)
			r.Post("/reset", s.handleReset)
		})
	})
	return r
}

type stateView struct {
	*economy.GameState
	Cities    []string       `json:"cities"`
	DepotCity string         `json:"depot_city"`
	NextCost  map[string]int `json:"next_upgrade_cost"`
}

func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	state := s.engine.View()
	next := make(map[string]int, len(state.Players))
	for name, p := range state.Players {
		next[name] = state.UpgradePricing.Cost(p.Capacity)
	}
	writeJSON(w, http.StatusOK, stateView{
		GameState: state,
		Cities:    state.Market.Cities(),
		DepotCity: state.Rules.DepotCity,
		NextCost:  next,
	})
}

func (s *server) handleNews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"news": s.engine.News()})
}

func (s *server) handleMoneySeries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.MoneySeries(hoursParam(r)))
}

func (s *server) handlePopularity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Popularity(hoursParam(r)))
}

func (s *server) handleBuy(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	bal, err := s.engine.Buy(r.Context(), formPlayer(r), strings.TrimSpace(r.FormValue("item")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(map[string]any{"balance": bal}))
}

func (s *server) handleSell(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	bal, err := s.engine.Sell(r.Context(), formPlayer(r), formSpace(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(map[string]any{"balance": bal}))
}

func (s *server) handleClear(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	if err := s.engine.ClearSlot(r.Context(), formPlayer(r), formSpace(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(nil))
}

func (s *server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	up, err := s.engine.UpgradeCapacity(r.Context(), formPlayer(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(map[string]any{
		"balance":  up.Balance,
		"capacity": up.Capacity,
		"cost":     up.Cost,
	}))
}

func (s *server) handleSetCity(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	city := r.FormValue("city")
	if err := s.engine.SetSelectedCity(r.Context(), city); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(map[string]any{"selected_city": city}))
}

func (s *server) handleSetPlayer(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	name := r.FormValue("player")
	if err := s.engine.SetSelectedPlayer(r.Context(), name); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(map[string]any{"selected_player": name}))
}

// handlePrices takes the city in "city" and one field per item, named after
// the item.
func (s *server) handlePrices(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	city := r.PostForm.Get("city")
	raw := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if key == "city" || len(values) == 0 {
			continue
		}
		raw[key] = values[0]
	}
	prices, err := economy.ParsePrices(raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.SetPrices(r.Context(), city, prices); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(map[string]any{"city": city, "prices": prices}))
}

// handleClosedCities treats every "closed_cities" value as closed and every
// other city as open.
func (s *server) handleClosedCities(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	closed, err := s.engine.SetClosedCities(r.Context(), r.PostForm["closed_cities"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(map[string]any{"closed_cities": closed}))
}

func (s *server) handlePushNews(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	msg := r.FormValue("news_message")
	if err := s.engine.PushNews(r.Context(), msg); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(map[string]any{"news": msg}))
}

func (s *server) handleUpgradePricing(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	start, err1 := strconv.Atoi(strings.TrimSpace(r.FormValue("start_cost")))
	step, err2 := strconv.Atoi(strings.TrimSpace(r.FormValue("upgrade_step")))
	if err1 != nil || err2 != nil {
		s.writeError(w, r, &economy.ValidationError{Message: "start_cost and upgrade_step must be whole numbers"})
		return
	}
	if err := s.engine.SetUpgradePricing(r.Context(), start, step); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(map[string]any{"start_cost": start, "upgrade_step": step}))
}

// handleAdjustMoney reads one field per player holding a signed delta.
// Blank or non-integer fields are ignored.
func (s *server) handleAdjustMoney(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	deltas := make(map[string]int, len(r.PostForm))
	for name, values := range r.PostForm {
		if len(values) == 0 {
			continue
		}
		delta, err := strconv.Atoi(strings.TrimSpace(values[0]))
		if err != nil {
			continue
		}
		deltas[name] = delta
	}
	balances, err := s.engine.AdjustBalances(r.Context(), deltas)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(map[string]any{"balances": balances}))
}

func (s *server) handleAddPlayer(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	added, err := s.engine.AddPlayer(r.Context(), r.FormValue("new_player_name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(map[string]any{"changed": added}))
}

func (s *server) handleRenamePlayer(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	renamed, err := s.engine.RenamePlayer(r.Context(), r.FormValue("old_name"), r.FormValue("new_name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(map[string]any{"changed": renamed}))
}

func (s *server) handleDeletePlayer(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	deleted, err := s.engine.DeletePlayer(r.Context(), r.FormValue("delete_player_name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(map[string]any{"changed": deleted}))
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ResetGame(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, success(nil))
}

func parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, failure("bad_request", "bad request"))
		return false
	}
	return true
}

// formPlayer is the acting player; empty means the selected player.
func formPlayer(r *http.Request) string {
	return strings.TrimSpace(r.FormValue("player"))
}

// formSpace parses the 1-based cargo space. Anything unparsable becomes 0,
// which the ledger rejects as an invalid slot.
func formSpace(r *http.Request) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.FormValue("space")))
	if err != nil {
		return 0
	}
	return n
}

func hoursParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("hours"))
	if err != nil {
		return defaultHours
	}
	return n
}

func success(fields map[string]any) map[string]any {
	out := map[string]any{"success": true}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func failure(code, message string) map[string]any {
	return map[string]any{"success": false, "code": code, "message": message}
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var policy *economy.PolicyError
	var invalid *economy.ValidationError
	switch {
	case errors.As(err, &policy):
		writeJSON(w, http.StatusConflict, failure(string(policy.Code), policy.Message))
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, failure("invalid", invalid.Error()))
	case errors.Is(err, economy.ErrPlayerNotFound), errors.Is(err, economy.ErrCityNotFound):
		writeJSON(w, http.StatusNotFound, failure("not_found", err.Error()))
	default:
		s.log.WithError(err).WithField("request_id", requestID(r.Context())).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, failure("internal", "internal error"))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

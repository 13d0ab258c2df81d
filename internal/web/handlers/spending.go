package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/blockedby/spending-stats/internal/publisher"
	"github.com/blockedby/spending-stats/internal/repository"
	"github.com/blockedby/spending-stats/internal/web"
)

const maxWriteBodyBytes = 1 << 20

// SpendingHandler serves the spending reports and the high spender write.
type SpendingHandler struct {
	repo      SpendingRepository
	templates *web.TemplateEngine
	events    EventPublisher
	now       func() time.Time
}

// NewSpendingHandler creates a new SpendingHandler. events may be nil.
func NewSpendingHandler(repo SpendingRepository, templates *web.TemplateEngine, events EventPublisher) *SpendingHandler {
	return &SpendingHandler{
		repo:      repo,
		templates: templates,
		events:    events,
		now:       time.Now,
	}
}

// TotalSpent renders the spending summary of one user.
func (h *SpendingHandler) TotalSpent(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		renderError(w, r, h.templates, http.StatusBadRequest, "Invalid user id")
		return
	}

	total, err := h.repo.TotalSpent(r.Context(), userID)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Int64("user_id", userID).Msg("total spent query failed")
		renderError(w, r, h.templates, http.StatusInternalServerError, "Unable to retrieve data for this user")
		return
	}

	renderPage(w, r, h.templates, http.StatusOK, "total_spent", map[string]interface{}{
		"UserID": userID,
		"Total":  total,
	})
}

// AverageByAge renders the average spending of every non-empty age group.
func (h *SpendingHandler) AverageByAge(w http.ResponseWriter, r *http.Request) {
	groups, err := h.repo.AverageByAgeGroup(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("average by age query failed")
		renderError(w, r, h.templates, http.StatusInternalServerError, "Unable to retrieve data")
		return
	}

	renderPage(w, r, h.templates, http.StatusOK, "average_by_age", map[string]interface{}{
		"Groups": groups,
	})
}

// WriteHighSpender records a user's total spending. Inserts and updates
// both answer 201.
func (h *SpendingHandler) WriteHighSpender(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWriteBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "No JSON data received", err.Error())
		return
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(body, &data); err != nil || len(data) == 0 {
		writeError(w, http.StatusBadRequest, "No JSON data received", "")
		return
	}

	rawUserID, hasUserID := data["user_id"]
	rawTotal, hasTotal := data["total_spending"]
	if !hasUserID || !hasTotal {
		writeError(w, http.StatusBadRequest, "Missing user_id or total_spending", "")
		return
	}

	userID, err := coerceInt(rawUserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user_id or total_spending", "user_id: "+err.Error())
		return
	}
	total, err := coerceInt(rawTotal)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user_id or total_spending", "total_spending: "+err.Error())
		return
	}

	hs := repository.HighSpender{UserID: userID, TotalSpending: total}
	if err := h.repo.UpsertHighSpender(r.Context(), hs); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("upsert high spender failed")
		writeError(w, http.StatusInternalServerError, "Database insertion/update error", err.Error())
		return
	}

	if h.events != nil {
		event := publisher.HighSpenderRecorded{
			UserID:        userID,
			TotalSpending: total,
			RecordedAt:    h.now().UTC(),
		}
		if err := h.events.PublishHighSpenderRecorded(r.Context(), event); err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Msg("publish high spender event")
		}
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "Data added or updated successfully."})
}

var errNotInteger = errors.New("not an integer")

// coerceInt accepts JSON numbers, truncating fractions toward zero, and
// strings holding a base 10 integer.
func coerceInt(raw json.RawMessage) (int64, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}

	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		f, err := val.Float64()
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, fmt.Errorf("%w: %s", errNotInteger, val)
		}
		f = math.Trunc(f)
		if f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, fmt.Errorf("%w: %s out of range", errNotInteger, val)
		}
		return int64(f), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", errNotInteger, val)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%w: %s", errNotInteger, strings.TrimSpace(string(raw)))
	}
}

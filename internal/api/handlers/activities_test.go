package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/go-chi/chi/v5"

	"climarisk/internal/engine"
)

func TestHandleActivitiesList(t *testing.T) {
	h := NewActivityHandler()
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/activities", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	env := decodeEnvelope(t, rec)
	var views []activityView
	if err := json.Unmarshal(env.Data, &views); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}

	if len(views) != len(engine.ListActivities()) {
		t.Fatalf("expected %d activities, got %d", len(engine.ListActivities()), len(views))
	}
	if !sort.SliceIsSorted(views, func(i, j int) bool { return views[i].ID < views[j].ID }) {
		t.Error("expected activities sorted by id")
	}

	found := false
	for _, v := range views {
		if v.ID == engine.BaselineActivityID {
			found = true
			if len(v.Weights) != 5 {
				t.Errorf("expected 5 weights for baseline, got %d", len(v.Weights))
			}
		}
	}
	if !found {
		t.Errorf("expected baseline activity %q in listing", engine.BaselineActivityID)
	}
}

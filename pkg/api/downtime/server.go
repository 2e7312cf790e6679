package downtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"

	"github.com/vshn/downtime-switcher/pkg/api/handler"
	"github.com/vshn/downtime-switcher/pkg/types"
)

// DowntimeStore is the local calendar as used by the API.
type DowntimeStore interface {
	StoreNewWindow(w *types.DowntimeWindow) (*types.DowntimeWindow, error)
	ListWindows(from time.Time, to time.Time) ([]*types.DowntimeWindow, error)
	UpdateWindow(w *types.DowntimeWindow) (*types.DowntimeWindow, error)
	PatchWindow(w *types.DowntimeWindow) (*types.DowntimeWindow, error)
	DeleteWindow(id string) error
}

type downtimeServer struct {
	store DowntimeStore
}

func (s *downtimeServer) ListDowntime(r *http.Request) (any, error) {
	ft, err := parseTime(r, "from")
	if err != nil {
		return nil, err
	}
	tt, err := parseTime(r, "to")
	if err != nil {
		return nil, err
	}

	ws, err := s.store.ListWindows(ft, tt)
	if err != nil {
		return nil, handler.NewErrWithCode(err, http.StatusBadRequest)
	}
	return ws, nil
}

func (s *downtimeServer) CreateDowntime(r *http.Request) (any, error) {
	window, err := decodeWindow(r)
	if err != nil {
		return nil, err
	}

	ws, err := s.store.StoreNewWindow(window)
	if err != nil {
		return nil, handler.NewErrWithCode(err, http.StatusBadRequest)
	}
	logr.FromContextOrDiscard(r.Context()).Info("Stored downtime window", "id", ws.ID, "endpoint", ws.Endpoint)
	return handler.ResponseWithCode{Data: ws, Code: http.StatusCreated}, nil
}

func (s *downtimeServer) UpdateDowntime(r *http.Request) (any, error) {
	window, err := decodeWindow(r)
	if err != nil {
		return nil, err
	}
	window.ID = r.PathValue("id")

	ws, err := s.store.UpdateWindow(window)
	if err != nil {
		return nil, handler.NewErrWithCode(err, http.StatusBadRequest)
	}
	return ws, nil
}

func (s *downtimeServer) PatchDowntime(r *http.Request) (any, error) {
	window, err := decodeWindow(r)
	if err != nil {
		return nil, err
	}
	window.ID = r.PathValue("id")

	ws, err := s.store.PatchWindow(window)
	if err != nil {
		return nil, handler.NewErrWithCode(err, http.StatusBadRequest)
	}
	return ws, nil
}

func (s *downtimeServer) DeleteDowntime(r *http.Request) (any, error) {
	id := r.PathValue("id")
	if err := s.store.DeleteWindow(id); err != nil {
		return nil, handler.NewErrWithCode(err, http.StatusNotFound)
	}
	logr.FromContextOrDiscard(r.Context()).Info("Deleted downtime window", "id", id)
	return map[string]string{"id": id}, nil
}

func parseTime(r *http.Request, param string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, r.URL.Query().Get(param))
	if err != nil {
		return time.Time{}, handler.NewErrWithCode(fmt.Errorf("could not parse `%s` time: %w", param, err), http.StatusBadRequest)
	}
	return t, nil
}

func decodeWindow(r *http.Request) (*types.DowntimeWindow, error) {
	window := types.DowntimeWindow{}
	if err := json.NewDecoder(r.Body).Decode(&window); err != nil {
		return nil, handler.NewErrWithCode(err, http.StatusBadRequest)
	}
	return &window, nil
}

func Setup(mux *http.ServeMux, store DowntimeStore) {
	s := downtimeServer{store}
	mux.Handle("GET /downtime", handler.JSONFunc(s.ListDowntime))
	mux.Handle("POST /downtime", handler.JSONFunc(s.CreateDowntime))
	mux.Handle("POST /downtime/{id}", handler.JSONFunc(s.UpdateDowntime))
	mux.Handle("PATCH /downtime/{id}", handler.JSONFunc(s.PatchDowntime))
	mux.Handle("DELETE /downtime/{id}", handler.JSONFunc(s.DeleteDowntime))
}

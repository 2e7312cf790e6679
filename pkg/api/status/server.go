package status

import (
	"errors"
	"net/http"

	"github.com/vshn/downtime-switcher/pkg/api/handler"
	"github.com/vshn/downtime-switcher/pkg/switcher"
)

// ReportProvider returns the report of the last cycle, or nil if there is none yet.
type ReportProvider interface {
	Latest() *switcher.Report
}

type statusServer struct {
	reports ReportProvider
}

func (s *statusServer) latest() (*switcher.Report, error) {
	r := s.reports.Latest()
	if r == nil {
		return nil, handler.NewErrWithCode(errors.New("no cycle completed yet"), http.StatusServiceUnavailable)
	}
	return r, nil
}

func (s *statusServer) Report(r *http.Request) (any, error) {
	return s.latest()
}

// Board returns the per queue board, optionally restricted to one cloud.
func (s *statusServer) Board(r *http.Request) (any, error) {
	rep, err := s.latest()
	if err != nil {
		return nil, err
	}
	cloud := r.URL.Query().Get("cloud")
	if cloud == "" {
		return rep.Board, nil
	}
	out := []switcher.BoardEntry{}
	for _, b := range rep.Board {
		if b.Cloud == cloud {
			out = append(out, b)
		}
	}
	return out, nil
}

func Setup(mux *http.ServeMux, reports ReportProvider) {
	s := statusServer{reports}
	mux.Handle("GET /status", handler.JSONFunc(s.Report))
	mux.Handle("GET /status/board", handler.JSONFunc(s.Board))
}

// Package diag serves the appliance's unauthenticated debug dashboard:
// a decisions/hour chart plus tsweb's standard debug routes (pprof,
// vars, etc.), routed through gorilla/mux the way the pack's other
// admin surfaces do.
package diag

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/gorilla/mux"
	"tailscale.com/tsweb"
)

// Server exposes the debug dashboard over HTTP.
type Server struct {
	router  *mux.Router
	history *DecisionHistory
}

// NewServer builds a Server backed by history with its routes already
// attached; serve Handler() from an *http.Server.
func NewServer(history *DecisionHistory) *Server {
	s := &Server{router: mux.NewRouter(), history: history}
	s.attachRoutes()
	return s
}

// Handler returns the server's http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) attachRoutes() {
	debug := tsweb.Debugger(s.router)

	debug.HandleFunc("decisions-per-hour", "chart of decisions emitted over the last 24 hours", s.handleDecisionsPerHourChart)
	debug.HandleSilentFunc("decisions-per-hour.json", s.handleDecisionsPerHourJSON)
}

func (s *Server) handleDecisionsPerHourChart(w http.ResponseWriter, r *http.Request) {
	buckets := s.history.Snapshot()

	hours := make([]string, 0, len(buckets))
	values := make([]opts.BarData, 0, len(buckets))
	for _, b := range buckets {
		hours = append(hours, b.Hour.Format("15:04"))
		values = append(values, opts.BarData{Value: b.Count})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Decisions per hour", Theme: "dark"}),
		charts.WithTitleOpts(opts.Title{Title: "Decisions / hour", Subtitle: fmt.Sprintf("last %d hours", len(buckets))}),
		charts.WithXAxisOpts(opts.XAxis{Name: "hour"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "decisions"}),
	)
	bar.SetXAxis(hours).AddSeries("decisions", values)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := bar.Render(w); err != nil {
		http.Error(w, "failed to render chart", http.StatusInternalServerError)
	}
}

func (s *Server) handleDecisionsPerHourJSON(w http.ResponseWriter, r *http.Request) {
	buckets := s.history.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, "[")
	for i, b := range buckets {
		if i > 0 {
			fmt.Fprint(w, ",")
		}
		fmt.Fprintf(w, `{"hour":%q,"count":%d}`, b.Hour.Format(time.RFC3339), b.Count)
	}
	fmt.Fprint(w, "]")
}

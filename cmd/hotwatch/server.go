package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shuakami/hotwatch"
)

type detectorStatus struct {
	Name     string   `json:"name"`
	Root     string   `json:"root"`
	Tracked  int      `json:"tracked"`
	Archives []string `json:"archives,omitempty"`
}

type agentStatus struct {
	PeriodMillis int64            `json:"period_ms"`
	Detectors    []detectorStatus `json:"detectors"`
}

func newRouter(group *hotwatch.Group, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/status", statusHandler(group))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

func statusHandler(group *hotwatch.Group) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		out := make([]agentStatus, 0)
		for _, a := range group.Agents() {
			st := agentStatus{PeriodMillis: a.Period().Milliseconds()}
			classes := a.Classes()
			st.Detectors = append(st.Detectors, detectorStatus{
				Name:    classes.Name(),
				Root:    classes.Root(),
				Tracked: len(classes.Snapshot()),
			})
			if jars := a.Jars(); jars != nil {
				st.Detectors = append(st.Detectors, detectorStatus{
					Name:     jars.Name(),
					Root:     jars.Files().Root(),
					Tracked:  len(jars.Files().Snapshot()),
					Archives: jars.Archives(),
				})
			}
			out = append(out, st)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}

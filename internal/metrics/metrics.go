// Package metrics defines the Prometheus collectors for the suggestion
// service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsTotal counts inbound conversation events by type and outcome.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watchnext_events_total",
		Help: "Conversation events processed, by event type and reply kind.",
	}, []string{"type", "outcome"})

	// SuggestionsTotal counts titles served to users.
	SuggestionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watchnext_suggestions_total",
		Help: "Suggestions served to users.",
	})

	// ExhaustedTotal counts selector runs that found no eligible title.
	ExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watchnext_exhausted_total",
		Help: "Suggestion requests that found no eligible title.",
	})

	// DecisionsTotal counts recorded decisions by kind.
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watchnext_decisions_total",
		Help: "Decisions recorded, by kind.",
	}, []string{"kind"})

	// ImportedTitlesTotal counts titles upserted by dataset imports.
	ImportedTitlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watchnext_imported_titles_total",
		Help: "Titles upserted by IMDb dataset imports.",
	})
)

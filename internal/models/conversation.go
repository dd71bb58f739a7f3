package models

import "encoding/json"

// Node identifies the current position of a user's conversation state
// machine.
type Node string

const (
	NodeIdle             Node = "idle"
	NodeEditingFilters   Node = "editing_filters"
	NodeAwaitingDecision Node = "awaiting_decision"
	NodeExhausted        Node = "exhausted"
)

// ConversationState is the per-user transient state held in the session
// cache. Losing it resets the conversation to idle; it never holds the only
// copy of durable data.
type ConversationState struct {
	Node        Node           `json:"node"`
	CandidateID *int64         `json:"candidate_id,omitempty"`
	Draft       *FilterProfile `json:"draft,omitempty"`
}

// IdleState is the state a conversation starts in and falls back to after
// cache eviction.
func IdleState() ConversationState {
	return ConversationState{Node: NodeIdle}
}

// EventType identifies one of the closed set of inbound interaction kinds.
type EventType string

const (
	EventStartFilterEdit   EventType = "start_filter_edit"
	EventSetFilterField    EventType = "set_filter_field"
	EventFinishFilterEdit  EventType = "finish_filter_edit"
	EventCancelFilterEdit  EventType = "cancel_filter_edit"
	EventRequestSuggestion EventType = "request_suggestion"
	EventRecordDecision    EventType = "record_decision"
)

// FilterField names an editable field of a FilterProfile.
type FilterField string

const (
	FilterFieldGenres           FilterField = "genres"
	FilterFieldRequireAllGenres FilterField = "require_all_genres"
	FilterFieldTypes            FilterField = "types"
	FilterFieldMinRating        FilterField = "min_rating"
	FilterFieldMinVotes         FilterField = "min_votes"
	FilterFieldYearFrom         FilterField = "year_from"
	FilterFieldYearTo           FilterField = "year_to"
)

// Event is one inbound interaction delivered by the boundary layer. Field
// and Value are set for set_filter_field events; Kind for record_decision.
// Value stays raw JSON so the state machine owns all interpretation.
type Event struct {
	UserID int64           `json:"-"`
	Type   EventType       `json:"type"`
	Field  FilterField     `json:"field,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
	Kind   DecisionKind    `json:"kind,omitempty"`
}

// ReplyKind classifies the response payload returned to the boundary layer.
type ReplyKind string

const (
	ReplySuggestion        ReplyKind = "suggestion"
	ReplyExhausted         ReplyKind = "exhausted"
	ReplyFilters           ReplyKind = "filters"
	ReplyAck               ReplyKind = "ack"
	ReplyValidationError   ReplyKind = "validation_error"
	ReplyInvalidTransition ReplyKind = "invalid_transition"
	ReplyNoop              ReplyKind = "noop"
)

// CandidateSummary is the rendered view of a suggested title.
type CandidateSummary struct {
	ID        int64     `json:"id"`
	IMDBID    string    `json:"imdb_id"`
	IMDBURL   string    `json:"imdb_url"`
	Title     string    `json:"title"`
	Type      TitleType `json:"type"`
	Genres    []string  `json:"genres"`
	Rating    *float64  `json:"rating,omitempty"`
	StartYear *int      `json:"start_year,omitempty"`
}

// NewCandidateSummary builds the boundary-facing view of a title.
func NewCandidateSummary(t *Title) *CandidateSummary {
	return &CandidateSummary{
		ID:        t.ID,
		IMDBID:    t.IMDBID(),
		IMDBURL:   t.IMDBURL(),
		Title:     t.Title,
		Type:      t.Type,
		Genres:    t.Genres,
		Rating:    t.Rating,
		StartYear: t.StartYear,
	}
}

// Reply is the state machine's response to one event. The boundary layer
// renders it; it carries no transport-specific detail.
type Reply struct {
	Kind      ReplyKind         `json:"kind"`
	State     Node              `json:"state"`
	Message   string            `json:"message,omitempty"`
	Candidate *CandidateSummary `json:"candidate,omitempty"`
	Filters   *FilterProfile    `json:"filters,omitempty"`
}

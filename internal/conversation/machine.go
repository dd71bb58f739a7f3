// Package conversation implements the per-user finite state machine that
// sequences filter editing, suggestion requests and decision recording.
// Dispatch is data-driven: a transition table keyed by (node, event type),
// with no transport knowledge.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"watchnext-suggestion-service/internal/metrics"
	"watchnext-suggestion-service/internal/models"
	"watchnext-suggestion-service/internal/repository"
	"watchnext-suggestion-service/internal/session"
)

// Suggester selects one eligible title for a user or reports exhaustion.
// *suggest.Selector satisfies it.
type Suggester interface {
	Select(ctx context.Context, userID int64) (*models.Title, error)
}

// Machine orchestrates conversations for all users. Events for the same
// user are processed strictly one at a time in arrival order; events for
// distinct users run fully in parallel.
type Machine struct {
	sessions  session.Store
	profiles  repository.ProfileRepository
	decisions repository.DecisionRepository
	selector  Suggester
	locks     *userLocks
	now       func() time.Time
}

// NewMachine creates a new Machine.
func NewMachine(sessions session.Store, profiles repository.ProfileRepository, decisions repository.DecisionRepository, selector Suggester) *Machine {
	return &Machine{
		sessions:  sessions,
		profiles:  profiles,
		decisions: decisions,
		selector:  selector,
		locks:     newUserLocks(),
		now:       time.Now,
	}
}

type transitionKey struct {
	node  models.Node
	event models.EventType
}

type transitionFunc func(m *Machine, ctx context.Context, st models.ConversationState, ev models.Event) (models.ConversationState, models.Reply, error)

// transitions is the complete transition table. Events absent from the
// table for the current node are rejected as invalid transitions without
// touching state. The exhausted node is normalized to idle before lookup:
// it is a terminal-per-request display state only.
var transitions = map[transitionKey]transitionFunc{
	{models.NodeIdle, models.EventStartFilterEdit}:   (*Machine).startFilterEdit,
	{models.NodeIdle, models.EventRequestSuggestion}: (*Machine).requestSuggestion,

	{models.NodeEditingFilters, models.EventSetFilterField}:   (*Machine).setFilterField,
	{models.NodeEditingFilters, models.EventFinishFilterEdit}: (*Machine).finishFilterEdit,
	{models.NodeEditingFilters, models.EventCancelFilterEdit}: (*Machine).cancelFilterEdit,

	{models.NodeAwaitingDecision, models.EventRecordDecision}:    (*Machine).recordDecision,
	{models.NodeAwaitingDecision, models.EventRequestSuggestion}: (*Machine).skipAndSuggest,
	{models.NodeAwaitingDecision, models.EventStartFilterEdit}:   (*Machine).rejectEditWhileDeciding,
}

var knownEvents = map[models.EventType]bool{
	models.EventStartFilterEdit:   true,
	models.EventSetFilterField:    true,
	models.EventFinishFilterEdit:  true,
	models.EventCancelFilterEdit:  true,
	models.EventRequestSuggestion: true,
	models.EventRecordDecision:    true,
}

// Handle processes one inbound event under the user's exclusive scope and
// returns the reply to render. Validation failures and invalid transitions
// come back as replies, never as errors; a non-nil error means a backing
// store failed, state is unchanged and the same event may be retried.
func (m *Machine) Handle(ctx context.Context, ev models.Event) (models.Reply, error) {
	release := m.locks.acquire(ev.UserID)
	defer release()

	st, err := m.sessions.Get(ctx, ev.UserID)
	if err != nil {
		return models.Reply{}, err
	}

	node := st.Node
	if node == "" || node == models.NodeExhausted {
		node = models.NodeIdle
	}

	fn, ok := transitions[transitionKey{node, ev.Type}]
	if !ok {
		reply := m.rejectionReply(st, ev)
		metrics.EventsTotal.WithLabelValues(string(ev.Type), string(reply.Kind)).Inc()
		return reply, nil
	}

	next, reply, err := fn(m, ctx, st, ev)
	if err != nil {
		slog.Error("event processing failed", "user_id", ev.UserID, "event", ev.Type, "error", err)
		return models.Reply{}, err
	}

	if err := m.sessions.Set(ctx, ev.UserID, next); err != nil {
		return models.Reply{}, err
	}

	metrics.EventsTotal.WithLabelValues(string(ev.Type), string(reply.Kind)).Inc()
	return reply, nil
}

// rejectionReply builds the no-op response for an event that cannot be
// applied in the current state. Unknown event types get a diagnostic notice;
// known-but-misplaced ones an invalid-transition notice.
func (m *Machine) rejectionReply(st models.ConversationState, ev models.Event) models.Reply {
	if !knownEvents[ev.Type] {
		slog.Warn("unrecognized event", "user_id", ev.UserID, "event", ev.Type)
		return models.Reply{
			Kind:    models.ReplyNoop,
			State:   st.Node,
			Message: "unrecognized event: " + string(ev.Type),
		}
	}

	invalid := &models.InvalidTransitionError{Node: st.Node, Event: ev.Type}
	slog.Debug("invalid transition", "user_id", ev.UserID, "error", invalid)
	return models.Reply{
		Kind:    models.ReplyInvalidTransition,
		State:   st.Node,
		Message: invalid.Error(),
	}
}

func (m *Machine) startFilterEdit(ctx context.Context, _ models.ConversationState, ev models.Event) (models.ConversationState, models.Reply, error) {
	profile, err := m.profiles.Get(ctx, ev.UserID)
	if err != nil {
		return models.ConversationState{}, models.Reply{}, err
	}

	draft := profile.Clone()
	next := models.ConversationState{Node: models.NodeEditingFilters, Draft: &draft}
	return next, models.Reply{
		Kind:    models.ReplyFilters,
		State:   next.Node,
		Message: "editing filters",
		Filters: &draft,
	}, nil
}

func (m *Machine) setFilterField(ctx context.Context, st models.ConversationState, ev models.Event) (models.ConversationState, models.Reply, error) {
	draft, err := m.draftFrom(ctx, st, ev.UserID)
	if err != nil {
		return models.ConversationState{}, models.Reply{}, err
	}

	if verr := applyFilterField(draft, ev.Field, ev.Value); verr != nil {
		return st, models.Reply{
			Kind:    models.ReplyValidationError,
			State:   st.Node,
			Message: verr.Error(),
			Filters: draft,
		}, nil
	}

	next := models.ConversationState{Node: models.NodeEditingFilters, Draft: draft}
	return next, models.Reply{
		Kind:    models.ReplyFilters,
		State:   next.Node,
		Filters: draft,
	}, nil
}

func (m *Machine) finishFilterEdit(ctx context.Context, st models.ConversationState, ev models.Event) (models.ConversationState, models.Reply, error) {
	draft, err := m.draftFrom(ctx, st, ev.UserID)
	if err != nil {
		return models.ConversationState{}, models.Reply{}, err
	}

	if verr := draft.Validate(); verr != nil {
		return st, models.Reply{
			Kind:    models.ReplyValidationError,
			State:   st.Node,
			Message: verr.Error(),
			Filters: draft,
		}, nil
	}

	if err := m.profiles.Replace(ctx, ev.UserID, *draft); err != nil {
		return models.ConversationState{}, models.Reply{}, err
	}

	next := models.IdleState()
	return next, models.Reply{
		Kind:    models.ReplyAck,
		State:   next.Node,
		Message: "filters saved",
		Filters: draft,
	}, nil
}

func (m *Machine) cancelFilterEdit(_ context.Context, _ models.ConversationState, _ models.Event) (models.ConversationState, models.Reply, error) {
	next := models.IdleState()
	return next, models.Reply{
		Kind:    models.ReplyAck,
		State:   next.Node,
		Message: "filter changes discarded",
	}, nil
}

func (m *Machine) requestSuggestion(ctx context.Context, _ models.ConversationState, ev models.Event) (models.ConversationState, models.Reply, error) {
	return m.suggestNext(ctx, ev.UserID)
}

// skipAndSuggest handles a suggestion request while a candidate is still
// pending: the pending title is recorded as watch-later, matching the
// source system's "maybe later" skip, and a fresh suggestion follows.
func (m *Machine) skipAndSuggest(ctx context.Context, st models.ConversationState, ev models.Event) (models.ConversationState, models.Reply, error) {
	if st.CandidateID != nil {
		d := models.Decision{
			UserID:    ev.UserID,
			TitleID:   *st.CandidateID,
			Kind:      models.DecisionWatchLater,
			DecidedAt: m.now(),
		}
		if err := m.decisions.Upsert(ctx, d); err != nil {
			return models.ConversationState{}, models.Reply{}, err
		}
		metrics.DecisionsTotal.WithLabelValues(string(models.DecisionWatchLater)).Inc()
	}
	return m.suggestNext(ctx, ev.UserID)
}

func (m *Machine) suggestNext(ctx context.Context, userID int64) (models.ConversationState, models.Reply, error) {
	title, err := m.selector.Select(ctx, userID)
	if errors.Is(err, models.ErrExhausted) {
		metrics.ExhaustedTotal.Inc()
		next := models.ConversationState{Node: models.NodeExhausted}
		return next, models.Reply{
			Kind:    models.ReplyExhausted,
			State:   next.Node,
			Message: "no new suggestions match your filters",
		}, nil
	}
	if err != nil {
		return models.ConversationState{}, models.Reply{}, err
	}

	metrics.SuggestionsTotal.Inc()
	id := title.ID
	next := models.ConversationState{Node: models.NodeAwaitingDecision, CandidateID: &id}
	return next, models.Reply{
		Kind:      models.ReplySuggestion,
		State:     next.Node,
		Candidate: models.NewCandidateSummary(title),
	}, nil
}

func (m *Machine) recordDecision(ctx context.Context, st models.ConversationState, ev models.Event) (models.ConversationState, models.Reply, error) {
	kind, ok := models.ParseDecisionKind(string(ev.Kind))
	if !ok {
		return st, models.Reply{
			Kind:    models.ReplyValidationError,
			State:   st.Node,
			Message: "unknown decision kind: " + string(ev.Kind),
		}, nil
	}

	if st.CandidateID == nil {
		// Candidate lost with the session; nothing to judge anymore.
		next := models.IdleState()
		return next, models.Reply{
			Kind:    models.ReplyNoop,
			State:   next.Node,
			Message: "no suggestion is pending",
		}, nil
	}

	d := models.Decision{
		UserID:    ev.UserID,
		TitleID:   *st.CandidateID,
		Kind:      kind,
		DecidedAt: m.now(),
	}
	if err := m.decisions.Upsert(ctx, d); err != nil {
		return models.ConversationState{}, models.Reply{}, err
	}

	metrics.DecisionsTotal.WithLabelValues(string(kind)).Inc()
	slog.Info("decision recorded", "user_id", ev.UserID, "title_id", d.TitleID, "kind", kind)

	next := models.IdleState()
	return next, models.Reply{
		Kind:    models.ReplyAck,
		State:   next.Node,
		Message: decisionAckMessage(kind),
	}, nil
}

// rejectEditWhileDeciding rejects a filter-edit request while a candidate
// is pending, so a judgment is never silently abandoned.
func (m *Machine) rejectEditWhileDeciding(_ context.Context, st models.ConversationState, _ models.Event) (models.ConversationState, models.Reply, error) {
	return st, models.Reply{
		Kind:    models.ReplyInvalidTransition,
		State:   st.Node,
		Message: "decide on the current suggestion first",
	}, nil
}

// draftFrom returns the draft under edit, falling back to the persisted
// profile when the session entry lost it (for example a corrupt cache
// value).
func (m *Machine) draftFrom(ctx context.Context, st models.ConversationState, userID int64) (*models.FilterProfile, error) {
	if st.Draft != nil {
		d := st.Draft.Clone()
		return &d, nil
	}
	profile, err := m.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	d := profile.Clone()
	return &d, nil
}

func decisionAckMessage(kind models.DecisionKind) string {
	switch kind {
	case models.DecisionWatchLater:
		return "saved for later"
	case models.DecisionAlreadySeen:
		return "marked as already watched"
	case models.DecisionNotInterested:
		return "will not suggest this again"
	}
	return "decision recorded"
}

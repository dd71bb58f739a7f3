package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchnext-suggestion-service/internal/models"
	"watchnext-suggestion-service/internal/session"
	"watchnext-suggestion-service/internal/suggest"
)

// fakeStore implements the title, profile and decision repositories over
// in-memory maps, with injectable failures.
type fakeStore struct {
	mu        sync.Mutex
	titles    []models.Title
	profiles  map[int64]models.FilterProfile
	decisions map[int64]map[int64]models.Decision

	replaceErr  error
	decisionErr error
}

func newFakeStore(titles ...models.Title) *fakeStore {
	sort.Slice(titles, func(i, j int) bool { return titles[i].ID < titles[j].ID })
	return &fakeStore{
		titles:    titles,
		profiles:  make(map[int64]models.FilterProfile),
		decisions: make(map[int64]map[int64]models.Decision),
	}
}

func (f *fakeStore) eligible(userID int64, p models.FilterProfile) []models.Title {
	var out []models.Title
	for _, t := range f.titles {
		if _, decided := f.decisions[userID][t.ID]; decided {
			continue
		}
		if p.Matches(&t) {
			out = append(out, t)
		}
	}
	return out
}

func (f *fakeStore) CountEligible(_ context.Context, userID int64, p models.FilterProfile) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.eligible(userID, p)), nil
}

func (f *fakeStore) EligibleAt(_ context.Context, userID int64, p models.FilterProfile, offset int) (*models.Title, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	eligible := f.eligible(userID, p)
	if offset >= len(eligible) {
		return nil, models.ErrNotFound
	}
	t := eligible[offset]
	return &t, nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*models.Title, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.titles {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) UpsertBatch(_ context.Context, titles []models.Title) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.titles = append(f.titles, titles...)
	return nil
}

func (f *fakeStore) AllGenres(_ context.Context) ([]string, error) { return nil, nil }

func (f *fakeStore) Get(_ context.Context, userID int64) (models.FilterProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return models.DefaultFilterProfile(), nil
	}
	return p, nil
}

func (f *fakeStore) Replace(_ context.Context, userID int64, p models.FilterProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.profiles[userID] = p
	return nil
}

func (f *fakeStore) Upsert(_ context.Context, d models.Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.decisionErr != nil {
		return f.decisionErr
	}
	if f.decisions[d.UserID] == nil {
		f.decisions[d.UserID] = make(map[int64]models.Decision)
	}
	f.decisions[d.UserID][d.TitleID] = d
	return nil
}

func (f *fakeStore) CountForUser(_ context.Context, userID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.decisions[userID]), nil
}

func (f *fakeStore) decisionFor(userID, titleID int64) (models.Decision, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.decisions[userID][titleID]
	return d, ok
}

func floatPtr(v float64) *float64 { return &v }

func newTestMachine(store *fakeStore) (*Machine, *session.MemoryStore) {
	sessions := session.NewMemoryStore(time.Hour)
	selector := suggest.NewSelector(store, store, 3)
	return NewMachine(sessions, store, store, selector), sessions
}

func send(t *testing.T, m *Machine, userID int64, ev models.Event) models.Reply {
	t.Helper()
	ev.UserID = userID
	reply, err := m.Handle(context.Background(), ev)
	require.NoError(t, err)
	return reply
}

func comedyStore() *fakeStore {
	return newFakeStore(
		models.Title{ID: 1, Title: "E1", Type: models.TitleTypeMovie, Genres: []string{"Comedy"}, Rating: floatPtr(7.5)},
		models.Title{ID: 2, Title: "E2", Type: models.TitleTypeMovie, Genres: []string{"Drama"}, Rating: floatPtr(8.0)},
		models.Title{ID: 3, Title: "E3", Type: models.TitleTypeMovie, Genres: []string{"Comedy"}, Rating: floatPtr(6.0)},
	)
}

func TestSuggestAndDecideUntilExhausted(t *testing.T) {
	store := comedyStore()
	store.profiles[1] = models.FilterProfile{Genres: []string{"Comedy"}, MinRating: floatPtr(7.0)}
	m, _ := newTestMachine(store)

	reply := send(t, m, 1, models.Event{Type: models.EventRequestSuggestion})
	require.Equal(t, models.ReplySuggestion, reply.Kind)
	require.NotNil(t, reply.Candidate)
	assert.Equal(t, int64(1), reply.Candidate.ID)
	assert.Equal(t, models.NodeAwaitingDecision, reply.State)

	reply = send(t, m, 1, models.Event{Type: models.EventRecordDecision, Kind: models.DecisionNotInterested})
	assert.Equal(t, models.ReplyAck, reply.Kind)
	assert.Equal(t, models.NodeIdle, reply.State)

	d, ok := store.decisionFor(1, 1)
	require.True(t, ok)
	assert.Equal(t, models.DecisionNotInterested, d.Kind)

	reply = send(t, m, 1, models.Event{Type: models.EventRequestSuggestion})
	assert.Equal(t, models.ReplyExhausted, reply.Kind)
	assert.Equal(t, models.NodeExhausted, reply.State)
}

func TestDecidedTitlesNeverResurface(t *testing.T) {
	store := comedyStore()
	m, _ := newTestMachine(store)

	seen := make(map[int64]bool)
	for range 3 {
		reply := send(t, m, 1, models.Event{Type: models.EventRequestSuggestion})
		require.Equal(t, models.ReplySuggestion, reply.Kind)
		assert.False(t, seen[reply.Candidate.ID], "title %d offered twice", reply.Candidate.ID)
		seen[reply.Candidate.ID] = true
		send(t, m, 1, models.Event{Type: models.EventRecordDecision, Kind: models.DecisionAlreadySeen})
	}

	reply := send(t, m, 1, models.Event{Type: models.EventRequestSuggestion})
	assert.Equal(t, models.ReplyExhausted, reply.Kind)
}

func TestFilterEditCommit(t *testing.T) {
	store := comedyStore()
	m, _ := newTestMachine(store)

	reply := send(t, m, 1, models.Event{Type: models.EventStartFilterEdit})
	require.Equal(t, models.ReplyFilters, reply.Kind)
	assert.Equal(t, models.NodeEditingFilters, reply.State)

	reply = send(t, m, 1, models.Event{
		Type:  models.EventSetFilterField,
		Field: models.FilterFieldGenres,
		Value: json.RawMessage(`["Comedy"]`),
	})
	require.Equal(t, models.ReplyFilters, reply.Kind)

	reply = send(t, m, 1, models.Event{
		Type:  models.EventSetFilterField,
		Field: models.FilterFieldMinRating,
		Value: json.RawMessage(`7.0`),
	})
	require.Equal(t, models.ReplyFilters, reply.Kind)

	// Nothing persisted until the commit.
	persisted, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, persisted.Genres)

	reply = send(t, m, 1, models.Event{Type: models.EventFinishFilterEdit})
	require.Equal(t, models.ReplyAck, reply.Kind)
	assert.Equal(t, models.NodeIdle, reply.State)

	persisted, err = store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Comedy"}, persisted.Genres)
	require.NotNil(t, persisted.MinRating)
	assert.Equal(t, 7.0, *persisted.MinRating)
}

func TestFilterEditCancelDiscardsDraft(t *testing.T) {
	store := comedyStore()
	m, _ := newTestMachine(store)

	send(t, m, 1, models.Event{Type: models.EventStartFilterEdit})
	send(t, m, 1, models.Event{
		Type:  models.EventSetFilterField,
		Field: models.FilterFieldGenres,
		Value: json.RawMessage(`["Horror"]`),
	})
	reply := send(t, m, 1, models.Event{Type: models.EventCancelFilterEdit})
	assert.Equal(t, models.ReplyAck, reply.Kind)

	persisted, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, persisted.Genres)
}

func TestOutOfDomainRatingRejectedInPlace(t *testing.T) {
	store := comedyStore()
	m, sessions := newTestMachine(store)

	send(t, m, 1, models.Event{Type: models.EventStartFilterEdit})
	reply := send(t, m, 1, models.Event{
		Type:  models.EventSetFilterField,
		Field: models.FilterFieldMinRating,
		Value: json.RawMessage(`11`),
	})
	assert.Equal(t, models.ReplyValidationError, reply.Kind)
	assert.Equal(t, models.NodeEditingFilters, reply.State)

	// The draft is untouched and the user keeps editing.
	st, err := sessions.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.NodeEditingFilters, st.Node)
	require.NotNil(t, st.Draft)
	assert.Nil(t, st.Draft.MinRating)
}

func TestDecisionWithoutPendingCandidate(t *testing.T) {
	store := comedyStore()
	m, sessions := newTestMachine(store)

	reply := send(t, m, 1, models.Event{Type: models.EventRecordDecision, Kind: models.DecisionWatchLater})
	assert.Equal(t, models.ReplyInvalidTransition, reply.Kind)

	st, err := sessions.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.NodeIdle, st.Node)

	count, err := store.CountForUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRedecisionOverwrites(t *testing.T) {
	store := comedyStore()
	m, sessions := newTestMachine(store)

	reply := send(t, m, 1, models.Event{Type: models.EventRequestSuggestion})
	titleID := reply.Candidate.ID
	send(t, m, 1, models.Event{Type: models.EventRecordDecision, Kind: models.DecisionAlreadySeen})

	// The title is re-surfaced by an administrative override and decided
	// again.
	require.NoError(t, sessions.Set(context.Background(), 1, models.ConversationState{
		Node:        models.NodeAwaitingDecision,
		CandidateID: &titleID,
	}))
	send(t, m, 1, models.Event{Type: models.EventRecordDecision, Kind: models.DecisionWatchLater})

	d, ok := store.decisionFor(1, titleID)
	require.True(t, ok)
	assert.Equal(t, models.DecisionWatchLater, d.Kind)

	count, err := store.CountForUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEditWhileAwaitingDecisionRejected(t *testing.T) {
	store := comedyStore()
	m, sessions := newTestMachine(store)

	send(t, m, 1, models.Event{Type: models.EventRequestSuggestion})
	reply := send(t, m, 1, models.Event{Type: models.EventStartFilterEdit})
	assert.Equal(t, models.ReplyInvalidTransition, reply.Kind)

	st, err := sessions.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.NodeAwaitingDecision, st.Node)
	assert.NotNil(t, st.CandidateID)
}

func TestRequestWhileAwaitingSkipsAsWatchLater(t *testing.T) {
	store := comedyStore()
	m, _ := newTestMachine(store)

	first := send(t, m, 1, models.Event{Type: models.EventRequestSuggestion})
	require.Equal(t, models.ReplySuggestion, first.Kind)

	second := send(t, m, 1, models.Event{Type: models.EventRequestSuggestion})
	require.Equal(t, models.ReplySuggestion, second.Kind)
	assert.NotEqual(t, first.Candidate.ID, second.Candidate.ID)

	d, ok := store.decisionFor(1, first.Candidate.ID)
	require.True(t, ok)
	assert.Equal(t, models.DecisionWatchLater, d.Kind)
}

func TestUnrecognizedEventIsNoop(t *testing.T) {
	store := comedyStore()
	m, sessions := newTestMachine(store)

	send(t, m, 1, models.Event{Type: models.EventRequestSuggestion})
	reply := send(t, m, 1, models.Event{Type: "poke"})
	assert.Equal(t, models.ReplyNoop, reply.Kind)

	st, err := sessions.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.NodeAwaitingDecision, st.Node)
}

func TestExhaustedReturnsToIdleOnNextInput(t *testing.T) {
	store := newFakeStore() // empty catalog
	m, _ := newTestMachine(store)

	reply := send(t, m, 1, models.Event{Type: models.EventRequestSuggestion})
	require.Equal(t, models.ReplyExhausted, reply.Kind)

	reply = send(t, m, 1, models.Event{Type: models.EventStartFilterEdit})
	assert.Equal(t, models.ReplyFilters, reply.Kind)
	assert.Equal(t, models.NodeEditingFilters, reply.State)
}

func TestCommitFailureLeavesStateUnchanged(t *testing.T) {
	store := comedyStore()
	m, sessions := newTestMachine(store)

	send(t, m, 1, models.Event{Type: models.EventStartFilterEdit})
	send(t, m, 1, models.Event{
		Type:  models.EventSetFilterField,
		Field: models.FilterFieldGenres,
		Value: json.RawMessage(`["Comedy"]`),
	})

	store.replaceErr = &models.StoreError{Op: "replace filter profile", Err: errors.New("connection reset")}
	_, err := m.Handle(context.Background(), models.Event{UserID: 1, Type: models.EventFinishFilterEdit})
	require.Error(t, err)
	assert.True(t, models.IsStoreError(err))

	// Still editing with the draft intact; the retry succeeds.
	st, err := sessions.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.NodeEditingFilters, st.Node)
	require.NotNil(t, st.Draft)
	assert.Equal(t, []string{"Comedy"}, st.Draft.Genres)

	store.replaceErr = nil
	reply := send(t, m, 1, models.Event{Type: models.EventFinishFilterEdit})
	assert.Equal(t, models.ReplyAck, reply.Kind)
}

func TestDecisionFailureKeepsCandidate(t *testing.T) {
	store := comedyStore()
	m, sessions := newTestMachine(store)

	reply := send(t, m, 1, models.Event{Type: models.EventRequestSuggestion})
	titleID := reply.Candidate.ID

	store.decisionErr = &models.StoreError{Op: "upsert decision", Err: errors.New("timeout")}
	_, err := m.Handle(context.Background(), models.Event{UserID: 1, Type: models.EventRecordDecision, Kind: models.DecisionAlreadySeen})
	require.Error(t, err)

	st, err := sessions.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.NodeAwaitingDecision, st.Node)
	require.NotNil(t, st.CandidateID)
	assert.Equal(t, titleID, *st.CandidateID)
}

func TestSameUserEventsAreSerialized(t *testing.T) {
	store := comedyStore()
	sessions := session.NewMemoryStore(time.Hour)

	// A suggester performing a non-atomic read-modify-write: without the
	// per-user lock, concurrent events would lose increments.
	var counter int
	slow := suggesterFunc(func(context.Context, int64) (*models.Title, error) {
		v := counter
		time.Sleep(time.Millisecond)
		counter = v + 1
		return nil, models.ErrExhausted
	})
	m := NewMachine(sessions, store, store, slow)

	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Handle(context.Background(), models.Event{UserID: 1, Type: models.EventRequestSuggestion})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, n, counter)
}

func TestDistinctUsersDoNotBlockEachOther(t *testing.T) {
	store := comedyStore()
	sessions := session.NewMemoryStore(time.Hour)

	block := make(chan struct{})
	stuck := suggesterFunc(func(_ context.Context, userID int64) (*models.Title, error) {
		if userID == 1 {
			<-block
		}
		return nil, models.ErrExhausted
	})
	m := NewMachine(sessions, store, store, stuck)

	go m.Handle(context.Background(), models.Event{UserID: 1, Type: models.EventRequestSuggestion})

	done := make(chan struct{})
	go func() {
		m.Handle(context.Background(), models.Event{UserID: 2, Type: models.EventRequestSuggestion})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("user 2 was blocked by user 1's pending event")
	}
	close(block)
}

type suggesterFunc func(ctx context.Context, userID int64) (*models.Title, error)

func (f suggesterFunc) Select(ctx context.Context, userID int64) (*models.Title, error) {
	return f(ctx, userID)
}

package testsupport

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"editorial-workflow-api/models"
	"editorial-workflow-api/services"
)

// MemoryStore is an in-memory services.Store. Transactions are serialised and
// run against a private copy that is committed only when fn returns nil.
type MemoryStore struct {
	txMu   *sync.Mutex
	mu     *sync.Mutex
	state  *memState
	faults *faultSet
	inTx   bool

	// Now stamps UpdatedAt on writes.
	Now func() time.Time
}

var _ services.Store = (*MemoryStore)(nil)

type memState struct {
	users       map[string]models.User
	manuscripts map[string]*models.Manuscript
	assignments []models.Assignment
	reviews     []models.Review
	history     []models.ManuscriptStatusHistory
	historySeq  uint
}

type faultSet struct {
	mu  sync.Mutex
	ops map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		txMu: &sync.Mutex{},
		mu:   &sync.Mutex{},
		state: &memState{
			users:       make(map[string]models.User),
			manuscripts: make(map[string]*models.Manuscript),
		},
		faults: &faultSet{ops: make(map[string]error)},
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// FailOn makes every later call of the named Store method return err.
func (s *MemoryStore) FailOn(op string, err error) {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	s.faults.ops[op] = err
}

func (s *MemoryStore) ClearFaults() {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	s.faults.ops = make(map[string]error)
}

func (s *MemoryStore) fault(op string) error {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	return s.faults.ops[op]
}

// AddUser seeds a user and returns it.
func (s *MemoryStore) AddUser(id, name, email string, roles ...string) models.User {
	user := models.User{ID: id, Name: name, Email: email, Roles: append([]string(nil), roles...)}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.users[id] = user
	return user
}

// History returns every committed history row, in insertion order.
func (s *MemoryStore) History() []models.ManuscriptStatusHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ManuscriptStatusHistory(nil), s.state.history...)
}

// Assignments returns every committed assignment, in insertion order.
func (s *MemoryStore) Assignments() []models.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Assignment, len(s.state.assignments))
	for i, a := range s.state.assignments {
		out[i] = copyAssignment(a)
	}
	return out
}

func (st *memState) clone() *memState {
	out := &memState{
		users:       make(map[string]models.User, len(st.users)),
		manuscripts: make(map[string]*models.Manuscript, len(st.manuscripts)),
		assignments: make([]models.Assignment, len(st.assignments)),
		reviews:     make([]models.Review, len(st.reviews)),
		history:     append([]models.ManuscriptStatusHistory(nil), st.history...),
		historySeq:  st.historySeq,
	}
	for k, v := range st.users {
		out.users[k] = v
	}
	for k, v := range st.manuscripts {
		out.manuscripts[k] = v.Clone()
	}
	for i, a := range st.assignments {
		out.assignments[i] = copyAssignment(a)
	}
	for i, r := range st.reviews {
		out.reviews[i] = copyReview(r)
	}
	return out
}

func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(tx services.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.inTx {
		return fn(s)
	}
	if err := s.fault("RunInTransaction"); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.state.clone()
	s.mu.Unlock()

	tx := &MemoryStore{
		txMu:   s.txMu,
		mu:     &sync.Mutex{},
		state:  snapshot,
		faults: s.faults,
		inTx:   true,
		Now:    s.Now,
	}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = snapshot
	s.mu.Unlock()
	return nil
}

func notFound(what, id string) error {
	return fmt.Errorf("%w: %s %s", services.ErrRecordNotFound, what, id)
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	if err := s.fault("GetUser"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.state.users[id]
	if !ok {
		return nil, notFound("user", id)
	}
	user.Roles = append([]string(nil), user.Roles...)
	return &user, nil
}

func (s *MemoryStore) GetManuscript(_ context.Context, id string) (*models.Manuscript, error) {
	if err := s.fault("GetManuscript"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.state.manuscripts[id]
	if !ok {
		return nil, notFound("manuscript", id)
	}
	return m.Clone(), nil
}

// LockManuscript is GetManuscript; the transaction mutex already serialises writers.
func (s *MemoryStore) LockManuscript(ctx context.Context, id string) (*models.Manuscript, error) {
	if err := s.fault("LockManuscript"); err != nil {
		return nil, err
	}
	return s.GetManuscript(ctx, id)
}

func (s *MemoryStore) CreateManuscript(_ context.Context, m *models.Manuscript) error {
	if err := s.fault("CreateManuscript"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.manuscripts[m.ID]; ok {
		return fmt.Errorf("%w: manuscript %s", services.ErrDuplicateKey, m.ID)
	}
	s.state.manuscripts[m.ID] = m.Clone()
	return nil
}

func (s *MemoryStore) SaveManuscript(_ context.Context, m *models.Manuscript) error {
	if err := s.fault("SaveManuscript"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.manuscripts[m.ID]; !ok {
		return notFound("manuscript", m.ID)
	}
	m.UpdatedAt = s.Now()
	m.SetState(m.State)
	s.state.manuscripts[m.ID] = m.Clone()
	return nil
}

func (s *MemoryStore) GetAssignment(_ context.Context, id string) (*models.Assignment, error) {
	if err := s.fault("GetAssignment"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.state.assignments {
		if a.ID == id {
			out := copyAssignment(a)
			return &out, nil
		}
	}
	return nil, notFound("assignment", id)
}

func (s *MemoryStore) FindAssignments(_ context.Context, filter services.AssignmentFilter) ([]models.Assignment, error) {
	if err := s.fault("FindAssignments"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Assignment
	for _, a := range s.state.assignments {
		if !matchAssignment(a, filter) {
			continue
		}
		out = append(out, copyAssignment(a))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func matchAssignment(a models.Assignment, f services.AssignmentFilter) bool {
	if f.ManuscriptID != "" && a.ManuscriptID != f.ManuscriptID {
		return false
	}
	if f.ReviewerID != "" && a.ReviewerID != f.ReviewerID {
		return false
	}
	if f.Round > 0 && a.Round != f.Round {
		return false
	}
	if f.BeforeRound > 0 && a.Round >= f.BeforeRound {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, st := range f.Statuses {
		if a.Status == st {
			return true
		}
	}
	return false
}

func (s *MemoryStore) openKeyTaken(key *string, exceptID string) bool {
	if key == nil {
		return false
	}
	for _, a := range s.state.assignments {
		if a.ID != exceptID && a.OpenKey != nil && *a.OpenKey == *key {
			return true
		}
	}
	return false
}

func (s *MemoryStore) CreateAssignment(_ context.Context, a *models.Assignment) error {
	if err := s.fault("CreateAssignment"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	a.RefreshOpenKey()
	for _, existing := range s.state.assignments {
		if existing.ID == a.ID {
			return fmt.Errorf("%w: assignment %s", services.ErrDuplicateKey, a.ID)
		}
	}
	if s.openKeyTaken(a.OpenKey, a.ID) {
		return fmt.Errorf("%w: open assignment %s", services.ErrDuplicateKey, *a.OpenKey)
	}
	s.state.assignments = append(s.state.assignments, copyAssignment(*a))
	return nil
}

func (s *MemoryStore) TransitionAssignment(_ context.Context, a *models.Assignment, from models.AssignmentStatus) error {
	if err := s.fault("TransitionAssignment"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.state.assignments {
		if existing.ID != a.ID {
			continue
		}
		if existing.Status != from {
			return services.ErrStaleWrite
		}
		a.RefreshOpenKey()
		if s.openKeyTaken(a.OpenKey, a.ID) {
			return fmt.Errorf("%w: open assignment %s", services.ErrDuplicateKey, *a.OpenKey)
		}
		a.UpdatedAt = s.Now()
		s.state.assignments[i] = copyAssignment(*a)
		return nil
	}
	return services.ErrStaleWrite
}

func (s *MemoryStore) FindReview(_ context.Context, manuscriptID, reviewerID string, round int) (*models.Review, error) {
	if err := s.fault("FindReview"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.state.reviews {
		if r.ManuscriptID == manuscriptID && r.ReviewerID == reviewerID && r.Round == round {
			out := copyReview(r)
			return &out, nil
		}
	}
	return nil, notFound("review", models.SlotKey(manuscriptID, reviewerID, round))
}

func (s *MemoryStore) FindReviews(_ context.Context, filter services.ReviewFilter) ([]models.Review, error) {
	if err := s.fault("FindReviews"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Review
	for _, r := range s.state.reviews {
		if filter.ManuscriptID != "" && r.ManuscriptID != filter.ManuscriptID {
			continue
		}
		if filter.ReviewerID != "" && r.ReviewerID != filter.ReviewerID {
			continue
		}
		if filter.Round > 0 && r.Round != filter.Round {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, copyReview(r))
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].SubmittedAt, out[j].SubmittedAt
		switch {
		case a == nil && b == nil:
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		case a == nil:
			return true
		case b == nil:
			return false
		case a.Equal(*b):
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return a.Before(*b)
	})
	return out, nil
}

// SaveReview upserts by (manuscript, reviewer, round), keeping the stored id.
func (s *MemoryStore) SaveReview(_ context.Context, r *models.Review) error {
	if err := s.fault("SaveReview"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r.UpdatedAt = s.Now()
	for i, existing := range s.state.reviews {
		if existing.ManuscriptID == r.ManuscriptID && existing.ReviewerID == r.ReviewerID && existing.Round == r.Round {
			r.ID = existing.ID
			r.CreatedAt = existing.CreatedAt
			s.state.reviews[i] = copyReview(*r)
			return nil
		}
	}
	s.state.reviews = append(s.state.reviews, copyReview(*r))
	return nil
}

func (s *MemoryStore) AppendHistory(_ context.Context, h *models.ManuscriptStatusHistory) error {
	if err := s.fault("AppendHistory"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.historySeq++
	h.HistoryID = s.state.historySeq
	s.state.history = append(s.state.history, *h)
	return nil
}

func (s *MemoryStore) FindHistory(_ context.Context, manuscriptID string) ([]models.ManuscriptStatusHistory, error) {
	if err := s.fault("FindHistory"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ManuscriptStatusHistory
	for _, h := range s.state.history {
		if h.ManuscriptID == manuscriptID {
			out = append(out, h)
		}
	}
	return out, nil
}

func copyAssignment(a models.Assignment) models.Assignment {
	a.OpenKey = copyString(a.OpenKey)
	a.ReviewID = copyString(a.ReviewID)
	a.DeclineReason = copyString(a.DeclineReason)
	a.RespondedAt = copyTime(a.RespondedAt)
	a.CompletedAt = copyTime(a.CompletedAt)
	return a
}

func copyReview(r models.Review) models.Review {
	r.SubmittedAt = copyTime(r.SubmittedAt)
	return r
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/statuskeep/statusd/internal/domain"
	"github.com/statuskeep/statusd/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// Store is an in-memory implementation of the repo ports, used by tests and
// as a fallback when no database path is configured.
type Store struct {
	mu        sync.RWMutex
	services  map[int64]*domain.Service
	outcomes  []*domain.Outcome
	incidents []*domain.Incident

	nextServiceID  int64
	nextOutcomeID  int64
	nextIncidentID int64
}

func New() *Store {
	return &Store{
		services: make(map[int64]*domain.Service),
	}
}

// ---- ServiceStore ----

func (m *Store) ListServices(ctx context.Context) ([]domain.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Service, 0, len(m.services))
	for _, s := range m.services {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) ListEnabledServices(ctx context.Context) ([]domain.Service, error) {
	all, err := m.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, s := range all {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Store) ServiceByURL(ctx context.Context, url string) (*domain.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.services {
		if s.URL == url {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Store) InsertService(ctx context.Context, s *domain.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.services {
		if existing.Name == s.Name {
			return fmt.Errorf("service name %q already exists", s.Name)
		}
	}
	m.nextServiceID++
	s.ID = m.nextServiceID
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	cp := *s
	m.services[s.ID] = &cp
	return nil
}

func (m *Store) UpdateService(ctx context.Context, s domain.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.services[s.ID]; !ok {
		return fmt.Errorf("service %d not found", s.ID)
	}
	cp := s
	m.services[s.ID] = &cp
	return nil
}

// ---- OutcomeStore ----

func (m *Store) LatestOutcome(ctx context.Context, serviceID int64) (*domain.Outcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.Outcome
	for _, o := range m.outcomes {
		if o.ServiceID != serviceID {
			continue
		}
		if latest == nil || o.Timestamp.After(latest.Timestamp) {
			latest = o
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *Store) OutcomeHistory(ctx context.Context, serviceID int64, since time.Time) ([]domain.Outcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Outcome
	for _, o := range m.outcomes {
		if o.ServiceID == serviceID && !o.Timestamp.Before(since) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (m *Store) CountOutcomes(ctx context.Context, serviceID int64, since time.Time, status domain.Status) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, o := range m.outcomes {
		if o.ServiceID != serviceID || o.Timestamp.Before(since) {
			continue
		}
		if status != "" && o.Status != status {
			continue
		}
		n++
	}
	return n, nil
}

func (m *Store) CountNonUpOutcomesBetween(ctx context.Context, serviceID int64, from, to time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, o := range m.outcomes {
		if o.ServiceID != serviceID || o.Status == domain.StatusUp {
			continue
		}
		if o.Timestamp.Before(from) || o.Timestamp.After(to) {
			continue
		}
		n++
	}
	return n, nil
}

func (m *Store) AvgLatency(ctx context.Context, serviceID int64, since time.Time) (*float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum float64
	var n int
	for _, o := range m.outcomes {
		if o.ServiceID != serviceID || o.Timestamp.Before(since) || o.LatencyMS == nil {
			continue
		}
		sum += *o.LatencyMS
		n++
	}
	if n == 0 {
		return nil, nil
	}
	avg := sum / float64(n)
	return &avg, nil
}

// ---- IncidentStore ----

func (m *Store) LatestIncident(ctx context.Context, serviceID int64) (*domain.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latestIncidentLocked(serviceID), nil
}

func (m *Store) latestIncidentLocked(serviceID int64) *domain.Incident {
	var latest *domain.Incident
	for _, i := range m.incidents {
		if i.ServiceID != serviceID {
			continue
		}
		if latest == nil || i.StartedAt.After(latest.StartedAt) {
			latest = i
		}
	}
	if latest == nil {
		return nil
	}
	cp := *latest
	return &cp
}

func (m *Store) OngoingIncident(ctx context.Context, serviceID int64) (*domain.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var found *domain.Incident
	for _, i := range m.incidents {
		if i.ServiceID != serviceID || i.Status != domain.IncidentOngoing {
			continue
		}
		if found == nil || i.StartedAt.After(found.StartedAt) {
			found = i
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (m *Store) ListIncidents(ctx context.Context, opts repo.ListIncidentsOptions) ([]repo.IncidentWithService, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []repo.IncidentWithService
	for _, i := range m.incidents {
		if i.StartedAt.Before(opts.Since) {
			continue
		}
		if opts.OngoingOnly && i.Status != domain.IncidentOngoing {
			continue
		}
		name := ""
		if s := m.services[i.ServiceID]; s != nil {
			name = s.Name
		}
		out = append(out, repo.IncidentWithService{Incident: *i, ServiceName: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *Store) ShortIncidentsSince(ctx context.Context, serviceID int64, since time.Time, maxDuration time.Duration) ([]domain.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Incident
	for _, i := range m.incidents {
		if i.ServiceID != serviceID || i.StartedAt.Before(since) {
			continue
		}
		if !i.Short(maxDuration) {
			continue
		}
		out = append(out, *i)
	}
	return out, nil
}

// ---- TxBeginner ----

// Tx stages writes and applies them under the store lock at Commit, so a
// rolled-back cycle leaves the store untouched.
type Tx struct {
	store *Store
	done  bool

	stagedOutcomes  []*domain.Outcome
	stagedIncidents []*domain.Incident
	stagedUpdates   []domain.Incident
	deleteBefore    *time.Time
}

func (m *Store) Begin(ctx context.Context) (repo.Tx, error) {
	return &Tx{store: m}, nil
}

// LatestIncident sees staged incident writes from this transaction layered
// over committed state.
func (t *Tx) LatestIncident(ctx context.Context, serviceID int64) (*domain.Incident, error) {
	t.store.mu.RLock()
	latest := t.store.latestIncidentLocked(serviceID)
	t.store.mu.RUnlock()

	for _, i := range t.stagedIncidents {
		if i.ServiceID != serviceID {
			continue
		}
		if latest == nil || i.StartedAt.After(latest.StartedAt) {
			cp := *i
			latest = &cp
		}
	}
	for _, u := range t.stagedUpdates {
		if latest != nil && u.ID == latest.ID {
			cp := u
			latest = &cp
		}
	}
	return latest, nil
}

func (t *Tx) InsertOutcome(ctx context.Context, o *domain.Outcome) error {
	t.stagedOutcomes = append(t.stagedOutcomes, o)
	return nil
}

func (t *Tx) InsertIncident(ctx context.Context, i *domain.Incident) error {
	t.stagedIncidents = append(t.stagedIncidents, i)
	return nil
}

func (t *Tx) UpdateIncident(ctx context.Context, i domain.Incident) error {
	t.stagedUpdates = append(t.stagedUpdates, i)
	return nil
}

func (t *Tx) DeleteOutcomesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	var n int64
	for _, o := range t.store.outcomes {
		if o.Timestamp.Before(cutoff) {
			n++
		}
	}
	c := cutoff
	t.deleteBefore = &c
	return n, nil
}

func (t *Tx) Commit() error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range t.stagedOutcomes {
		s.nextOutcomeID++
		o.ID = s.nextOutcomeID
		cp := *o
		s.outcomes = append(s.outcomes, &cp)
	}
	for _, i := range t.stagedIncidents {
		s.nextIncidentID++
		i.ID = s.nextIncidentID
		cp := *i
		s.incidents = append(s.incidents, &cp)
	}
	for _, u := range t.stagedUpdates {
		for idx, existing := range s.incidents {
			if existing.ID == u.ID {
				cp := u
				s.incidents[idx] = &cp
				break
			}
		}
	}
	if t.deleteBefore != nil {
		kept := s.outcomes[:0]
		for _, o := range s.outcomes {
			if !o.Timestamp.Before(*t.deleteBefore) {
				kept = append(kept, o)
			}
		}
		s.outcomes = kept
	}
	return nil
}

func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.stagedOutcomes = nil
	t.stagedIncidents = nil
	t.stagedUpdates = nil
	t.deleteBefore = nil
	return nil
}

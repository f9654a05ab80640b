package patient

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo keeps patients in process memory. It backs STORAGE_DRIVER=memory
// and the package tests.
type MemoryRepo struct {
	mu       sync.RWMutex
	patients map[uuid.UUID]Patient
	// onDelete lets the transcript store drop a deleted patient's messages,
	// mirroring the foreign-key cascade.
	onDelete []func(id uuid.UUID)
	now      func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		patients: make(map[uuid.UUID]Patient),
		now:      time.Now,
	}
}

// OnDelete registers fn to run after a patient is removed.
func (m *MemoryRepo) OnDelete(fn func(id uuid.UUID)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDelete = append(m.onDelete, fn)
}

func (m *MemoryRepo) Create(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p.ID = uuid.New()
	now := m.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	m.patients[p.ID] = clonePatient(p)
	return nil
}

func (m *MemoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := clonePatient(&p)
	return &out, nil
}

// Exists reports whether id is a known patient.
func (m *MemoryRepo) Exists(id uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.patients[id]
	return ok
}

func (m *MemoryRepo) Update(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.patients[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = m.now().UTC()
	m.patients[p.ID] = clonePatient(p)
	return nil
}

func (m *MemoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	if _, ok := m.patients[id]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.patients, id)
	hooks := slices.Clone(m.onDelete)
	m.mu.Unlock()

	for _, fn := range hooks {
		fn(id)
	}
	return nil
}

func (m *MemoryRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	m.mu.RLock()
	all := make([]Patient, 0, len(m.patients))
	for _, p := range m.patients {
		all = append(all, p)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})

	total := len(all)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= total {
		return []*Patient{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	out := make([]*Patient, 0, end-offset)
	for i := offset; i < end; i++ {
		p := clonePatient(&all[i])
		out = append(out, &p)
	}
	return out, total, nil
}

func clonePatient(p *Patient) Patient {
	c := *p
	if p.MedicalNotes != nil {
		notes := *p.MedicalNotes
		c.MedicalNotes = &notes
	}
	return c
}

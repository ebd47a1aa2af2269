package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

type fakeTicketRepo struct {
	mu      sync.Mutex
	seq     int
	tickets map[string]*domain.Ticket
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func copyTicket(t *domain.Ticket) *domain.Ticket {
	clone := *t
	clone.Movements = append([]domain.Movement(nil), t.Movements...)
	clone.Images = append([]string(nil), t.Images...)
	return &clone
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ticket.ID = fmt.Sprintf("ticket-%d", r.seq)
	ticket.Version = 1
	ticket.UpdatedAt = ticket.CreatedAt
	r.tickets[ticket.ID] = copyTicket(ticket)
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return copyTicket(stored), nil
}

func (r *fakeTicketRepo) Pick(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticket.ID]
	if !ok || stored.PickedBy != nil {
		return repository.ErrTicketConflict
	}
	ticket.Version = stored.Version + 1
	ticket.UpdatedAt = time.Now()
	r.tickets[ticket.ID] = copyTicket(ticket)
	return nil
}

func (r *fakeTicketRepo) UpdateGuarded(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticket.ID]
	if !ok || stored.Version != ticket.Version {
		return repository.ErrTicketConflict
	}
	ticket.Version = stored.Version + 1
	ticket.UpdatedAt = time.Now()
	r.tickets[ticket.ID] = copyTicket(ticket)
	return nil
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, stored := range r.tickets {
		if matchesFilter(stored, filter) {
			result = append(result, *copyTicket(stored))
		}
	}
	return result, nil
}

func matchesFilter(t *domain.Ticket, f repository.TicketFilter) bool {
	if f.CreatedBy != nil && t.CreatedBy != *f.CreatedBy {
		return false
	}
	if f.PickedBy != nil && (t.PickedBy == nil || *t.PickedBy != *f.PickedBy) {
		return false
	}
	if f.CategoryID != nil && t.CategoryID != *f.CategoryID {
		return false
	}
	if f.ResolvedBy != nil && (t.ResolvedBy == nil || *t.ResolvedBy != *f.ResolvedBy) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, status := range f.Statuses {
			if t.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.MovementKind != nil {
		found := false
		for _, m := range t.Movements {
			if m.Kind != *f.MovementKind {
				continue
			}
			if f.MovementMovedTo != nil && (m.MovedTo == nil || *m.MovedTo != *f.MovementMovedTo) {
				continue
			}
			found = true
			break
		}
		if !found {
			return false
		}
	}
	for _, kind := range f.ExcludeMovementKinds {
		if t.HasMovementKind(kind) {
			return false
		}
	}
	if f.SecondSLABreach != nil && t.SecondSLABreach != *f.SecondSLABreach {
		return false
	}
	return true
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*domain.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = fmt.Sprintf("user-%d", len(r.users)+1)
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) ListByRole(_ context.Context, role domain.UserRole) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.User
	for _, user := range r.users {
		if user.Role == role {
			result = append(result, *user)
		}
	}
	return result, nil
}

type fakeCategoryRepo struct {
	ids map[string]bool
}

func newFakeCategoryRepo(ids ...string) *fakeCategoryRepo {
	repo := &fakeCategoryRepo{ids: make(map[string]bool)}
	for _, id := range ids {
		repo.ids[id] = true
	}
	return repo
}

func (r *fakeCategoryRepo) Create(_ context.Context, category *domain.Category) error {
	r.ids[category.ID] = true
	return nil
}

func (r *fakeCategoryRepo) GetByID(_ context.Context, id string) (*domain.Category, error) {
	if !r.ids[id] {
		return nil, pgx.ErrNoRows
	}
	return &domain.Category{ID: id}, nil
}

func (r *fakeCategoryRepo) Exists(_ context.Context, id string) (bool, error) {
	return r.ids[id], nil
}

func (r *fakeCategoryRepo) List(_ context.Context) ([]domain.Category, error) {
	var result []domain.Category
	for id := range r.ids {
		result = append(result, domain.Category{ID: id})
	}
	return result, nil
}

type fakeCommentRepo struct {
	mu       sync.Mutex
	seq      int
	comments map[string]*domain.Comment
}

func newFakeCommentRepo() *fakeCommentRepo {
	return &fakeCommentRepo{comments: make(map[string]*domain.Comment)}
}

func (r *fakeCommentRepo) Create(_ context.Context, comment *domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	comment.ID = fmt.Sprintf("comment-%d", r.seq)
	comment.CreatedAt = time.Now()
	clone := *comment
	r.comments[comment.ID] = &clone
	return nil
}

func (r *fakeCommentRepo) GetByID(_ context.Context, id string) (*domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	comment, ok := r.comments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *comment
	return &clone, nil
}

func (r *fakeCommentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Comment
	for _, comment := range r.comments {
		if comment.TicketID == ticketID {
			result = append(result, *comment)
		}
	}
	return result, nil
}

func (r *fakeCommentRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comments[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.comments, id)
	return nil
}

type fakeReplyRepo struct {
	mu      sync.Mutex
	seq     int
	replies map[string]*domain.Reply
}

func newFakeReplyRepo() *fakeReplyRepo {
	return &fakeReplyRepo{replies: make(map[string]*domain.Reply)}
}

func (r *fakeReplyRepo) Create(_ context.Context, reply *domain.Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	reply.ID = fmt.Sprintf("reply-%d", r.seq)
	reply.CreatedAt = time.Now()
	clone := *reply
	r.replies[reply.ID] = &clone
	return nil
}

func (r *fakeReplyRepo) GetByID(_ context.Context, id string) (*domain.Reply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reply, ok := r.replies[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *reply
	return &clone, nil
}

func (r *fakeReplyRepo) ListByComment(_ context.Context, commentID string) ([]domain.Reply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Reply
	for _, reply := range r.replies {
		if reply.CommentID == commentID {
			result = append(result, *reply)
		}
	}
	return result, nil
}

func (r *fakeReplyRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.replies[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.replies, id)
	return nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.Handler) {}

func (d *recordingDispatcher) typesSeen() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	types := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		types = append(types, e.Type)
	}
	return types
}

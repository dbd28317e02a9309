package service

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

// recordingDispatcher captures published events.
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

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	store    *memory.Store
	clock    *clock.FakeClock
	events   *recordingDispatcher
	tickets  *TicketService
	auth     *AuthService
	client   *domain.User
	other    *domain.User
	tech     *domain.User
	admin    *domain.User
	category *domain.Category
	urgent   *domain.Category
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:  memory.NewStore(),
		clock:  clock.Fake(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)),
		events: &recordingDispatcher{},
	}
	env.tickets = NewTicketService(TicketDependencies{
		TicketRepo:     env.store.Tickets(),
		AttachmentRepo: env.store.Attachments(),
		CommentRepo:    env.store.Comments(),
		HistoryRepo:    env.store.History(),
		CategoryRepo:   env.store.Categories(),
		EquipmentRepo:  env.store.Equipment(),
		UserRepo:       env.store.Users(),
		Dispatcher:     env.events,
		Clock:          env.clock,
	}, config.AttachmentConfig{MaxBytes: 1024, MaxCount: 3}, config.EscalationConfig{LowToMediumHours: 24, MediumToHighHours: 48})
	env.auth = NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 60,
		BcryptCost:            bcrypt.MinCost,
	}, AuthDependencies{
		UserRepo:       env.store.Users(),
		DepartmentRepo: env.store.Departments(),
		SessionRepo:    memory.NewSessionStore(env.clock.Now),
		Clock:          env.clock,
	})

	env.client = env.addUser(t, "juan@empresa.com", "Juan Pérez", domain.RoleClient)
	env.other = env.addUser(t, "ana@empresa.com", "Ana García", domain.RoleClient)
	env.tech = env.addUser(t, "carlos@techassist.com", "Carlos Técnico", domain.RoleTechnician)
	env.admin = env.addUser(t, "admin@techassist.com", "Administrador", domain.RoleAdmin)

	env.category = &domain.Category{Name: "Software", CreatedAt: env.clock.Now()}
	high := domain.TicketPriorityHigh
	env.urgent = &domain.Category{Name: "Red", DefaultPriority: &high, CreatedAt: env.clock.Now()}
	for _, c := range []*domain.Category{env.category, env.urgent} {
		if err := env.store.Categories().Create(context.Background(), c); err != nil {
			t.Fatal(err)
		}
	}
	return env
}

func (env *testEnv) addUser(t *testing.T, email, name string, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{
		Email:        email,
		Name:         name,
		Role:         role,
		Status:       domain.UserStatusActive,
		AuthProvider: domain.AuthProviderPassword,
		CreatedAt:    env.clock.Now(),
	}
	if err := env.store.Users().Create(context.Background(), user); err != nil {
		t.Fatal(err)
	}
	return user
}

func (env *testEnv) createTicket(t *testing.T, title, description string) *TicketDetail {
	t.Helper()
	detail, err := env.tickets.CreateTicket(context.Background(), env.client, CreateTicketInput{
		Title:       title,
		Description: description,
		CategoryID:  env.category.ID,
	})
	if err != nil {
		t.Fatalf("CreateTicket() error = %v", err)
	}
	return detail
}

func pngAttachment(name string) AttachmentInput {
	return AttachmentInput{Filename: name, FileData: base64.StdEncoding.EncodeToString(pngHeader)}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("error = nil, want %s", code)
	}
	if got := apperrors.ToDomainError(err).Code; got != code {
		t.Fatalf("error code = %s (%v), want %s", got, err, code)
	}
}

func ptr[T any](v T) *T {
	return &v
}

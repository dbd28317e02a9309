package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type testServer struct {
	app      *fiber.App
	store    *memory.Store
	category *domain.Category
}

func newTestServer(t *testing.T, loginRateLimit int) *testServer {
	t.Helper()
	store := memory.NewStore()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	authService := service.NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 60,
		BcryptCost:            bcrypt.MinCost,
	}, service.AuthDependencies{
		UserRepo:       store.Users(),
		DepartmentRepo: store.Departments(),
		SessionRepo:    memory.NewSessionStore(nil),
		Logger:         logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     store.Tickets(),
		AttachmentRepo: store.Attachments(),
		CommentRepo:    store.Comments(),
		HistoryRepo:    store.History(),
		CategoryRepo:   store.Categories(),
		EquipmentRepo:  store.Equipment(),
		UserRepo:       store.Users(),
		Dispatcher:     events.NewInMemoryDispatcher(),
		Logger:         logger,
	}, config.AttachmentConfig{MaxBytes: 1 << 20, MaxCount: 5}, config.EscalationConfig{LowToMediumHours: 24, MediumToHighHours: 48})
	catalogService := service.NewCatalogService(service.CatalogDependencies{
		CategoryRepo:   store.Categories(),
		DepartmentRepo: store.Departments(),
		EquipmentRepo:  store.Equipment(),
	})

	app := NewApp("helpdesk-test", logger, metrics, MiddlewareConfig{Timeout: 5 * time.Second, CORSAllowOrigins: "*"})
	RegisterRoutes(app, RouteConfig{
		Prefix:         "/api",
		LoginRateLimit: loginRateLimit,
		Health:         handlers.NewHealthHandler("helpdesk-test", "test", nil, nil, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Catalog:        handlers.NewCatalogHandler(catalogService),
		Users:          handlers.NewUsersHandler(service.NewUserService(store.Users())),
		AuthMiddleware: auth.NewAuthMiddleware(authService),
	})

	category := &domain.Category{Name: "Software", CreatedAt: time.Now().UTC()}
	if err := store.Categories().Create(context.Background(), category); err != nil {
		t.Fatal(err)
	}
	return &testServer{app: app, store: store, category: category}
}

// do sends a JSON request and decodes the JSON response into out when out
// is non-nil.
func (s *testServer) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (s *testServer) register(t *testing.T, email, role string) dto.AuthResponse {
	t.Helper()
	var result dto.AuthResponse
	status := s.do(t, http.MethodPost, "/api/auth/register", "", dto.RegisterRequest{
		Email: email, Name: email, Password: "secreto1", Role: role,
	}, &result)
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d", email, status)
	}
	return result
}

func (s *testServer) addAdmin(t *testing.T, email string) {
	t.Helper()
	hash, err := auth.HashPassword("secreto1", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	admin := &domain.User{
		Email:        email,
		Name:         "Administrador",
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Status:       domain.UserStatusActive,
		AuthProvider: domain.AuthProviderPassword,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Users().Create(context.Background(), admin); err != nil {
		t.Fatal(err)
	}
}

type errorBody struct {
	Detail  string         `json:"detail"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details"`
}

func TestTicketFlow(t *testing.T) {
	s := newTestServer(t, 0)
	client := s.register(t, "juan@empresa.com", "")
	other := s.register(t, "ana@empresa.com", "cliente")
	tech := s.register(t, "carlos@techassist.com", "tecnico")

	var created dto.TicketDetailResponse
	status := s.do(t, http.MethodPost, "/api/tickets", client.Token, dto.CreateTicketRequest{
		Title:       "Correo no sincroniza",
		Description: "Outlook muestra un error al abrir",
		CategoryID:  s.category.ID,
		Attachments: []dto.AttachmentRequest{{Filename: "captura.png", FileData: base64.StdEncoding.EncodeToString(pngHeader)}},
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create ticket: status %d", status)
	}
	if created.Status != "abierto" || created.UserName != "juan@empresa.com" || len(created.Attachments) != 1 || len(created.History) != 1 {
		t.Fatalf("created = %+v", created)
	}
	if created.Attachments[0].DataURL == "" || created.Attachments[0].ContentType != "image/png" {
		t.Errorf("attachment = %+v", created.Attachments[0])
	}
	ticketPath := "/api/tickets/" + created.ID

	var notFound errorBody
	if status := s.do(t, http.MethodGet, ticketPath, other.Token, nil, &notFound); status != http.StatusNotFound || notFound.Code != "NOT_FOUND" {
		t.Errorf("other client GET: status %d body %+v", status, notFound)
	}

	var forbidden errorBody
	if status := s.do(t, http.MethodPut, ticketPath, client.Token, dto.UpdateTicketRequest{Status: ptr("cerrado")}, &forbidden); status != http.StatusForbidden || forbidden.Code != "FORBIDDEN" {
		t.Errorf("client PUT: status %d body %+v", status, forbidden)
	}

	var updated dto.TicketResponse
	status = s.do(t, http.MethodPut, ticketPath, tech.Token, dto.UpdateTicketRequest{
		Status:       ptr("en_proceso"),
		TechnicianID: &tech.User.ID,
	}, &updated)
	if status != http.StatusOK {
		t.Fatalf("tech PUT: status %d", status)
	}
	if updated.Status != "en_proceso" || updated.TechnicianID == nil || *updated.TechnicianID != tech.User.ID || updated.AssignedAt == nil {
		t.Errorf("updated = %+v", updated)
	}

	var comment dto.CommentResponse
	if status := s.do(t, http.MethodPost, ticketPath+"/comments", client.Token, dto.CreateCommentRequest{Comment: "Gracias"}, &comment); status != http.StatusCreated {
		t.Fatalf("comment: status %d", status)
	}
	if comment.Comment != "Gracias" || comment.UserID != client.User.ID {
		t.Errorf("comment = %+v", comment)
	}

	var detail dto.TicketDetailResponse
	if status := s.do(t, http.MethodGet, ticketPath, client.Token, nil, &detail); status != http.StatusOK {
		t.Fatalf("detail: status %d", status)
	}
	if len(detail.Comments) != 1 || len(detail.History) != 4 {
		t.Errorf("detail has %d comments and %d history entries, want 1 and 4", len(detail.Comments), len(detail.History))
	}

	var assigned []dto.TicketResponse
	if status := s.do(t, http.MethodGet, "/api/tickets/my-assigned", tech.Token, nil, &assigned); status != http.StatusOK || len(assigned) != 1 {
		t.Errorf("my-assigned: status %d, %d tickets", status, len(assigned))
	}
	if status := s.do(t, http.MethodGet, "/api/tickets/my-assigned", client.Token, nil, nil); status != http.StatusForbidden {
		t.Errorf("client my-assigned: status %d, want 403", status)
	}

	var mine []dto.TicketResponse
	if status := s.do(t, http.MethodGet, "/api/tickets?status=en_proceso", client.Token, nil, &mine); status != http.StatusOK || len(mine) != 1 {
		t.Errorf("filtered list: status %d, %d tickets", status, len(mine))
	}
	var othersList []dto.TicketResponse
	if status := s.do(t, http.MethodGet, "/api/tickets", other.Token, nil, &othersList); status != http.StatusOK || len(othersList) != 0 {
		t.Errorf("other client list: status %d, %d tickets", status, len(othersList))
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, 0)
	s.register(t, "juan@empresa.com", "")

	var login dto.AuthResponse
	if status := s.do(t, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{Email: "JUAN@empresa.com", Password: "secreto1"}, &login); status != http.StatusOK {
		t.Fatalf("login: status %d", status)
	}

	var me dto.UserResponse
	if status := s.do(t, http.MethodGet, "/api/auth/me", login.Token, nil, &me); status != http.StatusOK || me.Email != "juan@empresa.com" || me.Role != "cliente" {
		t.Fatalf("me: status %d user %+v", status, me)
	}

	var msg dto.MessageResponse
	if status := s.do(t, http.MethodPost, "/api/auth/logout", login.Token, nil, &msg); status != http.StatusOK || msg.Message != "Logged out successfully" {
		t.Errorf("logout: status %d body %+v", status, msg)
	}
	if status := s.do(t, http.MethodPost, "/api/auth/logout", "", nil, nil); status != http.StatusOK {
		t.Errorf("anonymous logout: status %d, want 200", status)
	}

	var unauth errorBody
	if status := s.do(t, http.MethodGet, "/api/auth/me", login.Token, nil, &unauth); status != http.StatusUnauthorized || unauth.Code != "UNAUTHENTICATED" {
		t.Errorf("me after logout: status %d body %+v", status, unauth)
	}
}

func TestAuthErrors(t *testing.T) {
	s := newTestServer(t, 0)
	s.register(t, "juan@empresa.com", "")

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"duplicate email", "/api/auth/register", dto.RegisterRequest{Email: "Juan@Empresa.com", Name: "J", Password: "secreto1"}, http.StatusConflict, "DUPLICATE_EMAIL"},
		{"admin self-registration", "/api/auth/register", dto.RegisterRequest{Email: "x@empresa.com", Name: "X", Password: "secreto1", Role: "admin"}, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"wrong password", "/api/auth/login", dto.LoginRequest{Email: "juan@empresa.com", Password: "nope"}, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"missing fields", "/api/auth/login", dto.LoginRequest{}, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"federated disabled", "/api/auth/session?session_id=abc", nil, http.StatusUnauthorized, "FEDERATED_AUTH_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body errorBody
			status := s.do(t, http.MethodPost, tt.path, "", tt.body, &body)
			if status != tt.status || body.Code != tt.code {
				t.Errorf("status %d code %s, want %d %s", status, body.Code, tt.status, tt.code)
			}
			if body.Detail == "" {
				t.Error("error body has no detail")
			}
		})
	}
}

func TestSessionExchangeRejectsMalformedBody(t *testing.T) {
	s := newTestServer(t, 0)
	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"malformed json", `{"session_id":`, "invalid payload"},
		{"missing session id", `{}`, "session_id is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/session", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := s.app.Test(req, -1)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			var body errorBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != http.StatusBadRequest || body.Code != "VALIDATION_FAILED" || body.Detail != tt.detail {
				t.Errorf("status %d body %+v, want 400 %q", resp.StatusCode, body, tt.detail)
			}
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, 0)
	for _, path := range []string{"/api/tickets", "/api/equipments", "/api/users/technicians", "/api/auth/me"} {
		var body errorBody
		if status := s.do(t, http.MethodGet, path, "", nil, &body); status != http.StatusUnauthorized || body.Code != "UNAUTHENTICATED" {
			t.Errorf("GET %s: status %d code %s", path, status, body.Code)
		}
	}
	if status := s.do(t, http.MethodGet, "/api/tickets", "not-a-token", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("garbage token: status %d", status)
	}
}

func TestStaffListings(t *testing.T) {
	s := newTestServer(t, 0)
	client := s.register(t, "juan@empresa.com", "")
	s.register(t, "carlos@techassist.com", "tecnico")
	s.addAdmin(t, "admin@techassist.com")

	var login dto.AuthResponse
	if status := s.do(t, http.MethodPost, "/api/auth/login", "", dto.LoginRequest{Email: "admin@techassist.com", Password: "secreto1"}, &login); status != http.StatusOK {
		t.Fatalf("admin login: status %d", status)
	}

	var techs []dto.UserResponse
	if status := s.do(t, http.MethodGet, "/api/users/technicians", login.Token, nil, &techs); status != http.StatusOK || len(techs) != 1 || techs[0].Role != "tecnico" {
		t.Errorf("technicians: status %d %+v", status, techs)
	}
	var users []dto.UserResponse
	if status := s.do(t, http.MethodGet, "/api/users", login.Token, nil, &users); status != http.StatusOK || len(users) != 3 {
		t.Errorf("users: status %d, %d users", status, len(users))
	}
	if status := s.do(t, http.MethodGet, "/api/users", client.Token, nil, nil); status != http.StatusForbidden {
		t.Errorf("client users: status %d, want 403", status)
	}
}

func TestCatalogIsPublicAndStable(t *testing.T) {
	s := newTestServer(t, 0)
	var first, second []dto.CategoryResponse
	if status := s.do(t, http.MethodGet, "/api/categories", "", nil, &first); status != http.StatusOK {
		t.Fatalf("categories: status %d", status)
	}
	s.do(t, http.MethodGet, "/api/categories", "", nil, &second)
	if len(first) != 1 || len(second) != 1 || first[0].ID != second[0].ID {
		t.Errorf("categories changed between calls: %+v vs %+v", first, second)
	}

	var departments []dto.DepartmentResponse
	if status := s.do(t, http.MethodGet, "/api/departments", "", nil, &departments); status != http.StatusOK || len(departments) != 0 {
		t.Errorf("departments: status %d, %d items", status, len(departments))
	}
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	s := newTestServer(t, 0)

	var ready map[string]any
	if status := s.do(t, http.MethodGet, "/api/health/ready", "", nil, &ready); status != http.StatusOK || ready["status"] != "ready" {
		t.Errorf("ready: status %d body %v", status, ready)
	}

	var missing errorBody
	if status := s.do(t, http.MethodGet, "/nope", "", nil, &missing); status != http.StatusNotFound || missing.Code != "NOT_FOUND" {
		t.Errorf("unknown route: status %d body %+v", status, missing)
	}
}

func TestLoginRateLimit(t *testing.T) {
	s := newTestServer(t, 2)
	body := dto.LoginRequest{Email: "nadie@empresa.com", Password: "secreto1"}
	for i := 0; i < 2; i++ {
		if status := s.do(t, http.MethodPost, "/api/auth/login", "", body, nil); status != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status %d, want 401", i+1, status)
		}
	}
	var limited errorBody
	if status := s.do(t, http.MethodPost, "/api/auth/login", "", body, &limited); status != http.StatusTooManyRequests || limited.Code != "RATE_LIMITED" {
		t.Errorf("third attempt: status %d body %+v", status, limited)
	}
}

func ptr[T any](v T) *T {
	return &v
}

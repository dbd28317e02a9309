// Package seed loads reference data and staff accounts from a YAML fixture.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// Fixture is the on-disk seed format.
type Fixture struct {
	Departments []DepartmentFixture `yaml:"departments"`
	Categories  []CategoryFixture   `yaml:"categories"`
	Users       []UserFixture       `yaml:"users"`
	Equipment   []EquipmentFixture  `yaml:"equipment"`
}

type DepartmentFixture struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type CategoryFixture struct {
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	DefaultPriority string `yaml:"default_priority"`
}

type UserFixture struct {
	Email      string `yaml:"email"`
	Name       string `yaml:"name"`
	Password   string `yaml:"password"`
	Role       string `yaml:"role"`
	Phone      string `yaml:"phone"`
	Department string `yaml:"department"`
}

type EquipmentFixture struct {
	Name         string `yaml:"name"`
	Type         string `yaml:"type"`
	Brand        string `yaml:"brand"`
	Model        string `yaml:"model"`
	SerialNumber string `yaml:"serial_number"`
	OwnerEmail   string `yaml:"owner_email"`
	Department   string `yaml:"department"`
}

// LoadFile parses a fixture, rejecting unknown keys.
func LoadFile(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var fixture Fixture
	if err := dec.Decode(&fixture); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &fixture, nil
}

// Report counts what a run created and what already existed.
type Report struct {
	Created map[string]int
	Skipped map[string]int
}

func newReport() Report {
	return Report{Created: map[string]int{}, Skipped: map[string]int{}}
}

// Dependencies are the stores the seeder writes to.
type Dependencies struct {
	Users         repository.UserRepository
	Departments   repository.DepartmentRepository
	Categories    repository.CategoryRepository
	Equipment     repository.EquipmentRepository
	CategoryCache repository.CategoryCache
	Clock         clock.Clock
	Logger        *zap.Logger
	BcryptCost    int
}

// Seeder applies fixtures. Records are matched by name (email for users)
// so running the same fixture twice creates nothing the second time.
type Seeder struct {
	deps Dependencies
}

func New(deps Dependencies) *Seeder {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.CategoryCache == nil {
		deps.CategoryCache = repository.NoopCategoryCache{}
	}
	return &Seeder{deps: deps}
}

// Apply writes the fixture. With dryRun set nothing is written and the
// report counts what would have been created.
func (s *Seeder) Apply(ctx context.Context, fixture *Fixture, dryRun bool) (Report, error) {
	report := newReport()
	deptIDs := map[string]string{}

	for _, d := range fixture.Departments {
		name := strings.TrimSpace(d.Name)
		existing, err := s.deps.Departments.GetByName(ctx, name)
		switch {
		case err == nil:
			deptIDs[name] = existing.ID
			report.Skipped["departments"]++
			continue
		case !errors.Is(err, repository.ErrNotFound):
			return report, fmt.Errorf("department %q: %w", name, err)
		}
		report.Created["departments"]++
		if dryRun {
			continue
		}
		dept := &domain.Department{Name: name, Description: d.Description, CreatedAt: s.deps.Clock.Now()}
		if err := s.deps.Departments.Create(ctx, dept); err != nil {
			return report, fmt.Errorf("create department %q: %w", name, err)
		}
		deptIDs[name] = dept.ID
	}

	createdCategories := 0
	for _, c := range fixture.Categories {
		name := strings.TrimSpace(c.Name)
		if _, err := s.deps.Categories.GetByName(ctx, name); err == nil {
			report.Skipped["categories"]++
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			return report, fmt.Errorf("category %q: %w", name, err)
		}
		category := &domain.Category{Name: name, Description: c.Description, CreatedAt: s.deps.Clock.Now()}
		if c.DefaultPriority != "" {
			p, ok := domain.ParseTicketPriority(c.DefaultPriority)
			if !ok {
				return report, fmt.Errorf("category %q: unknown priority %q", name, c.DefaultPriority)
			}
			category.DefaultPriority = &p
		}
		report.Created["categories"]++
		if dryRun {
			continue
		}
		if err := s.deps.Categories.Create(ctx, category); err != nil {
			return report, fmt.Errorf("create category %q: %w", name, err)
		}
		createdCategories++
	}

	userIDs := map[string]string{}
	for _, u := range fixture.Users {
		email := service.NormalizeEmail(u.Email)
		existing, err := s.deps.Users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			userIDs[email] = existing.ID
			report.Skipped["users"]++
			continue
		case !errors.Is(err, repository.ErrNotFound):
			return report, fmt.Errorf("user %q: %w", email, err)
		}
		role, ok := domain.ParseRole(u.Role)
		if !ok {
			return report, fmt.Errorf("user %q: unknown role %q", email, u.Role)
		}
		if len(u.Password) < 6 {
			return report, fmt.Errorf("user %q: password too short", email)
		}
		report.Created["users"]++
		if dryRun {
			continue
		}
		hash, err := auth.HashPassword(u.Password, s.deps.BcryptCost)
		if err != nil {
			return report, err
		}
		now := s.deps.Clock.Now()
		user := &domain.User{
			Email:        email,
			Name:         strings.TrimSpace(u.Name),
			PasswordHash: hash,
			AuthProvider: domain.AuthProviderPassword,
			Role:         role,
			Phone:        optional(u.Phone),
			DepartmentID: lookup(deptIDs, u.Department),
			Status:       domain.UserStatusActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.deps.Users.Create(ctx, user); err != nil {
			return report, fmt.Errorf("create user %q: %w", email, err)
		}
		userIDs[email] = user.ID
	}

	for _, e := range fixture.Equipment {
		name := strings.TrimSpace(e.Name)
		if _, err := s.deps.Equipment.GetByName(ctx, name); err == nil {
			report.Skipped["equipment"]++
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			return report, fmt.Errorf("equipment %q: %w", name, err)
		}
		report.Created["equipment"]++
		if dryRun {
			continue
		}
		equipment := &domain.Equipment{
			Name:         name,
			Type:         e.Type,
			Brand:        optional(e.Brand),
			Model:        optional(e.Model),
			SerialNumber: optional(e.SerialNumber),
			OwnerID:      lookup(userIDs, service.NormalizeEmail(e.OwnerEmail)),
			DepartmentID: lookup(deptIDs, e.Department),
			CreatedAt:    s.deps.Clock.Now(),
		}
		if err := s.deps.Equipment.Create(ctx, equipment); err != nil {
			return report, fmt.Errorf("create equipment %q: %w", name, err)
		}
	}

	if createdCategories > 0 {
		if err := s.deps.CategoryCache.Invalidate(ctx); err != nil {
			s.deps.Logger.Warn("category cache invalidation failed", zap.Error(err))
		}
	}

	s.deps.Logger.Info("seed applied",
		zap.Bool("dry_run", dryRun),
		zap.Any("created", report.Created),
		zap.Any("skipped", report.Skipped))
	return report, nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func lookup(ids map[string]string, key string) *string {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	id, ok := ids[key]
	if !ok {
		return nil
	}
	return &id
}

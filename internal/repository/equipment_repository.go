package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EquipmentRepository manages the equipment inventory.
type EquipmentRepository interface {
	Create(ctx context.Context, equipment *domain.Equipment) error
	GetByID(ctx context.Context, id string) (*domain.Equipment, error)
	GetByName(ctx context.Context, name string) (*domain.Equipment, error)
	List(ctx context.Context) ([]domain.Equipment, error)
}

type equipmentRepository struct {
	pool *pgxpool.Pool
}

// NewEquipmentRepository builds the repository.
func NewEquipmentRepository(pool *pgxpool.Pool) EquipmentRepository {
	return &equipmentRepository{pool: pool}
}

const equipmentColumns = `id, name, type, brand, model, serial_number, owner_id, department_id, created_at`

func (r *equipmentRepository) Create(ctx context.Context, equipment *domain.Equipment) error {
	const query = `
        INSERT INTO equipments (name, type, brand, model, serial_number, owner_id, department_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		equipment.Name,
		equipment.Type,
		equipment.Brand,
		equipment.Model,
		equipment.SerialNumber,
		equipment.OwnerID,
		equipment.DepartmentID,
	).Scan(&equipment.ID, &equipment.CreatedAt)
	return translateError(err)
}

func (r *equipmentRepository) GetByID(ctx context.Context, id string) (*domain.Equipment, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query := `SELECT ` + equipmentColumns + ` FROM equipments WHERE id=$1`
	return scanEquipment(r.pool.QueryRow(ctx, query, id))
}

func (r *equipmentRepository) GetByName(ctx context.Context, name string) (*domain.Equipment, error) {
	query := `SELECT ` + equipmentColumns + ` FROM equipments WHERE name=$1 ORDER BY created_at LIMIT 1`
	return scanEquipment(r.pool.QueryRow(ctx, query, name))
}

func (r *equipmentRepository) List(ctx context.Context) ([]domain.Equipment, error) {
	query := `SELECT ` + equipmentColumns + ` FROM equipments ORDER BY name ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Equipment
	for rows.Next() {
		equipment, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *equipment)
	}
	return result, rows.Err()
}

func scanEquipment(row rowScanner) (*domain.Equipment, error) {
	var equipment domain.Equipment
	if err := row.Scan(
		&equipment.ID,
		&equipment.Name,
		&equipment.Type,
		&equipment.Brand,
		&equipment.Model,
		&equipment.SerialNumber,
		&equipment.OwnerID,
		&equipment.DepartmentID,
		&equipment.CreatedAt,
	); err != nil {
		return nil, translateError(err)
	}
	return &equipment, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/henriqu3-99/Lehgo/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// Migrate applies the schema file at path. Idempotent: the schema uses
// IF NOT EXISTS throughout.
func (p *PostgresStore) Migrate(ctx context.Context, path string) error {
	schema, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, string(schema)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO users(id, phone, name, role, last_lat, last_long, created_at) VALUES($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Phone, u.Name, u.Role, u.LastLat, u.LastLong, u.CreatedAt)
	return err
}

func (p *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := p.db.QueryRowContext(ctx,
		`SELECT id, phone, name, role, last_lat, last_long, created_at FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Phone, &u.Name, &u.Role, &u.LastLat, &u.LastLong, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (p *PostgresStore) CreateRide(ctx context.Context, r *models.Ride) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO rides(id, rider_id, driver_id, pickup_address, dropoff_address, pickup_lat, pickup_long, dropoff_lat, dropoff_long, vehicle_type, price, status, created_at, updated_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		r.ID, r.RiderID, nullable(r.DriverID), r.PickupAddress, r.DropoffAddress,
		r.PickupLat, r.PickupLong, r.DropoffLat, r.DropoffLong,
		string(r.VehicleType), r.Price, r.Status, r.CreatedAt, r.UpdatedAt)
	return err
}

func (p *PostgresStore) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	var (
		r      models.Ride
		driver sql.NullString
		vt     string
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT id, rider_id, driver_id, pickup_address, dropoff_address, pickup_lat, pickup_long, dropoff_lat, dropoff_long, vehicle_type, price, status, created_at, updated_at
		 FROM rides WHERE id=$1`, id).
		Scan(&r.ID, &r.RiderID, &driver, &r.PickupAddress, &r.DropoffAddress,
			&r.PickupLat, &r.PickupLong, &r.DropoffLat, &r.DropoffLong,
			&vt, &r.Price, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.DriverID = driver.String
	r.VehicleType = models.VehicleClass(vt)
	return &r, nil
}

func (p *PostgresStore) AcceptRide(ctx context.Context, rideID, driverID string, amount int64) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE rides SET driver_id=$1, price=$2, status=$3, updated_at=$4 WHERE id=$5`,
		driverID, amount, models.RideAccepted, time.Now(), rideID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE bids SET status=$1 WHERE ride_id=$2 AND driver_id=$3 AND amount=$4`,
		models.BidAccepted, rideID, driverID, amount); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) CreateBid(ctx context.Context, b *models.BidRecord) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO bids(id, ride_id, driver_id, amount, status, created_at) VALUES($1,$2,$3,$4,$5,$6)`,
		b.ID, b.RideID, b.DriverID, b.Amount, b.Status, b.CreatedAt)
	return err
}

func (p *PostgresStore) BidsForRide(ctx context.Context, rideID string) ([]models.BidRecord, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, ride_id, driver_id, amount, status, created_at FROM bids WHERE ride_id=$1 ORDER BY created_at DESC`, rideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.BidRecord
	for rows.Next() {
		var b models.BidRecord
		if err := rows.Scan(&b.ID, &b.RideID, &b.DriverID, &b.Amount, &b.Status, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

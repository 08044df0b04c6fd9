package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fleetops/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// MigrateDir applies .sql files from dir in lexical order (dev helper).
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		b, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(b)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) CreateUser(ctx context.Context, in model.UserIn) (model.User, error) {
	id := uuid.New()
	now := time.Now().UTC()
	var exists string
	err := p.db.QueryRowContext(ctx, `SELECT id::text FROM users WHERE email=$1`, in.Email).Scan(&exists)
	if err == nil {
		return model.User{}, ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.User{}, err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, role, phone, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		id, in.Name, in.Email, in.Role, in.Phone, now)
	if err != nil {
		return model.User{}, err
	}
	return model.User{ID: id.String(), Name: in.Name, Email: in.Email, Role: in.Role, Phone: in.Phone, CreatedAt: now.Format(time.RFC3339)}, nil
}

func (p *Postgres) GetUser(ctx context.Context, id string) (model.User, error) {
	var u model.User
	var created time.Time
	err := p.db.QueryRowContext(ctx,
		`SELECT id::text, name, email, role, COALESCE(phone,''), created_at FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Phone, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.CreatedAt = created.UTC().Format(time.RFC3339)
	return u, nil
}

func (p *Postgres) ListUsers(ctx context.Context, role, cursor string, limit int) ([]model.User, string, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT id::text, name, email, role, COALESCE(phone,''), created_at FROM users WHERE ($1='' OR role=$1) AND ($2='' OR id::text > $2) ORDER BY id LIMIT $3`
	rows, err := p.db.QueryContext(ctx, q, role, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.User{}
	var next string
	for rows.Next() {
		var u model.User
		var created time.Time
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Phone, &created); err != nil {
			return nil, "", err
		}
		u.CreatedAt = created.UTC().Format(time.RFC3339)
		out = append(out, u)
		next = u.ID
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, rows.Err()
}

func (p *Postgres) CreateVehicle(ctx context.Context, in model.VehicleIn) (model.Vehicle, error) {
	id := uuid.New()
	now := time.Now().UTC()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO vehicles (id, plate, kind, status, created_at) VALUES ($1,$2,$3,'available',$4)`,
		id, in.Plate, in.Kind, now)
	if err != nil {
		return model.Vehicle{}, err
	}
	return model.Vehicle{ID: id.String(), Plate: in.Plate, Kind: in.Kind, Status: "available", CreatedAt: now.Format(time.RFC3339)}, nil
}

func (p *Postgres) GetVehicle(ctx context.Context, id string) (model.Vehicle, error) {
	var v model.Vehicle
	err := p.db.QueryRowContext(ctx,
		`SELECT id::text, plate, COALESCE(kind,''), status, COALESCE(driver_id::text,'') FROM vehicles WHERE id=$1`, id).
		Scan(&v.ID, &v.Plate, &v.Kind, &v.Status, &v.DriverID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Vehicle{}, ErrNotFound
	}
	return v, err
}

func (p *Postgres) ListVehicles(ctx context.Context, status, cursor string, limit int) ([]model.Vehicle, string, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT id::text, plate, COALESCE(kind,''), status, COALESCE(driver_id::text,'') FROM vehicles WHERE ($1='' OR status=$1) AND ($2='' OR id::text > $2) ORDER BY id LIMIT $3`
	rows, err := p.db.QueryContext(ctx, q, status, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Vehicle{}
	var next string
	for rows.Next() {
		var v model.Vehicle
		if err := rows.Scan(&v.ID, &v.Plate, &v.Kind, &v.Status, &v.DriverID); err != nil {
			return nil, "", err
		}
		out = append(out, v)
		next = v.ID
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, rows.Err()
}

func (p *Postgres) PatchVehicle(ctx context.Context, id string, patch model.VehiclePatch) (model.Vehicle, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE vehicles SET status=COALESCE(NULLIF($2,''), status), driver_id=COALESCE(NULLIF($3,'')::uuid, driver_id) WHERE id=$1`,
		id, patch.Status, patch.DriverID)
	if err != nil {
		return model.Vehicle{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Vehicle{}, ErrNotFound
	}
	return p.GetVehicle(ctx, id)
}

func (p *Postgres) CreateDelivery(ctx context.Context, customerID string, in model.DeliveryIn) (model.Delivery, error) {
	id := uuid.New()
	now := time.Now().UTC()
	var plat, plng, dlat, dlng *float64
	if in.Pickup != nil {
		plat, plng = &in.Pickup.Lat, &in.Pickup.Lng
	}
	if in.Dropoff != nil {
		dlat, dlng = &in.Dropoff.Lat, &in.Dropoff.Lng
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO deliveries (id, customer_id, status, pickup_lat, pickup_lng, drop_lat, drop_lng, pickup_addr, drop_addr, note, price_cents, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)`,
		id, customerID, model.StatusRequested, plat, plng, dlat, dlng, in.PickupAddr, in.DropAddr, in.Note, in.PriceCents, now)
	if err != nil {
		return model.Delivery{}, err
	}
	return p.GetDelivery(ctx, id.String())
}

func (p *Postgres) scanDelivery(row interface{ Scan(...any) error }) (model.Delivery, error) {
	var d model.Delivery
	var plat, plng, dlat, dlng sql.NullFloat64
	var created, updated time.Time
	err := row.Scan(&d.ID, &d.CustomerID, &d.DriverID, &d.VehicleID, &d.Status,
		&plat, &plng, &dlat, &dlng, &d.PickupAddr, &d.DropAddr, &d.Note, &d.PriceCents, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Delivery{}, ErrNotFound
	}
	if err != nil {
		return model.Delivery{}, err
	}
	if plat.Valid {
		d.Pickup = &model.GeoPoint{Lat: plat.Float64, Lng: plng.Float64}
	}
	if dlat.Valid {
		d.Dropoff = &model.GeoPoint{Lat: dlat.Float64, Lng: dlng.Float64}
	}
	d.CreatedAt = created.UTC().Format(time.RFC3339)
	d.UpdatedAt = updated.UTC().Format(time.RFC3339)
	return d, nil
}

const deliveryCols = `id::text, customer_id::text, COALESCE(driver_id::text,''), COALESCE(vehicle_id::text,''), status,
	pickup_lat, pickup_lng, drop_lat, drop_lng, COALESCE(pickup_addr,''), COALESCE(drop_addr,''), COALESCE(note,''), price_cents, created_at, updated_at`

func (p *Postgres) GetDelivery(ctx context.Context, id string) (model.Delivery, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+deliveryCols+` FROM deliveries WHERE id=$1`, id)
	return p.scanDelivery(row)
}

func (p *Postgres) ListDeliveries(ctx context.Context, f model.DeliveryFilter, cursor string, limit int) ([]model.Delivery, string, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + deliveryCols + ` FROM deliveries
		WHERE ($1='' OR status=$1) AND ($2='' OR customer_id::text=$2) AND ($3='' OR driver_id::text=$3) AND ($4='' OR id::text > $4)
		ORDER BY id LIMIT $5`
	rows, err := p.db.QueryContext(ctx, q, f.Status, f.CustomerID, f.DriverID, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Delivery{}
	var next string
	for rows.Next() {
		d, err := p.scanDelivery(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, d)
		next = d.ID
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, rows.Err()
}

func (p *Postgres) AssignDelivery(ctx context.Context, id, driverID, vehicleID string) (model.Delivery, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE deliveries SET driver_id=$2::uuid, vehicle_id=NULLIF($3,'')::uuid, status=$4, updated_at=now()
		 WHERE id=$1 AND status IN ($5,$4)`,
		id, driverID, vehicleID, model.StatusAssigned, model.StatusRequested)
	if err != nil {
		return model.Delivery{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, gerr := p.GetDelivery(ctx, id); gerr != nil {
			return model.Delivery{}, gerr
		}
		return model.Delivery{}, ErrBadTransition
	}
	return p.GetDelivery(ctx, id)
}

func (p *Postgres) UpdateDeliveryStatus(ctx context.Context, id, status string) (model.Delivery, error) {
	d, err := p.GetDelivery(ctx, id)
	if err != nil {
		return model.Delivery{}, err
	}
	if !model.CanTransition(d.Status, status) {
		return model.Delivery{}, ErrBadTransition
	}
	_, err = p.db.ExecContext(ctx, `UPDATE deliveries SET status=$2, updated_at=now() WHERE id=$1`, id, status)
	if err != nil {
		return model.Delivery{}, err
	}
	return p.GetDelivery(ctx, id)
}

func (p *Postgres) CancelDelivery(ctx context.Context, id string) (model.Delivery, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE deliveries SET status=$2, updated_at=now() WHERE id=$1 AND status IN ($3,$4)`,
		id, model.StatusCancelled, model.StatusRequested, model.StatusAssigned)
	if err != nil {
		return model.Delivery{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, gerr := p.GetDelivery(ctx, id); gerr != nil {
			return model.Delivery{}, gerr
		}
		return model.Delivery{}, ErrBadTransition
	}
	return p.GetDelivery(ctx, id)
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

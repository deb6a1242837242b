package repo

import (
	"context"
	"fmt"
	"strings"

	"villagehub/internal/domain"
)

const (
	customerColumns = `customer_id,name,email,phone,address,password_hash,created_at`
	workerColumns   = `worker_id,name,email,phone,skill,experience,price_per_hour,availability,address,rating,password_hash,created_at`
)

func (r Repo) InsertCustomer(ctx context.Context, c domain.Customer) (int64, error) {
	res, err := r.x().ExecContext(ctx, `INSERT INTO customers(name,email,phone,address,password_hash,created_at) VALUES (?,?,?,?,?,?)`,
		c.Name, c.Email, c.Phone, c.Address, c.PasswordHash, c.CreatedAt)
	if err != nil {
		return 0, classify(err)
	}
	return res.LastInsertId()
}

func (r Repo) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	var c domain.Customer
	err := getOne(ctx, r.x(), &c, `SELECT `+customerColumns+` FROM customers WHERE customer_id=?`, id)
	return c, err
}

// FindCustomerByLogin matches either email or phone.
func (r Repo) FindCustomerByLogin(ctx context.Context, login string) (domain.Customer, error) {
	var c domain.Customer
	err := getOne(ctx, r.x(), &c, `SELECT `+customerColumns+` FROM customers WHERE (email=? OR phone=?) AND ?<>'' LIMIT 1`,
		login, login, login)
	return c, err
}

func (r Repo) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	res := []domain.Customer{}
	err := selectAll(ctx, r.x(), &res, `SELECT `+customerColumns+` FROM customers ORDER BY customer_id DESC`)
	return res, err
}

func (r Repo) DeleteCustomer(ctx context.Context, id int64) error {
	res, err := r.x().ExecContext(ctx, `DELETE FROM customers WHERE customer_id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertWorker(ctx context.Context, w domain.Worker) (int64, error) {
	res, err := r.x().ExecContext(ctx, `INSERT INTO workers(name,email,phone,skill,experience,price_per_hour,availability,address,rating,password_hash,created_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		w.Name, w.Email, w.Phone, w.Skill, w.Experience, w.PricePerHour, w.Availability, w.Address, w.Rating, w.PasswordHash, w.CreatedAt)
	if err != nil {
		return 0, classify(err)
	}
	return res.LastInsertId()
}

func (r Repo) GetWorker(ctx context.Context, id int64) (domain.Worker, error) {
	var w domain.Worker
	err := getOne(ctx, r.x(), &w, `SELECT `+workerColumns+` FROM workers WHERE worker_id=?`, id)
	return w, err
}

func (r Repo) FindWorkerByLogin(ctx context.Context, login string) (domain.Worker, error) {
	var w domain.Worker
	err := getOne(ctx, r.x(), &w, `SELECT `+workerColumns+` FROM workers WHERE (email=? OR phone=?) AND ?<>'' LIMIT 1`,
		login, login, login)
	return w, err
}

type WorkerUpdate struct {
	Name         *string
	Phone        *string
	Skill        *string
	Experience   *int
	PricePerHour *float64
	Availability *string
	Address      *string
}

func (r Repo) UpdateWorker(ctx context.Context, id int64, u WorkerUpdate) error {
	var (
		fields []string
		args   []any
	)
	set := func(col string, v any) {
		fields = append(fields, col+"=?")
		args = append(args, v)
	}
	if u.Name != nil {
		set("name", *u.Name)
	}
	if u.Phone != nil {
		set("phone", *u.Phone)
	}
	if u.Skill != nil {
		set("skill", *u.Skill)
	}
	if u.Experience != nil {
		set("experience", *u.Experience)
	}
	if u.PricePerHour != nil {
		set("price_per_hour", *u.PricePerHour)
	}
	if u.Availability != nil {
		set("availability", *u.Availability)
	}
	if u.Address != nil {
		set("address", *u.Address)
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.x().ExecContext(ctx, fmt.Sprintf(`UPDATE workers SET %s WHERE worker_id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteWorker(ctx context.Context, id int64) error {
	res, err := r.x().ExecContext(ctx, `DELETE FROM workers WHERE worker_id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type WorkerSearch struct {
	Keyword      string
	Skill        string
	Availability string
	MinPrice     *float64
	MaxPrice     *float64
	Limit        int
}

// SearchWorkers filters the worker directory, cheapest first.
func (r Repo) SearchWorkers(ctx context.Context, f WorkerSearch) ([]domain.Worker, error) {
	var (
		clauses []string
		args    []any
	)
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		like := "%" + kw + "%"
		clauses = append(clauses, "(name LIKE ? OR skill LIKE ? OR address LIKE ?)")
		args = append(args, like, like, like)
	}
	if f.Skill != "" {
		clauses = append(clauses, "skill=?")
		args = append(args, f.Skill)
	}
	if f.Availability != "" {
		clauses = append(clauses, "availability=?")
		args = append(args, f.Availability)
	}
	if f.MinPrice != nil {
		clauses = append(clauses, "price_per_hour>=?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		clauses = append(clauses, "price_per_hour<=?")
		args = append(args, *f.MaxPrice)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	res := []domain.Worker{}
	err := selectAll(ctx, r.x(), &res, `SELECT `+workerColumns+` FROM workers `+where(clauses)+` ORDER BY price_per_hour ASC, worker_id ASC LIMIT ?`, args...)
	return res, err
}

func (r Repo) InsertAdmin(ctx context.Context, a domain.Admin) (int64, error) {
	res, err := r.x().ExecContext(ctx, `INSERT INTO admins(username,password_hash,created_at) VALUES (?,?,?)`,
		a.Username, a.PasswordHash, a.CreatedAt)
	if err != nil {
		return 0, classify(err)
	}
	return res.LastInsertId()
}

func (r Repo) GetAdminByUsername(ctx context.Context, username string) (domain.Admin, error) {
	var a domain.Admin
	err := getOne(ctx, r.x(), &a, `SELECT admin_id,username,password_hash,created_at FROM admins WHERE username=?`, username)
	return a, err
}

func (r Repo) GetAdmin(ctx context.Context, id int64) (domain.Admin, error) {
	var a domain.Admin
	err := getOne(ctx, r.x(), &a, `SELECT admin_id,username,password_hash,created_at FROM admins WHERE admin_id=?`, id)
	return a, err
}

// CountParties returns the number of customers, workers and bookings.
func (r Repo) CountParties(ctx context.Context) (customers, workers, bookings int, err error) {
	row := r.x().QueryRowxContext(ctx, `SELECT
		(SELECT COUNT(*) FROM customers),
		(SELECT COUNT(*) FROM workers),
		(SELECT COUNT(*) FROM bookings)`)
	err = row.Scan(&customers, &workers, &bookings)
	return
}

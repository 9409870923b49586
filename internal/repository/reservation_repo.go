package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"clinicbook/internal/database"
	"clinicbook/internal/domain"
)

const primaryKeyConstraint = "reservations_pkey"

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type ReservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

type reservationModel struct {
	ID           string    `gorm:"column:id;primaryKey;type:varchar(64)"`
	PatientName  string    `gorm:"column:patient_name;not null"`
	PatientEmail string    `gorm:"column:patient_email;not null"`
	PatientPhone string    `gorm:"column:patient_phone;not null"`
	Notes        *string   `gorm:"column:notes;type:text"`
	Date         string    `gorm:"column:appointment_date;type:varchar(10);not null;index"`
	Time         string    `gorm:"column:appointment_time;type:varchar(5);not null"`
	Status       string    `gorm:"column:status;type:varchar(16);not null;default:pending"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
}

func (reservationModel) TableName() string { return "reservations" }

// BeforeCreate assigns the store-side identifier and timestamp.
func (m *reservationModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Models lists the gorm models owned by this package, for migrations.
func Models() []any {
	return []any{&reservationModel{}}
}

func toDomainReservation(m reservationModel) *domain.Reservation {
	var notes string
	if m.Notes != nil {
		notes = *m.Notes
	}
	return &domain.Reservation{
		ID:           m.ID,
		PatientName:  m.PatientName,
		PatientEmail: m.PatientEmail,
		PatientPhone: m.PatientPhone,
		Notes:        notes,
		Date:         m.Date,
		Time:         m.Time,
		Status:       domain.ReservationStatus(m.Status),
		CreatedAt:    m.CreatedAt,
	}
}

func toReservationModel(r *domain.Reservation) reservationModel {
	var notes *string
	if r.Notes != "" {
		v := r.Notes
		notes = &v
	}
	return reservationModel{
		ID:           r.ID,
		PatientName:  r.PatientName,
		PatientEmail: r.PatientEmail,
		PatientPhone: r.PatientPhone,
		Notes:        notes,
		Date:         r.Date,
		Time:         r.Time,
		Status:       string(r.Status),
		CreatedAt:    r.CreatedAt,
	}
}

// Insert persists r and fills in the assigned id and creation time.
func (r *ReservationRepository) Insert(ctx context.Context, res *domain.Reservation) error {
	m := toReservationModel(res)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return mapWriteError(err)
	}
	*res = *toDomainReservation(m)
	return nil
}

// ListActiveTimes returns the booked slot labels of non-cancelled
// reservations on date, at most limit of them.
func (r *ReservationRepository) ListActiveTimes(ctx context.Context, date string, limit int) ([]string, error) {
	var times []string
	q := r.db.WithContext(ctx).
		Model(&reservationModel{}).
		Where("appointment_date = ?", date).
		Where("status <> ?", string(domain.StatusCancelled)).
		Order("appointment_time")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("appointment_time", &times).Error; err != nil {
		return nil, err
	}
	return times, nil
}

func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	var m reservationModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDomainReservation(m), nil
}

// List returns reservations ordered by date and time.
func (r *ReservationRepository) List(ctx context.Context, f domain.ReservationFilter) ([]domain.Reservation, int64, error) {
	query := func() *gorm.DB {
		return r.applyFilter(r.db.WithContext(ctx).Model(&reservationModel{}), f)
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var rows []reservationModel
	err := query().Order("appointment_date").Order("appointment_time").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	out := make([]domain.Reservation, 0, len(rows))
	for _, m := range rows {
		out = append(out, *toDomainReservation(m))
	}
	return out, total, nil
}

func (r *ReservationRepository) applyFilter(q *gorm.DB, f domain.ReservationFilter) *gorm.DB {
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		like := "%" + term + "%"
		q = q.Where("(LOWER(patient_name) LIKE ? OR LOWER(patient_email) LIKE ? OR LOWER(patient_phone) LIKE ?)", like, like, like)
	}
	if f.Date != "" {
		q = q.Where("appointment_date = ?", f.Date)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	return q
}

// UpdateStatus changes the status and returns the updated row. Reactivating a
// cancelled reservation whose slot is taken yields domain.ErrDuplicateSlot.
func (r *ReservationRepository) UpdateStatus(ctx context.Context, id string, status domain.ReservationStatus) (*domain.Reservation, error) {
	tx := r.db.WithContext(ctx).
		Model(&reservationModel{}).
		Where("id = ?", id).
		Update("status", string(status))
	if tx.Error != nil {
		return nil, mapWriteError(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *ReservationRepository) UpdateNotes(ctx context.Context, id, notes string) (*domain.Reservation, error) {
	var value *string
	if notes != "" {
		value = &notes
	}
	tx := r.db.WithContext(ctx).
		Model(&reservationModel{}).
		Where("id = ?", id).
		Update("notes", value)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Stats aggregates dashboard counters relative to today (YYYY-MM-DD).
func (r *ReservationRepository) Stats(ctx context.Context, today string) (*domain.ReservationStats, error) {
	type statusCount struct {
		Status string `gorm:"column:status"`
		Total  int64  `gorm:"column:total"`
	}
	var byStatus []statusCount
	err := r.db.WithContext(ctx).
		Model(&reservationModel{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&byStatus).Error
	if err != nil {
		return nil, err
	}

	out := &domain.ReservationStats{}
	for _, row := range byStatus {
		out.Total += row.Total
		switch domain.ReservationStatus(row.Status) {
		case domain.StatusPending:
			out.Pending = row.Total
		case domain.StatusConfirmed:
			out.Confirmed = row.Total
		case domain.StatusCancelled:
			out.Cancelled = row.Total
		}
	}

	if err := r.db.WithContext(ctx).
		Model(&reservationModel{}).
		Where("appointment_date = ?", today).
		Count(&out.Today).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Model(&reservationModel{}).
		Where("appointment_date > ?", today).
		Where("status <> ?", string(domain.StatusCancelled)).
		Count(&out.Upcoming).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Ping checks the store connection.
func (r *ReservationRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func mapWriteError(err error) error {
	if dup := uniqueViolation(err); dup != nil {
		return dup
	}
	return err
}

// uniqueViolation reports which reservation constraint err violated:
// domain.ErrDuplicateSlot for the active slot index, domain.ErrDuplicateID for
// the primary key, nil otherwise.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != "23505" {
			return nil
		}
		switch pgErr.ConstraintName {
		case database.ActiveSlotIndex:
			return domain.ErrDuplicateSlot
		case primaryKeyConstraint:
			return domain.ErrDuplicateID
		}
		return nil
	}

	// SQLite names the columns, not the index.
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return nil
	}
	switch {
	case strings.Contains(msg, "reservations.appointment_date"):
		return domain.ErrDuplicateSlot
	case strings.Contains(msg, "reservations.id"):
		return domain.ErrDuplicateID
	}
	return nil
}

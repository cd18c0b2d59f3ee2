package postgresinsert

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"lead-dispatch/internal/common/errors"
	"lead-dispatch/internal/common/logger"
	"lead-dispatch/internal/dispatch"
	"lead-dispatch/internal/lead"
)

const Name = "postgres"

// DB is satisfied by *sql.DB.
type DB interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Sink writes the lead straight into a Postgres leads table.
type Sink struct {
	config      Config
	db          DB
	logger      logger.Logger
	now         func() time.Time
	insertQuery string
	markQuery   string
}

func New(cfg Config, db DB, log logger.Logger) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Sink{
		config: cfg,
		db:     db,
		logger: log,
		now:    time.Now,
		insertQuery: fmt.Sprintf(
			`INSERT INTO %s (name, phone, email, city, payout_method, crypto_token, brand, model, source, telegram_sent)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE) RETURNING id`, cfg.Table),
		markQuery: fmt.Sprintf(`UPDATE %s SET telegram_sent = TRUE, telegram_sent_at = $1 WHERE id = $2`, cfg.Table),
	}, nil
}

func (s *Sink) Name() string          { return Name }
func (s *Sink) Stage() dispatch.Stage { return dispatch.StageStore }
func (s *Sink) Target() string        { return "postgres:" + s.config.Table }

func (s *Sink) Deliver(ctx context.Context, l lead.Lead, _ dispatch.DeliveryContext) dispatch.Outcome {
	if !s.config.Enabled || s.db == nil {
		return dispatch.Skip(Name, "database")
	}

	token := sql.NullString{String: l.CryptoToken, Valid: l.IsCrypto() && l.CryptoToken != ""}

	var id int64
	err := s.db.QueryRowContext(ctx, s.insertQuery,
		l.Name, l.Phone, l.Email, l.City, l.PayoutMethod.Label(), token, l.Brand, l.Model, l.Source,
	).Scan(&id)
	if err != nil {
		return dispatch.Failed(Name, errors.Classify(Name, err))
	}

	s.logger.Debug("lead row inserted", map[string]interface{}{"sink": Name, "id": id})
	return dispatch.Succeeded(Name, strconv.FormatInt(id, 10))
}

func (s *Sink) MarkNotified(ctx context.Context, externalID string) error {
	id, err := strconv.ParseInt(externalID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid row id %q: %w", externalID, err)
	}

	res, err := s.db.ExecContext(ctx, s.markQuery, s.now().UTC(), id)
	if err != nil {
		return errors.Classify(Name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("row %d not found", id)
	}
	return nil
}

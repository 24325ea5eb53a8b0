package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/broker-crm/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it in
// unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// The partial unique indexes are what make the dedup gate safe under
// concurrent runs: the pre-check is only a fast path, the constraint is the
// guarantee. Conflicting inserts surface as "not inserted", never as errors.
const postgresMigration = `
CREATE TABLE IF NOT EXISTS deals (
	id                   TEXT PRIMARY KEY,
	legal_company_name   TEXT NOT NULL,
	client_name          TEXT,
	client_email         TEXT,
	client_phone         TEXT,
	loan_amount          DOUBLE PRECISION NOT NULL DEFAULT 0,
	loan_type            TEXT NOT NULL DEFAULT 'Unknown',
	status               TEXT NOT NULL DEFAULT 'New',
	source               TEXT NOT NULL,
	purpose              TEXT,
	business_type        TEXT,
	industry             TEXT,
	monthly_revenue      TEXT,
	time_in_business     TEXT,
	address              TEXT,
	city                 TEXT,
	state                TEXT,
	zip_code             TEXT,
	referral_source      TEXT,
	employment_info      TEXT,
	cognito_entry_id     TEXT,
	cognito_entry_number INTEGER,
	cognito_form_id      TEXT,
	gmail_message_id     TEXT,
	notes_internal       TEXT,
	assigned_to          TEXT,
	raw_payload          TEXT,
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_deals_cognito_entry
	ON deals(source, cognito_entry_id) WHERE cognito_entry_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS uq_deals_gmail_message
	ON deals(source, gmail_message_id) WHERE gmail_message_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_deals_status ON deals(status);
CREATE INDEX IF NOT EXISTS idx_deals_loan_type ON deals(loan_type);
CREATE INDEX IF NOT EXISTS idx_deals_source ON deals(source);
CREATE INDEX IF NOT EXISTS idx_deals_created_at ON deals(created_at DESC);

CREATE TABLE IF NOT EXISTS sync_settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const insertDealSQL = `INSERT INTO deals (
	id, legal_company_name, client_name, client_email, client_phone,
	loan_amount, loan_type, status, source,
	purpose, business_type, industry, monthly_revenue, time_in_business,
	address, city, state, zip_code, referral_source, employment_info,
	cognito_entry_id, cognito_entry_number, cognito_form_id, gmail_message_id,
	raw_payload, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
	$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27
) ON CONFLICT DO NOTHING`

// InsertDeal persists a parsed deal. inserted is false when a unique-index
// conflict swallowed the row, which the gate reports as a duplicate skip.
func (s *PostgresStore) InsertDeal(ctx context.Context, deal *model.ParsedDeal) (string, bool, error) {
	id := uuid.New().String()

	tag, err := s.pool.Exec(ctx, insertDealSQL,
		id, deal.LegalCompanyName, nullable(deal.ClientName), nullable(deal.ClientEmail),
		nullable(deal.ClientPhone), deal.LoanAmountSought, string(deal.LoanType),
		string(deal.Status), deal.Source,
		nullable(deal.Purpose), nullable(deal.BusinessType), nullable(deal.Industry),
		nullable(deal.MonthlyRevenue), nullable(deal.TimeInBusiness),
		nullable(deal.Address), nullable(deal.City), nullable(deal.State),
		nullable(deal.ZipCode), nullable(deal.ReferralSource), nullable(deal.EmploymentInfo),
		nullable(deal.CognitoEntryID), deal.CognitoEntryNumber, nullable(deal.CognitoFormID),
		nullable(deal.GmailMessageID), nullable(deal.RawPayload),
		deal.CreatedAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return "", false, eris.Wrap(err, "postgres: insert deal")
	}
	if tag.RowsAffected() == 0 {
		return "", false, nil
	}
	return id, true, nil
}

func (s *PostgresStore) ExistsByExternalID(ctx context.Context, col model.ExternalIDColumn, value string) (bool, error) {
	query := fmt.Sprintf(`SELECT 1 FROM deals WHERE %s = $1 LIMIT 1`, col)
	var one int
	err := s.pool.QueryRow(ctx, query, value).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: exists by %s", col)
	}
	return true, nil
}

func (s *PostgresStore) DeleteBySource(ctx context.Context, source string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM deals WHERE source = $1`, source)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete by source %s", source)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CountBySource(ctx context.Context, source string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM deals WHERE source = $1`, source).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: count by source %s", source)
	}
	return n, nil
}

const dealColumns = `id, legal_company_name, client_name, client_email, client_phone,
	loan_amount, loan_type, status, source, purpose, business_type, industry,
	monthly_revenue, time_in_business, address, city, state, zip_code,
	referral_source, employment_info, cognito_entry_id, cognito_entry_number,
	cognito_form_id, gmail_message_id, notes_internal, assigned_to,
	created_at, updated_at`

// QueryDeals returns a filtered, paginated page of deals plus the total count
// matching the filter. pageSize defaults to 25, page is 1-based.
func (s *PostgresStore) QueryDeals(ctx context.Context, filter DealFilter, page, pageSize int) (*DealPage, error) {
	where, args := buildDealWhere(filter)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM deals`+where, args...).Scan(&total); err != nil {
		return nil, eris.Wrap(err, "postgres: count deals")
	}

	if pageSize <= 0 {
		pageSize = 25
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`SELECT %s FROM deals%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		dealColumns, where, len(args)+1, len(args)+2)
	args = append(args, pageSize, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query deals")
	}
	defer rows.Close()

	var deals []model.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: query deals iterate")
	}
	return &DealPage{Deals: deals, Total: total}, nil
}

func buildDealWhere(filter DealFilter) (string, []any) {
	where := ` WHERE true`
	var args []any

	add := func(clause string, v any) {
		args = append(args, v)
		where += fmt.Sprintf(clause, len(args))
	}

	if filter.Status != "" {
		add(` AND status = $%d`, string(filter.Status))
	}
	if filter.LoanType != "" {
		add(` AND loan_type = $%d`, string(filter.LoanType))
	}
	if filter.Source != "" {
		add(` AND source = $%d`, filter.Source)
	}
	if filter.MinAmount > 0 {
		add(` AND loan_amount >= $%d`, filter.MinAmount)
	}
	if filter.MaxAmount > 0 {
		add(` AND loan_amount <= $%d`, filter.MaxAmount)
	}
	if !filter.CreatedFrom.IsZero() {
		add(` AND created_at >= $%d`, filter.CreatedFrom)
	}
	if !filter.CreatedTo.IsZero() {
		add(` AND created_at <= $%d`, filter.CreatedTo)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern)
		n := len(args)
		where += fmt.Sprintf(` AND (legal_company_name ILIKE $%d OR client_name ILIKE $%d OR client_email ILIKE $%d OR loan_type ILIKE $%d OR status ILIKE $%d)`,
			n, n, n, n, n)
	}
	return where, args
}

func scanDeal(row pgx.Row) (*model.Deal, error) {
	var d model.Deal
	var clientName, clientEmail, clientPhone, purpose, businessType *string
	var industry, monthlyRevenue, timeInBusiness, address, city, state, zip *string
	var referral, employment, cogEntryID, cogFormID, gmailID, notes, assigned *string
	var cogEntryNumber *int

	err := row.Scan(
		&d.ID, &d.LegalCompanyName, &clientName, &clientEmail, &clientPhone,
		&d.LoanAmountSought, &d.LoanType, &d.Status, &d.Source,
		&purpose, &businessType, &industry, &monthlyRevenue, &timeInBusiness,
		&address, &city, &state, &zip, &referral, &employment,
		&cogEntryID, &cogEntryNumber, &cogFormID, &gmailID, &notes, &assigned,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan deal")
	}

	d.ClientName = deref(clientName)
	d.ClientEmail = deref(clientEmail)
	d.ClientPhone = deref(clientPhone)
	d.Purpose = deref(purpose)
	d.BusinessType = deref(businessType)
	d.Industry = deref(industry)
	d.MonthlyRevenue = deref(monthlyRevenue)
	d.TimeInBusiness = deref(timeInBusiness)
	d.Address = deref(address)
	d.City = deref(city)
	d.State = deref(state)
	d.ZipCode = deref(zip)
	d.ReferralSource = deref(referral)
	d.EmploymentInfo = deref(employment)
	d.CognitoEntryID = deref(cogEntryID)
	d.CognitoFormID = deref(cogFormID)
	d.GmailMessageID = deref(gmailID)
	d.NotesInternal = deref(notes)
	d.AssignedTo = deref(assigned)
	if cogEntryNumber != nil {
		d.CognitoEntryNumber = *cogEntryNumber
	}
	return &d, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, dealID string, status model.DealStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE deals SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), dealID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update status %s", dealID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("deal not found: %s", dealID)
	}
	return nil
}

func (s *PostgresStore) UpdateNotes(ctx context.Context, dealID string, notes string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE deals SET notes_internal = $1, updated_at = $2 WHERE id = $3`,
		notes, time.Now().UTC(), dealID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update notes %s", dealID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("deal not found: %s", dealID)
	}
	return nil
}

func (s *PostgresStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM sync_settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "postgres: get setting %s", key)
	}
	return value, nil
}

func (s *PostgresStore) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_settings (key, value, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: put setting %s", key)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

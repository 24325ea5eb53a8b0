package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/broker-crm/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It exists for
// development and single-box deployments; Postgres is the production driver.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS deals (
	id                   TEXT PRIMARY KEY,
	legal_company_name   TEXT NOT NULL,
	client_name          TEXT,
	client_email         TEXT,
	client_phone         TEXT,
	loan_amount          REAL NOT NULL DEFAULT 0,
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
	created_at           DATETIME NOT NULL,
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_deals_cognito_entry
	ON deals(source, cognito_entry_id) WHERE cognito_entry_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS uq_deals_gmail_message
	ON deals(source, gmail_message_id) WHERE gmail_message_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_deals_status ON deals(status);
CREATE INDEX IF NOT EXISTS idx_deals_loan_type ON deals(loan_type);
CREATE INDEX IF NOT EXISTS idx_deals_source ON deals(source);
CREATE INDEX IF NOT EXISTS idx_deals_created_at ON deals(created_at);

CREATE TABLE IF NOT EXISTS sync_settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertDeal(ctx context.Context, deal *model.ParsedDeal) (string, bool, error) {
	id := uuid.New().String()

	res, err := s.db.ExecContext(ctx, `INSERT INTO deals (
		id, legal_company_name, client_name, client_email, client_phone,
		loan_amount, loan_type, status, source,
		purpose, business_type, industry, monthly_revenue, time_in_business,
		address, city, state, zip_code, referral_source, employment_info,
		cognito_entry_id, cognito_entry_number, cognito_form_id, gmail_message_id,
		raw_payload, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT DO NOTHING`,
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
		return "", false, eris.Wrap(err, "sqlite: insert deal")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", false, eris.Wrap(err, "sqlite: insert deal rows affected")
	}
	if n == 0 {
		return "", false, nil
	}
	return id, true, nil
}

func (s *SQLiteStore) ExistsByExternalID(ctx context.Context, col model.ExternalIDColumn, value string) (bool, error) {
	query := fmt.Sprintf(`SELECT 1 FROM deals WHERE %s = ? LIMIT 1`, col)
	var one int
	err := s.db.QueryRowContext(ctx, query, value).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: exists by %s", col)
	}
	return true, nil
}

func (s *SQLiteStore) DeleteBySource(ctx context.Context, source string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM deals WHERE source = ?`, source)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete by source %s", source)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete rows affected")
	}
	return n, nil
}

func (s *SQLiteStore) CountBySource(ctx context.Context, source string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM deals WHERE source = ?`, source).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: count by source %s", source)
	}
	return n, nil
}

func (s *SQLiteStore) QueryDeals(ctx context.Context, filter DealFilter, page, pageSize int) (*DealPage, error) {
	where, args := buildSQLiteDealWhere(filter)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM deals`+where, args...).Scan(&total); err != nil {
		return nil, eris.Wrap(err, "sqlite: count deals")
	}

	if pageSize <= 0 {
		pageSize = 25
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	query := `SELECT ` + dealColumns + ` FROM deals` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, pageSize, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query deals")
	}
	defer rows.Close()

	var deals []model.Deal
	for rows.Next() {
		d, err := scanSQLiteDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: query deals iterate")
	}
	return &DealPage{Deals: deals, Total: total}, nil
}

func buildSQLiteDealWhere(filter DealFilter) (string, []any) {
	var clauses []string
	var args []any

	if filter.Status != "" {
		clauses = append(clauses, `status = ?`)
		args = append(args, string(filter.Status))
	}
	if filter.LoanType != "" {
		clauses = append(clauses, `loan_type = ?`)
		args = append(args, string(filter.LoanType))
	}
	if filter.Source != "" {
		clauses = append(clauses, `source = ?`)
		args = append(args, filter.Source)
	}
	if filter.MinAmount > 0 {
		clauses = append(clauses, `loan_amount >= ?`)
		args = append(args, filter.MinAmount)
	}
	if filter.MaxAmount > 0 {
		clauses = append(clauses, `loan_amount <= ?`)
		args = append(args, filter.MaxAmount)
	}
	if !filter.CreatedFrom.IsZero() {
		clauses = append(clauses, `created_at >= ?`)
		args = append(args, filter.CreatedFrom)
	}
	if !filter.CreatedTo.IsZero() {
		clauses = append(clauses, `created_at <= ?`)
		args = append(args, filter.CreatedTo)
	}
	if filter.Search != "" {
		clauses = append(clauses, `(legal_company_name LIKE ? OR client_name LIKE ? OR client_email LIKE ? OR loan_type LIKE ? OR status LIKE ?)`)
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern, pattern, pattern)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanSQLiteDeal(rows *sql.Rows) (*model.Deal, error) {
	var d model.Deal
	var clientName, clientEmail, clientPhone, purpose, businessType sql.NullString
	var industry, monthlyRevenue, timeInBusiness, address, city, state, zip sql.NullString
	var referral, employment, cogEntryID, cogFormID, gmailID, notes, assigned sql.NullString
	var cogEntryNumber sql.NullInt64
	var loanType, status string

	err := rows.Scan(
		&d.ID, &d.LegalCompanyName, &clientName, &clientEmail, &clientPhone,
		&d.LoanAmountSought, &loanType, &status, &d.Source,
		&purpose, &businessType, &industry, &monthlyRevenue, &timeInBusiness,
		&address, &city, &state, &zip, &referral, &employment,
		&cogEntryID, &cogEntryNumber, &cogFormID, &gmailID, &notes, &assigned,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan deal")
	}

	d.LoanType = model.LoanType(loanType)
	d.Status = model.DealStatus(status)
	d.ClientName = clientName.String
	d.ClientEmail = clientEmail.String
	d.ClientPhone = clientPhone.String
	d.Purpose = purpose.String
	d.BusinessType = businessType.String
	d.Industry = industry.String
	d.MonthlyRevenue = monthlyRevenue.String
	d.TimeInBusiness = timeInBusiness.String
	d.Address = address.String
	d.City = city.String
	d.State = state.String
	d.ZipCode = zip.String
	d.ReferralSource = referral.String
	d.EmploymentInfo = employment.String
	d.CognitoEntryID = cogEntryID.String
	d.CognitoFormID = cogFormID.String
	d.GmailMessageID = gmailID.String
	d.NotesInternal = notes.String
	d.AssignedTo = assigned.String
	d.CognitoEntryNumber = int(cogEntryNumber.Int64)
	return &d, nil
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, dealID string, status model.DealStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE deals SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), dealID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update status %s", dealID)
	}
	return checkRowsAffected(res, "deal", dealID)
}

func (s *SQLiteStore) UpdateNotes(ctx context.Context, dealID string, notes string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE deals SET notes_internal = ?, updated_at = ? WHERE id = ?`,
		notes, time.Now().UTC(), dealID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update notes %s", dealID)
	}
	return checkRowsAffected(res, "deal", dealID)
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM sync_settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: get setting %s", key)
	}
	return value, nil
}

func (s *SQLiteStore) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: put setting %s", key)
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", kind, id)
	}
	return nil
}

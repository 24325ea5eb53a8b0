package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/broker-crm/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

// anyArgs builds n wildcard matchers; pgxmock requires a matcher for every
// positional argument even when a test does not care about the values.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func sampleDeal() *model.ParsedDeal {
	return &model.ParsedDeal{
		LegalCompanyName: "Doe LLC",
		ClientEmail:      "j@doe.com",
		LoanAmountSought: 50000,
		LoanType:         model.LoanWorkingCapital,
		Status:           model.StatusContacted,
		Source:           model.SourceCognitoForms,
		CognitoEntryID:   "E1",
		CreatedAt:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPostgresStore_InsertDeal_Inserted(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO deals`).
		WithArgs(anyArgs(27)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, inserted, err := s.InsertDeal(context.Background(), sampleDeal())
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertDeal_ConflictReportsNotInserted(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// ON CONFLICT DO NOTHING swallows the row: zero rows affected.
	mock.ExpectExec(`INSERT INTO deals`).
		WithArgs(anyArgs(27)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	id, inserted, err := s.InsertDeal(context.Background(), sampleDeal())
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Empty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ExistsByExternalID_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT 1 FROM deals WHERE cognito_entry_id = \$1`).
		WithArgs("E1").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	found, err := s.ExistsByExternalID(context.Background(), model.ColCognitoEntryID, "E1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ExistsByExternalID_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT 1 FROM deals WHERE gmail_message_id = \$1`).
		WithArgs("m-404").
		WillReturnError(pgx.ErrNoRows)

	found, err := s.ExistsByExternalID(context.Background(), model.ColGmailMessageID, "m-404")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteBySource(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM deals WHERE source = \$1`).
		WithArgs(model.SourceGmail).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := s.DeleteBySource(context.Background(), model.SourceGmail)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE deals SET status`).
		WithArgs(anyArgs(3)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateStatus(context.Background(), "missing", model.StatusQualified)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deal not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSetting_MissingReturnsEmpty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT value FROM sync_settings`).
		WithArgs("auto_sync").
		WillReturnError(pgx.ErrNoRows)

	v, err := s.GetSetting(context.Background(), "auto_sync")
	require.NoError(t, err)
	assert.Equal(t, "", v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildDealWhere_Filters(t *testing.T) {
	where, args := buildDealWhere(DealFilter{
		Status:    model.StatusNew,
		LoanType:  model.LoanTermLoan,
		MinAmount: 1000,
		Search:    "doe",
	})

	assert.Contains(t, where, "status = $1")
	assert.Contains(t, where, "loan_type = $2")
	assert.Contains(t, where, "loan_amount >= $3")
	assert.Contains(t, where, "legal_company_name ILIKE $4")
	assert.Len(t, args, 4)
	assert.Equal(t, "%doe%", args[3])
}

func TestBuildDealWhere_Empty(t *testing.T) {
	where, args := buildDealWhere(DealFilter{})
	assert.Equal(t, " WHERE true", where)
	assert.Empty(t, args)
}

func TestPostgresStore_QueryDeals(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT count\(\*\) FROM deals`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	cols := []string{
		"id", "legal_company_name", "client_name", "client_email", "client_phone",
		"loan_amount", "loan_type", "status", "source", "purpose", "business_type",
		"industry", "monthly_revenue", "time_in_business", "address", "city", "state",
		"zip_code", "referral_source", "employment_info", "cognito_entry_id",
		"cognito_entry_number", "cognito_form_id", "gmail_message_id",
		"notes_internal", "assigned_to", "created_at", "updated_at",
	}
	entryNumber := 7
	clientName := "Jane"
	mock.ExpectQuery(`ORDER BY created_at DESC LIMIT \$1 OFFSET \$2`).
		WithArgs(25, 0).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			"d1", "Doe LLC", &clientName, (*string)(nil), (*string)(nil),
			50000.0, model.LoanWorkingCapital, model.StatusContacted, "CognitoForms",
			(*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil),
			(*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil),
			(*string)(nil), (*string)(nil), &entryNumber, (*string)(nil), (*string)(nil),
			(*string)(nil), (*string)(nil), now, now,
		))

	page, err := s.QueryDeals(context.Background(), DealFilter{}, 1, 25)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Deals, 1)
	assert.Equal(t, "Doe LLC", page.Deals[0].LegalCompanyName)
	assert.Equal(t, "Jane", page.Deals[0].ClientName)
	assert.Equal(t, 7, page.Deals[0].CognitoEntryNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

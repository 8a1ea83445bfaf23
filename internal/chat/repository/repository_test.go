package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
	}

	return gormDB, mock, cleanup
}

const conversationLookup = "SELECT * FROM `conversations` WHERE (customer_id = ? AND provider_id = ?) OR (customer_id = ? AND provider_id = ?)"

func conversationRows(id, customerID, providerID string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "customer_id", "provider_id", "created_at", "updated_at"}).
		AddRow(id, customerID, providerID, now, now)
}

func TestConversationRepository_Ensure(t *testing.T) {
	tests := []struct {
		name       string
		customerID string
		providerID string
		mockSetup  func(sqlmock.Sqlmock)
		wantID     string
		expectNew  bool
	}{
		{
			name:       "existing thread reused",
			customerID: "cust-1",
			providerID: "prov-1",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(conversationLookup)).
					WithArgs("cust-1", "prov-1", "prov-1", "cust-1", 1).
					WillReturnRows(conversationRows("conv-1", "cust-1", "prov-1"))
			},
			wantID: "conv-1",
		},
		{
			name:       "provider-initiated open lands in the customer's thread",
			customerID: "prov-1",
			providerID: "cust-1",
			mockSetup: func(mock sqlmock.Sqlmock) {
				// The stored row has the roles the other way around; the
				// swapped-order half of the lookup still matches it.
				mock.ExpectQuery(regexp.QuoteMeta(conversationLookup)).
					WithArgs("prov-1", "cust-1", "cust-1", "prov-1", 1).
					WillReturnRows(conversationRows("conv-1", "cust-1", "prov-1"))
			},
			wantID: "conv-1",
		},
		{
			name:       "first open creates the thread",
			customerID: "cust-1",
			providerID: "prov-1",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(conversationLookup)).
					WithArgs("cust-1", "prov-1", "prov-1", "cust-1", 1).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `conversations`")).
					WithArgs(sqlmock.AnyArg(), "cust-1", "prov-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectCommit()
			},
			expectNew: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, cleanup := setupTestDB(t)
			defer cleanup()
			tt.mockSetup(mock)

			repo := NewConversationRepository(db)
			conv, err := repo.Ensure(context.Background(), tt.customerID, tt.providerID)
			require.NoError(t, err)
			require.NotNil(t, conv)

			if tt.expectNew {
				assert.NotEmpty(t, conv.ID)
				assert.Equal(t, tt.customerID, conv.CustomerID)
				assert.Equal(t, tt.providerID, conv.ProviderID)
			} else {
				assert.Equal(t, tt.wantID, conv.ID)
				assert.True(t, conv.HasParticipant(tt.customerID))
				assert.True(t, conv.HasParticipant(tt.providerID))
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestConversationRepository_ByIDNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `conversations` WHERE id = ?")).
		WithArgs("missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewConversationRepository(db)
	_, err := repo.ByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

package postgresengine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
)

func Test_classify_MapsUniqueViolationsOfBothDrivers(t *testing.T) {
	testCases := []struct {
		name      string
		err       error
		duplicate bool
	}{
		{"pgx unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped pgx unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"pgx foreign key violation", &pgconn.PgError{Code: "23503"}, false},
		{"lib/pq unique violation", &pq.Error{Code: "23505"}, true},
		{"lib/pq serialization failure", &pq.Error{Code: "40001"}, false},
		{"plain error", errors.New("connection reset"), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := classify(tc.err)

			assert.Equal(t, tc.duplicate, isUniqueViolation(tc.err))
			assert.Equal(t, tc.duplicate, errors.Is(err, catalog.ErrDuplicateKey))
			assert.Equal(t, !tc.duplicate, errors.Is(err, ErrQueryFailed))
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func Test_durationToMilliseconds_RoundsToMicroseconds(t *testing.T) {
	assert.InDelta(t, 1.235, durationToMilliseconds(1234567), 0.0000001)
}

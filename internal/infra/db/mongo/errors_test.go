package mongo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"rentalhub/internal/app/uow"
	domainbooking "rentalhub/internal/domain/booking"
	"rentalhub/internal/domain/listings"
)

func TestFindOneErrorMapsMissToNotFound(t *testing.T) {
	require.Equal(t, domainbooking.ErrBookingNotFound, findOneError(mongo.ErrNoDocuments, domainbooking.ErrBookingNotFound))
	require.Equal(t, listings.ErrListingNotFound, findOneError(mongo.ErrNoDocuments, listings.ErrListingNotFound))
}

func TestFindOneErrorRetriesTransientTransactionErrors(t *testing.T) {
	err := findOneError(mongo.CommandError{
		Code:    codeWriteConflict,
		Name:    "WriteConflict",
		Message: "write conflict during plan execution",
		Labels:  []string{"TransientTransactionError"},
	}, domainbooking.ErrBookingNotFound)
	require.ErrorIs(t, err, uow.ErrWriteConflict)

	err = findOneError(mongo.CommandError{Code: codeWriteConflict, Name: "WriteConflict"}, domainbooking.ErrBookingNotFound)
	require.ErrorIs(t, err, uow.ErrWriteConflict)
}

func TestFindOneErrorReportsStoreFailureAsUnavailable(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := findOneError(cause, domainbooking.ErrBookingNotFound)
	require.ErrorIs(t, err, uow.ErrTemporarilyUnavailable)
	require.ErrorIs(t, err, cause)
	require.NotErrorIs(t, err, domainbooking.ErrBookingNotFound)
}

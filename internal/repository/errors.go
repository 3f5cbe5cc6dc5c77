package repository

import (
	"errors"
	"fmt"

	"go-office-trash/internal/datastore"
	"go-office-trash/internal/model"
)

// storeErr translates datastore failures into model errors. notFound is the
// model error a missing record maps to.
func storeErr(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, datastore.ErrNotFound):
		return notFound
	case errors.Is(err, datastore.ErrUnavailable):
		return fmt.Errorf("%w: %v", model.ErrStorageUnavailable, err)
	default:
		return err
	}
}

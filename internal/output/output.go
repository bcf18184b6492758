package output

import (
	"context"

	"github.com/crimson-sun/fortiwatch/internal/model"
)

// Output defines the interface for record destinations.
type Output interface {
	Write(ctx context.Context, rec model.Record) error
	Close() error
}

// WriteAll writes records in order and stops at the first error.
func WriteAll(ctx context.Context, out Output, records []model.Record) error {
	for _, rec := range records {
		if err := out.Write(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upAddBillStatus, downAddBillStatus)
}

func upAddBillStatus(ctx context.Context, tx *sql.Tx) error {
	// Empty string means no bill is attached. Expenses created before this
	// column with a bill attached never got a scan lifecycle, so they are
	// backfilled as ready.
	_, err := tx.ExecContext(ctx, `
		ALTER TABLE expenses
		ADD COLUMN bill_status VARCHAR(16) NOT NULL DEFAULT '';
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE expenses
		SET bill_status = 'ready'
		WHERE is_bill_attached = TRUE;
	`)
	if err != nil {
		return err
	}

	return nil
}

func downAddBillStatus(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		ALTER TABLE expenses
		DROP COLUMN IF EXISTS bill_status;
	`)
	if err != nil {
		return err
	}
	return nil
}

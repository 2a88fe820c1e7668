package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upInitTables, downInitTables)
}

func upInitTables(ctx context.Context, tx *sql.Tx) error {
	// Create users table
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE users (
			id VARCHAR(128) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			profile_picture TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return err
	}

	// Create contacts table. The relation is directed, so (user, friend)
	// and (friend, user) are independent rows.
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE contacts (
			user_id VARCHAR(128) NOT NULL,
			friend_id VARCHAR(128) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, friend_id),
			CONSTRAINT fk_contacts_user
				FOREIGN KEY(user_id)
				REFERENCES users(id),
			CONSTRAINT fk_contacts_friend
				FOREIGN KEY(friend_id)
				REFERENCES users(id)
		);
	`)
	if err != nil {
		return err
	}

	// Create groups table
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE groups (
			id VARCHAR(128) PRIMARY KEY,
			invite_code VARCHAR(6) NOT NULL,
			name VARCHAR(255) NOT NULL,
			photo TEXT,
			total_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			creator_id VARCHAR(128) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT fk_groups_creator
				FOREIGN KEY(creator_id)
				REFERENCES users(id)
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `CREATE UNIQUE INDEX idx_groups_invite_code ON groups(invite_code);`)
	if err != nil {
		return err
	}

	// Create group_members table
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE group_members (
			group_id VARCHAR(128) NOT NULL,
			user_id VARCHAR(128) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (group_id, user_id),
			CONSTRAINT fk_group_members_group
				FOREIGN KEY(group_id)
				REFERENCES groups(id),
			CONSTRAINT fk_group_members_user
				FOREIGN KEY(user_id)
				REFERENCES users(id)
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `CREATE INDEX idx_group_members_user_id ON group_members(user_id);`)
	if err != nil {
		return err
	}

	// Create expenses table
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE expenses (
			id VARCHAR(128) PRIMARY KEY,
			group_id VARCHAR(128) NOT NULL,
			name VARCHAR(255) NOT NULL,
			amount DOUBLE PRECISION NOT NULL DEFAULT 0,
			creator_id VARCHAR(128) NOT NULL,
			is_bill_attached BOOLEAN NOT NULL DEFAULT FALSE,
			bill_photo TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT fk_expenses_group
				FOREIGN KEY(group_id)
				REFERENCES groups(id),
			CONSTRAINT fk_expenses_creator
				FOREIGN KEY(creator_id)
				REFERENCES users(id)
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `CREATE INDEX idx_expenses_group_id ON expenses(group_id);`)
	if err != nil {
		return err
	}

	// Create expense_participants table
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE expense_participants (
			expense_id VARCHAR(128) NOT NULL,
			user_id VARCHAR(128) NOT NULL,
			share DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (expense_id, user_id),
			CONSTRAINT fk_expense_participants_expense
				FOREIGN KEY(expense_id)
				REFERENCES expenses(id),
			CONSTRAINT fk_expense_participants_user
				FOREIGN KEY(user_id)
				REFERENCES users(id)
		);
	`)
	if err != nil {
		return err
	}

	// Create bill_items table
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE bill_items (
			id VARCHAR(128) PRIMARY KEY,
			expense_id VARCHAR(128) NOT NULL,
			name VARCHAR(255) NOT NULL,
			price DOUBLE PRECISION NOT NULL DEFAULT 0,
			quantity INTEGER NOT NULL DEFAULT 1,
			total_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT fk_bill_items_expense
				FOREIGN KEY(expense_id)
				REFERENCES expenses(id)
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `CREATE INDEX idx_bill_items_expense_id ON bill_items(expense_id);`)
	if err != nil {
		return err
	}

	// Create bill_item_assignments table
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE bill_item_assignments (
			bill_item_id VARCHAR(128) NOT NULL,
			user_id VARCHAR(128) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (bill_item_id, user_id),
			CONSTRAINT fk_bill_item_assignments_item
				FOREIGN KEY(bill_item_id)
				REFERENCES bill_items(id),
			CONSTRAINT fk_bill_item_assignments_user
				FOREIGN KEY(user_id)
				REFERENCES users(id)
		);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `CREATE INDEX idx_bill_item_assignments_user_id ON bill_item_assignments(user_id);`)
	if err != nil {
		return err
	}

	return nil
}

func downInitTables(ctx context.Context, tx *sql.Tx) error {
	// Drop in reverse dependency order. Foreign key constraints ensure the
	// drop fails loudly if the order is ever wrong.
	for _, stmt := range []string{
		`DROP TABLE IF EXISTS bill_item_assignments;`,
		`DROP TABLE IF EXISTS bill_items;`,
		`DROP TABLE IF EXISTS expense_participants;`,
		`DROP TABLE IF EXISTS expenses;`,
		`DROP TABLE IF EXISTS group_members;`,
		`DROP TABLE IF EXISTS groups;`,
		`DROP TABLE IF EXISTS contacts;`,
		`DROP TABLE IF EXISTS users;`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

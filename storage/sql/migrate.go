package sql

import (
	"database/sql"
	"fmt"
)

func (c *conn) migrate() (int, error) {
	_, err := c.Exec(`
		create table if not exists migrations (
			num integer not null,
			at timestamptz not null
		);
	`)
	if err != nil {
		return 0, fmt.Errorf("creating migration table: %v", err)
	}

	i := 0
	done := false
	for {
		err := c.ExecTx(func(tx *trans) error {
			// Within a transaction, perform a single migration.
			var (
				num sql.NullInt64
				n   int
			)
			if err := tx.QueryRow(`select max(num) from migrations;`).Scan(&num); err != nil {
				return fmt.Errorf("select max migration: %v", err)
			}
			if num.Valid {
				n = int(num.Int64)
			}
			if n >= len(migrations) {
				done = true
				return nil
			}

			migrationNum := n + 1
			m := migrations[n]
			if _, err := tx.Exec(m.stmt); err != nil {
				return fmt.Errorf("migration %d failed: %v", migrationNum, err)
			}

			q := `insert into migrations (num, at) values ($1, now());`
			if _, err := tx.Exec(q, migrationNum); err != nil {
				return fmt.Errorf("update migration table: %v", err)
			}
			return nil
		})
		if err != nil {
			return i, err
		}
		if done {
			break
		}
		i++
	}

	return i, nil
}

type migration struct {
	stmt string
}

// All SQL flavors share migration strategies.
var migrations = []migration{
	{
		stmt: `
			create table service (
				id text not null primary key,
				name text not null,
				url text not null,
				is_enabled boolean not null,
				local_callback_url text not null default '',
				github_callback_url text not null default '',
				microsoft_callback_url text not null default ''
			);

			create table sso_user (
				id text not null primary key,
				service_id text not null,
				email text not null,
				name text not null,
				is_enabled boolean not null,
				password_hash text not null default '',
				locale text not null default ''
			);

			create table sso_key (
				id text not null primary key,
				name text not null,
				value text not null,
				is_enabled boolean not null,
				is_revoked boolean not null,
				type text not null,
				service_id text not null default '',
				user_id text not null default ''
			);

			create table csrf (
				key text not null primary key,
				value text not null,
				ttl timestamptz not null,
				service_id text not null
			);

			create table audit (
				id text not null primary key,
				created_at timestamptz not null,
				type text not null,
				service_id text not null default '',
				user_id text not null default '',
				user_key_id text not null default '',
				data bytea not null default '{}',
				remote_addr text not null default '',
				user_agent text not null default '',
				forwarded_for text not null default ''
			);
		`,
	},
	{
		stmt: `
			create unique index sso_user_service_email on sso_user (service_id, email);
			-- Not unique: root and service keys share the empty (service_id, user_id)
			-- tuple, so the "one key per type per (service, user)" invariant for user
			-- keys is enforced in KeyCreate, not by a database constraint.
			create index sso_key_service_user_type on sso_key (service_id, user_id, type);
			create index sso_key_value on sso_key (value);
			create index audit_created_at on audit (created_at, id);
		`,
	},
}

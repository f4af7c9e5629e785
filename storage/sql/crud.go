package sql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dexidp/sso/storage"
)

// Abstract row vs rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

var _ storage.Driver = (*conn)(nil)

func (c *conn) ServiceRead(ctx context.Context, id string) (storage.Service, error) {
	return scanService(c.QueryRow(`
		select
			id, name, url, is_enabled,
			local_callback_url, github_callback_url, microsoft_callback_url
		from service where id = $1;
	`, id))
}

func (c *conn) ServiceCheckEnabled(ctx context.Context, id string) (storage.Service, error) {
	s, err := c.ServiceRead(ctx, id)
	if err != nil {
		return s, err
	}
	if !s.IsEnabled {
		return s, storage.ErrServiceDisabled
	}
	return s, nil
}

func scanService(s scanner) (storage.Service, error) {
	var svc storage.Service
	err := s.Scan(
		&svc.ID, &svc.Name, &svc.URL, &svc.IsEnabled,
		&svc.LocalCallbackURL, &svc.GitHubCallbackURL, &svc.MicrosoftCallbackURL,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return svc, storage.ErrNotFound
		}
		return svc, fmt.Errorf("select service: %v", err)
	}
	return svc, nil
}

func (c *conn) UserReadByID(ctx context.Context, serviceID, id string) (storage.User, error) {
	if serviceID == "" {
		return scanUser(c.QueryRow(`
			select id, service_id, email, name, is_enabled, password_hash, locale
			from sso_user where id = $1;
		`, id))
	}
	return scanUser(c.QueryRow(`
		select id, service_id, email, name, is_enabled, password_hash, locale
		from sso_user where id = $1 and service_id = $2;
	`, id, serviceID))
}

func (c *conn) UserReadByEmail(ctx context.Context, serviceID, email string) (storage.User, error) {
	return scanUser(c.QueryRow(`
		select id, service_id, email, name, is_enabled, password_hash, locale
		from sso_user where service_id = $1 and email = $2;
	`, serviceID, email))
}

func scanUser(s scanner) (storage.User, error) {
	var u storage.User
	err := s.Scan(&u.ID, &u.ServiceID, &u.Email, &u.Name, &u.IsEnabled, &u.PasswordHash, &u.Locale)
	if err != nil {
		if err == sql.ErrNoRows {
			return u, storage.ErrNotFound
		}
		return u, fmt.Errorf("select user: %v", err)
	}
	return u, nil
}

func (c *conn) UserUpdateEmail(ctx context.Context, id, newEmail string) (storage.User, error) {
	if _, err := c.Exec(`update sso_user set email = $1 where id = $2;`, newEmail, id); err != nil {
		return storage.User{}, fmt.Errorf("update user email: %v", err)
	}
	return c.UserReadByID(ctx, "", id)
}

func (c *conn) UserUpdatePassword(ctx context.Context, id, newHash string) (storage.User, error) {
	if _, err := c.Exec(`update sso_user set password_hash = $1 where id = $2;`, newHash, id); err != nil {
		return storage.User{}, fmt.Errorf("update user password: %v", err)
	}
	return c.UserReadByID(ctx, "", id)
}

func (c *conn) UserUpdate(ctx context.Context, id string, upd storage.UserUpdate) (storage.User, error) {
	if upd.IsEnabled != nil {
		if _, err := c.Exec(`update sso_user set is_enabled = $1 where id = $2;`, *upd.IsEnabled, id); err != nil {
			return storage.User{}, fmt.Errorf("update user is_enabled: %v", err)
		}
	}
	if upd.Name != nil {
		if _, err := c.Exec(`update sso_user set name = $1 where id = $2;`, *upd.Name, id); err != nil {
			return storage.User{}, fmt.Errorf("update user name: %v", err)
		}
	}
	return c.UserReadByID(ctx, "", id)
}

func (c *conn) KeyCreate(ctx context.Context, k storage.Key) (storage.Key, error) {
	if k.ID == "" {
		k.ID = storage.NewID()
	}
	if k.UserID != "" {
		if _, err := c.KeyReadByUser(ctx, k.ServiceID, k.UserID, k.Type); err == nil {
			return k, storage.ErrAlreadyExists
		} else if err != storage.ErrNotFound {
			return k, err
		}
	}
	_, err := c.Exec(`
		insert into sso_key (id, name, value, is_enabled, is_revoked, type, service_id, user_id)
		values ($1, $2, $3, $4, $5, $6, $7, $8);
	`, k.ID, k.Name, k.Value, k.IsEnabled, k.IsRevoked, string(k.Type), k.ServiceID, k.UserID)
	if err != nil {
		if c.alreadyExistsCheck(err) {
			return k, storage.ErrAlreadyExists
		}
		return k, fmt.Errorf("insert key: %v", err)
	}
	return k, nil
}

func (c *conn) KeyReadByID(ctx context.Context, id string) (storage.Key, error) {
	return scanKey(c.QueryRow(`
		select id, name, value, is_enabled, is_revoked, type, service_id, user_id
		from sso_key where id = $1;
	`, id))
}

func (c *conn) KeyReadByUser(ctx context.Context, serviceID, userID string, typ storage.KeyType) (storage.Key, error) {
	return scanKey(c.QueryRow(`
		select id, name, value, is_enabled, is_revoked, type, service_id, user_id
		from sso_key where service_id = $1 and user_id = $2 and type = $3;
	`, serviceID, userID, string(typ)))
}

func (c *conn) KeyReadByRootValue(ctx context.Context, value string) (storage.Key, error) {
	return scanKey(c.QueryRow(`
		select id, name, value, is_enabled, is_revoked, type, service_id, user_id
		from sso_key where value = $1 and service_id = '' and user_id = '';
	`, value))
}

func (c *conn) KeyReadByServiceValue(ctx context.Context, value string) (storage.Key, error) {
	return scanKey(c.QueryRow(`
		select id, name, value, is_enabled, is_revoked, type, service_id, user_id
		from sso_key where value = $1 and service_id != '' and user_id = '';
	`, value))
}

func (c *conn) KeyReadByUserValue(ctx context.Context, serviceID, value string, typ storage.KeyType) (storage.Key, error) {
	return scanKey(c.QueryRow(`
		select id, name, value, is_enabled, is_revoked, type, service_id, user_id
		from sso_key where service_id = $1 and value = $2 and user_id != '' and type = $3;
	`, serviceID, value, string(typ)))
}

func scanKey(s scanner) (storage.Key, error) {
	var k storage.Key
	var typ string
	err := s.Scan(&k.ID, &k.Name, &k.Value, &k.IsEnabled, &k.IsRevoked, &typ, &k.ServiceID, &k.UserID)
	if err != nil {
		if err == sql.ErrNoRows {
			return k, storage.ErrNotFound
		}
		return k, fmt.Errorf("select key: %v", err)
	}
	k.Type = storage.KeyType(typ)
	return k, nil
}

func (c *conn) KeyUpdateByID(ctx context.Context, id string, upd storage.KeyUpdate) (storage.Key, error) {
	if upd.IsEnabled != nil {
		if _, err := c.Exec(`update sso_key set is_enabled = $1 where id = $2;`, *upd.IsEnabled, id); err != nil {
			return storage.Key{}, fmt.Errorf("update key is_enabled: %v", err)
		}
	}
	if upd.IsRevoked != nil {
		if _, err := c.Exec(`update sso_key set is_revoked = $1 where id = $2;`, *upd.IsRevoked, id); err != nil {
			return storage.Key{}, fmt.Errorf("update key is_revoked: %v", err)
		}
	}
	if upd.Name != nil {
		if _, err := c.Exec(`update sso_key set name = $1 where id = $2;`, *upd.Name, id); err != nil {
			return storage.Key{}, fmt.Errorf("update key name: %v", err)
		}
	}
	return c.KeyReadByID(ctx, id)
}

func (c *conn) KeyUpdateManyByUserID(ctx context.Context, userID string, upd storage.KeyUpdate) (int64, error) {
	var total int64
	if upd.IsEnabled != nil {
		r, err := c.Exec(`update sso_key set is_enabled = $1 where user_id = $2;`, *upd.IsEnabled, userID)
		if err != nil {
			return total, fmt.Errorf("update keys is_enabled: %v", err)
		}
		if n, err := r.RowsAffected(); err == nil {
			total = n
		}
	}
	if upd.IsRevoked != nil {
		r, err := c.Exec(`update sso_key set is_revoked = $1 where user_id = $2;`, *upd.IsRevoked, userID)
		if err != nil {
			return total, fmt.Errorf("update keys is_revoked: %v", err)
		}
		if n, err := r.RowsAffected(); err == nil {
			total = n
		}
	}
	return total, nil
}

func (c *conn) CsrfCreate(ctx context.Context, key, value string, ttl time.Time, serviceID string) error {
	if _, err := c.Exec(`delete from csrf where ttl < $1;`, time.Now()); err != nil {
		c.logger.Errorf("evict expired csrf: %v", err)
	}
	return c.ExecTx(func(tx *trans) error {
		_, err := tx.Exec(`insert into csrf (key, value, ttl, service_id) values ($1, $2, $3, $4);`,
			key, value, ttl, serviceID)
		if err != nil {
			if c.alreadyExistsCheck(err) {
				return storage.ErrAlreadyExists
			}
			return fmt.Errorf("insert csrf: %v", err)
		}
		return nil
	})
}

func (c *conn) CsrfReadByKey(ctx context.Context, key string) (*storage.Csrf, error) {
	now := time.Now()
	if _, err := c.Exec(`delete from csrf where ttl < $1;`, now); err != nil {
		c.logger.Errorf("evict expired csrf: %v", err)
	}
	var out *storage.Csrf
	err := c.ExecTx(func(tx *trans) error {
		var csr storage.Csrf
		err := tx.QueryRow(`select key, value, ttl, service_id from csrf where key = $1;`, key).
			Scan(&csr.Key, &csr.Value, &csr.TTL, &csr.ServiceID)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("select csrf: %v", err)
		}
		if _, err := tx.Exec(`delete from csrf where key = $1;`, key); err != nil {
			return fmt.Errorf("delete csrf: %v", err)
		}
		if now.Before(csr.TTL) {
			out = &csr
		}
		return nil
	})
	return out, err
}

func (c *conn) CsrfDeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r, err := c.Exec(`delete from csrf where ttl < $1;`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired csrf: %v", err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %v", err)
	}
	return n, nil
}

func (c *conn) AuditCreate(ctx context.Context, row storage.Audit) error {
	_, err := c.Exec(`
		insert into audit (
			id, created_at, type, service_id, user_id, user_key_id, data,
			remote_addr, user_agent, forwarded_for
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`,
		row.ID, row.CreatedAt, string(row.Type), row.ServiceID, row.UserID, row.UserKeyID, row.Data,
		row.Meta.RemoteAddr, row.Meta.UserAgent, row.Meta.ForwardedFor,
	)
	if err != nil {
		return fmt.Errorf("insert audit: %v", err)
	}
	return nil
}

func (c *conn) AuditList(ctx context.Context, before time.Time, limit int) ([]storage.Audit, error) {
	rows, err := c.Query(`
		select
			id, created_at, type, service_id, user_id, user_key_id, data,
			remote_addr, user_agent, forwarded_for
		from audit
		where created_at < $1
		order by created_at desc, id desc
		limit $2;
	`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit: %v", err)
	}
	defer rows.Close()

	var out []storage.Audit
	for rows.Next() {
		var a storage.Audit
		var typ string
		if err := rows.Scan(
			&a.ID, &a.CreatedAt, &typ, &a.ServiceID, &a.UserID, &a.UserKeyID, &a.Data,
			&a.Meta.RemoteAddr, &a.Meta.UserAgent, &a.Meta.ForwardedFor,
		); err != nil {
			return nil, fmt.Errorf("scan audit: %v", err)
		}
		a.Type = storage.AuditType(typ)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan audit: %v", err)
	}
	return out, nil
}

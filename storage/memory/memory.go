// Package memory provides an in-memory implementation of storage.Driver,
// used by tests and local development.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dexidp/sso/storage"
)

var _ storage.Driver = (*Driver)(nil)

// Driver is an in-memory storage.Driver. It is safe for concurrent use.
type Driver struct {
	mu sync.Mutex

	logger *slog.Logger

	services map[string]storage.Service
	users    map[string]storage.User
	keys     map[string]storage.Key
	csrf     map[string]storage.Csrf
	audits   []storage.Audit
}

// New returns an empty in-memory driver.
func New(logger *slog.Logger) *Driver {
	return &Driver{
		logger:   logger,
		services: make(map[string]storage.Service),
		users:    make(map[string]storage.User),
		keys:     make(map[string]storage.Key),
		csrf:     make(map[string]storage.Csrf),
	}
}

// Config is the empty configuration for the in-memory driver, present so it
// can be selected the same way a networked backend is: by storage type name.
type Config struct{}

// Open returns a new, empty in-memory driver. The data it holds does not
// survive process restart.
func (c *Config) Open(logger *slog.Logger) (storage.Driver, error) {
	return New(logger), nil
}

func (d *Driver) tx(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f()
}

func (d *Driver) Close() error { return nil }

// Seed inserts services, users and keys directly, bypassing the Create
// methods. It is intended for test and fixture setup.
func (d *Driver) Seed(services []storage.Service, users []storage.User, keys []storage.Key) {
	d.tx(func() {
		for _, s := range services {
			d.services[s.ID] = s
		}
		for _, u := range users {
			d.users[u.ID] = u
		}
		for _, k := range keys {
			d.keys[k.ID] = k
		}
	})
}

func (d *Driver) ServiceRead(ctx context.Context, id string) (storage.Service, error) {
	var s storage.Service
	var err error
	d.tx(func() {
		var ok bool
		if s, ok = d.services[id]; !ok {
			err = storage.ErrNotFound
		}
	})
	return s, err
}

func (d *Driver) ServiceCheckEnabled(ctx context.Context, id string) (storage.Service, error) {
	s, err := d.ServiceRead(ctx, id)
	if err != nil {
		return s, err
	}
	if !s.IsEnabled {
		return s, storage.ErrServiceDisabled
	}
	return s, nil
}

func (d *Driver) UserReadByID(ctx context.Context, serviceID, id string) (storage.User, error) {
	var u storage.User
	var err error
	d.tx(func() {
		found, ok := d.users[id]
		if !ok || (serviceID != "" && found.ServiceID != serviceID) {
			err = storage.ErrNotFound
			return
		}
		u = found
	})
	return u, err
}

func (d *Driver) UserReadByEmail(ctx context.Context, serviceID, email string) (storage.User, error) {
	var u storage.User
	var err error
	d.tx(func() {
		for _, found := range d.users {
			if found.Email == email && (serviceID == "" || found.ServiceID == serviceID) {
				u = found
				return
			}
		}
		err = storage.ErrNotFound
	})
	return u, err
}

func (d *Driver) UserUpdateEmail(ctx context.Context, id, newEmail string) (storage.User, error) {
	var u storage.User
	var err error
	d.tx(func() {
		found, ok := d.users[id]
		if !ok {
			err = storage.ErrNotFound
			return
		}
		found.Email = newEmail
		d.users[id] = found
		u = found
	})
	return u, err
}

func (d *Driver) UserUpdatePassword(ctx context.Context, id, newHash string) (storage.User, error) {
	var u storage.User
	var err error
	d.tx(func() {
		found, ok := d.users[id]
		if !ok {
			err = storage.ErrNotFound
			return
		}
		found.PasswordHash = newHash
		d.users[id] = found
		u = found
	})
	return u, err
}

func (d *Driver) UserUpdate(ctx context.Context, id string, upd storage.UserUpdate) (storage.User, error) {
	var u storage.User
	var err error
	d.tx(func() {
		found, ok := d.users[id]
		if !ok {
			err = storage.ErrNotFound
			return
		}
		if upd.IsEnabled != nil {
			found.IsEnabled = *upd.IsEnabled
		}
		if upd.Name != nil {
			found.Name = *upd.Name
		}
		d.users[id] = found
		u = found
	})
	return u, err
}

func (d *Driver) KeyCreate(ctx context.Context, k storage.Key) (storage.Key, error) {
	var err error
	d.tx(func() {
		if k.ID == "" {
			k.ID = storage.NewID()
		}
		if _, ok := d.keys[k.ID]; ok {
			err = storage.ErrAlreadyExists
			return
		}
		if k.UserID != "" {
			for _, found := range d.keys {
				if found.ServiceID == k.ServiceID && found.UserID == k.UserID && found.Type == k.Type {
					err = storage.ErrAlreadyExists
					return
				}
			}
		}
		d.keys[k.ID] = k
	})
	return k, err
}

func (d *Driver) KeyReadByID(ctx context.Context, id string) (storage.Key, error) {
	var k storage.Key
	var err error
	d.tx(func() {
		var ok bool
		if k, ok = d.keys[id]; !ok {
			err = storage.ErrNotFound
		}
	})
	return k, err
}

func (d *Driver) KeyReadByUser(ctx context.Context, serviceID, userID string, typ storage.KeyType) (storage.Key, error) {
	var k storage.Key
	var err error
	d.tx(func() {
		for _, found := range d.keys {
			if found.ServiceID == serviceID && found.UserID == userID && found.Type == typ {
				k = found
				return
			}
		}
		err = storage.ErrNotFound
	})
	return k, err
}

func (d *Driver) KeyReadByRootValue(ctx context.Context, value string) (storage.Key, error) {
	var k storage.Key
	var err error
	d.tx(func() {
		for _, found := range d.keys {
			if found.Value == value && found.ServiceID == "" && found.UserID == "" {
				k = found
				return
			}
		}
		err = storage.ErrNotFound
	})
	return k, err
}

func (d *Driver) KeyReadByServiceValue(ctx context.Context, value string) (storage.Key, error) {
	var k storage.Key
	var err error
	d.tx(func() {
		for _, found := range d.keys {
			if found.Value == value && found.ServiceID != "" && found.UserID == "" {
				k = found
				return
			}
		}
		err = storage.ErrNotFound
	})
	return k, err
}

func (d *Driver) KeyReadByUserValue(ctx context.Context, serviceID, value string, typ storage.KeyType) (storage.Key, error) {
	var k storage.Key
	var err error
	d.tx(func() {
		for _, found := range d.keys {
			if found.Value == value && found.ServiceID == serviceID && found.UserID != "" && found.Type == typ {
				k = found
				return
			}
		}
		err = storage.ErrNotFound
	})
	return k, err
}

func applyKeyUpdate(k storage.Key, upd storage.KeyUpdate) storage.Key {
	if upd.IsEnabled != nil {
		k.IsEnabled = *upd.IsEnabled
	}
	if upd.IsRevoked != nil {
		k.IsRevoked = *upd.IsRevoked
	}
	if upd.Name != nil {
		k.Name = *upd.Name
	}
	return k
}

func (d *Driver) KeyUpdateByID(ctx context.Context, id string, upd storage.KeyUpdate) (storage.Key, error) {
	var k storage.Key
	var err error
	d.tx(func() {
		found, ok := d.keys[id]
		if !ok {
			err = storage.ErrNotFound
			return
		}
		found = applyKeyUpdate(found, upd)
		d.keys[id] = found
		k = found
	})
	return k, err
}

func (d *Driver) KeyUpdateManyByUserID(ctx context.Context, userID string, upd storage.KeyUpdate) (int64, error) {
	var n int64
	d.tx(func() {
		for id, found := range d.keys {
			if found.UserID != userID {
				continue
			}
			d.keys[id] = applyKeyUpdate(found, upd)
			n++
		}
	})
	return n, nil
}

func (d *Driver) evictExpiredCsrfLocked(now time.Time) {
	for k, c := range d.csrf {
		if !now.Before(c.TTL) {
			delete(d.csrf, k)
		}
	}
}

func (d *Driver) CsrfCreate(ctx context.Context, key, value string, ttl time.Time, serviceID string) error {
	var err error
	d.tx(func() {
		d.evictExpiredCsrfLocked(time.Now())
		if _, ok := d.csrf[key]; ok {
			err = storage.ErrAlreadyExists
			return
		}
		d.csrf[key] = storage.Csrf{Key: key, Value: value, TTL: ttl, ServiceID: serviceID}
	})
	return err
}

func (d *Driver) CsrfReadByKey(ctx context.Context, key string) (*storage.Csrf, error) {
	var out *storage.Csrf
	d.tx(func() {
		now := time.Now()
		d.evictExpiredCsrfLocked(now)
		c, ok := d.csrf[key]
		if !ok {
			return
		}
		delete(d.csrf, key)
		if now.Before(c.TTL) {
			cc := c
			out = &cc
		}
	})
	return out, nil
}

func (d *Driver) CsrfDeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	d.tx(func() {
		for k, c := range d.csrf {
			if !now.Before(c.TTL) {
				delete(d.csrf, k)
				n++
			}
		}
	})
	return n, nil
}

func (d *Driver) AuditCreate(ctx context.Context, row storage.Audit) error {
	d.tx(func() {
		d.audits = append(d.audits, row)
	})
	return nil
}

func (d *Driver) AuditList(ctx context.Context, before time.Time, limit int) ([]storage.Audit, error) {
	var out []storage.Audit
	d.tx(func() {
		for i := len(d.audits) - 1; i >= 0 && len(out) < limit; i-- {
			a := d.audits[i]
			if a.CreatedAt.Before(before) {
				out = append(out, a)
			}
		}
	})
	return out, nil
}

// Package testutil provides shared fixtures for tests: an in-memory database
// with the real migrations applied, a vault and a referral tree builder.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"treematch/internal/database"
	"treematch/internal/models"
	"treematch/internal/secure"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewTestDB opens a private in-memory sqlite database and applies all migrations.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:treematch_test_%d?mode=memory&cache=shared&_foreign_keys=on", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.RunMigrations(context.Background(), db))
	return db
}

// NewVault returns a vault with fixed test keys.
func NewVault(t *testing.T) *secure.Vault {
	t.Helper()
	v, err := secure.NewVault(bytes.Repeat([]byte{42}, 32), []byte("test-fingerprint"))
	require.NoError(t, err)
	return v
}

// Tree inserts users and referral edges directly, bypassing services.
type Tree struct {
	t     *testing.T
	db    *gorm.DB
	vault *secure.Vault
	Users map[string]*models.User
}

// NewTree returns an empty builder over db.
func NewTree(t *testing.T, db *gorm.DB, vault *secure.Vault) *Tree {
	return &Tree{t: t, db: db, vault: vault, Users: map[string]*models.User{}}
}

// User creates a user named name. An empty parent makes it a root.
func (b *Tree) User(name, parent string, opts ...func(*models.User)) *models.User {
	b.t.Helper()
	email := name + "@example.com"
	encEmail, err := b.vault.Encrypt(email)
	require.NoError(b.t, err)
	encName, err := b.vault.Encrypt(name)
	require.NoError(b.t, err)

	age := 30
	u := &models.User{
		EmailFingerprint:  b.vault.Fingerprint(email),
		EmailEncrypted:    encEmail,
		FullNameEncrypted: encName,
		PasswordHash:      "x",
		Age:               &age,
		Gender:            models.GenderOther,
		Location:          "Tel Aviv",
	}
	for _, opt := range opts {
		opt(u)
	}
	require.NoError(b.t, b.db.Create(u).Error)

	if parent != "" {
		p, ok := b.Users[parent]
		require.True(b.t, ok, "unknown parent %q", parent)
		require.NoError(b.t, b.db.Create(&models.Referral{
			ReferrerID: p.ID,
			ReferredID: u.ID,
			CodeUsed:   p.ReferralCode,
		}).Error)
	}
	b.Users[name] = u
	return u
}

// ID returns the id of a previously created user.
func (b *Tree) ID(name string) uint {
	b.t.Helper()
	u, ok := b.Users[name]
	require.True(b.t, ok, "unknown user %q", name)
	return u.ID
}

// WithAge sets the user's age.
func WithAge(age int) func(*models.User) {
	return func(u *models.User) { u.Age = &age }
}

// WithGender sets the user's gender.
func WithGender(g string) func(*models.User) {
	return func(u *models.User) { u.Gender = g }
}

// WithLocation sets the user's location.
func WithLocation(loc string) func(*models.User) {
	return func(u *models.User) { u.Location = loc }
}

// Suspended marks the user suspended.
func Suspended() func(*models.User) {
	return func(u *models.User) { u.IsSuspended = true }
}

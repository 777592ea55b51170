// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"strings"
	"time"

	"treematch/internal/models"
	"treematch/internal/secure"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

var genders = []string{models.GenderMale, models.GenderFemale, models.GenderOther}

// Identity is the clear-text part of a demo user.
type Identity struct {
	Email    string
	FullName string
	Phone    string
	Address  string
}

// Factory builds demo users and persists them with their PII encrypted.
type Factory struct {
	db           *gorm.DB
	vault        *secure.Vault
	faker        *gofakeit.Faker
	passwordHash string
	seq          int
}

// NewFactory creates a Factory. A zero seed picks a time-based one.
// Every user it creates shares password, which is hashed once.
func NewFactory(db *gorm.DB, vault *secure.Vault, seed int64, password string) (*Factory, error) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	hash, err := secure.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}
	return &Factory{db: db, vault: vault, faker: gofakeit.New(seed), passwordHash: hash}, nil
}

// FakeIdentity returns a unique fake email plus matching name, phone and address.
func (f *Factory) FakeIdentity() Identity {
	f.seq++
	first, last := f.faker.FirstName(), f.faker.LastName()
	local := strings.ToLower(strings.Map(func(r rune) rune {
		if r == ' ' || r == '\'' {
			return -1
		}
		return r
	}, first+"."+last))
	return Identity{
		Email:    fmt.Sprintf("%s.%d@example.com", local, f.seq),
		FullName: first + " " + last,
		Phone:    f.faker.Phone(),
		Address:  f.faker.Street() + ", " + f.faker.City(),
	}
}

// BuildUser constructs an unsaved user for id with a fake public profile.
// Optional override functions may modify the generated user before it is returned.
func (f *Factory) BuildUser(id Identity, overrides ...func(*models.User)) (*models.User, error) {
	email := secure.NormalizeEmail(id.Email)
	enc := make([]string, 0, 4)
	for _, v := range []string{email, id.FullName, id.Phone, id.Address} {
		c, err := f.vault.Encrypt(v)
		if err != nil {
			return nil, err
		}
		enc = append(enc, c)
	}

	age := f.faker.IntRange(21, 55)
	height := f.faker.IntRange(155, 195)
	user := &models.User{
		EmailFingerprint:  f.vault.Fingerprint(email),
		EmailEncrypted:    enc[0],
		FullNameEncrypted: enc[1],
		PhoneEncrypted:    enc[2],
		AddressEncrypted:  enc[3],
		PasswordHash:      f.passwordHash,
		Age:               &age,
		Gender:            f.faker.RandomString(genders),
		Location:          f.faker.City(),
		Height:            &height,
		EmploymentStatus:  f.faker.JobTitle(),
		Interests:         strings.Join([]string{f.faker.Hobby(), f.faker.Hobby(), f.faker.Hobby()}, ", "),
		Bio:               f.faker.Sentence(12),
		SocialLink:        "https://instagram.com/" + strings.ToLower(f.faker.Username()),
		ProfileImage:      fmt.Sprintf("https://i.pravatar.cc/300?u=%s", f.faker.UUID()),
	}

	for _, override := range overrides {
		override(user)
	}
	return user, nil
}

// CreateUser builds and persists a user for id.
func (f *Factory) CreateUser(id Identity, overrides ...func(*models.User)) (*models.User, error) {
	user, err := f.BuildUser(id, overrides...)
	if err != nil {
		return nil, err
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Intn returns a pseudo-random int in [0, n) from the factory's seeded source.
func (f *Factory) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	return f.faker.IntRange(0, n-1)
}

// Line returns a short chat message.
func (f *Factory) Line() string {
	return f.faker.Sentence(f.faker.IntRange(3, 12))
}

// Chance reports true with probability p.
func (f *Factory) Chance(p float64) bool {
	return f.faker.Float64Range(0, 1) < p
}

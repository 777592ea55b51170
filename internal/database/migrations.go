package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"treematch/internal/middleware"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Migration structs are frozen snapshots of the schema at the time each
// migration was written. Later changes to internal/models need a new migration.

type migUser struct {
	ID                uint   `gorm:"primaryKey"`
	EmailFingerprint  string `gorm:"size:64;uniqueIndex;not null"`
	EmailEncrypted    string `gorm:"type:text;not null"`
	FullNameEncrypted string `gorm:"type:text;not null"`
	PhoneEncrypted    string `gorm:"type:text"`
	AddressEncrypted  string `gorm:"type:text"`
	PasswordHash      string `gorm:"size:255;not null"`
	Age               *int
	Gender            string `gorm:"size:20;index:idx_users_gender"`
	Location          string `gorm:"size:100"`
	Height            *int
	EmploymentStatus  string `gorm:"size:100"`
	Interests         string `gorm:"type:text"`
	Bio               string `gorm:"type:text"`
	SocialLink        string `gorm:"size:500"`
	ProfileImage      string `gorm:"size:500"`
	ReferralCode      string `gorm:"size:32;uniqueIndex;not null"`
	IsSuspended       bool   `gorm:"not null;default:false;index:idx_users_suspended"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LastActive        time.Time
}

func (migUser) TableName() string { return "users" }

type migReferral struct {
	ID         uint   `gorm:"primaryKey"`
	ReferrerID uint   `gorm:"not null;index:idx_referrals_referrer"`
	ReferredID uint   `gorm:"not null;uniqueIndex:idx_referrals_referred"`
	CodeUsed   string `gorm:"size:32;not null"`
	CreatedAt  time.Time

	Referrer migUser `gorm:"foreignKey:ReferrerID;constraint:OnDelete:RESTRICT"`
	Referred migUser `gorm:"foreignKey:ReferredID;constraint:OnDelete:CASCADE"`
}

func (migReferral) TableName() string { return "referrals" }

type migLike struct {
	ID          uint `gorm:"primaryKey"`
	UserID      uint `gorm:"not null;uniqueIndex:idx_likes_pair"`
	LikedUserID uint `gorm:"not null;uniqueIndex:idx_likes_pair;index:idx_likes_liked"`
	IsMutual    bool `gorm:"not null;default:false"`
	CreatedAt   time.Time

	User      migUser `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	LikedUser migUser `gorm:"foreignKey:LikedUserID;constraint:OnDelete:CASCADE"`
}

func (migLike) TableName() string { return "likes" }

type migBlock struct {
	ID        uint `gorm:"primaryKey"`
	BlockerID uint `gorm:"not null;uniqueIndex:idx_blocks_pair"`
	BlockedID uint `gorm:"not null;uniqueIndex:idx_blocks_pair;index:idx_blocks_blocked"`
	CreatedAt time.Time

	Blocker migUser `gorm:"foreignKey:BlockerID;constraint:OnDelete:CASCADE"`
	Blocked migUser `gorm:"foreignKey:BlockedID;constraint:OnDelete:CASCADE"`
}

func (migBlock) TableName() string { return "blocks" }

type migChat struct {
	ID            uint `gorm:"primaryKey"`
	User1ID       uint `gorm:"not null;uniqueIndex:idx_chats_pair"`
	User2ID       uint `gorm:"not null;uniqueIndex:idx_chats_pair;index:idx_chats_user2"`
	CreatedAt     time.Time
	LastMessageAt time.Time `gorm:"index:idx_chats_last_message"`

	User1 migUser `gorm:"foreignKey:User1ID;constraint:OnDelete:CASCADE"`
	User2 migUser `gorm:"foreignKey:User2ID;constraint:OnDelete:CASCADE"`
}

func (migChat) TableName() string { return "chats" }

type migMessage struct {
	ID       uint      `gorm:"primaryKey"`
	ChatID   uint      `gorm:"not null;index:idx_messages_chat"`
	SenderID uint      `gorm:"not null;index:idx_messages_sender"`
	Content  string    `gorm:"type:text;not null"`
	IsRead   bool      `gorm:"not null;default:false"`
	SentAt   time.Time `gorm:"not null"`

	Chat   migChat `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE"`
	Sender migUser `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE"`
}

func (migMessage) TableName() string { return "messages" }

func createUsersTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_users_table",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&migUser{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("users")
		},
	}
}

func createReferralsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_referrals_table",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&migReferral{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("referrals")
		},
	}
}

func createSocialGraphTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_likes_and_blocks_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&migLike{}, &migBlock{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("blocks", "likes")
		},
	}
}

func addSearchIndexes() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_add_search_indexes",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_users_age ON users (age)").Error; err != nil {
				return err
			}
			return tx.Exec("CREATE INDEX IF NOT EXISTS idx_users_location_lower ON users (LOWER(location))").Error
		},
		Rollback: func(tx *gorm.DB) error {
			if err := tx.Exec("DROP INDEX IF EXISTS idx_users_location_lower").Error; err != nil {
				return err
			}
			return tx.Exec("DROP INDEX IF EXISTS idx_users_age").Error
		},
	}
}

func createChatTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_create_chat_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&migChat{}, &migMessage{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("messages", "chats")
		},
	}
}

// Migrations returns every schema migration in application order.
func Migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		createUsersTable(),
		createReferralsTable(),
		createSocialGraphTables(),
		addSearchIndexes(),
		createChatTables(),
	}
}

func newMigrator(ctx context.Context, db *gorm.DB) *gormigrate.Gormigrate {
	opts := *gormigrate.DefaultOptions
	opts.UseTransaction = db.Dialector.Name() == "postgres"
	return gormigrate.New(db.WithContext(ctx), &opts, Migrations())
}

// RunMigrations applies all pending migrations.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if err := newMigrator(ctx, db).Migrate(); err != nil {
		middleware.Logger.ErrorContext(ctx, "Could not migrate", slog.String("error", err.Error()))
		return err
	}
	middleware.Logger.InfoContext(ctx, "Migrations ran successfully", slog.Int("count", len(Migrations())))
	return nil
}

// RollbackLast reverts the most recently applied migration.
func RollbackLast(ctx context.Context, db *gorm.DB) error {
	if err := newMigrator(ctx, db).RollbackLast(); err != nil {
		return fmt.Errorf("rollback last migration: %w", err)
	}
	return nil
}

// SchemaStatus lists applied and pending migration IDs.
type SchemaStatus struct {
	Driver  string
	Applied []string
	Pending []string
}

// GetSchemaStatus compares the migration table against Migrations().
func GetSchemaStatus(ctx context.Context, db *gorm.DB) (*SchemaStatus, error) {
	status := &SchemaStatus{Driver: db.Dialector.Name()}

	applied := map[string]bool{}
	table := gormigrate.DefaultOptions.TableName
	if db.Migrator().HasTable(table) {
		var ids []string
		if err := db.WithContext(ctx).Table(table).Order("id ASC").Pluck("id", &ids).Error; err != nil {
			return nil, fmt.Errorf("failed to read applied migrations: %w", err)
		}
		for _, id := range ids {
			applied[id] = true
		}
		status.Applied = ids
	}

	for _, m := range Migrations() {
		if !applied[m.ID] {
			status.Pending = append(status.Pending, m.ID)
		}
	}
	return status, nil
}

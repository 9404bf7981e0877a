package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/multifactors/internal/config"
	"github.com/diewo77/multifactors/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open connects using the configured driver, retrying a few times so the
// server can start alongside a database container that is still booting.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		log.Info("connecting to database", zap.String("driver", "sqlite"), zap.String("path", cfg.SQLitePath))
		dialector = sqlite.Open(cfg.SQLitePath)
	case "postgres", "":
		log.Info("connecting to database",
			zap.String("driver", "postgres"),
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port),
			zap.String("dbname", cfg.DBName),
			zap.String("user", cfg.User))
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}

	var conn *gorm.DB
	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		conn, err = gorm.Open(dialector, &gorm.Config{})
		if err == nil {
			return conn, nil
		}
		log.Warn("database connection failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("connect database: %w", err)
}

// OpenInMemory opens a migrated, private in-memory SQLite database.
// The pool is pinned to one connection because every new SQLite memory
// connection starts with an empty schema.
func OpenInMemory() (*gorm.DB, error) {
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := Migrate(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// Migrate creates or updates the users and profiles tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Profile{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// SeedAdmin ensures an approved admin account exists for email.
// An existing identity keeps its password; its profile is promoted.
func SeedAdmin(ctx context.Context, db *gorm.DB, email, password string) (*models.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}

	var profile models.Profile
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Where("email = ?", email).First(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			now := time.Now()
			user = models.User{Email: email, PasswordHash: string(hash), Provider: "password", EmailConfirmedAt: &now}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		}

		// Use FirstOrCreate to avoid duplicates, then promote.
		profile = models.Profile{ID: user.ID}
		if err := tx.Where(models.Profile{ID: user.ID}).
			Attrs(models.Profile{Email: email, Role: models.RoleStaff, Status: models.StatusPending}).
			FirstOrCreate(&profile).Error; err != nil {
			return err
		}
		profile.Role = models.RoleAdmin
		profile.Status = models.StatusApproved
		return tx.Model(&profile).Updates(map[string]any{
			"role":       models.RoleAdmin,
			"status":     models.StatusApproved,
			"updated_at": time.Now(),
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	return &profile, nil
}

package migrations

import (
	"database/sql"
	"time"

	_202608241103_bootstrapClaims "github.com/freemoonfaucet/gas-faucet/internal/postgres/migrations/202608241103_bootstrapClaims"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
	"gorm.io/gorm"
)

type Migration interface {
	Up(db *sql.DB, grm *gorm.DB) error
	GetName() string
}

type Migrations struct {
	Name      string `gorm:"primaryKey"`
	CreatedAt time.Time
}

type Migrator struct {
	Db     *sql.DB
	GDb    *gorm.DB
	Logger *zap.Logger
}

func NewMigrator(db *sql.DB, gDb *gorm.DB, l *zap.Logger) *Migrator {
	gDb.AutoMigrate(&Migrations{})
	return &Migrator{
		Db:     db,
		GDb:    gDb,
		Logger: l,
	}
}

func (m *Migrator) MigrateAll() error {
	migrations := []Migration{
		&_202608241103_bootstrapClaims.Migration{},
	}

	for _, migration := range migrations {
		if err := m.Migrate(migration); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) Migrate(migration Migration) error {
	name := migration.GetName()

	var count int64
	res := m.GDb.Model(&Migrations{}).Where("name = ?", name).Count(&count)
	if res.Error != nil {
		return xerrors.Errorf("Failed to check migration status for '%s': %w", name, res.Error)
	}
	if count > 0 {
		m.Logger.Sugar().Debugw("Migration already applied", zap.String("name", name))
		return nil
	}

	if err := migration.Up(m.Db, m.GDb); err != nil {
		return xerrors.Errorf("Failed to run migration '%s': %w", name, err)
	}

	record := &Migrations{Name: name}
	if res := m.GDb.Create(record); res.Error != nil {
		return xerrors.Errorf("Failed to record migration '%s': %w", name, res.Error)
	}

	m.Logger.Sugar().Infow("Applied migration", zap.String("name", name))
	return nil
}

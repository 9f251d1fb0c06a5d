package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/stagium/backend/internal/domain"
	"github.com/stagium/backend/internal/platform/envutil"
	"github.com/stagium/backend/internal/platform/logger"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	host := envutil.Str("POSTGRES_HOST", "localhost")
	port := envutil.Str("POSTGRES_PORT", "5432")
	user := envutil.Str("POSTGRES_USER", "postgres")
	password := envutil.Str("POSTGRES_PASSWORD", "")
	name := envutil.Str("POSTGRES_NAME", "stagium")
	sslmode := envutil.Str("POSTGRES_SSLMODE", "disable")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)

	serviceLog.Info("Connecting to Postgres...", "host", host, "db", name)
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, fmt.Errorf("enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := s.db.AutoMigrate(
		&domain.Utilisateur{},
		&domain.Stage{},
		&domain.Groupe{},
		&domain.GroupeStagiaire{},
		&domain.Rotation{},
		&domain.AffectationFinale{},
		&domain.NoteService{},
		&domain.NotificationLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// Dependents follow their stage when a campaign is removed directly in SQL;
	// application deletes stay explicit and transactional.
	for _, stmt := range []string{
		`ALTER TABLE "groupe" DROP CONSTRAINT IF EXISTS "fk_groupe_stage_id";
		 ALTER TABLE "groupe" ADD CONSTRAINT "fk_groupe_stage_id"
		 FOREIGN KEY ("stage_id") REFERENCES "stage"("id") ON DELETE CASCADE`,
		`ALTER TABLE "groupe_stagiaire" DROP CONSTRAINT IF EXISTS "fk_groupe_stagiaire_groupe_id";
		 ALTER TABLE "groupe_stagiaire" ADD CONSTRAINT "fk_groupe_stagiaire_groupe_id"
		 FOREIGN KEY ("groupe_id") REFERENCES "groupe"("id") ON DELETE CASCADE`,
		`ALTER TABLE "rotation" DROP CONSTRAINT IF EXISTS "fk_rotation_stage_id";
		 ALTER TABLE "rotation" ADD CONSTRAINT "fk_rotation_stage_id"
		 FOREIGN KEY ("stage_id") REFERENCES "stage"("id") ON DELETE CASCADE`,
		`ALTER TABLE "affectation_finale" DROP CONSTRAINT IF EXISTS "fk_affectation_finale_stage_id";
		 ALTER TABLE "affectation_finale" ADD CONSTRAINT "fk_affectation_finale_stage_id"
		 FOREIGN KEY ("stage_id") REFERENCES "stage"("id") ON DELETE CASCADE`,
		`ALTER TABLE "note_service" DROP CONSTRAINT IF EXISTS "fk_note_service_stage_id";
		 ALTER TABLE "note_service" ADD CONSTRAINT "fk_note_service_stage_id"
		 FOREIGN KEY ("stage_id") REFERENCES "stage"("id") ON DELETE CASCADE`,
	} {
		if err := s.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("configure foreign keys: %w", err)
		}
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}

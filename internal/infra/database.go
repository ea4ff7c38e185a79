package infra

import (
	"fmt"

	"tallerpagos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate,
// then applies the idempotent SQL patches AutoMigrate cannot express
// (partial unique indexes).
//
// TranslateError is enabled so unique violations surface as
// gorm.ErrDuplicatedKey — the reconciliation path matches on it to treat a
// concurrent duplicate confirmation as already-applied.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := db.AutoMigrate(
		&model.Usuario{},
		&model.OrdenTrabajo{},
		&model.Pago{},
		&model.PagoDetalle{},
		&model.TransaccionQR{},
		&model.FolioDiario{},
	); err != nil {
		return nil, fmt.Errorf("AutoMigrate: %w", err)
	}

	if err := applySchemaPatches(db); err != nil {
		return nil, fmt.Errorf("schema patches: %w", err)
	}

	return db, nil
}

// applySchemaPatches runs idempotent DDL that GORM AutoMigrate cannot fully
// handle on its own. Each statement uses IF NOT EXISTS semantics so
// re-running on an already-patched DB is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// One detalle per gateway transaction within a Pago. Partial: cash
		// entries have no referencia and must not collide with each other.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'uq_pago_detalles_pago_referencia') THEN
		    CREATE UNIQUE INDEX uq_pago_detalles_pago_referencia
		        ON pago_detalles (pago_id, referencia)
		        WHERE referencia IS NOT NULL;
		  END IF;
		END $$`,
		// The overdue sweep scans by due date and non-terminal estado.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_pagos_vencibles') THEN
		    CREATE INDEX idx_pagos_vencibles
		        ON pagos (fecha_vencimiento)
		        WHERE estado IN ('pendiente', 'pagado_parcial');
		  END IF;
		END $$`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}

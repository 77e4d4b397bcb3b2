package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sql.DB
	log zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	// Создаем директорию для БД, если её нет
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "database").Logger()
	}
	log.Info().Str("path", path).Msg("database initialized")

	return &DB{DB: db, log: log}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Таблица задач синхронизации (история не удаляется)
		`CREATE TABLE IF NOT EXISTS sync_jobs (
            id TEXT PRIMARY KEY,
            supplier_code TEXT NOT NULL,
            job_type TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'queued',
            params TEXT NOT NULL DEFAULT '{}',
            progress INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            started_at DATETIME,
            finished_at DATETIME,
            updated_at DATETIME NOT NULL
        )`,

		// Watermark + курсор на пару (поставщик, тип синка)
		`CREATE TABLE IF NOT EXISTS sync_state (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            supplier_code TEXT NOT NULL,
            sync_type TEXT NOT NULL,
            last_synced_at DATETIME NOT NULL,
            last_cursor TEXT NOT NULL DEFAULT '',
            updated_at DATETIME NOT NULL,
            UNIQUE(supplier_code, sync_type)
        )`,

		// Сырые записи: одна таблица на вид, одинаковый контракт upsert
		`CREATE TABLE IF NOT EXISTS raw_items (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            supplier_code TEXT NOT NULL,
            item_code TEXT NOT NULL,
            name TEXT NOT NULL DEFAULT '',
            price INTEGER NOT NULL DEFAULT 0,
            updated_at DATETIME,
            payload TEXT NOT NULL DEFAULT '',
            fetched_at DATETIME NOT NULL,
            UNIQUE(supplier_code, item_code)
        )`,
		`CREATE TABLE IF NOT EXISTS raw_orders (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            supplier_code TEXT NOT NULL,
            order_key TEXT NOT NULL,
            market_order_id TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT '',
            updated_at DATETIME,
            payload TEXT NOT NULL DEFAULT '',
            fetched_at DATETIME NOT NULL,
            supplier_order_id TEXT,
            UNIQUE(supplier_code, order_key)
        )`,
		`CREATE TABLE IF NOT EXISTS raw_qna (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            supplier_code TEXT NOT NULL,
            qna_key TEXT NOT NULL,
            item_code TEXT NOT NULL DEFAULT '',
            updated_at DATETIME,
            payload TEXT NOT NULL DEFAULT '',
            fetched_at DATETIME NOT NULL,
            UNIQUE(supplier_code, qna_key)
        )`,
		`CREATE TABLE IF NOT EXISTS raw_categories (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            supplier_code TEXT NOT NULL,
            category_key TEXT NOT NULL,
            name TEXT NOT NULL DEFAULT '',
            parent_key TEXT NOT NULL DEFAULT '',
            updated_at DATETIME,
            payload TEXT NOT NULL DEFAULT '',
            fetched_at DATETIME NOT NULL,
            UNIQUE(supplier_code, category_key)
        )`,

		// Журнал внешних вызовов, только append
		`CREATE TABLE IF NOT EXISTS fetch_logs (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            supplier_code TEXT NOT NULL,
            account TEXT NOT NULL DEFAULT '',
            endpoint TEXT NOT NULL,
            attempt INTEGER NOT NULL DEFAULT 1,
            request TEXT NOT NULL DEFAULT '',
            status_code INTEGER NOT NULL DEFAULT 0,
            response TEXT NOT NULL DEFAULT '',
            error TEXT,
            created_at DATETIME NOT NULL
        )`,

		// Цепочка листинг -> продукт -> код поставщика
		`CREATE TABLE IF NOT EXISTS product_links (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            seller_product_id TEXT NOT NULL UNIQUE,
            product_id INTEGER NOT NULL,
            supplier_code TEXT NOT NULL,
            supplier_item_code TEXT NOT NULL
        )`,

		// Заказы, размещенные у поставщика
		`CREATE TABLE IF NOT EXISTS supplier_orders (
            supplier_order_id TEXT PRIMARY KEY,
            supplier_code TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_sync_jobs_guard ON sync_jobs(supplier_code, job_type, status)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_jobs_updated ON sync_jobs(updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_raw_orders_link ON raw_orders(supplier_code, supplier_order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_fetch_logs_endpoint ON fetch_logs(endpoint, created_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 6

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial transactions schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					description TEXT NOT NULL,
					normalized_description TEXT,
					amount REAL NOT NULL DEFAULT 0,
					direction TEXT NOT NULL DEFAULT 'debit',
					occurred_at DATETIME NOT NULL,
					category_slug TEXT,
					subcategory_slug TEXT,
					ai_category_slug TEXT,
					ai_subcategory_slug TEXT,
					kind TEXT,
					status TEXT NOT NULL DEFAULT 'pending',
					method TEXT,
					explanation TEXT,
					confidence REAL NOT NULL DEFAULT 0,
					needs_review BOOLEAN NOT NULL DEFAULT 0,
					embedding BLOB,
					embedded_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_user_status ON transactions(user_id, status)`,
				`CREATE INDEX idx_transactions_user_embedded ON transactions(user_id, embedded_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add taxonomy tables",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					slug TEXT UNIQUE NOT NULL,
					name TEXT NOT NULL,
					parent_slug TEXT NOT NULL DEFAULT '',
					description TEXT NOT NULL DEFAULT '',
					is_active BOOLEAN NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE TABLE IF NOT EXISTS subcategories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					category_id INTEGER NOT NULL REFERENCES categories(id),
					slug TEXT NOT NULL,
					name TEXT NOT NULL,
					keywords TEXT NOT NULL DEFAULT '[]',
					is_default BOOLEAN NOT NULL DEFAULT 0,
					is_active BOOLEAN NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(category_id, slug)
				)`,
				`CREATE INDEX idx_subcategories_category ON subcategories(category_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Seed default taxonomy",
		Up:          seedDefaultTaxonomy,
	},
	{
		Version:     4,
		Description: "Add user rules and labeled examples",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS user_rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					pattern TEXT NOT NULL,
					pattern_type TEXT NOT NULL DEFAULT 'keyword',
					match_field TEXT NOT NULL DEFAULT 'normalized',
					category_slug TEXT NOT NULL,
					subcategory_slug TEXT NOT NULL DEFAULT '',
					provenance TEXT NOT NULL DEFAULT 'user_created',
					priority INTEGER NOT NULL DEFAULT 0,
					confidence REAL NOT NULL DEFAULT 0,
					is_active BOOLEAN NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(user_id, pattern, category_slug)
				)`,
				`CREATE INDEX idx_user_rules_user_active ON user_rules(user_id, is_active)`,
				`CREATE TABLE IF NOT EXISTS labeled_examples (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					normalized_description TEXT NOT NULL,
					category_slug TEXT NOT NULL,
					subcategory_slug TEXT NOT NULL DEFAULT '',
					source TEXT NOT NULL DEFAULT 'feedback',
					embedding BLOB,
					embedded_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(user_id, normalized_description)
				)`,
				`CREATE INDEX idx_labeled_examples_user ON labeled_examples(user_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     5,
		Description: "Add global pattern tables",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS global_patterns (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					pattern TEXT NOT NULL,
					category_slug TEXT NOT NULL,
					occurrence_count INTEGER NOT NULL DEFAULT 0,
					user_count INTEGER NOT NULL DEFAULT 0,
					agreement_count INTEGER NOT NULL DEFAULT 0,
					is_verified BOOLEAN NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(pattern, category_slug)
				)`,
				`CREATE INDEX idx_global_patterns_verified ON global_patterns(is_verified)`,
				`CREATE TABLE IF NOT EXISTS global_pattern_users (
					pattern_id INTEGER NOT NULL REFERENCES global_patterns(id),
					user_id TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (pattern_id, user_id)
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     6,
		Description: "Add rule usage counters",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE user_rules ADD COLUMN match_count INTEGER NOT NULL DEFAULT 0`,
				`ALTER TABLE user_rules ADD COLUMN last_matched_at DATETIME`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// defaultTaxonomy is the taxonomy installed into fresh databases. Category
// slugs line up with the system keyword table and the kind derivation rules;
// users extend it through the categories tables directly.
var defaultTaxonomy = []struct {
	slug          string
	name          string
	subcategories []seedSubcategory
}{
	{"food", "Food & Dining", []seedSubcategory{
		{"restaurants", "Restaurants", nil, true},
		{"food-delivery", "Food Delivery", []string{"zomato", "swiggy", "delivery"}, false},
		{"cafes", "Cafes & Snacks", []string{"cafe", "coffee", "bakery"}, false},
	}},
	{"groceries", "Groceries", []seedSubcategory{
		{"supermarket", "Supermarket", nil, true},
		{"quick-commerce", "Quick Commerce", []string{"blinkit", "zepto", "instamart"}, false},
	}},
	{"shopping", "Shopping", []seedSubcategory{
		{"online", "Online Shopping", []string{"amazon", "flipkart", "myntra"}, true},
		{"electronics", "Electronics", []string{"croma", "electronics", "mobile"}, false},
		{"clothing", "Clothing", []string{"apparel", "fashion", "footwear"}, false},
	}},
	{"transport", "Transport", []seedSubcategory{
		{"ride-hailing", "Ride Hailing", []string{"uber", "rapido", "cab", "taxi"}, true},
		{"public-transport", "Public Transport", []string{"metro", "bus"}, false},
		{"tolls-parking", "Tolls & Parking", []string{"fastag", "toll", "parking"}, false},
	}},
	{"fuel", "Fuel", nil},
	{"travel", "Travel", []seedSubcategory{
		{"flights", "Flights", []string{"flight", "airline", "indigo", "vistara"}, false},
		{"trains", "Trains", []string{"irctc", "train"}, false},
		{"hotels", "Hotels & Stays", []string{"hotel", "oyo", "airbnb"}, false},
		{"bookings", "Bookings", nil, true},
	}},
	{"entertainment", "Entertainment", []seedSubcategory{
		{"streaming", "Streaming", []string{"netflix", "hotstar", "spotify", "prime video"}, false},
		{"events", "Movies & Events", []string{"bookmyshow", "cinema", "movie", "concert"}, true},
	}},
	{"utilities", "Utilities", []seedSubcategory{
		{"electricity", "Electricity", []string{"electricity"}, false},
		{"internet", "Internet & Broadband", []string{"broadband", "wifi"}, false},
		{"mobile", "Mobile & DTH", []string{"recharge", "postpaid", "dth"}, true},
	}},
	{"housing", "Housing", []seedSubcategory{
		{"rent", "Rent", []string{"rent", "landlord", "lease"}, true},
		{"maintenance", "Maintenance", []string{"society", "maintenance"}, false},
	}},
	{"health", "Health", []seedSubcategory{
		{"pharmacy", "Pharmacy", []string{"pharmacy", "pharmeasy", "netmeds", "medicine"}, false},
		{"consultation", "Consultation", []string{"doctor", "clinic", "hospital"}, true},
	}},
	{"education", "Education", nil},
	{"insurance", "Insurance", nil},
	{"investment", "Investment", []seedSubcategory{
		{"mutual-funds", "Mutual Funds", []string{"sip", "mutual fund"}, false},
		{"stocks", "Stocks", []string{"zerodha", "groww", "upstox", "shares", "stocks"}, false},
		{"deposits", "Deposits & Schemes", []string{"fixed deposit", "ppf", "nps"}, true},
	}},
	{"emi", "Loan EMI", nil},
	{"tax", "Tax", nil},
	{"salary", "Salary", nil},
	{"interest", "Interest Income", nil},
	{"dividend", "Dividend Income", nil},
	{"refund", "Refunds & Cashback", nil},
	{"fees", "Fees & Charges", nil},
	{"donation", "Donations", nil},
	{"personal-care", "Personal Care", nil},
	{"transfer", "Transfers", nil},
}

type seedSubcategory struct {
	slug      string
	name      string
	keywords  []string
	isDefault bool
}

func seedDefaultTaxonomy(tx *sql.Tx) error {
	catStmt, err := tx.Prepare(`INSERT OR IGNORE INTO categories (slug, name) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare category insert: %w", err)
	}
	defer func() { _ = catStmt.Close() }()

	subStmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO subcategories (category_id, slug, name, keywords, is_default)
		SELECT id, ?, ?, ?, ? FROM categories WHERE slug = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare subcategory insert: %w", err)
	}
	defer func() { _ = subStmt.Close() }()

	for _, cat := range defaultTaxonomy {
		if _, err := catStmt.Exec(cat.slug, cat.name); err != nil {
			return fmt.Errorf("failed to seed category %s: %w", cat.slug, err)
		}
		for _, sub := range cat.subcategories {
			keywords, marshalErr := marshalKeywords(sub.keywords)
			if marshalErr != nil {
				return marshalErr
			}
			if _, err := subStmt.Exec(sub.slug, sub.name, keywords, sub.isDefault, cat.slug); err != nil {
				return fmt.Errorf("failed to seed subcategory %s/%s: %w", cat.slug, sub.slug, err)
			}
		}
	}
	return nil
}

// Migrate brings the database schema up to ExpectedSchemaVersion. Each
// pending migration runs in its own transaction.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

package ledger

import (
	"os"
	"sync"
	"testing"
	"time"

	"reelclub-backend/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testDB *gorm.DB

// clubTZ is the fixed business timezone used by every test policy.
var clubTZ *time.Location

func TestMain(m *testing.M) {
	var err error
	clubTZ, err = time.LoadLocation("America/New_York")
	if err != nil {
		panic("failed to load test timezone: " + err.Error())
	}

	testDB, err = gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}
	// Limit to 1 open connection to prevent SQLite concurrent access issues
	// with in-memory databases. This also serializes concurrent ledger
	// transactions the way the PostgreSQL row lock does in production.
	sqlDB, _ := testDB.DB()
	sqlDB.SetMaxOpenConns(1)

	// Create tables using raw SQLite-compatible SQL instead of AutoMigrate,
	// because the GORM model tags use PostgreSQL-specific defaults like gen_random_uuid().
	if err := createSQLiteTables(testDB); err != nil {
		panic("failed to migrate test database: " + err.Error())
	}

	code := m.Run()
	os.Exit(code)
}

// freshDB returns a clean database for each test by deleting all rows.
func freshDB() *gorm.DB {
	testDB.Exec("DELETE FROM audit_records")
	testDB.Exec("DELETE FROM ledger_entries")
	testDB.Exec("DELETE FROM coupons")
	testDB.Exec("DELETE FROM daily_counters")
	testDB.Exec("DELETE FROM rate_limit_states")
	testDB.Exec("DELETE FROM members")
	return testDB
}

// createSQLiteTables creates all tables with SQLite-compatible DDL.
func createSQLiteTables(db *gorm.DB) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS "members" (
			"id" TEXT PRIMARY KEY,
			"email" TEXT NOT NULL UNIQUE,
			"password" TEXT NOT NULL,
			"name" TEXT,
			"role" TEXT DEFAULT 'member',
			"phone" TEXT,
			"fcm_token" TEXT,
			"is_blocked" INTEGER DEFAULT 0,
			"created_at" DATETIME,
			"updated_at" DATETIME,
			"deleted_at" DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_members_deleted_at ON "members"("deleted_at")`,

		`CREATE TABLE IF NOT EXISTS "ledger_entries" (
			"id" TEXT PRIMARY KEY,
			"member_id" TEXT NOT NULL,
			"reward_type" TEXT NOT NULL,
			"source_method" TEXT NOT NULL,
			"consumed" INTEGER DEFAULT 0,
			"coupon_id" TEXT,
			"created_at" DATETIME,
			CONSTRAINT fk_ledger_entries_member FOREIGN KEY ("member_id") REFERENCES "members"("id")
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_member_id ON "ledger_entries"("member_id")`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_member_type ON "ledger_entries"("member_id","reward_type")`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_entries_coupon_id ON "ledger_entries"("coupon_id")`,

		`CREATE TABLE IF NOT EXISTS "coupons" (
			"id" TEXT PRIMARY KEY,
			"member_id" TEXT NOT NULL,
			"reward_type" TEXT NOT NULL,
			"kind" TEXT NOT NULL,
			"issued_at" DATETIME,
			"used_at" DATETIME,
			"created_at" DATETIME,
			CONSTRAINT fk_coupons_member FOREIGN KEY ("member_id") REFERENCES "members"("id")
		)`,
		`CREATE INDEX IF NOT EXISTS idx_coupons_member_id ON "coupons"("member_id")`,

		`CREATE TABLE IF NOT EXISTS "daily_counters" (
			"id" TEXT PRIMARY KEY,
			"member_id" TEXT NOT NULL,
			"reward_type" TEXT NOT NULL,
			"date" TEXT NOT NULL,
			"total_awarded" INTEGER DEFAULT 0,
			"created_at" DATETIME,
			"updated_at" DATETIME
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_daily_counter ON "daily_counters"("member_id","reward_type","date")`,

		`CREATE TABLE IF NOT EXISTS "rate_limit_states" (
			"id" TEXT PRIMARY KEY,
			"member_id" TEXT NOT NULL,
			"reward_type" TEXT NOT NULL,
			"last_accrual_at" DATETIME,
			"created_at" DATETIME,
			"updated_at" DATETIME
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_rate_limit_member_type ON "rate_limit_states"("member_id","reward_type")`,

		`CREATE TABLE IF NOT EXISTS "audit_records" (
			"id" TEXT PRIMARY KEY,
			"member_id" TEXT NOT NULL,
			"action" TEXT NOT NULL,
			"entry_id" TEXT,
			"coupon_id" TEXT,
			"message" TEXT,
			"created_at" DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_records_member_id ON "audit_records"("member_id")`,
		`CREATE INDEX IF NOT EXISTS idx_audit_records_created_at ON "audit_records"("created_at")`,
	}

	for _, sql := range tables {
		if err := db.Exec(sql).Error; err != nil {
			return err
		}
	}
	return nil
}

// seedMember creates a member with the given role.
func seedMember(db *gorm.DB, email, role string) models.Member {
	hashed, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	member := models.Member{
		ID:       uuid.New(),
		Email:    email,
		Password: string(hashed),
		Name:     "Test Member",
		Role:     role,
	}
	db.Create(&member)
	return member
}

// testPolicy is the fixed policy used by most tests: stamps cool down 8h
// for self-scans and convert 10-to-1 into a full coupon, comment points are
// capped at 5 per day.
func testPolicy() Policy {
	return Policy{
		Location: clubTZ,
		Types: map[string]TypePolicy{
			models.RewardTypeStamp: {
				Cooldowns: map[string]time.Duration{
					models.SourceMethodSelf:  8 * time.Hour,
					models.SourceMethodStaff: 0,
				},
				Thresholds: []Threshold{
					{Count: 10, Kind: models.CouponKindFull},
				},
			},
			models.RewardTypeCommentPoint: {
				DailyCap: 5,
			},
		},
	}
}

// recordingNotifier captures notification titles so tests can assert that a
// push was (or was not) attempted.
type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *recordingNotifier) Notify(memberID uuid.UUID, title, body string, data map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.titles)
}

func (n *recordingNotifier) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.titles) == 0 {
		return ""
	}
	return n.titles[len(n.titles)-1]
}

// newTestService builds a Service over the shared test database with the
// standard test policy and a recording notifier.
func newTestService(db *gorm.DB) (*Service, *recordingNotifier) {
	notifier := &recordingNotifier{}
	return NewService(db, testPolicy(), notifier), notifier
}

// countRows is a shorthand for counting rows of a model with a condition.
func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}

// checkConservation verifies the ledger bookkeeping identity for one member
// and reward type: everything ever appended minus everything recalled must
// equal live plus consumed entries.
func checkConservation(t *testing.T, db *gorm.DB, memberID uuid.UUID, rewardType string, appended, recalled int64) {
	t.Helper()
	live := countRows(t, db, &models.LedgerEntry{},
		"member_id = ? AND reward_type = ? AND consumed = ?", memberID, rewardType, false)
	consumed := countRows(t, db, &models.LedgerEntry{},
		"member_id = ? AND reward_type = ? AND consumed = ?", memberID, rewardType, true)
	if appended-recalled != live+consumed {
		t.Errorf("conservation violated: appended %d - recalled %d != live %d + consumed %d",
			appended, recalled, live, consumed)
	}
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"

	"auconnect/internal/database"
)

func TestMain(m *testing.M) {
	// プロジェクトルートの.envを読み込み
	_ = godotenv.Load("../../.env")
	os.Exit(m.Run())
}

// setupTestDB テスト用データベース接続をセットアップ
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	host := os.Getenv("DB_HOST")
	if host == "" {
		t.Skip("Skipping: DB_HOST not set")
	}

	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "3306"
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC",
		os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), host, port, os.Getenv("DB_NAME"))

	testDB, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("Skipping: could not connect to test database: %v", err)
	}
	if err := testDB.Ping(); err != nil {
		t.Skipf("Skipping: could not ping test database: %v", err)
	}

	if err := database.Migrate(testDB); err != nil {
		t.Fatalf("Failed to create test tables: %v", err)
	}

	// テストデータをクリア
	testDB.Exec("DELETE FROM messages")
	testDB.Exec("DELETE FROM blocks")

	t.Cleanup(func() {
		testDB.Exec("DELETE FROM messages")
		testDB.Exec("DELETE FROM blocks")
		testDB.Close()
	})
	return testDB
}

func TestMessageRepository(t *testing.T) {
	testDB := setupTestDB(t)
	runStoreSuite(t, NewMessageRepository(testDB))
}

func TestBlockRepository(t *testing.T) {
	testDB := setupTestDB(t)
	repo := NewBlockRepository(testDB)
	ctx := context.Background()

	if blocked, err := repo.IsBlocked(ctx, "a", "b"); err != nil || blocked {
		t.Fatalf("Expected no block, got blocked=%v err=%v", blocked, err)
	}

	if err := repo.Block(ctx, "a", "b"); err != nil {
		t.Fatalf("Block failed: %v", err)
	}
	// 重複ブロックはエラーにならない
	if err := repo.Block(ctx, "a", "b"); err != nil {
		t.Fatalf("Repeated Block failed: %v", err)
	}

	for _, pair := range [][2]string{{"a", "b"}, {"b", "a"}} {
		blocked, err := repo.IsBlocked(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("IsBlocked failed: %v", err)
		}
		if !blocked {
			t.Errorf("Expected (%s, %s) to be blocked", pair[0], pair[1])
		}
	}
}

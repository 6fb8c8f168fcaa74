package sequence

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fieldpilot/fieldpilot/internal/config"
	"github.com/fieldpilot/fieldpilot/internal/db"
	"github.com/fieldpilot/fieldpilot/internal/taskerr"
	"gorm.io/gorm"
)

// testDB opens a file-backed sqlite database with a single connection so
// concurrent callers serialize the way row-locked transactions do on MySQL.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Connect(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "seq.db"),
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func TestNext_Format(t *testing.T) {
	gdb := testDB(t)

	got, err := Next(gdb)
	if err != nil {
		t.Fatalf("Next() error: %v", err)
	}

	year := time.Now().Year()
	want := fmt.Sprintf("TASK-%d-000001", year)
	if got != want {
		t.Errorf("Next() = %q, want %q", got, want)
	}
}

func TestNext_Monotonic(t *testing.T) {
	gdb := testDB(t)

	var prev int
	for i := 0; i < 10; i++ {
		num, err := Next(gdb)
		if err != nil {
			t.Fatalf("Next() iteration %d: %v", i, err)
		}
		n := counterOf(t, num)
		if n <= prev {
			t.Fatalf("number %d not strictly increasing after %d", n, prev)
		}
		prev = n
	}
}

func TestNext_NoDuplicatesUnderConcurrency(t *testing.T) {
	gdb := testDB(t)

	const callers = 50

	var mu sync.Mutex
	seen := make(map[string]int, callers)
	var wg sync.WaitGroup
	errs := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := Next(gdb)
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			seen[num]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent Next() error: %v", err)
	}
	if len(seen) != callers {
		t.Fatalf("issued %d distinct numbers for %d callers", len(seen), callers)
	}
	for num, count := range seen {
		if count != 1 {
			t.Errorf("number %q issued %d times", num, count)
		}
	}
}

func TestNext_StorageUnavailable(t *testing.T) {
	gdb := testDB(t)

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.Close()

	_, err = Next(gdb)
	if err == nil {
		t.Fatal("Next() on closed store should fail")
	}
	if taskerr.KindOf(err) != taskerr.KindUnavailable {
		t.Errorf("KindOf() = %q, want %q", taskerr.KindOf(err), taskerr.KindUnavailable)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		year int
		n    int
		want string
	}{
		{2026, 1, "TASK-2026-000001"},
		{2026, 42, "TASK-2026-000042"},
		{2027, 999999, "TASK-2027-999999"},
		{2027, 1000000, "TASK-2027-1000000"},
	}
	for _, tt := range tests {
		if got := Format(tt.year, tt.n); got != tt.want {
			t.Errorf("Format(%d, %d) = %q, want %q", tt.year, tt.n, got, tt.want)
		}
	}
}

// counterOf extracts the numeric counter from a TASK-YYYY-NNNNNN number.
func counterOf(t *testing.T, num string) int {
	t.Helper()
	parts := strings.Split(num, "-")
	if len(parts) != 3 {
		t.Fatalf("malformed task number %q", num)
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil {
		t.Fatalf("malformed counter in %q: %v", num, err)
	}
	return n
}

package migrations

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := Up(db); err != nil {
		t.Fatalf("Up() error = %v", err)
	}

	for _, table := range []string{"NODES", "FOLDERS", "DOCUMENTS", "VERSIONS", "LINKS", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s was not created: %v", table, err)
		}
	}
	for _, view := range []string{"VIEW_FOLDERS", "VIEW_LINKS", "VIEW_LINK_VERSIONS", "VIEW_DOCUMENTS"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='view' AND name=?", view).Scan(&name)
		if err != nil {
			t.Errorf("view %s was not created: %v", view, err)
		}
	}
}

func TestUp_SeedsRoot(t *testing.T) {
	db := openTestDB(t)
	if err := Up(db); err != nil {
		t.Fatalf("Up() error = %v", err)
	}

	var parent, state string
	err := db.QueryRow("SELECT PARENT_ID, STATE FROM VIEW_FOLDERS WHERE ID = '00000000-0000-0000-0000-000000000000'").Scan(&parent, &state)
	if err != nil {
		t.Fatalf("reading root folder: %v", err)
	}
	if parent != "00000000-0000-0000-0000-000000000000" {
		t.Errorf("root PARENT_ID = %q, want itself", parent)
	}
	if state != "Open" {
		t.Errorf("root STATE = %q, want Open", state)
	}
}

func TestCheck(t *testing.T) {
	t.Run("fresh database", func(t *testing.T) {
		db := openTestDB(t)
		err := Check(db)
		if !errors.Is(err, ErrNoSchema) {
			t.Errorf("Check() error = %v, want ErrNoSchema", err)
		}
	})

	t.Run("after migration", func(t *testing.T) {
		db := openTestDB(t)
		if err := Up(db); err != nil {
			t.Fatalf("Up() error = %v", err)
		}
		if err := Check(db); err != nil {
			t.Errorf("Check() error = %v", err)
		}
		st, err := CurrentStatus(db)
		if err != nil {
			t.Fatalf("CurrentStatus() error = %v", err)
		}
		if st.Version != st.Latest || st.Dirty {
			t.Errorf("CurrentStatus() = %+v, want clean latest", st)
		}
	})
}

func TestUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := Up(db); err != nil {
		t.Fatalf("first Up() error = %v", err)
	}
	if err := Up(db); err != nil {
		t.Errorf("second Up() error = %v", err)
	}
	if err := Check(db); err != nil {
		t.Errorf("Check() after double migration error = %v", err)
	}
}

func TestForeignKeyConstraints(t *testing.T) {
	db := openTestDB(t)
	if err := Up(db); err != nil {
		t.Fatalf("Up() error = %v", err)
	}

	_, err := db.Exec(`INSERT INTO LINKS (ID, DOCUMENT_ID, VERSION_ID) VALUES ('no-node', 'no-doc', 'no-version')`)
	if err == nil {
		t.Error("expected foreign key violation, insert succeeded")
	}
}

func TestSchema_SiblingNamesUnique(t *testing.T) {
	db := openTestDB(t)
	if err := Up(db); err != nil {
		t.Fatalf("Up() error = %v", err)
	}

	insert := `INSERT INTO NODES (ID, PARENT_ID, NAME, VERSION, TYPE) VALUES (?, '00000000-0000-0000-0000-000000000000', 'docs', ?, 'WORKSPACE')`
	if _, err := db.Exec(insert, "a", ""); err != nil {
		t.Fatalf("inserting first node: %v", err)
	}
	if _, err := db.Exec(insert, "b", "v1"); err != nil {
		t.Fatalf("inserting labelled sibling: %v", err)
	}
	if _, err := db.Exec(insert, "c", ""); err == nil {
		t.Error("expected unique constraint violation for duplicate name, insert succeeded")
	}
}

func TestSchema_LinkVersionsView(t *testing.T) {
	db := openTestDB(t)
	if err := Up(db); err != nil {
		t.Fatalf("Up() error = %v", err)
	}

	stmts := []string{
		`INSERT INTO DOCUMENTS (ID, VERSION_ID) VALUES ('d', 'v2')`,
		`INSERT INTO VERSIONS (DOCUMENT_ID, VERSION_ID, MEDIA_TYPE, LENGTH, DIGEST) VALUES ('d', 'v1', 'text/plain', 1, x'00')`,
		`INSERT INTO VERSIONS (DOCUMENT_ID, VERSION_ID, MEDIA_TYPE, LENGTH, DIGEST) VALUES ('d', 'v2', 'text/plain', 2, x'01')`,
		`INSERT INTO NODES (ID, PARENT_ID, NAME, TYPE) VALUES ('l', '00000000-0000-0000-0000-000000000000', 'doc', 'DOCUMENT_LINK')`,
		`INSERT INTO LINKS (ID, DOCUMENT_ID, VERSION_ID) VALUES ('l', 'd', 'v2')`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("Exec(%q) error = %v", s, err)
		}
	}

	var total, current int
	if err := db.QueryRow(`SELECT COUNT(*), SUM(IS_CURRENT) FROM VIEW_LINK_VERSIONS WHERE ID = 'l'`).Scan(&total, &current); err != nil {
		t.Fatalf("querying history view: %v", err)
	}
	if total != 2 || current != 1 {
		t.Errorf("history view rows = %d (current %d), want 2 (current 1)", total, current)
	}

	var latest int
	if err := db.QueryRow(`SELECT COUNT(*) FROM VIEW_DOCUMENTS WHERE IS_LATEST`).Scan(&latest); err != nil {
		t.Fatalf("querying documents view: %v", err)
	}
	if latest != 1 {
		t.Errorf("latest documents = %d, want 1", latest)
	}
}

// openTestDB opens a single-connection in-memory database with foreign keys
// enforced.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enabling foreign keys: %v", err)
	}
	return db
}

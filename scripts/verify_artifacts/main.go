// Command verify_artifacts sweeps the contract and document tables and checks
// every stored file against the database: missing files are reported, and
// contract artifacts are re-hashed and compared with their recorded digest.
// Exits non-zero when any digest mismatch is found.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/relovo/relovo-api/pkg/storage"
)

type artifact struct {
	Kind     string
	RecordID string
	DealID   string
	RelPath  string
	Digest   string
}

type finding struct {
	Artifact artifact
	Missing  bool
	Actual   string
}

func main() {
	var (
		dsn        string
		storageDir string
		timeout    time.Duration
	)

	flag.StringVar(&dsn, "dsn", os.Getenv("DATABASE_URL"), "Postgres connection string")
	flag.StringVar(&storageDir, "storage", "storage", "Base directory of the file store")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Overall query timeout")
	flag.Parse()

	if dsn == "" {
		log.Fatal("no DSN: pass -dsn or set DATABASE_URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer db.Close()

	artifacts, err := loadArtifacts(ctx, db)
	if err != nil {
		log.Fatalf("failed to load artifacts: %v", err)
	}

	var findings []finding
	mismatches := 0
	for _, a := range artifacts {
		f, ok := checkArtifact(storageDir, a)
		if ok {
			continue
		}
		findings = append(findings, f)
		if !f.Missing {
			mismatches++
		}
	}

	printReport(len(artifacts), findings)
	if mismatches > 0 {
		os.Exit(1)
	}
}

func loadArtifacts(ctx context.Context, db *sqlx.DB) ([]artifact, error) {
	var out []artifact

	rows := []struct {
		ID     string `db:"id"`
		DealID string `db:"deal_id"`
		Path   string `db:"unsigned_path"`
		Digest string `db:"unsigned_sha256"`
	}{}
	if err := db.SelectContext(ctx, &rows,
		`SELECT id, deal_id, unsigned_path, unsigned_sha256 FROM deal_contracts`); err != nil {
		return nil, fmt.Errorf("load contracts: %w", err)
	}
	for _, r := range rows {
		out = append(out, artifact{Kind: "contract", RecordID: r.ID, DealID: r.DealID, RelPath: r.Path, Digest: r.Digest})
	}

	signed := []struct {
		ID     string `db:"id"`
		DealID string `db:"deal_id"`
		Path   string `db:"file_path"`
		Digest string `db:"sha256"`
	}{}
	if err := db.SelectContext(ctx, &signed,
		`SELECT s.id, c.deal_id, s.file_path, s.sha256
		 FROM deal_contracts_signed s
		 JOIN deal_contracts c ON c.id = s.contract_id`); err != nil {
		return nil, fmt.Errorf("load signed copies: %w", err)
	}
	for _, r := range signed {
		out = append(out, artifact{Kind: "signed", RecordID: r.ID, DealID: r.DealID, RelPath: r.Path, Digest: r.Digest})
	}

	docs := []struct {
		ID     string `db:"id"`
		DealID string `db:"deal_id"`
		Path   string `db:"file_path"`
	}{}
	if err := db.SelectContext(ctx, &docs,
		`SELECT id, deal_id, file_path FROM deal_documents`); err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	for _, r := range docs {
		out = append(out, artifact{Kind: "document", RecordID: r.ID, DealID: r.DealID, RelPath: r.Path})
	}

	return out, nil
}

func checkArtifact(storageDir string, a artifact) (finding, bool) {
	path := filepath.Join(storageDir, filepath.FromSlash(a.RelPath))
	if _, err := os.Stat(path); err != nil {
		return finding{Artifact: a, Missing: true}, false
	}
	if a.Digest == "" {
		return finding{}, true
	}
	actual, err := storage.DigestFile(path)
	if err != nil {
		return finding{Artifact: a, Missing: true}, false
	}
	if actual != a.Digest {
		return finding{Artifact: a, Actual: actual}, false
	}
	return finding{}, true
}

func printReport(total int, findings []finding) {
	fmt.Println("Artifact Integrity Report")
	fmt.Println("=========================")
	fmt.Printf("Checked: %d, problems: %d\n", total, len(findings))
	for _, f := range findings {
		a := f.Artifact
		if f.Missing {
			fmt.Printf("[MISSING] %s %s (deal %s): %s\n", a.Kind, a.RecordID, a.DealID, a.RelPath)
			continue
		}
		fmt.Printf("[MISMATCH] %s %s (deal %s): %s\n", a.Kind, a.RecordID, a.DealID, a.RelPath)
		fmt.Printf("  recorded: %s\n", a.Digest)
		fmt.Printf("  actual:   %s\n", f.Actual)
	}
}

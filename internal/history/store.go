// Package history keeps a log of every screening in a local SQLite
// database so results can be reviewed and exported later.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kartoza/stunting-risk/internal/inference"
)

// ErrNotFound is returned for an unknown entry id
var ErrNotFound = errors.New("screening not found")

const schema = `
CREATE TABLE IF NOT EXISTS screenings (
    id TEXT PRIMARY KEY,
    created_at DATETIME NOT NULL,
    gender TEXT NOT NULL,
    age_months INTEGER NOT NULL,
    birth_weight_kg REAL NOT NULL,
    birth_length_cm REAL NOT NULL,
    current_weight_kg REAL NOT NULL,
    current_length_cm REAL NOT NULL,
    predicted_class INTEGER NOT NULL,
    model_vote INTEGER NOT NULL,
    probability_stunted REAL NOT NULL,
    probability_not_stunted REAL NOT NULL,
    threshold REAL NOT NULL,
    at_risk BOOLEAN NOT NULL,
    model_version TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_screenings_created_at ON screenings(created_at);
`

// Entry is one recorded screening
type Entry struct {
	ID                    string    `db:"id" json:"id"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	Gender                string    `db:"gender" json:"gender"`
	AgeMonths             int       `db:"age_months" json:"age_months"`
	BirthWeightKg         float64   `db:"birth_weight_kg" json:"birth_weight_kg"`
	BirthLengthCm         float64   `db:"birth_length_cm" json:"birth_length_cm"`
	CurrentWeightKg       float64   `db:"current_weight_kg" json:"current_weight_kg"`
	CurrentLengthCm       float64   `db:"current_length_cm" json:"current_length_cm"`
	PredictedClass        int       `db:"predicted_class" json:"predicted_class"`
	ModelVote             int       `db:"model_vote" json:"model_vote"`
	ProbabilityStunted    float64   `db:"probability_stunted" json:"probability_stunted"`
	ProbabilityNotStunted float64   `db:"probability_not_stunted" json:"probability_not_stunted"`
	Threshold             float64   `db:"threshold" json:"threshold"`
	AtRisk                bool      `db:"at_risk" json:"at_risk"`
	ModelVersion          string    `db:"model_version" json:"model_version"`
}

// Record returns the measurements of the entry
func (e Entry) Record() inference.RawRecord {
	return inference.RawRecord{
		Gender:          inference.Gender(e.Gender),
		AgeMonths:       e.AgeMonths,
		BirthWeightKg:   e.BirthWeightKg,
		BirthLengthCm:   e.BirthLengthCm,
		CurrentWeightKg: e.CurrentWeightKg,
		CurrentLengthCm: e.CurrentLengthCm,
	}
}

// Store persists screenings in SQLite
type Store struct {
	db    *sqlx.DB
	cache *lru.Cache[string, Entry]
}

// Open creates or opens the database at path. cacheSize bounds the number
// of entries kept in memory for Get; zero disables the cache.
func Open(path string, cacheSize int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sqlx.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// one writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	s := &Store{db: db}
	if cacheSize > 0 {
		cache, err := lru.New[string, Entry](cacheSize)
		if err != nil {
			db.Close()
			return nil, err
		}
		s.cache = cache
	}
	return s, nil
}

// Record stores a classified record and returns the new entry
func (s *Store) Record(ctx context.Context, rec inference.RawRecord, res *inference.Result, modelVersion string) (Entry, error) {
	e := Entry{
		ID:                    uuid.New().String(),
		CreatedAt:             time.Now().UTC(),
		Gender:                string(rec.Gender),
		AgeMonths:             rec.AgeMonths,
		BirthWeightKg:         rec.BirthWeightKg,
		BirthLengthCm:         rec.BirthLengthCm,
		CurrentWeightKg:       rec.CurrentWeightKg,
		CurrentLengthCm:       rec.CurrentLengthCm,
		PredictedClass:        res.PredictedClass,
		ModelVote:             res.ModelVote,
		ProbabilityStunted:    res.ProbabilityStunted,
		ProbabilityNotStunted: res.ProbabilityNotStunted,
		Threshold:             res.Threshold,
		AtRisk:                res.AtRisk,
		ModelVersion:          modelVersion,
	}

	_, err := s.db.NamedExecContext(ctx, `
        INSERT INTO screenings (
            id, created_at, gender, age_months, birth_weight_kg, birth_length_cm,
            current_weight_kg, current_length_cm, predicted_class, model_vote,
            probability_stunted, probability_not_stunted, threshold, at_risk, model_version
        ) VALUES (
            :id, :created_at, :gender, :age_months, :birth_weight_kg, :birth_length_cm,
            :current_weight_kg, :current_length_cm, :predicted_class, :model_vote,
            :probability_stunted, :probability_not_stunted, :threshold, :at_risk, :model_version
        )`, e)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to record screening: %w", err)
	}

	if s.cache != nil {
		s.cache.Add(e.ID, e)
	}
	return e, nil
}

// Get returns the entry with the given id
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	if s.cache != nil {
		if e, ok := s.cache.Get(id); ok {
			return e, nil
		}
	}

	var e Entry
	err := s.db.GetContext(ctx, &e, `SELECT * FROM screenings WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read screening: %w", err)
	}

	if s.cache != nil {
		s.cache.Add(e.ID, e)
	}
	return e, nil
}

// List returns entries newest first. A limit <= 0 returns every entry.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}

	entries := []Entry{}
	err := s.db.SelectContext(ctx, &entries,
		`SELECT * FROM screenings ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list screenings: %w", err)
	}
	return entries, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

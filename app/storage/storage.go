package storage

import (
	"github.com/jmoiron/sqlx"
)

// Store bundles all repositories over a single database handle.
// Queries are written with ? placeholders and rebound per driver,
// so the same code runs on postgres and sqlite.
type Store struct {
	db *sqlx.DB

	Sessions *SessionRepo
	Users    *UserRepo
	Admins   *AdminRepo
	Podcasts *PodcastRepo
	Settings *SettingsRepo
	Activity *ActivityRepo
}

// New wires repositories around the given handle.
func New(db *sqlx.DB) *Store {
	s := &Store{db: db}
	s.Sessions = &SessionRepo{db: db}
	s.Users = &UserRepo{db: db}
	s.Admins = &AdminRepo{db: db}
	s.Podcasts = &PodcastRepo{db: db}
	s.Settings = &SettingsRepo{db: db}
	s.Activity = &ActivityRepo{db: db}
	return s
}

// DB exposes the underlying handle for migrations and diagnostics.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

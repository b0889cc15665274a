package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"seclab/crypto"
	"seclab/models"
)

// Notes stores the user-owned resources behind the trust gate. Bodies pass
// through the variant's sealer on the way in and out.
type Notes struct {
	db     *sql.DB
	sealer crypto.Sealer
}

func NewNotes(db *sql.DB, sealer crypto.Sealer) *Notes {
	return &Notes{db: db, sealer: sealer}
}

func (n *Notes) Create(ctx context.Context, note models.Note) (models.Note, error) {
	body, err := n.sealer.Seal(note.Body)
	if err != nil {
		return models.Note{}, fmt.Errorf("seal note: %w", err)
	}
	result, err := n.db.ExecContext(ctx,
		"INSERT INTO notes (owner, title, body, public) VALUES (?, ?, ?, ?)",
		note.Owner, note.Title, body, note.Public)
	if err != nil {
		return models.Note{}, fmt.Errorf("create note: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return models.Note{}, fmt.Errorf("create note: %w", err)
	}
	note.ID = int(id)
	return note, nil
}

func (n *Notes) Get(ctx context.Context, id int) (models.Note, error) {
	row := n.db.QueryRowContext(ctx,
		"SELECT id, owner, title, body, public, created_at FROM notes WHERE id = ?", id)
	note, err := n.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Note{}, ErrNotFound
	}
	return note, err
}

// ListByOwner returns the owner's notes, newest first. With publicOnly set
// only notes flagged public are returned.
func (n *Notes) ListByOwner(ctx context.Context, owner string, publicOnly bool) ([]models.Note, error) {
	stmt := "SELECT id, owner, title, body, public, created_at FROM notes WHERE owner = ?"
	if publicOnly {
		stmt += " AND public = 1"
	}
	stmt += " ORDER BY id DESC"

	rows, err := n.db.QueryContext(ctx, stmt, owner)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []models.Note
	for rows.Next() {
		note, err := n.scan(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

func (n *Notes) Update(ctx context.Context, note models.Note) error {
	body, err := n.sealer.Seal(note.Body)
	if err != nil {
		return fmt.Errorf("seal note: %w", err)
	}
	result, err := n.db.ExecContext(ctx,
		"UPDATE notes SET title = ?, body = ?, public = ? WHERE id = ?",
		note.Title, body, note.Public, note.ID)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	return requireRow(result)
}

func (n *Notes) Delete(ctx context.Context, id int) error {
	result, err := n.db.ExecContext(ctx, "DELETE FROM notes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	return requireRow(result)
}

type scanner interface {
	Scan(dest ...any) error
}

func (n *Notes) scan(row scanner) (models.Note, error) {
	var note models.Note
	var stored string
	if err := row.Scan(&note.ID, &note.Owner, &note.Title, &stored, &note.Public, &note.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Note{}, err
		}
		return models.Note{}, fmt.Errorf("scan note: %w", err)
	}
	body, err := n.sealer.Open(stored)
	if err != nil {
		return models.Note{}, fmt.Errorf("open note %d: %w", note.ID, err)
	}
	note.Body = body
	return note, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

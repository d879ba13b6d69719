// Package store хранит каталог, пользователей и их активность в SQLite
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("запись не найдена")
	// ErrDuplicate запись с таким ключом уже существует
	ErrDuplicate = errors.New("запись уже существует")
)

// Store подключение к базе данных приложения
type Store struct {
	db *sql.DB
}

// Open открывает базу по пути (":memory:" для базы в памяти) и применяет миграции
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", withForeignKeys(path))
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}

	// SQLite не допускает параллельной записи; база в памяти живет в одном соединении
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// withForeignKeys включает внешние ключи параметром DSN для каждого соединения
func withForeignKeys(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on"
}

// Close закрывает подключение
func (s *Store) Close() error {
	return s.db.Close()
}

// Rollback откатывает последнюю миграцию схемы
func (s *Store) Rollback(ctx context.Context) error {
	return rollback(ctx, s.db)
}

// isConstraint проверяет нарушение уникальности или первичного ключа
func isConstraint(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// checkAffected возвращает ErrNotFound, если запрос не затронул строк
func checkAffected(res sql.Result, what, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения числа строк: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
	}
	return nil
}

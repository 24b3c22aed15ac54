package database

import (
	"database/sql"
	"fmt"

	"github.com/apex/log"
)

// Service is the data access layer over MySQL.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// DB exposes the underlying handle for health checks.
func (s *Service) DB() *sql.DB {
	return s.db
}

// validateResult checks an exec result, optionally enforcing that exactly
// one row was affected.
func validateResult(op string, r sql.Result, e error, checkRowsAffected bool) error {
	if e != nil {
		log.Errorf("%s: query failed: %v", op, e)
		return e
	}
	rows, err := r.RowsAffected()
	if err != nil {
		log.Errorf("%s: failed to get rows affected: %v", op, err)
		return err
	}
	if checkRowsAffected && rows != 1 {
		err := fmt.Errorf("%s: expected to affect 1 row, affected %d", op, rows)
		log.Errorf("%v", err)
		return err
	}
	return nil
}

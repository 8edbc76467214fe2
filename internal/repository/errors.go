package repository

import (
	"errors"
	"fmt"

	"github.com/otcheredev/practice-subscriptions/internal/models"
	"gorm.io/gorm"
)

// conflict maps a unique-key violation onto ErrConflict with detail.
func conflict(err error, detail string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", models.ErrConflict, detail)
	}
	return err
}

// notFound maps gorm's missing-row error onto a domain error.
func notFound(err error, target error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return err
}

package auth

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CodeRepository persists at most one VerificationCode per email. Upsert
// and Delete must be single atomic operations on the email key.
type CodeRepository interface {
	Get(ctx context.Context, email string) (*VerificationCode, error)
	Upsert(ctx context.Context, code *VerificationCode) error
	// Delete returns ErrCodeNotFound when there was nothing to delete, so
	// only one of two concurrent consumers observes success.
	Delete(ctx context.Context, email string) error
	// IncrementAttempts returns the attempt count after the increment.
	IncrementAttempts(ctx context.Context, email string) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type codeRepository struct {
	db *gorm.DB
}

func NewCodeRepository(db *gorm.DB) CodeRepository {
	return &codeRepository{db: db}
}

func (r *codeRepository) Get(ctx context.Context, email string) (*VerificationCode, error) {
	var code VerificationCode
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, err
	}
	return &code, nil
}

func (r *codeRepository) Upsert(ctx context.Context, code *VerificationCode) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"code_hash", "expires_at", "last_sent_at", "attempts", "updated_at",
		}),
	}).Create(code).Error
}

func (r *codeRepository) Delete(ctx context.Context, email string) error {
	res := r.db.WithContext(ctx).Where("email = ?", email).Delete(&VerificationCode{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCodeNotFound
	}
	return nil
}

func (r *codeRepository) IncrementAttempts(ctx context.Context, email string) (int, error) {
	var code VerificationCode
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&VerificationCode{}).
			Where("email = ?", email).
			UpdateColumn("attempts", gorm.Expr("attempts + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCodeNotFound
		}
		return tx.Where("email = ?", email).First(&code).Error
	})
	if err != nil {
		return 0, err
	}
	return code.Attempts, nil
}

func (r *codeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&VerificationCode{})
	return res.RowsAffected, res.Error
}

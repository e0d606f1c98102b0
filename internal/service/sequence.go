package service

import (
	"context"
	"regexp"
	"time"

	"pharmaledger/backend/internal/domain"
	"pharmaledger/backend/internal/fiscal"
	"pharmaledger/backend/internal/store"
)

var (
	sequenceNamePattern   = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)
	sequencePrefixPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,7}$`)
)

// NextSequence issues the next document number for name in the current
// financial year. The counter increment is a single atomic store operation.
func (s *Service) NextSequence(ctx context.Context, name string, prefix string) (domain.SequenceNumber, error) {
	verr := store.NewValidationError()
	if !sequenceNamePattern.MatchString(name) {
		verr.Add("name", "must be lowercase letters, digits, - or _")
	}
	if !sequencePrefixPattern.MatchString(prefix) {
		verr.Add("prefix", "must be 2 to 8 uppercase letters or digits")
	}
	if err := verr.OrNil(); err != nil {
		return domain.SequenceNumber{}, err
	}
	return nextNumber(ctx, s.repo, name, prefix, s.now())
}

func nextNumber(ctx context.Context, tx store.Tx, name string, prefix string, at time.Time) (domain.SequenceNumber, error) {
	fy := fiscal.FinancialYear(at)
	seq, err := tx.NextSequence(ctx, name, fy)
	if err != nil {
		return domain.SequenceNumber{}, err
	}
	return domain.SequenceNumber{
		Sequence:      seq,
		FinancialYear: fy,
		Formatted:     fiscal.FormatNumber(prefix, fy, seq),
	}, nil
}

// nextCode issues a master-data code that never resets across years.
func nextCode(ctx context.Context, tx store.Tx, name string, prefix string) (string, error) {
	seq, err := tx.NextSequence(ctx, name, domain.MasterScope)
	if err != nil {
		return "", err
	}
	return fiscal.FormatCode(prefix, seq), nil
}

package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"pharmaledger/backend/internal/domain"
	"pharmaledger/backend/internal/store"
)

func (s *Store) ListMedicines(ctx context.Context, includeInactive bool) ([]domain.Medicine, error) {
	medicines := make([]domain.Medicine, 0, 64)
	err := sqlx.SelectContext(ctx, s.db, &medicines, `
		SELECT `+medicineColumns+`
		FROM medicines
		WHERE $1 OR active
		ORDER BY name ASC, code ASC
	`, includeInactive)
	if err != nil {
		return nil, mapError(err)
	}
	return medicines, nil
}

func (s *Store) ListBatchesExpiringBefore(ctx context.Context, before time.Time) ([]domain.Batch, error) {
	batches := make([]domain.Batch, 0, 32)
	err := sqlx.SelectContext(ctx, s.db, &batches, `
		SELECT `+batchColumns+`
		FROM batches
		WHERE quantity > 0 AND expiry_date < $1
		ORDER BY expiry_date ASC, created_at ASC
	`, before)
	if err != nil {
		return nil, mapError(err)
	}
	return batches, nil
}

func (s *Store) ListParties(ctx context.Context, partyType string) ([]domain.Party, error) {
	parties := make([]domain.Party, 0, 64)
	err := sqlx.SelectContext(ctx, s.db, &parties, `
		SELECT `+partyColumns+`
		FROM parties
		WHERE $1 = '' OR party_type = $1
		ORDER BY name ASC, code ASC
	`, partyType)
	if err != nil {
		return nil, mapError(err)
	}
	return parties, nil
}

func (s *Store) GetLedger(ctx context.Context, ledgerType string, partyID string, fy string) (*domain.Ledger, error) {
	var ledger domain.Ledger
	err := sqlx.GetContext(ctx, s.db, &ledger, `
		SELECT `+ledgerColumns+`
		FROM ledgers
		WHERE ledger_type = $1 AND party_id = $2 AND financial_year = $3
	`, ledgerType, partyID, fy)
	if err != nil {
		return nil, notFound(err)
	}
	entries, err := s.ledgerEntries(ctx, ledger.ID)
	if err != nil {
		return nil, err
	}
	ledger.Entries = entries
	return &ledger, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	rows := make([]saleRow, 0, 32)
	err := sqlx.SelectContext(ctx, s.db, &rows, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE ($1 = '' OR customer_id = $1)
			AND ($2 = '' OR financial_year = $2)
			AND ($3 = '' OR payment_status = $3)
		ORDER BY created_at DESC
		LIMIT NULLIF($4, 0)
	`, filter.Customer, filter.FinancialYear, filter.Status, filter.Limit)
	if err != nil {
		return nil, mapError(err)
	}
	sales := make([]domain.Sale, 0, len(rows))
	for _, row := range rows {
		sale, err := row.decode()
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	return sales, nil
}

func (s *Store) ListPurchases(ctx context.Context, filter domain.PurchaseFilter) ([]domain.Purchase, error) {
	rows := make([]purchaseRow, 0, 32)
	err := sqlx.SelectContext(ctx, s.db, &rows, `
		SELECT `+purchaseColumns+`
		FROM purchases
		WHERE ($1 = '' OR vendor_id = $1)
			AND ($2 = '' OR financial_year = $2)
			AND ($3 = '' OR payment_status = $3)
		ORDER BY created_at DESC
		LIMIT NULLIF($4, 0)
	`, filter.Vendor, filter.FinancialYear, filter.Status, filter.Limit)
	if err != nil {
		return nil, mapError(err)
	}
	purchases := make([]domain.Purchase, 0, len(rows))
	for _, row := range rows {
		purchase, err := row.decode()
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, *purchase)
	}
	return purchases, nil
}

func (s *Store) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	var row paymentRow
	if err := sqlx.GetContext(ctx, s.db, &row, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return row.decode()
}

func (s *Store) ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	rows := make([]paymentRow, 0, 32)
	err := sqlx.SelectContext(ctx, s.db, &rows, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE ($1 = '' OR party_id = $1)
			AND ($2 = '' OR payment_type = $2)
		ORDER BY created_at DESC
		LIMIT NULLIF($3, 0)
	`, filter.Party, filter.PaymentType, filter.Limit)
	if err != nil {
		return nil, mapError(err)
	}
	payments := make([]domain.Payment, 0, len(rows))
	for _, row := range rows {
		payment, err := row.decode()
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}
	return payments, nil
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	logs := make([]domain.AuditLog, 0, 64)
	err := sqlx.SelectContext(ctx, s.db, &logs, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT NULLIF($3, 0)
	`, from, to, limit)
	if err != nil {
		return nil, mapError(err)
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return mapError(err)
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	users := make([]domain.UserAccount, 0, 8)
	err := sqlx.SelectContext(ctx, s.db, &users, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, mapError(err)
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password = $2 WHERE username = $1`, username, password)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

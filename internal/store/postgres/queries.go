package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"pharmaledger/backend/internal/domain"
	"pharmaledger/backend/internal/store"
)

const (
	medicineColumns = `id, code, name, generic_name, manufacturer, category, hsn_code, pack_size, gst_rate, mrp,
		min_stock, max_stock, reorder_level, current_stock, active, created_by, created_at, updated_at`
	batchColumns = `id, medicine_id, batch_number, expiry_date, manufacturing_date, purchase_price, selling_price, mrp,
		quantity, initial_quantity, vendor_id, purchase_id, created_at, updated_at`
	partyColumns = `id, code, party_type, name, contact_person, phone, email, address, gstin, state_code, credit_limit,
		payment_terms, total_sales, total_purchases, total_receipts, total_payments, outstanding_balance, active,
		created_by, created_at, updated_at`
	ledgerColumns = `id, ledger_type, party_id, party_name, financial_year, opening_balance, total_debit, total_credit,
		closing_balance, entry_count, created_at, updated_at`
	entryColumns = `ledger_id, position, entry_date, particulars, reference_type, reference_id, reference_number,
		debit, credit, balance, created_at`
	invoiceTotalColumns = `subtotal, total_discount, taxable_amount, total_cgst, total_sgst, total_igst, total_gst,
		freight_charges, other_charges, round_off, grand_total`
	saleColumns = `id, invoice_number, invoice_date, financial_year, customer_id, customer_name, gst_type, items, ` +
		invoiceTotalColumns + `, paid_amount, balance_amount, payment_status, payment_mode, due_date, notes, created_by, created_at, updated_at`
	purchaseColumns = `id, purchase_number, supplier_invoice_number, invoice_date, financial_year, vendor_id, vendor_name, gst_type, items, ` +
		invoiceTotalColumns + `, paid_amount, balance_amount, payment_status, payment_mode, due_date, notes, created_by, created_at, updated_at`
	paymentColumns = `id, payment_number, payment_type, financial_year, party_id, party_name, amount, mode, payment_date,
		reference, linked_invoices, previous_outstanding, notes, created_by, created_at`
)

type saleRow struct {
	domain.Sale
	ItemsJSON []byte `db:"items"`
}

func (r saleRow) decode() (*domain.Sale, error) {
	sale := r.Sale
	sale.Items = []domain.LineItem{}
	if err := fromJSON(r.ItemsJSON, &sale.Items); err != nil {
		return nil, err
	}
	return &sale, nil
}

type purchaseRow struct {
	domain.Purchase
	ItemsJSON []byte `db:"items"`
}

func (r purchaseRow) decode() (*domain.Purchase, error) {
	purchase := r.Purchase
	purchase.Items = []domain.PurchaseItem{}
	if err := fromJSON(r.ItemsJSON, &purchase.Items); err != nil {
		return nil, err
	}
	return &purchase, nil
}

type paymentRow struct {
	domain.Payment
	LinkedJSON []byte `db:"linked_invoices"`
}

func (r paymentRow) decode() (*domain.Payment, error) {
	payment := r.Payment
	payment.LinkedInvoices = []domain.PaymentAllocation{}
	if err := fromJSON(r.LinkedJSON, &payment.LinkedInvoices); err != nil {
		return nil, err
	}
	return &payment, nil
}

// queries implements store.Tx over either the pool or an open transaction.
type queries struct {
	q sqlx.ExtContext
}

func (r *queries) NextSequence(ctx context.Context, name string, scope string) (int64, error) {
	var seq int64
	err := sqlx.GetContext(ctx, r.q, &seq, `
		INSERT INTO counters (name, scope, seq, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (name, scope)
		DO UPDATE SET seq = counters.seq + 1, updated_at = now()
		RETURNING seq
	`, name, scope)
	if err != nil {
		return 0, mapError(err)
	}
	return seq, nil
}

func (r *queries) CreateMedicine(ctx context.Context, m domain.Medicine) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO medicines (`+medicineColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`, m.ID, m.Code, m.Name, m.GenericName, m.Manufacturer, m.Category, m.HSNCode, m.PackSize, m.GSTRate, m.MRP,
		m.MinStock, m.MaxStock, m.ReorderLevel, m.CurrentStock, m.Active, m.CreatedBy, m.CreatedAt, m.UpdatedAt)
	return mapError(err)
}

func (r *queries) GetMedicine(ctx context.Context, id string) (*domain.Medicine, error) {
	var m domain.Medicine
	if err := sqlx.GetContext(ctx, r.q, &m, `SELECT `+medicineColumns+` FROM medicines WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *queries) LockMedicine(ctx context.Context, id string) (*domain.Medicine, error) {
	var m domain.Medicine
	if err := sqlx.GetContext(ctx, r.q, &m, `SELECT `+medicineColumns+` FROM medicines WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *queries) UpdateMedicine(ctx context.Context, m domain.Medicine) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE medicines
		SET name = $2, generic_name = $3, manufacturer = $4, category = $5, hsn_code = $6, pack_size = $7,
			gst_rate = $8, mrp = $9, min_stock = $10, max_stock = $11, reorder_level = $12, active = $13, updated_at = $14
		WHERE id = $1
	`, m.ID, m.Name, m.GenericName, m.Manufacturer, m.Category, m.HSNCode, m.PackSize,
		m.GSTRate, m.MRP, m.MinStock, m.MaxStock, m.ReorderLevel, m.Active, m.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

func (r *queries) DeleteMedicine(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM medicines WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

func (r *queries) AddMedicineStock(ctx context.Context, id string, delta int) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE medicines SET current_stock = current_stock + $2, updated_at = now() WHERE id = $1
	`, id, delta)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

func (r *queries) SetMedicineStock(ctx context.Context, id string, qty int) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE medicines SET current_stock = $2, updated_at = now() WHERE id = $1
	`, id, qty)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

func (r *queries) CreateBatch(ctx context.Context, b domain.Batch) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO batches (`+batchColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, b.ID, b.Medicine, b.BatchNumber, b.ExpiryDate, b.ManufacturingDate, b.PurchasePrice, b.SellingPrice, b.MRP,
		b.Quantity, b.InitialQuantity, b.Vendor, b.Purchase, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return mapError(err)
	}
	return nil
}

func (r *queries) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	var b domain.Batch
	if err := sqlx.GetContext(ctx, r.q, &b, `SELECT `+batchColumns+` FROM batches WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (r *queries) ListBatchesForMedicine(ctx context.Context, medicineID string) ([]domain.Batch, error) {
	batches := make([]domain.Batch, 0, 16)
	err := sqlx.SelectContext(ctx, r.q, &batches, `
		SELECT `+batchColumns+`
		FROM batches
		WHERE medicine_id = $1
		ORDER BY expiry_date ASC, created_at ASC
	`, medicineID)
	if err != nil {
		return nil, mapError(err)
	}
	return batches, nil
}

func (r *queries) DeductBatch(ctx context.Context, id string, qty int) (*domain.Batch, error) {
	if qty <= 0 {
		return nil, store.Invalid("quantity", "must be positive")
	}
	var b domain.Batch
	err := sqlx.GetContext(ctx, r.q, &b, `
		UPDATE batches
		SET quantity = quantity - $2, updated_at = now()
		WHERE id = $1 AND quantity >= $2
		RETURNING `+batchColumns, id, qty)
	if err == nil {
		return &b, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, mapError(err)
	}

	current, getErr := r.GetBatch(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, &store.InsufficientStockError{
		BatchID:     current.ID,
		BatchNumber: current.BatchNumber,
		Requested:   qty,
		Available:   current.Quantity,
	}
}

func (r *queries) SetBatchQuantity(ctx context.Context, id string, expected int, qty int) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE batches
		SET quantity = $3, updated_at = now()
		WHERE id = $1 AND quantity = $2 AND $3 >= 0 AND $3 <= initial_quantity
	`, id, expected, qty)
	if err != nil {
		return mapError(err)
	}
	if err := requireRow(res); err == nil {
		return nil
	}

	current, getErr := r.GetBatch(ctx, id)
	if getErr != nil {
		return getErr
	}
	if current.Quantity != expected {
		return store.ErrConcurrencyConflict
	}
	return store.Invalid("quantity", "must stay between 0 and the initial quantity")
}

func (r *queries) CreateParty(ctx context.Context, p domain.Party) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO parties (`+partyColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`, p.ID, p.Code, p.Type, p.Name, p.ContactPerson, p.Phone, p.Email, p.Address, p.GSTIN, p.StateCode, p.CreditLimit,
		p.PaymentTerms, p.TotalSales, p.TotalPurchases, p.TotalReceipts, p.TotalPayments, p.OutstandingBalance, p.Active,
		p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	return mapError(err)
}

func (r *queries) GetParty(ctx context.Context, id string) (*domain.Party, error) {
	var p domain.Party
	if err := sqlx.GetContext(ctx, r.q, &p, `SELECT `+partyColumns+` FROM parties WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *queries) UpdateParty(ctx context.Context, p domain.Party) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE parties
		SET name = $2, contact_person = $3, phone = $4, email = $5, address = $6, gstin = $7, state_code = $8,
			credit_limit = $9, payment_terms = $10, active = $11, updated_at = $12
		WHERE id = $1
	`, p.ID, p.Name, p.ContactPerson, p.Phone, p.Email, p.Address, p.GSTIN, p.StateCode,
		p.CreditLimit, p.PaymentTerms, p.Active, p.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

func (r *queries) ApplyPartyTotals(ctx context.Context, id string, d domain.PartyTotalsDelta) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE parties
		SET total_sales = total_sales + $2,
			total_purchases = total_purchases + $3,
			total_receipts = total_receipts + $4,
			total_payments = total_payments + $5,
			outstanding_balance = outstanding_balance + $6,
			updated_at = now()
		WHERE id = $1
	`, id, d.Sales, d.Purchases, d.Receipts, d.Payments, d.Outstanding)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

func (r *queries) SetPartyTotals(ctx context.Context, id string, t domain.PartyTotals) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE parties
		SET total_sales = $2, total_purchases = $3, total_receipts = $4, total_payments = $5,
			outstanding_balance = $6, updated_at = now()
		WHERE id = $1
	`, id, t.TotalSales, t.TotalPurchases, t.TotalReceipts, t.TotalPayments, t.OutstandingBalance)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

func (r *queries) DeleteParty(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM parties WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

func (r *queries) LockLedger(ctx context.Context, ledgerType string, partyID string, fy string) (*domain.Ledger, error) {
	var l domain.Ledger
	err := sqlx.GetContext(ctx, r.q, &l, `
		SELECT `+ledgerColumns+`
		FROM ledgers
		WHERE ledger_type = $1 AND party_id = $2 AND financial_year = $3
		FOR UPDATE
	`, ledgerType, partyID, fy)
	if err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

func (r *queries) LatestLedgerBefore(ctx context.Context, ledgerType string, partyID string, fy string) (*domain.Ledger, error) {
	var l domain.Ledger
	err := sqlx.GetContext(ctx, r.q, &l, `
		SELECT `+ledgerColumns+`
		FROM ledgers
		WHERE ledger_type = $1 AND party_id = $2 AND financial_year < $3
		ORDER BY financial_year DESC
		LIMIT 1
	`, ledgerType, partyID, fy)
	if err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

func (r *queries) LatestLedger(ctx context.Context, ledgerType string, partyID string) (*domain.Ledger, error) {
	var l domain.Ledger
	err := sqlx.GetContext(ctx, r.q, &l, `
		SELECT `+ledgerColumns+`
		FROM ledgers
		WHERE ledger_type = $1 AND party_id = $2
		ORDER BY financial_year DESC
		LIMIT 1
	`, ledgerType, partyID)
	if err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

func (r *queries) CreateLedger(ctx context.Context, l domain.Ledger) error {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO ledgers (`+ledgerColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (ledger_type, party_id, financial_year) DO NOTHING
	`, l.ID, l.LedgerType, l.Party, l.PartyName, l.FinancialYear, l.OpeningBalance, l.TotalDebit, l.TotalCredit,
		l.ClosingBalance, l.EntryCount, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrConflict
	}
	return nil
}

func (r *queries) AppendLedgerEntry(ctx context.Context, l domain.Ledger, e domain.LedgerEntry) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE ledgers
		SET total_debit = $2, total_credit = $3, closing_balance = $4, entry_count = $5, updated_at = $6
		WHERE id = $1 AND entry_count = $5 - 1
	`, l.ID, l.TotalDebit, l.TotalCredit, l.ClosingBalance, l.EntryCount, l.UpdatedAt)
	if err != nil {
		return mapError(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return store.ErrConcurrencyConflict
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO ledger_entries (`+entryColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, l.ID, l.EntryCount, e.Date, e.Particulars, e.ReferenceType, e.ReferenceID, e.ReferenceNumber,
		e.Debit, e.Credit, e.Balance, e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConcurrencyConflict
		}
		return mapError(err)
	}
	return nil
}

func (r *queries) ListLedgers(ctx context.Context, ledgerType string, partyID string) ([]domain.Ledger, error) {
	ledgers := make([]domain.Ledger, 0, 4)
	err := sqlx.SelectContext(ctx, r.q, &ledgers, `
		SELECT `+ledgerColumns+`
		FROM ledgers
		WHERE party_id = $1 AND ($2 = '' OR ledger_type = $2)
		ORDER BY financial_year ASC
	`, partyID, ledgerType)
	if err != nil {
		return nil, mapError(err)
	}
	for i := range ledgers {
		entries, err := r.ledgerEntries(ctx, ledgers[i].ID)
		if err != nil {
			return nil, err
		}
		ledgers[i].Entries = entries
	}
	return ledgers, nil
}

func (r *queries) ledgerEntries(ctx context.Context, ledgerID string) ([]domain.LedgerEntry, error) {
	entries := make([]domain.LedgerEntry, 0, 32)
	err := sqlx.SelectContext(ctx, r.q, &entries, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE ledger_id = $1
		ORDER BY position ASC
	`, ledgerID)
	if err != nil {
		return nil, mapError(err)
	}
	return entries, nil
}

func (r *queries) CreateSale(ctx context.Context, s domain.Sale) error {
	items, err := toJSON(s.Items)
	if err != nil {
		return err
	}
	t := s.InvoiceTotals
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)
	`, s.ID, s.InvoiceNumber, s.InvoiceDate, s.FinancialYear, s.Customer, s.CustomerName, s.GSTType, items,
		t.Subtotal, t.TotalDiscount, t.TaxableAmount, t.TotalCGST, t.TotalSGST, t.TotalIGST, t.TotalGST,
		t.FreightCharges, t.OtherCharges, t.RoundOff, t.GrandTotal,
		s.PaidAmount, s.BalanceAmount, s.PaymentStatus, s.PaymentMode, s.DueDate, s.Notes, s.CreatedBy, s.CreatedAt, s.UpdatedAt)
	return mapError(err)
}

func (r *queries) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	var row saleRow
	if err := sqlx.GetContext(ctx, r.q, &row, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return row.decode()
}

func (r *queries) LockSale(ctx context.Context, id string) (*domain.Sale, error) {
	var row saleRow
	if err := sqlx.GetContext(ctx, r.q, &row, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, notFound(err)
	}
	return row.decode()
}

func (r *queries) UpdateSalePayment(ctx context.Context, id string, p domain.InvoicePayment) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE sales SET paid_amount = $2, balance_amount = $3, payment_status = $4, updated_at = $5 WHERE id = $1
	`, id, p.PaidAmount, p.BalanceAmount, p.PaymentStatus, time.Now().UTC())
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

func (r *queries) CreatePurchase(ctx context.Context, p domain.Purchase) error {
	items, err := toJSON(p.Items)
	if err != nil {
		return err
	}
	t := p.InvoiceTotals
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO purchases (`+purchaseColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29)
	`, p.ID, p.PurchaseNumber, p.SupplierInvoiceNumber, p.InvoiceDate, p.FinancialYear, p.Vendor, p.VendorName, p.GSTType, items,
		t.Subtotal, t.TotalDiscount, t.TaxableAmount, t.TotalCGST, t.TotalSGST, t.TotalIGST, t.TotalGST,
		t.FreightCharges, t.OtherCharges, t.RoundOff, t.GrandTotal,
		p.PaidAmount, p.BalanceAmount, p.PaymentStatus, p.PaymentMode, p.DueDate, p.Notes, p.CreatedBy, p.CreatedAt, p.UpdatedAt)
	return mapError(err)
}

func (r *queries) GetPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	var row purchaseRow
	if err := sqlx.GetContext(ctx, r.q, &row, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return row.decode()
}

func (r *queries) LockPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	var row purchaseRow
	if err := sqlx.GetContext(ctx, r.q, &row, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, notFound(err)
	}
	return row.decode()
}

func (r *queries) UpdatePurchasePayment(ctx context.Context, id string, p domain.InvoicePayment) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE purchases SET paid_amount = $2, balance_amount = $3, payment_status = $4, updated_at = $5 WHERE id = $1
	`, id, p.PaidAmount, p.BalanceAmount, p.PaymentStatus, time.Now().UTC())
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

func (r *queries) CreatePayment(ctx context.Context, p domain.Payment) error {
	linked, err := toJSON(p.LinkedInvoices)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, p.ID, p.PaymentNumber, p.PaymentType, p.FinancialYear, p.Party, p.PartyName, p.Amount, p.Mode, p.Date,
		p.Reference, linked, p.PreviousOutstanding, p.Notes, p.CreatedBy, p.CreatedAt)
	return mapError(err)
}

func (r *queries) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return mapError(err)
}

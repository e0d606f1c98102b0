package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"pharmaledger/backend/internal/domain"
	"pharmaledger/backend/internal/events"
	"pharmaledger/backend/internal/gst"
	"pharmaledger/backend/internal/store"
	"pharmaledger/backend/internal/xid"
)

func purchaseLineInput(line domain.PurchaseLineRequest) batchInput {
	return batchInput{
		Medicine:          line.Medicine,
		BatchNumber:       line.BatchNumber,
		ExpiryDate:        line.ExpiryDate,
		ManufacturingDate: line.ManufacturingDate,
		PurchasePrice:     line.PurchasePrice,
		SellingPrice:      line.SellingPrice,
		MRP:               line.MRP,
		Quantity:          line.Quantity,
	}
}

// CreatePurchase posts a vendor invoice: every line becomes a new batch and the
// vendor's totals and ledger move in the same unit of work.
func (s *Service) CreatePurchase(ctx context.Context, req domain.PurchaseCreateRequest) (domain.Purchase, error) {
	req.PaymentMode = strings.ToLower(strings.TrimSpace(req.PaymentMode))
	verr := s.check(req)
	checkMoney(verr, "freightCharges", req.FreightCharges)
	checkMoney(verr, "otherCharges", req.OtherCharges)
	checkMoney(verr, "paidAmount", req.PaidAmount)

	now := s.now()
	seen := make(map[string]int, len(req.Items))
	for i, line := range req.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		checkBatchInput(verr, prefix, purchaseLineInput(line))
		checkDiscount(verr, prefix+"discountPercent", line.DiscountPercent)
		if !line.PurchasePrice.IsPositive() {
			verr.Add(prefix+"purchasePrice", "must be greater than 0")
		}
		if !line.ExpiryDate.IsZero() && !line.ExpiryDate.After(now) {
			verr.Add(prefix+"expiryDate", "must be in the future")
		}
		key := line.Medicine + "\x00" + strings.ToUpper(strings.TrimSpace(line.BatchNumber))
		if first, dup := seen[key]; dup {
			verr.Add(prefix+"batchNumber", fmt.Sprintf("repeats items[%d]", first))
		} else {
			seen[key] = i
		}
	}
	if err := verr.OrNil(); err != nil {
		return domain.Purchase{}, err
	}

	invoiceDate := now
	if req.InvoiceDate != nil {
		invoiceDate = req.InvoiceDate.UTC()
	}
	paymentMode := req.PaymentMode
	if paymentMode == "" && req.PaidAmount.IsPositive() {
		paymentMode = "cash"
	}

	var purchase domain.Purchase
	err := s.post(ctx, "purchase_create", []string{ledgerLockKey(domain.PartyTypeVendor, req.Vendor)}, func(ctx context.Context, tx store.Tx) error {
		vendor, err := loadParty(ctx, tx, req.Vendor, domain.PartyTypeVendor)
		if err != nil {
			return err
		}
		if err := requireOpenYear(ctx, tx, domain.PartyTypeVendor, vendor.ID, invoiceDate, "invoiceDate"); err != nil {
			return err
		}
		gstType := s.resolveGSTType(req.GSTType, vendor.StateCode)

		medicines := make([]*domain.Medicine, len(req.Items))
		for i, line := range req.Items {
			medicine, err := tx.GetMedicine(ctx, line.Medicine)
			if err != nil {
				return fmt.Errorf("medicine %s: %w", line.Medicine, err)
			}
			medicines[i] = medicine
		}

		purchaseID := xid.New("purchase")
		items := make([]domain.PurchaseItem, 0, len(req.Items))
		amounts := make([]gst.LineAmounts, 0, len(req.Items))
		for i, line := range req.Items {
			medicine := medicines[i]
			rate := medicine.GSTRate
			if line.GSTRate != nil {
				rate = *line.GSTRate
			}

			in := purchaseLineInput(line)
			in.Vendor = vendor.ID
			in.Purchase = purchaseID
			batch, err := s.createBatch(ctx, tx, in)
			if err != nil {
				return err
			}

			computed := gst.ComputeLine(gst.LineInput{
				Quantity:        line.Quantity,
				UnitPrice:       line.PurchasePrice,
				DiscountPercent: line.DiscountPercent,
				GSTRate:         rate,
				Interstate:      gstType == domain.GSTTypeInter,
			})
			item := domain.PurchaseItem{
				LineItem: domain.LineItem{
					Medicine:        medicine.ID,
					MedicineName:    medicine.Name,
					HSNCode:         medicine.HSNCode,
					Batch:           batch.ID,
					BatchNumber:     batch.BatchNumber,
					ExpiryDate:      batch.ExpiryDate,
					Quantity:        line.Quantity,
					UnitPrice:       line.PurchasePrice,
					MRP:             line.MRP,
					DiscountPercent: line.DiscountPercent,
					GSTRate:         rate,
				},
				PurchasePrice:     line.PurchasePrice,
				SellingPrice:      line.SellingPrice,
				ManufacturingDate: line.ManufacturingDate,
			}
			computed.Apply(&item.LineItem)
			items = append(items, item)
			amounts = append(amounts, computed)
		}

		totals := gst.Summarize(amounts, req.FreightCharges, req.OtherCharges)
		if req.PaidAmount.GreaterThan(totals.GrandTotal) {
			return store.Invalid("paidAmount", fmt.Sprintf("must not exceed grand total %s", totals.GrandTotal.StringFixed(2)))
		}

		number, err := nextNumber(ctx, tx, domain.SequencePurchase, domain.PrefixPurchase, invoiceDate)
		if err != nil {
			return err
		}

		created := s.now()
		settled := gst.Settle(totals.GrandTotal, req.PaidAmount)
		purchase = domain.Purchase{
			ID:                    purchaseID,
			PurchaseNumber:        number.Formatted,
			SupplierInvoiceNumber: strings.TrimSpace(req.SupplierInvoiceNumber),
			InvoiceDate:           invoiceDate,
			FinancialYear:         number.FinancialYear,
			Vendor:                vendor.ID,
			VendorName:            vendor.Name,
			GSTType:               gstType,
			Items:                 items,
			InvoiceTotals:         totals,
			PaidAmount:            settled.PaidAmount,
			BalanceAmount:         settled.BalanceAmount,
			PaymentStatus:         settled.PaymentStatus,
			PaymentMode:           paymentMode,
			DueDate:               dueDate(req.DueDate, invoiceDate, vendor.PaymentTerms),
			Notes:                 strings.TrimSpace(req.Notes),
			CreatedBy:             actorName(ctx),
			CreatedAt:             created,
			UpdatedAt:             created,
		}
		if err := tx.CreatePurchase(ctx, purchase); err != nil {
			return err
		}

		if err := tx.ApplyPartyTotals(ctx, vendor.ID, domain.PartyTotalsDelta{
			Purchases:   totals.GrandTotal,
			Payments:    req.PaidAmount,
			Outstanding: totals.GrandTotal.Sub(req.PaidAmount),
		}); err != nil {
			return err
		}

		particulars := "Purchase " + purchase.PurchaseNumber
		if purchase.SupplierInvoiceNumber != "" {
			particulars += " (supplier invoice " + purchase.SupplierInvoiceNumber + ")"
		}
		if _, err := s.appendLedgerEntry(ctx, tx, domain.LedgerEntryInput{
			LedgerType:      domain.PartyTypeVendor,
			Party:           vendor.ID,
			PartyName:       vendor.Name,
			Date:            invoiceDate,
			Particulars:     particulars,
			ReferenceType:   domain.ReferencePurchase,
			ReferenceID:     purchase.ID,
			ReferenceNumber: purchase.PurchaseNumber,
			Credit:          totals.GrandTotal,
		}); err != nil {
			return err
		}
		if req.PaidAmount.IsPositive() {
			if _, err := s.appendLedgerEntry(ctx, tx, domain.LedgerEntryInput{
				LedgerType:      domain.PartyTypeVendor,
				Party:           vendor.ID,
				PartyName:       vendor.Name,
				Date:            invoiceDate,
				Particulars:     fmt.Sprintf("Payment made (%s) against %s", paymentMode, purchase.PurchaseNumber),
				ReferenceType:   domain.ReferencePurchase,
				ReferenceID:     purchase.ID,
				ReferenceNumber: purchase.PurchaseNumber,
				Debit:           req.PaidAmount,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Purchase{}, err
	}

	s.log.WithFields(logrus.Fields{
		"purchase":   purchase.PurchaseNumber,
		"party":      purchase.Vendor,
		"lines":      len(purchase.Items),
		"grandTotal": purchase.GrandTotal.StringFixed(2),
	}).Info("purchase posted")
	s.afterCommit(ctx, events.Event{Type: events.PurchasePosted, Key: purchase.Vendor, Payload: purchase}, true)
	s.logAudit(ctx, "purchase_create", "purchase", purchase.ID, fmt.Sprintf("number=%s,vendor=%s,total=%s,paid=%s", purchase.PurchaseNumber, purchase.Vendor, purchase.GrandTotal.StringFixed(2), purchase.PaidAmount.StringFixed(2)))
	return purchase, nil
}

func (s *Service) GetPurchase(ctx context.Context, id string) (domain.Purchase, error) {
	purchase, err := s.repo.GetPurchase(ctx, id)
	if err != nil {
		return domain.Purchase{}, err
	}
	return *purchase, nil
}

func (s *Service) ListPurchases(ctx context.Context, filter domain.PurchaseFilter) ([]domain.Purchase, error) {
	if err := checkListFilter(filter.Status, filter.FinancialYear); err != nil {
		return nil, err
	}
	if filter.Limit < 1 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListPurchases(ctx, filter)
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PartyTypeCustomer = "customer"
	PartyTypeVendor   = "vendor"

	GSTTypeIntra = "intra"
	GSTTypeInter = "inter"

	PaymentStatusUnpaid  = "unpaid"
	PaymentStatusPartial = "partial"
	PaymentStatusPaid    = "paid"

	PaymentTypeReceipt = "receipt"
	PaymentTypePayment = "payment"

	ReferenceSale     = "sale"
	ReferencePurchase = "purchase"
	ReferenceReceipt  = "receipt"
	ReferencePayment  = "payment"

	AdjustAdd      = "add"
	AdjustSubtract = "subtract"
	AdjustSet      = "set"

	ExpiryExpired   = "expired"
	ExpiryCritical  = "critical"
	ExpiryWarning   = "warning"
	ExpiryAttention = "attention"
	ExpiryGood      = "good"

	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Document number prefixes and counter names.
const (
	SequenceSale     = "sale"
	SequencePurchase = "purchase"
	SequenceReceipt  = "receipt"
	SequencePayment  = "payment"
	SequenceMedicine = "medicine"
	SequenceCustomer = "customer"
	SequenceVendor   = "vendor"

	PrefixSale     = "INV"
	PrefixPurchase = "PUR"
	PrefixReceipt  = "RCPT"
	PrefixPayment  = "PAY"
	PrefixMedicine = "MED"
	PrefixCustomer = "CUST"
	PrefixVendor   = "VEND"

	// MasterScope is the financial-year slot used by counters that never reset.
	MasterScope = "master"
)

type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type Medicine struct {
	ID           string          `json:"id" db:"id"`
	Code         string          `json:"code" db:"code"`
	Name         string          `json:"name" db:"name"`
	GenericName  string          `json:"genericName" db:"generic_name"`
	Manufacturer string          `json:"manufacturer" db:"manufacturer"`
	Category     string          `json:"category" db:"category"`
	HSNCode      string          `json:"hsnCode" db:"hsn_code"`
	PackSize     string          `json:"packSize" db:"pack_size"`
	GSTRate      int             `json:"gstRate" db:"gst_rate"`
	MRP          decimal.Decimal `json:"mrp" db:"mrp"`
	MinStock     int             `json:"minStock" db:"min_stock"`
	MaxStock     int             `json:"maxStock" db:"max_stock"`
	ReorderLevel int             `json:"reorderLevel" db:"reorder_level"`
	CurrentStock int             `json:"currentStock" db:"current_stock"`
	Active       bool            `json:"isActive" db:"active"`
	CreatedBy    string          `json:"createdBy" db:"created_by"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time       `json:"updatedAt" db:"updated_at"`
}

type Batch struct {
	ID                string          `json:"id" db:"id"`
	Medicine          string          `json:"medicine" db:"medicine_id"`
	BatchNumber       string          `json:"batchNumber" db:"batch_number"`
	ExpiryDate        time.Time       `json:"expiryDate" db:"expiry_date"`
	ManufacturingDate *time.Time      `json:"manufacturingDate,omitempty" db:"manufacturing_date"`
	PurchasePrice     decimal.Decimal `json:"purchasePrice" db:"purchase_price"`
	SellingPrice      decimal.Decimal `json:"sellingPrice" db:"selling_price"`
	MRP               decimal.Decimal `json:"mrp" db:"mrp"`
	Quantity          int             `json:"quantity" db:"quantity"`
	InitialQuantity   int             `json:"initialQuantity" db:"initial_quantity"`
	Vendor            string          `json:"vendor,omitempty" db:"vendor_id"`
	Purchase          string          `json:"purchase,omitempty" db:"purchase_id"`
	IsExpired         bool            `json:"isExpired" db:"-"`
	CreatedAt         time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time       `json:"updatedAt" db:"updated_at"`
}

// ExpiredAt reports whether the batch can no longer be sold at now.
func (b Batch) ExpiredAt(now time.Time) bool {
	return !b.ExpiryDate.After(now)
}

type BatchExpiry struct {
	Batch
	DaysUntilExpiry int    `json:"daysUntilExpiry"`
	ExpiryStatus    string `json:"expiryStatus"`
}

type BatchAllocation struct {
	Batch        string          `json:"batchId"`
	BatchNumber  string          `json:"batchNumber"`
	AllocatedQty int             `json:"allocatedQty"`
	ExpiryDate   time.Time       `json:"expiryDate"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
	MRP          decimal.Decimal `json:"mrp"`
}

type Allocation struct {
	Medicine       string            `json:"medicine"`
	Requested      int               `json:"requested"`
	Allocations    []BatchAllocation `json:"allocations"`
	TotalAllocated int               `json:"totalAllocated"`
	Shortfall      int               `json:"shortfall"`
}

type StockSummary struct {
	Medicine         string `json:"medicine"`
	CurrentStock     int    `json:"currentStock"`
	TotalQuantity    int    `json:"totalQuantity"`
	SellableQuantity int    `json:"sellableQuantity"`
	ExpiredQuantity  int    `json:"expiredQuantity"`
	BatchCount       int    `json:"batchCount"`
	BelowReorder     bool   `json:"belowReorder"`
}

type StockRecompute struct {
	Medicine string `json:"medicine"`
	Before   int    `json:"before"`
	After    int    `json:"after"`
}

type ExpiryReport struct {
	WithinDays  int            `json:"withinDays"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Batches     []BatchExpiry  `json:"batches"`
	Counts      map[string]int `json:"counts"`
}

type Party struct {
	ID                 string          `json:"id" db:"id"`
	Code               string          `json:"code" db:"code"`
	Type               string          `json:"type" db:"party_type"`
	Name               string          `json:"name" db:"name"`
	ContactPerson      string          `json:"contactPerson" db:"contact_person"`
	Phone              string          `json:"phone" db:"phone"`
	Email              string          `json:"email" db:"email"`
	Address            string          `json:"address" db:"address"`
	GSTIN              string          `json:"gstin" db:"gstin"`
	StateCode          string          `json:"stateCode" db:"state_code"`
	CreditLimit        decimal.Decimal `json:"creditLimit" db:"credit_limit"`
	PaymentTerms       int             `json:"paymentTerms" db:"payment_terms"`
	TotalSales         decimal.Decimal `json:"totalSales" db:"total_sales"`
	TotalPurchases     decimal.Decimal `json:"totalPurchases" db:"total_purchases"`
	TotalReceipts      decimal.Decimal `json:"totalReceipts" db:"total_receipts"`
	TotalPayments      decimal.Decimal `json:"totalPayments" db:"total_payments"`
	OutstandingBalance decimal.Decimal `json:"outstandingBalance" db:"outstanding_balance"`
	Active             bool            `json:"isActive" db:"active"`
	CreatedBy          string          `json:"createdBy" db:"created_by"`
	CreatedAt          time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time       `json:"updatedAt" db:"updated_at"`
}

// PartyTotals is the running financial summary of a party.
type PartyTotals struct {
	TotalSales         decimal.Decimal `json:"totalSales"`
	TotalPurchases     decimal.Decimal `json:"totalPurchases"`
	TotalReceipts      decimal.Decimal `json:"totalReceipts"`
	TotalPayments      decimal.Decimal `json:"totalPayments"`
	OutstandingBalance decimal.Decimal `json:"outstandingBalance"`
}

func (p Party) Totals() PartyTotals {
	return PartyTotals{
		TotalSales:         p.TotalSales,
		TotalPurchases:     p.TotalPurchases,
		TotalReceipts:      p.TotalReceipts,
		TotalPayments:      p.TotalPayments,
		OutstandingBalance: p.OutstandingBalance,
	}
}

func (t PartyTotals) Equal(other PartyTotals) bool {
	return t.TotalSales.Equal(other.TotalSales) &&
		t.TotalPurchases.Equal(other.TotalPurchases) &&
		t.TotalReceipts.Equal(other.TotalReceipts) &&
		t.TotalPayments.Equal(other.TotalPayments) &&
		t.OutstandingBalance.Equal(other.OutstandingBalance)
}

// PartyTotalsDelta is applied as increments so concurrent postings never overwrite each other.
type PartyTotalsDelta struct {
	Sales       decimal.Decimal
	Purchases   decimal.Decimal
	Receipts    decimal.Decimal
	Payments    decimal.Decimal
	Outstanding decimal.Decimal
}

type PartyReconciliation struct {
	Party  string      `json:"party"`
	Before PartyTotals `json:"before"`
	After  PartyTotals `json:"after"`
	Drift  bool        `json:"drift"`
}

type LineItem struct {
	Medicine        string          `json:"medicine"`
	MedicineName    string          `json:"medicineName"`
	HSNCode         string          `json:"hsnCode,omitempty"`
	Batch           string          `json:"batch,omitempty"`
	BatchNumber     string          `json:"batchNumber"`
	ExpiryDate      time.Time       `json:"expiryDate"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	MRP             decimal.Decimal `json:"mrp"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	GSTRate         int             `json:"gstRate"`
	CGSTAmount      decimal.Decimal `json:"cgstAmount"`
	SGSTAmount      decimal.Decimal `json:"sgstAmount"`
	IGSTAmount      decimal.Decimal `json:"igstAmount"`
	TaxableAmount   decimal.Decimal `json:"taxableAmount"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
}

type PurchaseItem struct {
	LineItem
	PurchasePrice     decimal.Decimal `json:"purchasePrice"`
	SellingPrice      decimal.Decimal `json:"sellingPrice"`
	ManufacturingDate *time.Time      `json:"manufacturingDate,omitempty"`
}

type InvoiceTotals struct {
	Subtotal       decimal.Decimal `json:"subtotal" db:"subtotal"`
	TotalDiscount  decimal.Decimal `json:"totalDiscount" db:"total_discount"`
	TaxableAmount  decimal.Decimal `json:"taxableAmount" db:"taxable_amount"`
	TotalCGST      decimal.Decimal `json:"totalCgst" db:"total_cgst"`
	TotalSGST      decimal.Decimal `json:"totalSgst" db:"total_sgst"`
	TotalIGST      decimal.Decimal `json:"totalIgst" db:"total_igst"`
	TotalGST       decimal.Decimal `json:"totalGst" db:"total_gst"`
	FreightCharges decimal.Decimal `json:"freightCharges" db:"freight_charges"`
	OtherCharges   decimal.Decimal `json:"otherCharges" db:"other_charges"`
	RoundOff       decimal.Decimal `json:"roundOff" db:"round_off"`
	GrandTotal     decimal.Decimal `json:"grandTotal" db:"grand_total"`
}

type Sale struct {
	ID            string     `json:"id" db:"id"`
	InvoiceNumber string     `json:"invoiceNumber" db:"invoice_number"`
	InvoiceDate   time.Time  `json:"invoiceDate" db:"invoice_date"`
	FinancialYear string     `json:"financialYear" db:"financial_year"`
	Customer      string     `json:"customer" db:"customer_id"`
	CustomerName  string     `json:"customerName" db:"customer_name"`
	GSTType       string     `json:"gstType" db:"gst_type"`
	Items         []LineItem `json:"items" db:"-"`
	InvoiceTotals
	PaidAmount    decimal.Decimal `json:"paidAmount" db:"paid_amount"`
	BalanceAmount decimal.Decimal `json:"balanceAmount" db:"balance_amount"`
	PaymentStatus string          `json:"paymentStatus" db:"payment_status"`
	PaymentMode   string          `json:"paymentMode,omitempty" db:"payment_mode"`
	DueDate       *time.Time      `json:"dueDate,omitempty" db:"due_date"`
	Notes         string          `json:"notes,omitempty" db:"notes"`
	CreatedBy     string          `json:"createdBy" db:"created_by"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

type Purchase struct {
	ID                    string         `json:"id" db:"id"`
	PurchaseNumber        string         `json:"purchaseNumber" db:"purchase_number"`
	SupplierInvoiceNumber string         `json:"supplierInvoiceNumber,omitempty" db:"supplier_invoice_number"`
	InvoiceDate           time.Time      `json:"invoiceDate" db:"invoice_date"`
	FinancialYear         string         `json:"financialYear" db:"financial_year"`
	Vendor                string         `json:"vendor" db:"vendor_id"`
	VendorName            string         `json:"vendorName" db:"vendor_name"`
	GSTType               string         `json:"gstType" db:"gst_type"`
	Items                 []PurchaseItem `json:"items" db:"-"`
	InvoiceTotals
	PaidAmount    decimal.Decimal `json:"paidAmount" db:"paid_amount"`
	BalanceAmount decimal.Decimal `json:"balanceAmount" db:"balance_amount"`
	PaymentStatus string          `json:"paymentStatus" db:"payment_status"`
	PaymentMode   string          `json:"paymentMode,omitempty" db:"payment_mode"`
	DueDate       *time.Time      `json:"dueDate,omitempty" db:"due_date"`
	Notes         string          `json:"notes,omitempty" db:"notes"`
	CreatedBy     string          `json:"createdBy" db:"created_by"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

// InvoicePayment is the settled state of a sale or purchase after a payment is applied.
type InvoicePayment struct {
	PaidAmount    decimal.Decimal
	BalanceAmount decimal.Decimal
	PaymentStatus string
}

type Ledger struct {
	ID             string          `json:"id" db:"id"`
	LedgerType     string          `json:"ledgerType" db:"ledger_type"`
	Party          string          `json:"party" db:"party_id"`
	PartyName      string          `json:"partyName" db:"party_name"`
	FinancialYear  string          `json:"financialYear" db:"financial_year"`
	OpeningBalance decimal.Decimal `json:"openingBalance" db:"opening_balance"`
	TotalDebit     decimal.Decimal `json:"totalDebit" db:"total_debit"`
	TotalCredit    decimal.Decimal `json:"totalCredit" db:"total_credit"`
	ClosingBalance decimal.Decimal `json:"closingBalance" db:"closing_balance"`
	EntryCount     int             `json:"entryCount" db:"entry_count"`
	Entries        []LedgerEntry   `json:"entries" db:"-"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`
}

type LedgerEntry struct {
	LedgerID        string          `json:"-" db:"ledger_id"`
	Position        int             `json:"-" db:"position"`
	Date            time.Time       `json:"date" db:"entry_date"`
	Particulars     string          `json:"particulars" db:"particulars"`
	ReferenceType   string          `json:"referenceType" db:"reference_type"`
	ReferenceID     string          `json:"referenceId" db:"reference_id"`
	ReferenceNumber string          `json:"referenceNumber" db:"reference_number"`
	Debit           decimal.Decimal `json:"debit" db:"debit"`
	Credit          decimal.Decimal `json:"credit" db:"credit"`
	Balance         decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
}

// LedgerEntryInput describes one financial side effect to append to a party ledger.
type LedgerEntryInput struct {
	LedgerType      string
	Party           string
	PartyName       string
	Date            time.Time
	Particulars     string
	ReferenceType   string
	ReferenceID     string
	ReferenceNumber string
	Debit           decimal.Decimal
	Credit          decimal.Decimal
}

type Payment struct {
	ID                  string              `json:"id" db:"id"`
	PaymentNumber       string              `json:"paymentNumber" db:"payment_number"`
	PaymentType         string              `json:"paymentType" db:"payment_type"`
	FinancialYear       string              `json:"financialYear" db:"financial_year"`
	Party               string              `json:"party" db:"party_id"`
	PartyName           string              `json:"partyName" db:"party_name"`
	Amount              decimal.Decimal     `json:"amount" db:"amount"`
	Mode                string              `json:"mode" db:"mode"`
	Date                time.Time           `json:"date" db:"payment_date"`
	Reference           string              `json:"reference,omitempty" db:"reference"`
	LinkedInvoices      []PaymentAllocation `json:"linkedInvoices" db:"-"`
	PreviousOutstanding decimal.Decimal     `json:"previousOutstanding" db:"previous_outstanding"`
	Notes               string              `json:"notes,omitempty" db:"notes"`
	CreatedBy           string              `json:"createdBy" db:"created_by"`
	CreatedAt           time.Time           `json:"createdAt" db:"created_at"`
}

type PaymentAllocation struct {
	Invoice         string          `json:"invoice"`
	InvoiceNumber   string          `json:"invoiceNumber"`
	AllocatedAmount decimal.Decimal `json:"allocatedAmount"`
}

type SequenceNumber struct {
	Sequence      int64  `json:"sequence"`
	FinancialYear string `json:"financialYear"`
	Formatted     string `json:"formatted"`
}

type AuditLog struct {
	ID            string    `json:"id" db:"id"`
	ActorUsername string    `json:"actorUsername" db:"actor_username"`
	ActorRole     string    `json:"actorRole" db:"actor_role"`
	Action        string    `json:"action" db:"action"`
	EntityType    string    `json:"entityType" db:"entity_type"`
	EntityID      string    `json:"entityId" db:"entity_id"`
	Detail        string    `json:"detail" db:"detail"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

type UserAccount struct {
	Username  string    `json:"username" db:"username"`
	Password  string    `json:"-" db:"password"`
	Role      string    `json:"role" db:"role"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type UserSummary struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expiresAt"`
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type MedicineCreateRequest struct {
	Name         string          `json:"name" validate:"required,max=200"`
	GenericName  string          `json:"genericName" validate:"max=200"`
	Manufacturer string          `json:"manufacturer" validate:"max=200"`
	Category     string          `json:"category" validate:"required,oneof=tablet capsule syrup injection ointment drops powder inhaler other"`
	HSNCode      string          `json:"hsnCode" validate:"omitempty,numeric,min=4,max=8"`
	PackSize     string          `json:"packSize" validate:"max=50"`
	GSTRate      int             `json:"gstRate" validate:"oneof=0 5 12 18 28"`
	MRP          decimal.Decimal `json:"mrp"`
	MinStock     int             `json:"minStock" validate:"gte=0"`
	MaxStock     int             `json:"maxStock" validate:"gte=0"`
	ReorderLevel int             `json:"reorderLevel" validate:"gte=0"`
}

type MedicineUpdateRequest struct {
	Name         *string          `json:"name" validate:"omitempty,min=1,max=200"`
	GenericName  *string          `json:"genericName" validate:"omitempty,max=200"`
	Manufacturer *string          `json:"manufacturer" validate:"omitempty,max=200"`
	Category     *string          `json:"category" validate:"omitempty,oneof=tablet capsule syrup injection ointment drops powder inhaler other"`
	HSNCode      *string          `json:"hsnCode" validate:"omitempty,numeric,min=4,max=8"`
	PackSize     *string          `json:"packSize" validate:"omitempty,max=50"`
	GSTRate      *int             `json:"gstRate" validate:"omitempty,oneof=0 5 12 18 28"`
	MRP          *decimal.Decimal `json:"mrp"`
	MinStock     *int             `json:"minStock" validate:"omitempty,gte=0"`
	MaxStock     *int             `json:"maxStock" validate:"omitempty,gte=0"`
	ReorderLevel *int             `json:"reorderLevel" validate:"omitempty,gte=0"`
}

type BatchReceiptRequest struct {
	Medicine          string          `json:"medicine" validate:"required"`
	BatchNumber       string          `json:"batchNumber" validate:"required,max=50"`
	ExpiryDate        time.Time       `json:"expiryDate" validate:"required"`
	ManufacturingDate *time.Time      `json:"manufacturingDate"`
	PurchasePrice     decimal.Decimal `json:"purchasePrice"`
	SellingPrice      decimal.Decimal `json:"sellingPrice"`
	MRP               decimal.Decimal `json:"mrp"`
	Quantity          int             `json:"quantity" validate:"gt=0"`
	Vendor            string          `json:"vendor"`
	Purchase          string          `json:"purchase"`
}

type BatchAdjustRequest struct {
	Mode     string `json:"mode" validate:"required,oneof=add subtract set"`
	Quantity int    `json:"quantity" validate:"gte=0"`
	Reason   string `json:"reason" validate:"required,max=500"`
}

type PartyCreateRequest struct {
	Type          string          `json:"type" validate:"required,oneof=customer vendor"`
	Name          string          `json:"name" validate:"required,max=200"`
	ContactPerson string          `json:"contactPerson" validate:"max=200"`
	Phone         string          `json:"phone" validate:"omitempty,max=20"`
	Email         string          `json:"email" validate:"omitempty,email"`
	Address       string          `json:"address" validate:"max=500"`
	GSTIN         string          `json:"gstin" validate:"omitempty,len=15,alphanum"`
	StateCode     string          `json:"stateCode" validate:"omitempty,len=2,numeric"`
	CreditLimit   decimal.Decimal `json:"creditLimit"`
	PaymentTerms  int             `json:"paymentTerms" validate:"gte=0,lte=365"`
}

type PartyUpdateRequest struct {
	Name          *string          `json:"name" validate:"omitempty,min=1,max=200"`
	ContactPerson *string          `json:"contactPerson" validate:"omitempty,max=200"`
	Phone         *string          `json:"phone" validate:"omitempty,max=20"`
	Email         *string          `json:"email" validate:"omitempty,email"`
	Address       *string          `json:"address" validate:"omitempty,max=500"`
	GSTIN         *string          `json:"gstin" validate:"omitempty,len=15,alphanum"`
	StateCode     *string          `json:"stateCode" validate:"omitempty,len=2,numeric"`
	CreditLimit   *decimal.Decimal `json:"creditLimit"`
	PaymentTerms  *int             `json:"paymentTerms" validate:"omitempty,gte=0,lte=365"`
	Active        *bool            `json:"isActive"`
}

type SaleLineRequest struct {
	Medicine        string           `json:"medicine" validate:"required"`
	Batch           string           `json:"batch"`
	Quantity        int              `json:"quantity" validate:"gt=0"`
	UnitPrice       *decimal.Decimal `json:"unitPrice"`
	DiscountPercent decimal.Decimal  `json:"discountPercent"`
}

type SaleCreateRequest struct {
	Customer       string            `json:"customer" validate:"required"`
	InvoiceDate    *time.Time        `json:"invoiceDate"`
	DueDate        *time.Time        `json:"dueDate"`
	GSTType        string            `json:"gstType" validate:"omitempty,oneof=intra inter"`
	Items          []SaleLineRequest `json:"items" validate:"required,min=1,max=200,dive"`
	FreightCharges decimal.Decimal   `json:"freightCharges"`
	OtherCharges   decimal.Decimal   `json:"otherCharges"`
	PaidAmount     decimal.Decimal   `json:"paidAmount"`
	PaymentMode    string            `json:"paymentMode" validate:"omitempty,oneof=cash bank upi cheque card credit"`
	Notes          string            `json:"notes" validate:"max=1000"`
}

type PurchaseLineRequest struct {
	Medicine          string          `json:"medicine" validate:"required"`
	BatchNumber       string          `json:"batchNumber" validate:"required,max=50"`
	ExpiryDate        time.Time       `json:"expiryDate" validate:"required"`
	ManufacturingDate *time.Time      `json:"manufacturingDate"`
	Quantity          int             `json:"quantity" validate:"gt=0"`
	PurchasePrice     decimal.Decimal `json:"purchasePrice"`
	SellingPrice      decimal.Decimal `json:"sellingPrice"`
	MRP               decimal.Decimal `json:"mrp"`
	DiscountPercent   decimal.Decimal `json:"discountPercent"`
	GSTRate           *int            `json:"gstRate" validate:"omitempty,oneof=0 5 12 18 28"`
}

type PurchaseCreateRequest struct {
	Vendor                string                `json:"vendor" validate:"required"`
	SupplierInvoiceNumber string                `json:"supplierInvoiceNumber" validate:"max=50"`
	InvoiceDate           *time.Time            `json:"invoiceDate"`
	DueDate               *time.Time            `json:"dueDate"`
	GSTType               string                `json:"gstType" validate:"omitempty,oneof=intra inter"`
	Items                 []PurchaseLineRequest `json:"items" validate:"required,min=1,max=200,dive"`
	FreightCharges        decimal.Decimal       `json:"freightCharges"`
	OtherCharges          decimal.Decimal       `json:"otherCharges"`
	PaidAmount            decimal.Decimal       `json:"paidAmount"`
	PaymentMode           string                `json:"paymentMode" validate:"omitempty,oneof=cash bank upi cheque card credit"`
	Notes                 string                `json:"notes" validate:"max=1000"`
}

type PaymentAllocationRequest struct {
	Invoice         string          `json:"invoice" validate:"required"`
	AllocatedAmount decimal.Decimal `json:"allocatedAmount"`
}

type PaymentCreateRequest struct {
	Party          string                     `json:"party" validate:"required"`
	Amount         decimal.Decimal            `json:"amount"`
	Mode           string                     `json:"mode" validate:"required,oneof=cash bank upi cheque card"`
	Date           *time.Time                 `json:"date"`
	Reference      string                     `json:"reference" validate:"max=100"`
	LinkedInvoices []PaymentAllocationRequest `json:"linkedInvoices" validate:"max=100,dive"`
	Notes          string                     `json:"notes" validate:"max=1000"`
}

type SaleFilter struct {
	Customer      string
	FinancialYear string
	Status        string
	Limit         int
}

type PurchaseFilter struct {
	Vendor        string
	FinancialYear string
	Status        string
	Limit         int
}

type PaymentFilter struct {
	Party       string
	PaymentType string
	Limit       int
}

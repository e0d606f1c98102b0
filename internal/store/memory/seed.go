package memory

import (
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"pharmaledger/backend/internal/domain"
	"pharmaledger/backend/internal/fiscal"
)

// seedUsers builds the dev/demo accounts. Passwords come from
// SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD, falling back to dev defaults.
func seedUsers(log logrus.FieldLogger) map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Warn("memory store is using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"staff", staffPwd, domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.WithError(err).WithField("username", u.username).Fatal("failed to hash seed password")
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store with demo users, two medicines with stock, one
// customer and one vendor. Aggregate stock matches the seeded batches.
func NewSeeded() *Store {
	s := New()
	s.usersByName = seedUsers(logrus.StandardLogger())

	now := time.Now().UTC()
	money := decimal.RequireFromString

	medicines := []domain.Medicine{
		{ID: "med-paracetamol", Code: fiscal.FormatCode(domain.PrefixMedicine, 1), Name: "Paracetamol 500mg", GenericName: "Paracetamol", Manufacturer: "Cipla", Category: "tablet", HSNCode: "30049099", PackSize: "10x10", GSTRate: 12, MRP: money("35"), MinStock: 50, MaxStock: 2000, ReorderLevel: 100},
		{ID: "med-amoxicillin", Code: fiscal.FormatCode(domain.PrefixMedicine, 2), Name: "Amoxicillin 250mg", GenericName: "Amoxicillin", Manufacturer: "Sun Pharma", Category: "capsule", HSNCode: "30041010", PackSize: "10x10", GSTRate: 12, MRP: money("92"), MinStock: 20, MaxStock: 1000, ReorderLevel: 50},
	}
	batches := []domain.Batch{
		{ID: "batch-pcm-a", Medicine: "med-paracetamol", BatchNumber: "PCM2401", ExpiryDate: now.AddDate(0, 2, 0), PurchasePrice: money("22"), SellingPrice: money("30"), MRP: money("35"), Quantity: 200, InitialQuantity: 200},
		{ID: "batch-pcm-b", Medicine: "med-paracetamol", BatchNumber: "PCM2402", ExpiryDate: now.AddDate(1, 0, 0), PurchasePrice: money("23"), SellingPrice: money("31"), MRP: money("35"), Quantity: 300, InitialQuantity: 300},
		{ID: "batch-amx-a", Medicine: "med-amoxicillin", BatchNumber: "AMX2401", ExpiryDate: now.AddDate(0, 8, 0), PurchasePrice: money("60"), SellingPrice: money("80"), MRP: money("92"), Quantity: 120, InitialQuantity: 120},
	}
	for i := range medicines {
		medicines[i].Active = true
		medicines[i].CreatedBy = "system"
		medicines[i].CreatedAt = now
		medicines[i].UpdatedAt = now
		s.medicines[medicines[i].ID] = medicines[i]
	}
	for _, batch := range batches {
		batch.CreatedAt = now
		batch.UpdatedAt = now
		s.batches[batch.ID] = batch
		s.batchKeys[batchKey(batch.Medicine, batch.BatchNumber)] = batch.ID
		medicine := s.medicines[batch.Medicine]
		medicine.CurrentStock += batch.Quantity
		s.medicines[batch.Medicine] = medicine
	}
	s.counters[domain.SequenceMedicine+"|"+domain.MasterScope] = int64(len(medicines))

	parties := []domain.Party{
		{ID: "party-apollo", Code: fiscal.FormatCode(domain.PrefixCustomer, 1), Type: domain.PartyTypeCustomer, Name: "Apollo Chemists", Phone: "9820000001", GSTIN: "27AAACA1234A1Z5", StateCode: "27", CreditLimit: money("200000"), PaymentTerms: 30},
		{ID: "party-medsupply", Code: fiscal.FormatCode(domain.PrefixVendor, 1), Type: domain.PartyTypeVendor, Name: "MedSupply Distributors", Phone: "9820000002", GSTIN: "29AABCM5678B1Z2", StateCode: "29", PaymentTerms: 45},
	}
	for _, party := range parties {
		party.Active = true
		party.CreatedBy = "system"
		party.CreatedAt = now
		party.UpdatedAt = now
		s.parties[party.ID] = party
	}
	s.counters[domain.SequenceCustomer+"|"+domain.MasterScope] = 1
	s.counters[domain.SequenceVendor+"|"+domain.MasterScope] = 1

	return s
}

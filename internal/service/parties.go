package service

import (
	"context"
	"fmt"
	"strings"

	"pharmaledger/backend/internal/domain"
	"pharmaledger/backend/internal/store"
	"pharmaledger/backend/internal/xid"
)

// loadParty fetches a party and checks it plays the expected role.
func loadParty(ctx context.Context, tx store.Tx, id string, partyType string) (*domain.Party, error) {
	party, err := tx.GetParty(ctx, id)
	if err != nil {
		return nil, err
	}
	if party.Type != partyType {
		field := "customer"
		if partyType == domain.PartyTypeVendor {
			field = "vendor"
		}
		return nil, store.Invalid(field, fmt.Sprintf("party %s is a %s", party.Code, party.Type))
	}
	return party, nil
}

func (s *Service) CreateParty(ctx context.Context, req domain.PartyCreateRequest) (domain.Party, error) {
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	req.Name = strings.TrimSpace(req.Name)
	req.GSTIN = strings.ToUpper(strings.TrimSpace(req.GSTIN))
	req.StateCode = strings.TrimSpace(req.StateCode)

	verr := s.check(req)
	checkMoney(verr, "creditLimit", req.CreditLimit)
	if len(req.GSTIN) >= 2 {
		// the first two GSTIN digits are the registering state
		if req.StateCode == "" {
			req.StateCode = req.GSTIN[:2]
		}
		if req.StateCode != req.GSTIN[:2] {
			verr.Add("stateCode", "must match the GSTIN state prefix")
		}
	}
	if err := verr.OrNil(); err != nil {
		return domain.Party{}, err
	}

	sequence, prefix := domain.SequenceCustomer, domain.PrefixCustomer
	if req.Type == domain.PartyTypeVendor {
		sequence, prefix = domain.SequenceVendor, domain.PrefixVendor
	}

	now := s.now()
	party := domain.Party{
		ID:            xid.New("party"),
		Type:          req.Type,
		Name:          req.Name,
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		Phone:         strings.TrimSpace(req.Phone),
		Email:         strings.TrimSpace(req.Email),
		Address:       strings.TrimSpace(req.Address),
		GSTIN:         req.GSTIN,
		StateCode:     req.StateCode,
		CreditLimit:   req.CreditLimit,
		PaymentTerms:  req.PaymentTerms,
		Active:        true,
		CreatedBy:     actorName(ctx),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		code, err := nextCode(ctx, tx, sequence, prefix)
		if err != nil {
			return err
		}
		party.Code = code
		return tx.CreateParty(ctx, party)
	})
	if err != nil {
		return domain.Party{}, err
	}

	s.logAudit(ctx, "party_create", "party", party.ID, fmt.Sprintf("code=%s,type=%s,name=%s", party.Code, party.Type, party.Name))
	return party, nil
}

func (s *Service) GetParty(ctx context.Context, id string) (domain.Party, error) {
	party, err := s.repo.GetParty(ctx, id)
	if err != nil {
		return domain.Party{}, err
	}
	return *party, nil
}

func (s *Service) ListParties(ctx context.Context, partyType string) ([]domain.Party, error) {
	switch partyType {
	case "", domain.PartyTypeCustomer, domain.PartyTypeVendor:
	default:
		return nil, store.Invalid("type", "must be customer or vendor")
	}
	return s.repo.ListParties(ctx, partyType)
}

// UpdateParty edits contact and credit terms. Running totals only move through postings.
func (s *Service) UpdateParty(ctx context.Context, id string, req domain.PartyUpdateRequest) (domain.Party, error) {
	verr := s.check(req)
	if req.CreditLimit != nil {
		checkMoney(verr, "creditLimit", *req.CreditLimit)
	}
	if err := verr.OrNil(); err != nil {
		return domain.Party{}, err
	}

	var updated domain.Party
	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		existing, err := tx.GetParty(ctx, id)
		if err != nil {
			return err
		}
		updated = *existing
		if req.Name != nil {
			updated.Name = strings.TrimSpace(*req.Name)
		}
		if req.ContactPerson != nil {
			updated.ContactPerson = strings.TrimSpace(*req.ContactPerson)
		}
		if req.Phone != nil {
			updated.Phone = strings.TrimSpace(*req.Phone)
		}
		if req.Email != nil {
			updated.Email = strings.TrimSpace(*req.Email)
		}
		if req.Address != nil {
			updated.Address = strings.TrimSpace(*req.Address)
		}
		if req.GSTIN != nil {
			updated.GSTIN = strings.ToUpper(strings.TrimSpace(*req.GSTIN))
		}
		if req.StateCode != nil {
			updated.StateCode = strings.TrimSpace(*req.StateCode)
		}
		if req.CreditLimit != nil {
			updated.CreditLimit = *req.CreditLimit
		}
		if req.PaymentTerms != nil {
			updated.PaymentTerms = *req.PaymentTerms
		}
		if req.Active != nil {
			updated.Active = *req.Active
		}
		if updated.Name == "" {
			return store.Invalid("name", "is required")
		}
		if len(updated.GSTIN) >= 2 && updated.StateCode != updated.GSTIN[:2] {
			return store.Invalid("stateCode", "must match the GSTIN state prefix")
		}
		updated.UpdatedAt = s.now()
		return tx.UpdateParty(ctx, updated)
	})
	if err != nil {
		return domain.Party{}, err
	}

	s.logAudit(ctx, "party_update", "party", updated.ID, fmt.Sprintf("name=%s,active=%t", updated.Name, updated.Active))
	return updated, nil
}

// DeleteParty removes a party whose account is settled. The check and delete
// run under the party's ledger lock so no posting can slip in between.
func (s *Service) DeleteParty(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	party, err := s.repo.GetParty(ctx, id)
	if err != nil {
		return err
	}

	err = s.post(ctx, "party_delete", []string{ledgerLockKey(party.Type, id)}, func(ctx context.Context, tx store.Tx) error {
		current, err := tx.GetParty(ctx, id)
		if err != nil {
			return err
		}
		if !current.OutstandingBalance.IsZero() {
			return fmt.Errorf("%w: party %s has outstanding balance %s", store.ErrConflict, current.Code, current.OutstandingBalance.StringFixed(2))
		}
		return tx.DeleteParty(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, "party_delete", "party", id, fmt.Sprintf("code=%s", party.Code))
	return nil
}

package services

import (
	"context"
	"fmt"
	"log"

	"github.com/sitesmithapp/sitesmith/internal/dns"
	"github.com/sitesmithapp/sitesmith/internal/lifecycle"
	"github.com/sitesmithapp/sitesmith/internal/models"
	"github.com/sitesmithapp/sitesmith/internal/store"
)

// DomainService attaches custom domains to websites and runs their
// verification workflow.
type DomainService struct {
	Store        store.Store
	Checker      dns.Checker
	CNAMETarget  string
	VerifyPrefix string
	deps
}

func NewDomainService(st store.Store, checker dns.Checker, cnameTarget, verifyPrefix string, opts ...Option) *DomainService {
	return &DomainService{
		Store:        st,
		Checker:      checker,
		CNAMETarget:  cnameTarget,
		VerifyPrefix: verifyPrefix,
		deps:         newDeps(opts),
	}
}

// AddDomain validates name and attaches it to an owned website, pending
// verification.
func (s *DomainService) AddDomain(ctx context.Context, websiteID, userID, name string) (*models.Domain, error) {
	normalized, err := lifecycle.NormalizeDomainName(name)
	if err != nil {
		return nil, err
	}

	website, err := s.Store.GetWebsite(ctx, websiteID)
	if err != nil {
		return nil, err
	}
	if website.UserID != userID {
		return nil, fmt.Errorf("website %s: %w", websiteID, store.ErrNotFound)
	}

	now := s.clock.Now()
	token := s.ids.New()
	domain := &models.Domain{
		ID:                 s.ids.New(),
		WebsiteID:          websiteID,
		UserID:             userID,
		Name:               normalized,
		Status:             models.DomainPending,
		VerificationStatus: models.VerificationPending,
		VerificationToken:  token,
		DNSRecords:         lifecycle.DNSRecords(normalized, s.CNAMETarget, s.VerifyPrefix, token),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.Store.CreateDomain(ctx, domain); err != nil {
		return nil, fmt.Errorf("failed to add domain %s: %w", normalized, err)
	}

	log.Printf("[Domain] Added %s to website %s", normalized, websiteID)
	return domain, nil
}

func (s *DomainService) ListDomains(ctx context.Context, websiteID string) ([]*models.Domain, error) {
	domains, err := s.Store.ListDomains(ctx, websiteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	return domains, nil
}

func (s *DomainService) GetDomain(ctx context.Context, domainID string) (*models.Domain, error) {
	return s.Store.GetDomain(ctx, domainID)
}

// GetWebsiteDomain returns the domain only if it is attached to websiteID
// and the website belongs to userID.
func (s *DomainService) GetWebsiteDomain(ctx context.Context, websiteID, domainID, userID string) (*models.Domain, error) {
	website, err := s.Store.GetWebsite(ctx, websiteID)
	if err != nil {
		return nil, err
	}
	d, err := s.Store.GetDomain(ctx, domainID)
	if err != nil {
		return nil, err
	}
	if website.UserID != userID || d.WebsiteID != websiteID {
		return nil, fmt.Errorf("domain %s: %w", domainID, store.ErrNotFound)
	}
	return d, nil
}

// VerifyDomain resets the domain to pending, checks DNS and records the
// outcome. The DNS lookup runs outside any transaction.
func (s *DomainService) VerifyDomain(ctx context.Context, domainID string) (*models.Domain, error) {
	var exp dns.Expectation
	err := s.Store.InTx(ctx, func(r store.Repo) error {
		d, err := r.GetDomain(ctx, domainID)
		if err != nil {
			return err
		}
		lifecycle.BeginVerification(d, s.clock.Now())
		exp = s.expectation(d)
		return r.UpdateDomain(ctx, d)
	})
	if err != nil {
		return nil, err
	}

	outcome := s.Checker.Check(ctx, exp)

	var out *models.Domain
	err = s.Store.InTx(ctx, func(r store.Repo) error {
		d, err := r.GetDomain(ctx, domainID)
		if err != nil {
			return err
		}
		lifecycle.ApplyVerification(d, outcome, s.clock.Now())
		out = d
		return r.UpdateDomain(ctx, d)
	})
	if err != nil {
		return nil, err
	}

	switch {
	case outcome.Verified:
		log.Printf("[Domain] %s verified", out.Name)
	case outcome.LookupErr != nil:
		log.Printf("[Domain] %s lookup failed: %v", out.Name, outcome.LookupErr)
	default:
		log.Printf("[Domain] %s not verified: %s", out.Name, *out.VerificationErrors)
	}
	return out, nil
}

func (s *DomainService) expectation(d *models.Domain) dns.Expectation {
	exp := dns.Expectation{
		Name:        d.Name,
		Token:       d.VerificationToken,
		CNAMETarget: s.CNAMETarget,
	}
	for _, rec := range d.DNSRecords {
		if rec.Type == "TXT" {
			exp.TXTHost = rec.Host
		}
	}
	if exp.TXTHost == "" {
		exp.TXTHost = s.VerifyPrefix + "." + d.Name
	}
	return exp
}

// SetPrimaryDomain makes domainID the website's primary domain, demoting
// the previous one in the same transaction.
func (s *DomainService) SetPrimaryDomain(ctx context.Context, domainID string) (*models.Domain, error) {
	var out *models.Domain
	err := s.Store.InTx(ctx, func(r store.Repo) error {
		d, err := r.GetDomain(ctx, domainID)
		if err != nil {
			return err
		}
		if err := lifecycle.CanBePrimary(d); err != nil {
			return err
		}
		out = d
		if d.IsPrimary {
			return nil
		}

		siblings, err := r.ListDomains(ctx, d.WebsiteID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		for _, other := range siblings {
			if other.ID == d.ID || !other.IsPrimary {
				continue
			}
			other.IsPrimary = false
			other.UpdatedAt = now
			if err := r.UpdateDomain(ctx, other); err != nil {
				return err
			}
		}

		d.IsPrimary = true
		d.UpdatedAt = now
		return r.UpdateDomain(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Domain] %s is now primary for website %s", out.Name, out.WebsiteID)
	return out, nil
}

// DeleteDomain detaches a domain. The primary domain must be demoted first.
func (s *DomainService) DeleteDomain(ctx context.Context, domainID string) error {
	return s.Store.InTx(ctx, func(r store.Repo) error {
		d, err := r.GetDomain(ctx, domainID)
		if err != nil {
			return err
		}
		if err := lifecycle.CanDelete(d); err != nil {
			return err
		}
		return r.DeleteDomain(ctx, d.ID)
	})
}

package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sitesmithapp/sitesmith/internal/lifecycle"
	"github.com/sitesmithapp/sitesmith/internal/models"
	"github.com/sitesmithapp/sitesmith/internal/services"
)

func TestAddDomain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.website(t)

	d, err := f.domains.AddDomain(ctx, w.ID, owner, "  Shop.Example.COM ")
	if err != nil {
		t.Fatalf("AddDomain: %v", err)
	}
	if d.Name != "shop.example.com" {
		t.Errorf("Name = %q", d.Name)
	}
	if d.Status != models.DomainPending || d.VerificationStatus != models.VerificationPending || d.IsPrimary {
		t.Errorf("new domain = %s/%s primary=%v", d.Status, d.VerificationStatus, d.IsPrimary)
	}
	if len(d.DNSRecords) != 2 {
		t.Fatalf("DNSRecords = %+v", d.DNSRecords)
	}
	txt := d.DNSRecords[1]
	if txt.Type != "TXT" || txt.Host != "_sitesmith-verify.shop.example.com" || txt.Value != d.VerificationToken {
		t.Errorf("TXT record = %+v token=%s", txt, d.VerificationToken)
	}

	tests := []struct {
		name  string
		input string
		check func(error) bool
	}{
		{"duplicate", "shop.example.com", services.IsConflict},
		{"duplicate other case", "SHOP.example.com", services.IsConflict},
		{"no tld", "localhost", services.IsRejected},
		{"underscore", "bad_name.com", services.IsRejected},
		{"empty", "", services.IsRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.domains.AddDomain(ctx, w.ID, owner, tt.input)
			if !tt.check(err) {
				t.Errorf("AddDomain(%q) err = %v", tt.input, err)
			}
		})
	}

	if _, err := f.domains.AddDomain(ctx, w.ID, stranger, "other.example.com"); !services.IsNotFound(err) {
		t.Errorf("stranger: err = %v", err)
	}
}

// Pending domain cannot be primary; after verification it can, and the
// previous primary is demoted.
func TestDomainVerificationAndPrimary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.website(t)

	old, _ := f.domains.AddDomain(ctx, w.ID, owner, "old.example.com")
	if _, err := f.domains.VerifyDomain(ctx, old.ID); err != nil {
		t.Fatalf("VerifyDomain: %v", err)
	}
	if _, err := f.domains.SetPrimaryDomain(ctx, old.ID); err != nil {
		t.Fatalf("SetPrimaryDomain(old): %v", err)
	}

	d, _ := f.domains.AddDomain(ctx, w.ID, owner, "example.com")
	if _, err := f.domains.SetPrimaryDomain(ctx, d.ID); !errors.Is(err, lifecycle.ErrNotVerified) {
		t.Fatalf("SetPrimaryDomain(pending): err = %v, want ErrNotVerified", err)
	}

	verified, err := f.domains.VerifyDomain(ctx, d.ID)
	if err != nil {
		t.Fatalf("VerifyDomain: %v", err)
	}
	if verified.VerificationStatus != models.VerificationVerified || verified.Status != models.DomainActive {
		t.Fatalf("verified = %s/%s", verified.Status, verified.VerificationStatus)
	}
	if verified.LastVerifiedAt == nil || len(verified.DNSRecords) == 0 {
		t.Errorf("LastVerifiedAt=%v DNSRecords=%v", verified.LastVerifiedAt, verified.DNSRecords)
	}

	primary, err := f.domains.SetPrimaryDomain(ctx, d.ID)
	if err != nil {
		t.Fatalf("SetPrimaryDomain: %v", err)
	}
	if !primary.IsPrimary {
		t.Error("IsPrimary = false")
	}

	domains, _ := f.domains.ListDomains(ctx, w.ID)
	var primaries []string
	for _, dom := range domains {
		if dom.IsPrimary {
			primaries = append(primaries, dom.ID)
		}
	}
	if len(primaries) != 1 || primaries[0] != d.ID {
		t.Errorf("primaries = %v, want [%s]", primaries, d.ID)
	}
}

func TestVerifyDomain_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		outcome    lifecycle.VerificationOutcome
		wantStatus models.DomainStatus
		wantVerify models.VerificationStatus
		wantErrors bool
	}{
		{"verified", lifecycle.VerificationOutcome{Verified: true}, models.DomainActive, models.VerificationVerified, false},
		{"wrong record", lifecycle.VerificationOutcome{Detail: "CNAME points elsewhere"}, models.DomainPending, models.VerificationFailed, true},
		{"lookup error", lifecycle.VerificationOutcome{LookupErr: errors.New("no such host")}, models.DomainError, models.VerificationFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			w := f.website(t)
			d, _ := f.domains.AddDomain(ctx, w.ID, owner, "example.com")
			f.checker.SetOutcome(tt.outcome)

			got, err := f.domains.VerifyDomain(ctx, d.ID)
			if err != nil {
				t.Fatalf("VerifyDomain: %v", err)
			}
			if got.Status != tt.wantStatus || got.VerificationStatus != tt.wantVerify {
				t.Errorf("got %s/%s, want %s/%s", got.Status, got.VerificationStatus, tt.wantStatus, tt.wantVerify)
			}
			if (got.VerificationErrors != nil) != tt.wantErrors {
				t.Errorf("VerificationErrors = %v", got.VerificationErrors)
			}
			if len(got.DNSRecords) != 2 {
				t.Errorf("DNSRecords missing after verify: %v", got.DNSRecords)
			}

			stored, _ := f.domains.GetDomain(ctx, d.ID)
			if stored.Status != got.Status || stored.VerificationStatus != got.VerificationStatus {
				t.Errorf("stored %s/%s differs from returned", stored.Status, stored.VerificationStatus)
			}

			req := f.checker.Requests[len(f.checker.Requests)-1]
			if req.Name != "example.com" || req.TXTHost != "_sitesmith-verify.example.com" || req.Token != d.VerificationToken || req.CNAMETarget != "cname.sitesmith.app" {
				t.Errorf("checker asked %+v", req)
			}
		})
	}
}

func TestVerifyDomain_FailureKeepsPrimary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.website(t)
	d, _ := f.domains.AddDomain(ctx, w.ID, owner, "example.com")
	f.domains.VerifyDomain(ctx, d.ID)
	f.domains.SetPrimaryDomain(ctx, d.ID)

	f.checker.SetOutcome(lifecycle.VerificationOutcome{LookupErr: errors.New("timeout")})
	got, err := f.domains.VerifyDomain(ctx, d.ID)
	if err != nil {
		t.Fatalf("VerifyDomain: %v", err)
	}
	if !got.IsPrimary {
		t.Error("failed re-verification demoted the primary domain")
	}
	if got.Status != models.DomainError {
		t.Errorf("Status = %s", got.Status)
	}
}

func TestDeleteDomain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.website(t)
	primary, _ := f.domains.AddDomain(ctx, w.ID, owner, "example.com")
	f.domains.VerifyDomain(ctx, primary.ID)
	f.domains.SetPrimaryDomain(ctx, primary.ID)
	spare, _ := f.domains.AddDomain(ctx, w.ID, owner, "www.example.com")

	if err := f.domains.DeleteDomain(ctx, primary.ID); !errors.Is(err, lifecycle.ErrPrimaryDomain) {
		t.Fatalf("delete primary: err = %v", err)
	}
	if _, err := f.domains.GetDomain(ctx, primary.ID); err != nil {
		t.Errorf("primary removed anyway: %v", err)
	}

	if err := f.domains.DeleteDomain(ctx, spare.ID); err != nil {
		t.Fatalf("DeleteDomain: %v", err)
	}
	if _, err := f.domains.GetDomain(ctx, spare.ID); !services.IsNotFound(err) {
		t.Errorf("spare still present: %v", err)
	}
}

func TestGetWebsiteDomain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.website(t)
	d, _ := f.domains.AddDomain(ctx, w.ID, owner, "example.com")

	if _, err := f.domains.GetWebsiteDomain(ctx, w.ID, d.ID, owner); err != nil {
		t.Errorf("owner: %v", err)
	}
	if _, err := f.domains.GetWebsiteDomain(ctx, w.ID, d.ID, stranger); !services.IsNotFound(err) {
		t.Errorf("stranger: err = %v", err)
	}
}

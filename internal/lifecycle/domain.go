package lifecycle

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sitesmithapp/sitesmith/internal/models"
)

var (
	ErrInvalidDomainName = fmt.Errorf("%w: invalid domain name", ErrRejected)
	ErrNotVerified       = fmt.Errorf("%w: domain must be active and verified to become primary", ErrRejected)
	ErrPrimaryDomain     = fmt.Errorf("%w: primary domain cannot be deleted, set another primary first", ErrRejected)
)

var domainNamePattern = regexp.MustCompile(`(?i)^([a-z0-9]+(-[a-z0-9]+)*\.)+[a-z]{2,}$`)

// NormalizeDomainName trims and lowercases name and checks it is a valid
// DNS hostname.
func NormalizeDomainName(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if !domainNamePattern.MatchString(n) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomainName, name)
	}
	return n, nil
}

// VerificationOutcome is the result of one DNS check.
type VerificationOutcome struct {
	Verified bool
	// LookupErr is set when DNS could not be queried at all.
	LookupErr error
	// Detail explains a negative result.
	Detail string
}

// BeginVerification resets the verification state before a new check.
func BeginVerification(d *models.Domain, now time.Time) {
	d.VerificationStatus = models.VerificationPending
	d.VerificationErrors = nil
	d.UpdatedAt = now
}

// ApplyVerification records the outcome of a DNS check on d.
//
//	verified      -> verification verified, status active
//	wrong records -> verification failed,   status pending
//	lookup error  -> verification failed,   status error
//
// IsPrimary is never changed here.
func ApplyVerification(d *models.Domain, out VerificationOutcome, now time.Time) {
	d.UpdatedAt = now
	switch {
	case out.LookupErr != nil:
		msg := out.LookupErr.Error()
		d.VerificationStatus = models.VerificationFailed
		d.Status = models.DomainError
		d.VerificationErrors = &msg
	case out.Verified:
		verifiedAt := now
		d.VerificationStatus = models.VerificationVerified
		d.Status = models.DomainActive
		d.VerificationErrors = nil
		d.LastVerifiedAt = &verifiedAt
	default:
		msg := out.Detail
		if msg == "" {
			msg = "required DNS records not found"
		}
		d.VerificationStatus = models.VerificationFailed
		d.Status = models.DomainPending
		d.VerificationErrors = &msg
	}
}

// CanBePrimary returns ErrNotVerified unless d is active and verified.
func CanBePrimary(d *models.Domain) error {
	if d.Status != models.DomainActive || d.VerificationStatus != models.VerificationVerified {
		return fmt.Errorf("%w (%s is %s/%s)", ErrNotVerified, d.Name, d.Status, d.VerificationStatus)
	}
	return nil
}

func CanDelete(d *models.Domain) error {
	if d.IsPrimary {
		return ErrPrimaryDomain
	}
	return nil
}

// DNSRecords lists the records shown to the owner for name: a CNAME to the
// serving target and a TXT ownership record carrying token.
func DNSRecords(name, cnameTarget, verifyPrefix, token string) []models.DNSRecord {
	return []models.DNSRecord{
		{Type: "CNAME", Host: name, Value: cnameTarget},
		{Type: "TXT", Host: verifyPrefix + "." + name, Value: token},
	}
}

package dns

import (
	"context"
	"errors"
	"net"
	"testing"
)

type fakeResolver struct {
	txt      map[string][]string
	cname    map[string]string
	txtErr   error
	cnameErr error
}

func (f *fakeResolver) LookupTXT(_ context.Context, name string) ([]string, error) {
	if f.txtErr != nil {
		return nil, f.txtErr
	}
	recs, ok := f.txt[name]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
	}
	return recs, nil
}

func (f *fakeResolver) LookupCNAME(_ context.Context, host string) (string, error) {
	if f.cnameErr != nil {
		return "", f.cnameErr
	}
	return f.cname[host], nil
}

func TestResolverChecker(t *testing.T) {
	exp := Expectation{
		Name:        "shop.example.com",
		TXTHost:     "_sitesmith-verify.shop.example.com",
		Token:       "tok-123",
		CNAMETarget: "cname.sitesmith.app",
	}
	good := func() *fakeResolver {
		return &fakeResolver{
			txt:   map[string][]string{exp.TXTHost: {"unrelated", " tok-123 "}},
			cname: map[string]string{exp.Name: "CNAME.sitesmith.app."},
		}
	}

	tests := []struct {
		name         string
		resolver     func() *fakeResolver
		wantVerified bool
		wantLookup   bool
	}{
		{"all records present", good, true, false},
		{"txt missing", func() *fakeResolver { r := good(); delete(r.txt, exp.TXTHost); return r }, false, true},
		{"wrong token", func() *fakeResolver { r := good(); r.txt[exp.TXTHost] = []string{"other"}; return r }, false, false},
		{"cname elsewhere", func() *fakeResolver { r := good(); r.cname[exp.Name] = "shop.example.com."; return r }, false, false},
		{"resolver down", func() *fakeResolver { r := good(); r.txtErr = errors.New("i/o timeout"); return r }, false, true},
		{"cname lookup fails", func() *fakeResolver { r := good(); r.cnameErr = errors.New("servfail"); return r }, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewResolverChecker(tt.resolver(), 0).Check(context.Background(), exp)
			if out.Verified != tt.wantVerified {
				t.Errorf("Verified = %v, want %v", out.Verified, tt.wantVerified)
			}
			if (out.LookupErr != nil) != tt.wantLookup {
				t.Errorf("LookupErr = %v, want set=%v", out.LookupErr, tt.wantLookup)
			}
			if !out.Verified && out.LookupErr == nil && out.Detail == "" {
				t.Errorf("negative result without detail")
			}
		})
	}
}

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sitesmithapp/sitesmith/internal/models"
)

// Memory is an in-process Store used by tests and local runs. It mirrors
// the Postgres schema rules: cascading deletes, the SET NULL website
// pointer, unique domain names and one primary domain per website.
type Memory struct {
	mu   sync.Mutex
	data *memData
}

func NewMemory() *Memory {
	return &Memory{data: newMemData()}
}

func (m *Memory) InTx(ctx context.Context, fn func(Repo) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.data.clone()
	if err := fn(work); err != nil {
		return err
	}
	m.data = work
	return nil
}

func (m *Memory) EnsureUser(ctx context.Context, id, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.EnsureUser(ctx, id, email)
}

func (m *Memory) CreateWebsite(ctx context.Context, w *models.Website) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.CreateWebsite(ctx, w)
}

func (m *Memory) GetWebsite(ctx context.Context, id string) (*models.Website, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.GetWebsite(ctx, id)
}

func (m *Memory) ListWebsites(ctx context.Context, userID string) ([]*models.Website, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.ListWebsites(ctx, userID)
}

func (m *Memory) UpdateWebsite(ctx context.Context, id string, upd models.WebsiteUpdate, now time.Time) (*models.Website, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.UpdateWebsite(ctx, id, upd, now)
}

func (m *Memory) DeleteWebsite(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.DeleteWebsite(ctx, id)
}

func (m *Memory) NextDeploymentVersion(ctx context.Context, websiteID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.NextDeploymentVersion(ctx, websiteID)
}

func (m *Memory) CreateDeployment(ctx context.Context, d *models.Deployment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.CreateDeployment(ctx, d)
}

func (m *Memory) GetDeployment(ctx context.Context, id string) (*models.Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.GetDeployment(ctx, id)
}

func (m *Memory) ListDeployments(ctx context.Context, websiteID string, limit, offset int) ([]*models.Deployment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.ListDeployments(ctx, websiteID, limit, offset)
}

func (m *Memory) UpdateDeployment(ctx context.Context, d *models.Deployment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.UpdateDeployment(ctx, d)
}

func (m *Memory) DeleteDeployment(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.DeleteDeployment(ctx, id)
}

func (m *Memory) CreateDomain(ctx context.Context, d *models.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.CreateDomain(ctx, d)
}

func (m *Memory) GetDomain(ctx context.Context, id string) (*models.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.GetDomain(ctx, id)
}

func (m *Memory) ListDomains(ctx context.Context, websiteID string) ([]*models.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.ListDomains(ctx, websiteID)
}

func (m *Memory) UpdateDomain(ctx context.Context, d *models.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.UpdateDomain(ctx, d)
}

func (m *Memory) DeleteDomain(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.DeleteDomain(ctx, id)
}

// memData is the unlocked table set. Rows are stored and returned as
// copies so callers never alias stored state.
type memData struct {
	users       map[string]string
	websites    map[string]*models.Website
	deployments map[string]*models.Deployment
	domains     map[string]*models.Domain
	// seq orders rows by insertion for stable listing.
	seq   int
	order map[string]int
}

func newMemData() *memData {
	return &memData{
		users:       make(map[string]string),
		websites:    make(map[string]*models.Website),
		deployments: make(map[string]*models.Deployment),
		domains:     make(map[string]*models.Domain),
		order:       make(map[string]int),
	}
}

func (d *memData) clone() *memData {
	out := newMemData()
	out.seq = d.seq
	for k, v := range d.users {
		out.users[k] = v
	}
	for k, v := range d.websites {
		out.websites[k] = copyWebsite(v)
	}
	for k, v := range d.deployments {
		out.deployments[k] = copyDeployment(v)
	}
	for k, v := range d.domains {
		out.domains[k] = copyDomain(v)
	}
	for k, v := range d.order {
		out.order[k] = v
	}
	return out
}

func (d *memData) nextSeq(id string) {
	d.seq++
	d.order[id] = d.seq
}

func copyWebsite(w *models.Website) *models.Website {
	c := *w
	c.LastPublishedAt = copyTime(w.LastPublishedAt)
	c.LastDeployedAt = copyTime(w.LastDeployedAt)
	c.LastSuccessfulDeploymentID = copyString(w.LastSuccessfulDeploymentID)
	return &c
}

func copyDeployment(dep *models.Deployment) *models.Deployment {
	c := *dep
	c.CommitMessage = copyString(dep.CommitMessage)
	c.CompletedAt = copyTime(dep.CompletedAt)
	c.DeploymentURL = copyString(dep.DeploymentURL)
	c.BuildLogs = copyString(dep.BuildLogs)
	c.ErrorMessage = copyString(dep.ErrorMessage)
	c.RetryOf = copyString(dep.RetryOf)
	if dep.BuildTime != nil {
		bt := *dep.BuildTime
		c.BuildTime = &bt
	}
	return &c
}

func copyDomain(dom *models.Domain) *models.Domain {
	c := *dom
	c.VerificationErrors = copyString(dom.VerificationErrors)
	c.LastVerifiedAt = copyTime(dom.LastVerifiedAt)
	c.DNSRecords = append([]models.DNSRecord(nil), dom.DNSRecords...)
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func (d *memData) EnsureUser(_ context.Context, id, email string) error {
	if _, ok := d.users[id]; !ok {
		d.users[id] = email
	}
	return nil
}

func (d *memData) CreateWebsite(_ context.Context, w *models.Website) error {
	if _, ok := d.users[w.UserID]; !ok {
		return fmt.Errorf("failed to create website: user %s %w", w.UserID, ErrNotFound)
	}
	if _, ok := d.websites[w.ID]; ok {
		return fmt.Errorf("website %s %w", w.ID, ErrConflict)
	}
	d.websites[w.ID] = copyWebsite(w)
	d.nextSeq(w.ID)
	return nil
}

func (d *memData) GetWebsite(_ context.Context, id string) (*models.Website, error) {
	w, ok := d.websites[id]
	if !ok {
		return nil, fmt.Errorf("website %w", ErrNotFound)
	}
	return copyWebsite(w), nil
}

func (d *memData) ListWebsites(_ context.Context, userID string) ([]*models.Website, error) {
	websites := []*models.Website{}
	for _, w := range d.websites {
		if w.UserID == userID {
			websites = append(websites, copyWebsite(w))
		}
	}
	sort.Slice(websites, func(i, j int) bool {
		return d.order[websites[i].ID] > d.order[websites[j].ID]
	})
	return websites, nil
}

func (d *memData) UpdateWebsite(_ context.Context, id string, upd models.WebsiteUpdate, now time.Time) (*models.Website, error) {
	w, ok := d.websites[id]
	if !ok {
		return nil, fmt.Errorf("website %w", ErrNotFound)
	}
	if upd.Name != nil {
		w.Name = *upd.Name
	}
	if upd.LastPublishedAt != nil {
		w.LastPublishedAt = copyTime(upd.LastPublishedAt)
	}
	if upd.LastDeployedAt != nil {
		w.LastDeployedAt = copyTime(upd.LastDeployedAt)
	}
	if upd.ClearLastSuccessfulDeployment {
		w.LastSuccessfulDeploymentID = nil
	} else if upd.LastSuccessfulDeploymentID != nil {
		w.LastSuccessfulDeploymentID = copyString(upd.LastSuccessfulDeploymentID)
	}
	w.UpdatedAt = now
	return copyWebsite(w), nil
}

func (d *memData) DeleteWebsite(_ context.Context, id string) error {
	if _, ok := d.websites[id]; !ok {
		return fmt.Errorf("website %w", ErrNotFound)
	}
	delete(d.websites, id)
	for depID, dep := range d.deployments {
		if dep.WebsiteID == id {
			delete(d.deployments, depID)
		}
	}
	for domID, dom := range d.domains {
		if dom.WebsiteID == id {
			delete(d.domains, domID)
		}
	}
	return nil
}

func (d *memData) NextDeploymentVersion(_ context.Context, websiteID string) (int, error) {
	maxVersion := 0
	for _, dep := range d.deployments {
		if dep.WebsiteID == websiteID && dep.Version > maxVersion {
			maxVersion = dep.Version
		}
	}
	return maxVersion + 1, nil
}

func (d *memData) CreateDeployment(_ context.Context, dep *models.Deployment) error {
	if _, ok := d.websites[dep.WebsiteID]; !ok {
		return fmt.Errorf("failed to create deployment: website %s %w", dep.WebsiteID, ErrNotFound)
	}
	if _, ok := d.deployments[dep.ID]; ok {
		return fmt.Errorf("deployment %s %w", dep.ID, ErrConflict)
	}
	d.deployments[dep.ID] = copyDeployment(dep)
	d.nextSeq(dep.ID)
	return nil
}

func (d *memData) GetDeployment(_ context.Context, id string) (*models.Deployment, error) {
	dep, ok := d.deployments[id]
	if !ok {
		return nil, fmt.Errorf("deployment %w", ErrNotFound)
	}
	return copyDeployment(dep), nil
}

func (d *memData) ListDeployments(_ context.Context, websiteID string, limit, offset int) ([]*models.Deployment, int, error) {
	all := []*models.Deployment{}
	for _, dep := range d.deployments {
		if dep.WebsiteID == websiteID {
			all = append(all, dep)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return d.order[all[i].ID] > d.order[all[j].ID]
	})

	total := len(all)
	page := []*models.Deployment{}
	for i := offset; i < total && i < offset+limit; i++ {
		page = append(page, copyDeployment(all[i]))
	}
	return page, total, nil
}

func (d *memData) UpdateDeployment(_ context.Context, dep *models.Deployment) error {
	cur, ok := d.deployments[dep.ID]
	if !ok {
		return fmt.Errorf("deployment %w", ErrNotFound)
	}
	next := copyDeployment(dep)
	// Identity columns are not part of an update.
	next.WebsiteID = cur.WebsiteID
	next.UserID = cur.UserID
	next.Version = cur.Version
	next.CommitMessage = cur.CommitMessage
	next.RetryOf = cur.RetryOf
	next.CreatedAt = cur.CreatedAt
	d.deployments[dep.ID] = next
	return nil
}

func (d *memData) DeleteDeployment(_ context.Context, id string) error {
	if _, ok := d.deployments[id]; !ok {
		return fmt.Errorf("deployment %w", ErrNotFound)
	}
	delete(d.deployments, id)
	for _, dep := range d.deployments {
		if dep.RetryOf != nil && *dep.RetryOf == id {
			dep.RetryOf = nil
		}
	}
	for _, w := range d.websites {
		if w.LastSuccessfulDeploymentID != nil && *w.LastSuccessfulDeploymentID == id {
			w.LastSuccessfulDeploymentID = nil
		}
	}
	return nil
}

func (d *memData) CreateDomain(_ context.Context, dom *models.Domain) error {
	if _, ok := d.websites[dom.WebsiteID]; !ok {
		return fmt.Errorf("failed to create domain: website %s %w", dom.WebsiteID, ErrNotFound)
	}
	for _, existing := range d.domains {
		if existing.Name == dom.Name {
			return fmt.Errorf("domain %s %w", dom.Name, ErrConflict)
		}
	}
	d.domains[dom.ID] = copyDomain(dom)
	d.nextSeq(dom.ID)
	return nil
}

func (d *memData) GetDomain(_ context.Context, id string) (*models.Domain, error) {
	dom, ok := d.domains[id]
	if !ok {
		return nil, fmt.Errorf("domain %w", ErrNotFound)
	}
	return copyDomain(dom), nil
}

func (d *memData) ListDomains(_ context.Context, websiteID string) ([]*models.Domain, error) {
	domains := []*models.Domain{}
	for _, dom := range d.domains {
		if dom.WebsiteID == websiteID {
			domains = append(domains, copyDomain(dom))
		}
	}
	sort.Slice(domains, func(i, j int) bool {
		return d.order[domains[i].ID] < d.order[domains[j].ID]
	})
	return domains, nil
}

func (d *memData) UpdateDomain(_ context.Context, dom *models.Domain) error {
	cur, ok := d.domains[dom.ID]
	if !ok {
		return fmt.Errorf("domain %w", ErrNotFound)
	}
	if dom.IsPrimary {
		for id, other := range d.domains {
			if id != dom.ID && other.WebsiteID == cur.WebsiteID && other.IsPrimary {
				return fmt.Errorf("primary domain for website %s %w", cur.WebsiteID, ErrConflict)
			}
		}
	}
	next := copyDomain(dom)
	next.WebsiteID = cur.WebsiteID
	next.UserID = cur.UserID
	next.Name = cur.Name
	next.VerificationToken = cur.VerificationToken
	next.CreatedAt = cur.CreatedAt
	d.domains[dom.ID] = next
	return nil
}

func (d *memData) DeleteDomain(_ context.Context, id string) error {
	if _, ok := d.domains[id]; !ok {
		return fmt.Errorf("domain %w", ErrNotFound)
	}
	delete(d.domains, id)
	return nil
}

package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/appdraft/appdraft-backend/pkg/domain/entities"
	"github.com/appdraft/appdraft-backend/pkg/events"
	"github.com/appdraft/appdraft-backend/pkg/infrastructure/hosting"

	"github.com/google/uuid"
)

type fakeProjectRepo struct {
	mu            sync.Mutex
	projects      map[uuid.UUID]*entities.ProjectEntity
	restoreCalls  []entities.ProjectSnapshot
	statusUpdates []entities.ProjectStatus
	repairCalls   int
	getErr        error
	updateErr     error
}

func newFakeProjectRepo(projects ...*entities.ProjectEntity) *fakeProjectRepo {
	repo := &fakeProjectRepo{projects: make(map[uuid.UUID]*entities.ProjectEntity)}
	for _, p := range projects {
		repo.projects[p.ID] = p
	}
	return repo
}

func (r *fakeProjectRepo) GetProjectByID(id string) (*entities.ProjectEntity, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	project, ok := r.projects[parsed]
	if !ok {
		return nil, nil
	}
	copied := *project
	return &copied, nil
}

func (r *fakeProjectRepo) UpdateStatus(id string, status entities.ProjectStatus) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statusUpdates = append(r.statusUpdates, status)
	if project, ok := r.projects[uuid.MustParse(id)]; ok {
		project.Status = status
	}
	return nil
}

func (r *fakeProjectRepo) UpdateStatusAndPreview(id string, status entities.ProjectStatus, previewURL string) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statusUpdates = append(r.statusUpdates, status)
	if project, ok := r.projects[uuid.MustParse(id)]; ok {
		project.Status = status
		project.PreviewURL = previewURL
	}
	return nil
}

func (r *fakeProjectRepo) RestoreSnapshot(id string, snapshot entities.ProjectSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restoreCalls = append(r.restoreCalls, snapshot)
	if project, ok := r.projects[uuid.MustParse(id)]; ok {
		project.Status = snapshot.Status
		project.PreviewURL = snapshot.PreviewURL
		project.PublishedVersionID = snapshot.PublishedVersionID
	}
	return nil
}

func (r *fakeProjectRepo) RepairPublishedPointer(projectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repairCalls++
	return nil
}

func (r *fakeProjectRepo) get(id uuid.UUID) *entities.ProjectEntity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.projects[id]
}

type fakeVersionRepo struct {
	mu         sync.Mutex
	versions   map[uuid.UUID]*entities.VersionEntity
	created    []*entities.VersionEntity
	createErr  error
	projectRef *fakeProjectRepo
}

func newFakeVersionRepo(versions ...*entities.VersionEntity) *fakeVersionRepo {
	repo := &fakeVersionRepo{versions: make(map[uuid.UUID]*entities.VersionEntity)}
	for _, v := range versions {
		repo.versions[v.ID] = v
	}
	return repo
}

func (r *fakeVersionRepo) CreateVersion(version *entities.VersionEntity) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *version
	r.versions[version.ID] = &copied
	r.created = append(r.created, &copied)
	return nil
}

func (r *fakeVersionRepo) GetVersionByID(id string) (*entities.VersionEntity, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	version, ok := r.versions[parsed]
	if !ok {
		return nil, nil
	}
	copied := *version
	return &copied, nil
}

func (r *fakeVersionRepo) GetPublishedVersion(projectID string) (*entities.VersionEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, version := range r.versions {
		if version.ProjectID.String() == projectID && version.IsPublished && version.SoftDeletedAt == nil {
			copied := *version
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeVersionRepo) ListVersions(projectID string, state string, limit int, offset int) ([]*entities.VersionEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*entities.VersionEntity
	for _, version := range r.versions {
		if version.ProjectID.String() != projectID || version.SoftDeletedAt != nil {
			continue
		}
		if state == "published" && !version.IsPublished {
			continue
		}
		if state == "unpublished" && version.IsPublished {
			continue
		}
		copied := *version
		result = append(result, &copied)
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *fakeVersionRepo) PublishByTx(projectID string, versionID string, userID uuid.UUID, publishedAt time.Time) (*entities.VersionEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var previous *entities.VersionEntity
	for _, version := range r.versions {
		if version.ProjectID.String() == projectID && version.IsPublished && version.SoftDeletedAt == nil {
			copied := *version
			previous = &copied
			version.IsPublished = false
			target := uuid.MustParse(versionID)
			version.SupersededByVersionID = &target
		}
	}
	target := r.versions[uuid.MustParse(versionID)]
	target.IsPublished = true
	target.PublishedAt = &publishedAt
	target.PublishedBy = &userID
	if r.projectRef != nil {
		if project := r.projectRef.get(uuid.MustParse(projectID)); project != nil {
			id := target.ID
			project.PublishedVersionID = &id
		}
	}
	return previous, nil
}

func (r *fakeVersionRepo) UnpublishByTx(projectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, version := range r.versions {
		if version.ProjectID.String() == projectID {
			version.IsPublished = false
		}
	}
	if r.projectRef != nil {
		if project := r.projectRef.get(uuid.MustParse(projectID)); project != nil {
			project.PublishedVersionID = nil
		}
	}
	return nil
}

func (r *fakeVersionRepo) SoftDeleteVersion(id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if version, ok := r.versions[uuid.MustParse(id)]; ok {
		deletedAt := at
		version.SoftDeletedAt = &deletedAt
	}
	return nil
}

func (r *fakeVersionRepo) get(id uuid.UUID) *entities.VersionEntity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.versions[id]
}

type fakeDomainRepo struct {
	mu      sync.Mutex
	domains []*entities.PublishedDomainEntity
	listErr error
}

func (r *fakeDomainRepo) CreateDomainByTx(domain *entities.PublishedDomainEntity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if domain.IsPrimary {
		for _, existing := range r.domains {
			if existing.ProjectID == domain.ProjectID {
				existing.IsPrimary = false
			}
		}
	}
	copied := *domain
	r.domains = append(r.domains, &copied)
	return nil
}

func (r *fakeDomainRepo) GetDomain(projectID string, domainName string) (*entities.PublishedDomainEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, domain := range r.domains {
		if domain.ProjectID.String() == projectID && domain.DomainName == domainName {
			copied := *domain
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeDomainRepo) ListDomains(projectID string) ([]*entities.PublishedDomainEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var result []*entities.PublishedDomainEntity
	for _, domain := range r.domains {
		if domain.ProjectID.String() == projectID {
			copied := *domain
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeDomainRepo) UpdateSSLStatus(projectID string, domainName string, status entities.SSLStatus, lastError string, checkedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, domain := range r.domains {
		if domain.ProjectID.String() == projectID && domain.DomainName == domainName {
			domain.SSLStatus = status
			domain.LastError = lastError
			domain.LastCheckedAt = &checkedAt
		}
	}
	return nil
}

type fakeLocker struct {
	mu        sync.Mutex
	held      bool
	acquires  int
	releases  int
	onAcquire func()
}

func (l *fakeLocker) Acquire(ctx context.Context, projectID string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquires++
	if l.held {
		return "", false, nil
	}
	l.held = true
	if l.onAcquire != nil {
		l.onAcquire()
	}
	return "token", true, nil
}

func (l *fakeLocker) Release(ctx context.Context, projectID string, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releases++
	l.held = false
	return nil
}

type fakeIdempotencyCache struct {
	mu      sync.Mutex
	records map[string][]byte
}

func newFakeIdempotencyCache() *fakeIdempotencyCache {
	return &fakeIdempotencyCache{records: make(map[string][]byte)}
}

func (c *fakeIdempotencyCache) Lookup(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	body, ok := c.records[key]
	return body, ok, nil
}

func (c *fakeIdempotencyCache) Remember(ctx context.Context, key string, response []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.records[key]; !ok {
		c.records[key] = response
	}
	return nil
}

type fakeHostingClient struct {
	pending      bool
	repointErr   error
	verifyResult bool
	certStatus   entities.SSLStatus
	repoints     []string
}

func (h *fakeHostingClient) RepointAlias(ctx context.Context, domain string, endpointURL string) (hosting.RepointResult, error) {
	h.repoints = append(h.repoints, domain)
	if h.repointErr != nil {
		return hosting.RepointResult{}, h.repointErr
	}
	return hosting.RepointResult{Domain: domain, Pending: h.pending}, nil
}

func (h *fakeHostingClient) VerifyDomain(ctx context.Context, domain string) (bool, error) {
	return h.verifyResult, nil
}

func (h *fakeHostingClient) CertStatus(ctx context.Context, domain string) (entities.SSLStatus, string, error) {
	if h.certStatus == "" {
		return entities.SSLStatusPending, "", nil
	}
	return h.certStatus, "", nil
}

// fakeArtifactStore serves both the verifier and reader interfaces from an
// in-memory object map.
type fakeArtifactStore struct {
	objects   map[string][]byte
	verifyErr error
}

func newFakeArtifactStore() *fakeArtifactStore {
	return &fakeArtifactStore{objects: make(map[string][]byte)}
}

func (s *fakeArtifactStore) Verify(key string, checksum string) error {
	if s.verifyErr != nil {
		return s.verifyErr
	}
	if _, ok := s.objects[key]; !ok {
		return entities.NewDependencyError("artifact object missing", fmt.Errorf("no object %s", key))
	}
	return nil
}

func (s *fakeArtifactStore) Get(key string) (io.ReadCloser, error) {
	body, ok := s.objects[key]
	if !ok {
		return nil, entities.NewDependencyError("artifact object missing", fmt.Errorf("no object %s", key))
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

type fakeEventBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *fakeEventBus) Publish(event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *fakeEventBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var result []string
	for _, event := range b.events {
		result = append(result, event.Type)
	}
	return result
}

type fakeTaskManager struct {
	tasks []entities.Task
}

func (m *fakeTaskManager) Start()                     {}
func (m *fakeTaskManager) Stop()                      {}
func (m *fakeTaskManager) AddTask(task entities.Task) { m.tasks = append(m.tasks, task) }

type fakeJobQueue struct {
	jobs       []*entities.SyncJobEntity
	enqueueErr error
}

func (q *fakeJobQueue) EnqueueJob(job *entities.SyncJobEntity) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type fakeMarkerRepo struct {
	markers map[uuid.UUID]*entities.WorkingDirectoryMarker
	upserts int
}

func newFakeMarkerRepo() *fakeMarkerRepo {
	return &fakeMarkerRepo{markers: make(map[uuid.UUID]*entities.WorkingDirectoryMarker)}
}

func (r *fakeMarkerRepo) UpsertMarker(marker *entities.WorkingDirectoryMarker) error {
	copied := *marker
	r.markers[marker.ProjectID] = &copied
	r.upserts++
	return nil
}

func (r *fakeMarkerRepo) GetMarker(projectID string) (*entities.WorkingDirectoryMarker, error) {
	marker, ok := r.markers[uuid.MustParse(projectID)]
	if !ok {
		return nil, nil
	}
	copied := *marker
	return &copied, nil
}

type fakeAuditRepo struct {
	entries []*entities.AuditEntry
}

func (r *fakeAuditRepo) CreateEntry(entry *entities.AuditEntry) error {
	copied := *entry
	r.entries = append(r.entries, &copied)
	return nil
}

type fakeGitRunner struct {
	calls     []string
	dirty     bool
	commitErr error
}

func (g *fakeGitRunner) EnsureRepository(ctx context.Context, dir string) error {
	g.calls = append(g.calls, "ensure")
	return nil
}

func (g *fakeGitRunner) HasLocalChanges(ctx context.Context, dir string) (bool, error) {
	g.calls = append(g.calls, "status")
	return g.dirty, nil
}

func (g *fakeGitRunner) Stash(ctx context.Context, dir string, message string) error {
	g.calls = append(g.calls, "stash")
	return nil
}

func (g *fakeGitRunner) CommitAll(ctx context.Context, dir string, message string) error {
	g.calls = append(g.calls, "commit")
	return g.commitErr
}

func (g *fakeGitRunner) Tag(ctx context.Context, dir string, name string) error {
	g.calls = append(g.calls, "tag")
	return nil
}

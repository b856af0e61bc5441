package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/appdraft/appdraft-backend/pkg/domain/entities"
	"github.com/appdraft/appdraft-backend/pkg/events"

	"github.com/google/uuid"
)

func testProject(status entities.ProjectStatus) *entities.ProjectEntity {
	return &entities.ProjectEntity{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Name:   "demo",
		Status: status,
	}
}

func testVersion(projectID uuid.UUID, name string) *entities.VersionEntity {
	return &entities.VersionEntity{
		ID:          uuid.New(),
		ProjectID:   projectID,
		VersionName: name,
		Artifact: entities.ArtifactRef{
			Checksum:   "abc123",
			StorageKey: "objects/ab/abc123",
			SizeBytes:  42,
		},
		EndpointURL: "https://demo-v1.apps.example.com",
		CreatedAt:   time.Now().UTC(),
	}
}

func newPublication(
	projects *fakeProjectRepo,
	versions *fakeVersionRepo,
	domains *fakeDomainRepo,
	locker *fakeLocker,
	idem *fakeIdempotencyCache,
	hostingClient *fakeHostingClient,
	store *fakeArtifactStore,
	bus *fakeEventBus,
	tasks *fakeTaskManager,
) *PublicationService {
	versions.projectRef = projects
	return NewPublicationService(projects, versions, domains, locker, idem, hostingClient, store, bus, tasks)
}

func TestPublishSuccess(t *testing.T) {
	project := testProject(entities.ProjectStatusDeployed)
	current := testVersion(project.ID, "1.0.0")
	current.IsPublished = true
	next := testVersion(project.ID, "1.1.0")

	projects := newFakeProjectRepo(project)
	versions := newFakeVersionRepo(current, next)
	store := newFakeArtifactStore()
	store.objects[next.Artifact.StorageKey] = []byte("content")
	locker := &fakeLocker{}
	bus := &fakeEventBus{}
	svc := newPublication(projects, versions, &fakeDomainRepo{}, locker,
		newFakeIdempotencyCache(), &fakeHostingClient{}, store, bus, &fakeTaskManager{})

	result, err := svc.Publish(context.Background(), project.ID, next.ID, project.UserID, "")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if !result.PublishedVersion.IsPublished {
		t.Error("published version not marked published")
	}
	if result.PreviouslyPublished == nil || result.PreviouslyPublished.ID != current.ID {
		t.Errorf("previouslyPublished = %v, want %s", result.PreviouslyPublished, current.ID)
	}
	if stored := versions.get(current.ID); stored.IsPublished {
		t.Error("previous version still published after flip")
	} else if stored.SupersededByVersionID == nil || *stored.SupersededByVersionID != next.ID {
		t.Error("previous version not marked superseded by the new one")
	}
	if project := projects.get(project.ID); project.PublishedVersionID == nil || *project.PublishedVersionID != next.ID {
		t.Error("project published pointer not moved")
	}
	if locker.releases != 1 {
		t.Errorf("lock released %d times, want 1", locker.releases)
	}
	if got := bus.types(); len(got) != 1 || got[0] != events.TypePublished {
		t.Errorf("events = %v, want [%s]", got, events.TypePublished)
	}
}

func TestPublishIdempotentReplay(t *testing.T) {
	project := testProject(entities.ProjectStatusDeployed)
	next := testVersion(project.ID, "1.1.0")

	projects := newFakeProjectRepo(project)
	versions := newFakeVersionRepo(next)
	store := newFakeArtifactStore()
	store.objects[next.Artifact.StorageKey] = []byte("content")
	locker := &fakeLocker{}
	svc := newPublication(projects, versions, &fakeDomainRepo{}, locker,
		newFakeIdempotencyCache(), &fakeHostingClient{}, store, &fakeEventBus{}, &fakeTaskManager{})

	first, err := svc.Publish(context.Background(), project.ID, next.ID, project.UserID, "key-1")
	if err != nil {
		t.Fatalf("first Publish() error = %v", err)
	}
	if first.Replayed {
		t.Error("first call reported replayed")
	}
	second, err := svc.Publish(context.Background(), project.ID, next.ID, project.UserID, "key-1")
	if err != nil {
		t.Fatalf("second Publish() error = %v", err)
	}
	if !second.Replayed {
		t.Error("second call with the same key did not replay")
	}
	if second.PublishedVersion.ID != first.PublishedVersion.ID {
		t.Error("replayed response differs from the original")
	}
	if locker.acquires != 1 {
		t.Errorf("lock acquired %d times, want 1 (replay must not re-execute)", locker.acquires)
	}
}

func TestPublishLockHeld(t *testing.T) {
	project := testProject(entities.ProjectStatusDeployed)
	next := testVersion(project.ID, "1.1.0")

	projects := newFakeProjectRepo(project)
	versions := newFakeVersionRepo(next)
	store := newFakeArtifactStore()
	store.objects[next.Artifact.StorageKey] = []byte("content")
	locker := &fakeLocker{held: true}
	svc := newPublication(projects, versions, &fakeDomainRepo{}, locker,
		newFakeIdempotencyCache(), &fakeHostingClient{}, store, &fakeEventBus{}, &fakeTaskManager{})

	_, err := svc.Publish(context.Background(), project.ID, next.ID, project.UserID, "")
	if !errors.Is(err, entities.ErrProjectLocked) {
		t.Fatalf("Publish() error = %v, want ErrProjectLocked", err)
	}
	if next := versions.get(next.ID); next.IsPublished {
		t.Error("version published despite held lock")
	}
}

func TestPublishValidationErrors(t *testing.T) {
	project := testProject(entities.ProjectStatusDeployed)
	otherProject := testProject(entities.ProjectStatusDeployed)

	deleted := testVersion(project.ID, "1.0.0")
	now := time.Now().UTC()
	deleted.SoftDeletedAt = &now
	foreign := testVersion(otherProject.ID, "1.0.0")
	noArtifact := testVersion(project.ID, "1.0.1")
	noArtifact.Artifact = entities.ArtifactRef{}
	live := testVersion(project.ID, "1.0.2")
	live.IsPublished = true

	projects := newFakeProjectRepo(project)
	versions := newFakeVersionRepo(deleted, foreign, noArtifact, live)
	store := newFakeArtifactStore()
	store.objects[live.Artifact.StorageKey] = []byte("content")
	svc := newPublication(projects, versions, &fakeDomainRepo{}, &fakeLocker{},
		newFakeIdempotencyCache(), &fakeHostingClient{}, store, &fakeEventBus{}, &fakeTaskManager{})

	cases := []struct {
		name      string
		versionID uuid.UUID
		want      error
	}{
		{"missing version", uuid.New(), entities.ErrVersionNotFound},
		{"wrong project", foreign.ID, entities.ErrVersionWrongProject},
		{"soft deleted", deleted.ID, entities.ErrVersionSoftDeleted},
		{"no artifact", noArtifact.ID, entities.ErrVersionNoArtifact},
		{"already published", live.ID, entities.ErrAlreadyPublished},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Publish(context.Background(), project.ID, tc.versionID, project.UserID, "")
			if !errors.Is(err, tc.want) {
				t.Errorf("Publish() error = %v, want %v", err, tc.want)
			}
		})
	}

	t.Run("missing project", func(t *testing.T) {
		_, err := svc.Publish(context.Background(), uuid.New(), live.ID, project.UserID, "")
		if !errors.Is(err, entities.ErrProjectNotFound) {
			t.Errorf("Publish() error = %v, want ErrProjectNotFound", err)
		}
	})
}

func TestPublishMissingArtifactObject(t *testing.T) {
	project := testProject(entities.ProjectStatusDeployed)
	next := testVersion(project.ID, "1.1.0")

	projects := newFakeProjectRepo(project)
	versions := newFakeVersionRepo(next)
	store := newFakeArtifactStore() // key never stored
	svc := newPublication(projects, versions, &fakeDomainRepo{}, &fakeLocker{},
		newFakeIdempotencyCache(), &fakeHostingClient{}, store, &fakeEventBus{}, &fakeTaskManager{})

	_, err := svc.Publish(context.Background(), project.ID, next.ID, project.UserID, "")
	if entities.KindOf(err) != entities.ErrKindDependency {
		t.Fatalf("Publish() error kind = %v, want dependency", entities.KindOf(err))
	}
}

func TestPublishPendingDomainRepoint(t *testing.T) {
	project := testProject(entities.ProjectStatusDeployed)
	next := testVersion(project.ID, "1.1.0")

	projects := newFakeProjectRepo(project)
	versions := newFakeVersionRepo(next)
	store := newFakeArtifactStore()
	store.objects[next.Artifact.StorageKey] = []byte("content")
	domains := &fakeDomainRepo{}
	domains.CreateDomainByTx(&entities.PublishedDomainEntity{
		ProjectID:  project.ID,
		DomainName: "demo.example.com",
		DomainType: entities.DomainTypeCustom,
		IsPrimary:  true,
		SSLStatus:  entities.SSLStatusActive,
	})
	hostingClient := &fakeHostingClient{pending: true}
	svc := newPublication(projects, versions, domains, &fakeLocker{},
		newFakeIdempotencyCache(), hostingClient, store, &fakeEventBus{}, &fakeTaskManager{})

	result, err := svc.Publish(context.Background(), project.ID, next.ID, project.UserID, "")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if !result.Pending {
		t.Error("result.Pending = false, want true for async alias repoint")
	}
	if len(hostingClient.repoints) != 1 || hostingClient.repoints[0] != "demo.example.com" {
		t.Errorf("repointed domains = %v", hostingClient.repoints)
	}
}

func TestPublishDomainListFailureReportsPending(t *testing.T) {
	project := testProject(entities.ProjectStatusDeployed)
	next := testVersion(project.ID, "1.1.0")

	projects := newFakeProjectRepo(project)
	versions := newFakeVersionRepo(next)
	store := newFakeArtifactStore()
	store.objects[next.Artifact.StorageKey] = []byte("content")
	domains := &fakeDomainRepo{listErr: errors.New("connection reset")}
	svc := newPublication(projects, versions, domains, &fakeLocker{},
		newFakeIdempotencyCache(), &fakeHostingClient{}, store, &fakeEventBus{}, &fakeTaskManager{})

	result, err := svc.Publish(context.Background(), project.ID, next.ID, project.UserID, "")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	// Unknown domain state must not look like a clean publish with no
	// domains attached.
	if !result.Pending {
		t.Error("result.Pending = false, want true when domain state is unknown")
	}
	published, _ := versions.GetVersionByID(next.ID.String())
	if !published.IsPublished {
		t.Error("version not published; domain listing failure must not undo it")
	}
}

func TestPublishDomainRepointFailureDoesNotUndo(t *testing.T) {
	project := testProject(entities.ProjectStatusDeployed)
	next := testVersion(project.ID, "1.1.0")

	projects := newFakeProjectRepo(project)
	versions := newFakeVersionRepo(next)
	store := newFakeArtifactStore()
	store.objects[next.Artifact.StorageKey] = []byte("content")
	domains := &fakeDomainRepo{}
	domains.CreateDomainByTx(&entities.PublishedDomainEntity{
		ProjectID:  project.ID,
		DomainName: "demo.example.com",
		DomainType: entities.DomainTypeCustom,
		SSLStatus:  entities.SSLStatusActive,
	})
	hostingClient := &fakeHostingClient{repointErr: errors.New("dns provider down")}
	svc := newPublication(projects, versions, domains, &fakeLocker{},
		newFakeIdempotencyCache(), hostingClient, store, &fakeEventBus{}, &fakeTaskManager{})

	result, err := svc.Publish(context.Background(), project.ID, next.ID, project.UserID, "")
	if err != nil {
		t.Fatalf("Publish() error = %v, repoint failures must not fail the publish", err)
	}
	if !result.PublishedVersion.IsPublished {
		t.Error("publication undone by domain repoint failure")
	}
	stored, _ := domains.GetDomain(project.ID.String(), "demo.example.com")
	if stored.SSLStatus != entities.SSLStatusFailed || stored.LastError == "" {
		t.Errorf("domain failure not recorded: status=%s lastError=%q", stored.SSLStatus, stored.LastError)
	}
}

func TestUnpublish(t *testing.T) {
	project := testProject(entities.ProjectStatusDeployed)
	live := testVersion(project.ID, "1.0.0")
	live.IsPublished = true
	id := live.ID
	project.PublishedVersionID = &id

	projects := newFakeProjectRepo(project)
	versions := newFakeVersionRepo(live)
	bus := &fakeEventBus{}
	svc := newPublication(projects, versions, &fakeDomainRepo{}, &fakeLocker{},
		newFakeIdempotencyCache(), &fakeHostingClient{}, newFakeArtifactStore(), bus, &fakeTaskManager{})

	if err := svc.Unpublish(context.Background(), project.ID, project.UserID); err != nil {
		t.Fatalf("Unpublish() error = %v", err)
	}
	if versions.get(live.ID).IsPublished {
		t.Error("version still published")
	}
	if projects.get(project.ID).PublishedVersionID != nil {
		t.Error("project pointer not cleared")
	}
	if got := bus.types(); len(got) != 1 || got[0] != events.TypeUnpublished {
		t.Errorf("events = %v, want [%s]", got, events.TypeUnpublished)
	}

	if err := svc.Unpublish(context.Background(), project.ID, project.UserID); !errors.Is(err, entities.ErrNothingPublished) {
		t.Errorf("second Unpublish() error = %v, want ErrNothingPublished", err)
	}
}

func TestDeleteVersion(t *testing.T) {
	project := testProject(entities.ProjectStatusDeployed)
	live := testVersion(project.ID, "1.1.0")
	live.IsPublished = true
	older := testVersion(project.ID, "1.0.0")

	projects := newFakeProjectRepo(project)
	versions := newFakeVersionRepo(live, older)
	svc := newPublication(projects, versions, &fakeDomainRepo{}, &fakeLocker{},
		newFakeIdempotencyCache(), &fakeHostingClient{}, newFakeArtifactStore(), &fakeEventBus{}, &fakeTaskManager{})

	if err := svc.DeleteVersion(context.Background(), project.ID, live.ID, project.UserID); entities.KindOf(err) != entities.ErrKindConflict {
		t.Errorf("deleting the live version error kind = %v, want conflict", entities.KindOf(err))
	}
	if versions.get(live.ID).IsSoftDeleted() {
		t.Error("live version tombstoned despite conflict")
	}

	if err := svc.DeleteVersion(context.Background(), project.ID, older.ID, project.UserID); err != nil {
		t.Fatalf("DeleteVersion() error = %v", err)
	}
	if !versions.get(older.ID).IsSoftDeleted() {
		t.Error("version not tombstoned")
	}

	if err := svc.DeleteVersion(context.Background(), project.ID, older.ID, project.UserID); !errors.Is(err, entities.ErrVersionSoftDeleted) {
		t.Errorf("second delete error = %v, want ErrVersionSoftDeleted", err)
	}
}

func TestListVersionsReadRepair(t *testing.T) {
	project := testProject(entities.ProjectStatusDeployed)
	live := testVersion(project.ID, "1.0.0")
	live.IsPublished = true
	stale := uuid.New()
	project.PublishedVersionID = &stale // disagrees with the ledger

	projects := newFakeProjectRepo(project)
	versions := newFakeVersionRepo(live)
	svc := newPublication(projects, versions, &fakeDomainRepo{}, &fakeLocker{},
		newFakeIdempotencyCache(), &fakeHostingClient{}, newFakeArtifactStore(), &fakeEventBus{}, &fakeTaskManager{})

	listed, err := svc.ListVersions(project.ID, "all", 50, 0)
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("len(listed) = %d, want 1", len(listed))
	}
	if projects.repairCalls != 1 {
		t.Errorf("repair calls = %d, want 1", projects.repairCalls)
	}
}

func TestListVersionsNoRepairWhenConsistent(t *testing.T) {
	project := testProject(entities.ProjectStatusDeployed)
	live := testVersion(project.ID, "1.0.0")
	live.IsPublished = true
	id := live.ID
	project.PublishedVersionID = &id

	projects := newFakeProjectRepo(project)
	versions := newFakeVersionRepo(live)
	svc := newPublication(projects, versions, &fakeDomainRepo{}, &fakeLocker{},
		newFakeIdempotencyCache(), &fakeHostingClient{}, newFakeArtifactStore(), &fakeEventBus{}, &fakeTaskManager{})

	if _, err := svc.ListVersions(project.ID, "", 0, 0); err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if projects.repairCalls != 0 {
		t.Errorf("repair calls = %d, want 0", projects.repairCalls)
	}

	if _, err := svc.ListVersions(project.ID, "bogus", 0, 0); entities.KindOf(err) != entities.ErrKindValidation {
		t.Errorf("state filter error kind = %v, want validation", entities.KindOf(err))
	}
}

func TestAddDomainPrimaryDemotion(t *testing.T) {
	project := testProject(entities.ProjectStatusDeployed)
	projects := newFakeProjectRepo(project)
	domains := &fakeDomainRepo{}
	hostingClient := &fakeHostingClient{verifyResult: true}
	tasks := &fakeTaskManager{}
	svc := newPublication(projects, newFakeVersionRepo(), domains, &fakeLocker{},
		newFakeIdempotencyCache(), hostingClient, newFakeArtifactStore(), &fakeEventBus{}, tasks)

	first, err := svc.AddDomain(context.Background(), project.ID, "first.example.com", entities.DomainTypeCustom, true)
	if err != nil {
		t.Fatalf("AddDomain(first) error = %v", err)
	}
	if !first.IsPrimary {
		t.Error("first domain not primary")
	}
	if _, err := svc.AddDomain(context.Background(), project.ID, "second.example.com", entities.DomainTypeCustom, true); err != nil {
		t.Fatalf("AddDomain(second) error = %v", err)
	}

	listed, _ := domains.ListDomains(project.ID.String())
	primaries := 0
	for _, domain := range listed {
		if domain.IsPrimary {
			primaries++
			if domain.DomainName != "second.example.com" {
				t.Errorf("primary = %s, want second.example.com", domain.DomainName)
			}
		}
	}
	if primaries != 1 {
		t.Errorf("primary domains = %d, want exactly 1", primaries)
	}
	if len(tasks.tasks) != 2 {
		t.Errorf("cert poll tasks queued = %d, want 2", len(tasks.tasks))
	}
}

func TestAddDomainRejections(t *testing.T) {
	project := testProject(entities.ProjectStatusDeployed)
	projects := newFakeProjectRepo(project)
	domains := &fakeDomainRepo{}
	svc := newPublication(projects, newFakeVersionRepo(), domains, &fakeLocker{},
		newFakeIdempotencyCache(), &fakeHostingClient{verifyResult: true}, newFakeArtifactStore(),
		&fakeEventBus{}, &fakeTaskManager{})

	if _, err := svc.AddDomain(context.Background(), project.ID, "not a domain", entities.DomainTypeCustom, false); !errors.Is(err, entities.ErrInvalidDomainName) {
		t.Errorf("malformed name error = %v, want ErrInvalidDomainName", err)
	}
	if _, err := svc.AddDomain(context.Background(), project.ID, "ok.example.com", "mystery", false); entities.KindOf(err) != entities.ErrKindValidation {
		t.Errorf("unknown type error kind = %v, want validation", entities.KindOf(err))
	}

	if _, err := svc.AddDomain(context.Background(), project.ID, "dup.example.com", entities.DomainTypeCustom, false); err != nil {
		t.Fatalf("AddDomain() error = %v", err)
	}
	if _, err := svc.AddDomain(context.Background(), project.ID, "dup.example.com", entities.DomainTypeCustom, false); !errors.Is(err, entities.ErrDuplicateDomain) {
		t.Errorf("duplicate error = %v, want ErrDuplicateDomain", err)
	}
}

func TestAddDomainOwnershipNotVerified(t *testing.T) {
	project := testProject(entities.ProjectStatusDeployed)
	svc := newPublication(newFakeProjectRepo(project), newFakeVersionRepo(), &fakeDomainRepo{},
		&fakeLocker{}, newFakeIdempotencyCache(), &fakeHostingClient{verifyResult: false},
		newFakeArtifactStore(), &fakeEventBus{}, &fakeTaskManager{})

	_, err := svc.AddDomain(context.Background(), project.ID, "claimed.example.com", entities.DomainTypeCustom, false)
	if entities.KindOf(err) != entities.ErrKindValidation {
		t.Errorf("unverified ownership error kind = %v, want validation", entities.KindOf(err))
	}
}

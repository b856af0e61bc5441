package entities

// ProjectStatus is the project deployment lifecycle state. Transitions are
// checked at every mutation site through CanTransitionTo so that adding a
// state forces every switch below to be revisited.
type ProjectStatus string

const (
	ProjectStatusQueued         ProjectStatus = "queued"
	ProjectStatusBuilding       ProjectStatus = "building"
	ProjectStatusDeployed       ProjectStatus = "deployed"
	ProjectStatusRollingBack    ProjectStatus = "rolling_back"
	ProjectStatusRollbackFailed ProjectStatus = "rollback_failed"
	ProjectStatusFailed         ProjectStatus = "failed"
	ProjectStatusCanceled       ProjectStatus = "canceled"
	ProjectStatusSuperseded     ProjectStatus = "superseded"
)

// CanTransitionTo reports whether moving from s to next is a legal step of
// the project state machine.
func (s ProjectStatus) CanTransitionTo(next ProjectStatus) bool {
	switch s {
	case ProjectStatusQueued:
		return next == ProjectStatusBuilding || next == ProjectStatusCanceled
	case ProjectStatusBuilding:
		return next == ProjectStatusDeployed ||
			next == ProjectStatusFailed ||
			next == ProjectStatusCanceled
	case ProjectStatusDeployed:
		return next == ProjectStatusRollingBack || next == ProjectStatusSuperseded
	case ProjectStatusRollingBack:
		return next == ProjectStatusDeployed || next == ProjectStatusRollbackFailed
	case ProjectStatusRollbackFailed:
		// A failed rollback leaves the project on its previous version;
		// a new rollback attempt is allowed from here.
		return next == ProjectStatusRollingBack || next == ProjectStatusDeployed
	case ProjectStatusFailed, ProjectStatusCanceled, ProjectStatusSuperseded:
		return false
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s ProjectStatus) IsTerminal() bool {
	switch s {
	case ProjectStatusFailed, ProjectStatusCanceled, ProjectStatusSuperseded:
		return true
	case ProjectStatusQueued, ProjectStatusBuilding, ProjectStatusDeployed,
		ProjectStatusRollingBack, ProjectStatusRollbackFailed:
		return false
	}
	return false
}

type DomainType string

const (
	DomainTypePlatformSubdomain DomainType = "platform-subdomain"
	DomainTypeCustom            DomainType = "custom"
)

type SSLStatus string

const (
	SSLStatusPending SSLStatus = "pending"
	SSLStatusActive  SSLStatus = "active"
	SSLStatusFailed  SSLStatus = "failed"
)

type SyncJobStatus string

const (
	SyncJobStatusPending    SyncJobStatus = "pending"
	SyncJobStatusInProgress SyncJobStatus = "in_progress"
	SyncJobStatusCompleted  SyncJobStatus = "completed"
	SyncJobStatusFailed     SyncJobStatus = "failed"
)

// Job type tags routed by the shared worker pool. Rollback sync jobs ride
// the same queue as ordinary build jobs.
const (
	JobTypeBuild        = "build"
	JobTypeRollbackSync = "rollback_sync"
)

type AuditResult string

const (
	AuditResultSuccess AuditResult = "success"
	AuditResultFailure AuditResult = "failure"
)

// Task is a unit of background work executed by the task manager pool.
type Task func()

package entities

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var domainNameRegex = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,}$`)

// ValidDomainName checks RFC-1035-style labels; comparison is
// case-insensitive, storage is lowercased.
func ValidDomainName(name string) bool {
	name = strings.ToLower(name)
	return len(name) <= 253 && domainNameRegex.MatchString(name)
}

type PublishedDomainEntity struct {
	ProjectID     uuid.UUID  `json:"projectId"`
	DomainName    string     `json:"domainName"`
	DomainType    DomainType `json:"domainType"`
	IsPrimary     bool       `json:"isPrimary"`
	SSLStatus     SSLStatus  `json:"sslStatus"`
	LastCheckedAt *time.Time `json:"lastCheckedAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

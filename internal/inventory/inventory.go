// Package inventory holds the fixed table of managed hosts.
package inventory

import (
	"fmt"
	"strings"

	"github.com/tphummel/lab_inventory/internal/models"
)

// hostOrder is the enumeration order used by ListAll. Every name here must
// have an entry in hostTable.
var hostOrder = []string{"portainer", "portainer2", "portainer3", "kuro", "maple"}

// hostTable is never handed out; Store copies records by value.
var hostTable = map[string]models.HostRecord{
	"portainer": {
		AnsibleHost:  "192.168.68.124",
		AnsibleUser:  "jimmy",
		RepoPath:     "/home/jimmy/home-server",
		Environment:  "production",
		PostgresUser: "admin",
		PostgresDB:   "maindb",
	},
	"portainer2": {
		AnsibleHost: "192.168.68.126",
		AnsibleUser: "jimmy",
		RepoPath:    "/home/jimmy/home-server",
		Environment: "production",
	},
	"portainer3": {
		AnsibleHost: "192.168.68.182",
		AnsibleUser: "jimmy",
		RepoPath:    "/home/jimmy/home-server",
		Environment: "production",
	},
	"kuro": {
		AnsibleHost: "192.168.68.120",
		AnsibleUser: "jimmy",
		RepoPath:    "/home/jimmy/home-server",
		Environment: "production",
	},
	"maple": {
		AnsibleHost: "192.168.68.128",
		AnsibleUser: "one",
		RepoPath:    "/home/one/home-server",
		Environment: "production",
	},
}

// Secrets supplies credentials that are kept out of the host table.
type Secrets interface {
	Lookup(key string) (string, bool)
}

// EnvSecrets resolves credentials from environment variables named
// INVENTORY_<HOST>_<FIELD>, e.g. INVENTORY_PORTAINER_POSTGRES_PASSWORD.
type EnvSecrets func(string) string

// Lookup implements Secrets.
func (e EnvSecrets) Lookup(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	v := e(key)
	return v, v != ""
}

// PasswordVar returns the environment variable holding the postgres
// password for hostname.
func PasswordVar(hostname string) string {
	return fmt.Sprintf("INVENTORY_%s_POSTGRES_PASSWORD", strings.ToUpper(hostname))
}

// Store answers read-only inventory queries. A Store is safe for concurrent
// use.
type Store struct {
	order []string
	hosts map[string]models.HostRecord
}

// New builds the inventory. Hosts with a postgres_user get their password
// from secrets; a nil secrets or a missing value leaves it unset.
func New(secrets Secrets) *Store {
	s := &Store{
		order: make([]string, len(hostOrder)),
		hosts: make(map[string]models.HostRecord, len(hostTable)),
	}
	copy(s.order, hostOrder)
	for name, r := range hostTable {
		if r.PostgresUser != "" && secrets != nil {
			if pw, ok := secrets.Lookup(PasswordVar(name)); ok {
				r.PostgresPassword = pw
			}
		}
		s.hosts[name] = r
	}
	return s
}

// Lookup returns the record for an exact, case-sensitive hostname match.
// Unknown hosts yield a zero record and false.
func (s *Store) Lookup(hostname string) (models.HostRecord, bool) {
	r, ok := s.hosts[hostname]
	if !ok || r.IsZero() {
		return models.HostRecord{}, false
	}
	return r, true
}

// ListAll returns the Ansible --list document. Names in the enumeration
// without a record are skipped.
func (s *Store) ListAll() models.Inventory {
	inv := models.Inventory{All: models.Group{Hosts: []string{}}}
	for _, name := range s.order {
		r, ok := s.Lookup(name)
		if !ok {
			continue
		}
		inv.All.Hosts = append(inv.All.Hosts, name)
		inv.Meta.Hostvars.Add(name, r)
	}
	return inv
}

// Hostnames returns the enumeration order.
func (s *Store) Hostnames() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of hosts ListAll would return.
func (s *Store) Len() int {
	n := 0
	for _, name := range s.order {
		if _, ok := s.Lookup(name); ok {
			n++
		}
	}
	return n
}

// CountByEnvironment returns the number of listed hosts per environment.
func (s *Store) CountByEnvironment() map[string]int {
	counts := make(map[string]int)
	for _, name := range s.order {
		if r, ok := s.Lookup(name); ok {
			counts[r.Environment]++
		}
	}
	return counts
}

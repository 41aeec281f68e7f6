package models

import (
	"bytes"
	"encoding/json"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// HostRecord holds the Ansible variables for one managed host. Field order
// is the key order of the JSON output.
type HostRecord struct {
	AnsibleHost      string `json:"ansible_host" yaml:"ansible_host"`
	AnsibleUser      string `json:"ansible_user" yaml:"ansible_user"`
	RepoPath         string `json:"repo_path" yaml:"repo_path"`
	Environment      string `json:"environment" yaml:"environment"`
	PostgresUser     string `json:"postgres_user,omitempty" yaml:"postgres_user,omitempty"`
	PostgresPassword string `json:"postgres_password,omitempty" yaml:"postgres_password,omitempty"`
	PostgresDB       string `json:"postgres_db,omitempty" yaml:"postgres_db,omitempty"`
}

// IsZero reports whether r carries no variables at all.
func (r HostRecord) IsZero() bool {
	return r == HostRecord{}
}

// Inventory is the document Ansible expects from a dynamic inventory
// script invoked with --list.
type Inventory struct {
	Meta Meta  `json:"_meta"`
	All  Group `json:"all"`
}

// Meta carries per-host variables so Ansible can skip the --host calls.
type Meta struct {
	Hostvars Hostvars `json:"hostvars"`
}

// Group is an Ansible host group.
type Group struct {
	Hosts []string `json:"hosts"`
}

// Hostvars maps hostname to HostRecord and remembers insertion order, which
// is preserved when encoding.
type Hostvars struct {
	m *orderedmap.OrderedMap[string, HostRecord]
}

// Add appends name to the mapping. Re-adding a name replaces its record but
// keeps its original position.
func (h *Hostvars) Add(name string, r HostRecord) {
	if h.m == nil {
		h.m = orderedmap.New[string, HostRecord]()
	}
	h.m.Set(name, r)
}

// Get returns the record stored for name.
func (h Hostvars) Get(name string) (HostRecord, bool) {
	if h.m == nil {
		return HostRecord{}, false
	}
	return h.m.Get(name)
}

// Names returns the hostnames in insertion order.
func (h Hostvars) Names() []string {
	out := make([]string, 0, h.Len())
	if h.m == nil {
		return out
	}
	for p := h.m.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Key)
	}
	return out
}

// Len returns the number of hosts.
func (h Hostvars) Len() int {
	if h.m == nil {
		return 0
	}
	return h.m.Len()
}

// MarshalJSON encodes the mapping as a JSON object in insertion order.
// Values are written without HTML escaping so the document matches what
// a single record encodes to.
func (h Hostvars) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	if h.m != nil {
		for p := h.m.Oldest(); p != nil; p = p.Next() {
			if buf.Len() > 1 {
				buf.WriteByte(',')
			}
			if err := enc.Encode(p.Key); err != nil {
				return nil, err
			}
			buf.Truncate(buf.Len() - 1)
			buf.WriteByte(':')
			if err := enc.Encode(p.Value); err != nil {
				return nil, err
			}
			buf.Truncate(buf.Len() - 1)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Lookup is one audited inventory query served over HTTP.
type Lookup struct {
	ID         string    `json:"id"`
	Hostname   string    `json:"hostname"`
	Mode       string    `json:"mode"`
	Found      bool      `json:"found"`
	RemoteAddr string    `json:"remote_addr"`
	CreatedAt  time.Time `json:"created_at"`
}

// Lookup modes.
const (
	ModeList = "list"
	ModeHost = "host"
)

// ValidModes is the set of allowed lookup mode values.
var ValidModes = map[string]bool{
	ModeList: true,
	ModeHost: true,
}

package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// VersionInfo carries the per-version metadata a registry publishes alongside
// a release. Registries attach arbitrary extra fields; Raw preserves them so
// job payloads can forward what this service does not interpret.
type VersionInfo struct {
	GitHead      string            `json:"gitHead,omitempty"`
	Deprecated   string            `json:"deprecated,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
	Raw          map[string]any    `json:"-"`
}

// Notification is one registry publish event, as delivered by the hook
// endpoint. Exactly one Notification is processed per pipeline invocation.
type Notification struct {
	Dependency   string                 `json:"name"`
	DistTags     map[string]string      `json:"distTags"`
	Versions     map[string]VersionInfo `json:"versions"`
	Installation string                 `json:"installation,omitempty"`
	Force        bool                   `json:"force,omitempty"`
}

// StateID returns the document id under which dist-tag state for this
// notification is persisted: the dependency name, prefixed with the
// installation id when the hook is installation-scoped.
func (n Notification) StateID() string {
	if n.Installation != "" {
		return n.Installation + ":" + n.Dependency
	}
	return n.Dependency
}

// UnmarshalJSON keeps unrecognized per-version fields in Raw.
func (v *VersionInfo) UnmarshalJSON(data []byte) error {
	type alias VersionInfo
	var known alias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = VersionInfo(known)
	v.Raw = raw
	return nil
}

// MarshalJSON folds Raw back under the typed fields.
func (v VersionInfo) MarshalJSON() ([]byte, error) {
	merged := make(map[string]any, len(v.Raw)+3)
	for key, value := range v.Raw {
		merged[key] = value
	}
	if v.GitHead != "" {
		merged["gitHead"] = v.GitHead
	}
	if v.Deprecated != "" {
		merged["deprecated"] = v.Deprecated
	}
	if v.Dependencies != nil {
		merged["dependencies"] = v.Dependencies
	}
	return json.Marshal(merged)
}

// Decode reads a Notification from a hook request body and validates the
// fields the pipeline cannot proceed without.
func Decode(r io.Reader) (Notification, error) {
	var n Notification
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&n); err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	if err := n.Validate(); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// Validate checks structural requirements on the notification.
func (n Notification) Validate() error {
	if strings.TrimSpace(n.Dependency) == "" {
		return errors.New("notification missing dependency name")
	}
	if len(n.DistTags) == 0 {
		return errors.New("notification carries no dist-tags")
	}
	return nil
}

package config

import (
	"fmt"
	"os"

	"github.com/One-com/gone/jconf"
)

// ManifestFileName is the name of the file declaring a service in its directory.
const ManifestFileName = "MANIFEST"

// DefaultMapping names the route table of a service when the manifest doesn't.
const DefaultMapping = "handlers"

// A service MANIFEST file:
//
//   {
//       "Service" : {
//           "Label" : "Hello service",  // display label, mandatory
//           "Mapping" : "handlers"      // route table name, optional
//       },
//       "Settings" : {                  // optional, passed to the service Init()
//           "greeting" : "Hello"
//       }
//   }

// ServiceSection is the primary section of a manifest.
type ServiceSection struct {
	Label   string
	Mapping string `json:",omitempty"`
}

// Manifest describes a service as declared by its MANIFEST file.
type Manifest struct {
	Service  *ServiceSection   `json:",omitempty"`
	Settings map[string]string `json:",omitempty"`
}

// Label returns the service display label.
func (m *Manifest) Label() string {
	return m.Service.Label
}

// Mapping returns the name of the route table exported by the service code.
func (m *Manifest) Mapping() string {
	return m.Service.Mapping
}

// ManifestError reports a manifest which can't be read or misses mandatory content.
type ManifestError struct {
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest %s: %s", e.Path, e.Err.Error())
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

// ReadManifest parses the manifest file at path.
// A missing "Service" section or "Label" is a *ManifestError. The "Mapping" defaults
// to DefaultMapping. A missing "Settings" section leaves Settings nil.
func ReadManifest(path string) (*Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}
	defer file.Close()

	var m *Manifest
	err = jconf.ParseInto(file, &m)
	if err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}
	if m == nil || m.Service == nil {
		return nil, &ManifestError{Path: path, Err: fmt.Errorf("no \"Service\" section")}
	}
	if m.Service.Label == "" {
		return nil, &ManifestError{Path: path, Err: fmt.Errorf("no \"Label\" in \"Service\" section")}
	}
	if m.Service.Mapping == "" {
		m.Service.Mapping = DefaultMapping
	}
	return m, nil
}

package registry

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// File is the YAML layout accepted by LoadFile:
//
//	services:
//	  etsy: https://openapi.etsy.com/v2
//	operations:
//	  - service: etsy
//	    method: create_listing
//	    uri: listings
//	    verb: POST
//	    identifier: shipping_template_id
//	    special: {taxonomy_id: "1"}
//	    auth: oauth1
type File struct {
	Services   map[string]string `yaml:"services"`
	Operations []Entry           `yaml:"operations"`
}

func LoadFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Registry, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse registry file: %w", err)
	}
	if len(f.Operations) == 0 {
		return nil, fmt.Errorf("registry file has no operations")
	}
	return New(f.Services, f.Operations...)
}

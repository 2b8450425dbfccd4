package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	id := uuid.NewString()

	tests := []struct {
		name         string
		path         string
		wantResource string
		wantID       string
	}{
		{"thing metadata", "/data/" + id + ".json", "thing", id},
		{"document", "/data/" + id + ".md", "document", id},
		{"atomic write temp file", "/data/" + id + ".json.tmp", "", ""},
		{"non uuid name", "/data/README.json", "", ""},
		{"unrelated extension", "/data/" + id + ".bak", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resource, gotID := classify(tt.path)
			assert.Equal(t, tt.wantResource, resource)
			assert.Equal(t, tt.wantID, gotID)
		})
	}
}

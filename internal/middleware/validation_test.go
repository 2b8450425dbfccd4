package middleware

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValidatePrompt(t *testing.T) {
	assert.NoError(t, ValidatePrompt("summarize my notes"))
	assert.Error(t, ValidatePrompt(""))
	assert.Error(t, ValidatePrompt(strings.Repeat("a", 100*1024+1)))
}

func TestValidateThingID(t *testing.T) {
	assert.NoError(t, ValidateThingID(uuid.NewString()))
	assert.Error(t, ValidateThingID(""))
	assert.Error(t, ValidateThingID("not-a-uuid"))
}

func TestValidateThingName(t *testing.T) {
	assert.NoError(t, ValidateThingName("My Project"))
	assert.Error(t, ValidateThingName(""))
	assert.Error(t, ValidateThingName(strings.Repeat("x", 257)))
}

func TestValidateDocumentBody(t *testing.T) {
	assert.NoError(t, ValidateDocumentBody(""))
	assert.NoError(t, ValidateDocumentBody("# notes"))
	assert.Error(t, ValidateDocumentBody(strings.Repeat("x", 1024*1024+1)))
}

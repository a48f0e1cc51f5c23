package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("Seller@Example.com"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("no-at-sign"))
	assert.Error(t, ValidateEmail("a@b@c.com"))
	assert.Error(t, ValidateEmail("user@localhost"))
}

func TestValidateLength_CountsRunes(t *testing.T) {
	assert.NoError(t, ValidateLength("причина", "переделать", MinRevisionReasonLength, 0))
	assert.Error(t, ValidateLength("причина", "коротко", MinRevisionReasonLength, 0))
	assert.Error(t, ValidateLength("название", strings.Repeat("x", 201), 0, MaxProjectTitleLength))
}

func TestValidateAttachments(t *testing.T) {
	assert.NoError(t, ValidateAttachments([]string{"https://files/a.pdf"}))
	assert.Error(t, ValidateAttachments([]string{" "}))
	assert.Error(t, ValidateAttachments(make([]string, MaxAttachments+1)))
}

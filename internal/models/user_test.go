package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	named := User{Username: "asha", Email: "asha@example.org"}
	assert.Equal(t, "asha", named.DisplayName())

	// accounts imported without a username fall back to email
	unnamed := User{Email: "asha@example.org"}
	assert.Equal(t, "asha@example.org", unnamed.DisplayName())
}

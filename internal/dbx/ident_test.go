package dbx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdent(t *testing.T) {
	tests := map[string]string{
		"id":           "id",
		"first_name":   "first_name",
		"firstName":    `"firstName"`,
		"Name":         `"Name"`,
		"1col":         `"1col"`,
		`a"; DROP x --`: `"a""; DROP x --"`,
	}
	for in, want := range tests {
		assert.Equal(t, want, Ident(in), in)
	}
}

func TestTableIdent(t *testing.T) {
	assert.Equal(t, "public.users", TableIdent("public.users"))
	assert.Equal(t, `public."userProfiles"`, TableIdent("public.userProfiles"))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"deletedAt"`, QuoteIdent("deletedAt"))
	assert.Equal(t, `"id"`, QuoteIdent("id"))
}

package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/menuboard-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contact struct {
	Name string `json:"name" validate:"required,max=5"`
}

type signupBody struct {
	Email   string  `json:"email" validate:"required,email"`
	Slug    *string `json:"slug" validate:"omitempty,slug"`
	Contact contact `json:"contact"`
	Note    string  `json:"note"`
}

func (b *signupBody) Normalize() { b.Note = CleanText(b.Note, 4) }

func detailsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, _ := typed.Details().(map[string]string)
	return details
}

func TestDecodeJSONBody(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"a@b.co","slug":"Luigis-Pizza","contact":{"name":"Ana"},"note":"  hello  "}`))
	var body signupBody
	require.NoError(t, DecodeJSONBody(r, &body))
	assert.Equal(t, "hell", body.Note)
	assert.Equal(t, "Ana", body.Contact.Name)
}

func TestDecodeJSONBodyRejects(t *testing.T) {
	cases := map[string]string{
		"empty":   ``,
		"unknown": `{"email":"a@b.co","contact":{"name":"x"},"extra":1}`,
		"two":     `{"email":"a@b.co","contact":{"name":"x"}} {}`,
		"syntax":  `{"email":`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			var body signupBody
			err := DecodeJSONBody(httptest.NewRequest("POST", "/", strings.NewReader(raw)), &body)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%v", err)
		})
	}
}

func TestDecodeJSONBodyReportsFieldPaths(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"nope","slug":"-x","contact":{"name":"toolong"}}`))
	var body signupBody
	details := detailsOf(t, DecodeJSONBody(r, &body))

	assert.Equal(t, "must be a valid email", details["email"])
	assert.Contains(t, details["slug"], "lowercase")
	assert.Equal(t, "must be at most 5", details["contact.name"])
}

func TestParseQueryInt(t *testing.T) {
	get := func(q string) (int, error) {
		return ParseQueryInt(httptest.NewRequest("GET", "/?"+q, nil), "limit", 20, 1, 100)
	}
	n, err := get("")
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	n, err = get("limit=%2035")
	require.NoError(t, err)
	assert.Equal(t, 35, n)

	_, err = get("limit=abc")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = get("limit=101")
	assert.Equal(t, "limit must be between 1 and 100", pkgerrors.As(err).Message())
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "ring\nbell", CleanText("  ring\x00\nbell\x07 ", 0))
	assert.Equal(t, "café", CleanText("café au lait", 4))
	assert.Equal(t, "", CleanText(" \t ", 10))
}

package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinCatalogs(t *testing.T) {
	def, err := LoadBuiltin("default")
	require.NoError(t, err)
	assert.Equal(t, "name", def.First().Key)
	assert.Contains(t, def.Keys(), "email")
	assert.NotContains(t, def.RequiredKeys(), "goals")

	small, err := LoadBuiltin("testing")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "email"}, small.Keys())
	assert.Equal(t, []string{"name", "email"}, small.RequiredKeys())

	_, err = LoadBuiltin("nope")
	assert.ErrorIs(t, err, ErrUnknownCatalog)
}

func TestLoadPrefersExternalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.yaml")
	yml := `
questions:
  - key: role
    prompt: "Are you a parent or a caseworker?"
    required: true
    options: ["parent", "caseworker"]
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	c, err := Load("default", path)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	q, err := c.ByKey("role")
	require.NoError(t, err)
	assert.True(t, q.HasOptions())
	assert.True(t, q.AllowsOption("caseworker"))
	assert.False(t, q.AllowsOption("judge"))
}

func TestNextAndByKey(t *testing.T) {
	c := MustLoadBuiltin("testing")

	next, ok, err := c.Next("name")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "email", next.Key)

	_, ok, err = c.Next("email")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = c.Next("missing")
	assert.ErrorIs(t, err, ErrQuestionNotFound)

	_, err = c.ByKey("missing")
	assert.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestCatalogIsImmutable(t *testing.T) {
	c, err := New("t", []Question{{Key: "pick", Prompt: "Pick one", Options: []string{"a", "b"}, Required: true}})
	require.NoError(t, err)

	list := c.List()
	list[0].Options[0] = "changed"
	list[0].Prompt = "changed"

	q, err := c.ByKey("pick")
	require.NoError(t, err)
	assert.Equal(t, "a", q.Options[0])
	assert.Equal(t, "Pick one", q.Prompt)
}

func TestValidation(t *testing.T) {
	cases := map[string][]Question{
		"empty":          nil,
		"blank key":      {{Key: " ", Prompt: "p"}},
		"blank prompt":   {{Key: "k", Prompt: ""}},
		"duplicate key":  {{Key: "k", Prompt: "p"}, {Key: "k", Prompt: "q"}},
		"duplicate opts": {{Key: "k", Prompt: "p", Options: []string{"x", "x"}}},
	}

	for name, qs := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(name, qs)
			assert.Error(t, err)
		})
	}

	_, err := Parse("broken", []byte("questions: [oops"))
	assert.Error(t, err)
}

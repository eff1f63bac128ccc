package requirements_test

import (
	"os"
	"path/filepath"
	"testing"

	"piplock/requirements"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFile(t *testing.T) {
	text := `# base requirements
-c common_constraints.txt

Django                 # web framework
celery>=5.2,<6.0
boto3 \
    >=1.26
--index-url https://pypi.example.com/simple
`
	f, err := requirements.ParseFile("requirements/base.in", text)
	require.NoError(t, err)

	require.Len(t, f.Requirements, 3)
	assert.Equal(t, "django", f.Requirements[0].Canonical)
	assert.Equal(t, "-r requirements/base.in", f.Requirements[0].Origin)
	assert.Equal(t, ">=5.2,<6.0", f.Requirements[1].Specifiers.String())
	assert.Equal(t, ">=1.26", f.Requirements[2].Specifiers.String(), "continuation line joined")

	assert.Equal(t, []string{"common_constraints.txt"}, f.Constraints)
	assert.Equal(t, []string{"--index-url https://pypi.example.com/simple"}, f.Options)
}

func TestParseFileEditableRejected(t *testing.T) {
	_, err := requirements.ParseFile("dev.in", "-e ./src/mypackage\n")
	assert.ErrorContains(t, err, "editable")
}

func TestParseFileBadRequirement(t *testing.T) {
	_, err := requirements.ParseFile("base.in", "django\n>=4.0\n")
	assert.ErrorContains(t, err, "base.in:2")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	reqDir := filepath.Join(dir, "requirements")
	require.NoError(t, os.Mkdir(reqDir, 0o755))

	write := func(name, text string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644))
	}

	write("requirements/base.in", "-c common_constraints.txt\ndjango\ncelery>=5.2\n")
	write("requirements/common_constraints.txt", "django<4.0\nelasticsearch<7.14.0\n")

	src, err := requirements.Load(filepath.Join(dir, "requirements/base.in"))
	require.NoError(t, err)

	require.Len(t, src.Requirements, 2)
	assert.Equal(t, "django", src.Requirements[0].Canonical)
	assert.Equal(t, "celery", src.Requirements[1].Canonical)

	require.Len(t, src.Constraints, 2)
	assert.Equal(t, "django", src.Constraints[0].Canonical)
	assert.Equal(t, "<4.0", src.Constraints[0].Specifiers.String())
}

func TestLoadCycleSafe(t *testing.T) {
	dir := t.TempDir()
	write := func(name, text string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644))
	}
	write("a.in", "-r b.in\ndjango\n")
	write("b.in", "-r a.in\ncelery\n")

	src, err := requirements.Load(filepath.Join(dir, "a.in"))
	require.NoError(t, err)
	assert.Len(t, src.Requirements, 2)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := requirements.Load(filepath.Join(t.TempDir(), "absent.in"))
	assert.Error(t, err)
}

package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

func TestLoadDescriptor_Database(t *testing.T) {
	t.Setenv(PasswordEnv, "from-env")
	path := writeFile(t, "db.yaml", "type: mssql\nconfig:\n  host: sql.internal,1444\n  name: sales\n  user: sa\n  table: dbo.orders\n")

	desc, err := loadDescriptor(path, nil)
	require.NoError(t, err)

	assert.Equal(t, models.SourceKindDatabase, desc.Kind)
	assert.Equal(t, models.EngineMSSQL, desc.Engine)
	assert.Equal(t, "sql.internal", desc.Database.Host)
	assert.Equal(t, "1444", desc.Database.Port)
	assert.Equal(t, "sales", desc.Database.Database)
	assert.Equal(t, "sa", desc.Database.Username)
	assert.Equal(t, "from-env", desc.Database.Password)
}

func TestLoadDescriptor_AsksForPassword(t *testing.T) {
	t.Setenv(PasswordEnv, "")
	path := writeFile(t, "db.yaml", testDescriptorYAML)

	var prompt string
	desc, err := loadDescriptor(path, func(p string) (string, error) {
		prompt = p
		return "typed", nil
	})
	require.NoError(t, err)

	assert.Equal(t, "typed", desc.Database.Password)
	assert.Equal(t, "Password for reader@db.internal: ", prompt)
}

func TestLoadDescriptor_AskError(t *testing.T) {
	t.Setenv(PasswordEnv, "")
	path := writeFile(t, "db.yaml", testDescriptorYAML)

	_, err := loadDescriptor(path, func(string) (string, error) {
		return "", errors.New("no tty")
	})
	assert.EqualError(t, err, "no tty")
}

func TestLoadDescriptor_File(t *testing.T) {
	path := writeFile(t, "file.yaml", "file_ref: upload-42\n")

	desc, err := loadDescriptor(path, nil)
	require.NoError(t, err)
	assert.Equal(t, models.NewFileSource("upload-42"), desc)
}

func TestLoadDescriptor_Errors(t *testing.T) {
	_, err := loadDescriptor(writeFile(t, "bad.yaml", "kind: stream\n"), nil)
	assert.ErrorContains(t, err, `unsupported kind "stream"`)

	_, err = loadDescriptor(writeFile(t, "bad.yaml", "kind: [\n"), nil)
	assert.ErrorContains(t, err, "failed to parse descriptor")

	_, err = loadDescriptor("/does/not/exist.yaml", nil)
	assert.ErrorContains(t, err, "failed to read descriptor")
}

func TestLoadSchema(t *testing.T) {
	schema, err := loadSchema(writeFile(t, "schema.json", `{"name": "orders", "fields": [{"name": "id", "type": "integer"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, schema.FieldNames())

	_, err = loadSchema(writeFile(t, "empty.yaml", "name: x\n"))
	assert.ErrorContains(t, err, "has no fields")
}

package cfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	props := Map(map[string]string{"db.host": "10.0.0.1", "user": "props-user"})
	t.Setenv("ORM_TEST_USER", "env-user")

	assert.Equal(t, "host=10.0.0.1", Expand("host=${db.host}", props))
	assert.Equal(t, "port=3306", Expand("port=${db.port:-3306}", props))
	assert.Equal(t, "pw=", Expand("pw=${db.password:-}", props))
	assert.Equal(t, "keep ${missing}", Expand("keep ${missing}", props))
	assert.Equal(t, "props-user", Expand("${user}", props, Env))
	assert.Equal(t, "env-user", Expand("${ORM_TEST_USER}", props, nil, Env))
	assert.Equal(t, "no placeholder", Expand("no placeholder"))
}

func TestLoadProperties(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.properties")
	require.NoError(t, os.WriteFile(path, []byte("# credentials\nusername = admin\npassword = s3cr#t\n"), 0o600))

	props, err := LoadProperties(path)
	require.NoError(t, err)
	assert.Equal(t, "admin", props["username"])
	assert.Equal(t, "s3cr#t", props["password"])

	_, err = LoadProperties(filepath.Join(t.TempDir(), "missing.properties"))
	assert.Error(t, err)
}

package cfg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type defTestConfig struct {
	Name        string        `def:"default_name"`
	Port        int32         `def:"5432"`
	Ratio       float64       `def:"0.75"`
	Enabled     bool          `def:"true"`
	Tags        []string      `def:"a, b,c"`
	Timeout     time.Duration `def:"30s"`
	CreatedAt   time.Time     `def:"2023-01-01T00:00:00Z"`
	Description *string       `def:"default description"`

	// 嵌套结构体
	Pool defPoolConfig `def:""`

	// 指针类型的嵌套结构体
	Replica *defPoolConfig `def:""`
}

type defPoolConfig struct {
	MaxConns int `def:"10"`
	MaxIdle  int `def:"2"`
}

func TestSetDefaults_BasicTypes(t *testing.T) {
	config := &defTestConfig{}

	err := SetDefaults(config)
	assert.NoError(t, err)

	assert.Equal(t, "default_name", config.Name)
	assert.Equal(t, int32(5432), config.Port)
	assert.Equal(t, 0.75, config.Ratio)
	assert.True(t, config.Enabled)
	assert.Equal(t, []string{"a", "b", "c"}, config.Tags)
	assert.Equal(t, 30*time.Second, config.Timeout)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), config.CreatedAt.UTC())
	if assert.NotNil(t, config.Description) {
		assert.Equal(t, "default description", *config.Description)
	}
}

func TestSetDefaults_NestedStruct(t *testing.T) {
	config := &defTestConfig{}

	assert.NoError(t, SetDefaults(config))
	assert.Equal(t, 10, config.Pool.MaxConns)
	assert.Equal(t, 2, config.Pool.MaxIdle)
	if assert.NotNil(t, config.Replica) {
		assert.Equal(t, 10, config.Replica.MaxConns)
	}
}

func TestSetDefaults_KeepExistingValues(t *testing.T) {
	config := &defTestConfig{
		Name:    "custom",
		Port:    3306,
		Timeout: time.Minute,
		Pool:    defPoolConfig{MaxConns: 50},
	}

	assert.NoError(t, SetDefaults(config))
	assert.Equal(t, "custom", config.Name)
	assert.Equal(t, int32(3306), config.Port)
	assert.Equal(t, time.Minute, config.Timeout)
	assert.Equal(t, 50, config.Pool.MaxConns)
	assert.Equal(t, 2, config.Pool.MaxIdle)
}

func TestSetDefaults_InvalidInput(t *testing.T) {
	assert.Error(t, SetDefaults(nil))
	assert.Error(t, SetDefaults(defTestConfig{}))

	var nilConfig *defTestConfig
	assert.Error(t, SetDefaults(nilConfig))
}

func TestSetDefaults_InvalidValue(t *testing.T) {
	type badInt struct {
		Port int `def:"not-a-number"`
	}
	err := SetDefaults(&badInt{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "field Port")

	type badDuration struct {
		Timeout time.Duration `def:"forever"`
	}
	assert.Error(t, SetDefaults(&badDuration{}))

	type overflow struct {
		Small int8 `def:"1000"`
	}
	assert.Error(t, SetDefaults(&overflow{}))
}

func TestSetDefaults_DurationAsNumber(t *testing.T) {
	type config struct {
		Timeout time.Duration `def:"1000"`
	}
	c := &config{}
	assert.NoError(t, SetDefaults(c))
	assert.Equal(t, time.Duration(1000), c.Timeout)
}

package deployment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteVariables_SimpleReplacement(t *testing.T) {
	result := SubstituteVariables("${DB_HOST}", map[string]string{"DB_HOST": "localhost"})
	assert.Equal(t, "localhost", result)
}

func TestSubstituteVariables_MissingKeptAsIs(t *testing.T) {
	result := SubstituteVariables("${MISSING}", map[string]string{})
	assert.Equal(t, "${MISSING}", result)
}

func TestSubstituteVariables_DefaultValue(t *testing.T) {
	result := SubstituteVariables("${SUPERUSER_PASSWORD:-password}", map[string]string{})
	assert.Equal(t, "password", result)
}

func TestSubstituteVariables_SetValueWinsOverDefault(t *testing.T) {
	result := SubstituteVariables("${PORT:-8080}", map[string]string{"PORT": "9000"})
	assert.Equal(t, "9000", result)
}

func TestSubstituteVariables_EmptyDefault(t *testing.T) {
	result := SubstituteVariables("${OPTIONAL:-}", map[string]string{})
	assert.Equal(t, "", result)
}

func TestSubstituteVariables_MultiplePlaceholders(t *testing.T) {
	result := SubstituteVariables(
		"postgres://${HOST}:${PORT}",
		map[string]string{"HOST": "db", "PORT": "5432"},
	)
	assert.Equal(t, "postgres://db:5432", result)
}

func TestSubstituteVariables_SurroundingTextUnchanged(t *testing.T) {
	result := SubstituteVariables(
		"url=postgres://${HOST}/app?sslmode=disable",
		map[string]string{"HOST": "db"},
	)
	assert.Equal(t, "url=postgres://db/app?sslmode=disable", result)
}

func TestSubstituteVariables_NilVariables(t *testing.T) {
	result := SubstituteVariables("${A:-x}", nil)
	assert.Equal(t, "x", result)
}

func TestSubstituteVariables_NoPlaceholders(t *testing.T) {
	result := SubstituteVariables("DEVELOPMENT", map[string]string{"MODE": "TEST"})
	assert.Equal(t, "DEVELOPMENT", result)
}

package deployment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNetworkName(t *testing.T) {
	assert.Equal(t, "devstack_mathesar", NetworkName("mathesar"))
}

func TestVolumeName(t *testing.T) {
	assert.Equal(t, "mathesar_dev_postgres_data", VolumeName("mathesar", "dev_postgres_data"))
}

func TestImageTag(t *testing.T) {
	assert.Equal(t, "devstack/mathesar_dev-service:latest", ImageTag("mathesar", "dev-service"))
}

package deployment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// ContainerName Tests
// =============================================================================

func TestContainerName_First(t *testing.T) {
	assert.Equal(t, "shop_web_1", ContainerName("shop", "web", 1))
}

func TestContainerName_Replica(t *testing.T) {
	assert.Equal(t, "shop_web_12", ContainerName("shop", "web", 12))
}

func TestContainerName_UnderscoreService(t *testing.T) {
	assert.Equal(t, "shop_db_replica_1", ContainerName("shop", "db_replica", 1))
}

// =============================================================================
// ImageName Tests
// =============================================================================

func TestImageName_Simple(t *testing.T) {
	assert.Equal(t, "shop_web", ImageName("shop", "web"))
}

func TestImageName_EmptyProject(t *testing.T) {
	assert.Equal(t, "_web", ImageName("", "web"))
}

// =============================================================================
// InfraName Tests
// =============================================================================

func TestInfraName_Simple(t *testing.T) {
	assert.Equal(t, "shop_infra", InfraName("shop"))
}

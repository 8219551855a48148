package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct{ name string }

func TestResolve(t *testing.T) {
	c := NewContainer()
	c.Register(ServiceScene, &fakeService{name: "scene"})

	svc, err := Resolve[*fakeService](c, ServiceScene)
	require.NoError(t, err)
	assert.Equal(t, "scene", svc.name)

	_, err = Resolve[*fakeService](c, ServiceLocks)
	assert.ErrorContains(t, err, "not registered")

	_, err = Resolve[string](c, ServiceScene)
	assert.ErrorContains(t, err, "*di.fakeService")
}

func TestContainerNamesAreSorted(t *testing.T) {
	c := NewContainer()
	c.Register(ServiceWebSocket, 1)
	c.Register(ServiceMetrics, 2)
	c.Register(ServiceLocks, 3)

	assert.True(t, c.Has(ServiceMetrics))
	assert.False(t, c.Has(ServiceScene))
	assert.Equal(t, []string{ServiceLocks, ServiceMetrics, ServiceWebSocket}, c.GetNames())
	assert.Same(t, GetContainer(), GetContainer())
}

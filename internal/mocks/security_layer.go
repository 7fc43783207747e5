package mocks

import (
	"net"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/prakriti-server/internal/model"
)

var _ model.SecurityLayer = (*SecurityLayer)(nil)

// SecurityLayer is a testify mock of model.SecurityLayer.
type SecurityLayer struct {
	mock.Mock
}

// NewSecurityLayer returns a mock whose expectations are asserted on test cleanup.
func NewSecurityLayer(t *testing.T) *SecurityLayer {
	m := &SecurityLayer{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *SecurityLayer) Listen(protocol, addr string) (net.Listener, error) {
	ret := m.Called(protocol, addr)
	var ln net.Listener
	if v := ret.Get(0); v != nil {
		ln = v.(net.Listener)
	}
	return ln, ret.Error(1)
}

package onchain

import (
	"github.com/breez/breez-liquid-sdk-go/internal/onchain"
	"github.com/stretchr/testify/mock"
)

type MockHistoryProvider struct {
	mock.Mock
}

var _ onchain.HistoryProvider = &MockHistoryProvider{}

func (m *MockHistoryProvider) GetRawTransaction(txId string) (string, error) {
	ret := m.Called(txId)
	return ret.String(0), ret.Error(1)
}

func (m *MockHistoryProvider) BroadcastTransaction(txHex string) (string, error) {
	ret := m.Called(txHex)
	return ret.String(0), ret.Error(1)
}

func (m *MockHistoryProvider) IsTransactionConfirmed(txId string) (bool, error) {
	ret := m.Called(txId)
	return ret.Bool(0), ret.Error(1)
}

func (m *MockHistoryProvider) GetBlockHeight() (uint32, error) {
	ret := m.Called()
	return ret.Get(0).(uint32), ret.Error(1)
}

func (m *MockHistoryProvider) EstimateFee() (float64, error) {
	ret := m.Called()
	return ret.Get(0).(float64), ret.Error(1)
}

func (m *MockHistoryProvider) GetScriptHistory(script []byte) ([]*onchain.HistoryItem, error) {
	ret := m.Called(script)
	history, _ := ret.Get(0).([]*onchain.HistoryItem)
	return history, ret.Error(1)
}

func (m *MockHistoryProvider) Disconnect() {
	m.Called()
}

func (m *MockHistoryProvider) String() string {
	return "mock"
}

// NewMockHistoryProvider asserts all expectations were met when the test finishes.
func NewMockHistoryProvider(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockHistoryProvider {
	m := &MockHistoryProvider{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

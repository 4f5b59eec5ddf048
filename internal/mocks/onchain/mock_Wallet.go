package onchain

import (
	"context"

	"github.com/breez/breez-liquid-sdk-go/internal/onchain"
	"github.com/stretchr/testify/mock"
)

type MockWallet struct {
	mock.Mock
}

var _ onchain.Wallet = &MockWallet{}

func (m *MockWallet) Pubkey() string {
	return m.Called().String(0)
}

func (m *MockWallet) NewAddress() (string, error) {
	ret := m.Called()
	return ret.String(0), ret.Error(1)
}

func (m *MockWallet) SendToAddress(args onchain.WalletSendArgs) (string, error) {
	ret := m.Called(args)
	return ret.String(0), ret.Error(1)
}

func (m *MockWallet) GetSendFee(args onchain.WalletSendArgs) (uint64, error) {
	ret := m.Called(args)
	return ret.Get(0).(uint64), ret.Error(1)
}

func (m *MockWallet) GetBalance() (*onchain.Balance, error) {
	ret := m.Called()
	balance, _ := ret.Get(0).(*onchain.Balance)
	return balance, ret.Error(1)
}

func (m *MockWallet) GetTransactions() ([]*onchain.WalletTransaction, error) {
	ret := m.Called()
	transactions, _ := ret.Get(0).([]*onchain.WalletTransaction)
	return transactions, ret.Error(1)
}

func (m *MockWallet) FullScan(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockWallet) Disconnect() error {
	return m.Called().Error(0)
}

func NewMockWallet(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockWallet {
	m := &MockWallet{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

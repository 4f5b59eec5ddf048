package liquidsdk

import (
	"path/filepath"

	"github.com/breez/breez-liquid-sdk-go/internal/utils"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
)

// ListPayments returns wallet transactions joined with their swaps and swaps without a transaction, newest first
func (sdk *LiquidSdk) ListPayments() ([]models.Payment, error) {
	sdk.startLock.RLock()
	defer sdk.startLock.RUnlock()
	if err := sdk.ensureStarted(); err != nil {
		return nil, err
	}

	payments, err := sdk.database.QueryPayments()
	if err != nil {
		return nil, models.PaymentErrorFrom(models.ErrPaymentErrorPersistError, err)
	}
	return payments, nil
}

func (sdk *LiquidSdk) backupPath(path *string) string {
	if path != nil && *path != "" {
		return utils.ExpandHomeDir(*path)
	}
	return filepath.Join(sdk.config.networkDir(), backupFileName)
}

func (sdk *LiquidSdk) Backup(request models.BackupRequest) error {
	sdk.startLock.RLock()
	defer sdk.startLock.RUnlock()
	if err := sdk.ensureStarted(); err != nil {
		return err
	}
	if err := sdk.database.Backup(sdk.backupPath(request.BackupPath)); err != nil {
		return models.SdkErrorFrom(err)
	}
	return nil
}

// Restore replaces the payment and swap storage with a backup
func (sdk *LiquidSdk) Restore(request models.RestoreRequest) error {
	sdk.startLock.RLock()
	defer sdk.startLock.RUnlock()
	if err := sdk.ensureStarted(); err != nil {
		return err
	}
	path := sdk.backupPath(request.BackupPath)
	if !utils.FileExists(path) {
		return models.NewSdkError(models.ErrSdkErrorGeneric, "backup file %s does not exist", path)
	}
	if err := sdk.database.Restore(path); err != nil {
		return models.SdkErrorFrom(err)
	}
	return nil
}

// EmptyWalletCache drops everything the wallet learned from the chain. The next sync scans from scratch.
func (sdk *LiquidSdk) EmptyWalletCache() error {
	sdk.startLock.RLock()
	defer sdk.startLock.RUnlock()
	if err := sdk.ensureStarted(); err != nil {
		return err
	}
	if err := sdk.wallet.ResetCache(); err != nil {
		return models.SdkErrorFrom(err)
	}
	return nil
}

package models

type ConnectRequest struct {
	Mnemonic string
	Network  Network
	// defaults to ".data"
	DataDir *string
}

type GetInfoRequest struct {
	WithScan bool
}

type GetInfoResponse struct {
	BalanceSat        uint64
	PendingSendSat    uint64
	PendingReceiveSat uint64
	Pubkey            string
}

type PrepareSendRequest struct {
	Invoice string
}

type PrepareSendResponse struct {
	Invoice string
	FeesSat uint64
}

type SendPaymentResponse struct {
	Payment Payment
}

type PrepareReceiveRequest struct {
	PayerAmountSat uint64
}

type PrepareReceiveResponse struct {
	PayerAmountSat uint64
	FeesSat        uint64
}

type ReceivePaymentResponse struct {
	Id      string
	Invoice string
}

type BackupRequest struct {
	// defaults to <datadir>/<network>/backup.sql
	BackupPath *string
}

type RestoreRequest struct {
	BackupPath *string
}

type LogEntry struct {
	Line  string
	Level string
}

type Logger interface {
	Log(entry LogEntry)
}

package models

type RouteHintHop struct {
	SrcNodeId                  string
	ShortChannelId             uint64
	FeesBaseMsat               uint32
	FeesProportionalMillionths uint32
	CltvExpiryDelta            uint64
}

type RouteHint struct {
	Hops []RouteHintHop
}

type LnInvoice struct {
	Bolt11                  string
	Network                 string
	PayeePubkey             string
	PaymentHash             string
	Description             *string
	DescriptionHash         *string
	AmountMsat              *uint64
	Timestamp               uint64
	Expiry                  uint64
	RoutingHints            []RouteHint
	PaymentSecret           []byte
	MinFinalCltvExpiryDelta uint64
}

type InputType interface {
	isInputType()
}

type InputTypeBitcoinAddress struct {
	Address string
	Network string
}

type InputTypeLiquidAddress struct {
	Address string
	Network Network
}

type InputTypeBolt11 struct {
	Invoice LnInvoice
}

type InputTypeNodeId struct {
	NodeId string
}

type InputTypeUrl struct {
	Url string
}

type InputTypeLnUrlPay struct {
	Data LnUrlPayRequestData
}

type InputTypeLnUrlWithdraw struct {
	Data LnUrlWithdrawRequestData
}

type InputTypeLnUrlAuth struct {
	Data LnUrlAuthRequestData
}

type InputTypeLnUrlError struct {
	Data LnUrlErrorData
}

func (InputTypeBitcoinAddress) isInputType() {}
func (InputTypeLiquidAddress) isInputType()  {}
func (InputTypeBolt11) isInputType()         {}
func (InputTypeNodeId) isInputType()         {}
func (InputTypeUrl) isInputType()            {}
func (InputTypeLnUrlPay) isInputType()       {}
func (InputTypeLnUrlWithdraw) isInputType()  {}
func (InputTypeLnUrlAuth) isInputType()      {}
func (InputTypeLnUrlError) isInputType()     {}

type LnUrlPayRequestData struct {
	Callback       string
	MinSendable    uint64
	MaxSendable    uint64
	MetadataStr    string
	CommentAllowed uint16
	Domain         string
	LnAddress      string
}

type LnUrlWithdrawRequestData struct {
	Callback           string
	K1                 string
	DefaultDescription string
	MinWithdrawable    uint64
	MaxWithdrawable    uint64
}

type LnUrlAuthRequestData struct {
	K1     string
	Action string
	Domain string
	Url    string
}

type LnUrlErrorData struct {
	Reason string
}

type LnUrlPayRequest struct {
	Data         LnUrlPayRequestData
	AmountMsat   uint64
	Comment      *string
	PaymentLabel *string
}

type SuccessActionProcessed struct {
	// one of "message", "url" or "aes"
	Tag         string
	Message     string
	Url         string
	Description string
}

type LnUrlPaySuccessData struct {
	Payment       Payment
	SuccessAction *SuccessActionProcessed
}

type LnUrlPayErrorData struct {
	PaymentHash string
	Reason      string
}

type LnUrlPayResult interface {
	isLnUrlPayResult()
}

type LnUrlPayResultEndpointSuccess struct {
	Data LnUrlPaySuccessData
}

type LnUrlPayResultEndpointError struct {
	Data LnUrlErrorData
}

type LnUrlPayResultPayError struct {
	Data LnUrlPayErrorData
}

func (LnUrlPayResultEndpointSuccess) isLnUrlPayResult() {}
func (LnUrlPayResultEndpointError) isLnUrlPayResult()   {}
func (LnUrlPayResultPayError) isLnUrlPayResult()        {}

package boltz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Api is a client of the v2 REST api of boltz
type Api struct {
	URL    string
	Client http.Client
}

type SwapType string

const (
	NormalSwap  SwapType = "submarine"
	ReverseSwap SwapType = "reverse"
)

// Error is returned when boltz rejects a request
type Error struct {
	StatusCode int
	Message    string
}

func (err *Error) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("boltz returned status %d", err.StatusCode)
	}
	return err.Message
}

type GetVersionResponse struct {
	Version string `json:"version"`
}

type Limits struct {
	Minimal uint64 `json:"minimal"`
	Maximal uint64 `json:"maximal"`
}

type SubmarinePair struct {
	Hash   string  `json:"hash"`
	Rate   float64 `json:"rate"`
	Limits Limits  `json:"limits"`
	Fees   struct {
		Percentage Percentage `json:"percentage"`
		MinerFees  uint64     `json:"minerFees"`
	} `json:"fees"`
}

type ReversePair struct {
	Hash   string  `json:"hash"`
	Rate   float64 `json:"rate"`
	Limits Limits  `json:"limits"`
	Fees   struct {
		Percentage Percentage `json:"percentage"`
		MinerFees  struct {
			Lockup uint64 `json:"lockup"`
			Claim  uint64 `json:"claim"`
		} `json:"minerFees"`
	} `json:"fees"`
}

// pairs are keyed by the currency sent to boltz and then by the one received
type SubmarinePairs map[Currency]map[Currency]SubmarinePair
type ReversePairs map[Currency]map[Currency]ReversePair

type SwapStatusResponse struct {
	Status        string `json:"status"`
	FailureReason string `json:"failureReason"`
	Transaction   struct {
		Id  string `json:"id"`
		Hex string `json:"hex"`
	} `json:"transaction"`
}

type SwapTransaction struct {
	Id                 string `json:"id"`
	Hex                string `json:"hex"`
	TimeoutBlockHeight uint32 `json:"timeoutBlockHeight"`
}

type ChainTransaction struct {
	Hex           string `json:"hex"`
	Confirmations uint64 `json:"confirmations"`
}

type CreateSwapRequest struct {
	From            Currency  `json:"from"`
	To              Currency  `json:"to"`
	PairHash        string    `json:"pairHash,omitempty"`
	RefundPublicKey HexString `json:"refundPublicKey"`
	Invoice         string    `json:"invoice,omitempty"`
}

type CreateSwapResponse struct {
	Id                 string          `json:"id"`
	Address            string          `json:"address"`
	SwapTree           *SerializedTree `json:"swapTree"`
	ClaimPublicKey     HexString       `json:"claimPublicKey"`
	TimeoutBlockHeight uint32          `json:"timeoutBlockHeight"`
	AcceptZeroConf     bool            `json:"acceptZeroConf"`
	ExpectedAmount     uint64          `json:"expectedAmount"`
	BlindingKey        HexString       `json:"blindingKey"`
}

type CreateReverseSwapRequest struct {
	From           Currency  `json:"from"`
	To             Currency  `json:"to"`
	PreimageHash   HexString `json:"preimageHash"`
	ClaimPublicKey HexString `json:"claimPublicKey"`
	InvoiceAmount  uint64    `json:"invoiceAmount,omitempty"`
	OnchainAmount  uint64    `json:"onchainAmount,omitempty"`
	PairHash       string    `json:"pairHash,omitempty"`
	Address        string    `json:"address,omitempty"`
	Description    string    `json:"description,omitempty"`
}

type CreateReverseSwapResponse struct {
	Id                 string          `json:"id"`
	Invoice            string          `json:"invoice"`
	SwapTree           *SerializedTree `json:"swapTree"`
	RefundPublicKey    HexString       `json:"refundPublicKey"`
	LockupAddress      string          `json:"lockupAddress"`
	TimeoutBlockHeight uint32          `json:"timeoutBlockHeight"`
	OnchainAmount      uint64          `json:"onchainAmount"`
	BlindingKey        HexString       `json:"blindingKey"`
}

// RefundRequest asks boltz to cosign a cooperative refund of a submarine swap
type RefundRequest struct {
	PubNonce    HexString `json:"pubNonce"`
	Transaction string    `json:"transaction"`
	Index       int       `json:"index"`
}

// ClaimRequest asks boltz to cosign a cooperative claim of a reverse swap
type ClaimRequest struct {
	Preimage    HexString `json:"preimage"`
	PubNonce    HexString `json:"pubNonce"`
	Transaction string    `json:"transaction"`
	Index       int       `json:"index"`
}

// SwapClaimDetails is what boltz needs us to cosign for claiming a submarine swap
type SwapClaimDetails struct {
	PubNonce        HexString `json:"pubNonce"`
	TransactionHash HexString `json:"transactionHash"`
	Preimage        HexString `json:"preimage"`
	PublicKey       HexString `json:"publicKey"`
}

type PartialSignature struct {
	PubNonce         HexString `json:"pubNonce"`
	PartialSignature HexString `json:"partialSignature"`
}

func (boltz *Api) GetVersion() (*GetVersionResponse, error) {
	var response GetVersionResponse
	return &response, boltz.do(http.MethodGet, "/version", nil, &response)
}

func (boltz *Api) GetSubmarinePairs() (SubmarinePairs, error) {
	var response SubmarinePairs
	return response, boltz.do(http.MethodGet, "/swap/submarine", nil, &response)
}

func (boltz *Api) GetReversePairs() (ReversePairs, error) {
	var response ReversePairs
	return response, boltz.do(http.MethodGet, "/swap/reverse", nil, &response)
}

func (boltz *Api) CreateSwap(request CreateSwapRequest) (*CreateSwapResponse, error) {
	var response CreateSwapResponse
	if err := boltz.do(http.MethodPost, "/swap/submarine", request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (boltz *Api) CreateReverseSwap(request CreateReverseSwapRequest) (*CreateReverseSwapResponse, error) {
	var response CreateReverseSwapResponse
	if err := boltz.do(http.MethodPost, "/swap/reverse", request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// GetReverseSwapTransaction returns the lockup transaction boltz broadcast for a reverse swap
func (boltz *Api) GetReverseSwapTransaction(id string) (*SwapTransaction, error) {
	var response SwapTransaction
	if err := boltz.do(http.MethodGet, "/swap/reverse/"+id+"/transaction", nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (boltz *Api) RefundSwap(swapId string, request *RefundRequest) (*PartialSignature, error) {
	var response PartialSignature
	if err := boltz.do(http.MethodPost, "/swap/submarine/"+swapId+"/refund", request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (boltz *Api) GetSwapClaimDetails(swapId string) (*SwapClaimDetails, error) {
	var response SwapClaimDetails
	if err := boltz.do(http.MethodGet, "/swap/submarine/"+swapId+"/claim", nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (boltz *Api) SendSwapClaimSignature(swapId string, signature *PartialSignature) error {
	return boltz.do(http.MethodPost, "/swap/submarine/"+swapId+"/claim", signature, nil)
}

func (boltz *Api) ClaimReverseSwap(swapId string, request *ClaimRequest) (*PartialSignature, error) {
	var response PartialSignature
	if err := boltz.do(http.MethodPost, "/swap/reverse/"+swapId+"/claim", request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (boltz *Api) GetFeeEstimation(currency Currency) (float64, error) {
	var response struct {
		Fee float64 `json:"fee"`
	}
	err := boltz.do(http.MethodGet, fmt.Sprintf("/chain/%s/fee", currency), nil, &response)
	return response.Fee, err
}

func (boltz *Api) GetBlockHeight(currency Currency) (uint32, error) {
	var response map[Currency]uint32
	if err := boltz.do(http.MethodGet, "/chain/heights", nil, &response); err != nil {
		return 0, err
	}
	height, ok := response[currency]
	if !ok {
		return 0, fmt.Errorf("no block height for %s", currency)
	}
	return height, nil
}

func (boltz *Api) GetChainTransaction(currency Currency, txId string) (*ChainTransaction, error) {
	var response ChainTransaction
	if err := boltz.do(http.MethodGet, fmt.Sprintf("/chain/%s/transaction/%s", currency, txId), nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (boltz *Api) BroadcastTransaction(currency Currency, txHex string) (string, error) {
	request := struct {
		Hex string `json:"hex"`
	}{txHex}
	var response struct {
		Id string `json:"id"`
	}
	err := boltz.do(http.MethodPost, fmt.Sprintf("/chain/%s/transaction", currency), request, &response)
	return response.Id, err
}

// do sends a request to the v2 api and decodes the answer into response, which may be nil.
// Bodies with an error field or a non 2xx status are turned into an *Error.
func (boltz *Api) do(method string, endpoint string, body any, response any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	request, err := http.NewRequest(method, boltz.URL+"/v2"+endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	res, err := boltz.Client.Do(request)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	var failure struct {
		Error string `json:"error"`
	}
	// not every answer is an object
	_ = json.Unmarshal(raw, &failure)
	if failure.Error != "" || res.StatusCode >= http.StatusMultipleChoices {
		return &Error{StatusCode: res.StatusCode, Message: failure.Error}
	}

	if response == nil {
		return nil
	}
	if err := json.Unmarshal(raw, response); err != nil {
		return fmt.Errorf("could not parse boltz response to %s: %w", endpoint, err)
	}
	return nil
}

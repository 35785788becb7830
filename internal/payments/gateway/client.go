package gateway

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"

	"peerpair/pkg/client"
	"peerpair/pkg/config"
	"peerpair/pkg/locale"
	"peerpair/pkg/logger"
)

const (
	stkPushPath = "/mpesa/stkpush/v1/processrequest"

	timestampLayout = "20060102150405"

	maxAccountReference = 12
	maxDescription      = 13

	responseAccepted = "0"
)

// The gateway expects payer-market wall-clock timestamps. Location falls back
// to a fixed offset when the IANA zone is not installed.
var gatewayZone = locale.Payer.Location()

type ChargeRequest struct {
	MSISDN            string
	Amount            int64
	MerchantReference string
	CallbackURL       string
	Description       string
}

type ChargeResponse struct {
	TrackingToken     string
	MerchantRequestID string
	CustomerMessage   string
}

type ChargeGateway interface {
	SubmitCharge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error)
}

type Client struct {
	http  *client.HttpClient
	creds CredentialProvider
	cfg   config.GatewayConfig
	log   *logger.Logger
	now   func() time.Time
}

func NewClient(cfg config.GatewayConfig, creds CredentialProvider, log *logger.Logger) *Client {
	httpClient := client.NewHttpClient(cfg.BaseURL)
	httpClient.HTTPClient.Timeout = cfg.Timeout

	return &Client{
		http:  httpClient,
		creds: creds,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
	}
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`

	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (c *Client) SubmitCharge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	if market, ok := locale.InferMarketFromMSISDN(req.MSISDN); !ok || market.Code != locale.Payer.Code {
		return nil, &SubmitError{Code: "invalid_msisdn", Message: "payer number is outside the collection market"}
	}

	token, err := c.creds.Token(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().In(gatewayZone).Format(timestampLayout)
	payload := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.PassKey + timestamp)),
		Timestamp:         timestamp,
		TransactionType:   c.cfg.TransactionType,
		Amount:            req.Amount,
		PartyA:            req.MSISDN,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       req.MSISDN,
		CallBackURL:       req.CallbackURL,
		AccountReference:  truncate(firstNonEmpty(req.MerchantReference, c.cfg.AccountReference), maxAccountReference),
		TransactionDesc:   truncate(firstNonEmpty(req.Description, c.cfg.AccountReference), maxDescription),
	}

	resp, err := c.http.POSTWithHeaders(ctx, stkPushPath, payload, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		return nil, &SubmitError{Message: "gateway unreachable", Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.creds.Invalidate(ctx, token)
		return nil, &AuthError{StatusCode: resp.StatusCode, Message: "gateway rejected the session credential"}
	}

	var body stkPushResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return nil, &SubmitError{StatusCode: resp.StatusCode, Message: "malformed gateway response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || body.ResponseCode != responseAccepted || body.CheckoutRequestID == "" {
		submitErr := &SubmitError{
			StatusCode: resp.StatusCode,
			Code:       firstNonEmpty(body.ErrorCode, body.ResponseCode),
			Message:    firstNonEmpty(body.ErrorMessage, body.ResponseDescription, "charge not accepted"),
		}
		c.log.Warn("Charge request rejected",
			"merchant_reference", req.MerchantReference,
			"status", resp.StatusCode,
			"code", submitErr.Code,
			"message", submitErr.Message,
		)
		return nil, submitErr
	}

	return &ChargeResponse{
		TrackingToken:     body.CheckoutRequestID,
		MerchantRequestID: body.MerchantRequestID,
		CustomerMessage:   body.CustomerMessage,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

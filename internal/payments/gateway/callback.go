package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidCallback = errors.New("invalid callback payload")

var validate = validator.New()

type ValueKind string

const (
	ValueNone   ValueKind = ""
	ValueString ValueKind = "string"
	ValueNumber ValueKind = "number"
)

// MetadataValue is a callback metadata value, which the gateway sends either
// as a JSON string or a JSON number, or omits.
type MetadataValue struct {
	Kind   ValueKind
	String string
	Number json.Number
}

func (v *MetadataValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = MetadataValue{}
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = MetadataValue{Kind: ValueString, String: s}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("metadata value must be a string or number: %w", err)
	}
	*v = MetadataValue{Kind: ValueNumber, Number: n}
	return nil
}

// Text renders the value regardless of its wire kind.
func (v MetadataValue) Text() string {
	switch v.Kind {
	case ValueString:
		return v.String
	case ValueNumber:
		return v.Number.String()
	}
	return ""
}

type MetadataItem struct {
	Name  string        `json:"Name" validate:"required"`
	Value MetadataValue `json:"Value"`
}

type callbackMetadata struct {
	Item []MetadataItem `json:"Item" validate:"dive"`
}

type stkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID" validate:"required"`
	CheckoutRequestID string            `json:"CheckoutRequestID" validate:"required"`
	ResultCode        *int              `json:"ResultCode" validate:"required"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *callbackMetadata `json:"CallbackMetadata,omitempty"`
}

type callbackBody struct {
	StkCallback *stkCallback `json:"stkCallback" validate:"required"`
}

type callbackEnvelope struct {
	Body *callbackBody `json:"Body" validate:"required"`
}

// Callback is a validated STK push result notification.
type Callback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Metadata          []MetadataItem
}

// ParseCallback decodes raw strictly: unknown fields, trailing data and
// missing required fields are all rejected with ErrInvalidCallback.
func ParseCallback(raw []byte) (*Callback, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var env callbackEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after payload", ErrInvalidCallback)
	}
	if err := validate.Struct(env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}

	cb := env.Body.StkCallback
	parsed := &Callback{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        *cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
	}
	if cb.CallbackMetadata != nil {
		parsed.Metadata = cb.CallbackMetadata.Item
	}
	return parsed, nil
}

func (c *Callback) Succeeded() bool {
	return c.ResultCode == 0
}

func (c *Callback) Lookup(name string) (MetadataValue, bool) {
	for _, item := range c.Metadata {
		if item.Name == name {
			return item.Value, item.Value.Kind != ValueNone
		}
	}
	return MetadataValue{}, false
}

// Amount returns the paid amount in whole units.
func (c *Callback) Amount() (int64, bool) {
	v, ok := c.Lookup("Amount")
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.Text(), 64)
	if err != nil {
		return 0, false
	}
	return int64(f), true
}

func (c *Callback) ReceiptNumber() string {
	v, _ := c.Lookup("MpesaReceiptNumber")
	return v.Text()
}

func (c *Callback) PhoneNumber() string {
	v, _ := c.Lookup("PhoneNumber")
	return v.Text()
}

func (c *Callback) TransactionDate() string {
	v, _ := c.Lookup("TransactionDate")
	return v.Text()
}

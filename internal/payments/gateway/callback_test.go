package gateway

import (
	"errors"
	"testing"
)

const successPayload = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 1000.00},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
          {"Name": "Balance"},
          {"Name": "TransactionDate", "Value": 20191219102115},
          {"Name": "PhoneNumber", "Value": 254708374149}
        ]
      }
    }
  }
}`

func TestParseCallback_Success(t *testing.T) {
	cb, err := ParseCallback([]byte(successPayload))
	if err != nil {
		t.Fatalf("ParseCallback() error = %v", err)
	}

	if !cb.Succeeded() {
		t.Error("expected a successful callback")
	}
	if cb.CheckoutRequestID != "ws_CO_191220191020363925" {
		t.Errorf("CheckoutRequestID = %q", cb.CheckoutRequestID)
	}
	if amount, ok := cb.Amount(); !ok || amount != 1000 {
		t.Errorf("Amount() = %d, %v; want 1000, true", amount, ok)
	}
	if got := cb.ReceiptNumber(); got != "NLJ7RT61SV" {
		t.Errorf("ReceiptNumber() = %q", got)
	}
	if got := cb.PhoneNumber(); got != "254708374149" {
		t.Errorf("PhoneNumber() = %q", got)
	}
	if got := cb.TransactionDate(); got != "20191219102115" {
		t.Errorf("TransactionDate() = %q", got)
	}
	if _, ok := cb.Lookup("Balance"); ok {
		t.Error("an item without a value should not be reported as present")
	}
}

func TestParseCallback_Failure(t *testing.T) {
	raw := `{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`

	cb, err := ParseCallback([]byte(raw))
	if err != nil {
		t.Fatalf("ParseCallback() error = %v", err)
	}
	if cb.Succeeded() {
		t.Error("result code 1032 must not be a success")
	}
	if cb.ResultDesc != "Request cancelled by user" {
		t.Errorf("ResultDesc = %q", cb.ResultDesc)
	}
	if _, ok := cb.Amount(); ok {
		t.Error("failure callback has no amount")
	}
}

func TestParseCallback_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `ResultCode=0`},
		{"empty object", `{}`},
		{"missing stkCallback", `{"Body":{}}`},
		{"missing token", `{"Body":{"stkCallback":{"MerchantRequestID":"m-1","ResultCode":0}}}`},
		{"missing result code", `{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1"}}}`},
		{"string result code", `{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResultCode":"0"}}}`},
		{"unknown field", `{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResultCode":0,"BookingID":"b-1"}}}`},
		{"metadata item without name", `{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResultCode":0,"CallbackMetadata":{"Item":[{"Value":1}]}}}}`},
		{"metadata value object", `{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResultCode":0,"CallbackMetadata":{"Item":[{"Name":"Amount","Value":{"x":1}}]}}}}`},
		{"trailing data", `{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResultCode":0}}} {}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCallback([]byte(tt.raw))
			if !errors.Is(err, ErrInvalidCallback) {
				t.Errorf("ParseCallback() error = %v, want ErrInvalidCallback", err)
			}
		})
	}
}

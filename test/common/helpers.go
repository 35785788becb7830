package common

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"peerpair/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SeedParty upserts a profile and removes it when the test ends.
func (s *IntegrationTestSuite) SeedParty(t *testing.T, party model.Party) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.Profiles().ReplaceOne(ctx, bson.M{"_id": party.ID}, party, options.Replace().SetUpsert(true))
	if err != nil {
		t.Fatalf("failed to seed party %s: %v", party.ID, err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = s.Profiles().DeleteOne(ctx, bson.M{"_id": party.ID})
	})
}

// CallbackBody renders a gateway result notification for token.
func CallbackBody(t *testing.T, token string, resultCode int, amount int64) []byte {
	t.Helper()
	callback := map[string]any{
		"MerchantRequestID": "it-merchant",
		"CheckoutRequestID": token,
		"ResultCode":        resultCode,
		"ResultDesc":        "integration",
	}
	if resultCode == 0 {
		callback["CallbackMetadata"] = map[string]any{
			"Item": []map[string]any{
				{"Name": "Amount", "Value": amount},
				{"Name": "MpesaReceiptNumber", "Value": "ITRCPT001"},
				{"Name": "PhoneNumber", "Value": 254712345678},
			},
		}
	}
	body, err := json.Marshal(map[string]any{"Body": map[string]any{"stkCallback": callback}})
	if err != nil {
		t.Fatalf("failed to encode callback: %v", err)
	}
	return body
}

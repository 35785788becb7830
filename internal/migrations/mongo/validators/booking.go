package validators

import "go.mongodb.org/mongo-driver/bson"

var integer = []string{"int", "long"}

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"initiator_party_id",
			"counterparty_id",
			"engagement_kind",
			"duration",
			"unit_rate",
			"total_amount",
			"status",
			"created_at",
			"updated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 36,
				"maxLength": 36,
			},

			"initiator_party_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"counterparty_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"engagement_kind": bson.M{
				"bsonType": "string",
				"enum":     []string{"short-unit", "day-unit", "week-unit"},
			},

			"duration": bson.M{
				"bsonType": integer,
				"minimum":  1,
			},

			"unit_rate": bson.M{
				"bsonType": integer,
				"minimum":  1,
			},

			"total_amount": bson.M{
				"bsonType": integer,
				"minimum":  1,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"funded_escrow",
					"completed",
					"cancelled",
				},
			},

			"gateway_tracking_token": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"initiation_key": bson.M{
				"bsonType":  "string",
				"maxLength": 255,
			},

			"notes": bson.M{
				"bsonType":  "string",
				"maxLength": 1000,
			},

			"created_at": bson.M{"bsonType": "date"},
			"updated_at": bson.M{"bsonType": "date"},
		},
	},
}

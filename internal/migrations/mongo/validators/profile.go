package validators

import "go.mongodb.org/mongo-driver/bson"

// ProfileValidator only pins the fields the booking services read; profiles
// are written elsewhere.
var ProfileValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"_id", "role", "active"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{"bsonType": "string"},
			"role": bson.M{
				"bsonType": "string",
				"enum":     []string{"client", "companion"},
			},
			"active": bson.M{"bsonType": "bool"},
			"rates": bson.M{
				"bsonType": "object",
				"additionalProperties": bson.M{
					"bsonType": integer,
					"minimum":  0,
				},
			},
		},
	},
}

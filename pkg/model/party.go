package model

type PartyRole string

const (
	RoleClient    PartyRole = "client"
	RoleCompanion PartyRole = "companion"
)

type Party struct {
	ID          string                   `json:"id" bson:"_id"`
	FullName    string                   `json:"full_name" bson:"full_name"`
	Role        PartyRole                `json:"role" bson:"role"`
	Active      bool                     `json:"active" bson:"active"`
	PhoneNumber string                   `json:"phone_number,omitempty" bson:"phone_number,omitempty"`
	Email       string                   `json:"email,omitempty" bson:"email,omitempty"`
	Rates       map[EngagementKind]int64 `json:"rates,omitempty" bson:"rates,omitempty"`
}

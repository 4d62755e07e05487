package mongo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skillboard/portal/internal/core/domain"
)

func TestMongoUser_RoundTrip(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	in := &domain.User{
		Email:        "alice@example.com",
		Name:         "Alice",
		AvatarURL:    "https://cdn.example.com/a.png",
		Type:         domain.UserTypeAdmin,
		PasswordHash: "$2a$12$hash",
		CreatedAt:    created,
		UpdatedAt:    created,
	}

	doc := toMongoUser(in)
	doc.ID = primitive.NewObjectID()

	raw, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded mongoUser
	if err := bson.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	out := decoded.toDomain()
	if out.ID != doc.ID.Hex() {
		t.Fatalf("expected id %s, got %s", doc.ID.Hex(), out.ID)
	}
	if out.Email != in.Email || out.Type != in.Type || out.PasswordHash != in.PasswordHash || out.AvatarURL != in.AvatarURL {
		t.Fatalf("fields lost in round trip: %+v", out)
	}
	if !out.CreatedAt.Equal(created) {
		t.Fatalf("expected created_at %v, got %v", created, out.CreatedAt)
	}
}

func TestMongoUser_StoresHashUnderOwnKey(t *testing.T) {
	raw, err := bson.Marshal(toMongoUser(&domain.User{Email: "a@example.com", PasswordHash: "h"}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["password_hash"] != "h" {
		t.Fatalf("expected password_hash field, got %v", m)
	}
	if _, ok := m["_id"]; ok {
		t.Fatalf("zero ObjectID must be omitted, got %v", m["_id"])
	}
}

func TestUnixToTime(t *testing.T) {
	if !unixToTime(0).IsZero() {
		t.Fatal("zero timestamp should map to zero time")
	}
	if got := unixToTime(1700000000); got.Location() != time.UTC || got.Unix() != 1700000000 {
		t.Fatalf("unexpected conversion: %v", got)
	}
}

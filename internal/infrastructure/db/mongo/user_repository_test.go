package mongo

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/99minutos/account-service/internal/core/domain"
)

func TestMongoUser_ToDomain_AcceptsBothForms(t *testing.T) {
	want := []string{"billing", "crm"}
	forms := map[string]any{
		"encoded blob": `["billing","crm"]`,
		"native array": primitive.A{"billing", "crm"},
	}
	for name, stored := range forms {
		mu := mongoUser{ID: primitive.NewObjectID(), Name: "alice", Role: "admin", PermittedSystems: stored, CreatedAt: 1700000000}
		u, err := mu.toDomain()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !reflect.DeepEqual(u.PermittedSystems, want) {
			t.Fatalf("%s: expected %v, got %v", name, want, u.PermittedSystems)
		}
		if u.ID != mu.ID.Hex() || !u.CreatedAt.Equal(time.Unix(1700000000, 0)) {
			t.Fatalf("%s: unexpected user %+v", name, u)
		}
	}
}

func TestMongoUser_ToDomain_Malformed(t *testing.T) {
	mu := mongoUser{ID: primitive.NewObjectID(), PermittedSystems: int32(7)}
	if _, err := mu.toDomain(); !errors.Is(err, domain.ErrMalformedPermissionSet) {
		t.Fatalf("expected ErrMalformedPermissionSet, got %v", err)
	}
}

func TestMongoUser_BSONRoundTrip(t *testing.T) {
	in := mongoUser{ID: primitive.NewObjectID(), Name: "alice", PermittedSystems: primitive.A{"erp"}}
	raw, err := bson.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out mongoUser
	if err := bson.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	u, err := out.toDomain()
	if err != nil {
		t.Fatalf("toDomain: %v", err)
	}
	if !reflect.DeepEqual(u.PermittedSystems, []string{"erp"}) {
		t.Fatalf("unexpected permitted systems: %v", u.PermittedSystems)
	}
}

package remote

import (
	"context"
	"os"
	"testing"
	"time"
)

const postgresURLEnv = "CAREBOOK_TEST_POSTGRES_URL"

func TestParseChangeNotice(t *testing.T) {
	testCases := []struct {
		name    string
		payload string
		valid   bool
	}{
		{name: "upsert", payload: `{"op":"upsert","userId":"user-1","id":"ev-1"}`, valid: true},
		{name: "delete", payload: `{"op":"delete","userId":"user-1","id":"ev-1"}`, valid: true},
		{name: "missing id", payload: `{"op":"upsert","userId":"user-1"}`, valid: false},
		{name: "not json", payload: `ev-1`, valid: false},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, ok := parseChangeNotice(testCase.payload)
			if ok != testCase.valid {
				t.Fatalf("expected valid=%v for %q", testCase.valid, testCase.payload)
			}
		})
	}
}

func TestPostgresStoreStreamsChanges(t *testing.T) {
	connString := os.Getenv(postgresURLEnv)
	if connString == "" {
		t.Skipf("%s not set", postgresURLEnv)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := ConnectPostgres(ctx, connString, nil)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer store.Close()

	userID := "user-" + time.Now().UTC().Format("150405.000000")
	stream, release, err := store.Subscribe(ctx, userID)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer release()
	if initial := receiveSnapshot(t, stream); len(initial.Documents) != 0 {
		t.Fatalf("expected empty initial snapshot, got %d documents", len(initial.Documents))
	}

	mustUpsert(t, store, testDocument("ev-pg-"+userID, userID))
	select {
	case snapshot := <-stream:
		if len(snapshot.Documents) != 1 || snapshot.Documents[0].Fields[FieldTitle] != "Aspirin" {
			t.Fatalf("unexpected snapshot: %#v", snapshot)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("expected change notification")
	}

	if err := store.Delete(ctx, userID, "ev-pg-"+userID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	select {
	case snapshot := <-stream:
		if len(snapshot.Removed) != 1 {
			t.Fatalf("expected removal snapshot, got %#v", snapshot)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("expected removal notification")
	}
}

package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/codeddarkness/controller-new/internal/hardware"
	"github.com/codeddarkness/controller-new/internal/servo"
	"github.com/codeddarkness/controller-new/internal/telemetry"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	store := New(filepath.Join(t.TempDir(), "servo_test.sqlite"))
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("closing store: %v", err)
		}
	})
	return store
}

func testSnapshot(sessionID int64, ts time.Time) Snapshot {
	return Snapshot{
		SessionID: sessionID,
		Timestamp: ts,
		Servos: servo.State{
			Positions:  [servo.NumChannels]int{45, 90, 135, 180},
			Directions: [servo.NumChannels]servo.Direction{"left", "up", "neutral", "right"},
			HoldStates: [servo.NumChannels]bool{false, true, false, false},
			Speed:      1.2,
		},
		Reading: telemetry.Reading{
			Timestamp:   ts,
			Accel:       telemetry.Vector{X: 0.1, Y: -0.2, Z: 9.81},
			Gyro:        telemetry.Vector{X: 1, Y: 2, Z: 3},
			Temperature: 24.5,
		},
		Hardware: hardware.Status{
			PCAConnected: true,
			PCABus:       "1",
		},
		ControllerConnected: true,
		ControllerType:      "PS3",
	}
}

func TestStore_SessionRoundTrip(t *testing.T) {
	store := testStore(t)

	id, err := store.CreateSession("PS3", map[string]any{"minPulse": 150})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if id <= 0 {
		t.Fatalf("session ID = %d, want positive", id)
	}

	sess, err := store.Session(id)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if sess.ControllerType != "PS3" {
		t.Errorf("controller type = %s, want PS3", sess.ControllerType)
	}
	if sess.Config == nil || *sess.Config != `{"minPulse":150}` {
		t.Errorf("config = %v, want serialized map", sess.Config)
	}
}

func TestStore_SetSessionController(t *testing.T) {
	store := testStore(t)

	id, err := store.CreateSession("none", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err = store.SetSessionController(id, "Xbox"); err != nil {
		t.Fatalf("SetSessionController failed: %v", err)
	}

	sess, err := store.Session(id)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if sess.ControllerType != "Xbox" {
		t.Errorf("controller type = %s, want Xbox", sess.ControllerType)
	}
}

func TestStore_SnapshotRoundTrip(t *testing.T) {
	store := testStore(t)

	sessionID, err := store.CreateSession("Xbox", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	want := testSnapshot(sessionID, time.Now().UTC().Truncate(time.Second))
	if _, err = store.InsertSnapshot(&want); err != nil {
		t.Fatalf("InsertSnapshot failed: %v", err)
	}

	snaps, err := store.RecentSnapshots(10)
	if err != nil {
		t.Fatalf("RecentSnapshots failed: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}

	got := snaps[0]
	if got.Servos.Positions != want.Servos.Positions {
		t.Errorf("positions = %v, want %v", got.Servos.Positions, want.Servos.Positions)
	}
	if got.Servos.Directions != want.Servos.Directions {
		t.Errorf("directions = %v, want %v", got.Servos.Directions, want.Servos.Directions)
	}
	if got.Servos.HoldStates != want.Servos.HoldStates {
		t.Errorf("holds = %v, want %v", got.Servos.HoldStates, want.Servos.HoldStates)
	}
	if got.Servos.Speed != want.Servos.Speed {
		t.Errorf("speed = %v, want %v", got.Servos.Speed, want.Servos.Speed)
	}
	if got.Reading.Accel != want.Reading.Accel {
		t.Errorf("accel = %v, want %v", got.Reading.Accel, want.Reading.Accel)
	}
	if got.Hardware != want.Hardware {
		t.Errorf("hardware = %+v, want %+v", got.Hardware, want.Hardware)
	}
	if !got.ControllerConnected || got.ControllerType != "PS3" {
		t.Errorf("controller = %v/%s, want true/PS3", got.ControllerConnected, got.ControllerType)
	}
}

func TestStore_RecentSnapshotsNewestFirst(t *testing.T) {
	store := testStore(t)

	sessionID, err := store.CreateSession("PS3", nil)
	if err != nil {
		t.Fatal(err)
	}

	base := time.Now().UTC().Truncate(time.Second)
	var batch []Snapshot
	for i := 0; i < 5; i++ {
		snap := testSnapshot(sessionID, base.Add(time.Duration(i)*time.Second))
		snap.Servos.Positions[0] = i * 10
		batch = append(batch, snap)
	}
	if err = store.BatchInsertSnapshots(batch); err != nil {
		t.Fatalf("BatchInsertSnapshots failed: %v", err)
	}

	snaps, err := store.RecentSnapshots(3)
	if err != nil {
		t.Fatalf("RecentSnapshots failed: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("got %d snapshots, want 3", len(snaps))
	}
	for i, want := range []int{40, 30, 20} {
		if got := snaps[i].Servos.Positions[0]; got != want {
			t.Errorf("snapshot %d position = %d, want %d", i, got, want)
		}
	}
}

func TestStore_ReadSession(t *testing.T) {
	store := testStore(t)

	sessionID, err := store.CreateSession("PS3", nil)
	if err != nil {
		t.Fatal(err)
	}

	base := time.Now().UTC().Truncate(time.Second)
	var batch []Snapshot
	for i := 0; i < 10; i++ {
		batch = append(batch, testSnapshot(sessionID, base.Add(time.Duration(i)*time.Second)))
	}
	if err = store.BatchInsertSnapshots(batch); err != nil {
		t.Fatal(err)
	}

	// Full session.
	reader, err := store.ReadSession(sessionID)
	if err != nil {
		t.Fatalf("ReadSession failed: %v", err)
	}

	var count int
	var last time.Time
	for reader.Next() {
		current := reader.Current()
		if current.Timestamp.Before(last) {
			t.Error("snapshots not in time order")
		}
		last = current.Timestamp
		count++
	}
	if err = reader.Error(); err != nil {
		t.Fatalf("iteration error: %v", err)
	}
	if err = reader.Close(); err != nil {
		t.Fatalf("closing reader: %v", err)
	}
	if count != 10 {
		t.Errorf("read %d snapshots, want 10", count)
	}

	// Restricted range.
	reader, err = store.ReadSession(sessionID, WithTimeRange(base.Add(2*time.Second), base.Add(5*time.Second)))
	if err != nil {
		t.Fatalf("ReadSession with range failed: %v", err)
	}
	defer reader.Close()

	count = 0
	for reader.Next() {
		count++
	}
	if err = reader.Error(); err != nil {
		t.Fatal(err)
	}
	if count != 4 {
		t.Errorf("read %d snapshots in range, want 4", count)
	}
}

// Derived bounds go through plain timestamp selects; aggregate expressions
// lose the DATETIME decltype and the driver would hand back raw strings.
func TestStore_ReadSessionDerivedBounds(t *testing.T) {
	store := testStore(t)

	sessionID, err := store.CreateSession("PS3", nil)
	if err != nil {
		t.Fatal(err)
	}

	base := time.Now().UTC().Truncate(time.Second)
	if _, err = store.InsertSnapshot(&Snapshot{SessionID: sessionID, Timestamp: base}); err != nil {
		t.Fatal(err)
	}

	// No options: both bounds come from the stored timestamps.
	reader, err := store.ReadSession(sessionID)
	if err != nil {
		t.Fatalf("ReadSession without bounds failed: %v", err)
	}
	defer reader.Close()

	if !reader.Next() {
		t.Fatalf("no snapshot read: %v", reader.Error())
	}
	if got := reader.Current().Timestamp; !got.Equal(base) {
		t.Errorf("timestamp = %v, want %v", got, base)
	}

	// One-sided restriction: the other bound is still derived.
	reader, err = store.ReadSession(sessionID, WithStartTime(base.Add(-time.Minute)))
	if err != nil {
		t.Fatalf("ReadSession with start time only failed: %v", err)
	}
	defer reader.Close()

	var count int
	for reader.Next() {
		count++
	}
	if err = reader.Error(); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("read %d snapshots, want 1", count)
	}
}

func TestStore_ReadSessionEmpty(t *testing.T) {
	store := testStore(t)

	sessionID, err := store.CreateSession("PS3", nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err = store.ReadSession(sessionID); err == nil {
		t.Error("ReadSession on empty session succeeded, want error")
	}
}

package eventlog

import (
	"testing"
	"time"

	"github.com/zulandar/cellwatch/internal/models"
)

func queueIDs(t *testing.T, s *Store, queue string) []int64 {
	t.Helper()
	mats, err := s.GetMaterialInQueue(queue)
	if err != nil {
		t.Fatalf("GetMaterialInQueue: %v", err)
	}
	var ids []int64
	for i, m := range mats {
		if m.Position != i {
			t.Errorf("%s[%d].Position = %d", queue, i, m.Position)
		}
		ids = append(ids, m.MaterialID)
	}
	return ids
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRecordAddMaterialToQueue_Positions(t *testing.T) {
	s := testStore(t)
	var ids []int64
	for i := 0; i < 4; i++ {
		id, _ := s.AllocateMaterialIDForCasting("part1")
		ids = append(ids, id)
	}

	tests := []struct {
		name string
		id   int64
		pos  int
		want []int64
	}{
		{"first", ids[0], 0, []int64{ids[0]}},
		{"append with negative", ids[1], -1, []int64{ids[0], ids[1]}},
		{"insert at front", ids[2], 0, []int64{ids[2], ids[0], ids[1]}},
		{"past end appends", ids[3], 10, []int64{ids[2], ids[0], ids[1], ids[3]}},
		{"move within queue", ids[3], 1, []int64{ids[2], ids[3], ids[0], ids[1]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.RecordAddMaterialToQueue(tt.id, 0, "castings", tt.pos, time.Time{}); err != nil {
				t.Fatalf("RecordAddMaterialToQueue: %v", err)
			}
			got := queueIDs(t, s, "castings")
			if !equalIDs(got, tt.want) {
				t.Errorf("queue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecordRemoveMaterialFromAllQueues_ShiftsDown(t *testing.T) {
	s := testStore(t)
	var ids []int64
	for i := 0; i < 4; i++ {
		id, _ := s.AllocateMaterialIDForCasting("part1")
		ids = append(ids, id)
		s.RecordAddMaterialToQueue(id, 0, "castings", -1, time.Time{})
	}

	entries, err := s.RecordRemoveMaterialFromAllQueues(ids[2], time.Time{})
	if err != nil {
		t.Fatalf("RecordRemoveMaterialFromAllQueues: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != models.LogQueueRemove || entries[0].LocNum != 2 {
		t.Errorf("entries = %+v", entries)
	}
	got := queueIDs(t, s, "castings")
	want := []int64{ids[0], ids[1], ids[3]}
	if !equalIDs(got, want) {
		t.Errorf("queue = %v, want %v", got, want)
	}

	again, err := s.RecordRemoveMaterialFromAllQueues(ids[2], time.Time{})
	if err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second remove logged %d entries", len(again))
	}
}

func TestRecordAddMaterialToQueue_MovesBetweenQueues(t *testing.T) {
	s := testStore(t)
	a, _ := s.AllocateMaterialIDForCasting("part1")
	b, _ := s.AllocateMaterialIDForCasting("part1")
	s.RecordAddMaterialToQueue(a, 0, "castings", -1, time.Time{})
	s.RecordAddMaterialToQueue(b, 0, "castings", -1, time.Time{})

	entries, err := s.RecordAddMaterialToQueue(a, 0, "transfer", 0, time.Time{})
	if err != nil {
		t.Fatalf("RecordAddMaterialToQueue: %v", err)
	}
	if len(entries) != 2 || entries[0].Type != models.LogQueueRemove || entries[1].Type != models.LogQueueAdd {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[1].LocName != "transfer" {
		t.Errorf("queue-add LocName = %q", entries[1].LocName)
	}
	if got := queueIDs(t, s, "castings"); !equalIDs(got, []int64{b}) {
		t.Errorf("castings = %v", got)
	}
	if got := queueIDs(t, s, "transfer"); !equalIDs(got, []int64{a}) {
		t.Errorf("transfer = %v", got)
	}

	all, err := s.GetMaterialInAllQueues()
	if err != nil {
		t.Fatalf("GetMaterialInAllQueues: %v", err)
	}
	if len(all) != 2 || all[0].Queue != "castings" || all[1].Queue != "transfer" {
		t.Errorf("all = %+v", all)
	}
	if all[0].PartName != "part1" {
		t.Errorf("PartName = %q", all[0].PartName)
	}
}

func TestRecordAddMaterialToQueue_UnknownMaterial(t *testing.T) {
	s := testStore(t)
	if _, err := s.RecordAddMaterialToQueue(55, 0, "castings", 0, time.Time{}); err == nil {
		t.Fatal("expected error for unknown material")
	}
	if got := queueIDs(t, s, "castings"); len(got) != 0 {
		t.Errorf("queue = %v after failed add", got)
	}
}
